package mapping

import (
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

/*
EntityResolver is the namespace shared by a group of DataMaps. Its lookup
indexes are built once under a lock on first use and read without locking
afterwards. A lookup miss rebuilds the indexes once before giving up, so maps
changed after the first lookup are picked up.
*/
type EntityResolver struct {
	mu         sync.Mutex
	maps       []*DataMap
	cache      atomic.Pointer[mappingCache]
	logger     *zap.Logger
	valueTypes *ValueTypeRegistry
	runtimeSeq int
}

type mappingCache struct {
	objEntities map[string]*ObjEntity
	dbEntities  map[string]*DbEntity
	classes     map[string]*ObjEntity
	procedures  map[string]*Procedure
	queries     map[string]*QueryDescriptor
	trees       map[string]*EntityInheritanceTree
}

// ResolverOption configures an EntityResolver
type ResolverOption func(*EntityResolver)

// WithLogger sets the logger used for mapping changes made at runtime
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *EntityResolver) {
		r.logger = logger
	}
}

// WithValueTypes replaces the value type registry
func WithValueTypes(registry *ValueTypeRegistry) ResolverOption {
	return func(r *EntityResolver) {
		r.valueTypes = registry
	}
}

// NewEntityResolver attaches maps to a new resolver
func NewEntityResolver(maps []*DataMap, opts ...ResolverOption) *EntityResolver {
	r := &EntityResolver{
		logger:     zap.NewNop(),
		valueTypes: NewValueTypeRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}
	for _, m := range maps {
		r.AddDataMap(m)
	}
	return r
}

// Logger returns the resolver's logger
func (r *EntityResolver) Logger() *zap.Logger {
	return r.logger
}

// ValueTypes returns the registry of value serializers
func (r *EntityResolver) ValueTypes() *ValueTypeRegistry {
	return r.valueTypes
}

// AddDataMap attaches m to the resolver
func (r *EntityResolver) AddDataMap(m *DataMap) {
	r.mu.Lock()
	for _, existing := range r.maps {
		if existing == m {
			r.mu.Unlock()
			return
		}
	}
	r.maps = append(r.maps, m)
	r.mu.Unlock()

	m.namespace = r
	r.invalidate()
	m.relationshipsChanged()
}

// RemoveDataMap detaches m from the resolver
func (r *EntityResolver) RemoveDataMap(m *DataMap) {
	r.mu.Lock()
	for i, existing := range r.maps {
		if existing == m {
			r.maps = append(r.maps[:i:i], r.maps[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	if m.namespace == Namespace(r) {
		m.namespace = nil
	}
	r.invalidate()
}

// DataMaps returns the attached maps in the order they were added
func (r *EntityResolver) DataMaps() []*DataMap {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*DataMap(nil), r.maps...)
}

// DataMap returns the attached map with the given name
func (r *EntityResolver) DataMap(name string) *DataMap {
	for _, m := range r.DataMaps() {
		if m.name == name {
			return m
		}
	}
	return nil
}

// ObjEntity implements Namespace
func (r *EntityResolver) ObjEntity(name string) *ObjEntity {
	if e, ok := r.mapping().objEntities[name]; ok {
		return e
	}
	return r.refresh().objEntities[name]
}

// DbEntity implements Namespace
func (r *EntityResolver) DbEntity(name string) *DbEntity {
	if e, ok := r.mapping().dbEntities[name]; ok {
		return e
	}
	return r.refresh().dbEntities[name]
}

// Procedure implements Namespace
func (r *EntityResolver) Procedure(name string) *Procedure {
	if p, ok := r.mapping().procedures[name]; ok {
		return p
	}
	return r.refresh().procedures[name]
}

// QueryDescriptor implements Namespace
func (r *EntityResolver) QueryDescriptor(name string) *QueryDescriptor {
	if q, ok := r.mapping().queries[name]; ok {
		return q
	}
	return r.refresh().queries[name]
}

// ObjEntityForClass finds the entity mapped to a fully qualified type name
func (r *EntityResolver) ObjEntityForClass(className string) *ObjEntity {
	if e, ok := r.mapping().classes[className]; ok {
		return e
	}
	return r.refresh().classes[className]
}

// ObjEntityForType finds the entity mapped to t or the type t points to
func (r *EntityResolver) ObjEntityForType(t reflect.Type) *ObjEntity {
	return r.ObjEntityForClass(ClassNameOf(t))
}

// InheritanceTree returns the hierarchy rooted at the named entity
func (r *EntityResolver) InheritanceTree(entityName string) *EntityInheritanceTree {
	if t, ok := r.mapping().trees[entityName]; ok {
		return t
	}
	return r.refresh().trees[entityName]
}

// ObjEntities returns the entities of every attached map
func (r *EntityResolver) ObjEntities() []*ObjEntity {
	var all []*ObjEntity
	for _, m := range r.DataMaps() {
		all = append(all, m.ObjEntities()...)
	}
	return all
}

// DbEntities returns the tables of every attached map
func (r *EntityResolver) DbEntities() []*DbEntity {
	var all []*DbEntity
	for _, m := range r.DataMaps() {
		all = append(all, m.DbEntities()...)
	}
	return all
}

/*
ApplyDBLayerDefaults creates a reverse relationship for every DbRelationship
that doesn't have one. Created relationships are flagged as runtime and named
runtimeRelationshipN.
*/
func (r *EntityResolver) ApplyDBLayerDefaults() {
	for _, m := range r.DataMaps() {
		for _, e := range m.DbEntities() {
			for _, rel := range e.DbRelationships() {
				target := rel.Target()
				if target == nil || len(rel.joins) == 0 || rel.ReverseRelationship() != nil {
					continue
				}

				reverse := rel.CreateReverseRelationship(r.nextRuntimeName(target))
				reverse.runtime = true
				if err := target.AddRelationship(reverse); err != nil {
					r.logger.Warn("failed to add runtime relationship",
						zap.String("entity", target.name),
						zap.Error(err),
					)
					continue
				}
				r.logger.Debug("added runtime relationship",
					zap.String("entity", target.name),
					zap.String("relationship", reverse.name),
					zap.String("reverseOf", qualifiedName(rel)),
				)
			}
		}
	}
}

func (r *EntityResolver) nextRuntimeName(target *DbEntity) string {
	for {
		r.runtimeSeq++
		name := fmt.Sprintf("runtimeRelationship%d", r.runtimeSeq)
		if target.DbRelationship(name) == nil {
			return name
		}
	}
}

// RefreshMappingCache rebuilds the lookup indexes
func (r *EntityResolver) RefreshMappingCache() {
	r.refresh()
}

func (r *EntityResolver) invalidate() {
	r.cache.Store(nil)
}

func (r *EntityResolver) mapping() *mappingCache {
	if c := r.cache.Load(); c != nil {
		return c
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c := r.cache.Load(); c != nil {
		return c
	}
	c := r.build()
	r.cache.Store(c)
	return c
}

func (r *EntityResolver) refresh() *mappingCache {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.build()
	r.cache.Store(c)
	return c
}

// build must be called with the lock held
func (r *EntityResolver) build() *mappingCache {
	c := &mappingCache{
		objEntities: make(map[string]*ObjEntity),
		dbEntities:  make(map[string]*DbEntity),
		classes:     make(map[string]*ObjEntity),
		procedures:  make(map[string]*Procedure),
		queries:     make(map[string]*QueryDescriptor),
		trees:       make(map[string]*EntityInheritanceTree),
	}

	for _, m := range r.maps {
		for _, e := range m.dbEntities.values() {
			if _, ok := c.dbEntities[e.name]; !ok {
				c.dbEntities[e.name] = e
			}
		}
		for _, e := range m.objEntities.values() {
			if _, ok := c.objEntities[e.name]; !ok {
				c.objEntities[e.name] = e
			}
			if e.className == "" {
				continue
			}
			if existing, ok := c.classes[e.className]; ok && existing != e {
				r.logger.Warn("class mapped by more than one entity",
					zap.String("class", e.className),
					zap.String("entity", existing.name),
					zap.String("ignored", e.name),
				)
				continue
			}
			c.classes[e.className] = e
		}
		for _, p := range m.procedures.values() {
			if _, ok := c.procedures[p.name]; !ok {
				c.procedures[p.name] = p
			}
		}
		for _, q := range m.queries.values() {
			if _, ok := c.queries[q.name]; !ok {
				c.queries[q.name] = q
			}
		}
	}

	for name, e := range c.objEntities {
		c.trees[name] = &EntityInheritanceTree{entity: e}
	}
	for name, e := range c.objEntities {
		if e.superEntityName == "" {
			continue
		}
		parent, ok := c.trees[e.superEntityName]
		if !ok {
			continue
		}
		child := c.trees[name]
		child.parent = parent
		parent.children = append(parent.children, child)
	}
	for _, t := range c.trees {
		t.sortChildren()
	}
	return c
}

// ClassNameOf returns the fully qualified name of t, looking through pointers
func ClassNameOf(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}
