package mapping

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Namespace resolves entities across a group of maps. EntityResolver is the
// namespace maps are normally attached to.
type Namespace interface {
	DbEntity(name string) *DbEntity
	ObjEntity(name string) *ObjEntity
	Procedure(name string) *Procedure
	QueryDescriptor(name string) *QueryDescriptor
}

/*
DataMap is a named group of entities, procedures and named queries. Lookups
that miss locally fall back to the maps this one depends on and then to the
namespace the map is attached to.
*/
type DataMap struct {
	name                  string
	namespace             Namespace
	dependencies          []*DataMap
	DefaultSchema         string
	DefaultPackage        string
	QuotingSQLIdentifiers bool
	dbEntities            registry[*DbEntity]
	objEntities           registry[*ObjEntity]
	procedures            registry[*Procedure]
	queries               registry[*QueryDescriptor]
}

// NewDataMap returns an empty map
func NewDataMap(name string) *DataMap {
	return &DataMap{name: name}
}

// Name of the map
func (m *DataMap) Name() string {
	return m.name
}

// Namespace returns the namespace the map is attached to, if any
func (m *DataMap) Namespace() Namespace {
	return m.namespace
}

// SetNamespace attaches the map to a namespace
func (m *DataMap) SetNamespace(ns Namespace) {
	m.namespace = ns
}

// AddDependency declares that this map uses entities of dep. Circular
// declarations are rejected.
func (m *DataMap) AddDependency(dep *DataMap) error {
	if dep == m || dep.dependsOn(m) {
		return NewConfigError(m.name, "circular dependency on data map %s", dep.name)
	}
	for _, d := range m.dependencies {
		if d == dep {
			return nil
		}
	}
	m.dependencies = append(m.dependencies, dep)
	return nil
}

// RemoveDependency drops a declared dependency
func (m *DataMap) RemoveDependency(dep *DataMap) {
	for i, d := range m.dependencies {
		if d == dep {
			m.dependencies = append(m.dependencies[:i:i], m.dependencies[i+1:]...)
			return
		}
	}
}

// Dependencies returns the maps this one depends on directly
func (m *DataMap) Dependencies() []*DataMap {
	return append([]*DataMap(nil), m.dependencies...)
}

func (m *DataMap) dependsOn(other *DataMap) bool {
	for _, d := range m.dependencies {
		if d == other || d.dependsOn(other) {
			return true
		}
	}
	return false
}

// AddDbEntity adds a table, failing on duplicate names
func (m *DataMap) AddDbEntity(e *DbEntity) error {
	if e.dataMap != nil && e.dataMap != m {
		return NewConfigError(e.name, "entity already belongs to data map %s", e.dataMap.name)
	}
	if !m.dbEntities.add(e) {
		return NewConfigError(m.name, "duplicate db entity %s", e.name)
	}
	e.dataMap = m
	m.entitiesChanged()
	return nil
}

// RemoveDbEntity drops a table
func (m *DataMap) RemoveDbEntity(name string) {
	if e, ok := m.dbEntities.remove(name); ok {
		e.dataMap = nil
		m.entitiesChanged()
	}
}

// AddObjEntity adds a class entity, failing on duplicate names
func (m *DataMap) AddObjEntity(e *ObjEntity) error {
	if e.dataMap != nil && e.dataMap != m {
		return NewConfigError(e.name, "entity already belongs to data map %s", e.dataMap.name)
	}
	if !m.objEntities.add(e) {
		return NewConfigError(m.name, "duplicate obj entity %s", e.name)
	}
	e.dataMap = m
	m.entitiesChanged()
	return nil
}

// RemoveObjEntity drops a class entity
func (m *DataMap) RemoveObjEntity(name string) {
	if e, ok := m.objEntities.remove(name); ok {
		e.dataMap = nil
		m.entitiesChanged()
	}
}

// DbEntities returns the tables declared in this map
func (m *DataMap) DbEntities() []*DbEntity {
	return m.dbEntities.values()
}

// ObjEntities returns the class entities declared in this map
func (m *DataMap) ObjEntities() []*ObjEntity {
	return m.objEntities.values()
}

// DbEntity looks the table up locally, then in dependencies and the namespace
func (m *DataMap) DbEntity(name string) *DbEntity {
	if e := m.localDbEntity(name); e != nil {
		return e
	}
	if m.namespace != nil {
		return m.namespace.DbEntity(name)
	}
	return nil
}

func (m *DataMap) localDbEntity(name string) *DbEntity {
	if e, ok := m.dbEntities.get(name); ok {
		return e
	}
	for _, d := range m.dependencies {
		if e := d.localDbEntity(name); e != nil {
			return e
		}
	}
	return nil
}

// ObjEntity looks the entity up locally, then in dependencies and the namespace
func (m *DataMap) ObjEntity(name string) *ObjEntity {
	if e := m.localObjEntity(name); e != nil {
		return e
	}
	if m.namespace != nil {
		return m.namespace.ObjEntity(name)
	}
	return nil
}

func (m *DataMap) localObjEntity(name string) *ObjEntity {
	if e, ok := m.objEntities.get(name); ok {
		return e
	}
	for _, d := range m.dependencies {
		if e := d.localObjEntity(name); e != nil {
			return e
		}
	}
	return nil
}

// AddProcedure adds a stored procedure, failing on empty or duplicate names
func (m *DataMap) AddProcedure(p *Procedure) error {
	if p.name == "" {
		return NewConfigError(m.name, "procedure has no name")
	}
	if !m.procedures.add(p) {
		return NewConfigError(m.name, "duplicate procedure %s", p.name)
	}
	m.entitiesChanged()
	return nil
}

// Procedure looks a procedure up locally, then in the namespace
func (m *DataMap) Procedure(name string) *Procedure {
	if p, ok := m.procedures.get(name); ok {
		return p
	}
	if m.namespace != nil {
		return m.namespace.Procedure(name)
	}
	return nil
}

// Procedures returns the procedures declared in this map
func (m *DataMap) Procedures() []*Procedure {
	return m.procedures.values()
}

// AddQueryDescriptor adds a named query, failing on empty or duplicate names
func (m *DataMap) AddQueryDescriptor(q *QueryDescriptor) error {
	if q.name == "" {
		return NewConfigError(m.name, "query descriptor has no name")
	}
	if !m.queries.add(q) {
		return NewConfigError(m.name, "duplicate query %s", q.name)
	}
	m.entitiesChanged()
	return nil
}

// QueryDescriptor looks a named query up locally, then in the namespace
func (m *DataMap) QueryDescriptor(name string) *QueryDescriptor {
	if q, ok := m.queries.get(name); ok {
		return q
	}
	if m.namespace != nil {
		return m.namespace.QueryDescriptor(name)
	}
	return nil
}

// QueryDescriptors returns the named queries declared in this map
func (m *DataMap) QueryDescriptors() []*QueryDescriptor {
	return m.queries.values()
}

/*
Validate reports every unresolvable relationship target, join column, table
and attribute path of the map at once.
*/
func (m *DataMap) Validate() error {
	var errs *multierror.Error

	for _, e := range m.DbEntities() {
		for _, r := range e.DbRelationships() {
			if r.Target() == nil {
				errs = multierror.Append(errs, NewConfigError(qualifiedName(r), "target db entity %s is not mapped", r.targetName))
				continue
			}
			if len(r.joins) == 0 {
				errs = multierror.Append(errs, NewConfigError(qualifiedName(r), "relationship has no joins"))
			}
			for _, j := range r.joins {
				if j.Source() == nil || j.Target() == nil {
					errs = multierror.Append(errs, NewConfigError(qualifiedName(r), "join %s -> %s does not resolve", j.SourceName, j.TargetName))
				}
			}
		}
	}

	for _, e := range m.ObjEntities() {
		if e.superEntityName != "" {
			if e.SuperEntity() == nil {
				errs = multierror.Append(errs, NewConfigError(e.name, "super entity %s is not mapped", e.superEntityName))
			} else if e.IsSubentityOf(e) {
				errs = multierror.Append(errs, NewConfigError(e.name, "inheritance cycle"))
				continue
			}
		}
		if e.DbEntity() == nil {
			errs = multierror.Append(errs, NewConfigError(e.name, "db entity %q is not mapped", e.dbEntityName))
			continue
		}
		for _, a := range e.DeclaredAttributes() {
			if a.DbAttribute() == nil {
				errs = multierror.Append(errs, NewConfigError(e.name, "attribute %s: db path %q does not resolve", a.name, a.dbAttributePath))
			}
		}
		for name, path := range e.attributeOverrides {
			if e.ObjAttribute(name) == nil {
				errs = multierror.Append(errs, NewConfigError(e.name, "override of unknown attribute %s", name))
				continue
			}
			if _, err := e.DbEntity().ResolvePath(path, nil); err != nil {
				errs = multierror.Append(errs, NewConfigError(e.name, "override of %s: %s", name, err))
			}
		}
		for _, r := range e.DeclaredRelationships() {
			if r.Target() == nil {
				errs = multierror.Append(errs, NewConfigError(qualifiedName(r), "target entity %s is not mapped", r.targetName))
			}
			if len(r.DbRelationships()) == 0 {
				errs = multierror.Append(errs, NewConfigError(qualifiedName(r), "db relationship path %q does not resolve", r.DbRelationshipPath()))
			}
		}
	}

	for _, q := range m.QueryDescriptors() {
		if m.ObjEntity(q.Root) == nil && m.DbEntity(q.Root) == nil {
			errs = multierror.Append(errs, NewConfigError(q.name, "query root %s is not mapped", q.Root))
		}
	}

	return errs.ErrorOrNil()
}

// relatedMaps returns every map sharing the namespace of m
func (m *DataMap) relatedMaps() []*DataMap {
	if r, ok := m.namespace.(*EntityResolver); ok && r != nil {
		return r.DataMaps()
	}
	return append([]*DataMap{m}, m.dependencies...)
}

// relationshipsChanged recomputes the derived flags of every ObjRelationship
// that could route through a changed DbRelationship
func (m *DataMap) relationshipsChanged() {
	if m == nil {
		return
	}
	for _, dm := range m.relatedMaps() {
		for _, e := range dm.ObjEntities() {
			for _, r := range e.DeclaredRelationships() {
				r.mu.Lock()
				r.recalculate()
				r.mu.Unlock()
			}
		}
	}
}

// entitiesChanged drops the namespace's derived lookup caches
func (m *DataMap) entitiesChanged() {
	if m == nil {
		return
	}
	if r, ok := m.namespace.(*EntityResolver); ok && r != nil {
		r.invalidate()
	}
	m.relationshipsChanged()
}

// ParameterDirection of a stored procedure parameter
type ParameterDirection int

// Parameter directions
const (
	ParameterIn ParameterDirection = iota
	ParameterOut
	ParameterInOut
)

// ProcedureParameter is one argument of a stored procedure
type ProcedureParameter struct {
	Name      string
	Type      string
	Direction ParameterDirection
}

// Procedure describes a stored procedure a query can be rooted at
type Procedure struct {
	name           string
	Schema         string
	ReturningValue bool
	Parameters     []ProcedureParameter
}

// NewProcedure returns a procedure without parameters
func NewProcedure(name string) *Procedure {
	return &Procedure{name: name}
}

// Name of the procedure
func (p *Procedure) Name() string {
	return p.name
}

// FullyQualifiedName prefixes the name with the schema, if any
func (p *Procedure) FullyQualifiedName() string {
	if p.Schema != "" {
		return p.Schema + "." + p.name
	}
	return p.name
}

// OrderingDescriptor is one sort spec of a named query
type OrderingDescriptor struct {
	Path            string `json:"path" yaml:"path" validate:"required"`
	Descending      bool   `json:"descending" yaml:"descending"`
	CaseInsensitive bool   `json:"caseInsensitive" yaml:"caseInsensitive"`
}

// PrefetchDescriptor is one prefetch of a named query
type PrefetchDescriptor struct {
	Path      string `json:"path" yaml:"path" validate:"required"`
	Semantics string `json:"semantics" yaml:"semantics" validate:"omitempty,oneof=joint disjoint disjointById"`
}

// QueryDescriptor is a named select query stored with the mapping
type QueryDescriptor struct {
	name          string
	Root          string
	RootIsTable   bool
	Qualifier     string
	Orderings     []OrderingDescriptor
	Prefetches    []PrefetchDescriptor
	FetchLimit    int
	FetchOffset   int
	PageSize      int
	CacheStrategy string
	CacheGroup    string
	FetchDataRows bool
}

// NewQueryDescriptor returns a named query rooted at an entity
func NewQueryDescriptor(name, root string) *QueryDescriptor {
	return &QueryDescriptor{name: name, Root: root}
}

// Name of the query
func (q *QueryDescriptor) Name() string {
	return q.name
}

func (q *QueryDescriptor) String() string {
	return fmt.Sprintf("query %s on %s", q.name, q.Root)
}
