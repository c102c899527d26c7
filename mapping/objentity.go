package mapping

import (
	"strings"

	"github.com/skuid/graphmap/exp"
)

// LockType is the locking strategy of an ObjEntity
type LockType int

// Lock types
const (
	LockNone LockType = iota
	LockOptimistic
)

/*
ObjEntity represents a persistent class mapped onto a DbEntity. Attribute,
relationship, DbEntity and lock type lookups walk up the super entity chain when
the entity doesn't declare them itself.
*/
type ObjEntity struct {
	name               string
	dataMap            *DataMap
	className          string
	dbEntityName       string
	superEntityName    string
	Abstract           bool
	ReadOnly           bool
	Qualifier          *exp.Expression
	lockType           LockType
	attributes         registry[*ObjAttribute]
	relationships      registry[*ObjRelationship]
	attributeOverrides map[string]string
}

// NewObjEntity returns an empty ObjEntity
func NewObjEntity(name string) *ObjEntity {
	return &ObjEntity{name: name}
}

func (e *ObjEntity) entity() {}

// Name of the entity
func (e *ObjEntity) Name() string {
	return e.name
}

// DataMap returns the owning map
func (e *ObjEntity) DataMap() *DataMap {
	return e.dataMap
}

// ClassName is the fully qualified Go type name the entity maps to
func (e *ObjEntity) ClassName() string {
	return e.className
}

// SetClassName changes the mapped type name
func (e *ObjEntity) SetClassName(className string) {
	e.className = className
	e.dataMap.entitiesChanged()
}

// DbEntityName returns the declared table name
func (e *ObjEntity) DbEntityName() string {
	return e.dbEntityName
}

// SetDbEntityName changes the mapped table
func (e *ObjEntity) SetDbEntityName(name string) {
	e.dbEntityName = name
	e.dataMap.relationshipsChanged()
}

// DbEntity returns the mapped table, inherited from the super entity when
// none is declared
func (e *ObjEntity) DbEntity() *DbEntity {
	for _, s := range append([]*ObjEntity{e}, e.superChain()...) {
		if s.dbEntityName != "" && s.dataMap != nil {
			return s.dataMap.DbEntity(s.dbEntityName)
		}
	}
	return nil
}

// SuperEntityName returns the declared parent entity name
func (e *ObjEntity) SuperEntityName() string {
	return e.superEntityName
}

// SetSuperEntityName changes the parent entity
func (e *ObjEntity) SetSuperEntityName(name string) {
	e.superEntityName = name
	e.dataMap.entitiesChanged()
}

// SuperEntity resolves the parent entity, nil for hierarchy roots
func (e *ObjEntity) SuperEntity() *ObjEntity {
	if e.superEntityName == "" || e.dataMap == nil {
		return nil
	}
	return e.dataMap.ObjEntity(e.superEntityName)
}

// IsSubentityOf reports whether other is a strict ancestor of e
func (e *ObjEntity) IsSubentityOf(other *ObjEntity) bool {
	seen := map[*ObjEntity]bool{}
	for s := e.SuperEntity(); s != nil && !seen[s]; s = s.SuperEntity() {
		if s == other {
			return true
		}
		seen[s] = true
	}
	return false
}

// DeclaredLockType returns the lock type set on this entity only
func (e *ObjEntity) DeclaredLockType() LockType {
	return e.lockType
}

// SetDeclaredLockType sets the lock type of this entity
func (e *ObjEntity) SetDeclaredLockType(t LockType) {
	e.lockType = t
}

// LockType returns the effective lock type, inherited when none is declared
func (e *ObjEntity) LockType() LockType {
	for _, s := range append([]*ObjEntity{e}, e.superChain()...) {
		if s.lockType != LockNone {
			return s.lockType
		}
	}
	return LockNone
}

// AddAttribute adds a declared attribute
func (e *ObjEntity) AddAttribute(a *ObjAttribute) error {
	if a.entity != nil && a.entity != e {
		return NewConfigError(a.name, "attribute already belongs to entity %s", a.entity.name)
	}
	if !e.attributes.add(a) {
		return NewConfigError(e.name, "duplicate attribute %s", a.name)
	}
	a.entity = e
	return nil
}

// RemoveAttribute drops a declared attribute
func (e *ObjEntity) RemoveAttribute(name string) {
	if a, ok := e.attributes.remove(name); ok {
		a.entity = nil
	}
}

// AddAttributeOverride remaps an inherited attribute onto another db path
func (e *ObjEntity) AddAttributeOverride(name, dbAttributePath string) {
	if e.attributeOverrides == nil {
		e.attributeOverrides = make(map[string]string)
	}
	e.attributeOverrides[name] = dbAttributePath
}

// AttributeOverrides returns a copy of the declared overrides
func (e *ObjEntity) AttributeOverrides() map[string]string {
	c := make(map[string]string, len(e.attributeOverrides))
	for k, v := range e.attributeOverrides {
		c[k] = v
	}
	return c
}

// DeclaredAttribute returns an attribute declared on this entity only
func (e *ObjEntity) DeclaredAttribute(name string) *ObjAttribute {
	a, _ := e.attributes.get(name)
	return a
}

// ObjAttribute returns the named attribute, looking up the super entities and
// applying this entity's overrides to inherited ones
func (e *ObjEntity) ObjAttribute(name string) *ObjAttribute {
	return e.objAttribute(name, map[*ObjEntity]bool{})
}

func (e *ObjEntity) objAttribute(name string, seen map[*ObjEntity]bool) *ObjAttribute {
	if a, ok := e.attributes.get(name); ok {
		return a
	}
	seen[e] = true
	super := e.SuperEntity()
	if super == nil || seen[super] {
		return nil
	}
	a := super.objAttribute(name, seen)
	if a == nil {
		return nil
	}
	if path, ok := e.attributeOverrides[name]; ok {
		return a.withOverride(e, path)
	}
	return a
}

// Attribute implements Entity
func (e *ObjEntity) Attribute(name string) Attribute {
	if a := e.ObjAttribute(name); a != nil {
		return a
	}
	return nil
}

// DeclaredAttributes returns the attributes declared on this entity only
func (e *ObjEntity) DeclaredAttributes() []*ObjAttribute {
	return e.attributes.values()
}

// ObjAttributes returns declared attributes first, then inherited ones
func (e *ObjEntity) ObjAttributes() []*ObjAttribute {
	attrs := e.attributes.values()
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		seen[a.name] = true
	}
	for _, s := range e.superChain() {
		for _, a := range s.attributes.values() {
			if seen[a.name] {
				continue
			}
			seen[a.name] = true
			attrs = append(attrs, e.ObjAttribute(a.name))
		}
	}
	return attrs
}

// AddRelationship adds a declared relationship
func (e *ObjEntity) AddRelationship(r *ObjRelationship) error {
	if r.source != nil && r.source != e {
		return NewConfigError(r.name, "relationship already belongs to entity %s", r.source.name)
	}
	if !e.relationships.add(r) {
		return NewConfigError(e.name, "duplicate relationship %s", r.name)
	}
	r.source = e
	return nil
}

// RemoveRelationship drops a declared relationship
func (e *ObjEntity) RemoveRelationship(name string) {
	if r, ok := e.relationships.remove(name); ok {
		r.source = nil
	}
}

// DeclaredRelationships returns relationships declared on this entity only
func (e *ObjEntity) DeclaredRelationships() []*ObjRelationship {
	return e.relationships.values()
}

// ObjRelationship returns the named relationship, looking up super entities
func (e *ObjEntity) ObjRelationship(name string) *ObjRelationship {
	if r, ok := e.relationships.get(name); ok {
		return r
	}
	for _, s := range e.superChain() {
		if r, ok := s.relationships.get(name); ok {
			return r
		}
	}
	return nil
}

// Relationship implements Entity
func (e *ObjEntity) Relationship(name string) Relationship {
	if r := e.ObjRelationship(name); r != nil {
		return r
	}
	return nil
}

// ObjRelationships returns declared relationships first, then inherited ones
func (e *ObjEntity) ObjRelationships() []*ObjRelationship {
	rels := e.relationships.values()
	seen := make(map[string]bool, len(rels))
	for _, r := range rels {
		seen[r.name] = true
	}
	for _, s := range e.superChain() {
		for _, r := range s.relationships.values() {
			if !seen[r.name] {
				seen[r.name] = true
				rels = append(rels, r)
			}
		}
	}
	return rels
}

// PrimaryKeyNames returns the primary key columns of the mapped table
func (e *ObjEntity) PrimaryKeyNames() []string {
	if db := e.DbEntity(); db != nil {
		return db.PrimaryKeyNames()
	}
	return nil
}

// AttributeForDbAttribute finds the attribute mapped directly onto a column
func (e *ObjEntity) AttributeForDbAttribute(dbAttr *DbAttribute) *ObjAttribute {
	for _, a := range e.ObjAttributes() {
		if a.DbAttribute() == dbAttr {
			return a
		}
	}
	return nil
}

// RelationshipForDbRelationship finds the single hop relationship mapped onto r
func (e *ObjEntity) RelationshipForDbRelationship(r *DbRelationship) *ObjRelationship {
	for _, or := range e.ObjRelationships() {
		hops := or.DbRelationships()
		if len(hops) == 1 && hops[0] == r {
			return or
		}
	}
	return nil
}

// ResolvePath resolves a dotted object path starting at this entity
func (e *ObjEntity) ResolvePath(path string, aliases map[string]string) ([]PathComponent, error) {
	return resolvePath(e, path, aliases)
}

// superChain lists the ancestors nearest first, stopping at a cycle
func (e *ObjEntity) superChain() []*ObjEntity {
	var chain []*ObjEntity
	seen := map[*ObjEntity]bool{e: true}
	for s := e.SuperEntity(); s != nil && !seen[s]; s = s.SuperEntity() {
		chain = append(chain, s)
		seen[s] = true
	}
	return chain
}

// ObjAttribute is a property of a persistent class
type ObjAttribute struct {
	name            string
	entity          *ObjEntity
	Type            string
	dbAttributePath string
	UsedForLocking  bool
	Lazy            bool
}

// NewObjAttribute maps a property of type typ onto a db attribute path
func NewObjAttribute(name, typ, dbAttributePath string) *ObjAttribute {
	return &ObjAttribute{name: name, Type: typ, dbAttributePath: dbAttributePath}
}

func (a *ObjAttribute) attribute() {}

// Name of the property
func (a *ObjAttribute) Name() string {
	return a.name
}

// Entity implements Attribute
func (a *ObjAttribute) Entity() Entity {
	if a.entity == nil {
		return nil
	}
	return a.entity
}

// ObjEntity returns the entity the attribute was looked up through
func (a *ObjAttribute) ObjEntity() *ObjEntity {
	return a.entity
}

// DbAttributePath is the dotted db path of the mapped column
func (a *ObjAttribute) DbAttributePath() string {
	return a.dbAttributePath
}

// SetDbAttributePath remaps the attribute
func (a *ObjAttribute) SetDbAttributePath(path string) {
	a.dbAttributePath = path
}

// DbAttributeName is the last token of the db path
func (a *ObjAttribute) DbAttributeName() string {
	if i := strings.LastIndex(a.dbAttributePath, "."); i >= 0 {
		return a.dbAttributePath[i+1:]
	}
	return a.dbAttributePath
}

// IsFlattened reports whether the mapped column lives in a related table
func (a *ObjAttribute) IsFlattened() bool {
	return strings.Contains(a.dbAttributePath, ".")
}

// DbAttribute resolves the mapped column, nil when it can't be resolved
func (a *ObjAttribute) DbAttribute() *DbAttribute {
	if a.entity == nil || a.dbAttributePath == "" {
		return nil
	}
	db := a.entity.DbEntity()
	if db == nil {
		return nil
	}
	comps, err := db.ResolvePath(a.dbAttributePath, nil)
	if err != nil {
		return nil
	}
	col, _ := comps[len(comps)-1].Attribute.(*DbAttribute)
	return col
}

// IsPrimaryKey reports whether the mapped column is a primary key
func (a *ObjAttribute) IsPrimaryKey() bool {
	col := a.DbAttribute()
	return col != nil && col.IsPrimaryKey()
}

// IsMandatory reports whether the mapped column is mandatory
func (a *ObjAttribute) IsMandatory() bool {
	col := a.DbAttribute()
	return col != nil && col.Mandatory
}

func (a *ObjAttribute) withOverride(owner *ObjEntity, dbAttributePath string) *ObjAttribute {
	c := *a
	c.entity = owner
	c.dbAttributePath = dbAttributePath
	return &c
}
