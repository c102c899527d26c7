package mapping

import (
	"github.com/skuid/graphmap/exp"
)

// Primary key generation strategies
const (
	PkGeneratorAuto     = "auto"
	PkGeneratorSequence = "sequence"
	PkGeneratorTable    = "table"
)

// PkGenerator describes how a DbEntity gets new primary key values
type PkGenerator struct {
	Type      string `json:"type" yaml:"type"`
	Name      string `json:"name" yaml:"name"`
	CacheSize int    `json:"cacheSize" yaml:"cacheSize"`
}

/*
DbEntity represents a table or view. Its primary key list is kept in sync by
AddAttribute, RemoveAttribute and DbAttribute.SetPrimaryKey.
*/
type DbEntity struct {
	name          string
	dataMap       *DataMap
	Catalog       string
	Schema        string
	PkGenerator   *PkGenerator
	Qualifier     *exp.Expression
	attributes    registry[*DbAttribute]
	relationships registry[*DbRelationship]
	primaryKey    []*DbAttribute
	generated     []*DbAttribute
}

// NewDbEntity returns an empty DbEntity
func NewDbEntity(name string) *DbEntity {
	return &DbEntity{name: name}
}

func (e *DbEntity) entity() {}

// Name of the table
func (e *DbEntity) Name() string {
	return e.name
}

// FullyQualifiedName prefixes the name with the schema, if any
func (e *DbEntity) FullyQualifiedName() string {
	if e.Schema != "" {
		return e.Schema + "." + e.name
	}
	return e.name
}

// DataMap returns the owning map, nil until the entity is added to one
func (e *DbEntity) DataMap() *DataMap {
	return e.dataMap
}

// AddAttribute adds a to the entity, failing on duplicate names
func (e *DbEntity) AddAttribute(a *DbAttribute) error {
	if a.entity != nil && a.entity != e {
		return NewConfigError(a.name, "attribute already belongs to entity %s", a.entity.name)
	}
	if !e.attributes.add(a) {
		return NewConfigError(e.name, "duplicate attribute %s", a.name)
	}
	a.entity = e
	e.attributesChanged()
	return nil
}

// RemoveAttribute drops the named attribute
func (e *DbEntity) RemoveAttribute(name string) {
	if a, ok := e.attributes.remove(name); ok {
		a.entity = nil
		e.attributesChanged()
	}
}

// DbAttribute returns the named attribute or nil
func (e *DbEntity) DbAttribute(name string) *DbAttribute {
	a, _ := e.attributes.get(name)
	return a
}

// Attribute implements Entity
func (e *DbEntity) Attribute(name string) Attribute {
	if a := e.DbAttribute(name); a != nil {
		return a
	}
	return nil
}

// DbAttributes returns all attributes in the order they were added
func (e *DbEntity) DbAttributes() []*DbAttribute {
	return e.attributes.values()
}

// PrimaryKeys returns the primary key attributes in attribute order
func (e *DbEntity) PrimaryKeys() []*DbAttribute {
	return append([]*DbAttribute(nil), e.primaryKey...)
}

// PrimaryKeyNames returns the primary key column names
func (e *DbEntity) PrimaryKeyNames() []string {
	names := make([]string, 0, len(e.primaryKey))
	for _, a := range e.primaryKey {
		names = append(names, a.name)
	}
	return names
}

// GeneratedAttributes returns the attributes filled in by the database
func (e *DbEntity) GeneratedAttributes() []*DbAttribute {
	return append([]*DbAttribute(nil), e.generated...)
}

// AddRelationship adds r to the entity, failing on duplicate names
func (e *DbEntity) AddRelationship(r *DbRelationship) error {
	if r.source != nil && r.source != e {
		return NewConfigError(r.name, "relationship already belongs to entity %s", r.source.name)
	}
	if !e.relationships.add(r) {
		return NewConfigError(e.name, "duplicate relationship %s", r.name)
	}
	r.source = e
	e.dataMap.relationshipsChanged()
	return nil
}

// RemoveRelationship drops the named relationship
func (e *DbEntity) RemoveRelationship(name string) {
	if r, ok := e.relationships.remove(name); ok {
		r.source = nil
		e.dataMap.relationshipsChanged()
	}
}

// DbRelationship returns the named relationship or nil
func (e *DbEntity) DbRelationship(name string) *DbRelationship {
	r, _ := e.relationships.get(name)
	return r
}

// Relationship implements Entity
func (e *DbEntity) Relationship(name string) Relationship {
	if r := e.DbRelationship(name); r != nil {
		return r
	}
	return nil
}

// DbRelationships returns all relationships in the order they were added
func (e *DbEntity) DbRelationships() []*DbRelationship {
	return e.relationships.values()
}

// ResolvePath resolves a dotted db path starting at this entity
func (e *DbEntity) ResolvePath(path string, aliases map[string]string) ([]PathComponent, error) {
	return resolvePath(e, path, aliases)
}

func (e *DbEntity) attributesChanged() {
	e.primaryKey = e.primaryKey[:0]
	e.generated = e.generated[:0]
	for _, a := range e.attributes.values() {
		if a.primaryKey {
			e.primaryKey = append(e.primaryKey, a)
		}
		if a.generated {
			e.generated = append(e.generated, a)
		}
	}
	// to-PK checks of relationships depend on key membership
	e.dataMap.relationshipsChanged()
}

// DbAttribute is a column of a DbEntity
type DbAttribute struct {
	name       string
	entity     *DbEntity
	Type       string
	MaxLength  int
	Scale      int
	Mandatory  bool
	primaryKey bool
	generated  bool
}

// NewDbAttribute returns a column of the given database type
func NewDbAttribute(name, typ string) *DbAttribute {
	return &DbAttribute{name: name, Type: typ}
}

// NewPrimaryKey returns a primary key column
func NewPrimaryKey(name, typ string) *DbAttribute {
	return &DbAttribute{name: name, Type: typ, primaryKey: true, Mandatory: true}
}

func (a *DbAttribute) attribute() {}

// Name of the column
func (a *DbAttribute) Name() string {
	return a.name
}

// Entity implements Attribute
func (a *DbAttribute) Entity() Entity {
	if a.entity == nil {
		return nil
	}
	return a.entity
}

// DbEntity returns the owning table
func (a *DbAttribute) DbEntity() *DbEntity {
	return a.entity
}

// IsPrimaryKey reports primary key membership
func (a *DbAttribute) IsPrimaryKey() bool {
	return a.primaryKey
}

// SetPrimaryKey changes primary key membership and updates the owner's key list
func (a *DbAttribute) SetPrimaryKey(pk bool) {
	if a.primaryKey == pk {
		return
	}
	a.primaryKey = pk
	if a.entity != nil {
		a.entity.attributesChanged()
	}
}

// IsGenerated reports whether the database fills the value in
func (a *DbAttribute) IsGenerated() bool {
	return a.generated
}

// SetGenerated marks the column as database generated
func (a *DbAttribute) SetGenerated(generated bool) {
	if a.generated == generated {
		return
	}
	a.generated = generated
	if a.entity != nil {
		a.entity.attributesChanged()
	}
}

// IsForeignKey reports whether a relationship joins this column to a primary key
func (a *DbAttribute) IsForeignKey() bool {
	if a.entity == nil {
		return false
	}
	for _, r := range a.entity.DbRelationships() {
		for _, j := range r.joins {
			if j.SourceName != a.name {
				continue
			}
			if t := j.Target(); t != nil && t.primaryKey {
				return true
			}
		}
	}
	return false
}
