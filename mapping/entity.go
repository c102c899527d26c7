/*
Package mapping holds the two parallel entity graphs: DbEntity nodes describe
tables and ObjEntity nodes describe persistent classes. Relationships name their
target entity and resolve it through the owning DataMap on every use, so maps
can be loaded in any order and reloaded without dangling pointers.
*/
package mapping

// Entity is a named node owning attributes and relationships. It is either a
// *DbEntity or an *ObjEntity.
type Entity interface {
	Name() string
	DataMap() *DataMap
	Attribute(name string) Attribute
	Relationship(name string) Relationship
	ResolvePath(path string, aliases map[string]string) ([]PathComponent, error)
	entity()
}

// Attribute is either a *DbAttribute or an *ObjAttribute
type Attribute interface {
	Name() string
	Entity() Entity
	attribute()
}

// Relationship is either a *DbRelationship or an *ObjRelationship
type Relationship interface {
	Name() string
	SourceEntity() Entity
	TargetEntityName() string
	TargetEntity() Entity
	IsToMany() bool
	relationship()
}

type named interface {
	Name() string
}

// registry keeps named values in insertion order
type registry[T named] struct {
	byName map[string]T
	order  []string
}

func (r *registry[T]) add(v T) bool {
	if r.byName == nil {
		r.byName = make(map[string]T)
	}
	if _, ok := r.byName[v.Name()]; ok {
		return false
	}
	r.byName[v.Name()] = v
	r.order = append(r.order, v.Name())
	return true
}

func (r *registry[T]) get(name string) (T, bool) {
	v, ok := r.byName[name]
	return v, ok
}

func (r *registry[T]) remove(name string) (T, bool) {
	v, ok := r.byName[name]
	if !ok {
		return v, false
	}
	delete(r.byName, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return v, true
}

func (r *registry[T]) values() []T {
	vals := make([]T, 0, len(r.order))
	for _, n := range r.order {
		vals = append(vals, r.byName[n])
	}
	return vals
}

func (r *registry[T]) len() int {
	return len(r.order)
}
