package mapping

import (
	"sort"

	"github.com/skuid/graphmap/exp"
)

// EntityInheritanceTree is a node of an ObjEntity hierarchy
type EntityInheritanceTree struct {
	entity   *ObjEntity
	parent   *EntityInheritanceTree
	children []*EntityInheritanceTree
}

// NewEntityInheritanceTree returns a single node tree, mostly for tests
func NewEntityInheritanceTree(entity *ObjEntity, children ...*EntityInheritanceTree) *EntityInheritanceTree {
	t := &EntityInheritanceTree{entity: entity}
	for _, c := range children {
		c.parent = t
		t.children = append(t.children, c)
	}
	return t
}

// Entity of this node
func (t *EntityInheritanceTree) Entity() *ObjEntity {
	return t.entity
}

// Parent node, nil at the hierarchy root
func (t *EntityInheritanceTree) Parent() *EntityInheritanceTree {
	return t.parent
}

// Children are the direct subentities, sorted by name
func (t *EntityInheritanceTree) Children() []*EntityInheritanceTree {
	return append([]*EntityInheritanceTree(nil), t.children...)
}

// AllSubentities lists every entity below this node, depth first
func (t *EntityInheritanceTree) AllSubentities() []*ObjEntity {
	var all []*ObjEntity
	for _, c := range t.children {
		all = append(all, c.entity)
		all = append(all, c.AllSubentities()...)
	}
	return all
}

/*
QualifierForEntityAndSubclasses ORs the entity's own qualifier with those of
every subentity. A nil result means "match all": an entity without a qualifier
includes every row, so a nil anywhere in the hierarchy wins.
*/
func (t *EntityInheritanceTree) QualifierForEntityAndSubclasses() *exp.Expression {
	q := t.entity.Qualifier
	if q == nil {
		return nil
	}
	ops := []*exp.Expression{q}
	for _, c := range t.children {
		cq := c.QualifierForEntityAndSubclasses()
		if cq == nil {
			return nil
		}
		ops = append(ops, cq)
	}
	return exp.Or(ops...)
}

func (t *EntityInheritanceTree) sortChildren() {
	sort.Slice(t.children, func(i, j int) bool {
		return t.children[i].entity.name < t.children[j].entity.name
	})
}
