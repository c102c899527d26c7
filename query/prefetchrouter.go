package query

import (
	"github.com/skuid/graphmap/exp"
	"github.com/skuid/graphmap/mapping"
)

/*
PrefetchSelectQuery fetches the objects of one disjoint prefetch. It is
routed next to the query it prefetches for and returns the related objects
plus whatever columns are needed to attach them to their parents.
*/
type PrefetchSelectQuery struct {
	*SelectQuery
	PrefetchPath string
	Relationship *mapping.ObjRelationship
	// Reversed is true when the query is rooted at the prefetched entity and
	// reached the parent qualifier through reverse relationships
	Reversed bool
}

// Route hands the query to its engine. Prefetch queries never route nested
// prefetches themselves: those are routed from the top level query.
func (q *PrefetchSelectQuery) Route(router Router, res *mapping.EntityResolver, substituted Query) error {
	md, err := q.MetaData(res)
	if err != nil {
		return err
	}
	return routeTo(router, md, q, substituted)
}

func routePrefetches(router Router, res *mapping.EntityResolver, q *SelectQuery, md *Metadata) error {
	p := &prefetchRouter{router: router, res: res, query: q, md: md}
	md.PrefetchTree.Traverse(p)
	return p.err
}

// prefetchRouter routes a query per disjoint node of a prefetch tree. Joint
// nodes are part of the parent query's result shape already.
type prefetchRouter struct {
	router Router
	res    *mapping.EntityResolver
	query  *SelectQuery
	md     *Metadata
	err    error
}

func (p *prefetchRouter) StartPhantom(node *PrefetchTreeNode) bool      { return p.err == nil }
func (p *prefetchRouter) StartJoint(node *PrefetchTreeNode) bool        { return p.err == nil }
func (p *prefetchRouter) StartDisjointByID(node *PrefetchTreeNode) bool { return p.err == nil }
func (p *prefetchRouter) StartDisjoint(node *PrefetchTreeNode) bool     { return p.disjoint(node) }
func (p *prefetchRouter) StartUnknown(node *PrefetchTreeNode) bool      { return p.disjoint(node) }
func (p *prefetchRouter) Finish(node *PrefetchTreeNode)                 {}

func (p *prefetchRouter) disjoint(node *PrefetchTreeNode) bool {
	if p.err != nil {
		return false
	}
	q, err := p.prefetchQuery(node)
	if err != nil {
		p.err = err
		return false
	}
	if err := q.Route(p.router, p.res, nil); err != nil {
		p.err = err
		return false
	}
	return true
}

/*
prefetchQuery builds the query for a disjoint node. When every relationship on
the path can be reversed, the query is rooted at the prefetched entity and the
parent qualifier is translated onto it. Otherwise it selects the related
objects as a full object column of the parent entity, next to the parent's
primary key.
*/
func (p *prefetchRouter) prefetchQuery(node *PrefetchTreeNode) (*PrefetchSelectQuery, error) {
	entity := p.md.ObjEntity
	path := node.Path()

	comps, err := entity.ResolvePath(path, nil)
	if err != nil {
		return nil, err
	}
	last := comps[len(comps)-1]
	rel, ok := last.Relationship.(*mapping.ObjRelationship)
	if !ok {
		return nil, mapping.NewPathError("invalid prefetch", entity.Name(), path, last.Name)
	}
	target := rel.Target()
	if target == nil {
		return nil, mapping.NewPathError("target entity of relationship is not mapped", entity.Name(), path, last.Name)
	}

	qualifier := p.query.where
	if tree := p.res.InheritanceTree(entity.Name()); tree != nil {
		qualifier = exp.And(qualifier, tree.QualifierForEntityAndSubclasses())
	}

	joints := NewPrefetchTree()
	for _, j := range node.AdjacentJointNodes() {
		joints.AddPath(j.PathFrom(node), Joint)
	}

	pq := &PrefetchSelectQuery{PrefetchPath: path, Relationship: rel}
	var columns []Property

	if reversible(comps) {
		where, err := entity.TranslateToRelatedEntity(qualifier, path)
		if err != nil {
			return nil, err
		}
		pq.Reversed = true
		pq.SelectQuery = NewSelect(RootForObjEntity(target)).Where(where)
		columns = append(columns, Property{Name: path, Expression: exp.FullObject(nil)})

		if rel.IsSourceIndependentFromTargetChange() {
			rev, err := rel.ReverseDbRelationshipPath()
			if err != nil {
				return nil, err
			}
			for _, pk := range rel.Source().DbEntity().PrimaryKeyNames() {
				columns = append(columns, dbColumn(rev+"."+pk))
			}
		}
	} else {
		pq.SelectQuery = NewSelect(p.query.root).Where(qualifier)
		columns = append(columns, Property{Name: path, Expression: exp.FullObject(exp.Path(path))})
		for _, pk := range entity.DbEntity().PrimaryKeyNames() {
			columns = append(columns, dbColumn(pk))
		}
	}

	pq.Columns(columns...).
		EngineName(p.query.engineName).
		CacheStrategy(p.query.cacheStrategy, p.query.cacheGroup)
	if !joints.IsLeaf() {
		pq.AddPrefetch(joints)
	}
	return pq, nil
}

// dbColumn selects a db path under the label row readers look it up by
func dbColumn(path string) Property {
	return Property{Name: "db:" + path, Expression: exp.DbPath(path)}
}

// reversible is true when each relationship of a path can be walked back,
// either as an object relationship or through its table joins
func reversible(comps []mapping.PathComponent) bool {
	for _, c := range comps {
		rel, ok := c.Relationship.(*mapping.ObjRelationship)
		if !ok {
			return false
		}
		if rel.ReverseRelationship() != nil {
			continue
		}
		if _, err := rel.ReverseDbRelationshipPath(); err != nil {
			return false
		}
	}
	return true
}
