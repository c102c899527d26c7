package query

import (
	"github.com/skuid/graphmap/exp"
	"github.com/skuid/graphmap/mapping"
)

// Query is anything that can be resolved against a mapping and routed to
// the engines that run it
type Query interface {
	MetaData(res *mapping.EntityResolver) (*Metadata, error)
	Route(router Router, res *mapping.EntityResolver, substituted Query) error
}

// Property is a named column of a column query
type Property struct {
	Name       string
	Expression *exp.Expression
}

// Column returns an unnamed column for an object path
func Column(path string) Property {
	return Property{Expression: exp.Path(path)}
}

/*
SelectQuery selects objects, data rows or columns from a root. It is built
with chained setters. Every setter drops the memoized metadata, so a query
can be changed and resolved again.

A SelectQuery is not safe for concurrent use.
*/
type SelectQuery struct {
	root               Root
	where              *exp.Expression
	having             *exp.Expression
	orderings          []Ordering
	prefetches         *PrefetchTreeNode
	columns            []Property
	distinct           bool
	limit              int
	offset             int
	pageSize           int
	statementFetchSize int
	cacheStrategy      CacheStrategy
	cacheGroup         string
	fetchDataRows      bool
	engineName         string

	memo *memo
}

type memo struct {
	resolver *mapping.EntityResolver
	md       *Metadata
}

// NewSelect returns a query selecting from root
func NewSelect(root Root) *SelectQuery {
	return &SelectQuery{root: root}
}

func (q *SelectQuery) changed() *SelectQuery {
	q.memo = nil
	return q
}

// Where replaces the qualifier
func (q *SelectQuery) Where(e *exp.Expression) *SelectQuery {
	q.where = e
	return q.changed()
}

// And adds conditions to the qualifier
func (q *SelectQuery) And(e ...*exp.Expression) *SelectQuery {
	q.where = exp.And(append([]*exp.Expression{q.where}, e...)...)
	return q.changed()
}

// Or adds alternatives to the qualifier
func (q *SelectQuery) Or(e ...*exp.Expression) *SelectQuery {
	q.where = exp.Or(append([]*exp.Expression{q.where}, e...)...)
	return q.changed()
}

// Having sets the qualifier on aggregated columns
func (q *SelectQuery) Having(e *exp.Expression) *SelectQuery {
	q.having = e
	return q.changed()
}

// OrderBy replaces the orderings
func (q *SelectQuery) OrderBy(o ...Ordering) *SelectQuery {
	q.orderings = append([]Ordering(nil), o...)
	return q.changed()
}

// AddOrderBy appends orderings
func (q *SelectQuery) AddOrderBy(o ...Ordering) *SelectQuery {
	q.orderings = append(q.orderings, o...)
	return q.changed()
}

// Prefetch adds a prefetch of path
func (q *SelectQuery) Prefetch(path string, semantics Semantics) *SelectQuery {
	if q.prefetches == nil {
		q.prefetches = NewPrefetchTree()
	}
	q.prefetches.AddPath(path, semantics)
	return q.changed()
}

// AddPrefetch merges every prefetch of tree
func (q *SelectQuery) AddPrefetch(tree *PrefetchTreeNode) *SelectQuery {
	if q.prefetches == nil {
		q.prefetches = NewPrefetchTree()
	}
	q.prefetches.Merge(tree)
	return q.changed()
}

// RemovePrefetch drops the prefetch of path
func (q *SelectQuery) RemovePrefetch(path string) *SelectQuery {
	if q.prefetches != nil {
		q.prefetches.RemovePath(path)
	}
	return q.changed()
}

// Columns turns the query into a column query
func (q *SelectQuery) Columns(p ...Property) *SelectQuery {
	q.columns = append([]Property(nil), p...)
	return q.changed()
}

// Distinct suppresses duplicate rows
func (q *SelectQuery) Distinct(distinct bool) *SelectQuery {
	q.distinct = distinct
	return q.changed()
}

// Limit caps the number of rows fetched. Zero is no limit.
func (q *SelectQuery) Limit(limit int) *SelectQuery {
	q.limit = limit
	return q.changed()
}

// Offset skips rows
func (q *SelectQuery) Offset(offset int) *SelectQuery {
	q.offset = offset
	return q.changed()
}

// PageSize fetches objects in pages, resolving only their keys up front
func (q *SelectQuery) PageSize(size int) *SelectQuery {
	q.pageSize = size
	return q.changed()
}

// StatementFetchSize hints the driver how many rows to read at a time
func (q *SelectQuery) StatementFetchSize(size int) *SelectQuery {
	q.statementFetchSize = size
	return q.changed()
}

// CacheStrategy sets how results may be cached, and the cache groups
func (q *SelectQuery) CacheStrategy(s CacheStrategy, group string) *SelectQuery {
	q.cacheStrategy = s
	q.cacheGroup = group
	return q.changed()
}

// LocalCache caches results for the caller only
func (q *SelectQuery) LocalCache(group string) *SelectQuery {
	return q.CacheStrategy(LocalCache, group)
}

// SharedCache caches results for every caller of the runtime
func (q *SelectQuery) SharedCache(group string) *SelectQuery {
	return q.CacheStrategy(SharedCache, group)
}

// FetchDataRows returns raw rows instead of objects
func (q *SelectQuery) FetchDataRows(dataRows bool) *SelectQuery {
	q.fetchDataRows = dataRows
	return q.changed()
}

// EngineName routes the query to a named engine instead of the one of its map
func (q *SelectQuery) EngineName(name string) *SelectQuery {
	q.engineName = name
	return q.changed()
}

// Root returns what the query selects from
func (q *SelectQuery) Root() Root {
	return q.root
}

// Qualifier returns the where clause
func (q *SelectQuery) Qualifier() *exp.Expression {
	return q.where
}

// HavingQualifier returns the having clause
func (q *SelectQuery) HavingQualifier() *exp.Expression {
	return q.having
}

// Orderings returns the sort specs
func (q *SelectQuery) Orderings() []Ordering {
	return q.orderings
}

// SelectedColumns returns the columns of a column query
func (q *SelectQuery) SelectedColumns() []Property {
	return q.columns
}

/*
MetaData resolves the query against res. The result is memoized until the
query is changed or resolved against another resolver.
*/
func (q *SelectQuery) MetaData(res *mapping.EntityResolver) (*Metadata, error) {
	if q.memo != nil && q.memo.resolver == res {
		return q.memo.md, nil
	}

	md := &Metadata{
		FetchLimit:         q.limit,
		FetchOffset:        q.offset,
		PageSize:           q.pageSize,
		StatementFetchSize: q.statementFetchSize,
		FetchingDataRows:   q.fetchDataRows,
		Distinct:           q.distinct,
		CacheStrategy:      q.cacheStrategy,
		CacheGroup:         q.cacheGroup,
		PrefetchTree:       q.prefetches,
		EngineName:         q.engineName,
	}
	if err := q.root.resolve(res, md); err != nil {
		return nil, err
	}

	aliases, err := resolveAliases(q.where, q.having, q.orderings, q.columns)
	if err != nil {
		return nil, err
	}
	md.PathSplitAliases = aliases

	shape := &shapeBuilder{md: md, aliases: aliases, joints: q.prefetches}
	if md.ResultShape, err = shape.build(q.columns); err != nil {
		return nil, err
	}

	if md.CacheStrategy != NoCache {
		md.CacheKey = cacheKey(q, md, res.ValueTypes())
	}

	q.memo = &memo{resolver: res, md: md}
	return md, nil
}

/*
Route hands the query to the engine of its map, then routes a separate query
for every disjoint prefetch. Paginated queries and data row queries don't
prefetch: their objects are only resolved when a page is read.
*/
func (q *SelectQuery) Route(router Router, res *mapping.EntityResolver, substituted Query) error {
	md, err := q.MetaData(res)
	if err != nil {
		return err
	}
	if err := routeTo(router, md, q, substituted); err != nil {
		return err
	}
	if md.PageSize > 0 || md.FetchingDataRows || md.PrefetchTree == nil || md.ObjEntity == nil {
		return nil
	}
	return routePrefetches(router, res, q, md)
}

func routeTo(router Router, md *Metadata, q, substituted Query) error {
	engine, err := engineFor(router, md)
	if err != nil {
		return err
	}
	if substituted == nil {
		substituted = q
	}
	router.Route(engine, q, substituted)
	return nil
}
