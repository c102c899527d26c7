package query

import (
	"fmt"
	"strings"

	"github.com/skuid/graphmap/mapping"
)

/*
SQLSelect runs raw SQL against the engine of a data map or entity. Rows of an
entity rooted query are read into objects of that entity unless data rows are
requested. Related objects can only be prefetched with joint or disjoint by id
semantics, since a raw statement can't be rewritten into prefetch queries.
*/
type SQLSelect struct {
	root          Root
	sql           string
	args          []interface{}
	prefetches    *PrefetchTreeNode
	limit         int
	pageSize      int
	cacheStrategy CacheStrategy
	cacheGroup    string
	fetchDataRows bool
	engineName    string

	memo *memo
}

// NewSQLSelect returns a raw query. Args are bound to the statement's
// placeholders in order.
func NewSQLSelect(root Root, sql string, args ...interface{}) *SQLSelect {
	return &SQLSelect{root: root, sql: sql, args: args}
}

func (q *SQLSelect) changed() *SQLSelect {
	q.memo = nil
	return q
}

// SQL returns the statement text
func (q *SQLSelect) SQL() string {
	return q.sql
}

// Args returns the statement arguments
func (q *SQLSelect) Args() []interface{} {
	return q.args
}

// Params replaces the statement arguments
func (q *SQLSelect) Params(args ...interface{}) *SQLSelect {
	q.args = args
	return q.changed()
}

// Prefetch adds a prefetch of path
func (q *SQLSelect) Prefetch(path string, semantics Semantics) *SQLSelect {
	if q.prefetches == nil {
		q.prefetches = NewPrefetchTree()
	}
	q.prefetches.AddPath(path, semantics)
	return q.changed()
}

// Limit caps the number of rows read
func (q *SQLSelect) Limit(limit int) *SQLSelect {
	q.limit = limit
	return q.changed()
}

// PageSize reads objects in pages
func (q *SQLSelect) PageSize(size int) *SQLSelect {
	q.pageSize = size
	return q.changed()
}

// CacheStrategy sets how results may be cached
func (q *SQLSelect) CacheStrategy(s CacheStrategy, group string) *SQLSelect {
	q.cacheStrategy = s
	q.cacheGroup = group
	return q.changed()
}

// FetchDataRows returns raw rows instead of objects
func (q *SQLSelect) FetchDataRows(dataRows bool) *SQLSelect {
	q.fetchDataRows = dataRows
	return q.changed()
}

// EngineName routes the query to a named engine
func (q *SQLSelect) EngineName(name string) *SQLSelect {
	q.engineName = name
	return q.changed()
}

func (q *SQLSelect) String() string {
	return fmt.Sprintf("sql select on %s", q.root)
}

// MetaData implements Query
func (q *SQLSelect) MetaData(res *mapping.EntityResolver) (*Metadata, error) {
	if q.memo != nil && q.memo.resolver == res {
		return q.memo.md, nil
	}

	if q.prefetches != nil {
		check := &sqlPrefetchCheck{}
		q.prefetches.Traverse(check)
		if check.bad != nil {
			return nil, NewStructuralError(q.String(), "%s prefetch of '%s' is not supported, use joint or disjointById", check.bad.Semantics, check.bad.Path())
		}
	}

	md := &Metadata{
		FetchLimit:       q.limit,
		PageSize:         q.pageSize,
		FetchingDataRows: q.fetchDataRows,
		CacheStrategy:    q.cacheStrategy,
		CacheGroup:       q.cacheGroup,
		PrefetchTree:     q.prefetches,
		EngineName:       q.engineName,
	}
	if err := q.root.resolve(res, md); err != nil {
		return nil, err
	}

	if md.ObjEntity != nil && !md.FetchingDataRows {
		shape := &shapeBuilder{md: md, joints: q.prefetches}
		seg, err := shape.entitySegment("", md.ObjEntity, md.DbEntity, "", "")
		if err != nil {
			return nil, err
		}
		md.ResultShape = []ResultSegment{seg}
	}

	if md.CacheStrategy != NoCache {
		md.CacheKey = q.cacheKey(md, res.ValueTypes())
	}

	q.memo = &memo{resolver: res, md: md}
	return md, nil
}

func (q *SQLSelect) cacheKey(md *Metadata, types *mapping.ValueTypeRegistry) string {
	k := keyValue{types: types}
	var b strings.Builder
	b.WriteString(rootKeyName(md))
	b.WriteString("/sql:")
	b.WriteString(q.sql)
	for _, a := range q.args {
		b.WriteString("/a:")
		b.WriteString(k.format(a))
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, "/l%d", q.limit)
	}
	if q.prefetches != nil {
		q.prefetches.Traverse(&prefetchKey{b: &b})
	}
	return b.String()
}

// Route implements Query
func (q *SQLSelect) Route(router Router, res *mapping.EntityResolver, substituted Query) error {
	md, err := q.MetaData(res)
	if err != nil {
		return err
	}
	return routeTo(router, md, q, substituted)
}

// sqlPrefetchCheck finds the first prefetch a raw query can't serve
type sqlPrefetchCheck struct {
	bad *PrefetchTreeNode
}

func (c *sqlPrefetchCheck) reject(node *PrefetchTreeNode) bool {
	if c.bad == nil {
		c.bad = node
	}
	return false
}

func (c *sqlPrefetchCheck) StartPhantom(node *PrefetchTreeNode) bool      { return c.bad == nil }
func (c *sqlPrefetchCheck) StartDisjoint(node *PrefetchTreeNode) bool     { return c.reject(node) }
func (c *sqlPrefetchCheck) StartDisjointByID(node *PrefetchTreeNode) bool { return c.bad == nil }
func (c *sqlPrefetchCheck) StartJoint(node *PrefetchTreeNode) bool        { return c.bad == nil }
func (c *sqlPrefetchCheck) StartUnknown(node *PrefetchTreeNode) bool      { return c.reject(node) }
func (c *sqlPrefetchCheck) Finish(node *PrefetchTreeNode)                 {}
