package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/skuid/graphmap/exp"
	"github.com/skuid/graphmap/identity"
	"github.com/skuid/graphmap/mapping"
)

/*
ByIDSelect selects objects by primary key. The select query it stands for is
built when it is first resolved, since the key columns come from the mapping.
*/
type ByIDSelect struct {
	root       Root
	ids        []interface{}
	objectID   *identity.ObjectID
	prefetches *PrefetchTreeNode
	cache      CacheStrategy
	cacheGroup string
	dataRows   bool

	resolver *mapping.EntityResolver
	query    *SelectQuery
}

// SelectByID selects objects of a single column key entity by key values
func SelectByID(root Root, ids ...interface{}) *ByIDSelect {
	return &ByIDSelect{root: root, ids: ids}
}

// SelectByObjectID selects the object an ID points to. Compound keys are
// fine here since the ID names every key column.
func SelectByObjectID(id *identity.ObjectID) *ByIDSelect {
	return &ByIDSelect{root: EntityRoot(id.EntityName()), objectID: id}
}

func (q *ByIDSelect) changed() *ByIDSelect {
	q.query = nil
	q.resolver = nil
	return q
}

// Prefetch adds a prefetch of path
func (q *ByIDSelect) Prefetch(path string, semantics Semantics) *ByIDSelect {
	if q.prefetches == nil {
		q.prefetches = NewPrefetchTree()
	}
	q.prefetches.AddPath(path, semantics)
	return q.changed()
}

// LocalCache caches results for the caller only
func (q *ByIDSelect) LocalCache(group string) *ByIDSelect {
	q.cache, q.cacheGroup = LocalCache, group
	return q.changed()
}

// SharedCache caches results for every caller of the runtime
func (q *ByIDSelect) SharedCache(group string) *ByIDSelect {
	q.cache, q.cacheGroup = SharedCache, group
	return q.changed()
}

// FetchDataRows returns raw rows instead of objects
func (q *ByIDSelect) FetchDataRows(dataRows bool) *ByIDSelect {
	q.dataRows = dataRows
	return q.changed()
}

func (q *ByIDSelect) selectQuery(res *mapping.EntityResolver) (*SelectQuery, error) {
	if q.query != nil && q.resolver == res {
		return q.query, nil
	}

	md := &Metadata{}
	if err := q.root.resolve(res, md); err != nil {
		return nil, err
	}
	if md.DbEntity == nil {
		return nil, mapping.NewConfigError(q.root.String(), "%w: no table to select by id from", ErrUnrecognizedEntity)
	}

	var where *exp.Expression
	if q.objectID != nil {
		snapshot := q.objectID.IDSnapshot()
		keys := make([]string, 0, len(snapshot))
		for k := range snapshot {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		matches := make([]*exp.Expression, 0, len(keys))
		for _, k := range keys {
			matches = append(matches, exp.MatchDb(k, snapshot[k]))
		}
		where = exp.And(matches...)
		if where == nil {
			return nil, mapping.NewPrimaryKeyError("object has no permanent id", md.DbEntity.Name(), "")
		}
	} else {
		pks := md.DbEntity.PrimaryKeyNames()
		if len(pks) != 1 {
			return nil, mapping.NewPrimaryKeyError(
				fmt.Sprintf("expected a single column primary key, got %d", len(pks)),
				md.DbEntity.Name(), strings.Join(pks, ","),
			)
		}
		switch len(q.ids) {
		case 0:
			return nil, mapping.NewPrimaryKeyError("no id values", md.DbEntity.Name(), pks[0])
		case 1:
			where = exp.MatchDb(pks[0], q.ids[0])
		default:
			where = exp.In(exp.DbPath(pks[0]), q.ids...)
		}
	}

	sq := NewSelect(q.root).Where(where).CacheStrategy(q.cache, q.cacheGroup).FetchDataRows(q.dataRows)
	if q.prefetches != nil {
		sq.AddPrefetch(q.prefetches)
	}
	q.query, q.resolver = sq, res
	return sq, nil
}

// MetaData implements Query
func (q *ByIDSelect) MetaData(res *mapping.EntityResolver) (*Metadata, error) {
	sq, err := q.selectQuery(res)
	if err != nil {
		return nil, err
	}
	return sq.MetaData(res)
}

// Route routes the select query this one stands for
func (q *ByIDSelect) Route(router Router, res *mapping.EntityResolver, substituted Query) error {
	sq, err := q.selectQuery(res)
	if err != nil {
		return err
	}
	if substituted == nil {
		substituted = q
	}
	return sq.Route(router, res, substituted)
}

/*
FromDescriptor builds the select query a named query of a mapping describes.
The qualifier keeps its parameters, bind them with BindParams.
*/
func FromDescriptor(d *mapping.QueryDescriptor) (*SelectQuery, error) {
	root := EntityRoot(d.Root)
	if d.RootIsTable {
		root = DbEntityRoot(d.Root)
	}
	q := NewSelect(root)

	if d.Qualifier != "" {
		where, err := exp.Parse(d.Qualifier)
		if err != nil {
			return nil, mapping.NewConfigError(d.Name(), "invalid qualifier: %w", err)
		}
		q.Where(where)
	}
	for _, o := range d.Orderings {
		q.AddOrderBy(Ordering{
			Expression:      exp.Path(o.Path),
			Descending:      o.Descending,
			CaseInsensitive: o.CaseInsensitive,
		})
	}
	for _, p := range d.Prefetches {
		q.Prefetch(p.Path, ParseSemantics(p.Semantics))
	}

	strategy, err := ParseCacheStrategy(d.CacheStrategy)
	if err != nil {
		return nil, mapping.NewConfigError(d.Name(), "%w", err)
	}
	return q.Limit(d.FetchLimit).
		Offset(d.FetchOffset).
		PageSize(d.PageSize).
		CacheStrategy(strategy, d.CacheGroup).
		FetchDataRows(d.FetchDataRows), nil
}

// NamedQuery builds the named query of res with its parameters bound.
// Conditions on missing parameters are dropped.
func NamedQuery(res *mapping.EntityResolver, name string, params map[string]interface{}) (*SelectQuery, error) {
	d := res.QueryDescriptor(name)
	if d == nil {
		return nil, mapping.NewConfigError(name, "no such query")
	}
	q, err := FromDescriptor(d)
	if err != nil {
		return nil, err
	}
	return q.BindParams(params)
}

// BindParams replaces the named parameters of the qualifier. Conditions on
// parameters missing from params are dropped.
func (q *SelectQuery) BindParams(params map[string]interface{}) (*SelectQuery, error) {
	if q.where == nil {
		return q, nil
	}
	where, err := q.where.Params(params, true)
	if err != nil {
		return nil, err
	}
	return q.Where(where), nil
}
