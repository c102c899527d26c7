package graphmap

import (
	"context"

	"go.uber.org/zap"

	"github.com/skuid/graphmap/batch"
	"github.com/skuid/graphmap/cache"
	"github.com/skuid/graphmap/query"
	"github.com/skuid/graphmap/sqlengine"
)

/*
Session is one caller's view of a Runtime. Queries with a local cache
strategy are cached for the session only, shared strategies use the runtime's
cache. A Session is not safe for concurrent use.
*/
type Session struct {
	runtime *Runtime
	local   *cache.QueryCache
}

// LocalCache returns the cache private to the session
func (s *Session) LocalCache() *cache.QueryCache {
	return s.local
}

func (s *Session) cacheFor(md *query.Metadata) *cache.QueryCache {
	switch md.CacheStrategy {
	case query.LocalCache, query.LocalCacheRefresh:
		return s.local
	case query.SharedCache, query.SharedCacheRefresh:
		return s.runtime.shared
	}
	return nil
}

/*
Select routes q and runs every routed query on its engine. The first route is
the query itself, every later one a disjoint prefetch. Cached results are
returned without touching an engine; refresh strategies always run and then
replace the cached entry.
*/
func (s *Session) Select(ctx context.Context, q query.Query) (*Result, error) {
	r := s.runtime
	md, err := q.MetaData(r.resolver)
	if err != nil {
		return nil, err
	}

	qc := s.cacheFor(md)
	if qc != nil {
		cached := &Result{}
		hit, err := qc.Get(md, cached)
		if err != nil {
			return nil, err
		}
		if hit {
			r.logger.Debug("select served from cache",
				zap.String("key", md.CacheKey),
				zap.Stringer("strategy", md.CacheStrategy),
			)
			return cached, nil
		}
	}

	router := r.router()
	if err := q.Route(router, r.resolver, nil); err != nil {
		return nil, err
	}

	result := &Result{}
	for i, route := range router.Routes() {
		e, err := r.engineFor(route.Engine)
		if err != nil {
			return nil, err
		}
		rows, err := e.PerformQuery(ctx, route.Query)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			result.Rows = rows
			continue
		}
		pq, ok := route.Query.(*query.PrefetchSelectQuery)
		if !ok {
			continue
		}
		if result.Prefetches == nil {
			result.Prefetches = make(map[string][]sqlengine.DataRow)
		}
		result.Prefetches[pq.PrefetchPath] = rows
	}

	if qc != nil {
		if err := qc.Put(md, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

/*
Commit runs batches in order in one transaction on the engine of their
tables and returns the number of rows changed. Batches of tables on different
engines are refused. Once committed, the local cache is cleared and the cache
groups configured for the changed tables are dropped from the shared cache.
*/
func (s *Session) Commit(ctx context.Context, batches ...*batch.Batch) (int64, error) {
	if len(batches) == 0 {
		return 0, nil
	}
	r := s.runtime
	router := r.router()

	var engine Engine
	for _, b := range batches {
		routed, err := router.EngineForDataMap(b.DbEntity.DataMap())
		if err != nil {
			return 0, err
		}
		e, err := r.engineFor(routed)
		if err != nil {
			return 0, err
		}
		if engine != nil && engine.Name() != e.Name() {
			return 0, newCrossEngineError(engine.Name(), e.Name())
		}
		engine = e
	}

	var exec sqlengine.Execer
	var tx interface {
		Commit() error
		Rollback() error
	}
	if db := engine.DB(); db != nil {
		sqlTx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return 0, err
		}
		exec, tx = sqlTx, sqlTx
	}

	var total int64
	for _, b := range batches {
		n, err := engine.PerformBatch(ctx, exec, b)
		if err != nil {
			if tx != nil {
				if rbErr := tx.Rollback(); rbErr != nil {
					r.logger.Error("rollback failed", zap.String("engine", engine.Name()), zap.Error(rbErr))
				}
			}
			return 0, NewCommitError(err, engine.Name(), b.DbEntity.Name(), b.Kind.String())
		}
		total += n
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			return 0, err
		}
	}

	s.local.Clear()
	for _, b := range batches {
		for _, group := range r.commitGroups[b.DbEntity.Name()] {
			r.shared.RemoveGroup(group)
		}
	}
	r.logger.Debug("committed",
		zap.String("engine", engine.Name()),
		zap.Int("batches", len(batches)),
		zap.Int64("rows", total),
	)
	return total, nil
}
