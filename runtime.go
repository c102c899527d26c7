package graphmap

import (
	"context"
	"database/sql"
	"sort"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"

	"github.com/skuid/graphmap/batch"
	"github.com/skuid/graphmap/cache"
	"github.com/skuid/graphmap/loader"
	"github.com/skuid/graphmap/mapping"
	"github.com/skuid/graphmap/query"
	"github.com/skuid/graphmap/sqlengine"
)

// Engine runs the queries and batches routed to it. A nil DB means the engine
// manages its own connection and batches run outside a transaction.
type Engine interface {
	query.Engine
	PerformQuery(ctx context.Context, q query.Query) ([]sqlengine.DataRow, error)
	PerformBatch(ctx context.Context, exec sqlengine.Execer, b *batch.Batch) (int64, error)
	DB() *sql.DB
}

// Result holds the rows of a select and the rows of every disjoint prefetch
// it was routed with, keyed by prefetch path
type Result struct {
	Rows       []sqlengine.DataRow
	Prefetches map[string][]sqlengine.DataRow
}

/*
Runtime ties a resolver to the engines its maps run on. It keeps the shared
query cache; local caches belong to sessions.
*/
type Runtime struct {
	resolver     *mapping.EntityResolver
	engines      map[string]Engine
	engineMaps   map[string][]string
	defaultName  string
	shared       *cache.QueryCache
	commitGroups map[string][]string
	logger       *zap.Logger
}

// Option configures a Runtime
type Option func(*Runtime)

// WithLogger sets the runtime logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithEngine runs the named data maps on e
func WithEngine(e Engine, dataMaps ...string) Option {
	return func(r *Runtime) {
		r.engines[e.Name()] = e
		r.engineMaps[e.Name()] = append(r.engineMaps[e.Name()], dataMaps...)
	}
}

// WithDefaultEngine runs every map without an engine of its own on e
func WithDefaultEngine(e Engine) Option {
	return func(r *Runtime) {
		r.engines[e.Name()] = e
		r.defaultName = e.Name()
	}
}

// WithSharedCache replaces the shared query cache
func WithSharedCache(c *cache.QueryCache) Option {
	return func(r *Runtime) {
		if c != nil {
			r.shared = c
		}
	}
}

// WithCommitGroups drops the cache groups from every cache once a commit
// changes rows of the table
func WithCommitGroups(dbEntity string, groups ...string) Option {
	return func(r *Runtime) {
		r.commitGroups[dbEntity] = append(r.commitGroups[dbEntity], groups...)
	}
}

// New returns a runtime over res
func New(res *mapping.EntityResolver, opts ...Option) *Runtime {
	r := &Runtime{
		resolver:     res,
		engines:      make(map[string]Engine),
		engineMaps:   make(map[string][]string),
		commitGroups: make(map[string][]string),
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.shared == nil {
		r.shared = cache.New(cache.WithLogger(r.logger))
	}
	return r
}

/*
Open loads the mapping files of cfg, connects every configured engine and
returns the runtime serving them. Connections opened before a failure are
closed again.
*/
func Open(cfg *Config, logger *zap.Logger) (*Runtime, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	maps, err := loader.LoadFiles(cfg.Mappings...)
	if err != nil {
		return nil, err
	}
	res := mapping.NewEntityResolver(maps, mapping.WithLogger(logger))
	if cfg.ApplyDBLayerDefaults {
		res.ApplyDBLayerDefaults()
	}

	opts := []Option{
		WithLogger(logger),
		WithSharedCache(cache.New(cache.WithMaxSize(cfg.CacheSize), cache.WithLogger(logger))),
	}
	for table, groups := range cfg.CommitGroups {
		opts = append(opts, WithCommitGroups(table, groups...))
	}

	names := make([]string, 0, len(cfg.Engines))
	for name := range cfg.Engines {
		names = append(names, name)
	}
	sort.Strings(names)

	var opened []*sql.DB
	for _, name := range names {
		ec := cfg.Engines[name]
		db, err := sqlengine.Open(ec.ConnectionProps)
		if err != nil {
			for _, o := range opened {
				o.Close()
			}
			return nil, err
		}
		opened = append(opened, db)

		e := sqlengine.New(name, db, res, sqlengine.WithLogger(logger))
		opts = append(opts, WithEngine(e, ec.DataMaps...))
		if name == cfg.DefaultEngine || len(cfg.Engines) == 1 {
			opts = append(opts, WithDefaultEngine(e))
		}
	}
	return New(res, opts...), nil
}

// Resolver returns the resolver queries are resolved against
func (r *Runtime) Resolver() *mapping.EntityResolver {
	return r.resolver
}

// SharedCache returns the cache shared by every session
func (r *Runtime) SharedCache() *cache.QueryCache {
	return r.shared
}

// Engine returns the named engine, nil if the runtime doesn't run it
func (r *Runtime) Engine(name string) Engine {
	return r.engines[name]
}

// Close closes the connection of every engine
func (r *Runtime) Close() error {
	var errs *multierror.Error
	for _, e := range r.engines {
		if db := e.DB(); db != nil {
			if err := db.Close(); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	return errs.ErrorOrNil()
}

// NewSession returns a session with an empty local cache
func (r *Runtime) NewSession() *Session {
	return &Session{
		runtime: r,
		local:   cache.New(cache.WithLogger(r.logger)),
	}
}

// Select runs q in a throwaway session, so only the shared cache is used
func (r *Runtime) Select(ctx context.Context, q query.Query) (*Result, error) {
	return r.NewSession().Select(ctx, q)
}

// Commit runs batches in a throwaway session
func (r *Runtime) Commit(ctx context.Context, batches ...*batch.Batch) (int64, error) {
	return r.NewSession().Commit(ctx, batches...)
}

func (r *Runtime) router() *query.RouteCollector {
	c := query.NewRouteCollector(r.logger)
	for name, e := range r.engines {
		c.RegisterEngine(e, r.engineMaps[name]...)
	}
	if e, ok := r.engines[r.defaultName]; ok {
		c.Default(e)
	}
	return c
}

func (r *Runtime) engineFor(routed query.Engine) (Engine, error) {
	e, ok := r.engines[routed.Name()]
	if !ok {
		return nil, mapping.NewConfigError(routed.Name(), "%w", ErrUnknownEngine)
	}
	return e, nil
}
