package query

import (
	"sync"

	"go.uber.org/zap"

	"github.com/skuid/graphmap/mapping"
)

// Engine runs routed queries. The query package only needs its name.
type Engine interface {
	Name() string
}

/*
Router collects the queries a top level query resolves to. Route receives the
query to run and the query the caller asked for, which differ when a query
stands in for another one.
*/
type Router interface {
	Route(engine Engine, q Query, substituted Query)
	EngineForDataMap(m *mapping.DataMap) (Engine, error)
	EngineForName(name string) (Engine, error)
}

func engineFor(router Router, md *Metadata) (Engine, error) {
	if md.EngineName != "" {
		return router.EngineForName(md.EngineName)
	}
	if md.DataMap == nil {
		return nil, mapping.NewConfigError("query", "%w: no data map", ErrNoEngine)
	}
	return router.EngineForDataMap(md.DataMap)
}

// Route is one query routed to an engine
type Route struct {
	Engine      Engine
	Query       Query
	Substituted Query
}

/*
RouteCollector is a Router that keeps routed queries grouped by engine, in
the order they were routed. Maps without an engine of their own go to the
default engine.
*/
type RouteCollector struct {
	mu       sync.Mutex
	engines  map[string]Engine
	byMap    map[string]Engine
	fallback Engine
	routes   []Route
	logger   *zap.Logger
}

// NewRouteCollector returns an empty collector. A nil logger logs nothing.
func NewRouteCollector(logger *zap.Logger) *RouteCollector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteCollector{
		engines: make(map[string]Engine),
		byMap:   make(map[string]Engine),
		logger:  logger,
	}
}

// RegisterEngine adds e, serving the named data maps
func (c *RouteCollector) RegisterEngine(e Engine, dataMaps ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engines[e.Name()] = e
	for _, m := range dataMaps {
		c.byMap[m] = e
	}
}

// Default sets the engine used for maps nobody registered for
func (c *RouteCollector) Default(e Engine) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.engines[e.Name()] = e
	c.fallback = e
}

// EngineForDataMap implements Router
func (c *RouteCollector) EngineForDataMap(m *mapping.DataMap) (Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.byMap[m.Name()]; ok {
		return e, nil
	}
	if c.fallback != nil {
		return c.fallback, nil
	}
	return nil, mapping.NewConfigError(m.Name(), "%w", ErrNoEngine)
}

// EngineForName implements Router
func (c *RouteCollector) EngineForName(name string) (Engine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.engines[name]; ok {
		return e, nil
	}
	return nil, mapping.NewConfigError(name, "%w", ErrNoEngine)
}

// Route implements Router
func (c *RouteCollector) Route(engine Engine, q Query, substituted Query) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logger.Debug("routed query",
		zap.String("engine", engine.Name()),
		zap.Int("position", len(c.routes)),
	)
	c.routes = append(c.routes, Route{Engine: engine, Query: q, Substituted: substituted})
}

// Routes returns every route in routing order
func (c *RouteCollector) Routes() []Route {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Route(nil), c.routes...)
}

// Engines returns the engines that received queries, in first use order
func (c *RouteCollector) Engines() []Engine {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Engine
	seen := make(map[string]bool)
	for _, r := range c.routes {
		if !seen[r.Engine.Name()] {
			seen[r.Engine.Name()] = true
			out = append(out, r.Engine)
		}
	}
	return out
}

// Queries returns the queries routed to e, in routing order
func (c *RouteCollector) Queries(e Engine) []Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Query
	for _, r := range c.routes {
		if r.Engine.Name() == e.Name() {
			out = append(out, r.Query)
		}
	}
	return out
}

// Reset drops collected routes, keeping the engines
func (c *RouteCollector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes = nil
}
