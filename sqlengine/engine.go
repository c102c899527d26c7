/*
Package sqlengine runs routed queries and commit batches against a postgres
database. Selects are built with squirrel from the result shape a query
resolves to, aliasing every joined table t0, t1 and so on.
*/
package sqlengine

import (
	"context"
	"database/sql"
	"reflect"

	"go.uber.org/zap"

	"github.com/skuid/graphmap/mapping"
	"github.com/skuid/graphmap/query"
)

// DataRow is one result row keyed by result field label
type DataRow map[string]interface{}

// Engine runs queries for the data maps routed to it
type Engine struct {
	name     string
	db       *sql.DB
	resolver *mapping.EntityResolver
	logger   *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the logger statements are logged to at debug level
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New returns an engine running statements on db
func New(name string, db *sql.DB, res *mapping.EntityResolver, opts ...Option) *Engine {
	e := &Engine{
		name:     name,
		db:       db,
		resolver: res,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements query.Engine
func (e *Engine) Name() string {
	return e.name
}

// DB returns the connection the engine runs on
func (e *Engine) DB() *sql.DB {
	return e.db
}

// PerformQuery translates q and reads every row it returns
func (e *Engine) PerformQuery(ctx context.Context, q query.Query) ([]DataRow, error) {
	stmt, err := Translate(e.resolver, q)
	if err != nil {
		return nil, err
	}
	text, args, err := stmt.ToSql()
	if err != nil {
		return nil, err
	}

	e.logger.Debug("performing query",
		zap.String("engine", e.name),
		zap.String("sql", text),
		zap.Int("args", len(args)),
	)

	rows, err := e.db.QueryContext(ctx, text, args...)
	if err != nil {
		return nil, NewQueryError(e.name, text, err)
	}
	results, err := getQueryResults(rows)
	if err != nil {
		return nil, NewQueryError(e.name, text, err)
	}
	return results, nil
}

func getQueryResults(rows *sql.Rows) ([]DataRow, error) {
	defer rows.Close()

	cols, err := rows.Columns()

	if err != nil {
		return nil, err
	}

	results := []DataRow{}

	for rows.Next() {
		columns := make([]interface{}, len(cols))
		columnPointers := make([]interface{}, len(cols))
		for i := range columns {
			columnPointers[i] = &columns[i]
		}

		if err := rows.Scan(columnPointers...); err != nil {
			return nil, err
		}

		// uuid columns come back as 36 byte slices
		m := make(DataRow, len(cols))
		for i, colName := range cols {
			val := columns[i]
			reflectValue := reflect.ValueOf(val)
			if reflectValue.IsValid() && reflectValue.Type() == reflect.TypeOf([]byte(nil)) && reflectValue.Len() == 36 {
				m[colName] = string(val.([]uint8))
			} else {
				m[colName] = val
			}
		}

		results = append(results, m)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return results, nil
}
