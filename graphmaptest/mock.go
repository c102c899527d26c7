/*
Package graphmaptest provides engines for testing code that runs queries
through a graphmap.Runtime without a database.
*/
package graphmaptest

import (
	"context"
	"database/sql"
	"errors"

	"github.com/skuid/graphmap/batch"
	"github.com/skuid/graphmap/query"
	"github.com/skuid/graphmap/sqlengine"
)

// DefaultName is the name of a mock engine without one
const DefaultName = "mock"

// MockEngine can be used to test client functionality that runs queries and
// batches through a graphmap.Runtime.
type MockEngine struct {
	EngineName               string
	PerformQueryReturns      []sqlengine.DataRow
	PerformQueryError        error
	PerformQueryCalledWith   []query.Query
	PerformBatchRowsAffected int64
	PerformBatchError        error
	PerformBatchCalledWith   []*batch.Batch
	Connection               *sql.DB
}

// Name returns EngineName, or DefaultName when it isn't set
func (me *MockEngine) Name() string {
	if me.EngineName == "" {
		return DefaultName
	}
	return me.EngineName
}

// PerformQuery simply returns an error or return rows when set on the MockEngine
func (me *MockEngine) PerformQuery(ctx context.Context, q query.Query) ([]sqlengine.DataRow, error) {
	me.PerformQueryCalledWith = append(me.PerformQueryCalledWith, q)
	if me.PerformQueryError != nil {
		return nil, me.PerformQueryError
	}
	return me.PerformQueryReturns, nil
}

// PerformBatch returns the rows affected number & error stored in MockEngine, and records the call value
func (me *MockEngine) PerformBatch(ctx context.Context, exec sqlengine.Execer, b *batch.Batch) (int64, error) {
	me.PerformBatchCalledWith = append(me.PerformBatchCalledWith, b)
	return me.PerformBatchRowsAffected, me.PerformBatchError
}

// DB returns Connection. Commits on a mock without one skip the transaction.
func (me *MockEngine) DB() *sql.DB {
	return me.Connection
}

// MultiMockEngine can be used to string together a series of calls to an engine
type MultiMockEngine struct {
	EngineName  string
	MockEngines []MockEngine
	index       int
}

// Returns the next mock in the series of mocks
func (multi *MultiMockEngine) next() (*MockEngine, error) {
	currentIndex := multi.index
	if len(multi.MockEngines) > currentIndex {
		multi.index = multi.index + 1
		return &multi.MockEngines[currentIndex], nil
	}
	return nil, errors.New("Mock Function was called but not expected")
}

// Name returns EngineName, or DefaultName when it isn't set
func (multi *MultiMockEngine) Name() string {
	if multi.EngineName == "" {
		return DefaultName
	}
	return multi.EngineName
}

// PerformQuery hands the call to the next mock in the series
func (multi *MultiMockEngine) PerformQuery(ctx context.Context, q query.Query) ([]sqlengine.DataRow, error) {
	next, err := multi.next()
	if err != nil {
		return nil, err
	}
	return next.PerformQuery(ctx, q)
}

// PerformBatch hands the call to the next mock in the series
func (multi *MultiMockEngine) PerformBatch(ctx context.Context, exec sqlengine.Execer, b *batch.Batch) (int64, error) {
	next, err := multi.next()
	if err != nil {
		return 0, err
	}
	return next.PerformBatch(ctx, exec, b)
}

// DB never returns a connection: every call may go to another mock
func (multi *MultiMockEngine) DB() *sql.DB {
	return nil
}
