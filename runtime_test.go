package graphmap_test

import (
	"context"
	"errors"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/skuid/graphmap"
	"github.com/skuid/graphmap/batch"
	"github.com/skuid/graphmap/exp"
	"github.com/skuid/graphmap/graphmaptest"
	"github.com/skuid/graphmap/mapping"
	"github.com/skuid/graphmap/query"
	"github.com/skuid/graphmap/sqlengine"
	"github.com/skuid/graphmap/testdata"
)

var monet = []sqlengine.DataRow{{"ARTIST_ID": int64(1), "ARTIST_NAME": "Monet"}}

func TestSelect(t *testing.T) {
	testCases := []struct {
		desc          string
		query         func() query.Query
		engineError   error
		expected      *graphmap.Result
		expectedCalls int
		wantErr       error
	}{
		{
			desc: "should run the query on the default engine",
			query: func() query.Query {
				return query.NewSelect(query.EntityRoot("Artist")).Where(exp.Match("artistName", "Monet"))
			},
			expected:      &graphmap.Result{Rows: monet},
			expectedCalls: 1,
		},
		{
			desc: "should run disjoint prefetches after the query",
			query: func() query.Query {
				return query.NewSelect(query.EntityRoot("Artist")).
					Prefetch("paintings", query.Disjoint).
					Prefetch("paintings.gallery", query.Joint)
			},
			expected: &graphmap.Result{
				Rows:       monet,
				Prefetches: map[string][]sqlengine.DataRow{"paintings": monet},
			},
			expectedCalls: 2,
		},
		{
			desc: "should run raw sql",
			query: func() query.Query {
				return query.NewSQLSelect(query.EntityRoot("Artist"), "SELECT * FROM ARTIST")
			},
			expected:      &graphmap.Result{Rows: monet},
			expectedCalls: 1,
		},
		{
			desc: "should pass engine errors on",
			query: func() query.Query {
				return query.NewSelect(query.EntityRoot("Artist"))
			},
			engineError:   sqlengine.ErrQuery,
			expectedCalls: 1,
			wantErr:       sqlengine.ErrQuery,
		},
		{
			desc: "should fail on unknown roots",
			query: func() query.Query {
				return query.NewSelect(query.EntityRoot("Sculpture"))
			},
			wantErr: query.ErrUnrecognizedEntity,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			me := &graphmaptest.MockEngine{
				PerformQueryReturns: monet,
				PerformQueryError:   tc.engineError,
			}
			rt := graphmap.New(testdata.NewResolver(), graphmap.WithDefaultEngine(me))

			result, err := rt.Select(context.Background(), tc.query())
			if tc.wantErr != nil {
				assert.True(t, errors.Is(err, tc.wantErr), "unexpected error %v", err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, result)
			}
			assert.Len(t, me.PerformQueryCalledWith, tc.expectedCalls)
		})
	}
}

func TestSelectRouting(t *testing.T) {
	main := &graphmaptest.MockEngine{EngineName: "main"}
	gallery := &graphmaptest.MockEngine{EngineName: "gallery", PerformQueryReturns: monet}
	rt := graphmap.New(testdata.NewResolver(),
		graphmap.WithDefaultEngine(main),
		graphmap.WithEngine(gallery, testdata.MapName),
	)

	result, err := rt.Select(context.Background(), query.NewSelect(query.EntityRoot("Artist")))
	assert.NoError(t, err)
	assert.Equal(t, monet, result.Rows)
	assert.Empty(t, main.PerformQueryCalledWith)
	assert.Len(t, gallery.PerformQueryCalledWith, 1)

	_, err = rt.Select(context.Background(), query.NewSelect(query.EntityRoot("Artist")).EngineName("main"))
	assert.NoError(t, err)
	assert.Len(t, main.PerformQueryCalledWith, 1)

	_, err = graphmap.New(testdata.NewResolver()).Select(context.Background(), query.NewSelect(query.EntityRoot("Artist")))
	assert.True(t, errors.Is(err, query.ErrNoEngine), "unexpected error %v", err)
}

func TestSelectCache(t *testing.T) {
	artists := func(strategy query.CacheStrategy) query.Query {
		return query.NewSelect(query.EntityRoot("Artist")).
			Where(exp.Match("artistName", "Monet")).
			CacheStrategy(strategy, "artists")
	}

	testCases := []struct {
		desc          string
		strategy      query.CacheStrategy
		sameSession   bool
		expectedCalls int
	}{
		{"should not cache by default", query.NoCache, true, 2},
		{"should cache locally", query.LocalCache, true, 1},
		{"should not share local caches", query.LocalCache, false, 2},
		{"should share the shared cache", query.SharedCache, false, 1},
		{"should refresh local entries", query.LocalCacheRefresh, true, 2},
		{"should refresh shared entries", query.SharedCacheRefresh, false, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			core, logs := observer.New(zap.DebugLevel)
			me := &graphmaptest.MockEngine{PerformQueryReturns: monet}
			rt := graphmap.New(testdata.NewResolver(),
				graphmap.WithDefaultEngine(me),
				graphmap.WithLogger(zap.New(core)),
			)
			ctx := context.Background()

			s := rt.NewSession()
			first, err := s.Select(ctx, artists(tc.strategy))
			assert.NoError(t, err)
			if !tc.sameSession {
				s = rt.NewSession()
			}
			second, err := s.Select(ctx, artists(tc.strategy))
			assert.NoError(t, err)

			assert.Equal(t, first, second)
			assert.Len(t, me.PerformQueryCalledWith, tc.expectedCalls)
			assert.Equal(t, 2-tc.expectedCalls, logs.FilterMessage("select served from cache").Len())
		})
	}
}

func TestCommit(t *testing.T) {
	deleteGallery := func(res *mapping.EntityResolver, id int) *batch.Batch {
		b := batch.NewDelete(res.DbEntity("GALLERY"))
		b.Add(batch.NewRow(nil, map[string]interface{}{"GALLERY_ID": id}))
		return b
	}

	testCases := []struct {
		desc                string
		expectationFunction func(mock sqlmock.Sqlmock)
		expectedCount       int64
		wantErr             error
	}{
		{
			desc: "should run every batch in one transaction",
			expectationFunction: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(testdata.FmtSQLRegex(`DELETE FROM GALLERY WHERE GALLERY_ID = $1`)).
					WithArgs(7).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(testdata.FmtSQLRegex(`DELETE FROM GALLERY WHERE GALLERY_ID = $1`)).
					WithArgs(8).
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
			expectedCount: 2,
		},
		{
			desc: "should roll back failed batches",
			expectationFunction: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(testdata.FmtSQLRegex(`DELETE FROM GALLERY WHERE GALLERY_ID = $1`)).
					WithArgs(7).
					WillReturnError(errors.New("violates foreign key constraint"))
				mock.ExpectRollback()
			},
			wantErr: sqlengine.ErrQuery,
		},
		{
			desc: "should fail when the transaction can't start",
			expectationFunction: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin().WillReturnError(errors.New("connection refused"))
			},
			wantErr: errors.New("connection refused"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatal(err)
			}
			defer db.Close()
			tc.expectationFunction(mock)

			res := testdata.NewResolver()
			rt := graphmap.New(res, graphmap.WithDefaultEngine(sqlengine.New("main", db, res)))

			count, err := rt.Commit(context.Background(), deleteGallery(res, 7), deleteGallery(res, 8))
			switch {
			case tc.wantErr == nil:
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedCount, count)
			case errors.Is(tc.wantErr, sqlengine.ErrQuery):
				assert.True(t, errors.Is(err, tc.wantErr), "unexpected error %v", err)
				var commitErr *graphmap.CommitError
				if assert.True(t, errors.As(err, &commitErr)) {
					assert.Equal(t, "GALLERY", commitErr.Table)
					assert.Equal(t, "main", commitErr.Engine)
				}
			default:
				assert.EqualError(t, err, tc.wantErr.Error())
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("there were unfulfilled expectations: %s", err)
			}
		})
	}
}

func TestCommitEngines(t *testing.T) {
	logs := mapping.NewDataMap("logs")
	table := mapping.NewDbEntity("AUDIT_LOG")
	assert.NoError(t, table.AddAttribute(mapping.NewPrimaryKey("LOG_ID", "INTEGER")))
	assert.NoError(t, logs.AddDbEntity(table))
	res := mapping.NewEntityResolver([]*mapping.DataMap{testdata.NewDataMap(), logs})

	main := &graphmaptest.MockEngine{EngineName: "main", PerformBatchRowsAffected: 1}
	audit := &graphmaptest.MockEngine{EngineName: "audit", PerformBatchRowsAffected: 1}
	rt := graphmap.New(res,
		graphmap.WithDefaultEngine(main),
		graphmap.WithEngine(audit, "logs"),
	)
	ctx := context.Background()

	_, err := rt.Commit(ctx, batch.NewDelete(res.DbEntity("ARTIST")), batch.NewDelete(res.DbEntity("AUDIT_LOG")))
	assert.True(t, graphmap.IsCrossEngineCommit(err), "unexpected error %v", err)
	assert.Empty(t, main.PerformBatchCalledWith)
	assert.Empty(t, audit.PerformBatchCalledWith)

	n, err := rt.Commit(ctx, batch.NewDelete(res.DbEntity("AUDIT_LOG")))
	assert.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Len(t, audit.PerformBatchCalledWith, 1)

	n, err = rt.Commit(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCommitInvalidatesCaches(t *testing.T) {
	me := &graphmaptest.MockEngine{PerformQueryReturns: monet, PerformBatchRowsAffected: 1}
	res := testdata.NewResolver()
	rt := graphmap.New(res,
		graphmap.WithDefaultEngine(me),
		graphmap.WithCommitGroups("ARTIST", "artists"),
	)
	ctx := context.Background()
	shared := query.NewSelect(query.EntityRoot("Artist")).SharedCache("artists")
	other := query.NewSelect(query.EntityRoot("Painting")).SharedCache("paintings")
	local := query.NewSelect(query.EntityRoot("Gallery")).LocalCache("")

	s := rt.NewSession()
	for _, q := range []query.Query{shared, other, local} {
		_, err := s.Select(ctx, q)
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, rt.SharedCache().Size())
	assert.Equal(t, 1, s.LocalCache().Size())

	_, err := s.Commit(ctx, batch.NewDelete(res.DbEntity("ARTIST")))
	assert.NoError(t, err)
	assert.Equal(t, 1, rt.SharedCache().Size())
	assert.Equal(t, 0, s.LocalCache().Size())

	_, err = s.Select(ctx, shared)
	assert.NoError(t, err)
	assert.Len(t, me.PerformQueryCalledWith, 4)
}

func TestOpen(t *testing.T) {
	db, mock, err := sqlmock.NewWithDSN("graphmap_open_test")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cfg := &graphmap.Config{
		Mappings: []string{"loader/testdata/artists.yaml", "loader/testdata/paintings.json"},
		Engines: map[string]graphmap.EngineConfig{
			"main": {ConnectionProps: sqlengine.ConnectionProps{Driver: "sqlmock", ConnString: "graphmap_open_test"}},
		},
	}
	rt, err := graphmap.Open(cfg, nil)
	if !assert.NoError(t, err) {
		return
	}
	assert.NotNil(t, rt.Engine("main"))
	assert.NotNil(t, rt.Resolver().ObjEntity("Painting"))

	mock.ExpectQuery(testdata.FmtSQLRegex(`
		SELECT
			t0.ARTIST_ID AS "ARTIST_ID",
			t0.ARTIST_NAME AS "ARTIST_NAME",
			t0.DATE_OF_BIRTH AS "DATE_OF_BIRTH"
		FROM ARTIST AS t0
		WHERE t0.ARTIST_NAME = $1
	`)).
		WithArgs("Monet").
		WillReturnRows(sqlmock.NewRows([]string{"ARTIST_ID", "ARTIST_NAME", "DATE_OF_BIRTH"}).AddRow(int64(1), "Monet", nil))

	result, err := rt.Select(context.Background(), query.NewSelect(query.EntityRoot("Artist")).Where(exp.Match("artistName", "Monet")))
	assert.NoError(t, err)
	assert.Equal(t, []sqlengine.DataRow{{"ARTIST_ID": int64(1), "ARTIST_NAME": "Monet", "DATE_OF_BIRTH": nil}}, result.Rows)

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("there were unfulfilled expectations: %s", err)
	}
}
