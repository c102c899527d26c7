package cache_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/skuid/graphmap/cache"
	"github.com/skuid/graphmap/exp"
	"github.com/skuid/graphmap/query"
	"github.com/skuid/graphmap/testdata"
)

type row map[string]interface{}

func metadata(t *testing.T, q *query.SelectQuery) *query.Metadata {
	md, err := q.MetaData(testdata.NewResolver())
	assert.NoError(t, err)
	return md
}

func monet() *query.SelectQuery {
	return query.NewSelect(query.EntityRoot("Artist")).Where(exp.Match("artistName", "Monet"))
}

func TestQueryCache(t *testing.T) {
	rows := []row{
		{"ARTIST_ID": int64(1), "ARTIST_NAME": "Monet", "DATE_OF_BIRTH": nil},
	}

	testCases := []struct {
		desc     string
		put      *query.SelectQuery
		get      *query.SelectQuery
		after    func(c *cache.QueryCache)
		expected []row
		hit      bool
	}{
		{
			desc:     "should read back what was put",
			put:      monet().SharedCache("artists"),
			get:      monet().SharedCache("artists"),
			expected: rows,
			hit:      true,
		},
		{
			desc: "should ignore queries without a cache key",
			put:  monet(),
			get:  monet(),
		},
		{
			desc: "should miss on refresh",
			put:  monet().SharedCache("artists"),
			get:  monet().CacheStrategy(query.SharedCacheRefresh, "artists"),
		},
		{
			desc: "should miss on other keys",
			put:  monet().SharedCache("artists"),
			get:  monet().SharedCache("artists").Limit(1),
		},
		{
			desc:  "should drop removed groups",
			put:   monet().SharedCache("artists"),
			get:   monet().SharedCache("artists"),
			after: func(c *cache.QueryCache) { c.RemoveGroup("artists") },
		},
		{
			desc:     "should keep other groups",
			put:      monet().SharedCache("artists"),
			get:      monet().SharedCache("artists"),
			after:    func(c *cache.QueryCache) { c.RemoveGroup("paintings") },
			expected: rows,
			hit:      true,
		},
		{
			desc:  "should clear",
			put:   monet().LocalCache(""),
			get:   monet().LocalCache(""),
			after: func(c *cache.QueryCache) { c.Clear() },
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			c := cache.New()
			assert.NoError(t, c.Put(metadata(t, tc.put), rows))
			if tc.after != nil {
				tc.after(c)
			}

			var out []row
			hit, err := c.Get(metadata(t, tc.get), &out)
			assert.NoError(t, err)
			assert.Equal(t, tc.hit, hit)
			assert.Equal(t, tc.expected, out)
		})
	}
}

func TestQueryCacheSnapshots(t *testing.T) {
	c := cache.New()
	md := metadata(t, monet().SharedCache(""))

	rows := []row{{"ARTIST_NAME": "Monet"}}
	assert.NoError(t, c.Put(md, rows))
	rows[0]["ARTIST_NAME"] = "Manet"

	var first []row
	_, err := c.Get(md, &first)
	assert.NoError(t, err)
	first[0]["ARTIST_NAME"] = "Degas"

	var second []row
	_, err = c.Get(md, &second)
	assert.NoError(t, err)
	assert.Equal(t, "Monet", second[0]["ARTIST_NAME"])
}

func TestQueryCacheEviction(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	c := cache.New(cache.WithMaxSize(2), cache.WithLogger(zap.New(core)))

	first := metadata(t, monet().SharedCache("artists").Limit(1))
	second := metadata(t, monet().SharedCache("artists").Limit(2))
	third := metadata(t, monet().SharedCache("").Limit(3))

	assert.NoError(t, c.Put(first, []row{}))
	assert.NoError(t, c.Put(second, []row{}))
	// replacing an entry doesn't change its age
	assert.NoError(t, c.Put(first, []row{}))
	assert.NoError(t, c.Put(third, []row{}))
	assert.Equal(t, 2, c.Size())

	var out []row
	hit, _ := c.Get(first, &out)
	assert.False(t, hit)
	hit, _ = c.Get(second, &out)
	assert.True(t, hit)
	assert.Equal(t, 1, logs.FilterMessage("evicted cache entry").Len())

	c.RemoveGroup("artists")
	assert.Equal(t, 1, c.Size())
	hit, _ = c.Get(third, &out)
	assert.True(t, hit)
}
