package query_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skuid/graphmap/exp"
	"github.com/skuid/graphmap/mapping"
	"github.com/skuid/graphmap/query"
	"github.com/skuid/graphmap/testdata"
)

func TestRootResolution(t *testing.T) {
	res := testdata.NewResolver()
	m := res.DataMap(testdata.MapName)

	testCases := []struct {
		desc           string
		query          *query.SelectQuery
		expectedEntity string
		expectedTable  string
		expectedRows   bool
		wantErr        string
	}{
		{
			desc:           "entity name",
			query:          query.NewSelect(query.EntityRoot("Artist")),
			expectedEntity: "Artist",
			expectedTable:  "ARTIST",
		},
		{
			desc:           "class",
			query:          query.NewSelect(query.ClassRoot(&testdata.Painting{})),
			expectedEntity: "Painting",
			expectedTable:  "PAINTING",
		},
		{
			desc:           "entity",
			query:          query.NewSelect(query.RootForObjEntity(m.ObjEntity("Gallery"))),
			expectedEntity: "Gallery",
			expectedTable:  "GALLERY",
		},
		{
			desc:          "table name fetches data rows",
			query:         query.NewSelect(query.DbEntityRoot("ARTIST")),
			expectedTable: "ARTIST",
			expectedRows:  true,
		},
		{
			desc:    "unknown entity",
			query:   query.NewSelect(query.EntityRoot("Sculpture")),
			wantErr: "configuration error: 'Sculpture': unrecognized entity",
		},
		{
			desc:    "unknown class",
			query:   query.NewSelect(query.ClassRoot(time.Time{})),
			wantErr: "configuration error: 'time.Time': unrecognized entity",
		},
		{
			desc:    "no root",
			query:   query.NewSelect(query.Root{}),
			wantErr: "configuration error: 'query': undefined root",
		},
		{
			desc:  "no root with an engine name",
			query: query.NewSelect(query.Root{}).EngineName("reporting"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert := assert.New(t)
			md, err := tc.query.MetaData(res)
			if tc.wantErr != "" {
				assert.EqualError(err, tc.wantErr)
				assert.True(errors.Is(err, mapping.ErrConfiguration))
				return
			}
			assert.NoError(err)
			if tc.expectedEntity != "" {
				assert.Equal(tc.expectedEntity, md.ObjEntity.Name())
			} else {
				assert.Nil(md.ObjEntity)
			}
			if tc.expectedTable != "" {
				assert.Equal(tc.expectedTable, md.DbEntity.Name())
				assert.Equal(m, md.DataMap)
			}
			assert.Equal(tc.expectedRows, md.FetchingDataRows)
		})
	}
}

func TestProcedureRoot(t *testing.T) {
	res := testdata.NewResolver()
	proc := res.Procedure("artists_by_name")

	md, err := query.NewSelect(query.RootForProcedure(proc)).MetaData(res)
	assert.NoError(t, err)
	assert.Equal(t, proc, md.Procedure)
	assert.Equal(t, testdata.MapName, md.DataMap.Name())
}

func TestMetaDataIsMemoized(t *testing.T) {
	assert := assert.New(t)
	res := testdata.NewResolver()
	q := query.NewSelect(query.EntityRoot("Artist"))

	first, err := q.MetaData(res)
	assert.NoError(err)
	second, err := q.MetaData(res)
	assert.NoError(err)
	assert.Same(first, second)

	q.Limit(10)
	third, err := q.MetaData(res)
	assert.NoError(err)
	assert.NotSame(first, third)
	assert.Equal(10, third.FetchLimit)

	other, err := q.MetaData(testdata.NewResolver())
	assert.NoError(err)
	assert.NotSame(third, other)
}

func fieldLabels(seg query.ResultSegment) []string {
	var labels []string
	for _, f := range seg.Fields {
		labels = append(labels, f.Label)
	}
	return labels
}

func fieldPaths(seg query.ResultSegment) []string {
	var paths []string
	for _, f := range seg.Fields {
		paths = append(paths, f.DbPath)
	}
	return paths
}

func TestResultShape(t *testing.T) {
	type segment struct {
		kind         query.SegmentKind
		label        string
		labels       []string
		paths        []string
		identityOnly bool
	}

	testCases := []struct {
		desc     string
		query    *query.SelectQuery
		expected []segment
		wantErr  string
	}{
		{
			desc:  "objects of the root",
			query: query.NewSelect(query.EntityRoot("Artist")),
			expected: []segment{{
				kind:   query.EntitySegment,
				label:  "Artist",
				labels: []string{"ARTIST_ID", "ARTIST_NAME", "DATE_OF_BIRTH"},
				paths:  []string{"ARTIST_ID", "ARTIST_NAME", "DATE_OF_BIRTH"},
			}},
		},
		{
			desc:  "joint prefetches are outer joined into the root",
			query: query.NewSelect(query.EntityRoot("Painting")).Prefetch("gallery", query.Joint),
			expected: []segment{{
				kind:  query.EntitySegment,
				label: "Painting",
				labels: []string{
					"PAINTING_ID", "PAINTING_TITLE", "ARTIST_ID", "GALLERY_ID", "ESTIMATED_PRICE",
					"gallery.GALLERY_ID", "gallery.GALLERY_NAME",
				},
				paths: []string{
					"PAINTING_ID", "PAINTING_TITLE", "ARTIST_ID", "GALLERY_ID", "ESTIMATED_PRICE",
					"toGallery+.GALLERY_ID", "toGallery+.GALLERY_NAME",
				},
			}},
		},
		{
			desc: "scalar and to-one object columns",
			query: query.NewSelect(query.EntityRoot("Painting")).Columns(
				query.Property{Name: "title", Expression: exp.Path("paintingTitle")},
				query.Column("artist"),
			),
			expected: []segment{
				{kind: query.ScalarSegment, label: "title"},
				{
					kind:   query.EntitySegment,
					label:  "artist",
					labels: []string{"artist.ARTIST_ID", "artist.ARTIST_NAME", "artist.DATE_OF_BIRTH"},
					paths:  []string{"toArtist.ARTIST_ID", "toArtist.ARTIST_NAME", "toArtist.DATE_OF_BIRTH"},
				},
			},
		},
		{
			desc: "joint prefetches attach to the first object column",
			query: query.NewSelect(query.EntityRoot("Painting")).
				Columns(query.Property{Name: "a", Expression: exp.FullObject(exp.Path("artist"))}).
				Prefetch("paintings", query.Joint),
			expected: []segment{{
				kind:  query.EntitySegment,
				label: "a",
				labels: []string{
					"a.ARTIST_ID", "a.ARTIST_NAME", "a.DATE_OF_BIRTH",
					"paintings.PAINTING_ID", "paintings.PAINTING_TITLE", "paintings.ARTIST_ID",
					"paintings.GALLERY_ID", "paintings.ESTIMATED_PRICE",
				},
				paths: []string{
					"toArtist.ARTIST_ID", "toArtist.ARTIST_NAME", "toArtist.DATE_OF_BIRTH",
					"toArtist.paintingArray+.PAINTING_ID", "toArtist.paintingArray+.PAINTING_TITLE",
					"toArtist.paintingArray+.ARTIST_ID", "toArtist.paintingArray+.GALLERY_ID",
					"toArtist.paintingArray+.ESTIMATED_PRICE",
				},
			}},
		},
		{
			desc: "pagination selects identities only",
			query: query.NewSelect(query.EntityRoot("Painting")).
				Columns(
					query.Property{Name: "painting", Expression: exp.FullObject(nil)},
					query.Column("artist"),
				).
				Prefetch("gallery", query.Joint).
				PageSize(20),
			expected: []segment{
				{
					kind:         query.EntitySegment,
					label:        "painting",
					labels:       []string{"PAINTING_ID"},
					paths:        []string{"PAINTING_ID"},
					identityOnly: true,
				},
				{
					kind:         query.EntitySegment,
					label:        "artist",
					labels:       []string{"artist.ARTIST_ID"},
					paths:        []string{"toArtist.ARTIST_ID"},
					identityOnly: true,
				},
			},
		},
		{
			desc:    "to-many columns are rejected",
			query:   query.NewSelect(query.EntityRoot("Artist")).Columns(query.Column("paintings")),
			wantErr: "to-many relationship can't be selected as a column: Entity 'Artist', Path 'paintings', Token 'paintings'",
		},
		{
			desc:    "bad column paths fail",
			query:   query.NewSelect(query.EntityRoot("Artist")).Columns(query.Column("paintings.frame")),
			wantErr: "can't resolve path component: Entity 'Artist', Path 'paintings.frame', Token 'frame'",
		},
	}

	res := testdata.NewResolver()
	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert := assert.New(t)
			md, err := tc.query.MetaData(res)
			if tc.wantErr != "" {
				assert.EqualError(err, tc.wantErr)
				assert.True(errors.Is(err, mapping.ErrPath))
				return
			}
			assert.NoError(err)
			assert.Len(md.ResultShape, len(tc.expected))
			for i, seg := range md.ResultShape {
				assert.Equal(tc.expected[i].kind, seg.Kind)
				assert.Equal(tc.expected[i].label, seg.Label)
				assert.Equal(tc.expected[i].labels, fieldLabels(seg))
				assert.Equal(tc.expected[i].paths, fieldPaths(seg))
				assert.Equal(tc.expected[i].identityOnly, seg.IdentityOnly)
			}
		})
	}
}

func TestSplitAliases(t *testing.T) {
	assert := assert.New(t)

	aliases := query.SplitAliases{}
	assert.NoError(aliases.Add("x", "a.b"))
	assert.NoError(aliases.Add("x", "a.b"))
	err := aliases.Add("x", "a.c")
	assert.EqualError(err, "configuration error: 'x': alias is bound to more than one path: 'a.b' and 'a.c'")
	assert.True(errors.Is(err, query.ErrAliasConflict))

	res := testdata.NewResolver()
	q := query.NewSelect(query.EntityRoot("Artist")).
		Where(exp.Eq(
			exp.AliasedPath("p1.paintingTitle", map[string]string{"p1": "paintings"}),
			exp.Scalar("Irises"),
		)).
		OrderBy(query.Ordering{Expression: exp.AliasedPath("p1.paintingTitle", map[string]string{"p1": "paintings"})})
	md, err := q.MetaData(res)
	assert.NoError(err)
	assert.Equal(query.SplitAliases{"p1": "paintings"}, md.PathSplitAliases)

	q.Columns(query.Property{
		Name:       "gallery",
		Expression: exp.AliasedPath("p1.gallery.name", map[string]string{"p1": "paintings.gallery"}),
	})
	_, err = q.MetaData(res)
	assert.True(errors.Is(err, query.ErrAliasConflict))
	assert.True(errors.Is(err, mapping.ErrConfiguration))
}

func TestSelectByID(t *testing.T) {
	res := testdata.NewResolver()

	testCases := []struct {
		desc     string
		query    *query.ByIDSelect
		expected string
		wantErr  string
	}{
		{
			desc:     "single id",
			query:    query.SelectByID(query.EntityRoot("Artist"), 5),
			expected: "db:ARTIST_ID = 5",
		},
		{
			desc:     "several ids",
			query:    query.SelectByID(query.ClassRoot(testdata.Artist{}), 1, 2),
			expected: "db:ARTIST_ID in (1, 2)",
		},
		{
			desc:     "compound object id",
			query:    query.SelectByObjectID(identityOf("ArtistExhibit", 1, 2)),
			expected: "db:ARTIST_ID = 1 and db:EXHIBIT_ID = 2",
		},
		{
			desc:    "compound key by value",
			query:   query.SelectByID(query.DbEntityRoot("ARTIST_EXHIBIT"), 1),
			wantErr: "expected a single column primary key, got 2: ARTIST_EXHIBIT.ARTIST_ID,EXHIBIT_ID",
		},
		{
			desc:    "no values",
			query:   query.SelectByID(query.EntityRoot("Artist")),
			wantErr: "no id values: ARTIST.ARTIST_ID",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert := assert.New(t)
			router := query.NewRouteCollector(nil)
			router.Default(engine("main"))

			err := tc.query.Route(router, res, nil)
			if tc.wantErr != "" {
				assert.EqualError(err, tc.wantErr)
				assert.True(errors.Is(err, mapping.ErrPrimaryKey))
				return
			}
			assert.NoError(err)

			routes := router.Routes()
			assert.Len(routes, 1)
			assert.Same(tc.query, routes[0].Substituted)
			sq := routes[0].Query.(*query.SelectQuery)
			assert.Equal(tc.expected, sq.Qualifier().String())
		})
	}
}

func TestNamedQuery(t *testing.T) {
	assert := assert.New(t)
	res := testdata.NewResolver()

	q, err := query.NamedQuery(res, "ArtistsByName", map[string]interface{}{"name": "M%"})
	assert.NoError(err)
	assert.Equal("artistName like 'M%'", q.Qualifier().String())
	assert.Equal([]query.Ordering{query.Asc("artistName")}, q.Orderings())

	q, err = query.NamedQuery(res, "ArtistsByName", nil)
	assert.NoError(err)
	assert.Nil(q.Qualifier())

	_, err = query.NamedQuery(res, "PaintingsByTitle", nil)
	assert.EqualError(err, "configuration error: 'PaintingsByTitle': no such query")
}
