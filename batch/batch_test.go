package batch

import (
	"errors"
	"testing"

	"github.com/skuid/graphmap/identity"
	"github.com/skuid/graphmap/mapping"
	"github.com/skuid/graphmap/testdata"
	"github.com/stretchr/testify/assert"
)

func chain(levels int, final interface{}) interface{} {
	var v interface{} = final
	for i := 0; i < levels; i++ {
		next := v
		v = Deferred(func() interface{} { return next })
	}
	return v
}

func TestRowValue(t *testing.T) {
	artist := testdata.NewDataMap().DbEntity("ARTIST")
	pk := artist.DbAttribute("ARTIST_ID")
	name := artist.DbAttribute("ARTIST_NAME")

	var cycle Deferred
	cycle = func() interface{} { return cycle }

	testCases := []struct {
		desc                string
		attr                *mapping.DbAttribute
		give                interface{}
		expected            interface{}
		expectedReplacement map[string]interface{}
		wantErr             string
	}{
		{
			desc:     "concrete values are returned as is",
			attr:     name,
			give:     "Monet",
			expected: "Monet",
		},
		{
			desc:     "concrete keys don't touch the replacement map",
			attr:     pk,
			give:     int64(7),
			expected: int64(7),
		},
		{
			desc:     "deferred values are resolved",
			attr:     name,
			give:     chain(1, "Monet"),
			expected: "Monet",
		},
		{
			desc:                "999 nested producers resolve",
			attr:                pk,
			give:                chain(999, int64(42)),
			expected:            int64(42),
			expectedReplacement: map[string]interface{}{"ARTIST_ID": int64(42)},
		},
		{
			desc:    "1000 nested producers fail",
			attr:    pk,
			give:    chain(1000, int64(42)),
			wantErr: "possible recursive deferred-value chain: ARTIST.ARTIST_ID, Object 'Artist:ARTIST_ID=1'",
		},
		{
			desc:    "cyclic producers fail",
			attr:    name,
			give:    cycle,
			wantErr: "possible recursive deferred-value chain: ARTIST.ARTIST_NAME, Object 'Artist:ARTIST_ID=1'",
		},
		{
			desc:    "a null generated key fails",
			attr:    pk,
			give:    chain(2, nil),
			wantErr: "failed to generate primary key: ARTIST.ARTIST_ID, Object 'Artist:ARTIST_ID=1'",
		},
		{
			desc:     "a null deferred non key is fine",
			attr:     name,
			give:     chain(2, nil),
			expected: nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert := assert.New(t)
			id := identity.NewSingleID("Artist", "ARTIST_ID", 1)
			row := NewRow(id, map[string]interface{}{tc.attr.Name(): tc.give})

			v, err := row.Value(tc.attr)
			if tc.wantErr != "" {
				assert.EqualError(err, tc.wantErr)
				assert.True(errors.Is(err, mapping.ErrPrimaryKey))
				return
			}
			assert.NoError(err)
			assert.Equal(tc.expected, v)
			assert.Equal(tc.expected, row.Values[tc.attr.Name()])
			if tc.expectedReplacement == nil {
				assert.False(id.HasReplacementID())
				return
			}
			assert.Equal(tc.expectedReplacement, id.ReplacementIDMap())
		})
	}
}

func TestRowValueOverwritesStaleReplacement(t *testing.T) {
	pk := testdata.NewDataMap().DbEntity("ARTIST").DbAttribute("ARTIST_ID")
	id := identity.NewTemporaryID("Artist")
	id.ReplacementIDMap()["ARTIST_ID"] = int64(1)

	row := NewRow(id, map[string]interface{}{"ARTIST_ID": chain(1, int64(2))})
	v, err := row.Value(pk)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), v)
	assert.Equal(t, int64(2), id.ReplacementIDMap()["ARTIST_ID"])
}

func TestPropagatedValue(t *testing.T) {
	assert := assert.New(t)
	m := testdata.NewDataMap()
	artistID := identity.NewTemporaryID("Artist")
	painting := NewRow(identity.NewTemporaryID("Painting"), map[string]interface{}{
		"ARTIST_ID": PropagatedValue(artistID, "ARTIST_ID"),
	})
	fk := m.DbEntity("PAINTING").DbAttribute("ARTIST_ID")

	// the artist row is inserted first and its generated key is learned
	artist := NewRow(artistID, map[string]interface{}{"ARTIST_ID": Deferred(func() interface{} { return int64(99) })})
	_, err := artist.Value(m.DbEntity("ARTIST").DbAttribute("ARTIST_ID"))
	assert.NoError(err)

	v, err := painting.Value(fk)
	assert.NoError(err)
	assert.Equal(int64(99), v)
	assert.False(painting.ObjectID.HasReplacementID())
}

func TestBatchShapes(t *testing.T) {
	assert := assert.New(t)
	artist := testdata.NewDataMap().DbEntity("ARTIST")
	artist.DbAttribute("ARTIST_ID").SetGenerated(true)

	insert := NewInsert(artist)
	assert.Equal(Insert, insert.Kind)
	assert.Len(insert.UpdatedAttributes, 2)

	update := NewUpdate(artist, []*mapping.DbAttribute{artist.DbAttribute("ARTIST_NAME")})
	var names []string
	for _, a := range update.Columns() {
		names = append(names, a.Name())
	}
	assert.Equal([]string{"ARTIST_NAME", "ARTIST_ID"}, names)

	del := NewDelete(artist)
	del.Add(NewRow(identity.NewSingleID("Artist", "ARTIST_ID", 1), nil))
	assert.Len(del.Rows, 1)
	assert.NotNil(del.Rows[0].Values)
	assert.Equal("delete", del.Kind.String())
}
