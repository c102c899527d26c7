package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectIDString(t *testing.T) {
	testCases := []struct {
		desc     string
		give     *ObjectID
		expected string
	}{
		{
			"single key",
			NewSingleID("Artist", "ARTIST_ID", 5),
			"Artist:ARTIST_ID=5",
		},
		{
			"compound keys are sorted",
			NewObjectID("ArtistExhibit", map[string]interface{}{"EXHIBIT_ID": 2, "ARTIST_ID": 1}),
			"ArtistExhibit:ARTIST_ID=1&EXHIBIT_ID=2",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.desc, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.give.String())
		})
	}

	tmp := NewTemporaryID("Artist")
	assert.Regexp(t, "^Artist:tmp:[0-9a-f-]{36}$", tmp.String())
}

func TestObjectIDEqual(t *testing.T) {
	assert := assert.New(t)
	a := NewSingleID("Artist", "ARTIST_ID", 5)
	tmp := NewTemporaryID("Artist")

	assert.True(a.Equal(NewSingleID("Artist", "ARTIST_ID", int64(5))))
	assert.False(a.Equal(NewSingleID("Painting", "ARTIST_ID", 5)))
	assert.False(a.Equal(NewSingleID("Artist", "ARTIST_ID", 6)))
	assert.False(a.Equal(tmp))
	assert.True(tmp.Equal(tmp))
	assert.False(tmp.Equal(NewTemporaryID("Artist")))
}

func TestReplacementID(t *testing.T) {
	assert := assert.New(t)
	tmp := NewTemporaryID("Artist")
	assert.True(tmp.IsTemporary())
	assert.False(tmp.HasReplacementID())

	tmp.ReplacementIDMap()["ARTIST_ID"] = 42
	assert.True(tmp.HasReplacementID())

	permanent := tmp.CreateReplacementID()
	assert.False(permanent.IsTemporary())
	assert.Equal("Artist:ARTIST_ID=42", permanent.String())

	snapshot := permanent.IDSnapshot()
	snapshot["ARTIST_ID"] = 1
	assert.Equal(42, permanent.IDSnapshot()["ARTIST_ID"])
}
