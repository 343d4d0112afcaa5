package types

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilterQuery(t *testing.T) {
	q, err := url.ParseQuery("state=ca&city=Portland&features=3,1,3,x&search=poetry")
	require.NoError(t, err)

	f := ParseFilterQuery(q)

	assert.Equal(t, "CA", f.State)
	assert.Equal(t, "Portland", f.City)
	assert.Equal(t, []int{1, 3}, f.FeatureIDs, "ids deduped, sorted, junk dropped")
	assert.Equal(t, "poetry", f.Search)
	assert.Empty(t, f.County)
}

func TestFilterQueryRoundTripIsIdempotent(t *testing.T) {
	cases := []string{
		"",
		"state=CA",
		"city=Ann+Arbor&state=MI",
		"features=2,5,9&search=used+books",
		"county=Multnomah&features=1",
	}
	for _, qs := range cases {
		q, err := url.ParseQuery(qs)
		require.NoError(t, err)

		once := ParseFilterQuery(q)
		again := ParseFilterQuery(once.Query())
		assert.Equal(t, once, again, "parse(serialize(parse(qs))) must be stable for %q", qs)
		assert.Equal(t, once.Encode(), again.Encode())
	}
}

func TestFilterNormalize(t *testing.T) {
	f := FilterState{State: " wa ", Search: "  cats  ", FeatureIDs: []int{4, 4, -1, 2}}
	n := f.Normalize()
	assert.Equal(t, "WA", n.State)
	assert.Equal(t, "cats", n.Search)
	assert.Equal(t, []int{2, 4}, n.FeatureIDs)
	assert.False(t, n.IsEmpty())
	assert.True(t, FilterState{}.IsEmpty())
}
