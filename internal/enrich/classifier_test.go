package enrich

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

type stubGenerator struct {
	response string
	err      error
	called   bool
}

func (g *stubGenerator) GenerateContent(_ context.Context, _ string) (string, error) {
	g.called = true
	return g.response, g.err
}

func testFeatures() []types.Feature {
	return []types.Feature{
		{ID: 1, Name: "Used Books", Keywords: []string{"used", "secondhand"}},
		{ID: 2, Name: "Coffee Shop", Keywords: []string{"coffee", "espresso"}},
		{ID: 3, Name: "Children's Books", Keywords: []string{"children", "kids"}},
	}
}

func TestClassifyMatchesKeywordsWithoutLLM(t *testing.T) {
	gen := &stubGenerator{response: `["Coffee Shop"]`}
	c := NewClassifier(slog.Default(), testFeatures(), gen)

	shop := types.Bookshop{Name: "Dusty Pages", Description: "Secondhand and used books plus espresso drinks"}
	ids, err := c.Classify(context.Background(), shop, nil)

	require.NoError(t, err)
	assert.ElementsMatch(t, []int{1, 2}, ids)
	assert.False(t, gen.called, "rules matched, LLM should not run")
}

func TestClassifyFallsBackToLLM(t *testing.T) {
	gen := &stubGenerator{response: `["Children's Books", "Coffee Shop"]`}
	c := NewClassifier(slog.Default(), testFeatures(), gen)

	shop := types.Bookshop{Name: "The Nook", Description: "A cozy neighborhood shop"}
	ids, err := c.Classify(context.Background(), shop, nil)

	require.NoError(t, err)
	assert.True(t, gen.called)
	assert.ElementsMatch(t, []int{2, 3}, ids)
}

func TestClassifyStripsCodeFences(t *testing.T) {
	gen := &stubGenerator{response: "```json\n[\"Used Books\"]\n```"}
	c := NewClassifier(slog.Default(), testFeatures(), gen)

	ids, err := c.Classify(context.Background(), types.Bookshop{Name: "Plain"}, nil)

	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids)
}

func TestClassifyUnknownLabelsAreDropped(t *testing.T) {
	gen := &stubGenerator{response: `["Pet Store", "Coffee Shop"]`}
	c := NewClassifier(slog.Default(), testFeatures(), gen)

	ids, err := c.Classify(context.Background(), types.Bookshop{Name: "Plain"}, nil)

	require.NoError(t, err)
	assert.Equal(t, []int{2}, ids)
}

func TestClassifyLLMErrorIsPropagated(t *testing.T) {
	gen := &stubGenerator{err: errors.New("quota exceeded")}
	c := NewClassifier(slog.Default(), testFeatures(), gen)

	_, err := c.Classify(context.Background(), types.Bookshop{Name: "Plain"}, nil)
	assert.Error(t, err)
}

func TestClassifyNilGeneratorSkipsLLM(t *testing.T) {
	c := NewClassifier(slog.Default(), testFeatures(), nil)

	ids, err := c.Classify(context.Background(), types.Bookshop{Name: "Plain"}, nil)

	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestClassifyUsesPlaceData(t *testing.T) {
	c := NewClassifier(slog.Default(), testFeatures(), nil)

	place := &Place{Reviews: []PlaceAPIReview{{Text: "Great storytime for kids on Saturdays"}}}
	ids, err := c.Classify(context.Background(), types.Bookshop{Name: "Plain"}, place)

	require.NoError(t, err)
	assert.Equal(t, []int{3}, ids)
}
