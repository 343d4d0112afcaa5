package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pagetrail/bookshop-directory/internal/types"
)

// Generator produces text completions. Satisfied by the Gemini client;
// tests provide a stub.
type Generator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Classifier assigns feature ids to a bookshop. Keyword rules run first
// against the shop's text; the LLM only sees shops the rules could not
// place, which keeps token spend proportional to the hard cases.
type Classifier struct {
	logger    *slog.Logger
	features  []types.Feature
	generator Generator
}

func NewClassifier(logger *slog.Logger, features []types.Feature, generator Generator) *Classifier {
	return &Classifier{
		logger:    logger,
		features:  features,
		generator: generator,
	}
}

// Classify returns the feature ids matching the shop's description and
// place data.
func (c *Classifier) Classify(ctx context.Context, shop types.Bookshop, place *Place) ([]int, error) {
	text := classificationText(shop, place)

	ids := c.matchKeywords(text)
	if len(ids) > 0 {
		return ids, nil
	}
	if c.generator == nil {
		return nil, nil
	}
	return c.classifyWithLLM(ctx, shop, text)
}

func (c *Classifier) matchKeywords(text string) []int {
	lower := strings.ToLower(text)
	var ids []int
	for _, f := range c.features {
		for _, kw := range f.Keywords {
			if kw != "" && strings.Contains(lower, strings.ToLower(kw)) {
				ids = append(ids, f.ID)
				break
			}
		}
	}
	return ids
}

func (c *Classifier) classifyWithLLM(ctx context.Context, shop types.Bookshop, text string) ([]int, error) {
	var names []string
	byName := make(map[string]int, len(c.features))
	for _, f := range c.features {
		names = append(names, f.Name)
		byName[strings.ToLower(f.Name)] = f.ID
	}

	prompt := fmt.Sprintf(
		`You label independent bookshops with categories. Categories: %s.
Given the shop below, reply with a JSON array of matching category names, or [] if none apply. Reply with the JSON array only.

Shop: %s`,
		strings.Join(names, ", "), text)

	raw, err := c.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("llm classification failed for %q: %w", shop.Name, err)
	}

	var labels []string
	if err := json.Unmarshal([]byte(extractJSONArray(raw)), &labels); err != nil {
		c.logger.WarnContext(ctx, "unparseable llm classification",
			slog.String("shop", shop.Name), slog.String("response", raw))
		return nil, nil
	}

	var ids []int
	for _, label := range labels {
		if id, ok := byName[strings.ToLower(strings.TrimSpace(label))]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Describe backfills a missing description from the shop's place data.
func (c *Classifier) Describe(ctx context.Context, shop types.Bookshop, place *Place) (string, error) {
	if c.generator == nil {
		return "", nil
	}
	prompt := fmt.Sprintf(
		`Write a two-sentence factual description of the independent bookshop %q in %s, %s for a directory listing. No superlatives, no invented details. Known data: %s`,
		shop.Name, shop.City, shop.State, classificationText(shop, place))

	desc, err := c.generator.GenerateContent(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("llm description failed for %q: %w", shop.Name, err)
	}
	return strings.TrimSpace(desc), nil
}

// classificationText flattens everything known about a shop into one
// searchable string.
func classificationText(shop types.Bookshop, place *Place) string {
	parts := []string{shop.Name, shop.Description}
	if place != nil {
		parts = append(parts, place.EditorialText)
		parts = append(parts, place.Types...)
		for _, r := range place.Reviews {
			parts = append(parts, r.Text)
		}
	}
	return strings.Join(parts, " ")
}

// extractJSONArray trims prose or code fences the model may wrap around
// the array.
func extractJSONArray(raw string) string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}
