package enrich

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"
)

// ErrNoMatch is returned when the places API finds nothing for a query.
var ErrNoMatch = errors.New("no place matched the query")

// Place is the subset of a places API result the pipeline consumes.
type Place struct {
	PlaceID        string            `json:"place_id"`
	Name           string            `json:"name"`
	Rating         *float64          `json:"rating"`
	ReviewCount    *int              `json:"user_ratings_total"`
	PriceLevel     *int              `json:"price_level"`
	Types          []string          `json:"types"`
	Photos         []string          `json:"photos"`
	Reviews        []PlaceAPIReview  `json:"reviews"`
	OpeningHours   map[string]string `json:"opening_hours"`
	BusinessStatus string            `json:"business_status"`
	EditorialText  string            `json:"editorial_summary"`
}

type PlaceAPIReview struct {
	Author string  `json:"author_name"`
	Rating float64 `json:"rating"`
	Text   string  `json:"text"`
	Time   string  `json:"relative_time_description"`
}

type searchResponse struct {
	Candidates []struct {
		PlaceID string `json:"place_id"`
	} `json:"candidates"`
	Status string `json:"status"`
}

type detailsResponse struct {
	Result Place  `json:"result"`
	Status string `json:"status"`
}

// PlacesClient wraps the places HTTP API with bounded retries, a fixed
// inter-request delay for quota compliance, and a response cache.
type PlacesClient struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	maxRetries int
	delay      time.Duration
	responses  *cache.Cache
}

func NewPlacesClient(logger *slog.Logger, baseURL, apiKey string, maxRetries int, delay time.Duration) *PlacesClient {
	return &PlacesClient{
		logger:     logger,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    baseURL,
		apiKey:     apiKey,
		maxRetries: maxRetries,
		delay:      delay,
		responses:  cache.New(30*time.Minute, time.Hour),
	}
}

// FindPlace resolves a free-text query to a place id, then fetches the
// full details. The combined result is cached per query.
func (c *PlacesClient) FindPlace(ctx context.Context, query string) (*Place, error) {
	if cached, found := c.responses.Get(query); found {
		return cached.(*Place), nil
	}

	var search searchResponse
	searchURL := fmt.Sprintf("%s/findplacefromtext/json?input=%s&inputtype=textquery&fields=place_id&key=%s",
		c.baseURL, url.QueryEscape(query), c.apiKey)
	if err := c.getJSON(ctx, searchURL, &search); err != nil {
		return nil, fmt.Errorf("place search failed: %w", err)
	}
	if search.Status == "ZERO_RESULTS" || len(search.Candidates) == 0 {
		return nil, ErrNoMatch
	}

	place, err := c.Details(ctx, search.Candidates[0].PlaceID)
	if err != nil {
		return nil, err
	}
	c.responses.Set(query, place, cache.DefaultExpiration)
	return place, nil
}

// Details fetches the full record for a known place id.
func (c *PlacesClient) Details(ctx context.Context, placeID string) (*Place, error) {
	if cached, found := c.responses.Get("details:" + placeID); found {
		return cached.(*Place), nil
	}

	var details detailsResponse
	detailsURL := fmt.Sprintf("%s/details/json?place_id=%s&key=%s", c.baseURL, url.QueryEscape(placeID), c.apiKey)
	if err := c.getJSON(ctx, detailsURL, &details); err != nil {
		return nil, fmt.Errorf("place details failed: %w", err)
	}
	if details.Status == "NOT_FOUND" {
		return nil, ErrNoMatch
	}

	place := details.Result
	c.responses.Set("details:"+placeID, &place, cache.DefaultExpiration)
	return &place, nil
}

// getJSON performs a GET with retries. Every attempt is preceded by the
// fixed delay so back-to-back lookups stay inside the API's rate limits.
func (c *PlacesClient) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.delay):
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return fmt.Errorf("failed to build request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.WarnContext(ctx, "places request failed", slog.Int("attempt", attempt+1), slog.Any("error", err))
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("places API returned %d", resp.StatusCode)
			c.logger.WarnContext(ctx, "places request retryable status",
				slog.Int("status", resp.StatusCode), slog.Int("attempt", attempt+1))
			continue
		}
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("places API returned %d: %s", resp.StatusCode, string(body))
		}
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode places response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("places request failed after %d attempts: %w", c.maxRetries+1, lastErr)
}
