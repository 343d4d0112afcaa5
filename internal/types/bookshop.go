package types

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Bookshop is the public list/card view of a shop. Coordinates are carried
// as decimal strings end-to-end; use Coordinates to obtain numeric values.
type Bookshop struct {
	ID          uuid.UUID `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Street      string    `json:"street,omitempty"`
	City        string    `json:"city"`
	State       string    `json:"state"`
	County      string    `json:"county,omitempty"`
	Zip         string    `json:"zip,omitempty"`
	Latitude    string    `json:"latitude"`
	Longitude   string    `json:"longitude"`
	Description string    `json:"description,omitempty"`
	FeatureIDs  []int     `json:"feature_ids"`
	Live        bool      `json:"live"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Coordinates parses the stored decimal strings. ok is false when either
// value is missing or not numeric; such records stay in lists but are
// excluded from map geometry.
func (b *Bookshop) Coordinates() (lng, lat float64, ok bool) {
	if b.Latitude == "" || b.Longitude == "" {
		return 0, 0, false
	}
	lat, errLat := strconv.ParseFloat(b.Latitude, 64)
	lng, errLng := strconv.ParseFloat(b.Longitude, 64)
	if errLat != nil || errLng != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return 0, 0, false
	}
	return lng, lat, true
}

// HasFeature reports whether the shop carries the given feature id.
func (b *Bookshop) HasFeature(id int) bool {
	for _, f := range b.FeatureIDs {
		if f == id {
			return true
		}
	}
	return false
}

// PlaceReview is one review pulled from the places enrichment.
type PlaceReview struct {
	Author string  `json:"author"`
	Rating float64 `json:"rating"`
	Text   string  `json:"text"`
	Time   string  `json:"time"`
}

// BookshopDetail is the full record served for a single selected shop,
// including the enrichment fields that the list payload omits.
type BookshopDetail struct {
	Bookshop
	PlaceID        string            `json:"place_id,omitempty"`
	Rating         *float64          `json:"rating,omitempty"`
	ReviewCount    *int              `json:"review_count,omitempty"`
	PriceLevel     *int              `json:"price_level,omitempty"`
	Photos         []string          `json:"photos,omitempty"`
	Reviews        []PlaceReview     `json:"reviews,omitempty"`
	OpeningHours   map[string]string `json:"opening_hours,omitempty"`
	BusinessStatus string            `json:"business_status,omitempty"`
	Events         []Event           `json:"events,omitempty"`
}

// CreateBookshopRequest is the manual submission payload.
type CreateBookshopRequest struct {
	Name        string `json:"name"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	County      string `json:"county"`
	Zip         string `json:"zip"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
	Description string `json:"description"`
	FeatureIDs  []int  `json:"feature_ids"`
}

// UpdateBookshopRequest carries optional field updates; nil means unchanged.
// Simple last-write-wins semantics.
type UpdateBookshopRequest struct {
	Name        *string `json:"name,omitempty"`
	Street      *string `json:"street,omitempty"`
	City        *string `json:"city,omitempty"`
	State       *string `json:"state,omitempty"`
	County      *string `json:"county,omitempty"`
	Zip         *string `json:"zip,omitempty"`
	Latitude    *string `json:"latitude,omitempty"`
	Longitude   *string `json:"longitude,omitempty"`
	Description *string `json:"description,omitempty"`
	FeatureIDs  []int   `json:"feature_ids,omitempty"`
	Live        *bool   `json:"live,omitempty"`
}

// EnrichmentUpdate is what the places/LLM pipeline writes back.
type EnrichmentUpdate struct {
	PlaceID        string            `json:"place_id"`
	Rating         *float64          `json:"rating"`
	ReviewCount    *int              `json:"review_count"`
	PriceLevel     *int              `json:"price_level"`
	Photos         []string          `json:"photos"`
	Reviews        []PlaceReview     `json:"reviews"`
	OpeningHours   map[string]string `json:"opening_hours"`
	BusinessStatus string            `json:"business_status"`
	Description    string            `json:"description"`
	FeatureIDs     []int             `json:"feature_ids"`
}
