package types

import (
	"time"

	"github.com/google/uuid"
)

// Feature is static reference data used for filtering and classification.
type Feature struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Keywords []string `json:"keywords,omitempty"`
}

// Event belongs to exactly one bookshop. Display data only, no workflow.
type Event struct {
	ID          uuid.UUID `json:"id"`
	BookshopID  uuid.UUID `json:"bookshop_id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	StartsAt    time.Time `json:"starts_at"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateEventRequest is the admin payload for adding a calendar entry.
type CreateEventRequest struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	StartsAt    time.Time `json:"starts_at"`
}
