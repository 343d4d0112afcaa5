package event

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/pagetrail/bookshop-directory/internal/api"
	"github.com/pagetrail/bookshop-directory/internal/types"
)

const defaultUpcomingLimit = 50

type Handler struct {
	logger *slog.Logger
	repo   Repository
}

func NewHandler(repo Repository, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		repo:   repo,
	}
}

// GetBookshopEvents handles GET /bookshops/{id}/events.
func (h *Handler) GetBookshopEvents(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("EventHandler").Start(r.Context(), "GetBookshopEvents")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid bookshop id")
		return
	}

	events, err := h.repo.ListByBookshop(ctx, id)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list bookshop events", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Repository operation failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list events")
		return
	}
	if events == nil {
		events = []types.Event{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, events)
}

// GetUpcomingEvents handles GET /events/upcoming?limit=N.
func (h *Handler) GetUpcomingEvents(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("EventHandler").Start(r.Context(), "GetUpcomingEvents")
	defer span.End()

	limit := defaultUpcomingLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 && v <= 500 {
			limit = v
		}
	}

	events, err := h.repo.ListUpcoming(ctx, time.Now(), limit)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list upcoming events", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list upcoming events")
		return
	}
	if events == nil {
		events = []types.Event{}
	}
	api.WriteJSONResponse(w, r, http.StatusOK, events)
}

// CreateEvent handles POST /bookshops/{id}/events (admin).
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("EventHandler").Start(r.Context(), "CreateEvent")
	defer span.End()

	l := h.logger.With(slog.String("handler", "CreateEvent"))

	bookshopID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid bookshop id")
		return
	}

	var req types.CreateEventRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Title == "" || req.StartsAt.IsZero() {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Title and starts_at are required")
		return
	}

	id, err := h.repo.Create(ctx, bookshopID, req)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create event", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to create event")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]interface{}{"id": id})
}
