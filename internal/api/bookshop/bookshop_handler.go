package bookshop

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/pagetrail/bookshop-directory/internal/api"
	"github.com/pagetrail/bookshop-directory/internal/types"
)

type Handler struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
	}
}

// GetBookshop handles GET /bookshops/{idOrSlug} - the full detail record.
func (h *Handler) GetBookshop(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BookshopHandler").Start(r.Context(), "GetBookshop")
	defer span.End()

	l := h.logger.With(slog.String("handler", "GetBookshop"))
	idOrSlug := chi.URLParam(r, "idOrSlug")

	detail, err := h.service.GetByIDOrSlug(ctx, idOrSlug)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Bookshop not found")
			return
		}
		l.ErrorContext(ctx, "Failed to load bookshop", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Service operation failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to load bookshop")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, detail)
}

// CreateBookshop handles POST /bookshops - manual submission (admin).
func (h *Handler) CreateBookshop(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BookshopHandler").Start(r.Context(), "CreateBookshop")
	defer span.End()

	l := h.logger.With(slog.String("handler", "CreateBookshop"))

	var req types.CreateBookshopRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.service.Create(ctx, req)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create bookshop", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusCreated, map[string]interface{}{"id": id})
}

// UpdateBookshop handles PUT /bookshops/{id} - partial update, last write wins.
func (h *Handler) UpdateBookshop(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BookshopHandler").Start(r.Context(), "UpdateBookshop")
	defer span.End()

	l := h.logger.With(slog.String("handler", "UpdateBookshop"))

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid bookshop id")
		return
	}

	var req types.UpdateBookshopRequest
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.service.Update(ctx, id, req); err != nil {
		if errors.Is(err, ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Bookshop not found")
			return
		}
		l.ErrorContext(ctx, "Failed to update bookshop", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to update bookshop")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteBookshop handles DELETE /bookshops/{id} - soft delete (live=false).
func (h *Handler) DeleteBookshop(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BookshopHandler").Start(r.Context(), "DeleteBookshop")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid bookshop id")
		return
	}

	if err := h.service.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			api.ErrorResponse(w, r, http.StatusNotFound, "Bookshop not found")
			return
		}
		h.logger.ErrorContext(ctx, "Failed to soft delete bookshop", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to delete bookshop")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PurgeBookshop handles DELETE /bookshops/{id}/purge - hard delete, allowed
// only for permanently closed businesses.
func (h *Handler) PurgeBookshop(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BookshopHandler").Start(r.Context(), "PurgeBookshop")
	defer span.End()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid bookshop id")
		return
	}

	if err := h.service.Purge(ctx, id); err != nil {
		if errors.Is(err, ErrNotPermanentlyClosed) {
			api.ErrorResponse(w, r, http.StatusConflict, "Only permanently closed bookshops can be purged")
			return
		}
		h.logger.ErrorContext(ctx, "Failed to purge bookshop", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to purge bookshop")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportBookshops handles POST /bookshops/import - bulk submission (admin).
func (h *Handler) ImportBookshops(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("BookshopHandler").Start(r.Context(), "ImportBookshops")
	defer span.End()

	l := h.logger.With(slog.String("handler", "ImportBookshops"))

	var req struct {
		Bookshops []types.CreateBookshopRequest `json:"bookshops"`
	}
	if err := api.DecodeJSONBody(w, r, &req); err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Bookshops) == 0 {
		api.ErrorResponse(w, r, http.StatusBadRequest, "No bookshops to import")
		return
	}

	inserted, err := h.service.BulkImport(ctx, req.Bookshops)
	if err != nil {
		l.ErrorContext(ctx, "Bulk import failed", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"submitted": len(req.Bookshops),
		"inserted":  inserted,
	})
}
