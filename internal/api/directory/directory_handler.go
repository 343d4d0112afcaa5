package directory

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/pagetrail/bookshop-directory/internal/api"
	"github.com/pagetrail/bookshop-directory/internal/cluster"
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

// parseBounds reads the viewport box from query parameters, defaulting to
// the whole world when absent. Malformed numbers fall back to the default
// edge instead of rejecting the request.
func parseBounds(q url.Values) types.Bounds {
	b := types.Bounds{MinLng: -180, MinLat: -90, MaxLng: 180, MaxLat: 90}
	read := func(key string, dst *float64) {
		if raw := q.Get(key); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				*dst = v
			}
		}
	}
	read("min_lng", &b.MinLng)
	read("min_lat", &b.MinLat)
	read("max_lng", &b.MaxLng)
	read("max_lat", &b.MaxLat)
	return b.Clamp()
}

func parseZoom(q url.Values) int {
	zoom := 3
	if raw := q.Get("zoom"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			zoom = int(v)
		}
	}
	return zoom
}

// ListBookshops handles GET /bookshops - the filtered live listing.
func (h *Handler) ListBookshops(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("DirectoryHandler").Start(r.Context(), "ListBookshops")
	defer span.End()

	l := h.logger.With(slog.String("handler", "ListBookshops"))
	filter := types.ParseFilterQuery(r.URL.Query())

	shops, err := h.service.ListBookshops(ctx, filter)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list bookshops", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Service operation failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list bookshops")
		return
	}
	if shops == nil {
		shops = []types.Bookshop{}
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"bookshops": shops,
		"count":     len(shops),
		"filter":    filter.Encode(),
	})
}

// GetMarkers handles GET /directory/markers - cluster/leaf markers for the
// current viewport and filter.
func (h *Handler) GetMarkers(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("DirectoryHandler").Start(r.Context(), "GetMarkers")
	defer span.End()

	l := h.logger.With(slog.String("handler", "GetMarkers"))

	q := r.URL.Query()
	filter := types.ParseFilterQuery(q)
	bounds := parseBounds(q)
	zoom := parseZoom(q)

	markers, err := h.service.Markers(ctx, filter, bounds, zoom)
	if err != nil {
		l.ErrorContext(ctx, "Failed to compute markers", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Service operation failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to compute map markers")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"markers": markers,
		"filter":  filter.Encode(),
		"zoom":    zoom,
	})
}

// ExpandCluster handles GET /directory/markers/{clusterID}/expand - the
// zoom the viewport should animate to. An id the current pass does not know
// is answered with 204: a no-op click, never a crash.
func (h *Handler) ExpandCluster(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("DirectoryHandler").Start(r.Context(), "ExpandCluster")
	defer span.End()

	l := h.logger.With(slog.String("handler", "ExpandCluster"))

	clusterID, err := strconv.ParseUint(chi.URLParam(r, "clusterID"), 10, 64)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusBadRequest, "Invalid cluster id")
		return
	}
	filter := types.ParseFilterQuery(r.URL.Query())

	zoom, err := h.service.ExpansionZoom(ctx, filter, clusterID)
	if err != nil {
		if errors.Is(err, cluster.ErrUnknownCluster) {
			l.WarnContext(ctx, "Expansion requested for unknown cluster", slog.Uint64("cluster_id", clusterID))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		l.ErrorContext(ctx, "Failed to compute expansion zoom", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to compute expansion zoom")
		return
	}

	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"cluster_id": clusterID,
		"zoom":       zoom,
	})
}

// FitViewport handles GET /directory/fit - the viewport framing every
// filtered result. No mappable result returns 204 (an empty map state).
func (h *Handler) FitViewport(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("DirectoryHandler").Start(r.Context(), "FitViewport")
	defer span.End()

	l := h.logger.With(slog.String("handler", "FitViewport"))
	filter := types.ParseFilterQuery(r.URL.Query())

	vp, err := h.service.Fit(ctx, filter)
	if err != nil {
		l.ErrorContext(ctx, "Failed to fit viewport", slog.Any("error", err))
		span.RecordError(err)
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to fit viewport")
		return
	}
	if vp == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, vp)
}
