package feature

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"github.com/pagetrail/bookshop-directory/internal/api"
)

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

// GetFeatures handles GET /features - the fixed filter/classification lookup set.
func (h *Handler) GetFeatures(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("FeatureHandler").Start(r.Context(), "GetFeatures")
	defer span.End()

	features, err := h.repo.ListFeatures(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "Failed to list features", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Repository operation failed")
		api.ErrorResponse(w, r, http.StatusInternalServerError, "Failed to list features")
		return
	}
	api.WriteJSONResponse(w, r, http.StatusOK, features)
}
