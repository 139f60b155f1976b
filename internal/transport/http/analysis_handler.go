package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "energypulse/internal/errors"
	"energypulse/internal/middleware"
	api "energypulse/pkg/contracts/api/v1"
)

// AnalysisHandler serves analyses spanning several datasets
type AnalysisHandler struct {
	analysis     AnalysisServiceInterface
	validator    *middleware.Validator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewAnalysisHandler creates an analysis handler
func NewAnalysisHandler(analysis AnalysisServiceInterface, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analysis:     analysis,
		validator:    middleware.NewValidator(logger, errorHandler),
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "analysis")),
	}
}

// Routes returns the analysis routes
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Use(middleware.ContentTypeValidator(h.errorHandler, "application/json"))

	r.Post("/correlations", h.Correlations)
	return r
}

// Correlations handles POST /api/analysis/correlations
func (h *AnalysisHandler) Correlations(w http.ResponseWriter, r *http.Request) {
	var req api.CorrelationRequest
	if !h.validator.DecodeJSON(w, r, &req) {
		return
	}

	matrix, err := h.analysis.Correlations(r.Context(), req.Datasets)
	if err != nil {
		h.errorHandler.HandleError(w, r, translateError(err))
		return
	}
	render.JSON(w, r, api.CorrelationResponse{Datasets: req.Datasets, Matrix: matrix})
}
