package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	gorillaws "github.com/gorilla/websocket"

	apierrors "energypulse/internal/errors"
	"energypulse/internal/middleware"
	"energypulse/internal/operations"
	"energypulse/internal/websocket"
	api "energypulse/pkg/contracts/api/v1"
	"energypulse/pkg/contracts/domain"
)

var jobStatuses = []string{
	string(operations.JobStatusPending),
	string(operations.JobStatusRunning),
	string(operations.JobStatusCompleted),
	string(operations.JobStatusFailed),
	string(operations.JobStatusCancelled),
}

// JobsHandler exposes import jobs
type JobsHandler struct {
	imports      ImportServiceInterface
	upgrader     *gorillaws.Upgrader
	query        *middleware.QueryParamValidator
	errorHandler *apierrors.ErrorHandler
	logger       *slog.Logger
}

// NewJobsHandler creates a jobs handler. allowedOrigins restricts the
// websocket stream the same way CORS restricts the rest of the API.
func NewJobsHandler(imports ImportServiceInterface, allowedOrigins []string, errorHandler *apierrors.ErrorHandler, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		imports:      imports,
		upgrader:     websocket.NewUpgrader(allowedOrigins),
		query:        middleware.NewQueryParamValidator(errorHandler),
		errorHandler: errorHandler,
		logger:       logger.With(slog.String("handler", "jobs")),
	}
}

// Routes returns the job routes
func (h *JobsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.List)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Cancel)
		r.Get("/ws", h.Stream)
	})
	return r
}

// List handles GET /api/jobs?status=&type=&since=&limit=
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	status, ok := h.query.ValidateEnum(w, r, "status", jobStatuses, "")
	if !ok {
		return
	}
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, 1000, 100)
	if !ok {
		return
	}

	filter := operations.JobFilter{
		Status:      operations.JobStatus(status),
		DatasetType: domain.DatasetType(strings.ToLower(r.URL.Query().Get("type"))),
		Limit:       limit,
	}
	if since := r.URL.Query().Get("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("since", "since must be an RFC 3339 timestamp"))
			return
		}
		filter.Since = t
	}

	jobs, err := h.imports.ListJobs(filter)
	if err != nil {
		h.errorHandler.HandleError(w, r, translateError(err))
		return
	}
	render.JSON(w, r, api.NewListResponse(jobs))
}

// Get handles GET /api/jobs/{id}
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	job, err := h.imports.GetJob(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, translateError(err))
		return
	}
	render.JSON(w, r, job)
}

// Cancel handles DELETE /api/jobs/{id}
func (h *JobsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	job, err := h.imports.CancelJob(chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, translateError(err))
		return
	}

	h.logger.InfoContext(r.Context(), "job cancelled", slog.String("job_id", job.ID))
	render.JSON(w, r, job)
}

// Stream handles GET /api/jobs/{id}/ws. The job is looked up before the
// upgrade so unknown IDs get a regular 404.
func (h *JobsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	updates, stop, err := h.imports.WatchJob(id)
	if err != nil {
		h.errorHandler.HandleError(w, r, translateError(err))
		return
	}
	defer stop()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader already answered the client
		h.logger.WarnContext(r.Context(), "websocket upgrade failed",
			slog.String("job_id", id),
			slog.String("error", err.Error()))
		return
	}

	traceID := middleware.GetRequestID(r.Context())
	last := websocket.NewJobStream(websocket.Wrap(conn), updates, traceID, h.logger).Run(r.Context())

	h.logger.DebugContext(r.Context(), "job stream ended",
		slog.String("job_id", id),
		slog.String("status", string(last.Status)))
}
