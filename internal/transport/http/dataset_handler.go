package http

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	apierrors "energypulse/internal/errors"
	"energypulse/internal/exporter"
	"energypulse/internal/middleware"
	"energypulse/internal/services"
	api "energypulse/pkg/contracts/api/v1"
	"energypulse/pkg/contracts/domain"
)

// multipartOverhead is the allowance for multipart boundaries and headers
// on top of the upload size limit
const multipartOverhead = 64 << 10

var (
	exportFormats = []string{string(domain.FormatCSV), string(domain.FormatXLSX), string(domain.FormatJSON)}
	periods       = []string{
		string(domain.PeriodHour),
		string(domain.PeriodDay),
		string(domain.PeriodWeek),
		string(domain.PeriodMonth),
		string(domain.PeriodYear),
	}
)

// DatasetHandler serves the registry, dataset imports and per-dataset
// analysis
type DatasetHandler struct {
	registry       RegistryInterface
	imports        ImportServiceInterface
	analysis       AnalysisServiceInterface
	query          *middleware.QueryParamValidator
	errorHandler   *apierrors.ErrorHandler
	maxUploadBytes int64
	logger         *slog.Logger
}

// NewDatasetHandler creates a dataset handler. maxUploadBytes <= 0 leaves
// uploads unbounded at the transport level.
func NewDatasetHandler(
	registry RegistryInterface,
	imports ImportServiceInterface,
	analysis AnalysisServiceInterface,
	maxUploadBytes int64,
	errorHandler *apierrors.ErrorHandler,
	logger *slog.Logger,
) *DatasetHandler {
	return &DatasetHandler{
		registry:       registry,
		imports:        imports,
		analysis:       analysis,
		query:          middleware.NewQueryParamValidator(errorHandler),
		errorHandler:   errorHandler,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With(slog.String("handler", "datasets")),
	}
}

// Routes returns the dataset routes
func (h *DatasetHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/types", h.ListTypes)
	r.Get("/types/{type}", h.GetType)

	r.Post("/import", h.Import)
	r.Get("/", h.List)

	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Delete)
		r.Get("/points", h.Points)
		r.Get("/metrics", h.Metrics)
		r.Get("/anomalies", h.Anomalies)
		r.Get("/aggregate", h.Aggregate)
		r.Get("/export", h.Export)
	})

	return r
}

// ListTypes handles GET /api/datasets/types
func (h *DatasetHandler) ListTypes(w http.ResponseWriter, r *http.Request) {
	types := h.registry.Types()
	out := make([]api.DatasetTypeInfo, 0, len(types))
	for _, t := range types {
		cfg, err := h.registry.Get(t)
		if err != nil {
			continue
		}
		out = append(out, api.DatasetTypeInfo{Type: t, DatasetConfig: cfg})
	}
	render.JSON(w, r, api.NewListResponse(out))
}

// GetType handles GET /api/datasets/types/{type}
func (h *DatasetHandler) GetType(w http.ResponseWriter, r *http.Request) {
	t := domain.DatasetType(strings.ToLower(chi.URLParam(r, "type")))
	cfg, err := h.registry.Get(t)
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}
	render.JSON(w, r, api.DatasetTypeInfo{Type: t, DatasetConfig: cfg})
}

// Import handles POST /api/datasets/import?type=epe with a multipart body
// whose "file" part is the dataset. The file is streamed to disk and a job
// is queued; the response carries the job and future dataset ID.
func (h *DatasetHandler) Import(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartOverhead)
	}

	reader, err := r.MultipartReader()
	if err != nil {
		h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
		return
	}

	datasetType := domain.DatasetType(strings.ToLower(strings.TrimSpace(r.URL.Query().Get("type"))))
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("file", "multipart field 'file' is required"))
			return
		}
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.InvalidRequestWithError(err))
			return
		}

		switch part.FormName() {
		case "type":
			if datasetType == "" {
				value, _ := io.ReadAll(io.LimitReader(part, 64))
				datasetType = domain.DatasetType(strings.ToLower(strings.TrimSpace(string(value))))
			}
			part.Close()
			continue
		case "file":
		default:
			part.Close()
			continue
		}

		if datasetType == "" {
			part.Close()
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("type", "dataset type is required"))
			return
		}

		job, err := h.imports.Submit(ctx, datasetType, part.FileName(), part)
		part.Close()
		if err != nil {
			h.errorHandler.HandleError(w, r, translateError(err))
			return
		}

		statusURL := "/api/jobs/" + job.ID
		w.Header().Set("Location", statusURL)
		render.Status(r, http.StatusAccepted)
		render.JSON(w, r, api.ImportAccepted{
			JobID:       job.ID,
			DatasetID:   job.ID,
			DatasetType: job.DatasetType,
			Status:      string(job.Status),
			StatusURL:   statusURL,
			StreamURL:   statusURL + "/ws",
		})
		return
	}
}

// List handles GET /api/datasets
func (h *DatasetHandler) List(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, api.NewListResponse(h.analysis.Datasets(r.Context())))
}

// Get handles GET /api/datasets/{id}
func (h *DatasetHandler) Get(w http.ResponseWriter, r *http.Request) {
	ds, err := h.analysis.Dataset(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, translateError(err))
		return
	}
	render.JSON(w, r, ds)
}

// Delete handles DELETE /api/datasets/{id}
func (h *DatasetHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.analysis.DeleteDataset(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.errorHandler.HandleError(w, r, translateError(err))
		return
	}
	render.NoContent(w, r)
}

// Points handles GET /api/datasets/{id}/points?offset=&limit=
func (h *DatasetHandler) Points(w http.ResponseWriter, r *http.Request) {
	offset, ok := h.query.ValidateInt(w, r, "offset", 0, int(^uint(0)>>1), 0)
	if !ok {
		return
	}
	limit, ok := h.query.ValidateInt(w, r, "limit", 1, services.MaxPageSize, services.DefaultPageSize)
	if !ok {
		return
	}

	page, err := h.analysis.Points(r.Context(), chi.URLParam(r, "id"), offset, limit)
	if err != nil {
		h.errorHandler.HandleError(w, r, translateError(err))
		return
	}
	render.JSON(w, r, page)
}

// Metrics handles GET /api/datasets/{id}/metrics
func (h *DatasetHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	metrics, err := h.analysis.Metrics(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.errorHandler.HandleError(w, r, translateError(err))
		return
	}
	render.JSON(w, r, metrics)
}

// Anomalies handles GET /api/datasets/{id}/anomalies?sigma=
func (h *DatasetHandler) Anomalies(w http.ResponseWriter, r *http.Request) {
	sigma, ok := h.query.ValidateFloat(w, r, "sigma", 0.1, 10, 0)
	if !ok {
		return
	}

	result, err := h.analysis.Anomalies(r.Context(), chi.URLParam(r, "id"), sigma)
	if err != nil {
		h.errorHandler.HandleError(w, r, translateError(err))
		return
	}
	render.JSON(w, r, result)
}

// Aggregate handles GET /api/datasets/{id}/aggregate?period=&window=
func (h *DatasetHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	period, ok := h.query.ValidateEnum(w, r, "period", periods, string(domain.PeriodDay))
	if !ok {
		return
	}
	window, ok := h.query.ValidateInt(w, r, "window", 0, 99, 0)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	buckets, err := h.analysis.Aggregate(r.Context(), id, domain.Period(period), window)
	if err != nil {
		h.errorHandler.HandleError(w, r, translateError(err))
		return
	}
	render.JSON(w, r, api.AggregateResponse{
		DatasetID: id,
		Period:    domain.Period(period),
		Window:    window,
		Buckets:   buckets,
	})
}

// Export handles GET /api/datasets/{id}/export?format=&anomalies=&sigma=
// and answers with a file download
func (h *DatasetHandler) Export(w http.ResponseWriter, r *http.Request) {
	format, ok := h.query.ValidateEnum(w, r, "format", exportFormats, string(domain.FormatCSV))
	if !ok {
		return
	}
	flag, ok := h.query.ValidateBool(w, r, "anomalies", false)
	if !ok {
		return
	}
	sigma, ok := h.query.ValidateFloat(w, r, "sigma", 0.1, 10, 0)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	opts := services.ExportOptions{
		Format:        domain.Format(format),
		FlagAnomalies: flag,
		Sigma:         sigma,
	}

	// buffered so a failure can still be answered with a problem document
	var buf bytes.Buffer
	if err := h.analysis.Export(r.Context(), id, opts, &buf); err != nil {
		h.errorHandler.HandleError(w, r, translateError(err))
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType(opts.Format))
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exporter.DefaultFileName(opts.Format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.WarnContext(r.Context(), "export write failed",
			slog.String("dataset_id", id),
			slog.String("error", err.Error()))
	}
}
