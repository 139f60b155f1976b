package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"energypulse/internal/dataprocessing"
	"energypulse/internal/exporter"
	"energypulse/pkg/contracts/domain"
)

// DefaultPageSize is used when a points query has no limit
const DefaultPageSize = 500

// MaxPageSize caps a single points page
const MaxPageSize = 5000

// PointsPage is one window of a dataset's points
type PointsPage struct {
	DatasetID string                      `json:"datasetId"`
	Total     int                         `json:"total"`
	Offset    int                         `json:"offset"`
	Limit     int                         `json:"limit"`
	Points    []domain.ProcessedDataPoint `json:"points"`
}

// ExportOptions controls a dataset export
type ExportOptions struct {
	Format domain.Format
	// FlagAnomalies runs anomaly detection before writing
	FlagAnomalies bool
	Sigma         float64
}

// AnalysisService answers statistical queries over stored datasets
type AnalysisService struct {
	store        *DatasetStore
	defaultSigma float64
	logger       *slog.Logger
}

// NewAnalysisService creates an analysis service. sigma is the anomaly
// threshold used when a request does not specify one.
func NewAnalysisService(store *DatasetStore, sigma float64, logger *slog.Logger) *AnalysisService {
	if sigma <= 0 {
		sigma = dataprocessing.DefaultSigma
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		store:        store,
		defaultSigma: sigma,
		logger:       logger.With(slog.String("component", "analysis_service")),
	}
}

// Dataset returns the stored dataset with id
func (s *AnalysisService) Dataset(ctx context.Context, id string) (Dataset, error) {
	return s.store.Get(id)
}

// Datasets lists the stored datasets
func (s *AnalysisService) Datasets(ctx context.Context) []Dataset {
	return s.store.List()
}

// DeleteDataset drops a stored dataset
func (s *AnalysisService) DeleteDataset(ctx context.Context, id string) error {
	return s.store.Delete(id)
}

// Points returns a window of the dataset's points
func (s *AnalysisService) Points(ctx context.Context, id string, offset, limit int) (PointsPage, error) {
	ds, err := s.store.Get(id)
	if err != nil {
		return PointsPage{}, err
	}

	if offset < 0 {
		offset = 0
	}
	if limit <= 0 {
		limit = DefaultPageSize
	}
	limit = min(limit, MaxPageSize)

	total := len(ds.Points)
	start := min(offset, total)
	end := min(start+limit, total)

	return PointsPage{
		DatasetID: id,
		Total:     total,
		Offset:    offset,
		Limit:     limit,
		Points:    ds.Points[start:end],
	}, nil
}

// Metrics computes descriptive statistics of the dataset values
func (s *AnalysisService) Metrics(ctx context.Context, id string) (domain.DatasetMetrics, error) {
	ds, err := s.store.Get(id)
	if err != nil {
		return domain.DatasetMetrics{}, err
	}
	return dataprocessing.CalculateMetrics(ds.Points)
}

// Anomalies analyzes the dataset at sigma standard deviations. A sigma of
// zero uses the configured default.
func (s *AnalysisService) Anomalies(ctx context.Context, id string, sigma float64) (domain.AnalysisResult, error) {
	ds, err := s.store.Get(id)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	if sigma <= 0 {
		sigma = s.defaultSigma
	}

	result, err := dataprocessing.AnalyzeTimeSeries(ds.Name, ds.Points, sigma)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	s.logger.DebugContext(ctx, "anomaly analysis",
		slog.String("dataset_id", id),
		slog.Float64("sigma", sigma),
		slog.Int("anomalies", result.AnomalyCount))
	return result, nil
}

// Aggregate buckets the dataset by period. A window above 1 smooths the
// series with a centered moving average first.
func (s *AnalysisService) Aggregate(ctx context.Context, id string, period domain.Period, window int) ([]domain.AggregatedPoint, error) {
	ds, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}

	points := ds.Points
	if window > 1 {
		points = dataprocessing.SmoothSeries(points, window)
	}
	return dataprocessing.AggregateByPeriod(points, period)
}

// Correlations returns the pairwise Pearson matrix of the datasets, keyed
// by dataset ID. Repeated IDs count once.
func (s *AnalysisService) Correlations(ctx context.Context, ids []string) (domain.CorrelationMatrix, error) {
	ids = uniqueIDs(ids)
	if len(ids) < 2 {
		return nil, ErrNotEnoughDatasets
	}

	series := make(map[string][]domain.ProcessedDataPoint, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ds, err := s.store.Get(id)
		if err != nil {
			return nil, err
		}
		series[id] = ds.Points
	}
	return dataprocessing.CalculateCorrelations(series), nil
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// Export writes the dataset to w in opts.Format
func (s *AnalysisService) Export(ctx context.Context, id string, opts ExportOptions, w io.Writer) error {
	ds, err := s.store.Get(id)
	if err != nil {
		return err
	}

	points := ds.Points
	if opts.FlagAnomalies {
		sigma := opts.Sigma
		if sigma <= 0 {
			sigma = s.defaultSigma
		}
		metrics, err := dataprocessing.CalculateMetrics(points)
		if err != nil {
			return err
		}
		points = dataprocessing.DetectAnomaliesWithThreshold(points, metrics, sigma)
	}

	if err := exporter.Write(w, opts.Format, points); err != nil {
		return fmt.Errorf("failed to export dataset %s: %w", id, err)
	}
	return nil
}
