package http

import (
	"context"
	"io"

	"energypulse/internal/operations"
	"energypulse/internal/services"
	"energypulse/pkg/contracts/domain"
)

// ImportServiceInterface accepts uploads and exposes the resulting jobs
type ImportServiceInterface interface {
	Submit(ctx context.Context, datasetType domain.DatasetType, fileName string, r io.Reader) (operations.Job, error)
	GetJob(id string) (operations.Job, error)
	ListJobs(filter operations.JobFilter) ([]operations.Job, error)
	CancelJob(id string) (operations.Job, error)
	WatchJob(id string) (<-chan operations.Job, func(), error)
}

// AnalysisServiceInterface answers queries over imported datasets
type AnalysisServiceInterface interface {
	Dataset(ctx context.Context, id string) (services.Dataset, error)
	Datasets(ctx context.Context) []services.Dataset
	DeleteDataset(ctx context.Context, id string) error
	Points(ctx context.Context, id string, offset, limit int) (services.PointsPage, error)
	Metrics(ctx context.Context, id string) (domain.DatasetMetrics, error)
	Anomalies(ctx context.Context, id string, sigma float64) (domain.AnalysisResult, error)
	Aggregate(ctx context.Context, id string, period domain.Period, window int) ([]domain.AggregatedPoint, error)
	Correlations(ctx context.Context, ids []string) (domain.CorrelationMatrix, error)
	Export(ctx context.Context, id string, opts services.ExportOptions, w io.Writer) error
}

// RegistryInterface looks up dataset configs
type RegistryInterface interface {
	Get(datasetType domain.DatasetType) (domain.DatasetConfig, error)
	Types() []domain.DatasetType
}
