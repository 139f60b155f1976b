package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"energypulse/internal/datasets"
	"energypulse/pkg/contracts/domain"
)

const tracerName = "energypulse/dataprocessing"

// rowsPerChunk is the unit of work handed to each normalization worker
const rowsPerChunk = 512

// Recorder receives per-import telemetry
type Recorder interface {
	RecordImport(ctx context.Context, datasetType domain.DatasetType, summary domain.ImportSummary, duration time.Duration, err error)
}

// Processor runs the parse and normalize pipeline for registered datasets
type Processor struct {
	registry   *datasets.Registry
	normalizer *Normalizer
	workers    int
	logger     *slog.Logger
	recorder   Recorder
}

// Option configures a Processor
type Option func(*Processor)

// WithWorkers bounds the number of concurrent normalization workers
func WithWorkers(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithNormalizer replaces the default lenient UTC normalizer
func WithNormalizer(n *Normalizer) Option {
	return func(p *Processor) {
		if n != nil {
			p.normalizer = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithRecorder attaches an import telemetry recorder
func WithRecorder(r Recorder) Option {
	return func(p *Processor) {
		p.recorder = r
	}
}

// NewProcessor creates a processor backed by registry
func NewProcessor(registry *datasets.Registry, opts ...Option) *Processor {
	p := &Processor{
		registry:   registry,
		normalizer: NewNormalizer(ModeLenient, time.UTC),
		workers:    runtime.GOMAXPROCS(0),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(slog.String("component", "processor"))
	return p
}

// Registry returns the registry the processor resolves dataset types with
func (p *Processor) Registry() *datasets.Registry {
	return p.registry
}

// ProcessFile imports the file at path as datasetType. The dataset type is
// resolved before the file is opened. For the export type the format follows
// the file extension.
func (p *Processor) ProcessFile(ctx context.Context, path string, datasetType domain.DatasetType) (*domain.ImportResult, error) {
	cfg, err := p.registry.Get(datasetType)
	if err != nil {
		return nil, err
	}

	format := cfg.Format
	if datasetType == domain.DatasetTypeExport {
		if ext := FormatFromPath(path); ext != "" {
			format = ext
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer f.Close()

	return p.process(ctx, datasetType, cfg, format, f)
}

// ProcessReader imports r as datasetType. An empty format uses the one
// registered for the dataset.
func (p *Processor) ProcessReader(ctx context.Context, datasetType domain.DatasetType, format domain.Format, r io.Reader) (*domain.ImportResult, error) {
	cfg, err := p.registry.Get(datasetType)
	if err != nil {
		return nil, err
	}
	if format == "" {
		format = cfg.Format
	}
	return p.process(ctx, datasetType, cfg, format, r)
}

func (p *Processor) process(ctx context.Context, datasetType domain.DatasetType, cfg domain.DatasetConfig, format domain.Format, r io.Reader) (result *domain.ImportResult, err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dataprocessing.import")
	defer span.End()
	span.SetAttributes(
		attribute.String("dataset.type", string(datasetType)),
		attribute.String("dataset.format", string(format)),
	)

	start := time.Now()
	var summary domain.ImportSummary
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		if p.recorder != nil {
			p.recorder.RecordImport(ctx, datasetType, summary, time.Since(start), err)
		}
	}()

	table, err := Parse(ctx, format, r)
	if err != nil {
		return nil, err
	}

	points, summary, err := p.normalizeTable(ctx, table, cfg)
	if err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.Int("dataset.rows_total", summary.TotalRows),
		attribute.Int("dataset.rows_processed", summary.ProcessedRows),
	)

	duration := time.Since(start)
	if summary.InvalidValues > 0 || summary.InvalidTimestamps > 0 {
		p.logger.WarnContext(ctx, "Import completed with fallbacks",
			slog.String("dataset_type", string(datasetType)),
			slog.Int("invalid_values", summary.InvalidValues),
			slog.Int("invalid_timestamps", summary.InvalidTimestamps))
	}
	p.logger.InfoContext(ctx, "Import completed",
		slog.String("dataset_type", string(datasetType)),
		slog.String("format", string(format)),
		slog.Int("total_rows", summary.TotalRows),
		slog.Int("processed_rows", summary.ProcessedRows),
		slog.Int("skipped_rows", summary.SkippedRows),
		slog.Duration("duration", duration))

	return &domain.ImportResult{
		DatasetType: datasetType,
		Source:      cfg.Source,
		Format:      format,
		Headers:     table.Headers,
		Points:      points,
		Summary:     summary,
		Duration:    duration,
	}, nil
}

// normalizeTable normalizes rows concurrently. Each worker owns a contiguous
// chunk and writes into its own slots, so output order equals input order.
func (p *Processor) normalizeTable(ctx context.Context, table *Table, cfg domain.DatasetConfig) ([]domain.ProcessedDataPoint, domain.ImportSummary, error) {
	n := len(table.Rows)
	points := make([]domain.ProcessedDataPoint, n)
	issues := make([][]Issue, n)

	chunks := (n + rowsPerChunk - 1) / rowsPerChunk
	rowErrs := make([]error, chunks)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for c := 0; c < chunks; c++ {
		c := c
		lo := c * rowsPerChunk
		hi := lo + rowsPerChunk
		if hi > n {
			hi = n
		}

		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				point, rowIssues, err := p.normalizer.Normalize(table.Rows[i], cfg)
				if err != nil {
					var rowErr *RowError
					if errors.As(err, &rowErr) {
						rowErr.Row = i + 1
					}
					rowErrs[c] = err
					return nil
				}
				points[i] = point
				issues[i] = rowIssues
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, domain.ImportSummary{}, err
	}
	for _, err := range rowErrs {
		if err != nil {
			return nil, domain.ImportSummary{}, err
		}
	}

	summary := domain.ImportSummary{
		TotalRows:     n + table.EmptyRows,
		ProcessedRows: n,
		SkippedRows:   table.EmptyRows,
	}
	for i, rowIssues := range issues {
		for _, issue := range rowIssues {
			switch issue.Kind {
			case IssueInvalidValue:
				summary.InvalidValues++
			case IssueInvalidTimestamp:
				summary.InvalidTimestamps++
			}
			p.logger.DebugContext(ctx, "Field replaced by fallback",
				slog.Int("row", i+1),
				slog.String("field", issue.Field),
				slog.String("kind", string(issue.Kind)),
				slog.Any("value", issue.Value))
		}
	}
	summary.Warnings = buildWarnings(summary, cfg.Columns)

	return points, summary, nil
}

func buildWarnings(s domain.ImportSummary, cols domain.ColumnMapping) []string {
	var warnings []string
	if s.SkippedRows > 0 {
		warnings = append(warnings, fmt.Sprintf("%d linha(s) vazia(s) ignorada(s)", s.SkippedRows))
	}
	if s.InvalidValues > 0 {
		warnings = append(warnings, fmt.Sprintf("%d linha(s) com valor inválido na coluna %q", s.InvalidValues, cols.Value))
	}
	if s.InvalidTimestamps > 0 {
		warnings = append(warnings, fmt.Sprintf("%d linha(s) com data inválida na coluna %q", s.InvalidTimestamps, cols.Timestamp))
	}
	return warnings
}

// FormatFromPath maps a file extension to a Format, or "" when unknown
func FormatFromPath(path string) domain.Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return domain.FormatCSV
	case ".xlsx", ".xlsm":
		return domain.FormatXLSX
	case ".json":
		return domain.FormatJSON
	}
	return ""
}
