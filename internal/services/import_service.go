package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"energypulse/internal/dataprocessing"
	"energypulse/internal/datasets"
	"energypulse/internal/operations"
	"energypulse/internal/validation"
	"energypulse/pkg/contracts/domain"
)

// ErrUploadTooLarge is returned when an upload exceeds the size limit
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// JobQueue is the part of operations.JobQueue the import service drives
type JobQueue interface {
	Enqueue(ctx context.Context, req operations.ImportRequest) (operations.Job, error)
	GetJob(id string) (operations.Job, error)
	ListJobs(filter operations.JobFilter) ([]operations.Job, error)
	CancelJob(id string) (operations.Job, error)
	Watch(id string) (<-chan operations.Job, func(), error)
}

// ImportService accepts uploaded dataset files and queues them for import
type ImportService struct {
	registry   *datasets.Registry
	queue      JobQueue
	validator  *validation.FileValidator
	uploadsDir string
	maxBytes   int64
	logger     *slog.Logger
}

// NewImportService creates an import service saving uploads under uploadsDir.
// maxBytes <= 0 disables the size check.
func NewImportService(registry *datasets.Registry, queue JobQueue, uploadsDir string, maxBytes int64, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "import_service"))
	return &ImportService{
		registry:   registry,
		queue:      queue,
		validator:  validation.NewFileValidator(logger),
		uploadsDir: uploadsDir,
		maxBytes:   maxBytes,
		logger:     logger,
	}
}

// Submit stores the upload and enqueues an import job for it. The dataset
// type and file extension are checked before anything is written.
func (s *ImportService) Submit(ctx context.Context, datasetType domain.DatasetType, fileName string, r io.Reader) (operations.Job, error) {
	cfg, err := s.registry.Get(datasetType)
	if err != nil {
		return operations.Job{}, err
	}

	format, err := s.validator.UploadFormat(fileName)
	if err != nil {
		return operations.Job{}, err
	}
	if datasetType != domain.DatasetTypeExport && format != cfg.Format {
		return operations.Job{}, fmt.Errorf("%w: %s datasets are %s files, got %s",
			dataprocessing.ErrUnsupportedFormat, datasetType, cfg.Format, format)
	}

	path, err := s.save(fileName, r)
	if err != nil {
		return operations.Job{}, err
	}

	job, err := s.queue.Enqueue(ctx, operations.ImportRequest{
		DatasetType: datasetType,
		Format:      format,
		FileName:    filepath.Base(fileName),
		Path:        path,
	})
	if err != nil {
		os.Remove(path)
		return job, fmt.Errorf("failed to enqueue import: %w", err)
	}

	s.logger.InfoContext(ctx, "import submitted",
		slog.String("job_id", job.ID),
		slog.String("dataset_type", string(datasetType)),
		slog.String("file", job.FileName))
	return job, nil
}

func (s *ImportService) save(fileName string, r io.Reader) (string, error) {
	if err := os.MkdirAll(s.uploadsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create uploads directory: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	path := filepath.Join(s.uploadsDir, uuid.NewString()+ext)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}

	src := r
	if s.maxBytes > 0 {
		src = io.LimitReader(r, s.maxBytes+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil && s.maxBytes > 0 && n > s.maxBytes {
		err = fmt.Errorf("%w: more than %d bytes", ErrUploadTooLarge, s.maxBytes)
	}
	if err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

// GetJob returns the job with id
func (s *ImportService) GetJob(id string) (operations.Job, error) {
	return s.queue.GetJob(id)
}

// ListJobs returns jobs matching filter
func (s *ImportService) ListJobs(filter operations.JobFilter) ([]operations.Job, error) {
	return s.queue.ListJobs(filter)
}

// CancelJob cancels a pending or running job
func (s *ImportService) CancelJob(id string) (operations.Job, error) {
	return s.queue.CancelJob(id)
}

// WatchJob streams status updates of job id
func (s *ImportService) WatchJob(id string) (<-chan operations.Job, func(), error) {
	return s.queue.Watch(id)
}

// ImportRunner executes queued import jobs
type ImportRunner struct {
	processor *dataprocessing.Processor
	store     *DatasetStore
	logger    *slog.Logger
}

// NewImportRunner creates a runner that stores results in store
func NewImportRunner(processor *dataprocessing.Processor, store *DatasetStore, logger *slog.Logger) *ImportRunner {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportRunner{
		processor: processor,
		store:     store,
		logger:    logger.With(slog.String("component", "import_runner")),
	}
}

// Run imports the uploaded file of job and stores the dataset under the
// job ID. The upload is removed afterwards whatever the outcome.
func (r *ImportRunner) Run(ctx context.Context, job operations.Job, progress operations.ProgressFunc) (operations.Result, error) {
	defer func() {
		if err := os.Remove(job.Path); err != nil && !os.IsNotExist(err) {
			r.logger.WarnContext(ctx, "failed to remove upload",
				slog.String("path", job.Path),
				slog.String("error", err.Error()))
		}
	}()

	progress(10, "Parsing file")
	result, err := r.processor.ProcessFile(ctx, job.Path, job.DatasetType)
	if err != nil {
		return operations.Result{}, err
	}

	progress(90, "Storing dataset")
	name := string(job.DatasetType)
	if cfg, err := r.processor.Registry().Get(job.DatasetType); err == nil {
		name = cfg.Name
	}

	ds := r.store.Put(Dataset{
		ID:          job.ID,
		DatasetType: job.DatasetType,
		Name:        name,
		Source:      result.Source,
		Format:      result.Format,
		FileName:    job.FileName,
		Headers:     result.Headers,
		Points:      result.Points,
		Summary:     result.Summary,
	})

	return operations.Result{DatasetID: ds.ID, Summary: result.Summary}, nil
}
