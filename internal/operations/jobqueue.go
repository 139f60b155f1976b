package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"energypulse/pkg/contracts/domain"
)

// JobStatus represents the status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Terminal reports whether no further transitions can happen
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// Job is one asynchronous dataset import
type Job struct {
	ID          string                `json:"id"`
	DatasetType domain.DatasetType    `json:"datasetType"`
	Format      domain.Format         `json:"format"`
	FileName    string                `json:"fileName"`
	Status      JobStatus             `json:"status"`
	Progress    int                   `json:"progress"`
	Message     string                `json:"message,omitempty"`
	Error       string                `json:"error,omitempty"`
	DatasetID   string                `json:"datasetId,omitempty"`
	Summary     *domain.ImportSummary `json:"summary,omitempty"`
	CreatedAt   time.Time             `json:"createdAt"`
	StartedAt   *time.Time            `json:"startedAt,omitempty"`
	CompletedAt *time.Time            `json:"completedAt,omitempty"`

	// Path is the uploaded file on disk
	Path    string `json:"-"`
	TraceID string `json:"-"`
}

// ImportRequest describes a file waiting to be imported
type ImportRequest struct {
	DatasetType domain.DatasetType
	Format      domain.Format
	FileName    string
	Path        string
}

// Result is what a successful import hands back to the queue
type Result struct {
	DatasetID string
	Summary   domain.ImportSummary
}

// ProgressFunc reports intermediate progress (0-100) of a running job
type ProgressFunc func(progress int, message string)

// Runner executes one import job
type Runner func(ctx context.Context, job Job, progress ProgressFunc) (Result, error)

// JobStore persists jobs
type JobStore interface {
	CreateJob(job Job) error
	GetJob(id string) (Job, error)
	UpdateJob(job Job) error
	ListJobs(filter JobFilter) ([]Job, error)
	DeleteJob(id string) error
	PruneFinished(before time.Time) int
}

// JobFilter for querying jobs
type JobFilter struct {
	Status      JobStatus
	DatasetType domain.DatasetType
	Since       time.Time
	Limit       int
}

// JobQueue manages async job execution
type JobQueue struct {
	mu        sync.Mutex
	ids       chan string
	workers   int
	store     JobStore
	run       Runner
	logger    *slog.Logger
	resultTTL time.Duration
	queued    metric.Int64UpDownCounter

	wg       sync.WaitGroup
	shutdown chan struct{}
	stopped  bool
	cancels  map[string]context.CancelFunc
	watchers map[string][]chan Job
}

// QueueOption configures a JobQueue
type QueueOption func(*JobQueue)

// WithWorkers sets the number of concurrent workers
func WithWorkers(n int) QueueOption {
	return func(q *JobQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

// WithQueueSize sets how many jobs may wait for a worker
func WithQueueSize(n int) QueueOption {
	return func(q *JobQueue) {
		if n > 0 {
			q.ids = make(chan string, n)
		}
	}
}

// WithQueueLogger sets the queue logger
func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(q *JobQueue) {
		if logger != nil {
			q.logger = logger
		}
	}
}

// WithResultTTL prunes finished jobs older than ttl
func WithResultTTL(ttl time.Duration) QueueOption {
	return func(q *JobQueue) {
		q.resultTTL = ttl
	}
}

// WithQueuedGauge reports the number of waiting jobs on gauge
func WithQueuedGauge(gauge metric.Int64UpDownCounter) QueueOption {
	return func(q *JobQueue) {
		q.queued = gauge
	}
}

// NewJobQueue creates a new job queue
func NewJobQueue(store JobStore, run Runner, opts ...QueueOption) *JobQueue {
	q := &JobQueue{
		workers:  4,
		store:    store,
		run:      run,
		logger:   slog.Default(),
		shutdown: make(chan struct{}),
		cancels:  make(map[string]context.CancelFunc),
		watchers: make(map[string][]chan Job),
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.ids == nil {
		q.ids = make(chan string, q.workers*2)
	}
	q.logger = q.logger.With(slog.String("component", "jobqueue"))
	return q
}

// Start begins processing jobs
func (q *JobQueue) Start(ctx context.Context) {
	q.logger.Info("starting job queue", slog.Int("workers", q.workers))

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i)
	}

	if q.resultTTL > 0 {
		q.wg.Add(1)
		go q.janitor(ctx)
	}
}

// Stop signals the workers, waits for running jobs and cancels the ones
// still waiting in the buffer.
func (q *JobQueue) Stop(timeout time.Duration) error {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return nil
	}
	q.stopped = true
	close(q.shutdown)
	q.mu.Unlock()

	q.logger.Info("stopping job queue")

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(timeout):
		q.logger.Warn("job queue stop timeout exceeded")
		return fmt.Errorf("timeout waiting for workers to finish")
	}

	for {
		select {
		case id := <-q.ids:
			q.dequeued()
			q.cancelPending(id, "job queue stopped")
		default:
			q.logger.Info("job queue stopped gracefully")
			return nil
		}
	}
}

// Enqueue registers a pending job for req
func (q *JobQueue) Enqueue(ctx context.Context, req ImportRequest) (Job, error) {
	job := Job{
		ID:          uuid.NewString(),
		DatasetType: req.DatasetType,
		Format:      req.Format,
		FileName:    req.FileName,
		Path:        req.Path,
		Status:      JobStatusPending,
		Message:     "Waiting for a worker",
		CreatedAt:   time.Now(),
		TraceID:     middleware.GetReqID(ctx),
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return Job{}, ErrQueueStopped
	}
	if err := q.store.CreateJob(job); err != nil {
		return Job{}, fmt.Errorf("failed to save job: %w", err)
	}

	select {
	case q.ids <- job.ID:
	default:
		job.Status = JobStatusFailed
		job.Error = ErrQueueFull.Error()
		now := time.Now()
		job.CompletedAt = &now
		if err := q.store.UpdateJob(job); err != nil {
			q.logger.Error("failed to update rejected job", slog.String("error", err.Error()))
		}
		return job, ErrQueueFull
	}

	if q.queued != nil {
		q.queued.Add(ctx, 1)
	}
	q.logger.InfoContext(ctx, "job enqueued",
		slog.String("job_id", job.ID),
		slog.String("dataset_type", string(job.DatasetType)),
		slog.String("file", job.FileName))
	return job, nil
}

// GetJob retrieves a job by ID
func (q *JobQueue) GetJob(id string) (Job, error) {
	return q.store.GetJob(id)
}

// ListJobs returns jobs matching the filter
func (q *JobQueue) ListJobs(filter JobFilter) ([]Job, error) {
	return q.store.ListJobs(filter)
}

// CancelJob cancels a pending or running job
func (q *JobQueue) CancelJob(id string) (Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil {
		return Job{}, err
	}
	if job.Status.Terminal() {
		return job, fmt.Errorf("%w: %s is %s", ErrJobNotCancellable, id, job.Status)
	}

	wasPending := job.Status == JobStatusPending
	job.Status = JobStatusCancelled
	job.Message = "Job cancelled"
	now := time.Now()
	job.CompletedAt = &now
	if err := q.store.UpdateJob(job); err != nil {
		return Job{}, err
	}
	// a running job's runner owns the upload; a pending one never gets there
	if wasPending {
		q.removeUpload(job)
	}

	if cancel, ok := q.cancels[id]; ok {
		cancel()
	}
	q.publishLocked(job)
	q.logger.Info("job cancelled", slog.String("job_id", id))
	return job, nil
}

// Watch streams status updates of job id. The current state is delivered
// first; the channel is closed once the job reaches a terminal state or the
// returned stop function is called. Slow readers may miss intermediate
// updates but never the closing of the channel.
func (q *JobQueue) Watch(id string) (<-chan Job, func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil {
		return nil, nil, err
	}

	ch := make(chan Job, 16)
	ch <- job
	if job.Status.Terminal() {
		close(ch)
		return ch, func() {}, nil
	}

	q.watchers[id] = append(q.watchers[id], ch)
	stop := func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		subs := q.watchers[id]
		for i, c := range subs {
			if c == ch {
				q.watchers[id] = append(subs[:i], subs[i+1:]...)
				close(ch)
				break
			}
		}
		if len(q.watchers[id]) == 0 {
			delete(q.watchers, id)
		}
	}
	return ch, stop, nil
}

func (q *JobQueue) worker(ctx context.Context, workerID int) {
	defer q.wg.Done()

	logger := q.logger.With(slog.Int("worker_id", workerID))
	logger.Debug("worker started")

	for {
		// shutdown wins over buffered jobs
		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		default:
		}

		select {
		case <-ctx.Done():
			logger.Debug("worker stopped by context")
			return
		case <-q.shutdown:
			logger.Debug("worker stopped by shutdown")
			return
		case id := <-q.ids:
			q.dequeued()
			q.processJob(ctx, id, logger)
		}
	}
}

func (q *JobQueue) processJob(ctx context.Context, id string, logger *slog.Logger) {
	job, jobCtx, ok := q.begin(ctx, id)
	if !ok {
		return
	}

	logger = logger.With(
		slog.String("job_id", job.ID),
		slog.String("dataset_type", string(job.DatasetType)))
	logger.InfoContext(jobCtx, "processing job started")

	start := time.Now()
	result, err := q.execute(jobCtx, job)
	q.finish(id, result, err)

	if err != nil {
		logger.ErrorContext(jobCtx, "processing job failed",
			slog.String("error", err.Error()),
			slog.Duration("duration", time.Since(start)))
		return
	}
	logger.InfoContext(jobCtx, "processing job completed",
		slog.String("dataset_id", result.DatasetID),
		slog.Int("rows", result.Summary.ProcessedRows),
		slog.Duration("duration", time.Since(start)))
}

// begin moves a pending job to running. Jobs cancelled while waiting are
// skipped.
func (q *JobQueue) begin(ctx context.Context, id string) (Job, context.Context, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil {
		q.logger.Error("queued job vanished", slog.String("job_id", id), slog.String("error", err.Error()))
		return Job{}, nil, false
	}
	if job.Status != JobStatusPending {
		return Job{}, nil, false
	}

	now := time.Now()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	job.Progress = 0
	job.Message = "Job started"
	if err := q.store.UpdateJob(job); err != nil {
		q.logger.Error("failed to update job status", slog.String("error", err.Error()))
	}

	if job.TraceID != "" {
		ctx = context.WithValue(ctx, middleware.RequestIDKey, job.TraceID)
	}
	jobCtx, cancel := context.WithCancel(ctx)
	q.cancels[id] = cancel
	q.publishLocked(job)
	return job, jobCtx, true
}

// execute runs the job, turning a panic into a failure
func (q *JobQueue) execute(ctx context.Context, job Job) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job processing panicked: %v", r)
		}
	}()
	return q.run(ctx, job, func(progress int, message string) {
		q.progress(job.ID, progress, message)
	})
}

func (q *JobQueue) progress(id string, progress int, message string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil || job.Status != JobStatusRunning {
		return
	}
	job.Progress = max(0, min(progress, 100))
	job.Message = message
	if err := q.store.UpdateJob(job); err != nil {
		return
	}
	q.publishLocked(job)
}

func (q *JobQueue) finish(id string, result Result, runErr error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if cancel, ok := q.cancels[id]; ok {
		cancel()
		delete(q.cancels, id)
	}

	job, err := q.store.GetJob(id)
	if err != nil {
		return
	}
	if job.Status.Terminal() {
		// cancelled while running
		q.closeWatchersLocked(id)
		return
	}

	now := time.Now()
	job.CompletedAt = &now
	switch {
	case runErr == nil:
		job.Status = JobStatusCompleted
		job.Progress = 100
		job.Message = "Job completed successfully"
		job.DatasetID = result.DatasetID
		summary := result.Summary
		job.Summary = &summary
	case errors.Is(runErr, context.Canceled):
		job.Status = JobStatusCancelled
		job.Message = "Job cancelled"
	default:
		job.Status = JobStatusFailed
		job.Message = "Job failed"
		job.Error = runErr.Error()
	}

	if err := q.store.UpdateJob(job); err != nil {
		q.logger.Error("failed to update job completion", slog.String("error", err.Error()))
	}
	q.publishLocked(job)
}

func (q *JobQueue) cancelPending(id, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, err := q.store.GetJob(id)
	if err != nil || job.Status != JobStatusPending {
		return
	}
	now := time.Now()
	job.Status = JobStatusCancelled
	job.Message = reason
	job.CompletedAt = &now
	if err := q.store.UpdateJob(job); err == nil {
		q.publishLocked(job)
	}
	q.removeUpload(job)
}

// removeUpload deletes the input file of a job that will never run
func (q *JobQueue) removeUpload(job Job) {
	if job.Path == "" {
		return
	}
	if err := os.Remove(job.Path); err != nil && !os.IsNotExist(err) {
		q.logger.Warn("failed to remove upload of cancelled job",
			slog.String("job_id", job.ID),
			slog.String("path", job.Path),
			slog.String("error", err.Error()))
	}
}

func (q *JobQueue) dequeued() {
	if q.queued != nil {
		q.queued.Add(context.Background(), -1)
	}
}

// publishLocked fans job out to its watchers; q.mu must be held
func (q *JobQueue) publishLocked(job Job) {
	for _, ch := range q.watchers[job.ID] {
		select {
		case ch <- job:
		default:
		}
	}
	if job.Status.Terminal() {
		q.closeWatchersLocked(job.ID)
	}
}

func (q *JobQueue) closeWatchersLocked(id string) {
	for _, ch := range q.watchers[id] {
		close(ch)
	}
	delete(q.watchers, id)
}

func (q *JobQueue) janitor(ctx context.Context) {
	defer q.wg.Done()

	ticker := time.NewTicker(q.resultTTL)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.shutdown:
			return
		case now := <-ticker.C:
			if n := q.store.PruneFinished(now.Add(-q.resultTTL)); n > 0 {
				q.logger.Debug("pruned finished jobs", slog.Int("count", n))
			}
		}
	}
}
