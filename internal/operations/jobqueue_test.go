package operations

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energypulse/pkg/contracts/domain"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func epeRequest() ImportRequest {
	return ImportRequest{
		DatasetType: domain.DatasetTypeEPE,
		Format:      domain.FormatCSV,
		FileName:    "consumo.csv",
		Path:        "/tmp/consumo.csv",
	}
}

func startQueue(t *testing.T, run Runner, opts ...QueueOption) *JobQueue {
	t.Helper()
	opts = append([]QueueOption{WithQueueLogger(quietLogger)}, opts...)
	q := NewJobQueue(NewMemoryJobStore(), run, opts...)
	q.Start(context.Background())
	t.Cleanup(func() { _ = q.Stop(5 * time.Second) })
	return q
}

// waitTerminal drains the watch stream of id and returns the final state
func waitTerminal(t *testing.T, q *JobQueue, id string) (Job, []Job) {
	t.Helper()
	ch, stop, err := q.Watch(id)
	require.NoError(t, err)
	defer stop()

	var seen []Job
	timeout := time.After(5 * time.Second)
	for {
		select {
		case job, ok := <-ch:
			if !ok {
				final, err := q.GetJob(id)
				require.NoError(t, err)
				return final, seen
			}
			seen = append(seen, job)
		case <-timeout:
			t.Fatalf("job %s did not finish", id)
		}
	}
}

func TestJobQueueCompletesJob(t *testing.T) {
	q := startQueue(t, func(ctx context.Context, job Job, progress ProgressFunc) (Result, error) {
		assert.Equal(t, "/tmp/consumo.csv", job.Path)
		return Result{
			DatasetID: "ds-1",
			Summary:   domain.ImportSummary{TotalRows: 3, ProcessedRows: 3},
		}, nil
	})

	job, err := q.Enqueue(context.Background(), epeRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, JobStatusPending, job.Status)

	final, _ := waitTerminal(t, q, job.ID)
	assert.Equal(t, JobStatusCompleted, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, "ds-1", final.DatasetID)
	require.NotNil(t, final.Summary)
	assert.Equal(t, 3, final.Summary.ProcessedRows)
	assert.NotNil(t, final.StartedAt)
	assert.NotNil(t, final.CompletedAt)
}

func TestJobQueueFailures(t *testing.T) {
	tests := []struct {
		name    string
		run     Runner
		wantErr string
	}{
		{
			name: "runner error",
			run: func(context.Context, Job, ProgressFunc) (Result, error) {
				return Result{}, errors.New("bad file")
			},
			wantErr: "bad file",
		},
		{
			name: "runner panic",
			run: func(context.Context, Job, ProgressFunc) (Result, error) {
				panic("boom")
			},
			wantErr: "job processing panicked: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := startQueue(t, tt.run)

			job, err := q.Enqueue(context.Background(), epeRequest())
			require.NoError(t, err)

			final, _ := waitTerminal(t, q, job.ID)
			assert.Equal(t, JobStatusFailed, final.Status)
			assert.Equal(t, tt.wantErr, final.Error)
			assert.Empty(t, final.DatasetID)
		})
	}
}

func TestJobQueueCancelRunning(t *testing.T) {
	started := make(chan struct{})
	q := startQueue(t, func(ctx context.Context, job Job, progress ProgressFunc) (Result, error) {
		close(started)
		<-ctx.Done()
		return Result{}, ctx.Err()
	})

	job, err := q.Enqueue(context.Background(), epeRequest())
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started")
	}

	cancelled, err := q.CancelJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCancelled, cancelled.Status)

	final, _ := waitTerminal(t, q, job.ID)
	assert.Equal(t, JobStatusCancelled, final.Status)
	assert.Empty(t, final.Error)
}

func TestJobQueueCancelPending(t *testing.T) {
	q := NewJobQueue(NewMemoryJobStore(), func(context.Context, Job, ProgressFunc) (Result, error) {
		t.Error("cancelled job must not run")
		return Result{}, nil
	}, WithQueueLogger(quietLogger))

	job, err := q.Enqueue(context.Background(), epeRequest())
	require.NoError(t, err)

	cancelled, err := q.CancelJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCancelled, cancelled.Status)

	_, err = q.CancelJob(job.ID)
	assert.ErrorIs(t, err, ErrJobNotCancellable)

	_, err = q.CancelJob("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)

	// a worker picking up the cancelled job skips it
	q.Start(context.Background())
	require.NoError(t, q.Stop(5*time.Second))

	stored, err := q.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCancelled, stored.Status)
}

// uploadRequest is epeRequest backed by a real file
func uploadRequest(t *testing.T) ImportRequest {
	t.Helper()
	req := epeRequest()
	req.Path = filepath.Join(t.TempDir(), "upload.csv")
	require.NoError(t, os.WriteFile(req.Path, []byte("data;consumo\n15/01/2024;1\n"), 0644))
	return req
}

func TestJobQueueCancelPendingRemovesUpload(t *testing.T) {
	q := NewJobQueue(NewMemoryJobStore(), func(context.Context, Job, ProgressFunc) (Result, error) {
		t.Error("cancelled job must not run")
		return Result{}, nil
	}, WithQueueLogger(quietLogger))

	req := uploadRequest(t)
	job, err := q.Enqueue(context.Background(), req)
	require.NoError(t, err)

	_, err = q.CancelJob(job.ID)
	require.NoError(t, err)
	assert.NoFileExists(t, req.Path)

	q.Start(context.Background())
	require.NoError(t, q.Stop(5*time.Second))
	assert.NoFileExists(t, req.Path)
}

func TestJobQueueCancelRunningKeepsUploadForRunner(t *testing.T) {
	started := make(chan struct{})
	req := uploadRequest(t)
	q := startQueue(t, func(ctx context.Context, job Job, progress ProgressFunc) (Result, error) {
		close(started)
		<-ctx.Done()
		// the runner still sees its input after cancellation
		_, err := os.Stat(job.Path)
		assert.NoError(t, err)
		return Result{}, ctx.Err()
	})

	job, err := q.Enqueue(context.Background(), req)
	require.NoError(t, err)
	<-started

	_, err = q.CancelJob(job.ID)
	require.NoError(t, err)
	final, _ := waitTerminal(t, q, job.ID)
	assert.Equal(t, JobStatusCancelled, final.Status)
}

func TestJobQueueFull(t *testing.T) {
	q := NewJobQueue(NewMemoryJobStore(), func(context.Context, Job, ProgressFunc) (Result, error) {
		return Result{}, nil
	}, WithQueueLogger(quietLogger), WithQueueSize(1))

	_, err := q.Enqueue(context.Background(), epeRequest())
	require.NoError(t, err)

	rejected, err := q.Enqueue(context.Background(), epeRequest())
	assert.ErrorIs(t, err, ErrQueueFull)
	assert.Equal(t, JobStatusFailed, rejected.Status)

	stored, err := q.GetJob(rejected.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusFailed, stored.Status)
}

func TestJobQueueStopCancelsWaitingJobs(t *testing.T) {
	q := NewJobQueue(NewMemoryJobStore(), func(context.Context, Job, ProgressFunc) (Result, error) {
		return Result{}, nil
	}, WithQueueLogger(quietLogger))

	req := uploadRequest(t)
	job, err := q.Enqueue(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, q.Stop(time.Second))
	require.NoError(t, q.Stop(time.Second))
	assert.NoFileExists(t, req.Path)

	stored, err := q.GetJob(job.ID)
	require.NoError(t, err)
	assert.Equal(t, JobStatusCancelled, stored.Status)
	assert.Equal(t, "job queue stopped", stored.Message)

	_, err = q.Enqueue(context.Background(), epeRequest())
	assert.ErrorIs(t, err, ErrQueueStopped)
}

func TestJobQueueWatchProgress(t *testing.T) {
	release := make(chan struct{})
	q := startQueue(t, func(ctx context.Context, job Job, progress ProgressFunc) (Result, error) {
		<-release
		progress(50, "normalizing")
		return Result{DatasetID: "ds-2"}, nil
	})

	job, err := q.Enqueue(context.Background(), epeRequest())
	require.NoError(t, err)

	ch, stop, err := q.Watch(job.ID)
	require.NoError(t, err)
	defer stop()
	close(release)

	var seen []Job
	for update := range ch {
		seen = append(seen, update)
	}

	require.NotEmpty(t, seen)
	last := seen[len(seen)-1]
	assert.Equal(t, JobStatusCompleted, last.Status)
	assert.Equal(t, "ds-2", last.DatasetID)

	var sawProgress bool
	for _, update := range seen {
		if update.Progress == 50 && update.Message == "normalizing" {
			sawProgress = true
		}
	}
	assert.True(t, sawProgress, "progress update not delivered: %+v", seen)
}

func TestJobQueueWatchFinishedJob(t *testing.T) {
	q := startQueue(t, func(context.Context, Job, ProgressFunc) (Result, error) {
		return Result{}, nil
	})

	job, err := q.Enqueue(context.Background(), epeRequest())
	require.NoError(t, err)
	waitTerminal(t, q, job.ID)

	ch, stop, err := q.Watch(job.ID)
	require.NoError(t, err)
	stop()

	update, ok := <-ch
	require.True(t, ok)
	assert.Equal(t, JobStatusCompleted, update.Status)
	_, ok = <-ch
	assert.False(t, ok)

	_, _, err = q.Watch("missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestJobQueuePropagatesRequestID(t *testing.T) {
	got := make(chan string, 1)
	q := startQueue(t, func(ctx context.Context, job Job, progress ProgressFunc) (Result, error) {
		got <- middleware.GetReqID(ctx)
		return Result{}, nil
	})

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-7")
	job, err := q.Enqueue(ctx, epeRequest())
	require.NoError(t, err)
	waitTerminal(t, q, job.ID)

	assert.Equal(t, "req-7", <-got)
}

func TestMemoryJobStore(t *testing.T) {
	store := NewMemoryJobStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	old := base.Add(-2 * time.Hour)

	jobs := []Job{
		{ID: "a", DatasetType: domain.DatasetTypeEPE, Status: JobStatusCompleted, CreatedAt: base, CompletedAt: &old},
		{ID: "b", DatasetType: domain.DatasetTypeANEEL, Status: JobStatusRunning, CreatedAt: base.Add(time.Minute)},
		{ID: "c", DatasetType: domain.DatasetTypeEPE, Status: JobStatusPending, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, job := range jobs {
		require.NoError(t, store.CreateJob(job))
	}
	assert.ErrorIs(t, store.CreateJob(jobs[0]), ErrJobExists)

	all, err := store.ListJobs(JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].ID)
	assert.Equal(t, "a", all[2].ID)

	epe, err := store.ListJobs(JobFilter{DatasetType: domain.DatasetTypeEPE, Limit: 1})
	require.NoError(t, err)
	require.Len(t, epe, 1)
	assert.Equal(t, "c", epe[0].ID)

	running, err := store.ListJobs(JobFilter{Status: JobStatusRunning})
	require.NoError(t, err)
	require.Len(t, running, 1)
	assert.Equal(t, "b", running[0].ID)

	assert.Equal(t, 1, store.PruneFinished(base))
	_, err = store.GetJob("a")
	assert.ErrorIs(t, err, ErrJobNotFound)

	assert.ErrorIs(t, store.UpdateJob(Job{ID: "zz"}), ErrJobNotFound)
	require.NoError(t, store.DeleteJob("b"))
	assert.ErrorIs(t, store.DeleteJob("b"), ErrJobNotFound)
}
