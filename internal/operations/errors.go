package operations

import "errors"

var (
	// ErrJobNotFound is returned for unknown job IDs
	ErrJobNotFound = errors.New("job not found")
	// ErrJobExists is returned when creating a job with a duplicate ID
	ErrJobExists = errors.New("job already exists")
	// ErrQueueFull is returned when the job buffer has no free slot
	ErrQueueFull = errors.New("job queue is full")
	// ErrQueueStopped is returned when enqueueing after Stop
	ErrQueueStopped = errors.New("job queue is stopped")
	// ErrJobNotCancellable is returned when cancelling a finished job
	ErrJobNotCancellable = errors.New("job cannot be cancelled")
)
