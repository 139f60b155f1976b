// Package operations runs dataset imports asynchronously.
//
// A JobQueue owns a fixed pool of workers fed from a bounded channel. Each
// Job moves through pending, running and then one of completed, failed or
// cancelled; every transition is persisted to a JobStore and published to
// watchers so status can be streamed to clients.
//
//	queue := operations.NewJobQueue(store, runImport,
//		operations.WithWorkers(2),
//		operations.WithQueueSize(100))
//	queue.Start(ctx)
//	defer queue.Stop(5 * time.Second)
//
//	job, err := queue.Enqueue(ctx, operations.ImportRequest{...})
package operations
