// Package services implements the application layer between the HTTP
// handlers and the processing packages.
//
// # Services
//
//	DatasetStore     imported datasets kept in memory with a TTL (go-cache)
//	ImportService    accepts uploads and enqueues import jobs
//	ImportRunner     executes a queued job through the dataprocessing pipeline
//	AnalysisService  statistics, anomalies, aggregation, correlation, export
//	HealthService    liveness, readiness and version information
//
// Services receive their collaborators and a *slog.Logger through their
// constructors and take a context.Context on every blocking call.
//
// # Errors
//
// Lookups of unknown datasets return ErrDatasetNotFound. Errors from the
// processing packages are returned wrapped so the HTTP layer can map them
// with errors.Is and errors.As.
package services
