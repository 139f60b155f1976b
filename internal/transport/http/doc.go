// Package http implements the HTTP handlers of the EnergyPulse API.
//
// Handlers stay thin: they parse and validate the request, call a service
// and render the result with chi/render. Every failure goes through
// errors.ErrorHandler so clients always receive RFC 7807 problem details
// carrying the request's trace_id.
//
// Each handler exposes Routes() for mounting under /api:
//
//	/datasets/types   registry lookups
//	/datasets         import, query, analysis and export of datasets
//	/jobs             import job status, cancellation and websocket stream
//	/analysis         cross-dataset analysis
//
// Service dependencies are interfaces so tests can substitute testify
// mocks.
package http
