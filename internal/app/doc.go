// Package app wires the EnergyPulse server together: configuration,
// logging, telemetry, the import pipeline, the job queue, the services and
// the chi router.
//
// NewApplication loads the configuration and installs the global logger;
// New takes an already loaded configuration, which is what tests use.
// Run blocks until SIGINT or SIGTERM and then stops the HTTP server,
// drains the job queue and flushes telemetry, in that order.
//
// Errors are returned to the caller. The package never calls os.Exit.
package app
