package services

import "errors"

var (
	// ErrDatasetNotFound is returned for unknown or expired dataset IDs
	ErrDatasetNotFound = errors.New("dataset not found")
	// ErrNotEnoughDatasets is returned when a correlation names fewer than two datasets
	ErrNotEnoughDatasets = errors.New("at least two datasets are required")
	// ErrServiceUnavailable is returned when a dependency is not running
	ErrServiceUnavailable = errors.New("service temporarily unavailable")
)
