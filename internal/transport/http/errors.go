package http

import (
	"errors"
	"net/http"

	apierrors "energypulse/internal/errors"
	"energypulse/internal/operations"
	"energypulse/internal/services"
)

// translateError maps service sentinels onto API errors. Pipeline errors
// are left for the error handler, which already knows them.
func translateError(err error) error {
	switch {
	case errors.Is(err, services.ErrDatasetNotFound):
		return apierrors.NewWithDetails(http.StatusNotFound, "DATASET_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, operations.ErrJobNotFound):
		return apierrors.NewWithDetails(http.StatusNotFound, "JOB_NOT_FOUND", err.Error(), nil)
	case errors.Is(err, operations.ErrJobNotCancellable):
		return apierrors.NewWithDetails(http.StatusConflict, "CONFLICT", err.Error(), nil)
	case errors.Is(err, services.ErrNotEnoughDatasets):
		return apierrors.ErrValidation("datasets", err.Error())
	case errors.Is(err, services.ErrUploadTooLarge):
		return apierrors.NewWithDetails(http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", err.Error(), nil)
	case errors.Is(err, operations.ErrQueueFull):
		return apierrors.NewWithDetails(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "import queue is full, retry later", nil)
	case errors.Is(err, operations.ErrQueueStopped), errors.Is(err, services.ErrServiceUnavailable):
		return apierrors.ErrServiceUnavailable
	}
	return err
}
