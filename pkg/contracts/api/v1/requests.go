// Package api contains the request and response bodies of the EnergyPulse
// HTTP API. Version v1 is the current stable API.
package api

import (
	"energypulse/pkg/contracts/domain"
)

// CorrelationRequest asks for the Pearson matrix of two or more datasets
type CorrelationRequest struct {
	Datasets []string `json:"datasets" validate:"required,min=2,max=20,unique,dive,required"`
}

// CorrelationResponse is the matrix keyed by dataset ID
type CorrelationResponse struct {
	Datasets []string                 `json:"datasets"`
	Matrix   domain.CorrelationMatrix `json:"matrix"`
}

// ImportAccepted acknowledges a queued import
type ImportAccepted struct {
	JobID       string             `json:"jobId"`
	DatasetID   string             `json:"datasetId"`
	DatasetType domain.DatasetType `json:"datasetType"`
	Status      string             `json:"status"`
	StatusURL   string             `json:"statusUrl"`
	StreamURL   string             `json:"streamUrl"`
}

// DatasetTypeInfo describes one registry entry
type DatasetTypeInfo struct {
	Type domain.DatasetType `json:"type"`
	domain.DatasetConfig
}

// AggregateResponse holds the buckets of an aggregation
type AggregateResponse struct {
	DatasetID string                   `json:"datasetId"`
	Period    domain.Period            `json:"period"`
	Window    int                      `json:"window,omitempty"`
	Buckets   []domain.AggregatedPoint `json:"buckets"`
}

// ListResponse wraps a collection with its size
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

// NewListResponse wraps items, never rendering null
func NewListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}
