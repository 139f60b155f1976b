package domain

import "time"

// ImportSummary describes how an import went
type ImportSummary struct {
	TotalRows         int      `json:"totalRows"`
	ProcessedRows     int      `json:"processedRows"`
	SkippedRows       int      `json:"skippedRows"`
	InvalidValues     int      `json:"invalidValues"`
	InvalidTimestamps int      `json:"invalidTimestamps"`
	Warnings          []string `json:"warnings,omitempty"`
}

// ImportResult is the output of one processed file
type ImportResult struct {
	DatasetType DatasetType          `json:"datasetType"`
	Source      string               `json:"source"`
	Format      Format               `json:"format"`
	Headers     []string             `json:"headers"`
	Points      []ProcessedDataPoint `json:"points"`
	Summary     ImportSummary        `json:"summary"`
	Duration    time.Duration        `json:"duration"`
}
