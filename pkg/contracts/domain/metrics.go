package domain

// DatasetMetrics aggregates the values of a series
type DatasetMetrics struct {
	Count             int     `json:"count"`
	Total             float64 `json:"total"`
	Average           float64 `json:"average"`
	StandardDeviation float64 `json:"standardDeviation"`
	Min               float64 `json:"min"`
	Max               float64 `json:"max"`
	Median            float64 `json:"median"`
	Q1                float64 `json:"q1"`
	Q3                float64 `json:"q3"`
}

// CorrelationMatrix is a named-by-named Pearson correlation matrix
type CorrelationMatrix map[string]map[string]float64

// Period is an aggregation bucket size
type Period string

const (
	PeriodHour  Period = "hour"
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// AggregatedPoint summarizes the values inside one period bucket.
// Value is the bucket average.
type AggregatedPoint struct {
	Period string  `json:"period"`
	Value  float64 `json:"value"`
	Sum    float64 `json:"sum"`
	Count  int     `json:"count"`
}

// AnalysisResult is the outcome of a time-series analysis
type AnalysisResult struct {
	Dataset         string               `json:"dataset"`
	Metrics         DatasetMetrics       `json:"metrics"`
	Sigma           float64              `json:"sigma"`
	Points          []ProcessedDataPoint `json:"points"`
	AnomalyCount    int                  `json:"anomalyCount"`
	Recommendations []string             `json:"recommendations,omitempty"`
}
