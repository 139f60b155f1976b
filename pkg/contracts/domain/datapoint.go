package domain

// RawRow is one input record keyed by column header. Values are strings
// for delimited and spreadsheet sources and may be numbers for JSON sources.
type RawRow map[string]interface{}

// ProcessedDataPoint is the canonical normalized record
type ProcessedDataPoint struct {
	Timestamp string                 `json:"timestamp"`
	Value     float64                `json:"value"`
	Category  string                 `json:"category,omitempty"`
	Region    string                 `json:"region,omitempty"`
	Source    string                 `json:"source,omitempty"`
	Anomaly   bool                   `json:"anomaly"`
	Metadata  map[string]interface{} `json:"metadata"`
}

// WithAnomaly returns a copy of the point with the anomaly flag set.
// Metadata is shared with the receiver and must be treated as read-only.
func (p ProcessedDataPoint) WithAnomaly(anomaly bool) ProcessedDataPoint {
	p.Anomaly = anomaly
	return p
}

// Values extracts the value column of a series
func Values(points []ProcessedDataPoint) []float64 {
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = p.Value
	}
	return values
}
