package exporter

import (
	"encoding/json"
	"fmt"
	"io"

	"energypulse/pkg/contracts/domain"
)

// JSONWriter writes points as an indented array of export records
type JSONWriter struct{}

// NewJSONWriter creates a JSON writer
func NewJSONWriter() *JSONWriter {
	return &JSONWriter{}
}

// Write encodes points to w. Keys follow the export column names.
func (j *JSONWriter) Write(w io.Writer, points []domain.ProcessedDataPoint) error {
	s := buildSheet(points)

	records := make([]map[string]interface{}, 0, len(s.rows))
	for _, row := range s.rows {
		rec := make(map[string]interface{}, len(row))
		for i, v := range row {
			// absent metadata stays absent
			if i >= len(baseHeaders) && v == nil {
				continue
			}
			rec[s.headers[i]] = v
		}
		records = append(records, rec)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode records: %w", err)
	}
	return nil
}
