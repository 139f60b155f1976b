package services

import (
	"io"
	"log/slog"
	"testing"

	"energypulse/pkg/contracts/domain"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func point(ts string, v float64) domain.ProcessedDataPoint {
	return domain.ProcessedDataPoint{Timestamp: ts, Value: v, Source: "EPE"}
}

// seedDataset stores a dataset with the given values on consecutive days
func seedDataset(t *testing.T, store *DatasetStore, id string, values ...float64) Dataset {
	t.Helper()
	points := make([]domain.ProcessedDataPoint, len(values))
	for i, v := range values {
		points[i] = point(dayStamp(i), v)
	}
	return store.Put(Dataset{
		ID:          id,
		DatasetType: domain.DatasetTypeEPE,
		Name:        "Dados EPE",
		Source:      "EPE",
		Format:      domain.FormatCSV,
		Points:      points,
	})
}

func dayStamp(i int) string {
	days := []string{"01", "02", "03", "04", "05", "06", "07", "08", "09", "10",
		"11", "12", "13", "14", "15", "16", "17", "18", "19", "20",
		"21", "22", "23", "24", "25", "26", "27", "28"}
	return "2024-02-" + days[i%len(days)] + "T00:00:00.000+00:00"
}
