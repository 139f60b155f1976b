package exporter_test

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energypulse/internal/dataprocessing"
	"energypulse/internal/datasets"
	"energypulse/internal/exporter"
	"energypulse/pkg/contracts/domain"
)

func TestExportReimportRoundTrip(t *testing.T) {
	original := []domain.ProcessedDataPoint{
		{Timestamp: "2024-01-15T10:30:00.000+00:00", Value: 1234.56, Category: "Residencial", Region: "Sudeste", Source: "EPE"},
		{Timestamp: "2024-01-16T00:00:00.000+00:00", Value: -98.5, Category: "Comercial", Region: "Sul", Source: "EPE", Anomaly: true},
		{Timestamp: "2024-02-01T23:59:59.000+00:00", Value: 0, Source: "EPE"},
	}

	proc := dataprocessing.NewProcessor(datasets.Default())

	for _, format := range []domain.Format{domain.FormatCSV, domain.FormatXLSX, domain.FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, exporter.Write(&buf, format, original))

			result, err := proc.ProcessReader(context.Background(), domain.DatasetTypeExport, format, &buf)
			require.NoError(t, err)
			require.Len(t, result.Points, len(original))

			for i, want := range original {
				got := result.Points[i]
				assert.Equal(t, want.Timestamp, got.Timestamp, "row %d", i)
				assert.InDelta(t, want.Value, got.Value, 1e-9, "row %d", i)
				assert.Equal(t, want.Category, got.Category, "row %d", i)
				assert.Equal(t, want.Region, got.Region, "row %d", i)
				assert.Equal(t, want.Source, got.Metadata["source"], "row %d", i)

				anomaly := "Não"
				if want.Anomaly {
					anomaly = "Sim"
				}
				assert.Equal(t, anomaly, got.Metadata["anomaly"], "row %d", i)
			}
			assert.Zero(t, result.Summary.InvalidValues)
			assert.Zero(t, result.Summary.InvalidTimestamps)
		})
	}
}

func TestExportReimportRoundTrip_ConfiguredZone(t *testing.T) {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	proc := dataprocessing.NewProcessor(datasets.Default(),
		dataprocessing.WithNormalizer(dataprocessing.NewNormalizer(dataprocessing.ModeLenient, loc)))

	source := "data;consumo;classe;regiao\n" +
		"2024-01-15T10:00:00Z;100;Residencial;Sudeste\n" +
		"2024-01-15T10:00:00-05:00;200;Comercial;Sul\n" +
		"15/01/2024 08:00:00;300;Industrial;Norte\n"

	imported, err := proc.ProcessReader(context.Background(), domain.DatasetTypeEPE, domain.FormatCSV, strings.NewReader(source))
	require.NoError(t, err)
	require.Len(t, imported.Points, 3)

	for _, format := range []domain.Format{domain.FormatCSV, domain.FormatXLSX, domain.FormatJSON} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, exporter.Write(&buf, format, imported.Points))

			reimported, err := proc.ProcessReader(context.Background(), domain.DatasetTypeExport, format, &buf)
			require.NoError(t, err)
			require.Len(t, reimported.Points, len(imported.Points))

			for i, want := range imported.Points {
				wantTime, err := time.Parse(dataprocessing.TimestampLayout, want.Timestamp)
				require.NoError(t, err)
				gotTime, err := time.Parse(dataprocessing.TimestampLayout, reimported.Points[i].Timestamp)
				require.NoError(t, err)

				assert.True(t, wantTime.Equal(gotTime), "row %d: %s != %s", i, want.Timestamp, reimported.Points[i].Timestamp)
				assert.Equal(t, want.Timestamp, reimported.Points[i].Timestamp, "row %d", i)
			}
		})
	}
}
