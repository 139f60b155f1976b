package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"energypulse/internal/dataprocessing"
	"energypulse/internal/datasets"
)

const epeCSV = "data;consumo;classe;regiao\n" +
	"01/01/2024;100;Residencial;Sudeste\n" +
	"02/01/2024;102;Residencial;Sudeste\n" +
	"03/01/2024;98;Residencial;Sudeste\n" +
	"04/01/2024;101;Residencial;Sudeste\n" +
	"05/01/2024;99;Residencial;Sudeste\n" +
	"06/01/2024;100;Residencial;Sudeste\n" +
	"07/01/2024;abc;Residencial;Sudeste\n"

func writeInput(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "consumo.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "minimal", args: []string{"-type", "epe", "-in", "a.csv"}},
		{name: "all flags", args: []string{"-type", "epe", "-in", "a.csv", "-out", "b.xlsx", "-anomalies", "-sigma", "2", "-strict", "-metrics"}},
		{name: "missing type", args: []string{"-in", "a.csv"}, wantErr: true},
		{name: "missing input", args: []string{"-type", "epe"}, wantErr: true},
		{name: "negative sigma", args: []string{"-type", "epe", "-in", "a.csv", "-sigma", "-1"}, wantErr: true},
		{name: "unknown flag", args: []string{"-bogus"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseFlags(tt.args, &bytes.Buffer{})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRun_PrintsMetrics(t *testing.T) {
	in := writeInput(t, epeCSV)
	var stdout, stderr bytes.Buffer

	err := run(context.Background(), []string{"-type", "epe", "-in", in, "-metrics"}, &stdout, &stderr)
	require.NoError(t, err)

	var metrics map[string]interface{}
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &metrics))
	// the malformed value falls back to zero in lenient mode
	assert.EqualValues(t, 7, metrics["count"])
	assert.InDelta(t, 0.0, metrics["min"], 1e-9)
	assert.Contains(t, stderr.String(), "Import finished")
}

func TestRun_StrictModeFails(t *testing.T) {
	in := writeInput(t, epeCSV)

	err := run(context.Background(), []string{"-type", "epe", "-in", in, "-strict"}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRun_UnknownType(t *testing.T) {
	in := writeInput(t, epeCSV)

	err := run(context.Background(), []string{"-type", "solar", "-in", in}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, dataprocessing.ErrUnknownDatasetType)
}

func TestRun_UnsupportedOutput(t *testing.T) {
	in := writeInput(t, epeCSV)
	out := filepath.Join(t.TempDir(), "out.pdf")

	err := run(context.Background(), []string{"-type", "epe", "-in", in, "-out", out}, &bytes.Buffer{}, &bytes.Buffer{})
	assert.ErrorIs(t, err, dataprocessing.ErrUnsupportedFormat)
}

func TestRun_ExportsCSV(t *testing.T) {
	in := writeInput(t, epeCSV)
	out := filepath.Join(t.TempDir(), "saida", "dados.csv")

	err := run(context.Background(), []string{"-type", "epe", "-in", in, "-out", out, "-anomalies", "-sigma", "2"}, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 8)
	assert.Contains(t, lines[0], "Anomalia")

	// an exported file imports back as the export type
	result, err := dataprocessing.NewProcessor(datasets.Default()).ProcessFile(context.Background(), out, "export")
	require.NoError(t, err)
	assert.Len(t, result.Points, 7)
}

func TestRun_ExportsXLSX(t *testing.T) {
	in := writeInput(t, epeCSV)
	out := filepath.Join(t.TempDir(), "dados.xlsx")

	err := run(context.Background(), []string{"-type", "epe", "-in", in, "-out", out}, &bytes.Buffer{}, &bytes.Buffer{})
	require.NoError(t, err)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	require.NoError(t, err)
	assert.Len(t, rows, 8)
}
