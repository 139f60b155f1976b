package exporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"energypulse/pkg/contracts/domain"
)

func samplePoints() []domain.ProcessedDataPoint {
	return []domain.ProcessedDataPoint{
		{
			Timestamp: "2024-01-15T10:30:00.000-03:00",
			Value:     1234.56,
			Category:  "Residencial",
			Region:    "Sudeste",
			Source:    "EPE",
			Metadata:  map[string]interface{}{"tipo_tarifa": "B1", "data": "ignored"},
		},
		{
			Timestamp: "2024-01-16T00:00:00.000+00:00",
			Value:     98,
			Source:    "EPE",
			Anomaly:   true,
			Metadata:  map[string]interface{}{"observacao_campo": json.Number("7")},
		},
	}
}

func TestTitleCase(t *testing.T) {
	tests := map[string]string{
		"tipo_tarifa":   "Tipo Tarifa",
		"observacao":    "Observacao",
		"já_medido":     "Já Medido",
		"double__under": "Double  Under",
		"":              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, titleCase(in), in)
	}
}

func TestFormatDate(t *testing.T) {
	assert.Equal(t, "15/01/2024 10:30:00", formatDate("2024-01-15T10:30:00.000-03:00"))
	assert.Equal(t, "15/01/2024 10:30:00", formatDate("2024-01-15T10:30:00Z"))
	assert.Equal(t, "ontem", formatDate("ontem"))
	assert.Equal(t, "", formatDate(""))
}

func TestCSVWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewCSVWriter().Write(&buf, samplePoints()))

	data := buf.Bytes()
	require.True(t, bytes.HasPrefix(data, utf8BOM))

	records, err := csv.NewReader(bytes.NewReader(data[len(utf8BOM):])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"Data", "Valor", "Categoria", "Região", "Fonte", "Anomalia", "Observacao Campo", "Tipo Tarifa"}, records[0])
	assert.Equal(t, []string{"15/01/2024 10:30:00", "1234.56", "Residencial", "Sudeste", "EPE", "Não", "", "B1"}, records[1])
	assert.Equal(t, []string{"16/01/2024 00:00:00", "98", "", "", "EPE", "Sim", "7", ""}, records[2])
}

func TestCSVWriter_NoBOM(t *testing.T) {
	var buf bytes.Buffer
	w := &CSVWriter{}
	require.NoError(t, w.Write(&buf, nil))
	assert.Equal(t, "Data,Valor,Categoria,Região,Fonte,Anomalia\n", buf.String())
}

func TestXLSXWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewXLSXWriter().Write(&buf, samplePoints()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())

	rows, err := f.GetRows(SheetName, excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Data", rows[0][0])
	assert.Equal(t, "Tipo Tarifa", rows[0][7])
	assert.Equal(t, "1234.56", rows[1][1])
	assert.Equal(t, "Sim", rows[2][5])
	assert.Equal(t, "7", rows[2][6])
}

func TestJSONWriter_Write(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONWriter().Write(&buf, samplePoints()))

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &records))
	require.Len(t, records, 2)

	assert.Equal(t, "15/01/2024 10:30:00", records[0]["Data"])
	assert.Equal(t, 1234.56, records[0]["Valor"])
	assert.Equal(t, "Não", records[0]["Anomalia"])
	assert.Equal(t, "B1", records[0]["Tipo Tarifa"])
	assert.NotContains(t, records[0], "Observacao Campo")
	assert.Equal(t, 7.0, records[1]["Observacao Campo"])
}

func TestWrite_UnsupportedFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "pdf", samplePoints())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestContentTypeAndFileName(t *testing.T) {
	assert.Equal(t, "dados_consumo.csv", DefaultFileName(domain.FormatCSV))
	assert.Equal(t, "dados_consumo.xlsx", DefaultFileName(domain.FormatXLSX))
	assert.Contains(t, ContentType(domain.FormatCSV), "text/csv")
	assert.Equal(t, "application/json", ContentType(domain.FormatJSON))
}

func TestFileExporter_Export(t *testing.T) {
	dir := t.TempDir()
	e := NewFileExporter(dir, nil)

	path, err := e.Export(samplePoints(), domain.FormatJSON, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "dados_consumo.json"), path)

	_, err = os.Stat(path)
	require.NoError(t, err)

	nested, err := e.Export(samplePoints(), domain.FormatCSV, "../../escape/out.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "out.csv"), nested)

	_, err = e.Export(samplePoints(), "pdf", "x.pdf")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
