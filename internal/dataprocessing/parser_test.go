package dataprocessing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"energypulse/pkg/contracts/domain"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		headers   []string
		rows      []domain.RawRow
		emptyRows int
	}{
		{
			name:    "comma delimited",
			input:   "data,consumo,classe\n2024-01-15,120.5,Residencial\n2024-01-16,98,Comercial\n",
			headers: []string{"data", "consumo", "classe"},
			rows: []domain.RawRow{
				{"data": "2024-01-15", "consumo": "120.5", "classe": "Residencial"},
				{"data": "2024-01-16", "consumo": "98", "classe": "Comercial"},
			},
		},
		{
			name:    "semicolon delimited with locale numbers",
			input:   "data;consumo;regiao\n15/01/2024;1.234,56;Sudeste\n",
			headers: []string{"data", "consumo", "regiao"},
			rows: []domain.RawRow{
				{"data": "15/01/2024", "consumo": "1.234,56", "regiao": "Sudeste"},
			},
		},
		{
			name:    "byte order mark and padded headers",
			input:   "\xEF\xBB\xBF data , consumo \n2024-01-15,1\n",
			headers: []string{"data", "consumo"},
			rows: []domain.RawRow{
				{"data": "2024-01-15", "consumo": "1"},
			},
		},
		{
			name:      "blank lines and empty records",
			input:     "data,consumo\n\n2024-01-15,1\n,\n  ,  \n2024-01-16,2\n",
			headers:   []string{"data", "consumo"},
			emptyRows: 2,
			rows: []domain.RawRow{
				{"data": "2024-01-15", "consumo": "1"},
				{"data": "2024-01-16", "consumo": "2"},
			},
		},
		{
			name:    "short record leaves missing columns absent",
			input:   "data,consumo,classe\n2024-01-15,1\n",
			headers: []string{"data", "consumo", "classe"},
			rows: []domain.RawRow{
				{"data": "2024-01-15", "consumo": "1"},
			},
		},
		{
			name:    "header only",
			input:   "data,consumo\n",
			headers: []string{"data", "consumo"},
			rows:    nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseCSV(context.Background(), strings.NewReader(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.headers, table.Headers)
			assert.Equal(t, tt.rows, table.Rows)
			assert.Equal(t, tt.emptyRows, table.EmptyRows)
		})
	}
}

func TestParseCSV_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty file", ""},
		{"whitespace only", "\n\n   \n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCSV(context.Background(), strings.NewReader(tt.input))
			require.Error(t, err)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, domain.FormatCSV, parseErr.Format)
		})
	}
}

func TestParseCSV_RejectsBinary(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"xlsx workbook", buildWorkbook(t, [][]interface{}{{"data", "consumo"}, {"2024-01-15", 10}})},
		{"ole2 header", append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, "data,consumo\n"...)},
		{"nul bytes", []byte("data,consumo\n2024-01-15,1\x00\x00\n")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := ParseCSV(context.Background(), bytes.NewReader(tt.input))
			assert.Nil(t, table)

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			assert.Equal(t, domain.FormatCSV, parseErr.Format)
		})
	}
}

func TestParseCSV_Latin1Accepted(t *testing.T) {
	// "região" encoded as ISO-8859-1
	input := []byte("data;consumo;regi\xe3o\n15/01/2024;10;Sul\n")

	table, err := ParseCSV(context.Background(), bytes.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, table.Rows, 1)
}

func TestParseCSV_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ParseCSV(ctx, strings.NewReader("data,consumo\n2024-01-15,1\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func buildWorkbook(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseXLSX(t *testing.T) {
	data := buildWorkbook(t, [][]interface{}{
		{"ano", "populacao", "faixa_etaria", "municipio"},
		{2010, 190755799, "total", "Brasil"},
		{2022, 203080756, "total", "Brasil"},
	})

	table, err := ParseXLSX(context.Background(), bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"ano", "populacao", "faixa_etaria", "municipio"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "2010", table.Rows[0]["ano"])
	assert.Equal(t, "190755799", table.Rows[0]["populacao"])
	assert.Equal(t, "Brasil", table.Rows[1]["municipio"])
}

func TestParseXLSX_Invalid(t *testing.T) {
	_, err := ParseXLSX(context.Background(), strings.NewReader("definitely not a workbook"))
	require.Error(t, err)

	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, domain.FormatXLSX, parseErr.Format)
}

func TestParseXLSX_NoHeader(t *testing.T) {
	data := buildWorkbook(t, nil)

	_, err := ParseXLSX(context.Background(), bytes.NewReader(data))
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
}

func TestParseJSON(t *testing.T) {
	input := `[
		{"data": "2024-01-15", "consumo": 12.5, "classe": "Residencial"},
		{"data": "", "consumo": null},
		{"data": "2024-01-16", "consumo": "7,5", "extra": true}
	]`

	table, err := ParseJSON(context.Background(), strings.NewReader(input))
	require.NoError(t, err)

	assert.Equal(t, []string{"classe", "consumo", "data", "extra"}, table.Headers)
	assert.Equal(t, 1, table.EmptyRows)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, json.Number("12.5"), table.Rows[0]["consumo"])
	assert.Equal(t, "7,5", table.Rows[1]["consumo"])
	assert.Equal(t, true, table.Rows[1]["extra"])
}

func TestParseJSON_Errors(t *testing.T) {
	for _, input := range []string{"", `{"data": "2024-01-15"}`, `[{"data": `} {
		_, err := ParseJSON(context.Background(), strings.NewReader(input))
		var parseErr *ParseError
		assert.True(t, errors.As(err, &parseErr), "input %q", input)
	}
}

func TestParse_UnsupportedFormat(t *testing.T) {
	_, err := Parse(context.Background(), "parquet", strings.NewReader(""))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDetectDelimiter(t *testing.T) {
	assert.Equal(t, ',', detectDelimiter("a,b,c"))
	assert.Equal(t, ';', detectDelimiter("a;b;c"))
	assert.Equal(t, ';', detectDelimiter(`"x,y";b;c`))
	assert.Equal(t, ',', detectDelimiter("single"))
}
