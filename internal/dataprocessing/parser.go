package dataprocessing

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"energypulse/pkg/contracts/domain"
)

var (
	errNoHeader = errors.New("missing header row")
	errBinary   = errors.New("binary content is not delimited text")
	utf8BOM     = []byte{0xEF, 0xBB, 0xBF}

	// workbook containers: zip (xlsx, ods) and OLE2 (xls)
	binaryMagic = [][]byte{
		[]byte("PK\x03\x04"),
		{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1},
	}
)

// sniffLen is how much of a CSV input is inspected for binary content
const sniffLen = 8 << 10

// ctxCheckEvery bounds how many rows are read between cancellation checks
const ctxCheckEvery = 256

// Table is a parsed file: the header row in file order and one record per
// data row keyed by header.
type Table struct {
	Headers []string
	Rows    []domain.RawRow
	// EmptyRows counts data rows dropped because every cell was blank
	EmptyRows int
}

// Parse reads r according to format
func Parse(ctx context.Context, format domain.Format, r io.Reader) (*Table, error) {
	switch format {
	case domain.FormatCSV:
		return ParseCSV(ctx, r)
	case domain.FormatXLSX:
		return ParseXLSX(ctx, r)
	case domain.FormatJSON:
		return ParseJSON(ctx, r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

// ParseCSV reads a delimited file whose first line is the header.
// The delimiter is detected from the header line (',' or ';').
func ParseCSV(ctx context.Context, r io.Reader) (*Table, error) {
	br := bufio.NewReaderSize(r, 64<<10)
	if bom, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(bom, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	if looksBinary(br) {
		return nil, &ParseError{Format: domain.FormatCSV, Cause: errBinary}
	}

	firstLine, err := peekLine(br)
	if err != nil {
		return nil, &ParseError{Format: domain.FormatCSV, Cause: err}
	}

	reader := csv.NewReader(br)
	reader.Comma = detectDelimiter(firstLine)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, &ParseError{Format: domain.FormatCSV, Cause: errNoHeader}
	}
	if err != nil {
		return nil, &ParseError{Format: domain.FormatCSV, Cause: err}
	}

	table := newTable(header)
	if len(table.Headers) == 0 {
		return nil, &ParseError{Format: domain.FormatCSV, Cause: errNoHeader}
	}

	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &ParseError{Format: domain.FormatCSV, Cause: err}
		}
		table.add(record)
	}

	return table, nil
}

// ParseXLSX reads the first worksheet of a workbook. Cells are read raw so
// numbers and dates keep their stored representation.
func ParseXLSX(ctx context.Context, r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, &ParseError{Format: domain.FormatXLSX, Cause: err}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, &ParseError{Format: domain.FormatXLSX, Cause: errors.New("workbook has no sheets")}
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, &ParseError{Format: domain.FormatXLSX, Cause: err}
	}
	defer rows.Close()

	var table *Table
	for n := 0; rows.Next(); n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, &ParseError{Format: domain.FormatXLSX, Cause: err}
		}

		if table == nil {
			if isBlank(cols) {
				continue
			}
			table = newTable(cols)
			continue
		}
		table.add(cols)
	}
	if err := rows.Error(); err != nil {
		return nil, &ParseError{Format: domain.FormatXLSX, Cause: err}
	}

	if table == nil || len(table.Headers) == 0 {
		return nil, &ParseError{Format: domain.FormatXLSX, Cause: errNoHeader}
	}
	return table, nil
}

// ParseJSON reads an array of flat objects. Numbers are kept as json.Number.
// Headers are collected in first-seen order.
func ParseJSON(ctx context.Context, r io.Reader) (*Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var records []map[string]interface{}
	if err := dec.Decode(&records); err != nil {
		if err == io.EOF {
			err = errors.New("empty document")
		}
		return nil, &ParseError{Format: domain.FormatJSON, Cause: err}
	}

	table := &Table{Rows: make([]domain.RawRow, 0, len(records))}
	seen := make(map[string]bool)

	for i, rec := range records {
		if i%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row := make(domain.RawRow, len(rec))
		blank := true
		for k, v := range rec {
			row[k] = v
			if !isBlankValue(v) {
				blank = false
			}
		}
		if blank {
			table.EmptyRows++
			continue
		}

		for _, k := range sortedKeys(rec) {
			if !seen[k] {
				seen[k] = true
				table.Headers = append(table.Headers, k)
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

func newTable(header []string) *Table {
	headers := make([]string, 0, len(header))
	for _, h := range header {
		headers = append(headers, strings.TrimSpace(h))
	}
	// trailing blank header cells come from spreadsheet padding
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	return &Table{Headers: headers}
}

func (t *Table) add(record []string) {
	if isBlank(record) {
		t.EmptyRows++
		return
	}

	row := make(domain.RawRow, len(t.Headers))
	for i, h := range t.Headers {
		if h == "" || i >= len(record) {
			continue
		}
		row[h] = record[i]
	}
	t.Rows = append(t.Rows, row)
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func isBlankValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(val) == ""
	}
	return false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// looksBinary reports whether the start of the input is a workbook or holds
// NUL bytes. Text in legacy 8-bit encodings such as Latin-1 passes.
func looksBinary(br *bufio.Reader) bool {
	head, _ := br.Peek(sniffLen)
	for _, magic := range binaryMagic {
		if bytes.HasPrefix(head, magic) {
			return true
		}
	}
	return bytes.IndexByte(head, 0) >= 0
}

// peekLine returns the first non-blank line without consuming input. Lines
// longer than the reader buffer are truncated, which is enough to sniff the
// delimiter.
func peekLine(br *bufio.Reader) (string, error) {
	buf, _ := br.Peek(br.Size())
	for len(buf) > 0 {
		line := buf
		if i := bytes.IndexByte(buf, '\n'); i >= 0 {
			line, buf = buf[:i], buf[i+1:]
		} else {
			buf = nil
		}
		if len(bytes.TrimSpace(line)) > 0 {
			return string(line), nil
		}
	}
	return "", errNoHeader
}

// detectDelimiter picks ';' when it outnumbers ',' outside quotes
func detectDelimiter(line string) rune {
	var commas, semicolons int
	inQuotes := false
	for _, c := range line {
		switch c {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				commas++
			}
		case ';':
			if !inQuotes {
				semicolons++
			}
		}
	}
	if semicolons > commas {
		return ';'
	}
	return ','
}
