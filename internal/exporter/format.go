package exporter

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"energypulse/pkg/contracts/domain"
)

// DateLayout is the layout of the "Data" column
const DateLayout = "02/01/2006 15:04:05"

// Fixed export columns, in order
var baseHeaders = []string{"Data", "Valor", "Categoria", "Região", "Fonte", "Anomalia"}

// sheet is the tabular form shared by every writer. Cells hold typed values;
// text writers stringify them with formatCell.
type sheet struct {
	headers []string
	rows    [][]interface{}
}

// buildSheet lays out points as export rows. Metadata keys become Title Case
// columns after the fixed ones, sorted by name. A metadata column that
// collides with a fixed column is dropped.
func buildSheet(points []domain.ProcessedDataPoint) sheet {
	fixed := make(map[string]bool, len(baseHeaders))
	for _, h := range baseHeaders {
		fixed[h] = true
	}

	extra := make(map[string]bool)
	for _, p := range points {
		for key := range p.Metadata {
			if title := titleCase(key); !fixed[title] {
				extra[title] = true
			}
		}
	}
	extraHeaders := make([]string, 0, len(extra))
	for h := range extra {
		extraHeaders = append(extraHeaders, h)
	}
	sort.Strings(extraHeaders)

	s := sheet{headers: append(append([]string(nil), baseHeaders...), extraHeaders...)}
	index := make(map[string]int, len(extraHeaders))
	for i, h := range extraHeaders {
		index[h] = len(baseHeaders) + i
	}

	for _, p := range points {
		row := make([]interface{}, len(s.headers))
		row[0] = formatDate(p.Timestamp)
		row[1] = p.Value
		row[2] = p.Category
		row[3] = p.Region
		row[4] = p.Source
		row[5] = formatBool(p.Anomaly)
		for key, value := range p.Metadata {
			if i, ok := index[titleCase(key)]; ok {
				row[i] = value
			}
		}
		s.rows = append(s.rows, row)
	}
	return s
}

// titleCase turns snake_case keys into space separated words with the first
// letter of each upper-cased
func titleCase(key string) string {
	words := strings.Split(key, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		r := []rune(w)
		words[i] = strings.ToUpper(string(r[0])) + string(r[1:])
	}
	return strings.Join(words, " ")
}

// formatDate renders a normalized timestamp in its own offset. Timestamps
// that are not normalized are written unchanged.
func formatDate(ts string) string {
	if ts == "" {
		return ""
	}
	for _, layout := range []string{"2006-01-02T15:04:05.000-07:00", time.RFC3339Nano} {
		if t, err := time.Parse(layout, ts); err == nil {
			return t.Format(DateLayout)
		}
	}
	return ts
}

// formatFloat keeps the shortest representation that round-trips
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatBool(b bool) string {
	if b {
		return "Sim"
	}
	return "Não"
}

// formatCell stringifies a cell for text formats
func formatCell(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return formatFloat(val)
	case json.Number:
		return val.String()
	}
	return fmt.Sprint(v)
}
