package dataprocessing

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"energypulse/pkg/contracts/domain"
)

// TimestampLayout is the canonical output layout of normalized timestamps
const TimestampLayout = "2006-01-02T15:04:05.000-07:00"

// Mode selects how the normalizer treats malformed fields
type Mode string

const (
	// ModeLenient substitutes 0 for bad values and keeps bad timestamps raw
	ModeLenient Mode = "lenient"
	// ModeStrict rejects the first malformed row
	ModeStrict Mode = "strict"
)

// ParseMode converts a configuration string to a Mode
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeLenient:
		return ModeLenient, nil
	case ModeStrict:
		return ModeStrict, nil
	}
	return "", fmt.Errorf("unknown normalization mode %q", s)
}

// IssueKind classifies a lenient-mode fallback
type IssueKind string

const (
	IssueInvalidValue     IssueKind = "invalid_value"
	IssueInvalidTimestamp IssueKind = "invalid_timestamp"
)

// Issue records a field that was replaced by a fallback
type Issue struct {
	Kind  IssueKind
	Field string
	Value interface{}
}

var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// timestampLayouts are tried in order; day-first wins over month-first
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"01/02/2006",
	"2006-01",
	"01/2006",
	"2006",
}

// Excel stores dates as days since 1899-12-30; the upper bound is 9999-12-31
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)

// NormalizeValue coerces a raw cell into a number. Locale strings such as
// "1.234,56" become 1234.56 and anything unparseable becomes 0.
func NormalizeValue(v interface{}) float64 {
	f, _ := ParseValue(v)
	return f
}

// ParseValue is NormalizeValue that also reports whether a number was found
func ParseValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		return parseNumericString(n.String())
	case string:
		return parseNumericString(n)
	}
	return 0, false
}

func finite(f float64) (float64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// parseNumericString turns every comma into a dot, keeps only the last dot
// as decimal separator and parses the leading numeric prefix.
func parseNumericString(s string) (float64, bool) {
	clean := strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if parts := strings.Split(clean, "."); len(parts) > 2 {
		clean = strings.Join(parts[:len(parts)-1], "") + "." + parts[len(parts)-1]
	}

	prefix := numericPrefix.FindString(clean)
	if prefix == "" {
		return 0, false
	}

	d, err := decimal.NewFromString(strings.TrimPrefix(prefix, "+"))
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return finite(f)
}

// Normalizer maps raw rows onto ProcessedDataPoint
type Normalizer struct {
	mode     Mode
	location *time.Location
}

// NewNormalizer creates a normalizer. A nil location means UTC.
func NewNormalizer(mode Mode, location *time.Location) *Normalizer {
	if mode == "" {
		mode = ModeLenient
	}
	if location == nil {
		location = time.UTC
	}
	return &Normalizer{mode: mode, location: location}
}

// Mode returns the configured mode
func (n *Normalizer) Mode() Mode {
	return n.mode
}

// Normalize converts one row. In lenient mode fallbacks are reported as
// issues; in strict mode the first one is returned as a *RowError.
func (n *Normalizer) Normalize(row domain.RawRow, cfg domain.DatasetConfig) (domain.ProcessedDataPoint, []Issue, error) {
	var issues []Issue
	cols := cfg.Columns

	rawValue := row[cols.Value]
	value, ok := ParseValue(rawValue)
	if !ok {
		if n.mode == ModeStrict {
			return domain.ProcessedDataPoint{}, nil, &RowError{Field: cols.Value, Value: rawValue, Reason: "not a number"}
		}
		issues = append(issues, Issue{Kind: IssueInvalidValue, Field: cols.Value, Value: rawValue})
	}

	rawTimestamp := row[cols.Timestamp]
	timestamp, ok := n.FormatTimestamp(rawTimestamp)
	if !ok {
		if n.mode == ModeStrict {
			return domain.ProcessedDataPoint{}, nil, &RowError{Field: cols.Timestamp, Value: rawTimestamp, Reason: "unrecognized date"}
		}
		issues = append(issues, Issue{Kind: IssueInvalidTimestamp, Field: cols.Timestamp, Value: rawTimestamp})
	}

	point := domain.ProcessedDataPoint{
		Timestamp: timestamp,
		Value:     value,
		Source:    cfg.Source,
		Metadata:  extractMetadata(row, cols),
	}
	if cols.Category != "" {
		point.Category = stringify(row[cols.Category])
	}
	if cols.Region != "" {
		point.Region = stringify(row[cols.Region])
	}

	return point, issues, nil
}

// FormatTimestamp renders a raw date cell in TimestampLayout. Blank input
// yields "" and true. Unrecognized input yields its string form and false.
func (n *Normalizer) FormatTimestamp(v interface{}) (string, bool) {
	if isBlankValue(v) {
		return "", true
	}

	t, ok := n.parseTimestamp(v)
	if !ok {
		return stringify(v), false
	}
	// explicit offsets are converted so every point shares the configured zone
	return t.In(n.location).Format(TimestampLayout), true
}

// ParseTimestamp parses a raw date cell in the normalizer's location
func (n *Normalizer) ParseTimestamp(v interface{}) (time.Time, bool) {
	if isBlankValue(v) {
		return time.Time{}, false
	}
	return n.parseTimestamp(v)
}

func (n *Normalizer) parseTimestamp(v interface{}) (time.Time, bool) {
	switch val := v.(type) {
	case time.Time:
		return val.In(n.location), true
	case string:
		return n.parseTimestampString(strings.TrimSpace(val))
	case json.Number:
		return n.parseTimestampString(val.String())
	}

	if f, ok := ParseValue(v); ok {
		return n.fromNumber(f)
	}
	return time.Time{}, false
}

func (n *Normalizer) parseTimestampString(s string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, n.location); err == nil {
			return t, true
		}
	}

	// spreadsheet serials arrive as plain numeric strings
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return n.fromNumber(f)
	}
	return time.Time{}, false
}

// fromNumber treats four-digit integers as years and anything else in range
// as an Excel serial date.
func (n *Normalizer) fromNumber(f float64) (time.Time, bool) {
	if f == math.Trunc(f) && f >= 1000 && f <= 9999 {
		return time.Date(int(f), time.January, 1, 0, 0, 0, 0, n.location), true
	}
	if f < minExcelSerial || f > maxExcelSerial {
		return time.Time{}, false
	}

	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	// serials carry wall-clock time without a zone
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), n.location), true
}

// extractMetadata copies every column not claimed by the mapping. Extras are
// stored under their canonical name. The result is never nil.
func extractMetadata(row domain.RawRow, cols domain.ColumnMapping) map[string]interface{} {
	claimed := make(map[string]bool, 4+len(cols.Extras))
	for _, h := range cols.Headers() {
		claimed[h] = true
	}

	metadata := make(map[string]interface{})
	for key, value := range row {
		if !claimed[key] {
			metadata[key] = value
		}
	}
	for name, header := range cols.Extras {
		if value, ok := row[header]; ok {
			metadata[name] = value
		}
	}

	return metadata
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}
