package dataprocessing

import (
	"fmt"
	"sort"
	"time"

	"energypulse/pkg/contracts/domain"
)

// DefaultSmoothingWindow is the moving-average window used by SmoothSeries
const DefaultSmoothingWindow = 3

// ParsePeriod validates an aggregation period name
func ParsePeriod(s string) (domain.Period, error) {
	switch p := domain.Period(s); p {
	case domain.PeriodHour, domain.PeriodDay, domain.PeriodWeek, domain.PeriodMonth, domain.PeriodYear:
		return p, nil
	}
	return "", fmt.Errorf("unsupported aggregation period %q", s)
}

// AggregateByPeriod groups points into period buckets keyed in each
// timestamp's own offset. Weeks start on Sunday. Points whose timestamp
// cannot be read are skipped. Buckets are returned in ascending order.
func AggregateByPeriod(points []domain.ProcessedDataPoint, period domain.Period) ([]domain.AggregatedPoint, error) {
	if _, err := ParsePeriod(string(period)); err != nil {
		return nil, err
	}

	buckets := make(map[string]*domain.AggregatedPoint)
	for _, p := range points {
		t, ok := parseCanonicalTimestamp(p.Timestamp)
		if !ok {
			continue
		}

		key := bucketKey(t, period)
		b, exists := buckets[key]
		if !exists {
			b = &domain.AggregatedPoint{Period: key}
			buckets[key] = b
		}
		b.Sum += p.Value
		b.Count++
	}

	out := make([]domain.AggregatedPoint, 0, len(buckets))
	for _, b := range buckets {
		b.Value = b.Sum / float64(b.Count)
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period < out[j].Period })
	return out, nil
}

// SmoothSeries replaces each value with the mean of a centered window.
// Windows are clipped at the series edges.
func SmoothSeries(points []domain.ProcessedDataPoint, window int) []domain.ProcessedDataPoint {
	if window <= 0 {
		window = DefaultSmoothingWindow
	}
	half := window / 2

	out := make([]domain.ProcessedDataPoint, len(points))
	for i := range points {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > len(points) {
			hi = len(points)
		}

		var sum float64
		for _, p := range points[lo:hi] {
			sum += p.Value
		}
		out[i] = points[i]
		out[i].Value = sum / float64(hi-lo)
	}
	return out
}

func parseCanonicalTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{TimestampLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func bucketKey(t time.Time, period domain.Period) string {
	switch period {
	case domain.PeriodHour:
		return t.Format("2006-01-02T15")
	case domain.PeriodWeek:
		start := t.AddDate(0, 0, -int(t.Weekday()))
		return start.Format("2006-01-02")
	case domain.PeriodMonth:
		return t.Format("2006-01")
	case domain.PeriodYear:
		return t.Format("2006")
	default:
		return t.Format("2006-01-02")
	}
}
