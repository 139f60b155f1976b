package dataprocessing

import (
	"math"
	"sort"

	"energypulse/pkg/contracts/domain"
)

// DefaultSigma is the anomaly threshold in standard deviations
const DefaultSigma = 3.0

var anomalyRecommendations = []string{
	"Identificados pontos de anomalia que podem indicar consumo irregular",
	"Recomenda-se investigar os períodos com valores atípicos",
	"Considerar ajustes nos limites de controle do processo",
}

// CalculateMetrics computes descriptive statistics over the point values.
// The standard deviation is the population one; quartiles use the
// floor-index method.
func CalculateMetrics(points []domain.ProcessedDataPoint) (domain.DatasetMetrics, error) {
	n := len(points)
	if n == 0 {
		return domain.DatasetMetrics{}, ErrEmptySeries
	}

	values := domain.Values(points)

	var total float64
	for _, v := range values {
		total += v
	}
	average := total / float64(n)

	var squares float64
	for _, v := range values {
		d := v - average
		squares += d * d
	}

	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var median float64
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	} else {
		median = sorted[n/2]
	}

	return domain.DatasetMetrics{
		Count:             n,
		Total:             total,
		Average:           average,
		StandardDeviation: math.Sqrt(squares / float64(n)),
		Min:               sorted[0],
		Max:               sorted[n-1],
		Median:            median,
		Q1:                sorted[n/4],
		Q3:                sorted[3*n/4],
	}, nil
}

// DetectAnomalies flags points further than three standard deviations from
// the mean. The input slice is left untouched.
func DetectAnomalies(points []domain.ProcessedDataPoint, metrics domain.DatasetMetrics) []domain.ProcessedDataPoint {
	return DetectAnomaliesWithThreshold(points, metrics, DefaultSigma)
}

// DetectAnomaliesWithThreshold is DetectAnomalies with a custom sigma.
// A non-positive sigma falls back to DefaultSigma.
func DetectAnomaliesWithThreshold(points []domain.ProcessedDataPoint, metrics domain.DatasetMetrics, sigma float64) []domain.ProcessedDataPoint {
	if sigma <= 0 {
		sigma = DefaultSigma
	}
	threshold := sigma * metrics.StandardDeviation

	out := make([]domain.ProcessedDataPoint, len(points))
	for i, p := range points {
		out[i] = p.WithAnomaly(math.Abs(p.Value-metrics.Average) > threshold)
	}
	return out
}

// CountAnomalies returns how many points are flagged
func CountAnomalies(points []domain.ProcessedDataPoint) int {
	count := 0
	for _, p := range points {
		if p.Anomaly {
			count++
		}
	}
	return count
}

// PearsonCorrelation returns the correlation coefficient of a and b over
// their common prefix. It is 0 when fewer than two pairs exist or either
// side has no variance.
func PearsonCorrelation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}

	var sumA, sumB float64
	for i := 0; i < n; i++ {
		sumA += a[i]
		sumB += b[i]
	}
	meanA := sumA / float64(n)
	meanB := sumB / float64(n)

	var cov, varA, varB float64
	for i := 0; i < n; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}

	if varA == 0 || varB == 0 {
		return 0
	}
	return cov / math.Sqrt(varA*varB)
}

// CalculateCorrelations builds the full pairwise correlation matrix of the
// named series. The diagonal is always 1.
func CalculateCorrelations(series map[string][]domain.ProcessedDataPoint) domain.CorrelationMatrix {
	values := make(map[string][]float64, len(series))
	for name, points := range series {
		values[name] = domain.Values(points)
	}

	matrix := make(domain.CorrelationMatrix, len(series))
	for a := range values {
		matrix[a] = make(map[string]float64, len(series))
	}

	for a, va := range values {
		for b, vb := range values {
			if a == b {
				matrix[a][b] = 1
				continue
			}
			if _, done := matrix[b][a]; done {
				matrix[a][b] = matrix[b][a]
				continue
			}
			matrix[a][b] = PearsonCorrelation(va, vb)
		}
	}
	return matrix
}

// AnalyzeTimeSeries computes metrics, flags anomalies at sigma and attaches
// recommendations when any anomaly is found.
func AnalyzeTimeSeries(name string, points []domain.ProcessedDataPoint, sigma float64) (domain.AnalysisResult, error) {
	metrics, err := CalculateMetrics(points)
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	if sigma <= 0 {
		sigma = DefaultSigma
	}

	flagged := DetectAnomaliesWithThreshold(points, metrics, sigma)
	result := domain.AnalysisResult{
		Dataset:      name,
		Metrics:      metrics,
		Sigma:        sigma,
		Points:       flagged,
		AnomalyCount: CountAnomalies(flagged),
	}
	if result.AnomalyCount > 0 {
		result.Recommendations = append([]string(nil), anomalyRecommendations...)
	}
	return result, nil
}
