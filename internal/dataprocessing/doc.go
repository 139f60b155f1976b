// Package dataprocessing turns raw dataset files into normalized series and
// computes descriptive statistics over them.
//
// # Architecture
//
// The package is organized into four components:
//
// 1. Parser: reads CSV, XLSX and JSON files into header-keyed rows
// 2. Normalizer: maps rows onto ProcessedDataPoint using a DatasetConfig
// 3. Processor: resolves the dataset type, parses and normalizes in parallel
// 4. Analytics: metrics, anomaly flags, correlations and period aggregation
//
// # Usage
//
//	proc := dataprocessing.NewProcessor(datasets.Default())
//	result, err := proc.ProcessFile(ctx, "consumo.csv", domain.DatasetTypeEPE)
//	if err != nil {
//	    return err
//	}
//
//	metrics, err := dataprocessing.CalculateMetrics(result.Points)
//	flagged := dataprocessing.DetectAnomalies(result.Points, metrics)
//
// # Data Flow
//
//	File → Parser → RawRow → Normalizer → ProcessedDataPoint → Analytics
//
// # Error Handling
//
// Unknown dataset types fail with ErrUnknownDatasetType before any file is
// opened. Unreadable files fail with *ParseError. In strict mode the first
// malformed row fails with *RowError; in lenient mode it is replaced by
// fallbacks and counted in the import summary.
package dataprocessing
