package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"energypulse/internal/config"
	"energypulse/internal/dataprocessing"
	"energypulse/internal/datasets"
	"energypulse/internal/exporter"
	"energypulse/internal/infrastructure"
	"energypulse/internal/validation"
	"energypulse/pkg/contracts/domain"
)

// options holds the parsed command line
type options struct {
	datasetType string
	in          string
	out         string
	configPath  string
	anomalies   bool
	sigma       float64
	strict      bool
	metrics     bool
	logLevel    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.datasetType, "type", "", "dataset type (epe, aneel, meteo, censo, export)")
	fs.StringVar(&opts.in, "in", "", "input file")
	fs.StringVar(&opts.out, "out", "", "output file; the extension selects csv, xlsx or json")
	fs.StringVar(&opts.configPath, "config", "", "path to the YAML configuration file")
	fs.BoolVar(&opts.anomalies, "anomalies", false, "flag anomalous points before exporting")
	fs.Float64Var(&opts.sigma, "sigma", 0, "anomaly threshold in standard deviations (default from config)")
	fs.BoolVar(&opts.strict, "strict", false, "fail on the first malformed value or timestamp")
	fs.BoolVar(&opts.metrics, "metrics", false, "print dataset metrics as JSON")
	fs.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.datasetType == "" || opts.in == "" {
		fs.Usage()
		return opts, fmt.Errorf("-type and -in are required")
	}
	if opts.sigma < 0 {
		return opts, fmt.Errorf("-sigma must be positive")
	}
	return opts, nil
}

// run imports one file and optionally analyzes and exports it. Metrics go
// to stdout, logs to stderr.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	logger := infrastructure.NewLogger(stderr, opts.logLevel).With(slog.String("component", "importer"))

	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	mode, err := dataprocessing.ParseMode(cfg.Processing.Mode)
	if err != nil {
		return err
	}
	if opts.strict {
		mode = dataprocessing.ModeStrict
	}
	sigma := opts.sigma
	if sigma == 0 {
		sigma = cfg.Processing.AnomalySigma
	}

	validator := validation.NewFileValidator(logger)
	if _, err := validator.ValidateDataFile(opts.in); err != nil {
		return err
	}
	var outFormat domain.Format
	if opts.out != "" {
		outFormat = dataprocessing.FormatFromPath(opts.out)
		if outFormat == "" {
			return fmt.Errorf("%w: cannot export to %s", dataprocessing.ErrUnsupportedFormat, filepath.Ext(opts.out))
		}
		if err := validator.ValidateOutputDirectory(filepath.Dir(opts.out)); err != nil {
			return err
		}
	}

	processor := dataprocessing.NewProcessor(datasets.Default(),
		dataprocessing.WithWorkers(cfg.Processing.Workers),
		dataprocessing.WithNormalizer(dataprocessing.NewNormalizer(mode, loc)),
		dataprocessing.WithLogger(logger),
	)

	datasetType := domain.DatasetType(strings.ToLower(opts.datasetType))
	result, err := processor.ProcessFile(ctx, opts.in, datasetType)
	if err != nil {
		return err
	}

	logger.Info("Import finished",
		slog.String("dataset_type", string(datasetType)),
		slog.String("file", opts.in),
		slog.Int("total_rows", result.Summary.TotalRows),
		slog.Int("processed_rows", result.Summary.ProcessedRows),
		slog.Int("skipped_rows", result.Summary.SkippedRows),
		slog.Int("invalid_values", result.Summary.InvalidValues),
		slog.Int("invalid_timestamps", result.Summary.InvalidTimestamps),
		slog.Duration("duration", result.Duration))
	for _, warning := range result.Summary.Warnings {
		logger.Warn(warning)
	}

	points := result.Points
	if opts.anomalies || opts.metrics {
		analysis, err := dataprocessing.AnalyzeTimeSeries(string(datasetType), points, sigma)
		if err != nil {
			return err
		}
		if opts.anomalies {
			points = analysis.Points
			logger.Info("Anomaly detection finished",
				slog.Float64("sigma", analysis.Sigma),
				slog.Int("anomalies", analysis.AnomalyCount))
		}
		if opts.metrics {
			enc := json.NewEncoder(stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(analysis.Metrics); err != nil {
				return fmt.Errorf("failed to write metrics: %w", err)
			}
		}
	}

	if opts.out == "" {
		return nil
	}
	path, err := exporter.NewFileExporter(filepath.Dir(opts.out), logger).Export(points, outFormat, filepath.Base(opts.out))
	if err != nil {
		return err
	}
	logger.Info("Export written", slog.String("path", path), slog.Int("points", len(points)))
	return nil
}
