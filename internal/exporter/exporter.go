package exporter

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"energypulse/pkg/contracts/domain"
)

// ErrUnsupportedFormat is returned for formats no writer handles
var ErrUnsupportedFormat = errors.New("unsupported export format")

// Writer encodes a series in one format
type Writer interface {
	Write(w io.Writer, points []domain.ProcessedDataPoint) error
}

// NewWriter returns the writer for format
func NewWriter(format domain.Format) (Writer, error) {
	switch format {
	case domain.FormatCSV:
		return NewCSVWriter(), nil
	case domain.FormatXLSX:
		return NewXLSXWriter(), nil
	case domain.FormatJSON:
		return NewJSONWriter(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

// Write encodes points to w in format
func Write(w io.Writer, format domain.Format, points []domain.ProcessedDataPoint) error {
	writer, err := NewWriter(format)
	if err != nil {
		return err
	}
	return writer.Write(w, points)
}

// DefaultFileName is the file name used when the caller gives none
func DefaultFileName(format domain.Format) string {
	return "dados_consumo." + string(format)
}

// ContentType is the MIME type of an exported file
func ContentType(format domain.Format) string {
	switch format {
	case domain.FormatCSV:
		return "text/csv; charset=utf-8"
	case domain.FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case domain.FormatJSON:
		return "application/json"
	}
	return "application/octet-stream"
}

// FileExporter writes exports below a base directory
type FileExporter struct {
	dir    string
	logger *slog.Logger
}

// NewFileExporter creates an exporter rooted at dir
func NewFileExporter(dir string, logger *slog.Logger) *FileExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileExporter{dir: dir, logger: logger.With(slog.String("component", "exporter"))}
}

// Export writes points to name in format and returns the written path.
// Relative names resolve inside the base directory; an empty name uses
// DefaultFileName.
func (e *FileExporter) Export(points []domain.ProcessedDataPoint, format domain.Format, name string) (string, error) {
	writer, err := NewWriter(format)
	if err != nil {
		return "", err
	}

	fullPath := e.resolvePath(name, format)
	e.logger.Info("Writing export file",
		slog.String("file_path", fullPath),
		slog.String("format", string(format)),
		slog.Int("record_count", len(points)))

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if err := writer.Write(file, points); err != nil {
		file.Close()
		return "", err
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return fullPath, nil
}

func (e *FileExporter) resolvePath(name string, format domain.Format) string {
	if name == "" {
		name = DefaultFileName(format)
	}
	if filepath.IsAbs(name) {
		return name
	}
	// keep relative names inside the export directory
	clean := filepath.Clean(strings.TrimLeft(name, `/\`))
	if strings.HasPrefix(clean, "..") {
		clean = filepath.Base(clean)
	}
	return filepath.Join(e.dir, clean)
}
