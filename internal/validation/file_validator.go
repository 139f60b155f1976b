package validation

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"energypulse/internal/dataprocessing"
	"energypulse/pkg/contracts/domain"
)

// FileValidator checks dataset files before they reach the parser
type FileValidator struct {
	logger *slog.Logger
}

// NewFileValidator creates a new file validator
func NewFileValidator(logger *slog.Logger) *FileValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileValidator{
		logger: logger,
	}
}

// ValidateFile checks if a specific file exists and is readable
func (v *FileValidator) ValidateFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		v.logger.Error("File does not exist",
			slog.String("file", path))
		return fmt.Errorf("file %s does not exist", path)
	}
	if err != nil {
		v.logger.Error("Failed to stat file",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to stat file %s: %w", path, err)
	}
	if info.IsDir() {
		v.logger.Error("Path is a directory, not a file",
			slog.String("path", path))
		return fmt.Errorf("%s is a directory, not a file", path)
	}

	file, err := os.Open(path)
	if err != nil {
		v.logger.Error("File is not readable",
			slog.String("file", path),
			slog.String("error", err.Error()))
		return fmt.Errorf("file %s is not readable: %w", path, err)
	}
	file.Close()

	v.logger.Debug("File validated",
		slog.String("file", path),
		slog.Int64("size", info.Size()))
	return nil
}

// ValidateDataFile checks that path is a readable dataset file and returns
// the format implied by its extension.
func (v *FileValidator) ValidateDataFile(path string) (domain.Format, error) {
	format, err := v.UploadFormat(filepath.Base(path))
	if err != nil {
		return "", err
	}
	if err := v.ValidateFile(path); err != nil {
		return "", err
	}
	return format, nil
}

// UploadFormat resolves the format of an uploaded file name. Office lock
// files ("~$...") are rejected.
func (v *FileValidator) UploadFormat(name string) (domain.Format, error) {
	base := filepath.Base(name)
	if base == "." || base == string(filepath.Separator) || base == "" {
		return "", fmt.Errorf("%w: empty file name", dataprocessing.ErrUnsupportedFormat)
	}
	if strings.HasPrefix(base, "~$") {
		v.logger.Warn("Rejecting temporary Office file",
			slog.String("file", base))
		return "", fmt.Errorf("%w: %s is a temporary Office file", dataprocessing.ErrUnsupportedFormat, base)
	}

	format := dataprocessing.FormatFromPath(base)
	if format == "" {
		v.logger.Warn("Unsupported dataset file",
			slog.String("file", base),
			slog.String("extension", filepath.Ext(base)))
		return "", fmt.Errorf("%w: %q", dataprocessing.ErrUnsupportedFormat, filepath.Ext(base))
	}
	return format, nil
}

// ValidateOutputDirectory ensures output directory exists or can be created
func (v *FileValidator) ValidateOutputDirectory(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		v.logger.Error("Failed to create output directory",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	testFile := filepath.Join(dir, ".write_test")
	file, err := os.Create(testFile)
	if err != nil {
		v.logger.Error("Output directory is not writable",
			slog.String("directory", dir),
			slog.String("error", err.Error()))
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	file.Close()
	os.Remove(testFile)

	v.logger.Debug("Output directory validated",
		slog.String("directory", dir))
	return nil
}
