package validation

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"energypulse/internal/dataprocessing"
	"energypulse/pkg/contracts/domain"
)

func TestFileValidator_ValidateFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "consumo.csv")
	require.NoError(t, os.WriteFile(file, []byte("Data,Valor\n"), 0644))

	v := NewFileValidator(slog.Default())

	assert.NoError(t, v.ValidateFile(file))

	err := v.ValidateFile(filepath.Join(dir, "missing.csv"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")

	err = v.ValidateFile(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is a directory")
}

func TestFileValidator_UploadFormat(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		want    domain.Format
		wantErr bool
	}{
		{name: "csv", file: "consumo.csv", want: domain.FormatCSV},
		{name: "upper case xlsx", file: "CENSO.XLSX", want: domain.FormatXLSX},
		{name: "json", file: "clima.json", want: domain.FormatJSON},
		{name: "path is stripped", file: "../../etc/dados.csv", want: domain.FormatCSV},
		{name: "legacy xls", file: "antigo.xls", wantErr: true},
		{name: "office lock file", file: "~$censo.xlsx", wantErr: true},
		{name: "no extension", file: "dados", wantErr: true},
		{name: "empty", file: "", wantErr: true},
	}

	v := NewFileValidator(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := v.UploadFormat(tt.file)
			if tt.wantErr {
				assert.ErrorIs(t, err, dataprocessing.ErrUnsupportedFormat)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFileValidator_ValidateDataFile(t *testing.T) {
	dir := t.TempDir()
	v := NewFileValidator(nil)

	good := filepath.Join(dir, "aneel.csv")
	require.NoError(t, os.WriteFile(good, []byte("x"), 0644))
	format, err := v.ValidateDataFile(good)
	require.NoError(t, err)
	assert.Equal(t, domain.FormatCSV, format)

	bad := filepath.Join(dir, "notes.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0644))
	_, err = v.ValidateDataFile(bad)
	assert.ErrorIs(t, err, dataprocessing.ErrUnsupportedFormat)

	_, err = v.ValidateDataFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestFileValidator_ValidateOutputDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports", "nested")
	v := NewFileValidator(nil)

	require.NoError(t, v.ValidateOutputDirectory(dir))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = os.Stat(filepath.Join(dir, ".write_test"))
	assert.True(t, os.IsNotExist(err))
}
