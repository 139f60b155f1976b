package domain

// DatasetType identifies one entry of the source config registry
type DatasetType string

const (
	DatasetTypeEPE    DatasetType = "epe"
	DatasetTypeANEEL  DatasetType = "aneel"
	DatasetTypeMeteo  DatasetType = "meteo"
	DatasetTypeCenso  DatasetType = "censo"
	DatasetTypeExport DatasetType = "export"
)

// Format is the on-disk encoding of a dataset file
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// Valid reports whether f is one of the supported formats
func (f Format) Valid() bool {
	switch f {
	case FormatCSV, FormatXLSX, FormatJSON:
		return true
	}
	return false
}

// ColumnMapping maps canonical fields to the column headers used by a source.
// Extras maps additional canonical names to headers.
type ColumnMapping struct {
	Timestamp string            `json:"timestamp" yaml:"timestamp" validate:"required"`
	Value     string            `json:"value" yaml:"value" validate:"required"`
	Category  string            `json:"category,omitempty" yaml:"category"`
	Region    string            `json:"region,omitempty" yaml:"region"`
	Extras    map[string]string `json:"extras,omitempty" yaml:"extras"`
}

// Headers returns every header claimed by the mapping
func (m ColumnMapping) Headers() []string {
	headers := []string{m.Timestamp, m.Value}
	if m.Category != "" {
		headers = append(headers, m.Category)
	}
	if m.Region != "" {
		headers = append(headers, m.Region)
	}
	for _, h := range m.Extras {
		if h != "" {
			headers = append(headers, h)
		}
	}
	return headers
}

// DatasetConfig is the static descriptor of one data source
type DatasetConfig struct {
	Name        string        `json:"name" yaml:"name" validate:"required"`
	Description string        `json:"description" yaml:"description"`
	Source      string        `json:"source" yaml:"source" validate:"required"`
	Format      Format        `json:"format" yaml:"format" validate:"required,oneof=csv xlsx json"`
	Columns     ColumnMapping `json:"columns" yaml:"columns"`
}

// Clone returns a deep copy so callers cannot alter registry state
func (c DatasetConfig) Clone() DatasetConfig {
	out := c
	if c.Columns.Extras != nil {
		out.Columns.Extras = make(map[string]string, len(c.Columns.Extras))
		for k, v := range c.Columns.Extras {
			out.Columns.Extras[k] = v
		}
	}
	return out
}
