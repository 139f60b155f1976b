// Package datasets holds the source config registry: the static mapping from
// a dataset type to its file format and column layout.
package datasets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"energypulse/pkg/contracts/domain"
)

// ErrUnknownDatasetType is returned when a dataset type is not registered
var ErrUnknownDatasetType = errors.New("unknown dataset type")

// Registry is an immutable lookup of dataset configs
type Registry struct {
	configs map[domain.DatasetType]domain.DatasetConfig
}

// NewRegistry validates the given configs and builds a registry from them
func NewRegistry(configs map[domain.DatasetType]domain.DatasetConfig) (*Registry, error) {
	v := validator.New()

	r := &Registry{configs: make(map[domain.DatasetType]domain.DatasetConfig, len(configs))}
	for t, cfg := range configs {
		if t == "" {
			return nil, fmt.Errorf("dataset type must not be empty")
		}
		if err := v.Struct(cfg); err != nil {
			return nil, fmt.Errorf("invalid config for dataset %q: %w", t, err)
		}
		r.configs[t] = cfg.Clone()
	}
	return r, nil
}

// Default returns the registry of the built-in sources
func Default() *Registry {
	r, err := NewRegistry(builtinConfigs())
	if err != nil {
		// built-in configs are static
		panic(err)
	}
	return r
}

// Get returns the config registered for datasetType
func (r *Registry) Get(datasetType domain.DatasetType) (domain.DatasetConfig, error) {
	cfg, ok := r.configs[datasetType]
	if !ok {
		return domain.DatasetConfig{}, fmt.Errorf("%w: %s", ErrUnknownDatasetType, datasetType)
	}
	return cfg.Clone(), nil
}

// Has reports whether datasetType is registered
func (r *Registry) Has(datasetType domain.DatasetType) bool {
	_, ok := r.configs[datasetType]
	return ok
}

// Types returns the registered dataset types in lexical order
func (r *Registry) Types() []domain.DatasetType {
	types := make([]domain.DatasetType, 0, len(r.configs))
	for t := range r.configs {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func builtinConfigs() map[domain.DatasetType]domain.DatasetConfig {
	return map[domain.DatasetType]domain.DatasetConfig{
		domain.DatasetTypeEPE: {
			Name:        "Dados EPE",
			Description: "Dados de consumo energético da EPE",
			Source:      "EPE",
			Format:      domain.FormatCSV,
			Columns: domain.ColumnMapping{
				Timestamp: "data",
				Value:     "consumo",
				Category:  "classe",
				Region:    "regiao",
			},
		},
		domain.DatasetTypeANEEL: {
			Name:        "Dados ANEEL",
			Description: "Dados de consumo energético da ANEEL",
			Source:      "ANEEL",
			Format:      domain.FormatCSV,
			Columns: domain.ColumnMapping{
				Timestamp: "data",
				Value:     "consumo",
				Category:  "tipo_consumidor",
				Region:    "estado",
			},
		},
		domain.DatasetTypeMeteo: {
			Name:        "Dados Meteorológicos",
			Description: "Dados meteorológicos por região",
			Source:      "INMET",
			Format:      domain.FormatCSV,
			Columns: domain.ColumnMapping{
				Timestamp: "data",
				Value:     "temperatura",
				Category:  "tipo_medicao",
				Region:    "estacao",
			},
		},
		domain.DatasetTypeCenso: {
			Name:        "Dados do Censo",
			Description: "Dados demográficos do IBGE",
			Source:      "IBGE",
			Format:      domain.FormatXLSX,
			Columns: domain.ColumnMapping{
				Timestamp: "ano",
				Value:     "populacao",
				Category:  "faixa_etaria",
				Region:    "municipio",
			},
		},
		// Layout written by the exporter, so exported files can be imported again.
		domain.DatasetTypeExport: {
			Name:        "Dados Exportados",
			Description: "Arquivos gerados pela exportação de dados processados",
			Source:      "EXPORT",
			Format:      domain.FormatCSV,
			Columns: domain.ColumnMapping{
				Timestamp: "Data",
				Value:     "Valor",
				Category:  "Categoria",
				Region:    "Região",
				Extras: map[string]string{
					"source":  "Fonte",
					"anomaly": "Anomalia",
				},
			},
		},
	}
}
