package services

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/patrickmn/go-cache"

	"energypulse/pkg/contracts/domain"
)

const (
	// DefaultDatasetTTL keeps an imported dataset around after its last import
	DefaultDatasetTTL = time.Hour
	// DatasetCleanupInterval is how often expired datasets are purged
	DatasetCleanupInterval = 10 * time.Minute
)

// Dataset is an imported series held in memory
type Dataset struct {
	ID          string                      `json:"id"`
	DatasetType domain.DatasetType          `json:"datasetType"`
	Name        string                      `json:"name"`
	Source      string                      `json:"source"`
	Format      domain.Format               `json:"format"`
	FileName    string                      `json:"fileName"`
	Headers     []string                    `json:"headers"`
	Points      []domain.ProcessedDataPoint `json:"-"`
	Summary     domain.ImportSummary        `json:"summary"`
	ImportedAt  time.Time                   `json:"importedAt"`
	ExpiresAt   time.Time                   `json:"expiresAt"`
}

// DatasetStore keeps imported datasets in a TTL cache. Entries are
// immutable once stored.
type DatasetStore struct {
	cache  *cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewDatasetStore creates a store whose entries expire after ttl
func NewDatasetStore(ttl time.Duration, logger *slog.Logger) *DatasetStore {
	if ttl <= 0 {
		ttl = DefaultDatasetTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "dataset_store"))

	c := cache.New(ttl, min(ttl, DatasetCleanupInterval))
	c.OnEvicted(func(id string, _ interface{}) {
		logger.Debug("dataset evicted", slog.String("dataset_id", id))
	})

	return &DatasetStore{
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

// Put stores ds, stamping its expiry
func (s *DatasetStore) Put(ds Dataset) Dataset {
	if ds.ImportedAt.IsZero() {
		ds.ImportedAt = time.Now()
	}
	ds.ExpiresAt = time.Now().Add(s.ttl)
	s.cache.Set(ds.ID, ds, cache.DefaultExpiration)

	s.logger.Info("dataset stored",
		slog.String("dataset_id", ds.ID),
		slog.String("dataset_type", string(ds.DatasetType)),
		slog.Int("points", len(ds.Points)))
	return ds
}

// Get returns the dataset with id
func (s *DatasetStore) Get(id string) (Dataset, error) {
	v, found := s.cache.Get(id)
	if !found {
		return Dataset{}, fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	return v.(Dataset), nil
}

// Delete removes the dataset with id
func (s *DatasetStore) Delete(id string) error {
	if _, found := s.cache.Get(id); !found {
		return fmt.Errorf("%w: %s", ErrDatasetNotFound, id)
	}
	s.cache.Delete(id)
	return nil
}

// List returns the live datasets, newest first
func (s *DatasetStore) List() []Dataset {
	items := s.cache.Items()
	out := make([]Dataset, 0, len(items))
	for _, item := range items {
		out = append(out, item.Object.(Dataset))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ImportedAt.Equal(out[j].ImportedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].ImportedAt.After(out[j].ImportedAt)
	})
	return out
}

// Count returns the number of cached datasets, including expired ones not
// yet purged
func (s *DatasetStore) Count() int {
	return s.cache.ItemCount()
}
