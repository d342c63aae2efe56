package dataset

import (
	"context"

	"github.com/macrodrigues/property-listing/config"
	"github.com/macrodrigues/property-listing/internal/listing"
	apperr "github.com/macrodrigues/property-listing/pkg/errors"
)

// Source reads the dataset produced by the previous run. A backend with no
// stored dataset yet returns an empty dataset, not an error.
type Source interface {
	Read(ctx context.Context) (listing.Dataset, error)
}

// Sink replaces the stored dataset with the given one as a whole. Partial
// writes must never be observable by a later Read.
type Sink interface {
	Write(ctx context.Context, ds listing.Dataset) error
	Close() error
}

// Store is a combined Source and Sink over the same backend.
type Store interface {
	Source
	Sink
}

// Open builds the configured dataset backend.
func Open(cfg *config.Config) (Store, error) {
	switch cfg.DatasetBackend {
	case "csv":
		return NewCSVStore(cfg.CSVDatasetPath, cfg.CSVBackupDir), nil
	case "postgres":
		return NewPostgresStore(cfg.DSN())
	default:
		return nil, apperr.NewConfiguration("unknown dataset backend "+cfg.DatasetBackend, nil)
	}
}
