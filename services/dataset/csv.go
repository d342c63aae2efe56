package dataset

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/macrodrigues/property-listing/internal/listing"
	"github.com/macrodrigues/property-listing/logger"
	apperr "github.com/macrodrigues/property-listing/pkg/errors"
)

// CSVStore keeps the dataset in one CSV file and archives the previous
// file before every rewrite.
type CSVStore struct {
	path      string
	backupDir string
	log       *logger.Logger
}

func NewCSVStore(path, backupDir string) *CSVStore {
	return &CSVStore{
		path:      path,
		backupDir: backupDir,
		log:       logger.ForSink("csv"),
	}
}

// Read loads the stored dataset. A missing file is a first run and yields
// an empty dataset.
func (s *CSVStore) Read(_ context.Context) (listing.Dataset, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		s.log.Info().Str("path", s.path).Msg("No stored dataset, starting empty")
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewSink("failed to open dataset file", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.NewSink("failed to read dataset header", err)
	}
	if len(header) != len(Columns) {
		return nil, apperr.NewSink(fmt.Sprintf("dataset header has %d columns, want %d", len(header), len(Columns)), nil)
	}

	var ds listing.Dataset
	for line := 2; ; line++ {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperr.NewSink(fmt.Sprintf("failed to read dataset line %d", line), err)
		}
		rec, err := decodeRow(row)
		if err != nil {
			return nil, apperr.NewSink(fmt.Sprintf("malformed dataset line %d", line), err)
		}
		ds = append(ds, rec)
	}

	s.log.Info().Int("records", len(ds)).Str("path", s.path).Msg("Loaded dataset")
	return ds, nil
}

// Write archives the current file and replaces it with the new dataset.
// The new file is written next to the target and renamed into place, so a
// crash mid-write never leaves a truncated dataset behind.
func (s *CSVStore) Write(_ context.Context, ds listing.Dataset) error {
	if err := s.archive(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return apperr.NewSink("failed to create dataset dir", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return apperr.NewSink("failed to create dataset file", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		f.Close()
		return apperr.NewSink("failed to write dataset header", err)
	}
	for i := range ds {
		if err := w.Write(encodeRow(ds[i])); err != nil {
			f.Close()
			return apperr.NewSink("failed to write dataset row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return apperr.NewSink("failed to flush dataset", err)
	}
	if err := f.Close(); err != nil {
		return apperr.NewSink("failed to close dataset file", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return apperr.NewSink("failed to replace dataset file", err)
	}

	s.log.Info().Int("records", len(ds)).Str("path", s.path).Msg("Dataset written")
	return nil
}

func (s *CSVStore) Close() error {
	return nil
}
