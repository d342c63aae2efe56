package dataset

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperr "github.com/macrodrigues/property-listing/pkg/errors"
)

// archive copies the current dataset file into the backup directory with a
// timestamped name before it gets rewritten. No file means nothing to keep.
func (s *CSVStore) archive() error {
	src, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return apperr.NewSink("failed to open dataset for backup", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.backupDir, 0755); err != nil {
		return apperr.NewSink("failed to create backup dir", err)
	}

	base := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	name := base + "_" + time.Now().Format("2006-01-02_150405") + ".csv"
	target := filepath.Join(s.backupDir, name)

	dst, err := os.Create(target)
	if err != nil {
		return apperr.NewSink("failed to create backup file", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return apperr.NewSink("failed to copy dataset backup", err)
	}

	s.log.Info().Str("backup", target).Msg("Archived previous dataset")
	return nil
}
