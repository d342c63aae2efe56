package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/macrodrigues/property-listing/internal/listing"
	"github.com/macrodrigues/property-listing/logger"
	apperr "github.com/macrodrigues/property-listing/pkg/errors"
)

// PostgresStore keeps the dataset in one table, replaced transactionally
// on every run so readers never see a half-written dataset.
type PostgresStore struct {
	db  *sql.DB
	log *logger.Logger
}

// NewPostgresStore connects, waits for the server to come up and runs the
// schema migration.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, apperr.NewSink("failed to open postgres connection", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.Ping(); err == nil {
			break
		}
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		db.Close()
		return nil, apperr.NewSink("postgres unreachable after retries", err)
	}

	s := &PostgresStore{db: db, log: logger.ForSink("postgres")}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, apperr.NewSink("failed to migrate schema", err)
	}
	return s, nil
}

func (s *PostgresStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS properties (
			code               VARCHAR(50)  PRIMARY KEY,
			title              TEXT         NOT NULL,
			first_seen_at      TIMESTAMPTZ  NOT NULL,
			last_seen_at       TIMESTAMPTZ  NOT NULL,
			listed             BOOLEAN      NOT NULL,
			original_price_usd NUMERIC(16,2) NOT NULL DEFAULT 0,
			last_price_usd     NUMERIC(16,2) NOT NULL DEFAULT 0,
			payment_period_usd TEXT         NOT NULL DEFAULT '',
			original_price_idr NUMERIC(20,2) NOT NULL DEFAULT 0,
			last_price_idr     NUMERIC(20,2) NOT NULL DEFAULT 0,
			payment_period_idr TEXT         NOT NULL DEFAULT '',
			location           TEXT         NOT NULL DEFAULT '',
			type_of_sale       TEXT         NOT NULL DEFAULT '',
			lease_years        INTEGER      NOT NULL DEFAULT 0,
			url                TEXT         NOT NULL,
			property_type      VARCHAR(20)  NOT NULL,
			year_built         TEXT         NOT NULL DEFAULT '',
			bedrooms           INTEGER      NOT NULL DEFAULT 0,
			bathrooms          INTEGER      NOT NULL DEFAULT 0,
			land_size          NUMERIC(12,2) NOT NULL DEFAULT 0,
			building_size      NUMERIC(12,2) NOT NULL DEFAULT 0,
			pool               BOOLEAN      NOT NULL DEFAULT FALSE,
			furnished          TEXT         NOT NULL DEFAULT ''
		);

		CREATE INDEX IF NOT EXISTS idx_properties_first_seen ON properties(first_seen_at);
		CREATE INDEX IF NOT EXISTS idx_properties_type       ON properties(property_type);
		CREATE INDEX IF NOT EXISTS idx_properties_listed     ON properties(listed);
	`)
	return err
}

// Read loads the whole dataset ordered the way it is kept everywhere else,
// newest first.
func (s *PostgresStore) Read(ctx context.Context) (listing.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, title, first_seen_at, last_seen_at, listed,
		       original_price_usd, last_price_usd, payment_period_usd,
		       original_price_idr, last_price_idr, payment_period_idr,
		       location, type_of_sale, lease_years, url, property_type,
		       year_built, bedrooms, bathrooms, land_size, building_size,
		       pool, furnished
		FROM properties
		ORDER BY first_seen_at DESC
	`)
	if err != nil {
		return nil, apperr.NewSink("failed to query dataset", err)
	}
	defer rows.Close()

	var ds listing.Dataset
	for rows.Next() {
		var r listing.ReconciledRecord
		var listed bool
		var saleType, propertyType, periodUSD, periodIDR, furnished string
		err := rows.Scan(
			&r.Code, &r.Title, &r.FirstSeenAt, &r.LastSeenAt, &listed,
			&r.OriginalPriceUSD, &r.PriceUSD, &periodUSD,
			&r.OriginalPriceIDR, &r.PriceIDR, &periodIDR,
			&r.Location, &saleType, &r.LeaseYears, &r.URL, &propertyType,
			&r.YearBuilt, &r.Bedrooms, &r.Bathrooms, &r.LandSize, &r.BuildingSize,
			&r.Pool, &furnished,
		)
		if err != nil {
			return nil, apperr.NewSink("failed to scan dataset row", err)
		}
		r.ListedState = listing.StateUnlisted
		if listed {
			r.ListedState = listing.StateListed
		}
		r.SaleType = listing.SaleType(saleType)
		r.PropertyType = listing.PropertyType(propertyType)
		r.PaymentPeriodUSD = listing.PaymentPeriod(periodUSD)
		r.PaymentPeriodIDR = listing.PaymentPeriod(periodIDR)
		r.Furnished = listing.Furnishing(furnished)
		ds = append(ds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.NewSink("failed to iterate dataset rows", err)
	}

	s.log.Info().Int("records", len(ds)).Msg("Loaded dataset")
	return ds, nil
}

// Write replaces the stored dataset inside one transaction.
func (s *PostgresStore) Write(ctx context.Context, ds listing.Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.NewSink("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM properties"); err != nil {
		return apperr.NewSink("failed to clear dataset table", err)
	}

	const batchSize = 50
	for i := 0; i < len(ds); i += batchSize {
		end := i + batchSize
		if end > len(ds) {
			end = len(ds)
		}
		if err := insertBatch(ctx, tx, ds[i:end]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return apperr.NewSink("failed to commit dataset", err)
	}

	s.log.Info().Int("records", len(ds)).Msg("Dataset written")
	return nil
}

const insertColumnCount = 23

func insertBatch(ctx context.Context, tx *sql.Tx, batch listing.Dataset) error {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]interface{}, 0, len(batch)*insertColumnCount)

	for idx := range batch {
		r := &batch[idx]
		base := idx * insertColumnCount
		placeholders := make([]string, insertColumnCount)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(placeholders, ",")+")")
		valueArgs = append(valueArgs,
			r.Code, r.Title, r.FirstSeenAt, r.LastSeenAt, r.ListedState == listing.StateListed,
			r.OriginalPriceUSD, r.PriceUSD, string(r.PaymentPeriodUSD),
			r.OriginalPriceIDR, r.PriceIDR, string(r.PaymentPeriodIDR),
			r.Location, string(r.SaleType), r.LeaseYears, r.URL, string(r.PropertyType),
			r.YearBuilt, r.Bedrooms, r.Bathrooms, r.LandSize, r.BuildingSize,
			r.Pool, string(r.Furnished),
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO properties (
			code, title, first_seen_at, last_seen_at, listed,
			original_price_usd, last_price_usd, payment_period_usd,
			original_price_idr, last_price_idr, payment_period_idr,
			location, type_of_sale, lease_years, url, property_type,
			year_built, bedrooms, bathrooms, land_size, building_size,
			pool, furnished
		) VALUES %s
	`, strings.Join(valueStrings, ","))

	if _, err := tx.ExecContext(ctx, query, valueArgs...); err != nil {
		return apperr.NewSink("failed to insert dataset batch", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
