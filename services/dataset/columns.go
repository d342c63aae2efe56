package dataset

import (
	"fmt"
	"strconv"
	"time"

	"github.com/macrodrigues/property-listing/internal/listing"
)

// Columns is the dataset column contract. Order matters: consumers of the
// exported file rely on these positions, so new columns go at the end.
var Columns = []string{
	"Title",
	"Code",
	"First Seen",
	"Last Seen",
	"Listed",
	"Original Price (USD)",
	"Last Price (USD)",
	"Payment Period (USD)",
	"Original Price (IDR)",
	"Last Price (IDR)",
	"Payment Period (IDR)",
	"Location",
	"Type of Sale",
	"Lease Years",
	"URL",
	"Property Type",
	"Year Built",
	"Bedrooms",
	"Bathrooms",
	"Land Size (are)",
	"Building Size (sqm)",
	"Pool",
	"Furnished",
}

const timeLayout = time.RFC3339

func encodeRow(r listing.ReconciledRecord) []string {
	return []string{
		r.Title,
		r.Code,
		r.FirstSeenAt.Format(timeLayout),
		r.LastSeenAt.Format(timeLayout),
		encodeListed(r.ListedState),
		formatPrice(r.OriginalPriceUSD),
		formatPrice(r.PriceUSD),
		string(r.PaymentPeriodUSD),
		formatPrice(r.OriginalPriceIDR),
		formatPrice(r.PriceIDR),
		string(r.PaymentPeriodIDR),
		r.Location,
		string(r.SaleType),
		strconv.Itoa(r.LeaseYears),
		r.URL,
		string(r.PropertyType),
		r.YearBuilt,
		strconv.Itoa(r.Bedrooms),
		strconv.Itoa(r.Bathrooms),
		formatPrice(r.LandSize),
		formatPrice(r.BuildingSize),
		encodePool(r.Pool),
		string(r.Furnished),
	}
}

func decodeRow(row []string) (listing.ReconciledRecord, error) {
	var r listing.ReconciledRecord
	if len(row) != len(Columns) {
		return r, fmt.Errorf("row has %d columns, want %d", len(row), len(Columns))
	}

	var err error
	r.Title = row[0]
	r.Code = row[1]
	if r.FirstSeenAt, err = time.Parse(timeLayout, row[2]); err != nil {
		return r, fmt.Errorf("first seen: %w", err)
	}
	if r.LastSeenAt, err = time.Parse(timeLayout, row[3]); err != nil {
		return r, fmt.Errorf("last seen: %w", err)
	}
	r.ListedState = decodeListed(row[4])
	if r.OriginalPriceUSD, err = parsePrice(row[5]); err != nil {
		return r, fmt.Errorf("original price usd: %w", err)
	}
	if r.PriceUSD, err = parsePrice(row[6]); err != nil {
		return r, fmt.Errorf("last price usd: %w", err)
	}
	r.PaymentPeriodUSD = listing.PaymentPeriod(row[7])
	if r.OriginalPriceIDR, err = parsePrice(row[8]); err != nil {
		return r, fmt.Errorf("original price idr: %w", err)
	}
	if r.PriceIDR, err = parsePrice(row[9]); err != nil {
		return r, fmt.Errorf("last price idr: %w", err)
	}
	r.PaymentPeriodIDR = listing.PaymentPeriod(row[10])
	r.Location = row[11]
	r.SaleType = listing.SaleType(row[12])
	if r.LeaseYears, err = strconv.Atoi(row[13]); err != nil {
		return r, fmt.Errorf("lease years: %w", err)
	}
	r.URL = row[14]
	r.PropertyType = listing.PropertyType(row[15])
	r.YearBuilt = row[16]
	if r.Bedrooms, err = strconv.Atoi(row[17]); err != nil {
		return r, fmt.Errorf("bedrooms: %w", err)
	}
	if r.Bathrooms, err = strconv.Atoi(row[18]); err != nil {
		return r, fmt.Errorf("bathrooms: %w", err)
	}
	if r.LandSize, err = parsePrice(row[19]); err != nil {
		return r, fmt.Errorf("land size: %w", err)
	}
	if r.BuildingSize, err = parsePrice(row[20]); err != nil {
		return r, fmt.Errorf("building size: %w", err)
	}
	r.Pool = row[21] == "Yes"
	r.Furnished = listing.Furnishing(row[22])
	return r, nil
}

func encodeListed(s listing.ListedState) string {
	if s == listing.StateUnlisted {
		return "Unlisted"
	}
	return "Listed"
}

func decodeListed(s string) listing.ListedState {
	if s == "Unlisted" {
		return listing.StateUnlisted
	}
	return listing.StateListed
}

func encodePool(pool bool) string {
	if pool {
		return "Yes"
	}
	return "No"
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func parsePrice(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
