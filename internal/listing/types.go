package listing

import (
	"strings"
	"time"
)

// PropertyType identifies the listing section a record came from.
type PropertyType string

const (
	PropertyVillaSale PropertyType = "villa-sale"
	PropertyVillaRent PropertyType = "villa-rent"
	PropertyLand      PropertyType = "land"
)

// TypeFromURL derives the property type from a listing-section URL.
func TypeFromURL(url string) PropertyType {
	switch {
	case strings.Contains(url, "villas-for-rent"):
		return PropertyVillaRent
	case strings.Contains(url, "land"):
		return PropertyLand
	default:
		return PropertyVillaSale
	}
}

// SaleType classifies the ownership model of a listing.
type SaleType string

const (
	SaleFreehold  SaleType = "freehold"
	SaleLeasehold SaleType = "leasehold"
	SaleUnknown   SaleType = "unknown"
)

// Furnishing is the canonical furnished level. Raw site vocabulary is
// mapped into exactly these buckets; anything unrecognized is unknown.
type Furnishing string

const (
	Unfurnished      Furnishing = "unfurnished"
	SemiFurnished    Furnishing = "semi-furnished"
	Furnished        Furnishing = "furnished"
	FullyFurnished   Furnishing = "fully-furnished"
	FurnishedUnknown Furnishing = "unknown"
)

// PaymentPeriod describes how a price is charged. PeriodOneTime is a
// purchase price, PeriodOnRequest means no fixed price was published, and
// any other value is the raw periodic label from the site (monthly, yearly).
type PaymentPeriod string

const (
	PeriodOneTime   PaymentPeriod = "one time"
	PeriodOnRequest PaymentPeriod = "on request"
)

// ListedState tracks whether the code appeared in the most recent crawl.
type ListedState string

const (
	StateListed   ListedState = "listed"
	StateUnlisted ListedState = "unlisted"
)

// LocationUnknown is the sentinel stored when the site shows a placeholder
// dash instead of an area name.
const LocationUnknown = "Unknown"

// YearBuiltUnknown is the sentinel for listings without a year-built row.
const YearBuiltUnknown = "Unknown"

// Record is one freshly extracted property, keyed by the site-assigned
// Code. Every numeric field is either a valid nonnegative value or its
// zero/unknown sentinel, never raw text.
type Record struct {
	Title        string
	Code         string
	Location     string
	PropertyType PropertyType
	SaleType     SaleType
	LeaseYears   int
	URL          string
	YearBuilt    string
	Bedrooms     int
	Bathrooms    int
	LandSize     float64 // are
	BuildingSize float64 // sqm
	Pool         bool
	Furnished    Furnishing

	PriceIDR         float64 // 0 signals "on request"
	PriceUSD         float64
	PaymentPeriodIDR PaymentPeriod
	PaymentPeriodUSD PaymentPeriod

	ListedState ListedState
}

// ReconciledRecord is a Record plus provenance that survives across runs.
// FirstSeenAt and OriginalPrice* are set once and never change.
type ReconciledRecord struct {
	Record

	FirstSeenAt      time.Time
	LastSeenAt       time.Time
	OriginalPriceIDR float64
	OriginalPriceUSD float64
}

// Dataset is the canonical collection of reconciled records, unique by
// Code and ordered by FirstSeenAt descending.
type Dataset []ReconciledRecord

// Find returns the index of the record with the given code, or -1.
func (d Dataset) Find(code string) int {
	for i := range d {
		if d[i].Code == code {
			return i
		}
	}
	return -1
}

// Codes returns the set of codes present in the dataset.
func (d Dataset) Codes() map[string]struct{} {
	codes := make(map[string]struct{}, len(d))
	for i := range d {
		codes[d[i].Code] = struct{}{}
	}
	return codes
}
