package extract

import (
	"strings"

	"github.com/macrodrigues/property-listing/internal/listing"
)

// furnishedSynonyms maps the vocabulary observed on the site onto the four
// canonical buckets. Matching is case-insensitive; anything outside the
// table is unknown rather than an error.
var furnishedSynonyms = map[string]listing.Furnishing{
	"yes":             listing.Furnished,
	"furnish":         listing.Furnished,
	"furnished":       listing.Furnished,
	"full":            listing.FullyFurnished,
	"fully":           listing.FullyFurnished,
	"full furnish":    listing.FullyFurnished,
	"full furnished":  listing.FullyFurnished,
	"fully furnished": listing.FullyFurnished,
	"no":              listing.Unfurnished,
	"no furnish":      listing.Unfurnished,
	"un-furnish":      listing.Unfurnished,
	"unfurnished":     listing.Unfurnished,
	"semi":            listing.SemiFurnished,
	"semi furnish":    listing.SemiFurnished,
	"semi furnished":  listing.SemiFurnished,
	"semi-furnished":  listing.SemiFurnished,
	"semi frunished":  listing.SemiFurnished, // site typo, kept verbatim
}

// NormalizeFurnished maps raw furnished text into a canonical bucket.
func NormalizeFurnished(raw string) listing.Furnishing {
	key := strings.ToLower(strings.TrimSpace(raw))
	if level, ok := furnishedSynonyms[key]; ok {
		return level
	}
	return listing.FurnishedUnknown
}
