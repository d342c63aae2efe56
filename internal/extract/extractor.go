package extract

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/macrodrigues/property-listing/helpers"
	"github.com/macrodrigues/property-listing/internal/listing"
	"github.com/macrodrigues/property-listing/logger"
	apperr "github.com/macrodrigues/property-listing/pkg/errors"
)

// CSS selectors for the property detail view.
const (
	selTitle           = ".name"
	selCode            = ".code"
	selPrice           = ".regular-price"
	selSharedBlocks    = ".colswidth20"
	selRoomTokens      = ".available p"
	selFacilityTokens  = ".flexbox-wrap p"
	selDescriptionItem = ".property-description-row.flexbox p"
)

// poolMarker is the facility token proving a pool icon is active.
const poolMarker = "poolPool"

// FieldIssue records one degraded field with enough context to repair the
// extraction rule manually later.
type FieldIssue struct {
	Field string
	Raw   string
	Err   error
}

// descriptionLayout names one positional layout of the ordered description
// list. The site drops the "Year Built" row for some villas, which shifts
// every later row up; the two layouts must stay separate branches.
type descriptionLayout struct {
	name         string
	landIdx      int
	buildingIdx  int
	furnishedIdx int
	hasYearBuilt bool
}

var (
	layoutWithYearBuilt = descriptionLayout{
		name: "with-year-built", landIdx: 3, buildingIdx: 6, furnishedIdx: 7, hasYearBuilt: true,
	}
	layoutWithoutYearBuilt = descriptionLayout{
		name: "without-year-built", landIdx: 3, buildingIdx: 5, furnishedIdx: 6,
	}
	// Rental descriptions have no year-built row and one fewer size row.
	// Some rentals still shift the building size down one slot.
	layoutRental = descriptionLayout{
		name: "rental", landIdx: 3, buildingIdx: 4, furnishedIdx: -1,
	}
)

// yearBuiltDiscriminatorIdx is the slot inspected to pick a villa layout.
const yearBuiltDiscriminatorIdx = 5

// landSizeIdx is the land size slot, shared by every layout.
const landSizeIdx = 3

// Extractor parses one property detail view into a listing.Record.
type Extractor struct {
	section listing.PropertyType
	log     *logger.Logger
}

// New creates an extractor for one listing section.
func New(section listing.PropertyType) *Extractor {
	return &Extractor{
		section: section,
		log:     logger.ForExtractor(string(section)),
	}
}

// page holds the pre-scanned text groups of one rendered detail view.
type page struct {
	sharedBlocks []string
	roomTokens   []string
	facilities   []string
	descItems    []string
}

func scanPage(doc *goquery.Document) *page {
	p := &page{}
	doc.Find(selSharedBlocks).Each(func(_ int, s *goquery.Selection) {
		p.sharedBlocks = append(p.sharedBlocks, strings.TrimSpace(s.Text()))
	})
	doc.Find(selRoomTokens).Each(func(_ int, s *goquery.Selection) {
		p.roomTokens = append(p.roomTokens, strings.TrimSpace(s.Text()))
	})
	doc.Find(selFacilityTokens).Each(func(_ int, s *goquery.Selection) {
		if html, err := s.Html(); err == nil && strings.Contains(html, "available") {
			p.facilities = append(p.facilities, s.Text())
		}
	})
	doc.Find(selDescriptionItem).Each(func(_ int, s *goquery.Selection) {
		p.descItems = append(p.descItems, strings.TrimSpace(s.Text()))
	})
	return p
}

// Extract builds a best-effort record from the two currency views of one
// detail page. Any single field that cannot be located degrades to its
// sentinel and is reported as an issue; extraction never aborts a record.
func (e *Extractor) Extract(docUSD, docIDR *goquery.Document, url string) (listing.Record, []FieldIssue) {
	rec := listing.Record{
		PropertyType: e.section,
		URL:          url,
		Location:     listing.LocationUnknown,
		YearBuilt:    listing.YearBuiltUnknown,
		SaleType:     listing.SaleUnknown,
		Furnished:    listing.FurnishedUnknown,
		ListedState:  listing.StateListed,
	}
	var issues []FieldIssue

	fail := func(field, raw string, err error) {
		issues = append(issues, FieldIssue{Field: field, Raw: raw, Err: err})
		e.log.Warn().
			Str("field", field).
			Str("raw", raw).
			Str("url", url).
			Err(err).
			Msg("Field degraded to sentinel")
	}

	p := scanPage(docIDR)
	rawPriceIDR := firstText(docIDR, selPrice)
	rawPriceUSD := firstText(docUSD, selPrice)

	rec.Title = firstText(docIDR, selTitle)
	if rec.Title == "" {
		fail("title", "", errMissing(selTitle))
	}
	rec.Code = firstText(docIDR, selCode)
	if rec.Code == "" {
		fail("code", "", errMissing(selCode))
	}

	e.extractShared(p, &rec, fail)

	switch e.section {
	case listing.PropertyVillaSale:
		e.extractRoomsAndPool(p, &rec, fail)
		e.extractVillaDescription(p, &rec, fail)
		rec.PriceIDR, rec.PaymentPeriodIDR = NormalizeSale(rawPriceIDR)
		rec.PriceUSD, rec.PaymentPeriodUSD = NormalizeSale(rawPriceUSD)

	case listing.PropertyVillaRent:
		e.extractRoomsAndPool(p, &rec, fail)
		e.extractRentalDescription(p, &rec, fail)
		// Rentals carry no ownership or year-built details.
		rec.SaleType = listing.SaleUnknown
		rec.LeaseYears = 0
		rec.PriceIDR, rec.PaymentPeriodIDR = NormalizeRental(rawPriceIDR)
		rec.PriceUSD, rec.PaymentPeriodUSD = NormalizeRental(rawPriceUSD)

	case listing.PropertyLand:
		if size, err := decimalLine(p.descItems, landSizeIdx); err == nil {
			rec.LandSize = size
		} else {
			fail("land_size", itemAt(p.descItems, landSizeIdx), err)
		}
		rec.Furnished = listing.Unfurnished
		rec.PriceIDR, rec.PaymentPeriodIDR = NormalizeLand(rawPriceIDR)
		rec.PriceUSD, rec.PaymentPeriodUSD = NormalizeLand(rawPriceUSD)
	}

	// A price text that carried digits but still fell back to the
	// on-request sentinel lost a real amount; digit-free text
	// ("Price on Request") is a legitimate listing state.
	if rec.PriceIDR == 0 && rec.PaymentPeriodIDR == listing.PeriodOnRequest && hasDigit(rawPriceIDR) {
		fail("price_idr", rawPriceIDR, apperr.NewNormalization(string(e.section), "price text did not normalize"))
	}
	if rec.PriceUSD == 0 && rec.PaymentPeriodUSD == listing.PeriodOnRequest && hasDigit(rawPriceUSD) {
		fail("price_usd", rawPriceUSD, apperr.NewNormalization(string(e.section), "price text did not normalize"))
	}

	return rec, issues
}

// extractShared reads sale type, lease years and location from the labeled
// text blocks shared by every property type.
func (e *Extractor) extractShared(p *page, rec *listing.Record, fail func(string, string, error)) {
	if len(p.sharedBlocks) < 2 {
		fail("sale_type", strings.Join(p.sharedBlocks, "|"), errMissing(selSharedBlocks))
		return
	}

	// Block 2, third line holds the ownership keyword ("free ..." or
	// "lease ...") which the site renders without the "hold" suffix.
	token, err := helpers.GetSplitPart(p.sharedBlocks[1], "\n", 2)
	if err != nil {
		fail("sale_type", p.sharedBlocks[1], err)
	} else {
		switch strings.ToLower(strings.SplitN(strings.TrimSpace(token), " ", 2)[0]) + "hold" {
		case string(listing.SaleFreehold):
			rec.SaleType = listing.SaleFreehold
		case string(listing.SaleLeasehold):
			rec.SaleType = listing.SaleLeasehold
		default:
			fail("sale_type", token, fmt.Errorf("unrecognized ownership token"))
		}
	}

	// Location is the last line of block 1; a dash is the placeholder the
	// site shows when the area is not filled in.
	lines := strings.Split(p.sharedBlocks[0], "\n")
	location := strings.TrimSpace(lines[len(lines)-1])
	if location == "" || strings.Contains(location, "-") {
		rec.Location = listing.LocationUnknown
	} else {
		rec.Location = location
	}

	// Lease years only exist for leasehold, rendered as ".../ 25 years".
	if rec.SaleType == listing.SaleLeasehold {
		raw, err := helpers.GetSplitPart(p.sharedBlocks[1], "\n", 3)
		if err != nil {
			fail("lease_years", p.sharedBlocks[1], err)
			return
		}
		yearsPart, err := helpers.GetSplitPart(raw, "/ ", 1)
		if err != nil {
			fail("lease_years", raw, err)
			return
		}
		years, err := strconv.Atoi(strings.TrimSpace(strings.Split(yearsPart, " y")[0]))
		if err != nil || years < 0 {
			fail("lease_years", yearsPart, fmt.Errorf("not a nonnegative integer: %v", err))
			return
		}
		rec.LeaseYears = years
	}
}

// extractRoomsAndPool reads bedroom/bathroom counts from the flat token
// list and detects the pool marker in the facilities block.
func (e *Extractor) extractRoomsAndPool(p *page, rec *listing.Record, fail func(string, string, error)) {
	if bedrooms, err := intLine(p.roomTokens, 3); err == nil {
		rec.Bedrooms = bedrooms
	} else {
		fail("bedrooms", itemAt(p.roomTokens, 3), err)
	}

	if len(p.roomTokens) > 5 {
		if bathrooms, err := strconv.Atoi(strings.TrimSpace(p.roomTokens[5])); err == nil && bathrooms >= 0 {
			rec.Bathrooms = bathrooms
		} else {
			fail("bathrooms", p.roomTokens[5], fmt.Errorf("not a nonnegative integer: %v", err))
		}
	} else {
		fail("bathrooms", "", fmt.Errorf("room token list too short: %d", len(p.roomTokens)))
	}

	for _, facility := range p.facilities {
		if strings.Contains(facility, poolMarker) {
			rec.Pool = true
			break
		}
	}
}

// extractVillaDescription reads year built, sizes and furnished level from
// the ordered description list. The layout is picked by a single
// discriminator: whether the "Year Built" row is present at its slot.
func (e *Extractor) extractVillaDescription(p *page, rec *listing.Record, fail func(string, string, error)) {
	layout := layoutWithoutYearBuilt
	if discriminator := itemAt(p.descItems, yearBuiltDiscriminatorIdx); strings.Contains(discriminator, "Year Built") {
		layout = layoutWithYearBuilt
	}

	if layout.hasYearBuilt {
		raw := p.descItems[yearBuiltDiscriminatorIdx]
		if year, err := helpers.GetSplitPart(raw, ": ", 1); err == nil {
			rec.YearBuilt = strings.TrimSpace(year)
		} else {
			fail("year_built", raw, err)
		}
	}

	if size, err := decimalLine(p.descItems, layout.landIdx); err == nil {
		rec.LandSize = size
	} else {
		fail("land_size", itemAt(p.descItems, layout.landIdx), err)
	}

	if size, err := decimalLine(p.descItems, layout.buildingIdx); err == nil {
		rec.BuildingSize = size
	} else {
		fail("building_size", itemAt(p.descItems, layout.buildingIdx), err)
	}

	raw := itemAt(p.descItems, layout.furnishedIdx)
	if level, err := textLine(raw); err == nil {
		rec.Furnished = NormalizeFurnished(level)
	} else {
		fail("furnished", raw, err)
	}
}

// extractRentalDescription reads sizes from the rental layout; a missing
// building row at the primary slot falls back one slot down.
func (e *Extractor) extractRentalDescription(p *page, rec *listing.Record, fail func(string, string, error)) {
	if size, err := decimalLine(p.descItems, layoutRental.landIdx); err == nil {
		rec.LandSize = size
	} else {
		fail("land_size", itemAt(p.descItems, layoutRental.landIdx), err)
	}

	size, err := decimalLine(p.descItems, layoutRental.buildingIdx)
	if err != nil {
		size, err = decimalLine(p.descItems, layoutRental.buildingIdx+1)
	}
	if err == nil {
		rec.BuildingSize = size
	} else {
		fail("building_size", itemAt(p.descItems, layoutRental.buildingIdx), err)
	}
}

// firstText returns the trimmed text of the first match of selector.
func firstText(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// itemAt returns the item at idx or "" when out of range (idx may be -1).
func itemAt(items []string, idx int) string {
	if idx < 0 || idx >= len(items) {
		return ""
	}
	return items[idx]
}

// textLine returns the second line of a "Label\nValue" item.
func textLine(item string) (string, error) {
	value, err := helpers.GetSplitPart(item, "\n", 1)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

// decimalLine parses the second line of the item at idx as a nonnegative
// decimal.
func decimalLine(items []string, idx int) (float64, error) {
	if idx < 0 || idx >= len(items) {
		return 0, fmt.Errorf("description list too short: want index %d, have %d items", idx, len(items))
	}
	value, err := textLine(items[idx])
	if err != nil {
		return 0, err
	}
	size, err := strconv.ParseFloat(value, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("not a nonnegative decimal %q: %v", value, err)
	}
	return size, nil
}

// intLine parses the second line of the item at idx as a nonnegative int.
func intLine(items []string, idx int) (int, error) {
	if idx >= len(items) {
		return 0, fmt.Errorf("token list too short: want index %d, have %d items", idx, len(items))
	}
	value, err := textLine(items[idx])
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("not a nonnegative integer %q: %v", value, err)
	}
	return n, nil
}

func errMissing(selector string) error {
	return fmt.Errorf("no element matched %s", selector)
}
