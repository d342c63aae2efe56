package extract

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/macrodrigues/property-listing/internal/listing"
)

// digitsRegexp keeps digit runs and dots; on this site dots are thousands
// separators ("Rp 2.500.000.000") and commas only appear in USD amounts.
var digitsRegexp = regexp.MustCompile(`[\d.]+`)

// parseAmount strips everything but digits from raw and returns the
// numeric amount. ok is false when raw carries no digits at all.
func parseAmount(raw string) (float64, bool) {
	joined := strings.Join(digitsRegexp.FindAllString(raw, -1), "")
	joined = strings.ReplaceAll(joined, ".", "")
	if joined == "" {
		return 0, false
	}
	amount, err := strconv.ParseFloat(joined, 64)
	if err != nil || amount < 0 {
		return 0, false
	}
	return amount, true
}

// hasDigit reports whether raw carries any digit. Price text without one
// ("Price on Request") names a real listing state, not a parse failure.
func hasDigit(raw string) bool {
	return strings.ContainsAny(raw, "0123456789")
}

// periodLabel keeps only the first "/"-delimited segment of a label: the
// site renders compound labels like "are / year" but the dataset keys on
// the leading unit.
func periodLabel(raw string) string {
	label, _, _ := strings.Cut(raw, "/")
	return strings.TrimSpace(label)
}

// NormalizeSale normalizes a purchase price. It is a total function: any
// input yields a valid (amount >= 0, period) pair, with no digits at all
// degrading to (0, on request).
func NormalizeSale(raw string) (float64, listing.PaymentPeriod) {
	amount, ok := parseAmount(raw)
	if !ok {
		return 0, listing.PeriodOnRequest
	}
	return amount, listing.PeriodOneTime
}

// NormalizeRental normalizes a villa rental price of the form
// "Rp 25.000.000 / month". The period label may sit on the line after the
// amount instead of the same one.
func NormalizeRental(raw string) (float64, listing.PaymentPeriod) {
	raw = strings.TrimSpace(raw)

	amountPart, _, hasSlash := strings.Cut(raw, "/")
	amount, ok := parseAmount(amountPart)
	if !ok || !hasSlash {
		return 0, listing.PeriodOnRequest
	}

	var label string
	if _, rest, hasNewline := strings.Cut(raw, "\n"); hasNewline {
		// Label rendered on the following line.
		if _, after, ok := strings.Cut(rest, "/"); ok {
			label = periodLabel(after)
		}
	} else if _, after, ok := strings.Cut(raw, "/"); ok {
		label = periodLabel(after)
	}

	if label == "" {
		return 0, listing.PeriodOnRequest
	}
	return amount, listing.PaymentPeriod(label)
}

// NormalizeLand normalizes a land price. Land markup renders the price one
// token earlier than villas do, so only the first line is inspected; a
// missing "/" means a one-time purchase price.
func NormalizeLand(raw string) (float64, listing.PaymentPeriod) {
	raw = strings.TrimSpace(raw)

	line := raw
	if firstLine, _, hasNewline := strings.Cut(raw, "\n"); hasNewline {
		line = firstLine
	}

	amountPart, rest, hasSlash := strings.Cut(line, "/")
	amount, ok := parseAmount(amountPart)
	if !ok {
		return 0, listing.PeriodOnRequest
	}
	if !hasSlash {
		return amount, listing.PeriodOneTime
	}
	label := periodLabel(rest)
	if label == "" {
		return 0, listing.PeriodOnRequest
	}
	return amount, listing.PaymentPeriod(label)
}
