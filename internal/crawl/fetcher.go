package crawl

import "context"

// Currency selects which price view of a detail page to render. The site
// keeps the chosen currency in session state, so switching is a UI
// interaction, not a URL parameter.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyIDR Currency = "IDR"
)

// Result is one rendered page. FinalURL differs from the requested URL
// when the site redirected, which is how it signals a delisted property.
type Result struct {
	HTML     string
	FinalURL string
}

// Fetcher renders one detail page in the requested currency.
type Fetcher interface {
	FetchRendered(ctx context.Context, url string, currency Currency) (Result, error)
	Close() error
}
