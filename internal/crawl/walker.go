package crawl

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/macrodrigues/property-listing/config"
	"github.com/macrodrigues/property-listing/helpers"
	"github.com/macrodrigues/property-listing/internal/extract"
	"github.com/macrodrigues/property-listing/internal/listing"
	"github.com/macrodrigues/property-listing/logger"
	apperr "github.com/macrodrigues/property-listing/pkg/errors"
	"github.com/macrodrigues/property-listing/services/cache"
)

// CSS selectors for the listing-section pages.
const (
	selPagination  = "#pagination li.page-item"
	selPropertyBox = "#box .box.property-item"
)

// Walker enumerates one listing section and crawls every property it
// links to. Listing pages are plain HTTP; detail pages go through the
// rendering Fetcher because of the currency toggle.
type Walker struct {
	section   listing.PropertyType
	baseURL   string
	fetcher   Fetcher
	extractor *extract.Extractor
	cacheSvc  cache.CacheService
	cfg       *config.Config
	log       *logger.Logger
}

// NewWalker creates a walker for one listing-section URL. cacheSvc may be
// nil, which disables the shared rate-limit block.
func NewWalker(baseURL string, fetcher Fetcher, cacheSvc cache.CacheService, cfg *config.Config) *Walker {
	section := listing.TypeFromURL(baseURL)
	return &Walker{
		section:   section,
		baseURL:   baseURL,
		fetcher:   fetcher,
		extractor: extract.New(section),
		cacheSvc:  cacheSvc,
		cfg:       cfg,
		log:       logger.ForWalker(string(section)),
	}
}

// Section returns the property type this walker crawls.
func (w *Walker) Section() listing.PropertyType {
	return w.section
}

// PageCount reads the pagination bar of the section's first page. The
// next-to-last pagination item carries the highest page number; a page
// without a pagination bar is a single-page section.
func (w *Walker) PageCount(ctx context.Context) (int, error) {
	doc, err := w.fetchListing(ctx, w.baseURL)
	if err != nil {
		return 0, err
	}

	items := doc.Find(selPagination)
	if items.Length() < 2 {
		return 1, nil
	}

	text := strings.TrimSpace(items.Eq(items.Length() - 2).Text())
	pages, err := strconv.Atoi(text)
	if err != nil || pages < 1 {
		return 0, apperr.NewExtraction(string(w.section), "unreadable page count "+strconv.Quote(text), err)
	}
	return pages, nil
}

// Links collects the detail-page links of one listing page, first
// occurrence wins on duplicates.
func (w *Walker) Links(ctx context.Context, page int) ([]string, error) {
	doc, err := w.fetchListing(ctx, w.baseURL+"?page="+strconv.Itoa(page))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	var links []string
	doc.Find(selPropertyBox).Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Find("a").First().Attr("href")
		if !ok || href == "" {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		links = append(links, href)
	})
	return links, nil
}

// Walk crawls the whole section and returns every record it could build.
// A link that keeps failing is skipped after the retry budget; a failing
// listing page fails the walk, since missing links would silently unlist
// their properties.
func (w *Walker) Walk(ctx context.Context) ([]listing.Record, error) {
	pages, err := w.PageCount(ctx)
	if err != nil {
		return nil, err
	}
	w.log.Info().Int("pages", pages).Str("url", w.baseURL).Msg("Walking listing section")

	var records []listing.Record
	for page := 1; page <= pages; page++ {
		links, err := w.Links(ctx, page)
		if err != nil {
			return nil, err
		}
		w.log.Info().Int("page", page).Int("links", len(links)).Msg("Collected property links")

		for _, link := range links {
			rec, listed, err := w.crawlWithRetry(ctx, link)
			if err != nil {
				if ctx.Err() != nil {
					return nil, apperr.NewNetwork(string(w.section), "walk canceled", ctx.Err())
				}
				w.log.Error().Str("link", link).Err(err).Msg("Giving up on link")
				continue
			}
			if !listed {
				w.log.Info().Str("link", link).Msg("Redirected away, property is gone")
				continue
			}
			w.log.Info().Str("link", link).Str("code", rec.Code).Msg("PASS")
			records = append(records, rec)
		}
	}

	w.log.Info().Int("records", len(records)).Msg("Section walk complete")
	return records, nil
}

// crawlWithRetry fetches one property with a bounded retry loop. Every
// failure waits the fixed retry delay before the next attempt.
func (w *Walker) crawlWithRetry(ctx context.Context, link string) (listing.Record, bool, error) {
	var lastErr error
	for attempt := 0; attempt <= w.cfg.FetchMaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(w.cfg.FetchRetryDelay):
			case <-ctx.Done():
				return listing.Record{}, false, ctx.Err()
			}
		}

		rec, listed, err := w.crawlLink(ctx, link)
		if err == nil {
			return rec, listed, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return listing.Record{}, false, ctx.Err()
		}
		if !apperr.Retryable(err) {
			return listing.Record{}, false, err
		}
		w.log.Warn().Str("link", link).Int("attempt", attempt+1).Err(err).Msg("FAIL, retrying")
	}
	return listing.Record{}, false, lastErr
}

// crawlLink renders both currency views of one property and extracts a
// record. No partial record is ever produced: a failed fetch of either
// view fails the whole attempt.
func (w *Walker) crawlLink(ctx context.Context, link string) (listing.Record, bool, error) {
	if err := w.blocked(); err != nil {
		return listing.Record{}, false, err
	}

	usd, err := w.fetcher.FetchRendered(ctx, link, CurrencyUSD)
	if err != nil {
		return listing.Record{}, false, err
	}
	if !sameURL(link, usd.FinalURL) {
		return listing.Record{}, false, nil
	}

	idr, err := w.fetcher.FetchRendered(ctx, link, CurrencyIDR)
	if err != nil {
		return listing.Record{}, false, err
	}
	if !sameURL(link, idr.FinalURL) {
		return listing.Record{}, false, nil
	}

	docUSD, err := goquery.NewDocumentFromReader(strings.NewReader(usd.HTML))
	if err != nil {
		return listing.Record{}, false, apperr.NewExtraction(string(w.section), "unparseable USD view of "+link, err)
	}
	docIDR, err := goquery.NewDocumentFromReader(strings.NewReader(idr.HTML))
	if err != nil {
		return listing.Record{}, false, apperr.NewExtraction(string(w.section), "unparseable IDR view of "+link, err)
	}

	rec, issues := w.extractor.Extract(docUSD, docIDR, link)
	if len(issues) > 0 {
		w.log.Warn().Str("link", link).Int("degraded_fields", len(issues)).Msg("Record extracted with degraded fields")
	}
	return rec, true, nil
}

// fetchListing fetches a plain listing page and parses it. A rate-limit
// response arms the shared block so sibling walkers back off too.
func (w *Walker) fetchListing(ctx context.Context, url string) (*goquery.Document, error) {
	if err := w.blocked(); err != nil {
		return nil, err
	}

	fetchCtx, cancel := context.WithTimeout(ctx, w.cfg.FetchTimeout)
	defer cancel()

	body, err := helpers.FetchWithRandomHeaders(fetchCtx, url)
	if err != nil {
		if strings.HasPrefix(err.Error(), "rate limited") {
			w.block()
			return nil, apperr.NewRateLimit(string(w.section), w.cfg.FetchBlockTime)
		}
		return nil, apperr.NewNetwork(string(w.section), "failed to fetch "+url, err)
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, apperr.NewExtraction(string(w.section), "unparseable listing page "+url, err)
	}
	return doc, nil
}

func (w *Walker) blockKey() string {
	return "block:" + string(w.section)
}

// blocked reports whether the section is inside a rate-limit block window.
func (w *Walker) blocked() error {
	if w.cacheSvc == nil {
		return nil
	}
	if _, err := w.cacheSvc.Get(w.blockKey()); err == nil {
		return apperr.NewRateLimit(string(w.section), w.cfg.FetchBlockTime)
	}
	return nil
}

func (w *Walker) block() {
	if w.cacheSvc == nil {
		return
	}
	seconds := strconv.Itoa(int(w.cfg.FetchBlockTime / time.Second))
	if err := w.cacheSvc.Set(w.blockKey(), []byte(seconds), w.cfg.FetchBlockTime); err != nil {
		w.log.Warn().Err(err).Msg("Failed to arm rate-limit block")
	}
}
