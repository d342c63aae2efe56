package crawl

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/macrodrigues/property-listing/config"
	"github.com/macrodrigues/property-listing/logger"
	apperr "github.com/macrodrigues/property-listing/pkg/errors"
)

const sessionUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// currencySelector is the header dropdown that opens the currency menu.
const currencySelector = ".header-cur"

// clickNthTextJS clicks the nth innermost element whose trimmed text equals
// the wanted currency label. The menu renders the same label several times,
// so the position matters.
const clickNthTextJS = `(function(want, nth) {
	var all = document.querySelectorAll('body *');
	var hits = [];
	for (var i = 0; i < all.length; i++) {
		var el = all[i];
		if (el.children.length === 0 && el.textContent.trim() === want) {
			hits.push(el);
		}
	}
	if (nth >= hits.length) {
		return false;
	}
	hits[nth].click();
	return true;
})(%q, %d)`

// Session is a Fetcher backed by one headless browser. The site stores the
// selected currency in browser session state, so one Session must serve all
// fetches of a walk and fetches are serialized.
type Session struct {
	allocCtx     context.Context
	cancelAlloc  context.CancelFunc
	browserCtx   context.Context
	cancelBrowse context.CancelFunc
	timeout      time.Duration
	log          *logger.Logger

	mu sync.Mutex
	// The USD menu entry moves up one slot after the first toggle.
	toggledUSD bool
}

// NewSession launches a headless browser ready to render detail pages.
func NewSession(cfg *config.Config) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(sessionUserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if cfg.ChromeBin != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancelBrowse := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(string, ...interface{}) {}))

	// Start the browser now so a broken binary fails loudly here instead
	// of on the first fetch.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowse()
		cancelAlloc()
		return nil, apperr.NewNetwork("session", "failed to launch browser", err)
	}

	return &Session{
		allocCtx:     allocCtx,
		cancelAlloc:  cancelAlloc,
		browserCtx:   browserCtx,
		cancelBrowse: cancelBrowse,
		timeout:      cfg.FetchTimeout,
		log:          logger.ForWalker("session"),
	}, nil
}

// FetchRendered navigates to url, switches the site to the requested
// currency and returns the rendered page. A redirect is reported through
// Result.FinalURL without an error; the currency is not touched in that
// case since the target is not a detail page.
func (s *Session) FetchRendered(ctx context.Context, url string, currency Currency) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCtx, cancel := context.WithTimeout(s.browserCtx, s.timeout)
	defer cancel()
	stop := propagateCancel(ctx, cancel)
	defer stop()

	var finalURL string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible("body", chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		return Result{}, apperr.NewNetwork("session", "failed to render "+url, err)
	}

	if !sameURL(url, finalURL) {
		return Result{FinalURL: finalURL}, nil
	}

	var clicked bool
	var html string
	err = chromedp.Run(runCtx,
		chromedp.Click(currencySelector, chromedp.ByQuery, chromedp.NodeVisible),
		chromedp.Evaluate(fmt.Sprintf(clickNthTextJS, string(currency), s.currencyNth(currency)), &clicked),
		chromedp.Sleep(500*time.Millisecond),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return Result{}, apperr.NewNetwork("session", "currency toggle failed on "+url, err)
	}
	if !clicked {
		return Result{}, apperr.NewNetwork("session", "currency menu entry not found on "+url, nil)
	}
	if currency == CurrencyUSD {
		s.toggledUSD = true
	}

	s.log.Debug().
		Str("url", url).
		Str("currency", string(currency)).
		Int("bytes", len(html)).
		Msg("Rendered detail page")

	return Result{HTML: html, FinalURL: finalURL}, nil
}

// Close shuts the browser down.
func (s *Session) Close() error {
	s.cancelBrowse()
	s.cancelAlloc()
	return nil
}

// currencyNth returns the menu position of the currency label. IDR always
// sits first; USD starts at the third slot and moves to the second once
// the session has toggled away from the site default.
func (s *Session) currencyNth(currency Currency) int {
	if currency == CurrencyIDR {
		return 0
	}
	if s.toggledUSD {
		return 1
	}
	return 2
}

// propagateCancel cancels the browser run when the caller's context ends.
func propagateCancel(ctx context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

func sameURL(a, b string) bool {
	return strings.TrimSuffix(a, "/") == strings.TrimSuffix(b, "/")
}
