package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrodrigues/property-listing/config"
	"github.com/macrodrigues/property-listing/helpers"
	"github.com/macrodrigues/property-listing/internal/crawl"
	"github.com/macrodrigues/property-listing/internal/listing"
	"github.com/macrodrigues/property-listing/internal/reconcile"
	"github.com/macrodrigues/property-listing/services/dataset"
	"github.com/macrodrigues/property-listing/services/worker"
)

// fakeSite serves listing pages over HTTP and detail pages through a
// crawl.Fetcher, like the real site split between plain pages and the
// rendered currency views.
type fakeSite struct {
	mu      sync.Mutex
	details map[string]string
	gone    map[string]bool
}

func (s *fakeSite) FetchRendered(_ context.Context, url string, _ crawl.Currency) (crawl.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone[url] {
		return crawl.Result{FinalURL: "https://site/"}, nil
	}
	return crawl.Result{HTML: s.details[url], FinalURL: url}, nil
}

func (s *fakeSite) Close() error { return nil }

func (s *fakeSite) setPrice(url, code, price string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.details[url] = fmt.Sprintf(`<html><body>
<h1 class="name">Villa %s</h1>
<span class="code">%s</span>
<div class="regular-price">%s</div>
<div class="colswidth20">Property Location
Bali
Canggu</div>
<div class="colswidth20">Ownership
Status
free hold property</div>
<div class="available">
<p>Type</p><p>Villa</p><p>Rooms</p><p>Bedrooms
3</p><p>Bathrooms</p><p>2</p>
</div>
<div class="property-description-row flexbox">
<p>Code
%s</p><p>Type
Villa</p><p>Bedrooms
3</p><p>Land Size
4.5</p><p>Bathrooms</p><p>Building Size
200</p><p>Furnished
no</p>
</div>
</body></html>`, code, code, price, code)
}

// capturingPublisher records changes instead of talking to Redis.
type capturingPublisher struct {
	mu      sync.Mutex
	changes []reconcile.Change
}

func (p *capturingPublisher) PublishChanges(changes []reconcile.Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, changes...)
	return nil
}

func (p *capturingPublisher) TrimStreams() error { return nil }
func (p *capturingPublisher) Close() error       { return nil }

func (p *capturingPublisher) kinds() []reconcile.ChangeKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	kinds := make([]reconcile.ChangeKind, len(p.changes))
	for i, c := range p.changes {
		kinds[i] = c.Kind
	}
	return kinds
}

func TestPipelineAcrossRuns(t *testing.T) {
	linkA := "https://site/property/vi1000"
	linkB := "https://site/property/vi2000"

	site := &fakeSite{details: make(map[string]string), gone: make(map[string]bool)}
	site.setPrice(linkA, "VI1000", "Rp 2.500.000.000")
	site.setPrice(linkB, "VI2000", "Rp 1.000.000.000")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body><div id="box">
<div class="box property-item"><a href="%s">view</a></div>
<div class="box property-item"><a href="%s">view</a></div>
</div></body></html>`, linkA, linkB)
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	cfg := &config.Config{
		FetchMaxRetries: 1,
		FetchRetryDelay: time.Millisecond,
		FetchTimeout:    2 * time.Second,
		FetchBlockTime:  time.Minute,
	}
	store := dataset.NewCSVStore(filepath.Join(dir, "properties.csv"), filepath.Join(dir, "archive"))
	runLog, err := helpers.NewRunLogger(filepath.Join(dir, "logs"))
	require.NoError(t, err)

	runPipeline := func(pub *capturingPublisher) {
		t.Helper()
		walkers := []worker.SectionWalker{
			crawl.NewWalker(srv.URL+"/search/villas-for-sale", site, nil, cfg),
		}
		w := worker.NewWorker(context.Background(), walkers, store, reconcile.New(), pub, runLog)
		require.NoError(t, w.Run())
	}

	// First run: both properties are new.
	pub1 := &capturingPublisher{}
	runPipeline(pub1)
	assert.ElementsMatch(t, []reconcile.ChangeKind{reconcile.ChangeNew, reconcile.ChangeNew}, pub1.kinds())

	ds, err := store.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, ds, 2)

	// Second run: one price drops and the other property disappears.
	site.setPrice(linkA, "VI1000", "Rp 2.000.000.000")
	site.mu.Lock()
	site.gone[linkB] = true
	site.mu.Unlock()

	pub2 := &capturingPublisher{}
	runPipeline(pub2)
	// Both currency views serve the same page here, so the drop shows up
	// in IDR and USD alike.
	assert.ElementsMatch(t,
		[]reconcile.ChangeKind{reconcile.ChangePriceIDR, reconcile.ChangePriceUSD, reconcile.ChangeUnlisted},
		pub2.kinds())

	ds, err = store.Read(context.Background())
	require.NoError(t, err)
	require.Len(t, ds, 2)

	i := ds.Find("VI1000")
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, 2000000000.0, ds[i].PriceIDR)
	assert.Equal(t, 2500000000.0, ds[i].OriginalPriceIDR)
	assert.Equal(t, listing.StateListed, ds[i].ListedState)

	j := ds.Find("VI2000")
	require.GreaterOrEqual(t, j, 0)
	assert.Equal(t, listing.StateUnlisted, ds[j].ListedState)
}
