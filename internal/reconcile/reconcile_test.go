package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/macrodrigues/property-listing/internal/listing"
)

func record(code string, priceIDR, priceUSD float64) listing.Record {
	return listing.Record{
		Title:            "Villa " + code,
		Code:             code,
		PropertyType:     listing.PropertyVillaSale,
		URL:              "https://example.com/property/" + code,
		PriceIDR:         priceIDR,
		PriceUSD:         priceUSD,
		PaymentPeriodIDR: listing.PeriodOneTime,
		PaymentPeriodUSD: listing.PeriodOneTime,
		ListedState:      listing.StateListed,
	}
}

func reconciled(code string, priceIDR, priceUSD float64, firstSeen time.Time) listing.ReconciledRecord {
	return listing.ReconciledRecord{
		Record:           record(code, priceIDR, priceUSD),
		FirstSeenAt:      firstSeen,
		LastSeenAt:       firstSeen,
		OriginalPriceIDR: priceIDR,
		OriginalPriceUSD: priceUSD,
	}
}

func changeKinds(changes []Change) map[string][]ChangeKind {
	kinds := make(map[string][]ChangeKind)
	for _, c := range changes {
		kinds[c.Code] = append(kinds[c.Code], c.Kind)
	}
	return kinds
}

func TestMergeNewCode(t *testing.T) {
	r := New()
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	next, changes := r.Merge(nil, []listing.Record{record("VI1000", 100, 7)}, now)

	require.Len(t, next, 1)
	assert.Equal(t, now, next[0].FirstSeenAt)
	assert.Equal(t, now, next[0].LastSeenAt)
	assert.Equal(t, 100.0, next[0].OriginalPriceIDR)
	assert.Equal(t, 7.0, next[0].OriginalPriceUSD)
	assert.Equal(t, listing.StateListed, next[0].ListedState)

	require.Len(t, changes, 1)
	assert.Equal(t, ChangeNew, changes[0].Kind)
	assert.Equal(t, "VI1000", changes[0].Code)
}

func TestMergePriceChangeKeepsProvenance(t *testing.T) {
	r := New()
	firstSeen := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	now := firstSeen.AddDate(0, 1, 0)

	prior := listing.Dataset{reconciled("VI1000", 100, 7, firstSeen)}
	next, changes := r.Merge(prior, []listing.Record{record("VI1000", 90, 6)}, now)

	require.Len(t, next, 1)
	assert.Equal(t, firstSeen, next[0].FirstSeenAt, "first seen is immutable")
	assert.Equal(t, now, next[0].LastSeenAt)
	assert.Equal(t, 100.0, next[0].OriginalPriceIDR, "original price is immutable")
	assert.Equal(t, 7.0, next[0].OriginalPriceUSD)
	assert.Equal(t, 90.0, next[0].PriceIDR)
	assert.Equal(t, 6.0, next[0].PriceUSD)

	kinds := changeKinds(changes)["VI1000"]
	assert.ElementsMatch(t, []ChangeKind{ChangePriceIDR, ChangePriceUSD}, kinds)
}

func TestMergeUnchangedRefreshesLastSeen(t *testing.T) {
	r := New()
	firstSeen := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	now := firstSeen.AddDate(0, 0, 7)

	prior := listing.Dataset{reconciled("VI1000", 100, 7, firstSeen)}
	next, changes := r.Merge(prior, []listing.Record{record("VI1000", 100, 7)}, now)

	require.Len(t, next, 1)
	assert.Equal(t, now, next[0].LastSeenAt)
	assert.Empty(t, changes)
}

func TestMergeUnlisted(t *testing.T) {
	r := New()
	firstSeen := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	now := firstSeen.AddDate(0, 0, 7)

	prior := listing.Dataset{reconciled("VI1000", 100, 7, firstSeen)}
	next, changes := r.Merge(prior, nil, now)

	require.Len(t, next, 1)
	assert.Equal(t, listing.StateUnlisted, next[0].ListedState)
	assert.Equal(t, firstSeen, next[0].LastSeenAt, "last seen stays at the run that saw it")

	require.Len(t, changes, 1)
	assert.Equal(t, ChangeUnlisted, changes[0].Kind)
}

func TestMergeUnlistedTwiceEmitsOnce(t *testing.T) {
	r := New()
	firstSeen := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	prior := listing.Dataset{reconciled("VI1000", 100, 7, firstSeen)}
	next, changes := r.Merge(prior, nil, firstSeen.AddDate(0, 0, 7))
	require.Len(t, changes, 1)

	_, changes = r.Merge(next, nil, firstSeen.AddDate(0, 0, 14))
	assert.Empty(t, changes, "an already unlisted code does not re-announce")
}

func TestMergeRelisted(t *testing.T) {
	r := New()
	firstSeen := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	prior := listing.Dataset{reconciled("VI1000", 100, 7, firstSeen)}
	prior[0].ListedState = listing.StateUnlisted

	now := firstSeen.AddDate(0, 0, 7)
	next, changes := r.Merge(prior, []listing.Record{record("VI1000", 100, 7)}, now)

	require.Len(t, next, 1)
	assert.Equal(t, listing.StateListed, next[0].ListedState)
	assert.Equal(t, firstSeen, next[0].FirstSeenAt)

	require.Len(t, changes, 1)
	assert.Equal(t, ChangeRelisted, changes[0].Kind)
}

func TestMergeDropsMissingCode(t *testing.T) {
	r := New()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	batch := []listing.Record{record("", 100, 7), record("VI1000", 100, 7)}
	next, changes := r.Merge(nil, batch, now)

	require.Len(t, next, 1)
	assert.Equal(t, "VI1000", next[0].Code)
	require.Len(t, changes, 1)
}

func TestMergeDuplicateCodeFirstWins(t *testing.T) {
	r := New()
	now := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	batch := []listing.Record{record("VI1000", 100, 7), record("VI1000", 999, 70)}
	next, changes := r.Merge(nil, batch, now)

	require.Len(t, next, 1)
	assert.Equal(t, 100.0, next[0].PriceIDR)
	require.Len(t, changes, 1)
}

func TestMergeSortsByFirstSeenDescending(t *testing.T) {
	r := New()
	t0 := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.AddDate(0, 1, 0)
	now := t0.AddDate(0, 2, 0)

	prior := listing.Dataset{
		reconciled("VI1000", 100, 7, t0),
		reconciled("VI2000", 200, 14, t1),
	}
	next, _ := r.Merge(prior, []listing.Record{record("VI3000", 300, 21)}, now)

	require.Len(t, next, 3)
	assert.Equal(t, "VI3000", next[0].Code)
	assert.Equal(t, "VI2000", next[1].Code)
	assert.Equal(t, "VI1000", next[2].Code)
}

func TestMergePriorIsNotMutated(t *testing.T) {
	r := New()
	firstSeen := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)

	prior := listing.Dataset{reconciled("VI1000", 100, 7, firstSeen)}
	r.Merge(prior, []listing.Record{record("VI1000", 90, 6)}, firstSeen.AddDate(0, 0, 7))

	assert.Equal(t, 100.0, prior[0].PriceIDR)
	assert.Equal(t, listing.StateListed, prior[0].ListedState)
}
