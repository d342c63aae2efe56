package reconcile

import (
	"sort"
	"strconv"
	"time"

	"github.com/macrodrigues/property-listing/internal/listing"
	"github.com/macrodrigues/property-listing/logger"
	apperr "github.com/macrodrigues/property-listing/pkg/errors"
)

// ChangeKind names one kind of dataset transition worth publishing.
type ChangeKind string

const (
	ChangeNew      ChangeKind = "new"
	ChangePriceIDR ChangeKind = "price_idr"
	ChangePriceUSD ChangeKind = "price_usd"
	ChangeRelisted ChangeKind = "relisted"
	ChangeUnlisted ChangeKind = "unlisted"
)

// Change is one observable transition produced by a merge, keyed by the
// listing code it happened to.
type Change struct {
	Code string     `json:"code"`
	Kind ChangeKind `json:"kind"`
	Old  string     `json:"old,omitempty"`
	New  string     `json:"new,omitempty"`
}

// Reconciler merges a freshly crawled batch into the prior dataset.
type Reconciler struct {
	log *logger.Logger
}

func New() *Reconciler {
	return &Reconciler{log: logger.ForReconciler()}
}

// Merge folds the fresh batch into the prior dataset and returns the next
// dataset plus the changes observed.
//
// Provenance is append-only: FirstSeenAt and the original prices of a code
// are set on first sight and never touched on later runs. A code absent
// from the batch but present in the prior dataset is kept and flipped to
// unlisted; its LastSeenAt stays at the last run that actually saw it.
// Batch records without a code cannot be keyed and are dropped with a
// warning. Duplicate codes within one batch resolve first-occurrence-wins.
func (r *Reconciler) Merge(prior listing.Dataset, fresh []listing.Record, now time.Time) (listing.Dataset, []Change) {
	next := make(listing.Dataset, len(prior))
	copy(next, prior)

	var changes []Change
	seen := make(map[string]struct{}, len(fresh))

	for _, rec := range fresh {
		if rec.Code == "" {
			r.log.Warn().
				Err(apperr.NewReconcileInput("record without a code")).
				Str("title", rec.Title).
				Str("url", rec.URL).
				Msg("Dropping record without a code")
			continue
		}
		if _, dup := seen[rec.Code]; dup {
			r.log.Warn().
				Err(apperr.NewReconcileInput("duplicate code in batch")).
				Str("code", rec.Code).
				Str("url", rec.URL).
				Msg("Duplicate code in batch, keeping first occurrence")
			continue
		}
		seen[rec.Code] = struct{}{}

		rec.ListedState = listing.StateListed

		i := next.Find(rec.Code)
		if i < 0 {
			next = append(next, listing.ReconciledRecord{
				Record:           rec,
				FirstSeenAt:      now,
				LastSeenAt:       now,
				OriginalPriceIDR: rec.PriceIDR,
				OriginalPriceUSD: rec.PriceUSD,
			})
			changes = append(changes, Change{Code: rec.Code, Kind: ChangeNew, New: formatPrice(rec.PriceIDR)})
			continue
		}

		old := next[i]
		if old.PriceIDR != rec.PriceIDR {
			changes = append(changes, Change{
				Code: rec.Code,
				Kind: ChangePriceIDR,
				Old:  formatPrice(old.PriceIDR),
				New:  formatPrice(rec.PriceIDR),
			})
		}
		if old.PriceUSD != rec.PriceUSD {
			changes = append(changes, Change{
				Code: rec.Code,
				Kind: ChangePriceUSD,
				Old:  formatPrice(old.PriceUSD),
				New:  formatPrice(rec.PriceUSD),
			})
		}
		if old.ListedState == listing.StateUnlisted {
			changes = append(changes, Change{Code: rec.Code, Kind: ChangeRelisted})
		}

		next[i] = listing.ReconciledRecord{
			Record:           rec,
			FirstSeenAt:      old.FirstSeenAt,
			LastSeenAt:       now,
			OriginalPriceIDR: old.OriginalPriceIDR,
			OriginalPriceUSD: old.OriginalPriceUSD,
		}
	}

	for i := range next {
		if _, ok := seen[next[i].Code]; ok {
			continue
		}
		if next[i].ListedState == listing.StateListed {
			changes = append(changes, Change{Code: next[i].Code, Kind: ChangeUnlisted})
		}
		next[i].ListedState = listing.StateUnlisted
	}

	sort.SliceStable(next, func(i, j int) bool {
		return next[i].FirstSeenAt.After(next[j].FirstSeenAt)
	})

	r.log.Info().
		Int("prior", len(prior)).
		Int("batch", len(fresh)).
		Int("next", len(next)).
		Int("changes", len(changes)).
		Msg("Merge complete")

	return next, changes
}

func formatPrice(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
