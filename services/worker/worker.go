package worker

import (
	"context"
	"sync"
	"time"

	"github.com/macrodrigues/property-listing/helpers"
	"github.com/macrodrigues/property-listing/internal/listing"
	"github.com/macrodrigues/property-listing/internal/reconcile"
	"github.com/macrodrigues/property-listing/services/dataset"
	"github.com/macrodrigues/property-listing/services/publisher"
)

// SectionWalker crawls one listing section into a batch of records.
type SectionWalker interface {
	Section() listing.PropertyType
	Walk(ctx context.Context) ([]listing.Record, error)
}

// Worker drives one full crawl run: read the prior dataset, walk every
// section, reconcile, persist and publish.
type Worker struct {
	ctx        context.Context
	walkers    []SectionWalker
	store      dataset.Store
	reconciler *reconcile.Reconciler
	pub        publisher.Publisher
	logger     helpers.LoggerInterface
}

// NewWorker creates a new worker
func NewWorker(
	ctx context.Context,
	walkers []SectionWalker,
	store dataset.Store,
	reconciler *reconcile.Reconciler,
	pub publisher.Publisher,
	logger helpers.LoggerInterface,
) *Worker {
	return &Worker{
		ctx:        ctx,
		walkers:    walkers,
		store:      store,
		reconciler: reconciler,
		pub:        pub,
		logger:     logger,
	}
}

// Run executes one crawl run. Any error it returns failed the run as a
// whole; the caller decides whether to retry.
//
// A failed section fails the run: merging a partial batch would flip
// every record of the missing section to unlisted.
func (w *Worker) Run() error {
	start := time.Now()

	prior, err := w.store.Read(w.ctx)
	if err != nil {
		w.logger.LogError("dataset", err)
		return err
	}

	batches := make([][]listing.Record, len(w.walkers))
	errs := make([]error, len(w.walkers))

	var wg sync.WaitGroup
	for i, walker := range w.walkers {
		wg.Add(1)
		go func(i int, walker SectionWalker) {
			defer wg.Done()
			batches[i], errs[i] = walker.Walk(w.ctx)
		}(i, walker)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			w.logger.LogError(string(w.walkers[i].Section()), err)
			return err
		}
	}

	var batch []listing.Record
	for _, records := range batches {
		batch = append(batch, records...)
	}
	w.logger.LogInfo("crawled %d records across %d sections", len(batch), len(w.walkers))

	next, changes := w.reconciler.Merge(prior, batch, time.Now())

	if err := w.store.Write(w.ctx, next); err != nil {
		w.logger.LogError("dataset", err)
		return err
	}

	// Publishing is best effort: the dataset is already safe on disk.
	if err := w.pub.PublishChanges(changes); err != nil {
		w.logger.LogError("publisher", err)
	}
	if err := w.pub.TrimStreams(); err != nil {
		w.logger.LogError("publisher", err)
	}

	w.logger.LogInfo("run finished in %s: %d records, %d changes", time.Since(start), len(next), len(changes))
	return nil
}
