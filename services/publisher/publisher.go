package publisher

import "github.com/macrodrigues/property-listing/internal/reconcile"

// Publisher announces dataset changes to downstream consumers.
type Publisher interface {
	// PublishChanges publishes every change of one run.
	PublishChanges(changes []reconcile.Change) error

	// TrimStreams trims all streams to the configured maximum length
	TrimStreams() error

	// Close closes the publisher connection
	Close() error
}
