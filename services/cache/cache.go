package cache

import (
	"time"
)

// CacheService holds the short-lived state the section walkers share,
// most importantly the per-section rate-limit blocks that keep every
// walker off a section the site just throttled.
type CacheService interface {
	// Get retrieves the value stored under key
	Get(key string) ([]byte, error)

	// Set stores a value under key until expiration
	Set(key string, value []byte, expiration time.Duration) error

	// Delete removes the value stored under key
	Delete(key string) error
}
