package location

import (
	cmap "github.com/orcaman/concurrent-map/v2"
)

// LastKnownCache stores the most recent fix per source kind. Providers write
// every fix they emit; the Acquirer's deadline fallback reads it. The cache
// is shared across concurrent acquisitions, so it is backed by a concurrent
// map rather than a plain one.
type LastKnownCache struct {
	fixes cmap.ConcurrentMap[string, Fix]
}

// NewLastKnownCache creates an empty cache.
func NewLastKnownCache() *LastKnownCache {
	return &LastKnownCache{
		fixes: cmap.New[Fix](),
	}
}

// Record stores fix as the last-known position for its source kind, unless a
// newer fix is already recorded.
func (c *LastKnownCache) Record(fix Fix) {
	c.fixes.Upsert(string(fix.Source), fix, func(exists bool, current, incoming Fix) Fix {
		if exists && current.CapturedAt.After(incoming.CapturedAt) {
			return current
		}
		return incoming
	})
}

// Lookup returns the last-known fix for the given source kind.
func (c *LastKnownCache) Lookup(kind SourceKind) (Fix, bool) {
	return c.fixes.Get(string(kind))
}
