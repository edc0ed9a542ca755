package engine

import "sync"

// Deduplicator tracks article links already processed or already queued in
// the current batch. Links are compared exactly; listing pages emit the same
// absolute URL for the same article.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDeduplicator creates a Deduplicator seeded with known links.
func NewDeduplicator(known map[string]struct{}) *Deduplicator {
	seen := make(map[string]struct{}, len(known))
	for link := range known {
		seen[link] = struct{}{}
	}
	return &Deduplicator{seen: seen}
}

// Add marks link as seen and reports whether it was new.
func (d *Deduplicator) Add(link string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen[link]; ok {
		return false
	}
	d.seen[link] = struct{}{}
	return true
}
