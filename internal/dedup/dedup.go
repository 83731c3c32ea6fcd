// Package dedup remembers every raw gossip message a peer has already seen
// so a flood terminates instead of echoing forever.
package dedup

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// Horizon bounds how long a message's entry is kept. It only needs to
// outlive the gossip horizon of the overlay (every peer should have seen
// and forwarded a block long before this elapses); it does not affect
// correctness of suppression within that horizon.
const Horizon = 2 * time.Hour

// Cache is a set of raw message byte-strings (including the START-MINING
// sentinel) keyed by their exact contents.
type Cache struct {
	seen *lru.LRU[string, struct{}]
}

// New returns an empty cache. size is the maximum number of distinct
// messages tracked at once; entries also expire after Horizon, whichever
// comes first.
func New(size int) *Cache {
	return &Cache{seen: lru.NewLRU[string, struct{}](size, nil, Horizon)}
}

// Observe records msg as seen and reports whether it had already been
// observed. Callers must hold the message mutex (Node.Mu in internal/node) before
// calling Observe and must not forward msg if seenBefore is true.
func (c *Cache) Observe(msg []byte) (seenBefore bool) {
	key := string(msg)
	if _, ok := c.seen.Get(key); ok {
		return true
	}
	c.seen.Add(key, struct{}{})
	return false
}

// Mark records msg as seen without reporting prior membership, for callers
// (the mining loop) that already know the message is new because they just
// produced it.
func (c *Cache) Mark(msg []byte) {
	c.seen.Add(string(msg), struct{}{})
}
