package vehicle

import (
	"context"
	"sync"
	"time"

	"github.com/CBA-Consult/scev-self-charging-electric-vehicle-sub005/core/logger"
)

// DefaultMaxAge is how long a snapshot stays fresh when the bus goes quiet.
const DefaultMaxAge = 2 * time.Second

// StatusCache holds the last known vehicle snapshot. Readers always get a
// value once one arrived; the stale flag tells them how much to trust it.
type StatusCache struct {
	mu      sync.Mutex
	last    EnergyStatus
	have    bool
	updated time.Time
	maxAge  time.Duration
	clock   func() time.Time
}

// NewStatusCache builds a cache. maxAge <= 0 selects DefaultMaxAge.
func NewStatusCache(maxAge time.Duration) *StatusCache {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &StatusCache{maxAge: maxAge, clock: time.Now}
}

// SetClock overrides the time source. Intended for tests.
func (c *StatusCache) SetClock(clock func() time.Time) {
	c.mu.Lock()
	c.clock = clock
	c.mu.Unlock()
}

// Update stores a new snapshot and resets the staleness window.
func (c *StatusCache) Update(st EnergyStatus) {
	c.mu.Lock()
	c.last = st
	c.have = true
	c.updated = c.clock()
	c.mu.Unlock()
}

// Snapshot returns the last known status. stale is true when no snapshot has
// arrived yet or the last one exceeded the freshness window.
func (c *StatusCache) Snapshot() (st EnergyStatus, stale bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.have {
		return EnergyStatus{}, true
	}
	return c.last, c.clock().Sub(c.updated) > c.maxAge
}

// Watch consumes the bus status stream into the cache until the context is
// cancelled or the stream closes. Run it on its own goroutine.
func (c *StatusCache) Watch(ctx context.Context, bus Bus, log logger.Logger) {
	if log == nil {
		log = logger.Nop{}
	}
	updates := bus.StatusUpdates()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-updates:
			if !ok {
				log.Warnf("vehicle status stream closed")
				return
			}
			c.Update(st)
		}
	}
}
