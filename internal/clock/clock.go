// Package clock supplies the registry's logical height. Heights never
// decrease; the registry compares issue and expiry dates against them.
package clock

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Manual is a settable height source. Operators drive it through the
// admin height routes in internal/clock/handler.
type Manual struct {
	height atomic.Uint64
}

// NewManual creates a clock starting at height.
func NewManual(height uint64) *Manual {
	c := &Manual{}
	c.height.Store(height)
	return c
}

// CurrentHeight returns the current height.
func (c *Manual) CurrentHeight() uint64 {
	return c.height.Load()
}

// Set moves the clock to height. Lower values are ignored. Returns the
// resulting height.
func (c *Manual) Set(height uint64) uint64 {
	for {
		cur := c.height.Load()
		if height <= cur {
			return cur
		}
		if c.height.CompareAndSwap(cur, height) {
			return height
		}
	}
}

// Advance moves the clock forward by n and returns the new height. The
// height saturates at math.MaxUint64 instead of wrapping.
func (c *Manual) Advance(n uint64) uint64 {
	for {
		cur := c.height.Load()
		next := cur + n
		if next < cur {
			next = math.MaxUint64
		}
		if c.height.CompareAndSwap(cur, next) {
			return next
		}
	}
}

// Interval derives height from elapsed wall-clock time: one block per
// interval since genesis, offset by start. Wall-clock steps backwards are
// absorbed so the reported height never decreases.
type Interval struct {
	genesis  time.Time
	interval time.Duration
	start    uint64
	now      func() time.Time

	mu   sync.Mutex
	last uint64
}

type IntervalOption func(*Interval)

// WithNow overrides the wall-clock source.
func WithNow(now func() time.Time) IntervalOption {
	return func(c *Interval) {
		if now != nil {
			c.now = now
		}
	}
}

// NewInterval panics on a non-positive interval; config validation rejects
// that before construction.
func NewInterval(genesis time.Time, interval time.Duration, start uint64, opts ...IntervalOption) *Interval {
	if interval <= 0 {
		panic("clock: interval must be positive")
	}
	c := &Interval{
		genesis:  genesis,
		interval: interval,
		start:    start,
		now:      time.Now,
		last:     start,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Interval) CurrentHeight() uint64 {
	h := c.start
	if elapsed := c.now().Sub(c.genesis); elapsed > 0 {
		blocks := uint64(elapsed / c.interval)
		if h += blocks; h < blocks {
			h = math.MaxUint64
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if h < c.last {
		return c.last
	}
	c.last = h
	return h
}
