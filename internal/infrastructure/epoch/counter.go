// Package epoch tracks the corpus epoch: a monotonic counter that changes
// whenever the document corpus changes. Cache keys embed the current value,
// so advancing the epoch makes every previously cached response unreachable.
package epoch

import "sync/atomic"

type Counter struct {
	value atomic.Uint64
}

// NewCounter seeds the counter, typically from configuration or from a
// deploy-time corpus version. A fresh instance that seeds the same value
// as its peers produces the same cache keys.
func NewCounter(seed uint64) *Counter {
	c := &Counter{}
	c.value.Store(seed)
	return c
}

func (c *Counter) Current() uint64 {
	return c.value.Load()
}

func (c *Counter) Advance() uint64 {
	return c.value.Add(1)
}
