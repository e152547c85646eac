// Package flight coalesces duplicate generation work: concurrent requests
// for the same key share one execution, and finished results are held for a
// TTL so a double-click does not hit the GPU twice.
package flight

import (
	"sync"
	"time"
)

type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	finished map[K]*entry[V]
	pending  map[K]*job[V]
	work     func(K) (V, error)
	ttl      time.Duration
}

type entry[V any] struct {
	val      V
	deadline time.Time // zero => never expires
}

type job[V any] struct {
	val  V
	err  error
	done chan struct{}
}

func NewCache[K comparable, V any](work func(K) (V, error)) *Cache[K, V] {
	return &Cache[K, V]{
		finished: make(map[K]*entry[V]),
		pending:  make(map[K]*job[V]),
		work:     work,
		ttl:      time.Hour,
	}
}

// Expiry sets the hold duration for future results. d <= 0 keeps results
// until Force replaces them.
func (c *Cache[K, V]) Expiry(d time.Duration) {
	c.mu.Lock()
	c.ttl = d
	c.mu.Unlock()
}

// Get returns a cached result, joins an in-flight execution, or runs the
// work itself.
func (c *Cache[K, V]) Get(k K) (V, error) {
	c.mu.Lock()

	if e, ok := c.finished[k]; ok {
		if e.deadline.IsZero() || time.Now().Before(e.deadline) {
			val := e.val
			c.mu.Unlock()
			return val, nil
		}
		delete(c.finished, k)
	}

	if p, ok := c.pending[k]; ok {
		c.mu.Unlock()
		<-p.done
		return p.val, p.err
	}

	j := &job[V]{done: make(chan struct{})}
	c.pending[k] = j
	c.mu.Unlock()

	c.run(k, j)
	return j.val, j.err
}

// Force discards any cached result and re-runs the work, waiting out an
// in-flight execution first so two runs never overlap for one key.
func (c *Cache[K, V]) Force(k K) (V, error) {
	var j *job[V]
	for {
		c.mu.Lock()
		if existing, ok := c.pending[k]; ok {
			c.mu.Unlock()
			<-existing.done
			continue
		}
		delete(c.finished, k)
		j = &job[V]{done: make(chan struct{})}
		c.pending[k] = j
		c.mu.Unlock()
		break
	}

	c.run(k, j)
	return j.val, j.err
}

func (c *Cache[K, V]) run(k K, j *job[V]) {
	j.val, j.err = c.work(k)

	c.mu.Lock()
	if j.err == nil {
		e := &entry[V]{val: j.val}
		if c.ttl > 0 {
			e.deadline = time.Now().Add(c.ttl)
		}
		c.finished[k] = e
	}
	close(j.done)
	delete(c.pending, k)
	c.mu.Unlock()
}
