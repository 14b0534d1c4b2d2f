// Package worker bounds how many search jobs execute concurrently.
package worker

import (
	"fmt"

	"github.com/panjf2000/ants/v2"
)

// Pool is a fixed-size goroutine pool for search jobs. Submit is
// non-blocking: when every worker is busy the submission fails and the
// caller decides whether to run inline or reject.
type Pool struct {
	inner *ants.Pool
}

// NewPool creates a pool with the given capacity.
func NewPool(size int) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	inner, err := ants.NewPool(size, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Pool{inner: inner}, nil
}

// Submit schedules the task. Returns an error when the pool is saturated.
func (p *Pool) Submit(task func()) error {
	return p.inner.Submit(task)
}

// Release stops the pool and discards queued work.
func (p *Pool) Release() {
	p.inner.Release()
}

// Running reports how many workers are currently executing tasks.
func (p *Pool) Running() int {
	return p.inner.Running()
}
