package pipeline

import (
	"context"
	"sync"

	"medialib/internal/metrics"
)

// Permits is a resizable concurrency gate. The limit can be grown up to
// a fixed ceiling and shrunk down to one while acquirers are active.
type Permits struct {
	tokens chan struct{}

	mu    sync.Mutex
	limit int
	max   int
	held  int
}

// NewPermits creates a permit pool with the given starting limit and
// ceiling. The ceiling is raised to the limit if it is lower.
func NewPermits(limit, max int) *Permits {
	if limit < 1 {
		limit = 1
	}
	if max < limit {
		max = limit
	}

	p := &Permits{
		tokens: make(chan struct{}, max),
		limit:  limit,
		max:    max,
	}
	for i := 0; i < limit; i++ {
		p.tokens <- struct{}{}
	}
	metrics.PipelinePermits.Set(float64(limit))
	return p
}

// Acquire blocks until a permit is available or the context is done.
func (p *Permits) Acquire(ctx context.Context) error {
	select {
	case <-p.tokens:
		p.mu.Lock()
		p.held++
		p.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit to the pool, or retires it when the pool was
// shrunk below the number of holders while this permit was out.
func (p *Permits) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.held--
	if p.held+len(p.tokens) >= p.limit {
		return
	}
	select {
	case p.tokens <- struct{}{}:
	default:
	}
}

// Grow raises the limit by one, up to the ceiling.
func (p *Permits) Grow() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.limit >= p.max {
		return false
	}
	p.limit++
	metrics.PipelinePermits.Set(float64(p.limit))

	if p.held+len(p.tokens) < p.limit {
		select {
		case p.tokens <- struct{}{}:
		default:
		}
	}
	return true
}

// Shrink lowers the limit by one, down to one. An idle permit is
// retired immediately, otherwise Release retires the next permit
// returned by a holder.
func (p *Permits) Shrink() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.limit <= 1 {
		return false
	}
	p.limit--
	metrics.PipelinePermits.Set(float64(p.limit))

	select {
	case <-p.tokens:
	default:
	}
	return true
}

// Limit returns the current permit limit.
func (p *Permits) Limit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.limit
}

// Max returns the permit ceiling.
func (p *Permits) Max() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.max
}
