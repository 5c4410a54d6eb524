package pipeline

import (
	"context"
	"time"

	"medialib/internal/logging"
	"medialib/internal/metrics"
)

const (
	tuneInterval = 2 * time.Second

	// Minimum upload throughput, in files per second, before the tuner
	// considers adding concurrency.
	tuneMinRate = 5.0
)

// LoadFunc reports the pipeline's current backlog and upload throughput
// in files per second.
type LoadFunc func() (backlog int, rate float64)

// Tuner adjusts a permit pool based on observed load. It grows the pool
// one permit at a time while the backlog stays small and records keep
// flowing, and shrinks it when the backlog outruns the workers.
type Tuner struct {
	permits  *Permits
	load     LoadFunc
	interval time.Duration
}

// NewTuner creates a tuner over the given permit pool.
func NewTuner(permits *Permits, load LoadFunc) *Tuner {
	return &Tuner{permits: permits, load: load, interval: tuneInterval}
}

// Run adjusts the pool until the context is canceled.
func (t *Tuner) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.adjust()
		}
	}
}

func (t *Tuner) adjust() {
	backlog, rate := t.load()
	limit := t.permits.Limit()

	metrics.PipelineBacklog.Set(float64(backlog))
	metrics.PipelineThroughput.Set(rate)

	if backlog < limit/2 && rate > tuneMinRate {
		if t.permits.Grow() {
			logging.Debug("tuner: raised permit limit to %d (backlog=%d rate=%.1f)", t.permits.Limit(), backlog, rate)
		}
	}

	if backlog > limit*2 {
		if t.permits.Shrink() {
			logging.Debug("tuner: lowered permit limit to %d (backlog=%d rate=%.1f)", t.permits.Limit(), backlog, rate)
		}
	}
}
