package pipeline

import (
	"context"
	"sync"
	"time"

	"medialib/internal/cache"
	"medialib/internal/logging"
	"medialib/internal/mediatypes"
	"medialib/internal/metrics"
	"medialib/internal/syncclient"
	"medialib/internal/walker"
	"medialib/internal/workers"
)

// Progress cursors are persisted every this many observed paths.
const cursorSaveInterval = 500

// Stats is a snapshot of the current or most recent scan pass.
type Stats struct {
	TS          int64          `json:"ts"`
	Roots       []string       `json:"roots"`
	Active      bool           `json:"active"`
	Elapsed     float64        `json:"elapsed"`
	Seen        int            `json:"seen"`
	Uploaded    int            `json:"uploaded"`
	Batches     int            `json:"batches"`
	Rate        float64        `json:"rate_files_per_s"`
	DataMiB     float64        `json:"data_mib"`
	Kinds       map[string]int `json:"kinds"`
	Workers     int            `json:"workers"`
	BatchSize   int            `json:"batch_size"`
	Errors      int            `json:"errors"`
	TotalAll    int            `json:"total_all"`
	TotalVideos int            `json:"total_videos"`
	Phase       int            `json:"phase"`
	PhaseName   string         `json:"phase_name"`
	SeenVideos  int            `json:"seen_videos"`
}

// Scanner runs scan cycles against the configured remote roots. Only
// one cycle runs at a time; TryStart guards concurrent triggers.
type Scanner struct {
	store  *cache.Store
	client *syncclient.Client

	mu     sync.Mutex
	active bool
	stats  Stats
}

// NewScanner creates a scanner over the agent cache and upload client.
func NewScanner(store *cache.Store, client *syncclient.Client) *Scanner {
	return &Scanner{store: store, client: client, stats: Stats{Kinds: map[string]int{}}}
}

// Active reports whether a scan cycle is currently running.
func (s *Scanner) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// TryStart marks the scanner active, or reports false if a cycle is
// already running.
func (s *Scanner) TryStart() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active {
		return false
	}
	s.active = true
	metrics.ScanRunning.Set(1)
	return true
}

// Finish releases the active slot claimed by TryStart.
func (s *Scanner) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = false
	metrics.ScanRunning.Set(0)
}

// Stats returns a snapshot of the current or most recent pass.
func (s *Scanner) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.stats
	out.Active = s.active
	out.Kinds = make(map[string]int, len(s.stats.Kinds))
	for k, v := range s.stats.Kinds {
		out.Kinds[k] = v
	}
	return out
}

// RunCycle executes one full scan cycle: a hashing pass over every root
// followed by an ffprobe pass over video files. The caller must hold
// the active slot via TryStart. Returns the total records uploaded.
func (s *Scanner) RunCycle(ctx context.Context, cfg *syncclient.AgentConfig) (int, error) {
	start := time.Now()
	metrics.ScanRunsTotal.Inc()
	defer func() {
		metrics.ScanLastRunTimestamp.Set(float64(time.Now().Unix()))
		metrics.ScanLastRunDuration.Set(time.Since(start).Seconds())
	}()

	totalAll, totalVideos := s.preCount(ctx, cfg)
	logging.Info("pre-count: total files=%d, video files=%d", totalAll, totalVideos)

	s.mu.Lock()
	s.stats = Stats{
		Roots:       append([]string(nil), cfg.RemoteRoots...),
		Kinds:       map[string]int{},
		Workers:     cfg.MaxWorkers,
		BatchSize:   cfg.BatchSize,
		TotalAll:    totalAll,
		TotalVideos: totalVideos,
	}
	s.mu.Unlock()

	total := 0
	phases := []struct {
		num   int
		phase Phase
	}{
		{1, PhaseHashes},
		{2, PhaseProbe},
	}

	for _, p := range phases {
		s.mu.Lock()
		s.stats.Phase = p.num
		s.stats.PhaseName = string(p.phase)
		s.stats.SeenVideos = 0
		s.mu.Unlock()

		for _, root := range cfg.RemoteRoots {
			logging.Info("scanning root (pass%d %s): %s", p.num, p.phase, root)
			uploaded, err := s.scanRoot(ctx, cfg, root, p.phase)
			total += uploaded
			if err != nil {
				return total, err
			}
			logging.Info("root pass%d done: %s uploaded %d", p.num, root, uploaded)
		}
	}

	return total, nil
}

// preCount walks every root once to estimate totals for progress
// reporting. Failures only degrade the progress display.
func (s *Scanner) preCount(ctx context.Context, cfg *syncclient.AgentConfig) (all, videos int) {
	tables := cfg.Tables()
	for _, root := range cfg.RemoteRoots {
		err := walker.Walk(ctx, root, walker.Options{Tables: tables, FollowSymlinks: cfg.FollowSymlinks}, func(e walker.Entry) error {
			all++
			if e.Kind == mediatypes.KindVideo {
				videos++
			}
			return nil
		})
		if err != nil {
			logging.Warn("pre-count failed for %s: %v", root, err)
		}
	}
	return all, videos
}

// scanRoot runs one phase over one root, resuming from any persisted
// cursor and clearing it when the walk completes.
func (s *Scanner) scanRoot(ctx context.Context, cfg *syncclient.AgentConfig, root string, phase Phase) (int, error) {
	cursor, err := s.store.LoadProgress(ctx, root, string(phase))
	if err != nil {
		logging.Debug("failed to load cursor for %s/%s: %v", root, phase, err)
		cursor = ""
	}
	if cursor != "" {
		logging.Info("resuming %s pass for %s after %s", phase, root, cursor)
	}

	builder := NewBuilder(s.store, cfg)
	batcher := NewBatcher(s.client, cfg.BatchSize, cfg.UseGzip)

	workerCount := cfg.MaxWorkers
	if workerCount < 1 {
		workerCount = workers.ForIO(16)
	}
	ceiling := workerCount
	if ceiling < 8 {
		ceiling = 8
	}
	permits := NewPermits(workerCount, ceiling)
	jobs := make(chan walker.Entry, ceiling*4)

	start := time.Now()

	tunerCtx, stopTuner := context.WithCancel(ctx)
	defer stopTuner()
	if cfg.Adaptive {
		tuner := NewTuner(permits, func() (int, float64) {
			elapsed := time.Since(start).Seconds()
			if elapsed <= 0 {
				return len(jobs), 0
			}
			return len(jobs), float64(batcher.Uploaded()) / elapsed
		})
		go tuner.Run(tunerCtx)
	}

	var wg sync.WaitGroup
	for i := 0; i < ceiling; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range jobs {
				if err := permits.Acquire(ctx); err != nil {
					return
				}
				rec, err := builder.Build(ctx, e, phase)
				permits.Release()

				if err != nil {
					logging.Error("failed to build record for %s: %v", e.Path, err)
					metrics.ScanErrors.Inc()
					s.mu.Lock()
					s.stats.Errors++
					s.mu.Unlock()
					continue
				}
				if rec == nil {
					continue
				}

				s.mu.Lock()
				s.stats.Kinds[rec.Kind]++
				s.stats.DataMiB += float64(rec.Size) / (1024 * 1024)
				if phase == PhaseProbe && rec.Kind == string(mediatypes.KindVideo) {
					s.stats.SeenVideos++
				}
				s.mu.Unlock()

				if err := batcher.Add(ctx, *rec); err != nil {
					logging.Error("batch upload failed: %v", err)
					s.mu.Lock()
					s.stats.Errors++
					s.mu.Unlock()
				}
			}
		}()
	}

	seen := 0
	skipping := cursor != ""
	walkErr := walker.Walk(ctx, root, walker.Options{Tables: cfg.Tables(), FollowSymlinks: cfg.FollowSymlinks}, func(e walker.Entry) error {
		if skipping {
			if e.Path <= cursor {
				return nil
			}
			skipping = false
		}

		seen++
		if seen%1000 == 0 {
			logging.Info("seen %d files, pending batch %d", seen, batcher.Pending())
		}
		if seen%cursorSaveInterval == 0 {
			if err := s.store.SaveProgress(ctx, root, string(phase), e.Path); err != nil {
				logging.Debug("failed to save cursor for %s/%s: %v", root, phase, err)
			}
		}

		s.mu.Lock()
		s.stats.Seen++
		s.mu.Unlock()

		select {
		case jobs <- e:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	close(jobs)
	wg.Wait()

	if err := batcher.Flush(ctx); err != nil {
		logging.Error("final batch upload failed: %v", err)
	}

	s.mu.Lock()
	s.stats.Uploaded += batcher.Uploaded()
	s.stats.Batches += batcher.Batches()
	elapsed := time.Since(start).Seconds()
	if elapsed > 0 {
		s.stats.Rate = float64(s.stats.Uploaded) / elapsed
	}
	s.stats.Elapsed += elapsed
	s.stats.TS = time.Now().Unix()
	s.mu.Unlock()

	if walkErr == nil {
		if err := s.store.ClearProgress(ctx, root, string(phase)); err != nil {
			logging.Debug("failed to clear cursor for %s/%s: %v", root, phase, err)
		}
	}

	return batcher.Uploaded(), walkErr
}
