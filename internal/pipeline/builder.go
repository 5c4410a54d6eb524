package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"medialib/internal/cache"
	"medialib/internal/hashing"
	"medialib/internal/identity"
	"medialib/internal/logging"
	"medialib/internal/mediatypes"
	"medialib/internal/metrics"
	"medialib/internal/probe"
	"medialib/internal/remotefs"
	"medialib/internal/syncclient"
	"medialib/internal/walker"
)

// Phase selects what a scan pass attaches to each record.
type Phase string

const (
	// PhaseHashes observes every file and attaches content hashes.
	PhaseHashes Phase = "hashes"

	// PhaseProbe revisits video files and attaches ffprobe metadata.
	PhaseProbe Phase = "ffprobe"
)

// Builder turns walker entries into upload records, consulting the
// agent cache to skip hashing and probing work already done for an
// unchanged file.
type Builder struct {
	store *cache.Store
	cfg   *syncclient.AgentConfig

	// now is replaceable for off-peak window tests.
	now func() time.Time
}

// NewBuilder creates a record builder over the given cache and config.
func NewBuilder(store *cache.Store, cfg *syncclient.AgentConfig) *Builder {
	return &Builder{store: store, cfg: cfg, now: time.Now}
}

// Build constructs the upload record for one walker entry, or nil if
// the entry is outside the phase's scope. Cache write failures are
// counted and logged but never fail the record.
func (b *Builder) Build(ctx context.Context, e walker.Entry, phase Phase) (*syncclient.FileRecord, error) {
	info, err := remotefs.Stat(e.Path, remotefs.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", e.Path, err)
	}

	ext := strings.ToLower(filepath.Ext(e.Path))
	mtime := float64(info.ModTime().Unix())
	ctime := identity.CTime(info)

	if e.Kind == mediatypes.KindJunk {
		if phase != PhaseHashes {
			return nil, nil
		}
		metrics.ScanFilesProcessed.WithLabelValues(string(e.Kind)).Inc()
		return &syncclient.FileRecord{
			Kind:   string(e.Kind),
			Path:   e.Path,
			Size:   info.Size(),
			MTime:  mtime,
			CTime:  ctime,
			Ext:    ext,
			Reason: "pattern: " + e.JunkPattern,
		}, nil
	}

	key := identity.FromFileInfo(info)
	if err := b.store.UpsertSeen(ctx, e.Path, key, info.Size(), mtime, ctime); err != nil {
		logging.Debug("cache write failed for %s: %v", e.Path, err)
		metrics.CacheWriteErrors.Inc()
	}

	if phase == PhaseProbe && e.Kind != mediatypes.KindVideo {
		return nil, nil
	}

	rec := &syncclient.FileRecord{
		Kind:     string(e.Kind),
		Path:     e.Path,
		Size:     info.Size(),
		MTime:    mtime,
		CTime:    ctime,
		InodeKey: string(key),
		Ext:      ext,
	}

	row, err := b.store.Get(ctx, e.Path)
	if err != nil {
		logging.Debug("cache read failed for %s: %v", e.Path, err)
		row = nil
	}

	switch phase {
	case PhaseProbe:
		b.attachMetadata(ctx, rec, row, key)
	case PhaseHashes:
		b.attachHashes(ctx, rec, row, key)
	}

	metrics.ScanFilesProcessed.WithLabelValues(string(e.Kind)).Inc()
	return rec, nil
}

func (b *Builder) attachMetadata(ctx context.Context, rec *syncclient.FileRecord, row *cache.Record, key identity.Key) {
	if !probe.Available() {
		return
	}

	if cache.ProbeCacheValid(row, key) && row.Probed {
		// Already probed for this identity; the server has the metadata.
		metrics.ProbeCacheHits.Inc()
		return
	}

	meta, err := probe.File(ctx, rec.Path)
	if err != nil {
		logging.Debug("ffprobe failed for %s: %v", rec.Path, err)
		metrics.ProbesRun.WithLabelValues("error").Inc()
		return
	}
	metrics.ProbesRun.WithLabelValues("success").Inc()
	rec.Metadata = meta

	if err := b.store.MarkProbed(ctx, rec.Path); err != nil {
		logging.Debug("cache write failed for %s: %v", rec.Path, err)
		metrics.CacheWriteErrors.Inc()
	}
}

func (b *Builder) attachHashes(ctx context.Context, rec *syncclient.FileRecord, row *cache.Record, key identity.Key) {
	algo := hashing.Algo(b.cfg.HashAlgo)
	sampleSize := b.cfg.HashSampleSize

	if cached, ok := cache.HashCacheValid(row, key, algo, sampleSize); ok {
		metrics.HashCacheHits.Inc()
		rec.Hashes = &syncclient.Hashes{
			Algo:       string(cached.Algo),
			SampleSize: cached.SampleSize,
			SampleHash: cached.SampleHash,
			FullHash:   cached.FullHash,
		}
		return
	}

	sampleHash := ""
	if sampleSize > 0 {
		h, err := hashing.Sample(rec.Path, algo, sampleSize)
		if err != nil {
			logging.Debug("sample hash failed for %s: %v", rec.Path, err)
			metrics.ScanErrors.Inc()
			return
		}
		sampleHash = h
		metrics.HashesComputed.WithLabelValues("sample").Inc()
	}

	fullHash := ""
	if b.cfg.DoFullHash && b.inOffPeakWindow() {
		h, err := hashing.Full(rec.Path, algo)
		if err != nil {
			logging.Debug("full hash failed for %s: %v", rec.Path, err)
			metrics.ScanErrors.Inc()
		} else {
			fullHash = h
			metrics.HashesComputed.WithLabelValues("full").Inc()
		}
	}

	rec.Hashes = &syncclient.Hashes{
		Algo:       string(algo),
		SampleSize: sampleSize,
		SampleHash: sampleHash,
		FullHash:   fullHash,
	}

	if err := b.store.SaveHashes(ctx, rec.Path, algo, sampleSize, sampleHash, fullHash); err != nil {
		logging.Debug("cache write failed for %s: %v", rec.Path, err)
		metrics.CacheWriteErrors.Inc()
	}
}

// inOffPeakWindow reports whether the local hour falls inside the
// configured full-hash window [start, end).
func (b *Builder) inOffPeakWindow() bool {
	hour := b.now().Hour()
	return b.cfg.OffPeakStart <= hour && hour < b.cfg.OffPeakEnd
}
