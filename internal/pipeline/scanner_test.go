package pipeline

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"medialib/internal/syncclient"
)

func writeTree(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("failed to create directory: %v", err)
		}
		if err := os.WriteFile(path, []byte("contents of "+name), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
}

func scanConfig(root string) syncclient.AgentConfig {
	cfg := syncclient.DefaultConfig()
	cfg.RemoteRoots = []string{root}
	cfg.HashSampleSize = 1024
	cfg.BatchSize = 2
	cfg.MaxWorkers = 2
	cfg.Adaptive = false
	return cfg
}

func TestRunCycleUploadsEverything(t *testing.T) {
	var got capturedBatches
	client, store := newTestClient(t, got.handler())

	root := t.TempDir()
	writeTree(t, root,
		"show/episode1.mkv",
		"show/episode1.srt",
		"show/cover.jpg",
		"show/info.nfo",
		"incoming/leftover.rar",
	)

	s := NewScanner(store, client)
	cfg := scanConfig(root)

	if !s.TryStart() {
		t.Fatal("expected to claim the active slot")
	}
	defer s.Finish()

	uploaded, err := s.RunCycle(context.Background(), &cfg)
	if err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	// Phase 1 uploads all five records. Phase 2 would revisit the video,
	// but without ffprobe installed it may contribute nothing extra.
	if uploaded < 5 {
		t.Errorf("expected at least 5 uploads, got %d", uploaded)
	}

	kinds := map[string]int{}
	paths := map[string]bool{}
	for _, b := range got.snapshot() {
		for _, f := range b.Files {
			kinds[f.Kind]++
			paths[f.Path] = true
		}
	}

	if kinds["video"] < 1 || kinds["subtitle"] != 1 || kinds["image"] != 1 || kinds["xml"] != 1 || kinds["junk"] != 1 {
		t.Errorf("unexpected kind breakdown: %v", kinds)
	}
	if !paths[filepath.Join(root, "incoming/leftover.rar")] {
		t.Error("expected junk path in upload")
	}

	stats := s.Stats()
	if stats.Uploaded != uploaded {
		t.Errorf("stats uploaded=%d, want %d", stats.Uploaded, uploaded)
	}
	if stats.TotalAll != 5 {
		t.Errorf("expected pre-count of 5, got %d", stats.TotalAll)
	}
	if stats.TotalVideos != 1 {
		t.Errorf("expected 1 video in pre-count, got %d", stats.TotalVideos)
	}
	if stats.Phase != 2 || stats.PhaseName != "ffprobe" {
		t.Errorf("expected final phase ffprobe, got %d/%s", stats.Phase, stats.PhaseName)
	}

	// Cursors must be cleared after a completed cycle
	for _, phase := range []string{"hashes", "ffprobe"} {
		cursor, err := store.LoadProgress(context.Background(), root, phase)
		if err != nil {
			t.Fatalf("failed to load cursor: %v", err)
		}
		if cursor != "" {
			t.Errorf("expected cleared %s cursor, got %q", phase, cursor)
		}
	}
}

func TestScanRootResumesAfterCursor(t *testing.T) {
	var got capturedBatches
	client, store := newTestClient(t, got.handler())

	root := t.TempDir()
	writeTree(t, root, "a.mkv", "b.mkv", "c.mkv")

	// Pretend a previous pass stopped after b.mkv
	cursor := filepath.Join(root, "b.mkv")
	if err := store.SaveProgress(context.Background(), root, "hashes", cursor); err != nil {
		t.Fatalf("failed to seed cursor: %v", err)
	}

	s := NewScanner(store, client)
	cfg := scanConfig(root)

	uploaded, err := s.scanRoot(context.Background(), &cfg, root, PhaseHashes)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if uploaded != 1 {
		t.Fatalf("expected only c.mkv uploaded, got %d", uploaded)
	}

	for _, b := range got.snapshot() {
		for _, f := range b.Files {
			if f.Path != filepath.Join(root, "c.mkv") {
				t.Errorf("unexpected upload %s", f.Path)
			}
		}
	}
}

func TestTryStartGuardsConcurrentCycles(t *testing.T) {
	_, store := newTestClient(t, http.NotFoundHandler())
	s := NewScanner(store, nil)

	if !s.TryStart() {
		t.Fatal("first start should succeed")
	}
	if s.TryStart() {
		t.Error("second start must be rejected while active")
	}
	if !s.Active() {
		t.Error("expected active scanner")
	}

	s.Finish()
	if s.Active() {
		t.Error("expected inactive scanner after finish")
	}
	if !s.TryStart() {
		t.Error("start should succeed after finish")
	}
	s.Finish()
}
