package cache

import (
	"context"
	"path/filepath"
	"testing"

	"medialib/internal/hashing"
	"medialib/internal/identity"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "agent_cache.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return s
}

func TestGetMissing(t *testing.T) {
	s := openTestStore(t)
	rec, err := s.Get(context.Background(), "/nope.mkv")
	if err != nil {
		t.Fatal(err)
	}
	if rec != nil {
		t.Errorf("expected nil record, got %+v", rec)
	}
}

func TestUpsertSeenAndGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := identity.Key("100:1:2:3:4")

	if err := s.UpsertSeen(ctx, "/m/a.mkv", key, 100, 1.5, 2.5); err != nil {
		t.Fatal(err)
	}

	rec, err := s.Get(ctx, "/m/a.mkv")
	if err != nil {
		t.Fatal(err)
	}
	if rec == nil {
		t.Fatal("record missing after upsert")
	}
	if rec.IdentityKey != key || rec.Size != 100 || rec.Hashed || rec.Probed {
		t.Errorf("unexpected record %+v", rec)
	}
	if rec.LastSeen == 0 {
		t.Error("last_seen not set")
	}
}

func TestHashCacheValidity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := identity.Key("100:1:2:3:4")

	if err := s.UpsertSeen(ctx, "/m/a.mkv", key, 100, 1, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveHashes(ctx, "/m/a.mkv", hashing.AlgoXXHash64, 65536, "abc", "def"); err != nil {
		t.Fatal(err)
	}

	rec, err := s.Get(ctx, "/m/a.mkv")
	if err != nil {
		t.Fatal(err)
	}

	cached, ok := HashCacheValid(rec, key, hashing.AlgoXXHash64, 65536)
	if !ok {
		t.Fatal("expected valid hash cache")
	}
	if cached.SampleHash != "abc" || cached.FullHash != "def" {
		t.Errorf("cached hashes = %+v", cached)
	}

	if _, ok := HashCacheValid(rec, key, hashing.AlgoSHA256, 65536); ok {
		t.Error("algorithm mismatch should invalidate")
	}
	if _, ok := HashCacheValid(rec, key, hashing.AlgoXXHash64, 1024); ok {
		t.Error("sample size mismatch should invalidate")
	}
	if _, ok := HashCacheValid(rec, identity.Key("101:1:2:3:4"), hashing.AlgoXXHash64, 65536); ok {
		t.Error("identity change should invalidate")
	}
	if _, ok := HashCacheValid(nil, key, hashing.AlgoXXHash64, 65536); ok {
		t.Error("nil record should be invalid")
	}
}

func TestHashCacheInvalidBeforeHashing(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := identity.Key("100:1:2:3:4")

	if err := s.UpsertSeen(ctx, "/m/a.mkv", key, 100, 1, 2); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Get(ctx, "/m/a.mkv")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := HashCacheValid(rec, key, hashing.AlgoXXHash64, 65536); ok {
		t.Error("unhashed record should not be a valid hash cache")
	}
}

func TestProbeCacheValidity(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := identity.Key("100:1:2:3:4")

	if err := s.UpsertSeen(ctx, "/m/a.mkv", key, 100, 1, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkProbed(ctx, "/m/a.mkv"); err != nil {
		t.Fatal(err)
	}

	rec, err := s.Get(ctx, "/m/a.mkv")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Probed {
		t.Error("probed flag not set")
	}
	if !ProbeCacheValid(rec, key) {
		t.Error("expected valid probe cache")
	}
	if ProbeCacheValid(rec, identity.Key("200:1:2:3:4")) {
		t.Error("identity change should invalidate probe cache")
	}
	if ProbeCacheValid(nil, key) {
		t.Error("nil record should be invalid")
	}
}

func TestUpsertSeenPreservesHashes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := identity.Key("100:1:2:3:4")

	if err := s.UpsertSeen(ctx, "/m/a.mkv", key, 100, 1, 2); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveHashes(ctx, "/m/a.mkv", hashing.AlgoXXHash64, 65536, "abc", ""); err != nil {
		t.Fatal(err)
	}
	// A later observation with the same identity must not drop hashes.
	if err := s.UpsertSeen(ctx, "/m/a.mkv", key, 100, 1, 2); err != nil {
		t.Fatal(err)
	}

	rec, err := s.Get(ctx, "/m/a.mkv")
	if err != nil {
		t.Fatal(err)
	}
	if !rec.Hashed || rec.SampleHash != "abc" {
		t.Errorf("hashes lost on re-observation: %+v", rec)
	}
	if rec.FullHash != "" {
		t.Errorf("empty full hash persisted as %q", rec.FullHash)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.EnqueueOutbox(ctx, "b-1", `{"files":[]}`); err != nil {
		t.Fatal(err)
	}
	if err := s.EnqueueOutbox(ctx, "b-2", `{"files":[1]}`); err != nil {
		t.Fatal(err)
	}

	entries, err := s.ListOutbox(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].BatchID != "b-1" || entries[1].BatchID != "b-2" {
		t.Errorf("outbox order wrong: %+v", entries)
	}

	if err := s.DeleteOutbox(ctx, entries[0].ID); err != nil {
		t.Fatal(err)
	}
	entries, err = s.ListOutbox(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].BatchID != "b-2" {
		t.Errorf("expected only b-2 to remain, got %+v", entries)
	}
}

func TestProgressLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	last, err := s.LoadProgress(ctx, "/media", "hashes")
	if err != nil {
		t.Fatal(err)
	}
	if last != "" {
		t.Errorf("expected empty cursor, got %q", last)
	}

	if err := s.SaveProgress(ctx, "/media", "hashes", "/media/b.mkv"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveProgress(ctx, "/media", "hashes", "/media/d.mkv"); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveProgress(ctx, "/media", "ffprobe", "/media/a.mkv"); err != nil {
		t.Fatal(err)
	}

	last, err = s.LoadProgress(ctx, "/media", "hashes")
	if err != nil {
		t.Fatal(err)
	}
	if last != "/media/d.mkv" {
		t.Errorf("cursor = %q, want /media/d.mkv", last)
	}

	if err := s.ClearProgress(ctx, "/media", "hashes"); err != nil {
		t.Fatal(err)
	}
	last, err = s.LoadProgress(ctx, "/media", "hashes")
	if err != nil {
		t.Fatal(err)
	}
	if last != "" {
		t.Errorf("cursor survived clear: %q", last)
	}

	// Other phase untouched.
	last, err = s.LoadProgress(ctx, "/media", "ffprobe")
	if err != nil {
		t.Fatal(err)
	}
	if last != "/media/a.mkv" {
		t.Errorf("ffprobe cursor = %q", last)
	}
}

func TestInfoAndClear(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.UpsertSeen(ctx, "/m/a.mkv", identity.Key("1:2:3:4:5"), 1, 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := s.EnqueueOutbox(ctx, "b-1", "{}"); err != nil {
		t.Fatal(err)
	}

	info, err := s.Info(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !info.Exists || info.IndexRows != 1 || info.OutboxRows != 1 {
		t.Errorf("info = %+v", info)
	}
	if info.LastSeen == nil {
		t.Error("last_seen missing from info")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	info, err = s.Info(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if info.IndexRows != 0 || info.OutboxRows != 0 || info.ProgressRows != 0 {
		t.Errorf("clear left rows: %+v", info)
	}
}

func TestCompact(t *testing.T) {
	s := openTestStore(t)
	if err := s.Compact(context.Background()); err != nil {
		t.Fatal(err)
	}
}
