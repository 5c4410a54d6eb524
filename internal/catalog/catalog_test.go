package catalog

import (
	"context"
	"path/filepath"
	"testing"

	"medialib/internal/probe"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Close(); err != nil {
			t.Errorf("Close failed: %v", err)
		}
	})
	return c
}

func TestUpsertFileIdempotent(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	id1, err := c.UpsertFile(ctx, "/m/a.mkv", 100, 1, 2, "100:1:2:3:4", ".mkv", "video")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := c.UpsertFile(ctx, "/m/a.mkv", 200, 5, 6, "200:5:6:3:4", ".mkv", "video")
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Errorf("re-upsert changed id: %d -> %d", id1, id2)
	}

	n, err := c.CountFiles(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("file count = %d, want 1", n)
	}

	rows, err := c.LibraryRows(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Size != 200 {
		t.Errorf("library rows = %+v", rows)
	}
}

func TestUpsertHashAndMetadata(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	id, err := c.UpsertFile(ctx, "/m/a.mkv", 100, 1, 2, "k", ".mkv", "video")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.UpsertHash(ctx, id, "xxhash64", 65536, "shash", "fhash"); err != nil {
		t.Fatal(err)
	}
	if err := c.UpsertMetadata(ctx, id, &probe.Metadata{
		Duration:    120.5,
		Container:   "matroska",
		VideoCodec:  "h264",
		AudioCodecs: []string{"aac", "ac3"},
		Width:       1920,
		Height:      1080,
		Bitrate:     4500000,
	}); err != nil {
		t.Fatal(err)
	}

	rows, err := c.LibraryRows(ctx, 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
	r := rows[0]
	if r.SampleHash != "shash" || r.FullHash != "fhash" {
		t.Errorf("hashes = %q/%q", r.SampleHash, r.FullHash)
	}
	if r.VideoCodec != "h264" || r.AudioCodecs != "aac,ac3" || r.Width != 1920 {
		t.Errorf("metadata = %+v", r)
	}

	// Re-upsert must replace, not duplicate.
	if err := c.UpsertHash(ctx, id, "xxhash64", 65536, "shash2", ""); err != nil {
		t.Fatal(err)
	}
	rows, _ = c.LibraryRows(ctx, 0, 0)
	if len(rows) != 1 || rows[0].SampleHash != "shash2" || rows[0].FullHash != "" {
		t.Errorf("hash re-upsert: %+v", rows)
	}
}

func TestDuplicateGrouping(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	add := func(path, sampleHash, fullHash string, size int64) {
		t.Helper()
		id, err := c.UpsertFile(ctx, path, size, 1, 1, "k", filepath.Ext(path), "video")
		if err != nil {
			t.Fatal(err)
		}
		if err := c.UpsertHash(ctx, id, "xxhash64", 65536, sampleHash, fullHash); err != nil {
			t.Fatal(err)
		}
	}

	// Exact pair by full hash.
	add("/m/a1.mkv", "s1", "full1", 100)
	add("/m/a2.mkv", "s2", "full1", 100)
	// Suspected pair by sample hash and size, no full hash.
	add("/m/b1.mkv", "s3", "", 200)
	add("/m/b2.mkv", "s3", "", 200)
	// Same sample hash but different size: not a group.
	add("/m/c1.mkv", "s4", "", 300)
	add("/m/c2.mkv", "s4", "", 301)
	// Singleton.
	add("/m/d.mkv", "s5", "full5", 400)

	dups, err := c.Duplicates(ctx, true)
	if err != nil {
		t.Fatal(err)
	}

	groups := map[string][]string{}
	reasons := map[string]string{}
	for _, d := range dups {
		groups[d.GroupKey] = append(groups[d.GroupKey], d.Path)
		reasons[d.GroupKey] = d.Reason
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d: %v", len(groups), groups)
	}
	if got := groups["F:full1"]; len(got) != 2 {
		t.Errorf("exact group members = %v", got)
	}
	if reasons["F:full1"] != "exact" {
		t.Errorf("exact group reason = %q", reasons["F:full1"])
	}
	if got := groups["S:s3:200"]; len(got) != 2 {
		t.Errorf("suspected group members = %v", got)
	}
	if reasons["S:s3:200"] != "suspected" {
		t.Errorf("suspected group reason = %q", reasons["S:s3:200"])
	}

	// Without suspected matches only the exact group remains.
	dups, err = c.Duplicates(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range dups {
		if d.GroupKey != "F:full1" {
			t.Errorf("unexpected group %q in exact-only mode", d.GroupKey)
		}
	}
	if len(dups) != 2 {
		t.Errorf("exact-only rows = %d, want 2", len(dups))
	}
}

func TestJunkLifecycle(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	row := JunkRow{Path: "/m/leftover.rar", Size: 5, MTime: 1, Ext: ".rar", Reason: "pattern: *.rar"}
	if err := c.UpsertJunk(ctx, row); err != nil {
		t.Fatal(err)
	}
	// Idempotent by path.
	row.Reason = "pattern: *.r00"
	if err := c.UpsertJunk(ctx, row); err != nil {
		t.Fatal(err)
	}

	junk, err := c.ListJunk(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(junk) != 1 || junk[0].Reason != "pattern: *.r00" {
		t.Errorf("junk = %+v", junk)
	}

	if err := c.DeleteJunk(ctx, "/m/leftover.rar"); err != nil {
		t.Fatal(err)
	}
	junk, _ = c.ListJunk(ctx)
	if len(junk) != 0 {
		t.Errorf("junk not deleted: %+v", junk)
	}
}

func TestRemoteRoots(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	if err := c.AddRemoteRoot(ctx, "/mnt/media"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddRemoteRoot(ctx, "/mnt/archive"); err != nil {
		t.Fatal(err)
	}
	// Duplicate insert is a no-op.
	if err := c.AddRemoteRoot(ctx, "/mnt/media"); err != nil {
		t.Fatal(err)
	}

	roots, err := c.RemoteRoots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(roots) != 2 || roots[0] != "/mnt/archive" || roots[1] != "/mnt/media" {
		t.Errorf("roots = %v", roots)
	}

	if err := c.RemoveRemoteRoot(ctx, "/mnt/archive"); err != nil {
		t.Fatal(err)
	}
	roots, _ = c.RemoteRoots(ctx)
	if len(roots) != 1 || roots[0] != "/mnt/media" {
		t.Errorf("roots after remove = %v", roots)
	}
}

func TestUnknownExtensions(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	c.UpsertFile(ctx, "/m/a.zzz", 1, 1, 1, "k", ".zzz", "unknown")
	c.UpsertFile(ctx, "/m/b.zzz", 1, 1, 1, "k", ".zzz", "unknown")
	c.UpsertFile(ctx, "/m/c.yyy", 1, 1, 1, "k", ".yyy", "unknown")
	c.UpsertFile(ctx, "/m/d.mkv", 1, 1, 1, "k", ".mkv", "video")

	exts, err := c.UnknownExtensions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(exts) != 2 {
		t.Fatalf("unknown extensions = %+v", exts)
	}
	if exts[0].Ext != ".zzz" || exts[0].Count != 2 || exts[0].SamplePath != "/m/a.zzz" {
		t.Errorf("first = %+v", exts[0])
	}
	if exts[1].Ext != ".yyy" || exts[1].Count != 1 {
		t.Errorf("second = %+v", exts[1])
	}

	// Promoting the extension clears it from the report.
	if err := c.SetCategoryForExtension(ctx, ".zzz", "other"); err != nil {
		t.Fatal(err)
	}
	exts, _ = c.UnknownExtensions(ctx)
	if len(exts) != 1 || exts[0].Ext != ".yyy" {
		t.Errorf("after promotion = %+v", exts)
	}
}

func TestDeleteFileCascades(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	id, _ := c.UpsertFile(ctx, "/m/a.mkv", 1, 1, 1, "k", ".mkv", "video")
	c.UpsertHash(ctx, id, "xxhash64", 65536, "s", "f")

	if err := c.DeleteFile(ctx, "/m/a.mkv"); err != nil {
		t.Fatal(err)
	}

	dups, err := c.Duplicates(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(dups) != 0 {
		t.Errorf("orphaned hash rows surfaced: %+v", dups)
	}
	n, _ := c.CountFiles(ctx)
	if n != 0 {
		t.Errorf("file count = %d", n)
	}
}

func TestGetStats(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	c.UpsertFile(ctx, "/m/a.mkv", 1, 1, 1, "k", ".mkv", "video")
	c.UpsertFile(ctx, "/m/b.mkv", 1, 1, 1, "k", ".mkv", "video")
	c.UpsertFile(ctx, "/m/c.jpg", 1, 1, 1, "k", ".jpg", "image")
	c.UpsertJunk(ctx, JunkRow{Path: "/m/x.rar"})
	c.AddRemoteRoot(ctx, "/mnt/media")

	stats := c.GetStats()
	if stats.FilesByKind["video"] != 2 || stats.FilesByKind["image"] != 1 {
		t.Errorf("files by kind = %v", stats.FilesByKind)
	}
	if stats.JunkCandidates != 1 || stats.RemoteRoots != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestLogOperationAndVacuum(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	if err := c.LogOperation(ctx, "ingest_batch", "", "", `{"items":3}`, true); err != nil {
		t.Fatal(err)
	}
	if err := c.Vacuum(ctx); err != nil {
		t.Fatal(err)
	}
}
