package walker

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"medialib/internal/mediatypes"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func collect(t *testing.T, root string, opts Options) []Entry {
	t.Helper()
	var got []Entry
	err := Walk(context.Background(), root, opts, func(e Entry) error {
		got = append(got, e)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestWalkClassifies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "movie.mkv"))
	writeFile(t, filepath.Join(dir, "cover.jpg"))
	writeFile(t, filepath.Join(dir, "movie.srt"))
	writeFile(t, filepath.Join(dir, "movie.nfo"))
	writeFile(t, filepath.Join(dir, "leftover.rar"))
	writeFile(t, filepath.Join(dir, "weird.zzz"))

	kinds := map[string]mediatypes.Kind{}
	for _, e := range collect(t, dir, Options{}) {
		kinds[filepath.Base(e.Path)] = e.Kind
	}

	want := map[string]mediatypes.Kind{
		"movie.mkv":    mediatypes.KindVideo,
		"cover.jpg":    mediatypes.KindImage,
		"movie.srt":    mediatypes.KindSubtitle,
		"movie.nfo":    mediatypes.KindXML,
		"leftover.rar": mediatypes.KindJunk,
		"weird.zzz":    mediatypes.KindUnknown,
	}
	for name, k := range want {
		if kinds[name] != k {
			t.Errorf("%s classified as %q, want %q", name, kinds[name], k)
		}
	}
}

func TestWalkDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "b", "two.mkv"))
	writeFile(t, filepath.Join(dir, "b", "one.mkv"))
	writeFile(t, filepath.Join(dir, "a", "zed.mkv"))
	writeFile(t, filepath.Join(dir, "c.mkv"))

	first := collect(t, dir, Options{})
	second := collect(t, dir, Options{})

	if len(first) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(first))
	}
	for i := range first {
		if first[i].Path != second[i].Path {
			t.Fatalf("walk order not stable at %d: %s vs %s", i, first[i].Path, second[i].Path)
		}
	}

	paths := make([]string, len(first))
	for i, e := range first {
		paths[i] = e.Path
	}
	if !sort.StringsAreSorted(paths) {
		t.Errorf("walk order not sorted: %v", paths)
	}
}

func TestWalkSkipsHidden(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, ".hidden.mkv"))
	writeFile(t, filepath.Join(dir, ".stash", "inner.mkv"))
	writeFile(t, filepath.Join(dir, "shown.mkv"))

	got := collect(t, dir, Options{})
	if len(got) != 1 || filepath.Base(got[0].Path) != "shown.mkv" {
		t.Errorf("expected only shown.mkv, got %v", got)
	}
}

func TestWalkSymlinks(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "real", "file.mkv"))
	if err := os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "link")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got := collect(t, dir, Options{})
	if len(got) != 1 {
		t.Errorf("without follow, expected 1 entry, got %d", len(got))
	}

	got = collect(t, dir, Options{FollowSymlinks: true})
	if len(got) != 1 {
		t.Errorf("with follow and cycle guard, expected 1 entry, got %d", len(got))
	}
}

func TestWalkCancel(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.mkv"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Walk(ctx, dir, Options{}, func(Entry) error { return nil })
	if err == nil {
		t.Error("expected context error")
	}
}
