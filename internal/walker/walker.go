// Package walker performs a deterministic, classified walk over media
// root directories.
package walker

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"medialib/internal/logging"
	"medialib/internal/mediatypes"
)

// Entry is a single classified file produced by the walk.
type Entry struct {
	Path        string
	Kind        mediatypes.Kind
	JunkPattern string
	Size        int64
}

// Options controls walk behavior.
type Options struct {
	Tables         *mediatypes.Tables
	FollowSymlinks bool
}

// Func receives each walked entry. Returning a non-nil error aborts
// the walk and propagates the error to the caller.
type Func func(e Entry) error

// Walk traverses root depth-first, visiting files in sorted name order
// within each directory. Hidden files and directories are skipped.
// Unreadable subtrees are logged and skipped rather than aborting the
// walk. Symlinked directories are only descended into when
// opts.FollowSymlinks is set, and each resolved directory is visited at
// most once to guard against link cycles.
func Walk(ctx context.Context, root string, opts Options, fn Func) error {
	tables := opts.Tables
	if tables == nil {
		tables = mediatypes.DefaultTables()
	}
	visited := make(map[string]bool)
	return walkDir(ctx, root, tables, opts.FollowSymlinks, visited, fn)
}

func walkDir(ctx context.Context, dir string, tables *mediatypes.Tables, followLinks bool, visited map[string]bool, fn Func) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	resolved, err := filepath.EvalSymlinks(dir)
	if err != nil {
		resolved = dir
	}
	if visited[resolved] {
		return nil
	}
	visited[resolved] = true

	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Warn("Error reading directory %s: %v", dir, err)
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, ent := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := ent.Name()
		if name[0] == '.' {
			continue
		}
		path := filepath.Join(dir, name)

		isDir := ent.IsDir()
		if ent.Type()&os.ModeSymlink != 0 {
			if !followLinks {
				continue
			}
			info, err := os.Stat(path)
			if err != nil {
				logging.Warn("Error resolving symlink %s: %v", path, err)
				continue
			}
			isDir = info.IsDir()
		}

		if isDir {
			if err := walkDir(ctx, path, tables, followLinks, visited, fn); err != nil {
				return err
			}
			continue
		}

		var size int64
		if info, err := ent.Info(); err == nil {
			size = info.Size()
		}
		kind, pattern := tables.Classify(name)
		if err := fn(Entry{Path: path, Kind: kind, JunkPattern: pattern, Size: size}); err != nil {
			return err
		}
	}
	return nil
}
