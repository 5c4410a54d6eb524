package remotefs

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"
)

func fastConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     4 * time.Millisecond,
	}
}

func TestStatSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.mkv")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}

	info, err := Stat(path, fastConfig())
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if info.Size() != 4 {
		t.Errorf("Size() = %d, want 4", info.Size())
	}
}

func TestStatMissingFileNotRetried(t *testing.T) {
	start := time.Now()
	_, err := Stat(filepath.Join(t.TempDir(), "missing"), fastConfig())
	if !os.IsNotExist(err) {
		t.Fatalf("Stat() error = %v, want not-exist", err)
	}
	// A non-stale error must return on the first attempt without backoff.
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("Stat() took %v, expected immediate return", elapsed)
	}
}

func TestOpenSuccess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.srt")
	if err := os.WriteFile(path, []byte("sub"), 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := Open(path, fastConfig())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	f.Close()
}

func TestWithRetryExhaustsOnStale(t *testing.T) {
	calls := 0
	stale := &os.PathError{Op: "stat", Path: "/mnt/media/x", Err: syscall.ESTALE}

	err := withRetry("stat", "/mnt/media/x", fastConfig(), func() error {
		calls++
		return stale
	})
	if !errors.Is(err, syscall.ESTALE) {
		t.Fatalf("withRetry() error = %v, want ESTALE", err)
	}
	if calls != 4 {
		t.Errorf("attempts = %d, want 4 (initial + 3 retries)", calls)
	}
}

func TestWithRetryRecoversFromStale(t *testing.T) {
	calls := 0
	err := withRetry("open", "/mnt/media/y", fastConfig(), func() error {
		calls++
		if calls < 3 {
			return &os.PathError{Op: "open", Path: "/mnt/media/y", Err: syscall.ESTALE}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("withRetry() error = %v", err)
	}
	if calls != 3 {
		t.Errorf("attempts = %d, want 3", calls)
	}
}

func TestIsStale(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"wrapped ESTALE", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ESTALE}, true},
		{"ENOENT", &os.PathError{Op: "stat", Path: "/x", Err: syscall.ENOENT}, false},
		{"plain error", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isStale(tt.err); got != tt.want {
				t.Errorf("isStale() = %v, want %v", got, tt.want)
			}
		})
	}
}
