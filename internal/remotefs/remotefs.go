// Package remotefs wraps stat and open with retry logic for the transient
// stale file handle errors that NFS and SMB mounted scan roots produce when
// the export changes underneath an open handle.
package remotefs

import (
	"errors"
	"os"
	"syscall"
	"time"

	"medialib/internal/logging"
	"medialib/internal/metrics"
)

// RetryConfig controls retry behavior for operations on remote roots.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig returns defaults tuned for NFS mounts: a few quick
// retries with exponential backoff, bounded well under a second so a dead
// mount fails fast instead of stalling a scan worker.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 50 * time.Millisecond,
		MaxBackoff:     500 * time.Millisecond,
	}
}

// isStale reports whether err is an NFS stale file handle error (ESTALE).
func isStale(err error) bool {
	if err == nil {
		return false
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.ESTALE
	}
	return false
}

// Stat performs os.Stat with retries on stale file handle errors. Any other
// error returns immediately.
func Stat(path string, config RetryConfig) (os.FileInfo, error) {
	var info os.FileInfo
	err := withRetry("stat", path, config, func() error {
		var statErr error
		info, statErr = os.Stat(path)
		return statErr
	})
	return info, err
}

// Open performs os.Open with retries on stale file handle errors. Any other
// error returns immediately.
func Open(path string, config RetryConfig) (*os.File, error) {
	var f *os.File
	err := withRetry("open", path, config, func() error {
		var openErr error
		f, openErr = os.Open(path)
		return openErr
	})
	return f, err
}

func withRetry(op, path string, config RetryConfig, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := fn()
		if err == nil {
			if attempt > 0 {
				logging.Info("Remote %s succeeded on retry %d for %s", op, attempt, path)
				metrics.RemoteFSRetrySuccess.WithLabelValues(op).Inc()
			}
			return nil
		}

		lastErr = err
		if !isStale(err) {
			return err
		}
		metrics.RemoteFSStaleErrors.WithLabelValues(op).Inc()

		if attempt < config.MaxRetries {
			logging.Debug("Remote %s stale file handle for %s, retrying in %v (attempt %d/%d)",
				op, path, backoff, attempt+1, config.MaxRetries)
			time.Sleep(backoff)

			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}
	}

	logging.Warn("Remote %s failed after %d retries for %s: %v", op, config.MaxRetries, path, lastErr)
	metrics.RemoteFSRetryFailures.WithLabelValues(op).Inc()
	return lastErr
}
