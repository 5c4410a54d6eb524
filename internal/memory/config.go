// Package memory configures the Go soft memory limit from container
// memory limits so a long running process stays inside its cgroup
// instead of getting OOM killed under load.
package memory

import (
	"math"
	"os"
	"runtime/debug"
	"strconv"

	"medialib/internal/logging"
)

// DefaultMemoryRatio is the share of the container limit given to the Go
// heap. The remainder is reserved for ffprobe children, SQLite page cache,
// and goroutine stacks.
const DefaultMemoryRatio = 0.85

// ConfigResult reports what ConfigureFromEnv decided.
type ConfigResult struct {
	// Configured indicates whether a memory limit was applied
	Configured bool

	// Source is "GOMEMLIMIT", "MEMORY_LIMIT", or "none"
	Source string

	// ContainerLimit is the container memory limit in bytes (0 if not set)
	ContainerLimit int64

	// GoMemLimit is the applied limit in bytes (0 if not set)
	GoMemLimit int64

	// Ratio is the ratio applied to the container limit (0 if not applicable)
	Ratio float64
}

// ConfigureFromEnv sets the Go soft memory limit. Call early in main()
// before significant allocations.
//
// Environment variables:
//   - GOMEMLIMIT: if set, the runtime already honors it and nothing is changed
//   - MEMORY_LIMIT: container memory limit in bytes (Kubernetes Downward API)
//   - MEMORY_RATIO: share of MEMORY_LIMIT given to the heap (default 0.85)
func ConfigureFromEnv() ConfigResult {
	result := ConfigResult{}

	if goMemLimitEnv := os.Getenv("GOMEMLIMIT"); goMemLimitEnv != "" {
		if limit := debug.SetMemoryLimit(-1); limit > 0 && limit < math.MaxInt64 {
			result.Configured = true
			result.Source = "GOMEMLIMIT"
			result.GoMemLimit = limit
		}
		logging.Info("GOMEMLIMIT set via environment: %s", goMemLimitEnv)
		return result
	}

	memLimitStr := os.Getenv("MEMORY_LIMIT")
	if memLimitStr == "" {
		logging.Debug("MEMORY_LIMIT not set, memory limit will not be configured automatically")
		result.Source = "none"
		return result
	}

	memLimit, err := strconv.ParseInt(memLimitStr, 10, 64)
	if err != nil || memLimit <= 0 {
		logging.Warn("Failed to parse MEMORY_LIMIT %q: %v", memLimitStr, err)
		result.Source = "none"
		return result
	}

	result.ContainerLimit = memLimit

	ratio := DefaultMemoryRatio
	if ratioStr := os.Getenv("MEMORY_RATIO"); ratioStr != "" {
		if parsed, err := strconv.ParseFloat(ratioStr, 64); err == nil && parsed > 0 && parsed <= 1.0 {
			ratio = parsed
		} else {
			logging.Warn("Invalid MEMORY_RATIO %q, using default %.2f", ratioStr, DefaultMemoryRatio)
		}
	}
	result.Ratio = ratio

	goMemLimit := int64(float64(memLimit) * ratio)
	debug.SetMemoryLimit(goMemLimit)

	result.Configured = true
	result.Source = "MEMORY_LIMIT"
	result.GoMemLimit = goMemLimit

	logging.Info("Configured Go memory limit: %s (%.0f%% of %s container limit)",
		formatBytes(goMemLimit), ratio*100, formatBytes(memLimit))

	return result
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return strconv.FormatInt(b, 10) + " B"
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return strconv.FormatFloat(float64(b)/float64(div), 'f', 1, 64) + " " + string("KMGTPE"[exp]) + "iB"
}
