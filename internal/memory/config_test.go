package memory

import (
	"runtime/debug"
	"testing"
)

// resetMemoryLimit restores the runtime default after a test mutates it.
func resetMemoryLimit(t *testing.T) {
	t.Helper()
	prev := debug.SetMemoryLimit(-1)
	t.Cleanup(func() { debug.SetMemoryLimit(prev) })
}

func TestConfigureFromEnvUnset(t *testing.T) {
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "")

	result := ConfigureFromEnv()
	if result.Configured {
		t.Error("Configured = true, want false with no limits set")
	}
	if result.Source != "none" {
		t.Errorf("Source = %q, want \"none\"", result.Source)
	}
}

func TestConfigureFromEnvMemoryLimit(t *testing.T) {
	resetMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1073741824") // 1 GiB
	t.Setenv("MEMORY_RATIO", "")

	result := ConfigureFromEnv()
	if !result.Configured {
		t.Fatal("Configured = false, want true")
	}
	if result.Source != "MEMORY_LIMIT" {
		t.Errorf("Source = %q, want \"MEMORY_LIMIT\"", result.Source)
	}
	limit := float64(1073741824)
	want := int64(limit * DefaultMemoryRatio)
	if result.GoMemLimit != want {
		t.Errorf("GoMemLimit = %d, want %d", result.GoMemLimit, want)
	}
}

func TestConfigureFromEnvCustomRatio(t *testing.T) {
	resetMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_LIMIT", "1000000000")
	t.Setenv("MEMORY_RATIO", "0.5")

	result := ConfigureFromEnv()
	if result.GoMemLimit != 500000000 {
		t.Errorf("GoMemLimit = %d, want 500000000", result.GoMemLimit)
	}
	if result.Ratio != 0.5 {
		t.Errorf("Ratio = %v, want 0.5", result.Ratio)
	}
}

func TestConfigureFromEnvBadValues(t *testing.T) {
	resetMemoryLimit(t)
	t.Setenv("GOMEMLIMIT", "")
	t.Setenv("MEMORY_RATIO", "")

	tests := []struct {
		name  string
		limit string
	}{
		{"not a number", "lots"},
		{"negative", "-5"},
		{"zero", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("MEMORY_LIMIT", tt.limit)
			result := ConfigureFromEnv()
			if result.Configured {
				t.Errorf("Configured = true for MEMORY_LIMIT=%q", tt.limit)
			}
		})
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		if got := formatBytes(tt.in); got != tt.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
