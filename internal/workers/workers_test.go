package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	cpus := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		override   string
		want       int
	}{
		{"cpu bound", 1.0, 0, "", cpus},
		{"io bound", 2.0, 0, "", cpus * 2},
		{"limit applies", 2.0, 1, "", 1},
		{"at least one worker", 0.1, 0, "", maxInt(1, cpus/10)},
		{"env override", 1.0, 0, "3", 3},
		{"env override capped by limit", 1.0, 2, "10", 2},
		{"invalid override ignored", 1.0, 0, "zero", cpus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.override != "" {
				t.Setenv("PIPELINE_WORKERS", tt.override)
			}
			if got := Count(tt.multiplier, tt.limit); got != tt.want {
				t.Errorf("Count(%v, %d) = %d, want %d", tt.multiplier, tt.limit, got, tt.want)
			}
		})
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
