package stream

import (
	"testing"
	"time"
)

func TestBackoff_Progression(t *testing.T) {
	cases := []struct {
		retry int
		want  time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 32s capped
		{10, 30 * time.Second},
		{63, 30 * time.Second}, // Shift overflow guard
		{-1, 1 * time.Second},
	}

	for _, tc := range cases {
		if got := Backoff(tc.retry); got != tc.want {
			t.Errorf("Backoff(%d) = %v, want %v", tc.retry, got, tc.want)
		}
	}
}
