package completion

import (
	"testing"
	"time"
)

// timeoutConfidence must always be zero: a timeout is inferred purely from
// a pilot's absence and carries no positive evidence the flight actually
// ended at that moment, unlike a directly observed landing.
func TestTimeoutConfidenceIsAlwaysZero(t *testing.T) {
	cases := []struct {
		name      string
		absence   time.Duration
		tComplete time.Duration
	}{
		{"exactly at threshold", time.Hour, time.Hour},
		{"well past threshold", 2 * time.Hour, time.Hour},
		{"just past threshold", time.Hour + time.Second, time.Hour},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := timeoutConfidence(c.absence, c.tComplete); got != 0 {
				t.Fatalf("got %f, want 0", got)
			}
		})
	}
}
