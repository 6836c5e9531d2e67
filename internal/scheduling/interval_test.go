package scheduling

import (
	"testing"
	"time"
)

func at(hour int) time.Time {
	return time.Date(2026, time.March, 2, hour, 0, 0, 0, time.UTC)
}

func TestIntervalOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Interval
		want bool
	}{
		{"disjoint", Interval{at(9), at(10)}, Interval{at(11), at(12)}, false},
		{"touching ends", Interval{at(9), at(10)}, Interval{at(10), at(11)}, false},
		{"partial", Interval{at(9), at(11)}, Interval{at(10), at(12)}, true},
		{"contained", Interval{at(9), at(12)}, Interval{at(10), at(11)}, true},
		{"identical", Interval{at(9), at(10)}, Interval{at(9), at(10)}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.a.Overlaps(tc.b); got != tc.want {
				t.Fatalf("Overlaps = %v, want %v", got, tc.want)
			}
			// Overlap is symmetric.
			if got := tc.b.Overlaps(tc.a); got != tc.want {
				t.Fatalf("reverse Overlaps = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIntervalClip(t *testing.T) {
	iv := Interval{at(9), at(17)}

	clipped := iv.Clip(at(10), at(12))
	if !clipped.Start.Equal(at(10)) || !clipped.End.Equal(at(12)) {
		t.Fatalf("unexpected clip %v", clipped)
	}

	if got := iv.Clip(at(18), at(20)); !got.Empty() {
		t.Fatalf("expected empty clip outside interval, got %v", got)
	}
	if got := iv.Clip(at(10), at(10)); !got.Empty() {
		t.Fatalf("expected empty clip for zero window, got %v", got)
	}
}

func TestIntervalContains(t *testing.T) {
	iv := Interval{at(9), at(10)}

	if !iv.Contains(at(9)) {
		t.Fatalf("start should be contained")
	}
	if iv.Contains(at(10)) {
		t.Fatalf("end should be excluded")
	}
}

func TestSameLocalDay(t *testing.T) {
	if !sameLocalDay(at(0), at(23)) {
		t.Fatalf("same calendar day expected")
	}
	if sameLocalDay(at(23), at(23).Add(2*time.Hour)) {
		t.Fatalf("crossing midnight should differ")
	}
}
