package version

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"0.4.1", "0.4.1", 0},
		{"0.4.1", "0.4.2", -1},
		{"0.4.2", "0.4.1", 1},
		{"0.4.1", "0.5.0", -1},
		{"1.0.0", "0.9.9", 1},
		{"v1.2.3", "1.2.3", 0},
	}
	for _, tc := range cases {
		if got := compareVersions(tc.a, tc.b); got != tc.want {
			t.Errorf("compareVersions(%q, %q) = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestInfoBeforeFirstCheck(t *testing.T) {
	c := NewChecker(zerolog.Nop())

	info := c.Info()
	if info.CurrentVersion != Version {
		t.Fatalf("CurrentVersion = %q, want %q", info.CurrentVersion, Version)
	}
	if info.UpdateAvailable {
		t.Fatal("no update should be reported before a check")
	}
}

func TestTruncateNotes(t *testing.T) {
	if got := truncateNotes("short note", 200); got != "short note" {
		t.Fatalf("got %q", got)
	}
	if got := truncateNotes("first line\nsecond line", 200); got != "first line" {
		t.Fatalf("multi-line notes should keep the first line, got %q", got)
	}
	long := truncateNotes("aaaaaaaaaaaaaaaaaaaa", 10)
	if len(long) != 10 || long[7:] != "..." {
		t.Fatalf("truncation got %q", long)
	}
}
