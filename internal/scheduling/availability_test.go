package scheduling

import (
	"testing"
	"time"

	"github.com/fieldworks/fixdesk/internal/models"
)

func defaultTech() *models.Technician {
	return &models.Technician{
		ID:           "tech-1",
		AccountID:    "acct-1",
		Name:         "Sam",
		Active:       true,
		WeeklyRoster: models.DefaultWeeklyRoster(),
	}
}

func TestBlockedIntervalsAlwaysOpen(t *testing.T) {
	tech := defaultTech()
	tech.TimeOff = []models.TimeOffEntry{
		{ID: "off-1", Start: monday(12, 0), End: monday(14, 0)},
	}

	ev := NewEvaluator(Flags{AlwaysOpen: true})
	blocked := ev.BlockedIntervals(tech, monday(0, 0), monday(0, 0).AddDate(0, 0, 1))

	if len(blocked) != 1 {
		t.Fatalf("expected only the time-off interval, got %d intervals", len(blocked))
	}
	if !blocked[0].Start.Equal(monday(12, 0)) || !blocked[0].End.Equal(monday(14, 0)) {
		t.Fatalf("unexpected interval %v", blocked[0])
	}
}

func TestBlockedIntervalsRosterGaps(t *testing.T) {
	ev := NewEvaluator(Flags{})
	blocked := ev.BlockedIntervals(defaultTech(), monday(0, 0), monday(0, 0).AddDate(0, 0, 1))

	// Default weekday roster leaves two gaps: midnight to 09:00 and
	// 17:00 to midnight.
	if len(blocked) != 2 {
		t.Fatalf("expected 2 blocked intervals, got %d: %v", len(blocked), blocked)
	}
	if !blocked[0].Start.Equal(monday(0, 0)) || !blocked[0].End.Equal(monday(9, 0)) {
		t.Fatalf("unexpected morning gap %v", blocked[0])
	}
	if !blocked[1].Start.Equal(monday(17, 0)) || !blocked[1].End.Equal(monday(0, 0).AddDate(0, 0, 1)) {
		t.Fatalf("unexpected evening gap %v", blocked[1])
	}
}

func TestBlockedIntervalsWeekendFullyBlocked(t *testing.T) {
	sunday := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

	ev := NewEvaluator(Flags{})
	blocked := ev.BlockedIntervals(defaultTech(), sunday, sunday.AddDate(0, 0, 1))

	if len(blocked) != 1 {
		t.Fatalf("expected one full-day interval, got %d", len(blocked))
	}
	if !blocked[0].Start.Equal(sunday) || !blocked[0].End.Equal(sunday.AddDate(0, 0, 1)) {
		t.Fatalf("unexpected interval %v", blocked[0])
	}
}

func TestBlockedIntervalsClipsToWindow(t *testing.T) {
	tech := defaultTech()
	tech.TimeOff = []models.TimeOffEntry{
		{ID: "off-1", Start: monday(8, 0), End: monday(12, 0)},
	}

	ev := NewEvaluator(Flags{AlwaysOpen: true})
	blocked := ev.BlockedIntervals(tech, monday(10, 0), monday(11, 0))

	if len(blocked) != 1 {
		t.Fatalf("expected 1 interval, got %d", len(blocked))
	}
	if !blocked[0].Start.Equal(monday(10, 0)) || !blocked[0].End.Equal(monday(11, 0)) {
		t.Fatalf("expected interval clipped to window, got %v", blocked[0])
	}
}

func TestBlockedIntervalsEmptyWindow(t *testing.T) {
	ev := NewEvaluator(Flags{})
	if got := ev.BlockedIntervals(defaultTech(), monday(10, 0), monday(10, 0)); got != nil {
		t.Fatalf("expected nil for zero-length window, got %v", got)
	}
	if got := ev.BlockedIntervals(nil, monday(10, 0), monday(11, 0)); got != nil {
		t.Fatalf("expected nil for nil technician, got %v", got)
	}
}

func TestIsOpen(t *testing.T) {
	tech := defaultTech()
	tech.TimeOff = []models.TimeOffEntry{
		{ID: "off-1", Start: monday(12, 0), End: monday(14, 0)},
	}

	tests := []struct {
		name  string
		flags Flags
		at    time.Time
		want  bool
	}{
		{"working hours", Flags{}, monday(10, 0), true},
		{"slot start inclusive", Flags{}, monday(9, 0), true},
		{"slot end exclusive", Flags{}, monday(17, 0), false},
		{"before hours", Flags{}, monday(8, 0), false},
		{"time off", Flags{}, monday(12, 30), false},
		{"time off end exclusive", Flags{AlwaysOpen: true}, monday(14, 0), true},
		{"after hours always open", Flags{AlwaysOpen: true}, monday(20, 0), true},
		{"time off wins over always open", Flags{AlwaysOpen: true}, monday(13, 0), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev := NewEvaluator(tc.flags)
			if got := ev.IsOpen(tech, tc.at); got != tc.want {
				t.Fatalf("IsOpen(%v) = %v, want %v", tc.at, got, tc.want)
			}
		})
	}
}

func TestIsOpenInactiveTechnician(t *testing.T) {
	tech := defaultTech()
	tech.Active = false

	ev := NewEvaluator(Flags{AlwaysOpen: true})
	if ev.IsOpen(tech, monday(10, 0)) {
		t.Fatalf("expected inactive technician to be closed")
	}
}

func TestRosterGapsSplitDay(t *testing.T) {
	roster := models.WeeklyRoster{
		time.Monday: {
			{Start: "09:00", End: "12:00"},
			{Start: "13:00", End: "17:00"},
		},
	}

	gaps := rosterGaps(roster, monday(0, 0))
	if len(gaps) != 3 {
		t.Fatalf("expected 3 gaps, got %d: %v", len(gaps), gaps)
	}
	if !gaps[1].Start.Equal(monday(12, 0)) || !gaps[1].End.Equal(monday(13, 0)) {
		t.Fatalf("expected lunch gap 12:00-13:00, got %v", gaps[1])
	}
}

func TestSlotContaining(t *testing.T) {
	roster := models.WeeklyRoster{
		time.Monday: {
			{Start: "09:00", End: "12:00"},
			{Start: "13:00", End: "17:00"},
		},
	}

	if _, ok := slotContaining(roster, monday(10, 0), monday(12, 0)); !ok {
		t.Fatalf("expected booking ending at slot end to fit")
	}
	if _, ok := slotContaining(roster, monday(11, 0), monday(14, 0)); ok {
		t.Fatalf("expected slot-spanning booking not to fit")
	}
	if _, ok := slotContaining(roster, monday(8, 0), monday(10, 0)); ok {
		t.Fatalf("expected booking starting before opening not to fit")
	}
}
