package models

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"09:00", 540, false},
		{"00:00", 0, false},
		{"24:00", 1440, false},
		{"17:30", 1050, false},
		{"25:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}

	for _, tc := range tests {
		got, err := ParseClock(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseClock(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestTimeSlotMinutes(t *testing.T) {
	if _, _, err := (TimeSlot{Start: "10:00", End: "09:00"}).Minutes(); err == nil {
		t.Fatalf("expected inverted slot to fail")
	}
	if _, _, err := (TimeSlot{Start: "10:00", End: "10:00"}).Minutes(); err == nil {
		t.Fatalf("expected empty slot to fail")
	}
	start, end, err := (TimeSlot{Start: "09:00", End: "17:00"}).Minutes()
	if err != nil {
		t.Fatalf("minutes: %v", err)
	}
	if start != 540 || end != 1020 {
		t.Fatalf("got %d-%d, want 540-1020", start, end)
	}
}

func TestDefaultWeeklyRoster(t *testing.T) {
	r := DefaultWeeklyRoster()

	for d := time.Monday; d <= time.Friday; d++ {
		slots := r.SlotsFor(d)
		if len(slots) != 1 {
			t.Fatalf("%s: expected one slot, got %d", d, len(slots))
		}
		if slots[0].Start != "09:00" || slots[0].End != "17:00" {
			t.Fatalf("%s: unexpected slot %v", d, slots[0])
		}
	}
	if len(r.SlotsFor(time.Saturday)) != 0 || len(r.SlotsFor(time.Sunday)) != 0 {
		t.Fatalf("expected empty weekend")
	}
}

func TestWeeklyRosterValidate(t *testing.T) {
	valid := WeeklyRoster{
		time.Monday: {
			{Start: "09:00", End: "12:00"},
			{Start: "13:00", End: "17:00"},
		},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid roster, got %v", err)
	}

	// Back-to-back slots are allowed.
	touching := WeeklyRoster{
		time.Monday: {
			{Start: "09:00", End: "12:00"},
			{Start: "12:00", End: "17:00"},
		},
	}
	if err := touching.Validate(); err != nil {
		t.Fatalf("expected touching slots to validate, got %v", err)
	}

	overlapping := WeeklyRoster{
		time.Monday: {
			{Start: "09:00", End: "12:00"},
			{Start: "11:00", End: "17:00"},
		},
	}
	if err := overlapping.Validate(); err == nil {
		t.Fatalf("expected overlapping slots to fail")
	}

	badClock := WeeklyRoster{
		time.Tuesday: {{Start: "9am", End: "17:00"}},
	}
	if err := badClock.Validate(); err == nil {
		t.Fatalf("expected malformed clock to fail")
	}
}

func TestSlotsForNilRoster(t *testing.T) {
	var r WeeklyRoster
	if got := r.SlotsFor(time.Monday); got != nil {
		t.Fatalf("expected nil slots from nil roster, got %v", got)
	}
}
