package scheduling

import (
	"testing"
)

func day(start, end, breakStart, breakEnd string) DayAvailability {
	return DayAvailability{
		Available:  true,
		StartTime:  start,
		EndTime:    end,
		BreakStart: breakStart,
		BreakEnd:   breakEnd,
	}
}

func windowsEqual(t *testing.T, got []window, want [][2]string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d windows, got %d: %v", len(want), len(got), got)
	}
	for i, w := range got {
		if formatClock(w.Start) != want[i][0] || formatClock(w.End) != want[i][1] {
			t.Errorf("window %d: expected %s-%s, got %s-%s",
				i, want[i][0], want[i][1], formatClock(w.Start), formatClock(w.End))
		}
	}
}

func TestExpandDay_MorningWithBreak(t *testing.T) {
	// 180 work minutes minus a 30 minute break across 5 slots gives
	// 30-minute slots that skip the break entirely.
	windows, err := expandDay(day("09:00", "12:00", "10:00", "10:30"), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	windowsEqual(t, windows, [][2]string{
		{"09:00", "09:30"},
		{"09:30", "10:00"},
		{"10:30", "11:00"},
		{"11:00", "11:30"},
		{"11:30", "12:00"},
	})
}

func TestExpandDay_NoSlotTouchesBreak(t *testing.T) {
	windows, err := expandDay(day("09:00", "17:00", "12:00", "13:00"), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	breakStart, _ := parseClock("12:00")
	breakEnd, _ := parseClock("13:00")
	for _, w := range windows {
		if w.Start < breakEnd && w.End > breakStart {
			t.Errorf("window %s-%s intersects the break",
				formatClock(w.Start), formatClock(w.End))
		}
	}
}

func TestExpandDay_CapRespected(t *testing.T) {
	windows, err := expandDay(day("08:00", "20:00", "12:00", "13:00"), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) > 4 {
		t.Errorf("expected at most 4 windows, got %d", len(windows))
	}
}

func TestExpandDay_FifteenMinuteFloor(t *testing.T) {
	// One working hour over 10 slots would be 6-minute slots; the floor
	// forces 15 minutes, yielding 4 slots.
	windows, err := expandDay(day("09:00", "10:00", "12:00", "12:00"), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	windowsEqual(t, windows, [][2]string{
		{"09:00", "09:15"},
		{"09:15", "09:30"},
		{"09:30", "09:45"},
		{"09:45", "10:00"},
	})
}

func TestExpandDay_Unavailable(t *testing.T) {
	windows, err := expandDay(DayAvailability{Available: false}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) != 0 {
		t.Errorf("expected no windows for an unavailable day, got %d", len(windows))
	}
}

func TestExpandDay_BreakConsumesDay(t *testing.T) {
	windows, err := expandDay(day("09:00", "10:00", "09:00", "10:00"), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) != 0 {
		t.Errorf("expected no windows when the break covers the whole day, got %d", len(windows))
	}
}

func TestExpandDay_InvertedBreakTreatedAsEmpty(t *testing.T) {
	windows, err := expandDay(day("09:00", "11:00", "10:30", "10:00"), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// 120 minutes over 4 slots, no break applied.
	windowsEqual(t, windows, [][2]string{
		{"09:00", "09:30"},
		{"09:30", "10:00"},
		{"10:00", "10:30"},
		{"10:30", "11:00"},
	})
}

func TestExpandDay_LastSlotClampedToEnd(t *testing.T) {
	// 60 working minutes over 4 slots gives 15-minute slots; the final
	// slot is clamped at the end of the day.
	windows, err := expandDay(day("09:00", "10:10", "09:30", "09:40"), 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(windows) == 0 {
		t.Fatal("expected windows")
	}
	last := windows[len(windows)-1]
	if formatClock(last.End) != "10:10" {
		t.Errorf("expected last window to end at 10:10, got %s", formatClock(last.End))
	}
	for i := 1; i < len(windows); i++ {
		if windows[i].Start < windows[i-1].End {
			t.Errorf("windows %d and %d overlap", i-1, i)
		}
	}
}

func TestExpandDay_BadTimeString(t *testing.T) {
	_, err := expandDay(day("nine", "12:00", "10:00", "10:30"), 5)
	if err == nil {
		t.Error("expected error for malformed start time")
	}
}
