package scheduling

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/medline/medline/internal/platform/apperr"
)

// Weekdays holds the canonical weekday names, Monday first, matching
// time.Weekday.String().
var Weekdays = []string{
	"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
}

var weekdaySet = map[string]bool{
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true,
	"Friday": true, "Saturday": true, "Sunday": true,
}

const (
	DefaultBreakStart   = "12:00"
	DefaultBreakEnd     = "13:00"
	DefaultSlotDuration = 30
)

// DayAvailability describes a doctor's working window for one weekday.
// SlotDuration is kept for template round-tripping but horizon generation
// derives its own duration from the per-day slot cap (see generator.go).
type DayAvailability struct {
	Available    bool   `json:"available"`
	StartTime    string `json:"startTime,omitempty"`
	EndTime      string `json:"endTime,omitempty"`
	BreakStart   string `json:"breakStart,omitempty"`
	BreakEnd     string `json:"breakEnd,omitempty"`
	SlotDuration int    `json:"slotDuration,omitempty"`
}

// WeeklyAvailability maps canonical weekday names to day descriptors.
// Days absent from the map are treated as unavailable.
type WeeklyAvailability map[string]DayAvailability

// ParseWeeklyAvailability decodes a raw availability document. The document
// may arrive double-encoded (a JSON string containing JSON); both forms are
// accepted. Unknown weekday keys are dropped, days with available=true must
// carry start and end times, and break times default to the lunch hour.
func ParseWeeklyAvailability(raw json.RawMessage) (WeeklyAvailability, error) {
	if len(raw) == 0 {
		return WeeklyAvailability{}, nil
	}

	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return WeeklyAvailability{}, nil
	}

	// Tolerate a JSON-encoded string wrapping the actual object.
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, apperr.Wrap(apperr.Validation, err, "availability must be a JSON object")
		}
		raw = json.RawMessage(inner)
	}

	var doc map[string]DayAvailability
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, apperr.Wrap(apperr.Validation, err, "availability must be a JSON object")
	}

	out := WeeklyAvailability{}
	for day, entry := range doc {
		if !weekdaySet[day] {
			continue
		}
		if !entry.Available {
			out[day] = DayAvailability{Available: false}
			continue
		}
		if entry.StartTime == "" || entry.EndTime == "" {
			return nil, apperr.New(apperr.Validation, "%s: startTime and endTime are required when available", day)
		}
		start, err := parseClock(entry.StartTime)
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, err, fmt.Sprintf("%s: invalid startTime", day))
		}
		end, err := parseClock(entry.EndTime)
		if err != nil {
			return nil, apperr.Wrap(apperr.Validation, err, fmt.Sprintf("%s: invalid endTime", day))
		}
		if start >= end {
			return nil, apperr.New(apperr.Validation, "%s: startTime must be before endTime", day)
		}
		if entry.BreakStart == "" {
			entry.BreakStart = DefaultBreakStart
		}
		if entry.BreakEnd == "" {
			entry.BreakEnd = DefaultBreakEnd
		}
		if _, err := parseClock(entry.BreakStart); err != nil {
			return nil, apperr.Wrap(apperr.Validation, err, fmt.Sprintf("%s: invalid breakStart", day))
		}
		if _, err := parseClock(entry.BreakEnd); err != nil {
			return nil, apperr.Wrap(apperr.Validation, err, fmt.Sprintf("%s: invalid breakEnd", day))
		}
		if entry.SlotDuration <= 0 {
			entry.SlotDuration = DefaultSlotDuration
		}
		out[day] = entry
	}
	return out, nil
}

// Day returns the descriptor for a weekday name. Missing days come back as
// unavailable.
func (w WeeklyAvailability) Day(name string) DayAvailability {
	if d, ok := w[name]; ok {
		return d
	}
	return DayAvailability{Available: false}
}

// IsEmpty reports whether the template has no available day at all.
func (w WeeklyAvailability) IsEmpty() bool {
	for _, d := range w {
		if d.Available {
			return false
		}
	}
	return true
}

// MarshalJSON emits days in canonical weekday order for stable responses.
func (w WeeklyAvailability) MarshalJSON() ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return weekdayIndex(keys[i]) < weekdayIndex(keys[j]) })
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		day, err := json.Marshal(w[k])
		if err != nil {
			return nil, err
		}
		b.WriteString(strconv.Quote(k))
		b.WriteByte(':')
		b.Write(day)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

func weekdayIndex(name string) int {
	for i, d := range Weekdays {
		if d == name {
			return i
		}
	}
	return len(Weekdays)
}

// parseClock converts an "HH:MM" (or "HH:MM:SS") wall-clock string to
// minutes since midnight.
func parseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

// formatClock renders minutes since midnight as zero-padded "HH:MM", so
// lexicographic order matches chronological order.
func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
