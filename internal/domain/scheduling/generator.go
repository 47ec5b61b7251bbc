package scheduling

// The slot expansion here is pure arithmetic on minutes-since-midnight; the
// service layer owns persistence and horizon iteration.

const (
	DefaultDaysAhead   = 30
	DefaultSlotsPerDay = 10

	// minSlotMinutes floors the derived slot length so a short working day
	// with a high slot cap never produces sub-15-minute slots.
	minSlotMinutes = 15
)

// GenerationParams control a horizon generation run.
type GenerationParams struct {
	DaysAhead     int  `json:"days_ahead"`
	SlotsPerDay   int  `json:"slots_per_day"`
	ClearExisting bool `json:"clear_existing"`
}

func (p *GenerationParams) applyDefaults() {
	if p.DaysAhead <= 0 {
		p.DaysAhead = DefaultDaysAhead
	}
	if p.SlotsPerDay <= 0 {
		p.SlotsPerDay = DefaultSlotsPerDay
	}
}

// window is a half-open [Start, End) interval in minutes since midnight.
type window struct {
	Start int
	End   int
}

// expandDay walks one day's availability and returns at most slotsPerDay
// non-overlapping windows that avoid the break interval.
//
// The slot length is derived from the working minutes and the cap rather
// than the template's slotDuration field, so the day is spread across
// exactly up to slotsPerDay slots with a 15-minute floor.
func expandDay(day DayAvailability, slotsPerDay int) ([]window, error) {
	if !day.Available {
		return nil, nil
	}

	start, err := parseClock(day.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseClock(day.EndTime)
	if err != nil {
		return nil, err
	}
	breakStart, err := parseClock(day.BreakStart)
	if err != nil {
		return nil, err
	}
	breakEnd, err := parseClock(day.BreakEnd)
	if err != nil {
		return nil, err
	}

	breakMinutes := breakEnd - breakStart
	if breakMinutes < 0 {
		breakMinutes = 0
	}
	workMinutes := (end - start) - breakMinutes
	if workMinutes <= 0 {
		return nil, nil
	}

	duration := workMinutes / slotsPerDay
	if duration < minSlotMinutes {
		duration = minSlotMinutes
	}

	hasBreak := breakEnd > breakStart

	var out []window
	cursor := start
	for cursor < end && len(out) < slotsPerDay {
		// Cursor landed inside the break: resume after it.
		if hasBreak && cursor >= breakStart && cursor < breakEnd {
			cursor = breakEnd
			continue
		}
		candidateEnd := cursor + duration
		if candidateEnd > end {
			candidateEnd = end
		}
		// A slot that would straddle the break is skipped to breakEnd
		// rather than truncated.
		if hasBreak && cursor < breakEnd && candidateEnd > breakStart {
			cursor = breakEnd
			continue
		}
		out = append(out, window{Start: cursor, End: candidateEnd})
		cursor = candidateEnd
	}
	return out, nil
}
