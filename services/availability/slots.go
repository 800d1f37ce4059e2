package availability

import (
	"fmt"
	"time"

	"bookline/models"
)

// ComputeInput carries everything the slot computation needs. Compute is pure:
// identical inputs always produce identical outputs.
type ComputeInput struct {
	Date           time.Time // calendar date, midnight in the tenant's location
	Now            time.Time
	DurationMin    int // service duration; 0 falls back to the granularity
	GranularityMin int
	BufferMin      int // expansion applied to both ends of each appointment
	Hours          []models.WorkingHours
	Appointments   []models.Appointment // occupying appointments touching the date
	TimeOff        []models.TimeOff
}

type interval struct {
	start time.Time
	end   time.Time
}

// Compute returns every slot start ("HH:MM", ordered) the working hours admit
// for the date, and the subset whose interval intersects a buffered
// appointment or a blackout. No working hours for the weekday means an empty
// result.
func Compute(in ComputeInput) (all, busy []string) {
	granularity := in.GranularityMin
	if granularity <= 0 {
		return nil, nil
	}
	duration := in.DurationMin
	if duration <= 0 {
		duration = granularity
	}

	step := time.Duration(granularity) * time.Minute
	length := time.Duration(duration) * time.Minute
	buffer := time.Duration(in.BufferMin) * time.Minute

	blocked := make([]interval, 0, len(in.Appointments)+len(in.TimeOff))
	for _, a := range in.Appointments {
		blocked = append(blocked, interval{start: a.Start.Add(-buffer), end: a.End.Add(buffer)})
	}
	for _, t := range in.TimeOff {
		blocked = append(blocked, interval{start: t.Start, end: t.End})
	}

	today := sameDate(in.Date, in.Now)
	weekday := in.Date.Weekday()

	for _, wh := range in.Hours {
		if !matchesWeekday(wh.Weekday, weekday) {
			continue
		}
		open, err1 := atClock(in.Date, wh.Open)
		close, err2 := atClock(in.Date, wh.Close)
		if err1 != nil || err2 != nil || !close.After(open) {
			continue
		}
		for start := open; !start.Add(length).After(close); start = start.Add(step) {
			if today && !start.After(in.Now) {
				continue
			}
			label := start.Format("15:04")
			all = append(all, label)
			if intersectsAny(start, start.Add(length), blocked) {
				busy = append(busy, label)
			}
		}
	}
	return all, busy
}

// matchesWeekday accepts both weekday-numbering conventions: Go's 0=Sunday
// and ISO's 1=Monday..7=Sunday. The two agree on Monday through Saturday.
func matchesWeekday(stored int, wd time.Weekday) bool {
	if wd == time.Sunday {
		return stored == 0 || stored == 7
	}
	return stored == int(wd)
}

func atClock(date time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock value %q: %w", clock, err)
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), 0, 0, date.Location()), nil
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}

// intersectsAny treats all intervals as half-open: [start, end).
func intersectsAny(start, end time.Time, blocked []interval) bool {
	for _, b := range blocked {
		if start.Before(b.end) && b.start.Before(end) {
			return true
		}
	}
	return false
}
