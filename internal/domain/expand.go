package domain

import (
	"time"
)

// Window is a closed time range [Start, End].
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow creates a window, rejecting an end before the start.
func NewWindow(start, end time.Time) (Window, error) {
	if end.Before(start) {
		return Window{}, NewValidationError("window", "window end %s is before start %s",
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Window{Start: start.UTC(), End: end.UTC()}, nil
}

// Contains reports whether t lies inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Expansion is the result of expanding a rule over a window.
type Expansion struct {
	Instants []time.Time // Ordered UTC instants inside the window
	Capped   bool        // Expansion stopped at the occurrence cap, more would follow
}

// Expand produces the occurrences of rule anchored at anchor (authored in zone)
// that fall inside window.
//
// Steps are taken on the anchor's wall clock in zone, so the local time of day
// survives daylight-saving transitions. Monthly and yearly steps clamp the day
// to the target month's length. Occurrences before the window are still counted
// toward COUNT and the cap, which is a series-lifetime limit of maxOccurrences.
func Expand(rule RecurrenceRule, anchor time.Time, zone string, window Window, maxOccurrences int) (Expansion, error) {
	if err := rule.Validate(); err != nil {
		return Expansion{}, err
	}
	loc, err := LoadZone(zone)
	if err != nil {
		return Expansion{}, err
	}
	if maxOccurrences <= 0 {
		maxOccurrences = DefaultMaxOccurrences
	}

	step := newStepper(rule, anchor.In(loc))
	var exp Expansion
	for k := 0; ; k++ {
		if rule.End.Kind == EndAfterCount && k >= rule.End.Count {
			break
		}
		t := step.at(k)
		if rule.End.Kind == EndUntil && t.After(rule.End.Until) {
			break
		}
		if t.After(window.End) {
			break
		}
		if k >= maxOccurrences {
			exp.Capped = true
			break
		}
		if !t.Before(window.Start) {
			exp.Instants = append(exp.Instants, t)
		}
	}
	return exp, nil
}

// ExpandTask expands a task over window. A one-off task yields its DTStart when
// it lies inside the window.
func ExpandTask(task *Task, window Window, limits Limits) (Expansion, error) {
	if task.Rule == nil {
		if window.Contains(task.DTStart) {
			return Expansion{Instants: []time.Time{task.DTStart.UTC()}}, nil
		}
		return Expansion{}, nil
	}
	return Expand(*task.Rule, task.DTStart, task.Timezone, window, limits.Normalize().MaxOccurrences)
}

// IsOccurrence reports whether t is an occurrence of the unmodified task.
func IsOccurrence(task *Task, t time.Time, limits Limits) (bool, error) {
	exp, err := ExpandTask(task, Window{Start: t, End: t}, limits)
	if err != nil {
		return false, err
	}
	return len(exp.Instants) == 1 && exp.Instants[0].Equal(t), nil
}

// countBefore returns how many occurrences of task precede t.
func countBefore(task *Task, t time.Time, limits Limits) (int, error) {
	if !t.After(task.DTStart) {
		return 0, nil
	}
	exp, err := ExpandTask(task, Window{Start: task.DTStart, End: t.Add(-time.Nanosecond)}, limits)
	if err != nil {
		return 0, err
	}
	return len(exp.Instants), nil
}

// stepper computes the k-th wall-clock step of a rule.
type stepper struct {
	loc      *time.Location
	freq     Frequency
	interval int
	year     int
	month    time.Month
	day      int
	hour     int
	minute   int
	sec      int
	nsec     int
}

func newStepper(rule RecurrenceRule, anchor time.Time) stepper {
	y, m, d := anchor.Date()
	return stepper{
		loc:      anchor.Location(),
		freq:     rule.Frequency,
		interval: rule.Interval,
		year:     y,
		month:    m,
		day:      d,
		hour:     anchor.Hour(),
		minute:   anchor.Minute(),
		sec:      anchor.Second(),
		nsec:     anchor.Nanosecond(),
	}
}

func (s stepper) at(k int) time.Time {
	n := k * s.interval
	y, m, d := s.year, s.month, s.day
	switch s.freq {
	case FrequencyDaily:
		y, m, d = civilAddDays(y, m, d, n)
	case FrequencyWeekly:
		y, m, d = civilAddDays(y, m, d, 7*n)
	case FrequencyMonthly:
		total := int(m) - 1 + n
		y += total / 12
		m = time.Month(total%12 + 1)
		d = min(d, daysIn(y, m))
	case FrequencyYearly:
		y += n
		d = min(d, daysIn(y, m))
	}
	t, _ := ResolveLocal(y, m, d, s.hour, s.minute, s.sec, s.nsec, s.loc)
	return t
}

func civilAddDays(y int, m time.Month, d, n int) (int, time.Month, int) {
	return time.Date(y, m, d+n, 0, 0, 0, 0, time.UTC).Date()
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
