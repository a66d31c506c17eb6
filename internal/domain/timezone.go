package domain

import (
	"slices"
	"strings"
	"time"
)

// Layouts of authored wall-clock values.
const (
	LocalDateLayout = "2006-01-02"
	LocalTimeLayout = "15:04"
)

// Resolution describes how a wall-clock time mapped onto an instant.
type Resolution int

// Resolutions.
const (
	ResolvedExact     Resolution = iota // exactly one instant has this wall time
	ResolvedAmbiguous                   // wall time repeats (fall back); earlier instant chosen
	ResolvedGap                         // wall time skipped (spring forward); pre-gap offset used
)

// LoadZone loads an IANA time zone.
func LoadZone(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, NewValidationError("timezone", "timezone is required")
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, NewValidationError("timezone", "unknown timezone %q", name)
	}
	return loc, nil
}

// ResolveLocal maps a wall-clock time in loc to an instant.
// Ambiguous times resolve to the earlier instant; times inside a gap are read
// with the offset in effect before the gap, landing after it.
func ResolveLocal(year int, month time.Month, day, hour, minute, sec, nsec int, loc *time.Location) (time.Time, Resolution) {
	naive := time.Date(year, month, day, hour, minute, sec, nsec, time.UTC)

	var offsets []int
	for _, probe := range []time.Time{naive.Add(-24 * time.Hour), naive, naive.Add(24 * time.Hour)} {
		_, off := probe.In(loc).Zone()
		if !slices.Contains(offsets, off) {
			offsets = append(offsets, off)
		}
	}

	var matches []time.Time
	for _, off := range offsets {
		t := naive.Add(-time.Duration(off) * time.Second)
		if sameWall(t.In(loc), naive) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		_, before := naive.Add(-24 * time.Hour).In(loc).Zone()
		return naive.Add(-time.Duration(before) * time.Second).UTC(), ResolvedGap
	case 1:
		return matches[0].UTC(), ResolvedExact
	}
	earliest := matches[0]
	for _, m := range matches[1:] {
		if m.Before(earliest) {
			earliest = m
		}
	}
	return earliest.UTC(), ResolvedAmbiguous
}

// ToUTC converts an authored local date ("2006-01-02") and time ("15:04" or
// "15:04:05") in zone to a UTC instant using the ResolveLocal policy.
func ToUTC(localDate, localTime, zone string) (time.Time, error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return time.Time{}, err
	}
	d, err := time.Parse(LocalDateLayout, strings.TrimSpace(localDate))
	if err != nil {
		return time.Time{}, NewValidationError("date", "invalid date %q, want YYYY-MM-DD", localDate)
	}
	clock, err := parseClock(localTime)
	if err != nil {
		return time.Time{}, err
	}
	t, _ := ResolveLocal(d.Year(), d.Month(), d.Day(), clock.Hour(), clock.Minute(), clock.Second(), 0, loc)
	return t, nil
}

// ToLocal converts an instant to the wall-clock date and time in zone.
func ToLocal(instant time.Time, zone string) (date, clock string, err error) {
	loc, err := LoadZone(zone)
	if err != nil {
		return "", "", err
	}
	local := instant.In(loc)
	clock = local.Format(LocalTimeLayout)
	if local.Second() != 0 {
		clock = local.Format("15:04:05")
	}
	return local.Format(LocalDateLayout), clock, nil
}

func parseClock(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range []string{LocalTimeLayout, "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, NewValidationError("time", "invalid time %q, want HH:MM", s)
}

func sameWall(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() &&
		a.Second() == b.Second() && a.Nanosecond() == b.Nanosecond()
}
