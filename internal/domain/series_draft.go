package domain

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RecurrenceSpec is the authored form of a recurrence: what a user picks in a
// form or writes in a file. A zero Frequency means "once".
// Fields are ordered to minimize memory padding.
type RecurrenceSpec struct {
	Frequency string `yaml:"freq" json:"freq"`
	Until     string `yaml:"until,omitempty" json:"until,omitempty"` // Local date (end of that day) or RFC 3339 instant
	Interval  int    `yaml:"interval,omitempty" json:"interval,omitempty"`
	Count     int    `yaml:"count,omitempty" json:"count,omitempty"`
}

// IsOnce reports whether the spec describes a single occurrence.
func (s RecurrenceSpec) IsOnce() bool {
	f := strings.TrimSpace(s.Frequency)
	return f == "" || strings.EqualFold(f, "once")
}

// Rule builds the rule for the spec. zone resolves a date-only Until.
// It returns nil for a one-off.
func (s RecurrenceSpec) Rule(zone string) (*RecurrenceRule, error) {
	if s.IsOnce() {
		if s.Count != 0 || s.Until != "" {
			return nil, NewValidationError("recurrence", "count and until need a frequency")
		}
		return nil, nil
	}
	freq, err := ParseFrequency(s.Frequency)
	if err != nil {
		return nil, err
	}
	rule := RecurrenceRule{Frequency: freq, Interval: s.Interval, End: Never()}
	if rule.Interval == 0 {
		rule.Interval = 1
	}

	switch {
	case s.Count != 0 && s.Until != "":
		return nil, NewValidationError("end", "count and until are mutually exclusive")
	case s.Count != 0:
		rule.End = AfterCount(s.Count)
	case s.Until != "":
		until, err := parseUntilSpec(s.Until, zone)
		if err != nil {
			return nil, err
		}
		rule.End = UntilInstant(until)
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return &rule, nil
}

func parseUntilSpec(value, zone string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	d, err := time.Parse(LocalDateLayout, value)
	if err != nil {
		return time.Time{}, NewValidationError("until", "invalid until %q, want YYYY-MM-DD or RFC 3339", value)
	}
	loc, err := LoadZone(zone)
	if err != nil {
		return time.Time{}, err
	}
	// Last instant of the local day.
	next, _ := ResolveLocal(d.Year(), d.Month(), d.Day()+1, 0, 0, 0, 0, loc)
	return next.Add(-time.Nanosecond), nil
}

// SeriesDraft is one series described in an import file.
// Fields are ordered to minimize memory padding.
type SeriesDraft struct {
	Repeat   *RecurrenceSpec `yaml:"repeat,omitempty"`
	Title    string          `yaml:"title"`
	Icon     string          `yaml:"icon,omitempty"`
	Date     string          `yaml:"date"`
	Time     string          `yaml:"time"`
	Timezone string          `yaml:"timezone,omitempty"`
	Duration int             `yaml:"duration"`
}

// Recurrence returns the draft's recurrence, "once" when absent.
func (d SeriesDraft) Recurrence() RecurrenceSpec {
	if d.Repeat == nil {
		return RecurrenceSpec{}
	}
	return *d.Repeat
}

// ParseSeriesDrafts parses a YAML import file: either a list of series or a
// document with a top-level "series" list.
//
// Format:
//
//	- title: Standup
//	  date: 2024-03-04
//	  time: "09:00"
//	  timezone: Europe/Berlin
//	  duration: 15
//	  repeat: {freq: weekly, interval: 1, count: 10}
func ParseSeriesDrafts(content string) ([]SeriesDraft, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyFile
	}

	var drafts []SeriesDraft
	if err := yaml.Unmarshal([]byte(content), &drafts); err != nil {
		var doc struct {
			Series []SeriesDraft `yaml:"series"`
		}
		if err2 := yaml.Unmarshal([]byte(content), &doc); err2 != nil {
			return nil, fmt.Errorf("parse series file: %w", err)
		}
		drafts = doc.Series
	}
	if len(drafts) == 0 {
		return nil, ErrNoSeriesInFile
	}
	return drafts, nil
}
