package domain

import (
	"strconv"
	"strings"
	"time"
)

// Frequency is the unit a rule steps by.
type Frequency string

// Supported frequencies.
const (
	FrequencyDaily   Frequency = "DAILY"
	FrequencyWeekly  Frequency = "WEEKLY"
	FrequencyMonthly Frequency = "MONTHLY"
	FrequencyYearly  Frequency = "YEARLY"
)

// ParseFrequency parses a frequency token case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	switch f := Frequency(strings.ToUpper(strings.TrimSpace(s))); f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyYearly:
		return f, nil
	}
	return "", NewValidationError("frequency", "unsupported frequency %q", s)
}

// EndKind selects how a series ends.
type EndKind int

// End kinds.
const (
	EndNever EndKind = iota
	EndAfterCount
	EndUntil
)

// End is the termination condition of a rule. Only the field matching Kind is meaningful.
type End struct {
	Until time.Time // EndUntil: last instant (inclusive, UTC)
	Kind  EndKind
	Count int // EndAfterCount: total occurrences
}

// Never returns an open-ended End.
func Never() End {
	return End{Kind: EndNever}
}

// AfterCount returns an End bounding the series to n occurrences.
func AfterCount(n int) End {
	return End{Kind: EndAfterCount, Count: n}
}

// UntilInstant returns an End bounding the series to instants <= t.
func UntilInstant(t time.Time) End {
	return End{Kind: EndUntil, Until: t.UTC()}
}

// Equal reports whether two ends describe the same condition.
func (e End) Equal(o End) bool {
	if e.Kind != o.Kind {
		return false
	}
	switch e.Kind {
	case EndAfterCount:
		return e.Count == o.Count
	case EndUntil:
		return e.Until.Equal(o.Until)
	}
	return true
}

// RecurrenceRule is a fixed-interval recurrence: every Interval units of Frequency until End.
type RecurrenceRule struct {
	End       End
	Frequency Frequency
	Interval  int
}

// WithEnd returns a copy of r with its end replaced. Count and until never coexist.
func (r RecurrenceRule) WithEnd(e End) RecurrenceRule {
	r.End = e
	return r
}

// Equal reports whether two rules are identical.
func (r RecurrenceRule) Equal(o RecurrenceRule) bool {
	return r.Frequency == o.Frequency && r.Interval == o.Interval && r.End.Equal(o.End)
}

// Validate checks the rule on its own.
func (r RecurrenceRule) Validate() error {
	if _, err := ParseFrequency(string(r.Frequency)); err != nil {
		return err
	}
	if r.Interval < 1 {
		return NewValidationError("interval", "interval must be at least 1, got %d", r.Interval)
	}
	switch r.End.Kind {
	case EndNever:
	case EndAfterCount:
		if r.End.Count < 1 {
			return NewValidationError("count", "count must be at least 1, got %d", r.End.Count)
		}
	case EndUntil:
		if r.End.Until.IsZero() {
			return NewValidationError("until", "until is required")
		}
	default:
		return NewValidationError("end", "unknown end condition")
	}
	return nil
}

// ValidateFor checks the rule against the series start it will be anchored to.
func (r RecurrenceRule) ValidateFor(dtstart time.Time) error {
	if err := r.Validate(); err != nil {
		return err
	}
	if r.End.Kind == EndUntil && r.End.Until.Before(dtstart) {
		return NewValidationError("until", "until %s precedes the series start %s",
			r.End.Until.Format(time.RFC3339), dtstart.UTC().Format(time.RFC3339))
	}
	return nil
}

// String formats the rule in its storage form, e.g. "FREQ=DAILY;INTERVAL=2;COUNT=10".
func (r RecurrenceRule) String() string {
	var b strings.Builder
	b.WriteString("FREQ=")
	b.WriteString(string(r.Frequency))
	b.WriteString(";INTERVAL=")
	b.WriteString(strconv.Itoa(r.Interval))
	switch r.End.Kind {
	case EndAfterCount:
		b.WriteString(";COUNT=")
		b.WriteString(strconv.Itoa(r.End.Count))
	case EndUntil:
		b.WriteString(";UNTIL=")
		b.WriteString(r.End.Until.UTC().Format(time.RFC3339Nano))
	}
	return b.String()
}

// ruleVersion is the only grammar version understood by ParseRule.
const ruleVersion = "1"

// ParseRule parses the storage form produced by RecurrenceRule.String.
// An optional "RRULE:" prefix and "VERSION=1" token are accepted. UNTIL may be
// RFC 3339 or the iCalendar basic form (20060102T150405Z).
func ParseRule(text string) (RecurrenceRule, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "RRULE:")
	if text == "" {
		return RecurrenceRule{}, NewValidationError("rule", "empty rule")
	}

	seen := make(map[string]bool)
	rule := RecurrenceRule{Interval: 1}
	for _, part := range strings.Split(text, ";") {
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return RecurrenceRule{}, NewValidationError("rule", "malformed token %q", part)
		}
		key = strings.ToUpper(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if seen[key] {
			return RecurrenceRule{}, NewValidationError("rule", "duplicate %s", key)
		}
		seen[key] = true

		switch key {
		case "VERSION":
			if value != ruleVersion {
				return RecurrenceRule{}, NewValidationError("rule", "unsupported rule version %q", value)
			}
		case "FREQ":
			f, err := ParseFrequency(value)
			if err != nil {
				return RecurrenceRule{}, err
			}
			rule.Frequency = f
		case "INTERVAL":
			n, err := strconv.Atoi(value)
			if err != nil {
				return RecurrenceRule{}, NewValidationError("interval", "invalid interval %q", value)
			}
			rule.Interval = n
		case "COUNT":
			n, err := strconv.Atoi(value)
			if err != nil {
				return RecurrenceRule{}, NewValidationError("count", "invalid count %q", value)
			}
			rule.End = AfterCount(n)
		case "UNTIL":
			t, err := parseUntil(value)
			if err != nil {
				return RecurrenceRule{}, NewValidationError("until", "invalid until %q", value)
			}
			rule.End = UntilInstant(t)
		default:
			return RecurrenceRule{}, NewValidationError("rule", "unsupported token %s", key)
		}
	}

	if !seen["FREQ"] {
		return RecurrenceRule{}, NewValidationError("frequency", "FREQ is required")
	}
	if seen["COUNT"] && seen["UNTIL"] {
		return RecurrenceRule{}, NewValidationError("rule", "COUNT and UNTIL are mutually exclusive")
	}
	if err := rule.Validate(); err != nil {
		return RecurrenceRule{}, err
	}
	return rule, nil
}

func parseUntil(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("20060102T150405Z", value)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
