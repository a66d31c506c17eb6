package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Default limits.
const (
	DefaultMaxOccurrences     = 25
	DefaultMaxDurationMinutes = 1440
	MaxTitleLength            = 200
)

// Limits are the configurable bounds applied to series. They are passed
// explicitly to the expander and validators.
type Limits struct {
	MaxOccurrences     int // series-lifetime cap on generated occurrences
	MaxDurationMinutes int // ceiling for duration_minutes
}

// DefaultLimits returns the default limits.
func DefaultLimits() Limits {
	return Limits{
		MaxOccurrences:     DefaultMaxOccurrences,
		MaxDurationMinutes: DefaultMaxDurationMinutes,
	}
}

// Normalize fills zero values with defaults.
func (l Limits) Normalize() Limits {
	if l.MaxOccurrences <= 0 {
		l.MaxOccurrences = DefaultMaxOccurrences
	}
	if l.MaxDurationMinutes <= 0 {
		l.MaxDurationMinutes = DefaultMaxDurationMinutes
	}
	return l
}

// ValidateDuration checks minutes is within [1, MaxDurationMinutes].
func (l Limits) ValidateDuration(minutes int) error {
	l = l.Normalize()
	if minutes < 1 || minutes > l.MaxDurationMinutes {
		return NewValidationError("duration_minutes", "duration must be between 1 and %d minutes, got %d",
			l.MaxDurationMinutes, minutes)
	}
	return nil
}

// ValidateRule checks a rule anchored at dtstart, including the occurrence cap.
func (l Limits) ValidateRule(rule RecurrenceRule, dtstart time.Time) error {
	l = l.Normalize()
	if err := rule.ValidateFor(dtstart); err != nil {
		return err
	}
	if rule.End.Kind == EndAfterCount && rule.End.Count > l.MaxOccurrences {
		return &CapExceededError{Requested: rule.End.Count, Max: l.MaxOccurrences}
	}
	return nil
}

// ValidateTitle checks a series or override title.
func ValidateTitle(title string) error {
	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		return NewValidationError("title", "title cannot be empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxTitleLength {
		return NewValidationError("title", "title exceeds %d characters", MaxTitleLength)
	}
	return nil
}

// CapExceededError reports a rule asking for more occurrences than the cap.
// It matches ErrCapExceeded with errors.Is.
type CapExceededError struct {
	Requested int
	Max       int
}

func (e *CapExceededError) Error() string {
	return fmt.Sprintf("occurrences limited to %d, rule asks for %d", e.Max, e.Requested)
}

// Is reports whether target is ErrCapExceeded.
func (e *CapExceededError) Is(target error) bool {
	return target == ErrCapExceeded
}
