package domain

import (
	"strings"
	"time"

	"github.com/samber/mo"
)

// Scope is the breadth of an edit or delete.
type Scope string

// Scopes.
const (
	ScopeSingle Scope = "single" // one occurrence
	ScopeFuture Scope = "future" // this occurrence and every later one
	ScopeAll    Scope = "all"    // the whole series
)

// ParseScope parses a scope name. An empty string means ScopeSingle.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(strings.ToLower(strings.TrimSpace(s))); sc {
	case "":
		return ScopeSingle, nil
	case ScopeSingle, ScopeFuture, ScopeAll:
		return sc, nil
	}
	return "", NewValidationError("scope", "invalid scope %q (want single, future or all)", s)
}

// EffectiveScope returns the scope actually applied to task. A one-off task has
// a single occurrence, so every scope means the whole task.
func EffectiveScope(task *Task, scope Scope) Scope {
	if !task.IsRecurring() {
		return ScopeAll
	}
	return scope
}

// OccurrenceChanges is the edit requested for an occurrence.
// Every field is Unchanged by default.
type OccurrenceChanges struct {
	Start      Field[time.Time]
	Recurrence Field[RecurrenceRule] // Cleared makes the series a one-off
	Title      Field[string]
	Icon       Field[string]
	Timezone   Field[string]
	Duration   Field[int] // minutes
}

// IsEmpty reports whether no field changes.
func (c OccurrenceChanges) IsEmpty() bool {
	return c.Start.IsUnchanged() && c.Recurrence.IsUnchanged() && c.Title.IsUnchanged() &&
		c.Icon.IsUnchanged() && c.Timezone.IsUnchanged() && c.Duration.IsUnchanged()
}

// validateSeriesFields checks the fields that describe a whole series.
func (c OccurrenceChanges) validateSeriesFields(limits Limits) error {
	if c.Title.IsCleared() {
		return NewValidationError("title", "title cannot be removed")
	}
	if v, ok := c.Title.Get(); ok {
		if err := ValidateTitle(v); err != nil {
			return err
		}
	}
	if c.Start.IsCleared() {
		return NewValidationError("start", "start cannot be removed")
	}
	if c.Duration.IsCleared() {
		return NewValidationError("duration_minutes", "duration cannot be removed")
	}
	if v, ok := c.Duration.Get(); ok {
		if err := limits.ValidateDuration(v); err != nil {
			return err
		}
	}
	if c.Timezone.IsCleared() {
		return NewValidationError("timezone", "timezone cannot be removed")
	}
	if v, ok := c.Timezone.Get(); ok {
		if _, err := LoadZone(v); err != nil {
			return err
		}
	}
	if r, ok := c.Recurrence.Get(); ok {
		if err := r.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// OccurrencePatch builds the exception upsert for a single-occurrence edit of
// task at original. Series-level fields cannot be edited on one occurrence.
func OccurrencePatch(task *Task, original time.Time, c OccurrenceChanges, limits Limits) (ExceptionPatch, error) {
	switch {
	case !c.Recurrence.IsUnchanged():
		return ExceptionPatch{}, NewValidationError("recurrence", "recurrence cannot change on a single occurrence")
	case !c.Timezone.IsUnchanged():
		return ExceptionPatch{}, NewValidationError("timezone", "timezone cannot change on a single occurrence")
	case !c.Icon.IsUnchanged():
		return ExceptionPatch{}, NewValidationError("icon", "icon cannot change on a single occurrence")
	}
	if v, ok := c.Title.Get(); ok {
		if err := ValidateTitle(v); err != nil {
			return ExceptionPatch{}, err
		}
	}
	if v, ok := c.Duration.Get(); ok {
		if err := limits.ValidateDuration(v); err != nil {
			return ExceptionPatch{}, err
		}
	}

	p := ExceptionPatch{
		TaskID:        task.ID,
		UserID:        task.UserID,
		OriginalStart: original.UTC(),
		Title:         c.Title,
		NewStart:      c.Start,
		NewDuration:   c.Duration,
		Cancelled:     SetTo(false),
	}
	if v, ok := c.Start.Get(); ok {
		p.NewStart = SetTo(v.UTC())
	}
	return p, nil
}

// ApplyToSeries returns a copy of task with c applied to the whole series.
// A new start shifts DTStart by the distance the occurrence at original moved.
func ApplyToSeries(task *Task, original time.Time, c OccurrenceChanges, limits Limits, now time.Time) (*Task, error) {
	if err := c.validateSeriesFields(limits); err != nil {
		return nil, err
	}

	out := task.Clone()
	if v, ok := c.Title.Get(); ok {
		out.Title = strings.TrimSpace(v)
	}
	out.Icon = c.Icon.Apply(optionOf(out.Icon)).OrElse("")
	if v, ok := c.Timezone.Get(); ok {
		out.Timezone = v
	}
	if v, ok := c.Duration.Get(); ok {
		out.DurationMinutes = v
	}
	if v, ok := c.Start.Get(); ok {
		out.DTStart = out.DTStart.Add(v.Sub(original)).UTC()
	}
	if r, ok := c.Recurrence.Get(); ok {
		out.Rule = &r
	} else if c.Recurrence.IsCleared() {
		out.Rule = nil
	}
	if out.Rule != nil {
		if err := limits.ValidateRule(*out.Rule, out.DTStart); err != nil {
			return nil, err
		}
	}
	out.Updated = now
	return out, nil
}

func optionOf(s string) mo.Option[string] {
	if s == "" {
		return mo.None[string]()
	}
	return mo.Some(s)
}
