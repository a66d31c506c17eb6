package domain

import (
	"strings"
	"time"
)

// untilGap separates the last occurrence of a truncated series from the split point.
const untilGap = time.Millisecond

// SplitPlan describes the writes of a "this and future" edit. It is computed
// without touching the store; the caller applies it in one transaction.
type SplitPlan struct {
	SplitAt   time.Time // Exceptions of the old task at or after this instant are deleted
	Old       *Task     // Truncated old task; nil when DeleteOld
	New       *Task     // Series carrying the edit forward; nil for a truncation
	DeleteOld bool      // The old series would have no occurrence left
}

// TruncateSeries ends old just before splitAt. When no occurrence would remain
// the plan deletes old instead.
func TruncateSeries(old *Task, splitAt time.Time, now time.Time) SplitPlan {
	splitAt = splitAt.UTC()
	plan := SplitPlan{SplitAt: splitAt}

	oldUntil := splitAt.Add(-untilGap)
	if old.Rule == nil || !oldUntil.After(old.DTStart) {
		plan.DeleteOld = true
		return plan
	}

	truncated := old.Clone()
	rule := old.Rule.WithEnd(UntilInstant(oldUntil))
	truncated.Rule = &rule
	truncated.Updated = now
	plan.Old = truncated
	return plan
}

// SplitSeries plans a "this and future" edit of old at the occurrence splitAt.
// The old series is truncated (or deleted) and a new series starting at the
// edited occurrence inherits every field c leaves Unchanged. An unchanged
// recurrence keeps its frequency and interval; an Until end is kept and an
// AfterCount end is reduced by the occurrences that precede the split.
func SplitSeries(old *Task, splitAt time.Time, c OccurrenceChanges, newID string, limits Limits, now time.Time) (SplitPlan, error) {
	if err := c.validateSeriesFields(limits); err != nil {
		return SplitPlan{}, err
	}
	splitAt = splitAt.UTC()

	next := &Task{
		ID:              newID,
		UserID:          old.UserID,
		Title:           old.Title,
		Icon:            c.Icon.Apply(optionOf(old.Icon)).OrElse(""),
		Timezone:        old.Timezone,
		DTStart:         splitAt,
		DurationMinutes: old.DurationMinutes,
		Status:          old.Status,
		Created:         now,
		Updated:         now,
	}
	if v, ok := c.Title.Get(); ok {
		next.Title = strings.TrimSpace(v)
	}
	if v, ok := c.Timezone.Get(); ok {
		next.Timezone = v
	}
	if v, ok := c.Duration.Get(); ok {
		next.DurationMinutes = v
	}
	if v, ok := c.Start.Get(); ok {
		next.DTStart = v.UTC()
	}

	switch {
	case c.Recurrence.IsCleared():
		next.Rule = nil
	case !c.Recurrence.IsUnchanged():
		r, _ := c.Recurrence.Get()
		next.Rule = &r
	case old.Rule != nil:
		r := *old.Rule
		if r.End.Kind == EndAfterCount {
			consumed, err := countBefore(old, splitAt, limits)
			if err != nil {
				return SplitPlan{}, err
			}
			r = r.WithEnd(AfterCount(max(r.End.Count-consumed, 1)))
		}
		next.Rule = &r
	}
	if next.Rule != nil {
		if err := limits.ValidateRule(*next.Rule, next.DTStart); err != nil {
			return SplitPlan{}, err
		}
	}

	plan := TruncateSeries(old, splitAt, now)
	plan.New = next
	return plan, nil
}
