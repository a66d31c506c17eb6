package domain

import (
	"time"

	"github.com/samber/mo"
)

// Exception overrides one occurrence of a series without touching its rule.
// It is identified by (TaskID, OriginalStart) and that key never changes.
// Fields are ordered to minimize memory padding.
type Exception struct {
	OriginalStart time.Time            // Instant the unmodified rule produced (UTC)
	NewStart      mo.Option[time.Time] // Rescheduled start
	CompletedAt   mo.Option[time.Time] // When the occurrence was marked done
	OverrideTitle mo.Option[string]    // Replacement title
	NewDuration   mo.Option[int]       // Replacement duration in minutes
	ID            string               // Opaque id
	TaskID        string               // Owning series
	UserID        string               // Owner (denormalized from the task)
	Cancelled     bool                 // Occurrence removed from the series
	Complete      bool                 // Occurrence done
}

// Key returns the identity of the exception.
func (e *Exception) Key() ExceptionKey {
	return KeyOf(e.TaskID, e.OriginalStart)
}

// Clone returns a copy of the exception.
func (e *Exception) Clone() *Exception {
	c := *e
	return &c
}

// ExceptionKey identifies an occurrence of a series. It is comparable and
// usable as a map key, unlike time.Time.
type ExceptionKey struct {
	TaskID string
	At     int64 // UnixNano of the original occurrence
}

// KeyOf returns the key of the occurrence of taskID originally at t.
func KeyOf(taskID string, t time.Time) ExceptionKey {
	return ExceptionKey{TaskID: taskID, At: t.UnixNano()}
}

// ExceptionPatch is a partial update of the exception at (TaskID, OriginalStart).
// Stores apply it as a single insert-or-update on the key; Unchanged fields keep
// the stored value (or the column default on insert).
type ExceptionPatch struct {
	OriginalStart time.Time
	NewStart      Field[time.Time]
	CompletedAt   Field[time.Time]
	Title         Field[string]
	NewDuration   Field[int]
	Cancelled     Field[bool]
	Complete      Field[bool]
	ID            string // Id of the row when the upsert inserts
	TaskID        string
	UserID        string
}

// Key returns the key the patch applies to.
func (p ExceptionPatch) Key() ExceptionKey {
	return KeyOf(p.TaskID, p.OriginalStart)
}

// ApplyTo updates e in place. Cleared booleans become false.
func (p ExceptionPatch) ApplyTo(e *Exception) {
	e.OverrideTitle = p.Title.Apply(e.OverrideTitle)
	e.NewStart = p.NewStart.Apply(e.NewStart)
	e.NewDuration = p.NewDuration.Apply(e.NewDuration)
	e.CompletedAt = p.CompletedAt.Apply(e.CompletedAt)
	e.Cancelled = p.Cancelled.Apply(mo.Some(e.Cancelled)).OrElse(false)
	e.Complete = p.Complete.Apply(mo.Some(e.Complete)).OrElse(false)
}

// NewException builds the row a patch inserts when no exception exists yet.
func (p ExceptionPatch) NewException() *Exception {
	e := &Exception{
		ID:            p.ID,
		TaskID:        p.TaskID,
		UserID:        p.UserID,
		OriginalStart: p.OriginalStart.UTC(),
	}
	p.ApplyTo(e)
	return e
}

// CancelPatch cancels an occurrence and drops every other override.
func CancelPatch(taskID, userID string, original time.Time) ExceptionPatch {
	return ExceptionPatch{
		TaskID:        taskID,
		UserID:        userID,
		OriginalStart: original.UTC(),
		Title:         Cleared[string](),
		NewStart:      Cleared[time.Time](),
		NewDuration:   Cleared[int](),
		Cancelled:     SetTo(true),
		Complete:      SetTo(false),
		CompletedAt:   Cleared[time.Time](),
	}
}

// CompletionPatch marks an occurrence done (at) or not done.
func CompletionPatch(taskID, userID string, original time.Time, complete bool, at time.Time) ExceptionPatch {
	p := ExceptionPatch{
		TaskID:        taskID,
		UserID:        userID,
		OriginalStart: original.UTC(),
		Complete:      SetTo(complete),
		CompletedAt:   Cleared[time.Time](),
	}
	if complete {
		p.CompletedAt = SetTo(at.UTC())
	}
	return p
}
