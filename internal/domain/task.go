// Package domain contains the recurrence model, its pure algorithms and the
// ports the use cases depend on.
package domain

import (
	"time"
)

// Task is a series definition: one occurrence at DTStart, or many generated by Rule.
// Fields are ordered to minimize memory padding.
type Task struct {
	DTStart         time.Time       `json:"dtstart"`         // First occurrence (UTC)
	Created         time.Time       `json:"created"`         // Creation time
	Updated         time.Time       `json:"updated"`         // Last write; compare-and-swap token
	Rule            *RecurrenceRule `json:"-"`               // nil = single occurrence
	ID              string          `json:"id"`              // Opaque stable id
	UserID          string          `json:"userID"`          // Owner
	Title           string          `json:"title"`           // Title (required)
	Icon            string          `json:"icon,omitempty"`  // Icon name (optional)
	Timezone        string          `json:"timezone"`        // IANA zone the series was authored in
	Status          Status          `json:"status"`          // active | archived
	DurationMinutes int             `json:"durationMinutes"` // > 0
}

// IsRecurring returns true if the task has a rule.
func (t *Task) IsRecurring() bool {
	return t.Rule != nil
}

// Duration returns the length of one occurrence.
func (t *Task) Duration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

// OwnedBy reports whether actorID owns the task.
func (t *Task) OwnedBy(actorID string) bool {
	return actorID != "" && t.UserID == actorID
}

// RuleString returns the stored rule text, or "" for one-off tasks.
func (t *Task) RuleString() string {
	if t.Rule == nil {
		return ""
	}
	return t.Rule.String()
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.Rule != nil {
		r := *t.Rule
		c.Rule = &r
	}
	return &c
}

// Status is the lifecycle state of a series.
type Status string

// Statuses.
const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// ParseStatus parses a status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusActive, StatusArchived:
		return st, nil
	}
	return "", NewValidationError("status", "invalid status %q", s)
}
