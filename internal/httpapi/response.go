package httpapi

import (
	"time"

	"github.com/runoshun/taskcal/internal/domain"
	"github.com/samber/mo"
)

// Response bodies. Instants are RFC 3339 in UTC.

type taskResponse struct {
	Created         time.Time `json:"created"`
	Updated         time.Time `json:"updated"`
	DTStart         time.Time `json:"dtstart"`
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	Icon            string    `json:"icon,omitempty"`
	Timezone        string    `json:"timezone"`
	Rule            string    `json:"rule,omitempty"`
	Status          string    `json:"status"`
	DurationMinutes int       `json:"duration_minutes"`
}

func newTaskResponse(t *domain.Task) taskResponse {
	return taskResponse{
		ID:              t.ID,
		UserID:          t.UserID,
		Title:           t.Title,
		Icon:            t.Icon,
		Timezone:        t.Timezone,
		DTStart:         t.DTStart.UTC(),
		DurationMinutes: t.DurationMinutes,
		Rule:            t.RuleString(),
		Status:          string(t.Status),
		Created:         t.Created.UTC(),
		Updated:         t.Updated.UTC(),
	}
}

type exceptionResponse struct {
	OriginalStart time.Time  `json:"original_start"`
	NewStart      *time.Time `json:"new_start,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Title         *string    `json:"title,omitempty"`
	Duration      *int       `json:"duration_minutes,omitempty"`
	ID            string     `json:"id"`
	TaskID        string     `json:"task_id"`
	Cancelled     bool       `json:"cancelled"`
	Complete      bool       `json:"complete"`
}

func newExceptionResponse(e *domain.Exception) exceptionResponse {
	return exceptionResponse{
		ID:            e.ID,
		TaskID:        e.TaskID,
		OriginalStart: e.OriginalStart.UTC(),
		NewStart:      optional(e.NewStart),
		CompletedAt:   optional(e.CompletedAt),
		Title:         optional(e.OverrideTitle),
		Duration:      optional(e.NewDuration),
		Cancelled:     e.Cancelled,
		Complete:      e.Complete,
	}
}

type instanceResponse struct {
	Start           time.Time  `json:"start"`
	End             time.Time  `json:"end"`
	OriginalStart   time.Time  `json:"original_start"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	ID              string     `json:"id"`
	TaskID          string     `json:"task_id"`
	Title           string     `json:"title"`
	Icon            string     `json:"icon,omitempty"`
	Timezone        string     `json:"timezone"`
	DurationMinutes int        `json:"duration_minutes"`
	Complete        bool       `json:"complete"`
	Overridden      bool       `json:"overridden"`
}

func newInstanceResponse(inst domain.CalculatedInstance) instanceResponse {
	return instanceResponse{
		ID:              inst.ID,
		TaskID:          inst.TaskID,
		Title:           inst.Title,
		Icon:            inst.Icon,
		Timezone:        inst.Timezone,
		Start:           inst.Start.UTC(),
		End:             inst.Start.UTC().Add(time.Duration(inst.DurationMinutes) * time.Minute),
		OriginalStart:   inst.OriginalStart.UTC(),
		DurationMinutes: inst.DurationMinutes,
		Complete:        inst.Complete,
		CompletedAt:     inst.CompletedAt,
		Overridden:      inst.Overridden,
	}
}

// optional returns a pointer to the value of o, or nil when absent.
func optional[T any](o mo.Option[T]) *T {
	v, ok := o.Get()
	if !ok {
		return nil
	}
	return &v
}
