package domain

import (
	"cmp"
	"slices"
	"time"

	"github.com/google/uuid"
)

// instanceNamespace seeds the deterministic ids of occurrences without an exception.
var instanceNamespace = uuid.MustParse("5b0f7c2e-8d2a-4e59-9a53-0c6f7d1e2a41")

// CalculatedInstance is one displayable occurrence: a raw rule instant with its
// exception (if any) overlaid. It is computed on every read and never stored.
// Fields are ordered to minimize memory padding.
type CalculatedInstance struct {
	Start           time.Time  // Effective start
	OriginalStart   time.Time  // Key of the occurrence under the unmodified rule
	CompletedAt     *time.Time // Set when complete
	ID              string     // Exception id, or derived from (TaskID, OriginalStart)
	TaskID          string
	Title           string
	Icon            string
	Timezone        string
	DurationMinutes int
	Complete        bool
	Overridden      bool // An exception applies to this occurrence
}

// End returns the effective end of the occurrence.
func (ci CalculatedInstance) End() time.Time {
	return ci.Start.Add(time.Duration(ci.DurationMinutes) * time.Minute)
}

// InstanceID returns the synthetic id of an occurrence that has no exception.
func InstanceID(taskID string, original time.Time) string {
	return uuid.NewSHA1(instanceNamespace, []byte(taskID+"|"+original.UTC().Format(time.RFC3339Nano))).String()
}

// Materialization is the output of Materialize.
type Materialization struct {
	Instances     []CalculatedInstance
	CappedTaskIDs []string // Series whose expansion stopped at the occurrence cap
}

// Materialize overlays exceptions onto the expanded occurrences of tasks and
// returns the instances whose effective start lies inside window, ordered by
// start then task id. Cancelled occurrences are dropped. Archived tasks are
// skipped. Inputs are not modified.
func Materialize(tasks []*Task, exceptions []*Exception, window Window, limits Limits) (Materialization, error) {
	byKey := make(map[ExceptionKey]*Exception, len(exceptions))
	byTask := make(map[string][]*Exception)
	for _, e := range exceptions {
		byKey[e.Key()] = e
		byTask[e.TaskID] = append(byTask[e.TaskID], e)
	}

	var out Materialization
	for _, task := range tasks {
		if task.Status == StatusArchived {
			continue
		}
		exp, err := ExpandTask(task, window, limits)
		if err != nil {
			return Materialization{}, err
		}
		if exp.Capped {
			out.CappedTaskIDs = append(out.CappedTaskIDs, task.ID)
		}

		seen := make(map[ExceptionKey]bool, len(exp.Instants))
		for _, raw := range exp.Instants {
			key := KeyOf(task.ID, raw)
			seen[key] = true
			if ci, ok := overlay(task, raw, byKey[key]); ok && window.Contains(ci.Start) {
				out.Instances = append(out.Instances, ci)
			}
		}

		// Occurrences rescheduled into the window from outside it.
		for _, e := range byTask[task.ID] {
			key := e.Key()
			if byKey[key] != e || seen[key] || e.Cancelled {
				continue
			}
			newStart, ok := e.NewStart.Get()
			if !ok || !window.Contains(newStart) {
				continue
			}
			real, err := IsOccurrence(task, e.OriginalStart, limits)
			if err != nil {
				return Materialization{}, err
			}
			if !real {
				continue
			}
			if ci, ok := overlay(task, e.OriginalStart.UTC(), e); ok {
				out.Instances = append(out.Instances, ci)
			}
		}
	}

	slices.SortStableFunc(out.Instances, func(a, b CalculatedInstance) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		if c := cmp.Compare(a.TaskID, b.TaskID); c != 0 {
			return c
		}
		return a.OriginalStart.Compare(b.OriginalStart)
	})
	return out, nil
}

// overlay builds the instance for raw, applying e when present. It returns false
// for a cancelled occurrence.
func overlay(task *Task, raw time.Time, e *Exception) (CalculatedInstance, bool) {
	ci := CalculatedInstance{
		ID:              InstanceID(task.ID, raw),
		TaskID:          task.ID,
		OriginalStart:   raw,
		Start:           raw,
		Title:           task.Title,
		Icon:            task.Icon,
		Timezone:        task.Timezone,
		DurationMinutes: task.DurationMinutes,
	}
	if e == nil {
		return ci, true
	}
	if e.Cancelled {
		return CalculatedInstance{}, false
	}

	ci.ID = e.ID
	ci.Overridden = true
	ci.Title = e.OverrideTitle.OrElse(ci.Title)
	ci.Start = e.NewStart.OrElse(ci.Start).UTC()
	ci.DurationMinutes = e.NewDuration.OrElse(ci.DurationMinutes)
	ci.Complete = e.Complete
	if at, ok := e.CompletedAt.Get(); ok && e.Complete {
		at = at.UTC()
		ci.CompletedAt = &at
	}
	return ci, true
}
