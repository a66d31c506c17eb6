package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/runoshun/taskcal/internal/domain"
)

// EditOccurrenceInput contains the parameters for editing an occurrence.
// Fields are ordered to minimize memory padding.
type EditOccurrenceInput struct {
	OriginalStart time.Time                // Key of the occurrence being edited
	Changes       domain.OccurrenceChanges // Requested edit
	ActorID       string
	TaskID        string
	Scope         domain.Scope
}

// EditOccurrenceOutput contains the result of an edit. Exception is set for a
// single-occurrence edit, Task otherwise. A "future" edit returns the new series.
type EditOccurrenceOutput struct {
	Task      *domain.Task
	Exception *domain.Exception
	Scope     domain.Scope // Scope actually applied
}

// EditOccurrence is the use case for editing one, future or all occurrences.
type EditOccurrence struct {
	store  domain.Store
	ids    domain.IDGenerator
	clock  domain.Clock
	logger domain.Logger
	limits domain.Limits
}

// NewEditOccurrence creates a new EditOccurrence use case.
func NewEditOccurrence(store domain.Store, ids domain.IDGenerator, clock domain.Clock, logger domain.Logger, limits domain.Limits) *EditOccurrence {
	return &EditOccurrence{
		store:  store,
		ids:    ids,
		clock:  clock,
		logger: logger,
		limits: limits,
	}
}

// Execute applies the edit in one transaction.
func (uc *EditOccurrence) Execute(ctx context.Context, in EditOccurrenceInput) (*EditOccurrenceOutput, error) {
	if in.Changes.IsEmpty() {
		return nil, domain.NewValidationError("changes", "nothing to change")
	}
	scope, err := domain.ParseScope(string(in.Scope))
	if err != nil {
		return nil, err
	}
	in.Scope = scope

	var out *EditOccurrenceOutput
	err = retryConflict(ctx, uc.logger, in.TaskID, func(ctx context.Context) error {
		return uc.store.Atomic(ctx, func(tx domain.Tx) error {
			task, err := loadOwned(ctx, tx, in.TaskID, in.ActorID)
			if err != nil {
				return err
			}
			if err := requireOccurrence(task, in.OriginalStart, uc.limits); err != nil {
				return err
			}

			scope := domain.EffectiveScope(task, in.Scope)
			switch scope {
			case domain.ScopeSingle:
				out, err = uc.editSingle(ctx, tx, task, in)
			case domain.ScopeFuture:
				out, err = uc.editFuture(ctx, tx, task, in)
			default:
				out, err = uc.editAll(ctx, tx, task, in)
			}
			if out != nil {
				out.Scope = scope
			}
			return err
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (uc *EditOccurrence) editSingle(ctx context.Context, tx domain.Tx, task *domain.Task, in EditOccurrenceInput) (*EditOccurrenceOutput, error) {
	patch, err := domain.OccurrencePatch(task, in.OriginalStart, in.Changes, uc.limits)
	if err != nil {
		return nil, err
	}
	patch.ID = uc.ids.NewID()

	exc, err := tx.UpsertException(ctx, patch)
	if err != nil {
		return nil, fmt.Errorf("upsert exception: %w", err)
	}
	logf(uc.logger, domain.Logger.Info, task.ID, "edit", "occurrence %s overridden", in.OriginalStart.UTC().Format(time.RFC3339))
	return &EditOccurrenceOutput{Exception: exc}, nil
}

func (uc *EditOccurrence) editAll(ctx context.Context, tx domain.Tx, task *domain.Task, in EditOccurrenceInput) (*EditOccurrenceOutput, error) {
	updated, err := domain.ApplyToSeries(task, in.OriginalStart, in.Changes, uc.limits, stamp(uc.clock))
	if err != nil {
		return nil, err
	}
	if err := tx.UpdateTask(ctx, updated, task.Updated); err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	n, err := tx.DeleteExceptions(ctx, task.ID, nil)
	if err != nil {
		return nil, fmt.Errorf("delete exceptions: %w", err)
	}
	logf(uc.logger, domain.Logger.Info, task.ID, "edit", "series updated (%s), %d exceptions dropped", ruleLabel(updated), n)
	return &EditOccurrenceOutput{Task: updated}, nil
}

func (uc *EditOccurrence) editFuture(ctx context.Context, tx domain.Tx, task *domain.Task, in EditOccurrenceInput) (*EditOccurrenceOutput, error) {
	plan, err := domain.SplitSeries(task, in.OriginalStart, in.Changes, uc.ids.NewID(), uc.limits, stamp(uc.clock))
	if err != nil {
		return nil, err
	}
	if err := applyTruncation(ctx, tx, task, plan); err != nil {
		return nil, err
	}
	if err := tx.InsertTask(ctx, plan.New); err != nil {
		return nil, fmt.Errorf("insert split task: %w", err)
	}
	logf(uc.logger, domain.Logger.Info, task.ID, "split", "split at %s into %s (%s)",
		plan.SplitAt.Format(time.RFC3339), plan.New.ID, ruleLabel(plan.New))
	return &EditOccurrenceOutput{Task: plan.New}, nil
}

// applyTruncation writes the old-series half of a split plan: the old task is
// deleted, or truncated with its exceptions at or after the split removed.
func applyTruncation(ctx context.Context, tx domain.Tx, task *domain.Task, plan domain.SplitPlan) error {
	if plan.DeleteOld {
		if err := tx.DeleteTask(ctx, task.ID); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		return nil
	}
	if err := tx.UpdateTask(ctx, plan.Old, task.Updated); err != nil {
		return fmt.Errorf("truncate task: %w", err)
	}
	if _, err := tx.DeleteExceptions(ctx, task.ID, &plan.SplitAt); err != nil {
		return fmt.Errorf("delete exceptions: %w", err)
	}
	return nil
}
