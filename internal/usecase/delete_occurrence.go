package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/runoshun/taskcal/internal/domain"
)

// DeleteOccurrenceInput contains the parameters for deleting occurrences.
// Fields are ordered to minimize memory padding.
type DeleteOccurrenceInput struct {
	OriginalStart time.Time // Key of the occurrence being deleted
	ActorID       string
	TaskID        string
	Scope         domain.Scope
}

// DeleteOccurrenceOutput describes what was removed.
type DeleteOccurrenceOutput struct {
	Task        *domain.Task      // Truncated series (scope future)
	Exception   *domain.Exception // Cancellation record (scope single)
	Scope       domain.Scope      // Scope actually applied
	TaskDeleted bool              // The whole series row is gone
}

// DeleteOccurrence is the use case for deleting one, future or all occurrences.
type DeleteOccurrence struct {
	store  domain.Store
	ids    domain.IDGenerator
	clock  domain.Clock
	logger domain.Logger
	limits domain.Limits
}

// NewDeleteOccurrence creates a new DeleteOccurrence use case.
func NewDeleteOccurrence(store domain.Store, ids domain.IDGenerator, clock domain.Clock, logger domain.Logger, limits domain.Limits) *DeleteOccurrence {
	return &DeleteOccurrence{
		store:  store,
		ids:    ids,
		clock:  clock,
		logger: logger,
		limits: limits,
	}
}

// Execute deletes in one transaction.
func (uc *DeleteOccurrence) Execute(ctx context.Context, in DeleteOccurrenceInput) (*DeleteOccurrenceOutput, error) {
	scope, err := domain.ParseScope(string(in.Scope))
	if err != nil {
		return nil, err
	}
	in.Scope = scope
	original := in.OriginalStart.UTC()

	var out *DeleteOccurrenceOutput
	err = retryConflict(ctx, uc.logger, in.TaskID, func(ctx context.Context) error {
		return uc.store.Atomic(ctx, func(tx domain.Tx) error {
			task, err := loadOwned(ctx, tx, in.TaskID, in.ActorID)
			if err != nil {
				return err
			}
			if err := requireOccurrence(task, original, uc.limits); err != nil {
				return err
			}

			out = &DeleteOccurrenceOutput{Scope: domain.EffectiveScope(task, in.Scope)}
			switch out.Scope {
			case domain.ScopeSingle:
				patch := domain.CancelPatch(task.ID, task.UserID, original)
				patch.ID = uc.ids.NewID()
				out.Exception, err = tx.UpsertException(ctx, patch)
				if err != nil {
					return fmt.Errorf("cancel occurrence: %w", err)
				}
				logf(uc.logger, domain.Logger.Info, task.ID, "delete", "occurrence %s cancelled", original.Format(time.RFC3339))

			case domain.ScopeFuture:
				plan := domain.TruncateSeries(task, original, stamp(uc.clock))
				if err := applyTruncation(ctx, tx, task, plan); err != nil {
					return err
				}
				out.Task = plan.Old
				out.TaskDeleted = plan.DeleteOld
				logf(uc.logger, domain.Logger.Info, task.ID, "delete", "occurrences from %s deleted", original.Format(time.RFC3339))

			default:
				if err := tx.DeleteTask(ctx, task.ID); err != nil {
					return fmt.Errorf("delete task: %w", err)
				}
				out.TaskDeleted = true
				logf(uc.logger, domain.Logger.Info, task.ID, "delete", "series deleted")
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
