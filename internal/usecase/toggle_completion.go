package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/runoshun/taskcal/internal/domain"
)

// ToggleCompletionInput contains the parameters for marking an occurrence done.
// Fields are ordered to minimize memory padding.
type ToggleCompletionInput struct {
	OriginalStart time.Time
	ActorID       string
	TaskID        string
	Complete      bool // New state
}

// ToggleCompletionOutput contains the stored completion record.
type ToggleCompletionOutput struct {
	Exception *domain.Exception
}

// ToggleCompletion is the use case for completing or reopening an occurrence.
type ToggleCompletion struct {
	store  domain.Store
	ids    domain.IDGenerator
	clock  domain.Clock
	logger domain.Logger
	limits domain.Limits
}

// NewToggleCompletion creates a new ToggleCompletion use case.
func NewToggleCompletion(store domain.Store, ids domain.IDGenerator, clock domain.Clock, logger domain.Logger, limits domain.Limits) *ToggleCompletion {
	return &ToggleCompletion{
		store:  store,
		ids:    ids,
		clock:  clock,
		logger: logger,
		limits: limits,
	}
}

// Execute upserts the completion state of the occurrence. One-off tasks use
// their DTStart as the occurrence key.
func (uc *ToggleCompletion) Execute(ctx context.Context, in ToggleCompletionInput) (*ToggleCompletionOutput, error) {
	original := in.OriginalStart.UTC()

	var exc *domain.Exception
	err := retryConflict(ctx, uc.logger, in.TaskID, func(ctx context.Context) error {
		return uc.store.Atomic(ctx, func(tx domain.Tx) error {
			task, err := loadOwned(ctx, tx, in.TaskID, in.ActorID)
			if err != nil {
				return err
			}
			if err := requireOccurrence(task, original, uc.limits); err != nil {
				return err
			}

			patch := domain.CompletionPatch(task.ID, task.UserID, original, in.Complete, stamp(uc.clock))
			patch.ID = uc.ids.NewID()
			exc, err = tx.UpsertException(ctx, patch)
			if err != nil {
				return fmt.Errorf("upsert exception: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	state := "reopened"
	if in.Complete {
		state = "completed"
	}
	logf(uc.logger, domain.Logger.Info, in.TaskID, "complete", "occurrence %s %s", original.Format(time.RFC3339), state)
	return &ToggleCompletionOutput{Exception: exc}, nil
}
