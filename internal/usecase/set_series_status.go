package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/taskcal/internal/domain"
)

// SetSeriesStatusInput contains the parameters for archiving or restoring a series.
type SetSeriesStatusInput struct {
	ActorID string
	TaskID  string
	Status  domain.Status
}

// SetSeriesStatusOutput contains the updated series.
type SetSeriesStatusOutput struct {
	Task *domain.Task
}

// SetSeriesStatus is the use case for changing the lifecycle status of a series.
// Archived series keep their rows but are never materialized.
type SetSeriesStatus struct {
	store  domain.Store
	clock  domain.Clock
	logger domain.Logger
}

// NewSetSeriesStatus creates a new SetSeriesStatus use case.
func NewSetSeriesStatus(store domain.Store, clock domain.Clock, logger domain.Logger) *SetSeriesStatus {
	return &SetSeriesStatus{
		store:  store,
		clock:  clock,
		logger: logger,
	}
}

// Execute updates the status with a compare-and-swap on the task row.
func (uc *SetSeriesStatus) Execute(ctx context.Context, in SetSeriesStatusInput) (*SetSeriesStatusOutput, error) {
	status, err := domain.ParseStatus(string(in.Status))
	if err != nil {
		return nil, err
	}

	var task *domain.Task
	err = retryConflict(ctx, uc.logger, in.TaskID, func(ctx context.Context) error {
		return uc.store.Atomic(ctx, func(tx domain.Tx) error {
			cur, err := loadOwned(ctx, tx, in.TaskID, in.ActorID)
			if err != nil {
				return err
			}
			task = cur.Clone()
			if cur.Status == status {
				return nil
			}
			task.Status = status
			task.Updated = stamp(uc.clock)
			if err := tx.UpdateTask(ctx, task, cur.Updated); err != nil {
				return fmt.Errorf("update task: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	logf(uc.logger, domain.Logger.Info, task.ID, "status", "status set to %s", status)
	return &SetSeriesStatusOutput{Task: task}, nil
}
