// Package usecase contains application use cases.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/runoshun/taskcal/internal/domain"
)

// retryConflict runs fn and, when it fails with ErrConflict, runs it once more.
// A second conflict is reported as ErrRetryLater.
func retryConflict(ctx context.Context, logger domain.Logger, taskID string, fn func(ctx context.Context) error) error {
	err := fn(ctx)
	if !errors.Is(err, domain.ErrConflict) {
		return err
	}
	logf(logger, domain.Logger.Debug, taskID, "conflict", "retrying after conflict: %v", err)

	err = fn(ctx)
	if errors.Is(err, domain.ErrConflict) {
		logf(logger, domain.Logger.Warn, taskID, "conflict", "giving up after retry: %v", err)
		return fmt.Errorf("%w: %w", domain.ErrRetryLater, err)
	}
	return err
}

// loadOwned reads the task inside tx and checks that actorID owns it.
func loadOwned(ctx context.Context, tx domain.SeriesReader, taskID, actorID string) (*domain.Task, error) {
	if actorID == "" {
		return nil, domain.ErrNoActor
	}
	task, err := tx.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	if task == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, taskID)
	}
	if !task.OwnedBy(actorID) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnauthorized, taskID)
	}
	return task, nil
}

// requireOccurrence checks that original is an occurrence of the unmodified task.
func requireOccurrence(task *domain.Task, original time.Time, limits domain.Limits) error {
	ok, err := domain.IsOccurrence(task, original, limits)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewValidationError("original_start", "%s is not an occurrence of task %s",
			original.UTC().Format(time.RFC3339), task.ID)
	}
	return nil
}

// stamp returns the write timestamp for rows. Stores keep microseconds.
func stamp(clock domain.Clock) time.Time {
	return clock.Now().UTC().Truncate(time.Microsecond)
}

func logf(logger domain.Logger, level func(domain.Logger, string, string, string), taskID, category, format string, args ...any) {
	if logger == nil {
		return
	}
	level(logger, taskID, category, fmt.Sprintf(format, args...))
}
