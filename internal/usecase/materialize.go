package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/runoshun/taskcal/internal/domain"
)

// MaterializeInput contains the parameters for listing occurrences.
// Fields are ordered to minimize memory padding.
type MaterializeInput struct {
	From    time.Time // Window start (inclusive)
	To      time.Time // Window end (inclusive)
	ActorID string    // Only this actor's series
	TaskIDs []string  // Optional: restrict to these series
}

// MaterializeOutput contains the occurrences of the window.
type MaterializeOutput struct {
	Instances     []domain.CalculatedInstance
	CappedTaskIDs []string // Series truncated by the occurrence cap
}

// Materialize is the use case for computing the occurrences of a window.
type Materialize struct {
	store  domain.SeriesReader
	logger domain.Logger
	limits domain.Limits
}

// NewMaterialize creates a new Materialize use case.
func NewMaterialize(store domain.SeriesReader, logger domain.Logger, limits domain.Limits) *Materialize {
	return &Materialize{
		store:  store,
		logger: logger,
		limits: limits,
	}
}

// Execute loads the actor's active series and their exceptions for the window
// and overlays them.
func (uc *Materialize) Execute(ctx context.Context, in MaterializeInput) (*MaterializeOutput, error) {
	if in.ActorID == "" {
		return nil, domain.ErrNoActor
	}
	window, err := domain.NewWindow(in.From, in.To)
	if err != nil {
		return nil, err
	}

	tasks, err := uc.store.ListTasks(ctx, domain.TaskFilter{
		UserID: in.ActorID,
		Status: domain.StatusActive,
		IDs:    in.TaskIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return &MaterializeOutput{}, nil
	}

	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	exceptions, err := uc.store.ListExceptions(ctx, domain.ExceptionFilter{TaskIDs: ids, Window: &window})
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}

	result, err := domain.Materialize(tasks, exceptions, window, uc.limits)
	if err != nil {
		return nil, err
	}
	for _, id := range result.CappedTaskIDs {
		logf(uc.logger, domain.Logger.Warn, id, "expand", "occurrences limited to %d", uc.limits.Normalize().MaxOccurrences)
	}

	return &MaterializeOutput{
		Instances:     result.Instances,
		CappedTaskIDs: result.CappedTaskIDs,
	}, nil
}
