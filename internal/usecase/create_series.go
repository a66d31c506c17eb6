package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/runoshun/taskcal/internal/domain"
)

// CreateSeriesInput contains the parameters for creating a series.
// Fields are ordered to minimize memory padding.
type CreateSeriesInput struct {
	Recurrence      domain.RecurrenceSpec // Zero value = once
	ActorID         string                // Owner (required)
	Title           string                // Title (required)
	Icon            string                // Icon name (optional)
	LocalDate       string                // YYYY-MM-DD in Timezone
	LocalTime       string                // HH:MM in Timezone
	Timezone        string                // IANA zone
	DurationMinutes int
}

// CreateSeriesOutput contains the created series.
type CreateSeriesOutput struct {
	Task *domain.Task
}

// CreateSeries is the use case for creating a series.
type CreateSeries struct {
	store  domain.Store
	ids    domain.IDGenerator
	clock  domain.Clock
	logger domain.Logger
	limits domain.Limits
}

// NewCreateSeries creates a new CreateSeries use case.
func NewCreateSeries(store domain.Store, ids domain.IDGenerator, clock domain.Clock, logger domain.Logger, limits domain.Limits) *CreateSeries {
	return &CreateSeries{
		store:  store,
		ids:    ids,
		clock:  clock,
		logger: logger,
		limits: limits,
	}
}

// Execute validates the input and stores a new series.
func (uc *CreateSeries) Execute(ctx context.Context, in CreateSeriesInput) (*CreateSeriesOutput, error) {
	task, err := buildSeries(in, uc.ids.NewID(), uc.limits, stamp(uc.clock))
	if err != nil {
		return nil, err
	}

	err = uc.store.Atomic(ctx, func(tx domain.Tx) error {
		return tx.InsertTask(ctx, task)
	})
	if err != nil {
		return nil, fmt.Errorf("save task: %w", err)
	}

	logf(uc.logger, domain.Logger.Info, task.ID, "create", "created %q (%s)", task.Title, ruleLabel(task))
	return &CreateSeriesOutput{Task: task}, nil
}

// buildSeries validates in and builds the task it describes.
func buildSeries(in CreateSeriesInput, id string, limits domain.Limits, now time.Time) (*domain.Task, error) {
	if in.ActorID == "" {
		return nil, domain.ErrNoActor
	}
	if err := domain.ValidateTitle(in.Title); err != nil {
		return nil, err
	}
	if err := limits.ValidateDuration(in.DurationMinutes); err != nil {
		return nil, err
	}
	dtstart, err := domain.ToUTC(in.LocalDate, in.LocalTime, in.Timezone)
	if err != nil {
		return nil, err
	}
	rule, err := in.Recurrence.Rule(in.Timezone)
	if err != nil {
		return nil, err
	}
	if rule != nil {
		if err := limits.ValidateRule(*rule, dtstart); err != nil {
			return nil, err
		}
	}

	return &domain.Task{
		ID:              id,
		UserID:          in.ActorID,
		Title:           strings.TrimSpace(in.Title),
		Icon:            strings.TrimSpace(in.Icon),
		Timezone:        strings.TrimSpace(in.Timezone),
		DTStart:         dtstart,
		DurationMinutes: in.DurationMinutes,
		Rule:            rule,
		Status:          domain.StatusActive,
		Created:         now,
		Updated:         now,
	}, nil
}

func ruleLabel(task *domain.Task) string {
	if task.Rule == nil {
		return "once"
	}
	return task.Rule.String()
}
