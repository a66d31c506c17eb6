package usecase

import (
	"context"
	"fmt"

	"github.com/runoshun/taskcal/internal/domain"
)

// CreateSeriesFromFileInput contains the parameters for a bulk import.
type CreateSeriesFromFileInput struct {
	ActorID         string // Owner of every imported series
	Content         string // YAML content
	DefaultTimezone string // Used by entries without a timezone
	DryRun          bool   // If true, validate without creating series
}

// CreateSeriesFromFileOutput contains the created series (or the series that
// would be created in dry-run mode).
type CreateSeriesFromFileOutput struct {
	Tasks []*domain.Task
}

// CreateSeriesFromFile is the use case for importing series from a YAML file.
// Every entry is validated before anything is written, and all entries are
// inserted in one transaction.
type CreateSeriesFromFile struct {
	store  domain.Store
	ids    domain.IDGenerator
	clock  domain.Clock
	logger domain.Logger
	limits domain.Limits
}

// NewCreateSeriesFromFile creates a new CreateSeriesFromFile use case.
func NewCreateSeriesFromFile(
	store domain.Store,
	ids domain.IDGenerator,
	clock domain.Clock,
	logger domain.Logger,
	limits domain.Limits,
) *CreateSeriesFromFile {
	return &CreateSeriesFromFile{
		store:  store,
		ids:    ids,
		clock:  clock,
		logger: logger,
		limits: limits,
	}
}

// Execute parses, validates and stores the series of the file.
func (uc *CreateSeriesFromFile) Execute(ctx context.Context, in CreateSeriesFromFileInput) (*CreateSeriesFromFileOutput, error) {
	drafts, err := domain.ParseSeriesDrafts(in.Content)
	if err != nil {
		return nil, err
	}

	now := stamp(uc.clock)
	tasks := make([]*domain.Task, 0, len(drafts))
	for i, d := range drafts {
		zone := d.Timezone
		if zone == "" {
			zone = in.DefaultTimezone
		}
		id := fmt.Sprintf("draft-%d", i+1)
		if !in.DryRun {
			id = uc.ids.NewID()
		}
		task, err := buildSeries(CreateSeriesInput{
			ActorID:         in.ActorID,
			Title:           d.Title,
			Icon:            d.Icon,
			LocalDate:       d.Date,
			LocalTime:       d.Time,
			Timezone:        zone,
			DurationMinutes: d.Duration,
			Recurrence:      d.Recurrence(),
		}, id, uc.limits, now)
		if err != nil {
			return nil, fmt.Errorf("series %d: %w", i+1, err)
		}
		tasks = append(tasks, task)
	}

	if in.DryRun {
		return &CreateSeriesFromFileOutput{Tasks: tasks}, nil
	}

	err = uc.store.Atomic(ctx, func(tx domain.Tx) error {
		for i, task := range tasks {
			if err := tx.InsertTask(ctx, task); err != nil {
				return fmt.Errorf("series %d: save task: %w", i+1, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, task := range tasks {
		logf(uc.logger, domain.Logger.Info, task.ID, "create", "imported %q (%s)", task.Title, ruleLabel(task))
	}
	return &CreateSeriesFromFileOutput{Tasks: tasks}, nil
}
