package usecase

import (
	"bytes"
	"context"
	"fmt"

	"github.com/runoshun/taskcal/internal/domain"
)

// ExportICSInput contains the parameters for exporting a series.
type ExportICSInput struct {
	ActorID string
	TaskID  string
}

// ExportICSOutput contains the iCalendar document.
type ExportICSOutput struct {
	Data []byte
}

// ExportICS is the use case for exporting one series as iCalendar.
type ExportICS struct {
	store   domain.SeriesReader
	encoder domain.CalendarEncoder
	limits  domain.Limits
}

// NewExportICS creates a new ExportICS use case.
func NewExportICS(store domain.SeriesReader, encoder domain.CalendarEncoder, limits domain.Limits) *ExportICS {
	return &ExportICS{
		store:   store,
		encoder: encoder,
		limits:  limits,
	}
}

// Execute renders the series with its exceptions.
func (uc *ExportICS) Execute(ctx context.Context, in ExportICSInput) (*ExportICSOutput, error) {
	task, err := loadOwned(ctx, uc.store, in.TaskID, in.ActorID)
	if err != nil {
		return nil, err
	}
	exceptions, err := uc.store.ListExceptions(ctx, domain.ExceptionFilter{TaskIDs: []string{task.ID}})
	if err != nil {
		return nil, fmt.Errorf("list exceptions: %w", err)
	}

	var buf bytes.Buffer
	if err := uc.encoder.EncodeSeries(&buf, task, exceptions, uc.limits); err != nil {
		return nil, fmt.Errorf("encode calendar: %w", err)
	}
	return &ExportICSOutput{Data: buf.Bytes()}, nil
}
