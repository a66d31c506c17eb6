// Package app provides the dependency injection container for the application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/runoshun/taskcal/internal/domain"
	"github.com/runoshun/taskcal/internal/httpapi"
	"github.com/runoshun/taskcal/internal/infra/config"
	"github.com/runoshun/taskcal/internal/infra/icsexport"
	"github.com/runoshun/taskcal/internal/infra/ids"
	"github.com/runoshun/taskcal/internal/infra/jsonstore"
	"github.com/runoshun/taskcal/internal/infra/logging"
	"github.com/runoshun/taskcal/internal/infra/pgstore"
	"github.com/runoshun/taskcal/internal/usecase"
)

// Container provides dependency injection for the application.
// It holds all port implementations and provides factory methods for use cases.
type Container struct {
	// Ports (interfaces bound to implementations)
	Store            domain.Store
	StoreInitializer domain.StoreInitializer
	Clock            domain.Clock
	IDs              domain.IDGenerator
	Encoder          domain.CalendarEncoder
	Logger           domain.Logger
	ConfigLoader     domain.ConfigLoader
	ConfigManager    domain.ConfigManager

	// Loaded configuration
	Config *domain.Config

	closers []io.Closer
}

// New loads the configuration (configFile may be empty) and opens the
// configured store.
func New(ctx context.Context, configFile string) (*Container, error) {
	loader := config.NewLoader(configFile)
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := logging.New(cfg.Log.File, logging.ParseLevel(cfg.Log.Level))
	c := &Container{
		Clock:         domain.RealClock{},
		IDs:           ids.UUID{},
		Encoder:       icsexport.New(),
		Logger:        logger,
		ConfigLoader:  loader,
		ConfigManager: config.NewManager(configFile),
		Config:        cfg,
		closers:       []io.Closer{logger},
	}

	switch cfg.Store.Driver {
	case domain.StoreDriverPostgres:
		pg, err := pgstore.Open(ctx, cfg.Store.DSN)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.Store = pg
		c.StoreInitializer = pg
		c.closers = append(c.closers, pg)
	default:
		js := jsonstore.New(cfg.Store.Path)
		c.Store = js
		c.StoreInitializer = js
	}
	logger.Debug("", "app", fmt.Sprintf("using %s store", cfg.Store.Driver))
	return c, nil
}

// NewWithDeps creates a new Container with custom dependencies for testing.
func NewWithDeps(cfg *domain.Config, store domain.Store, storeInit domain.StoreInitializer, clock domain.Clock, idGen domain.IDGenerator, logger domain.Logger) *Container {
	if cfg == nil {
		cfg = domain.NewDefaultConfig()
	}
	return &Container{
		Store:            store,
		StoreInitializer: storeInit,
		Clock:            clock,
		IDs:              idGen,
		Encoder:          icsexport.New(),
		Logger:           logger,
		Config:           cfg,
	}
}

// Close releases the store connection and the log file.
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Limits returns the configured recurrence limits.
func (c *Container) Limits() domain.Limits {
	return c.Config.Limits()
}

// UseCase factory methods

// InitStoreUseCase returns a new InitStore use case.
func (c *Container) InitStoreUseCase() *usecase.InitStore {
	return usecase.NewInitStore(c.StoreInitializer, c.Logger)
}

// CreateSeriesUseCase returns a new CreateSeries use case.
func (c *Container) CreateSeriesUseCase() *usecase.CreateSeries {
	return usecase.NewCreateSeries(c.Store, c.IDs, c.Clock, c.Logger, c.Limits())
}

// CreateSeriesFromFileUseCase returns a new CreateSeriesFromFile use case.
func (c *Container) CreateSeriesFromFileUseCase() *usecase.CreateSeriesFromFile {
	return usecase.NewCreateSeriesFromFile(c.Store, c.IDs, c.Clock, c.Logger, c.Limits())
}

// MaterializeUseCase returns a new Materialize use case.
func (c *Container) MaterializeUseCase() *usecase.Materialize {
	return usecase.NewMaterialize(c.Store, c.Logger, c.Limits())
}

// EditOccurrenceUseCase returns a new EditOccurrence use case.
func (c *Container) EditOccurrenceUseCase() *usecase.EditOccurrence {
	return usecase.NewEditOccurrence(c.Store, c.IDs, c.Clock, c.Logger, c.Limits())
}

// DeleteOccurrenceUseCase returns a new DeleteOccurrence use case.
func (c *Container) DeleteOccurrenceUseCase() *usecase.DeleteOccurrence {
	return usecase.NewDeleteOccurrence(c.Store, c.IDs, c.Clock, c.Logger, c.Limits())
}

// ToggleCompletionUseCase returns a new ToggleCompletion use case.
func (c *Container) ToggleCompletionUseCase() *usecase.ToggleCompletion {
	return usecase.NewToggleCompletion(c.Store, c.IDs, c.Clock, c.Logger, c.Limits())
}

// SetSeriesStatusUseCase returns a new SetSeriesStatus use case.
func (c *Container) SetSeriesStatusUseCase() *usecase.SetSeriesStatus {
	return usecase.NewSetSeriesStatus(c.Store, c.Clock, c.Logger)
}

// ExportICSUseCase returns a new ExportICS use case.
func (c *Container) ExportICSUseCase() *usecase.ExportICS {
	return usecase.NewExportICS(c.Store, c.Encoder, c.Limits())
}

// ShowConfigUseCase returns a new ShowConfig use case.
func (c *Container) ShowConfigUseCase() *usecase.ShowConfig {
	return usecase.NewShowConfig(c.ConfigManager, c.ConfigLoader)
}

// ShowConfigTemplateUseCase returns a new ShowConfigTemplate use case.
func (c *Container) ShowConfigTemplateUseCase() *usecase.ShowConfigTemplate {
	return usecase.NewShowConfigTemplate()
}

// InitConfigUseCase returns a new InitConfig use case.
func (c *Container) InitConfigUseCase() *usecase.InitConfig {
	return usecase.NewInitConfig(c.ConfigManager)
}

// HTTPServer returns the HTTP API bound to this container's use cases.
func (c *Container) HTTPServer(defaultZone string) *httpapi.Server {
	return httpapi.New(httpapi.UseCases{
		CreateSeries:         c.CreateSeriesUseCase(),
		CreateSeriesFromFile: c.CreateSeriesFromFileUseCase(),
		Materialize:          c.MaterializeUseCase(),
		EditOccurrence:       c.EditOccurrenceUseCase(),
		DeleteOccurrence:     c.DeleteOccurrenceUseCase(),
		ToggleCompletion:     c.ToggleCompletionUseCase(),
		SetSeriesStatus:      c.SetSeriesStatusUseCase(),
		ExportICS:            c.ExportICSUseCase(),
	}, c.Config.HTTP.JWTSecret, defaultZone, c.Logger)
}
