// Package httpapi exposes the series operations over HTTP.
package httpapi

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/runoshun/taskcal/internal/domain"
	"github.com/runoshun/taskcal/internal/usecase"
)

// UseCases holds the operations served by the API.
type UseCases struct {
	CreateSeries         *usecase.CreateSeries
	CreateSeriesFromFile *usecase.CreateSeriesFromFile
	Materialize          *usecase.Materialize
	EditOccurrence       *usecase.EditOccurrence
	DeleteOccurrence     *usecase.DeleteOccurrence
	ToggleCompletion     *usecase.ToggleCompletion
	SetSeriesStatus      *usecase.SetSeriesStatus
	ExportICS            *usecase.ExportICS
}

// Server is the HTTP front end.
type Server struct {
	app     *fiber.App
	logger  domain.Logger
	uc      UseCases
	secret  []byte
	defZone string
}

// New creates a Server. Bearer tokens are verified with secret (HS256).
// defaultZone is used by imports whose entries have no timezone.
func New(uc UseCases, secret string, defaultZone string, logger domain.Logger) *Server {
	s := &Server{
		uc:      uc,
		secret:  []byte(secret),
		defZone: defaultZone,
		logger:  logger,
	}
	s.app = fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "taskcal",
	})
	s.routes()
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("", "http", "listening on "+addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) routes() {
	api := s.app.Group("/api")
	api.Use(s.authMiddleware)

	api.Post("/series", s.createSeries)
	api.Post("/series/import", s.importSeries)
	api.Put("/series/:id/status", s.setStatus)
	api.Get("/series/:id/ics", s.exportICS)
	api.Patch("/series/:id/occurrences/:start", s.editOccurrence)
	api.Delete("/series/:id/occurrences/:start", s.deleteOccurrence)
	api.Put("/series/:id/occurrences/:start/completion", s.toggleCompletion)
	api.Get("/instances", s.materialize)
}

// fail writes the response for a use case error.
func (s *Server) fail(c *fiber.Ctx, err error) error {
	status := statusOf(err)
	body := fiber.Map{"error": err.Error()}
	switch status {
	case fiber.StatusUnprocessableEntity:
		if field := domain.FieldOf(err); field != "" {
			body["field"] = field
		}
	case fiber.StatusConflict:
		body["error"] = domain.ErrRetryLater.Error()
	case fiber.StatusInternalServerError:
		s.logger.Error("", "http", fmt.Sprintf("%s %s: %v", c.Method(), c.Path(), err))
		body["error"] = "internal error"
	}
	return c.Status(status).JSON(body)
}

// statusOf maps domain errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrCapExceeded),
		errors.Is(err, domain.ErrEmptyFile), errors.Is(err, domain.ErrNoSeriesInFile):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoActor):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusForbidden
	case errors.Is(err, domain.ErrTaskNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrRetryLater), errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrNotInitialized):
		return fiber.StatusServiceUnavailable
	}
	return fiber.StatusInternalServerError
}

// parseInstant parses an RFC 3339 request value.
func parseInstant(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, domain.NewValidationError(field, "%s is required", field)
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "invalid %s %q, want RFC 3339", field, value)
	}
	return t.UTC(), nil
}

// parseScope reads the scope query parameter, defaulting to single.
func parseScope(c *fiber.Ctx) (domain.Scope, error) {
	return domain.ParseScope(c.Query("scope"))
}
