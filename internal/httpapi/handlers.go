package httpapi

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/runoshun/taskcal/internal/domain"
	"github.com/runoshun/taskcal/internal/usecase"
)

// createRequest is the body of POST /api/series.
type createRequest struct {
	Repeat          domain.RecurrenceSpec `json:"repeat"`
	Title           string                `json:"title"`
	Icon            string                `json:"icon"`
	Date            string                `json:"date"`
	Time            string                `json:"time"`
	Timezone        string                `json:"timezone"`
	DurationMinutes int                   `json:"duration_minutes"`
}

// editRequest is the body of PATCH .../occurrences/:start.
// An absent key leaves the value alone, null clears it.
type editRequest struct {
	Start      domain.Field[time.Time] `json:"start"`
	Title      domain.Field[string]    `json:"title"`
	Icon       domain.Field[string]    `json:"icon"`
	Timezone   domain.Field[string]    `json:"timezone"`
	Recurrence domain.Field[string]    `json:"recurrence"` // e.g. "FREQ=WEEKLY;INTERVAL=1;COUNT=4"
	Duration   domain.Field[int]       `json:"duration_minutes"`
}

func (r editRequest) changes() (domain.OccurrenceChanges, error) {
	ch := domain.OccurrenceChanges{
		Start:    r.Start,
		Title:    r.Title,
		Icon:     r.Icon,
		Timezone: r.Timezone,
		Duration: r.Duration,
	}
	switch {
	case r.Recurrence.IsCleared():
		ch.Recurrence = domain.Cleared[domain.RecurrenceRule]()
	case !r.Recurrence.IsUnchanged():
		text, _ := r.Recurrence.Get()
		rule, err := domain.ParseRule(text)
		if err != nil {
			return ch, err
		}
		ch.Recurrence = domain.SetTo(rule)
	}
	return ch, nil
}

type completionRequest struct {
	Complete bool `json:"complete"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (s *Server) createSeries(c *fiber.Ctx) error {
	var req createRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, domain.NewValidationError("body", "invalid request body: %v", err))
	}
	out, err := s.uc.CreateSeries.Execute(c.UserContext(), usecase.CreateSeriesInput{
		ActorID:         actorOf(c),
		Title:           req.Title,
		Icon:            req.Icon,
		LocalDate:       req.Date,
		LocalTime:       req.Time,
		Timezone:        req.Timezone,
		DurationMinutes: req.DurationMinutes,
		Recurrence:      req.Repeat,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(newTaskResponse(out.Task))
}

func (s *Server) importSeries(c *fiber.Ctx) error {
	out, err := s.uc.CreateSeriesFromFile.Execute(c.UserContext(), usecase.CreateSeriesFromFileInput{
		ActorID:         actorOf(c),
		Content:         string(c.Body()),
		DefaultTimezone: s.defZone,
		DryRun:          c.QueryBool("dry_run"),
	})
	if err != nil {
		return s.fail(c, err)
	}
	tasks := make([]taskResponse, 0, len(out.Tasks))
	for _, t := range out.Tasks {
		tasks = append(tasks, newTaskResponse(t))
	}
	status := fiber.StatusCreated
	if c.QueryBool("dry_run") {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(fiber.Map{"tasks": tasks})
}

func (s *Server) setStatus(c *fiber.Ctx) error {
	var req statusRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, domain.NewValidationError("body", "invalid request body: %v", err))
	}
	status, err := domain.ParseStatus(req.Status)
	if err != nil {
		return s.fail(c, err)
	}
	out, err := s.uc.SetSeriesStatus.Execute(c.UserContext(), usecase.SetSeriesStatusInput{
		ActorID: actorOf(c),
		TaskID:  c.Params("id"),
		Status:  status,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(newTaskResponse(out.Task))
}

func (s *Server) exportICS(c *fiber.Ctx) error {
	out, err := s.uc.ExportICS.Execute(c.UserContext(), usecase.ExportICSInput{
		ActorID: actorOf(c),
		TaskID:  c.Params("id"),
	})
	if err != nil {
		return s.fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/calendar; charset=utf-8")
	return c.Send(out.Data)
}

func (s *Server) editOccurrence(c *fiber.Ctx) error {
	original, scope, err := occurrenceParams(c)
	if err != nil {
		return s.fail(c, err)
	}
	var req editRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, domain.NewValidationError("body", "invalid request body: %v", err))
	}
	changes, err := req.changes()
	if err != nil {
		return s.fail(c, err)
	}

	out, err := s.uc.EditOccurrence.Execute(c.UserContext(), usecase.EditOccurrenceInput{
		ActorID:       actorOf(c),
		TaskID:        c.Params("id"),
		OriginalStart: original,
		Scope:         scope,
		Changes:       changes,
	})
	if err != nil {
		return s.fail(c, err)
	}
	resp := fiber.Map{"scope": out.Scope}
	if out.Task != nil {
		resp["task"] = newTaskResponse(out.Task)
	}
	if out.Exception != nil {
		resp["exception"] = newExceptionResponse(out.Exception)
	}
	return c.JSON(resp)
}

func (s *Server) deleteOccurrence(c *fiber.Ctx) error {
	original, scope, err := occurrenceParams(c)
	if err != nil {
		return s.fail(c, err)
	}
	out, err := s.uc.DeleteOccurrence.Execute(c.UserContext(), usecase.DeleteOccurrenceInput{
		ActorID:       actorOf(c),
		TaskID:        c.Params("id"),
		OriginalStart: original,
		Scope:         scope,
	})
	if err != nil {
		return s.fail(c, err)
	}
	resp := fiber.Map{"scope": out.Scope, "task_deleted": out.TaskDeleted}
	if out.Task != nil {
		resp["task"] = newTaskResponse(out.Task)
	}
	if out.Exception != nil {
		resp["exception"] = newExceptionResponse(out.Exception)
	}
	return c.JSON(resp)
}

func (s *Server) toggleCompletion(c *fiber.Ctx) error {
	original, err := startParam(c)
	if err != nil {
		return s.fail(c, err)
	}
	var req completionRequest
	if err := c.BodyParser(&req); err != nil {
		return s.fail(c, domain.NewValidationError("body", "invalid request body: %v", err))
	}
	out, err := s.uc.ToggleCompletion.Execute(c.UserContext(), usecase.ToggleCompletionInput{
		ActorID:       actorOf(c),
		TaskID:        c.Params("id"),
		OriginalStart: original,
		Complete:      req.Complete,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(newExceptionResponse(out.Exception))
}

func (s *Server) materialize(c *fiber.Ctx) error {
	from, err := parseInstant("from", c.Query("from"))
	if err != nil {
		return s.fail(c, err)
	}
	to, err := parseInstant("to", c.Query("to"))
	if err != nil {
		return s.fail(c, err)
	}
	out, err := s.uc.Materialize.Execute(c.UserContext(), usecase.MaterializeInput{
		ActorID: actorOf(c),
		From:    from,
		To:      to,
	})
	if err != nil {
		return s.fail(c, err)
	}
	instances := make([]instanceResponse, 0, len(out.Instances))
	for _, inst := range out.Instances {
		instances = append(instances, newInstanceResponse(inst))
	}
	capped := out.CappedTaskIDs
	if capped == nil {
		capped = []string{}
	}
	return c.JSON(fiber.Map{"instances": instances, "capped_task_ids": capped})
}

// startParam reads the :start path parameter.
func startParam(c *fiber.Ctx) (time.Time, error) {
	raw, err := url.PathUnescape(c.Params("start"))
	if err != nil {
		return time.Time{}, domain.NewValidationError("original_start", "invalid occurrence key: %v", err)
	}
	return parseInstant("original_start", raw)
}

func occurrenceParams(c *fiber.Ctx) (time.Time, domain.Scope, error) {
	original, err := startParam(c)
	if err != nil {
		return time.Time{}, "", err
	}
	scope, err := parseScope(c)
	if err != nil {
		return time.Time{}, "", err
	}
	return original, scope, nil
}
