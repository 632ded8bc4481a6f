package http

import (
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	"tracker_server/core/domain"
	"tracker_server/core/port/in"
	"tracker_server/pkg/apperr"
	"tracker_server/pkg/response"
)

// JobHandler serves the user's job board.
type JobHandler struct {
	jobs in.JobService
}

func NewJobHandler(jobs in.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func (h *JobHandler) Register(router fiber.Router, mw ...fiber.Handler) {
	jobs := router.Group("/api/jobs", mw...)
	jobs.Get("/", h.List)
	jobs.Post("/", h.Create)
	jobs.Get("/stats", h.Stats)
	jobs.Patch("/:id", h.Update)
	jobs.Delete("/:id", h.Delete)
	jobs.Get("/:id/events", h.Events)

	email := router.Group("/email", mw...)
	email.Get("/by-thread/:threadId", h.PreviewByThread)
}

// =============================================================================
// Job CRUD
// =============================================================================

func (h *JobHandler) List(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	jobs, err := h.jobs.List(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return response.List(c, jobs, len(jobs))
}

// createJobRequest accepts company and role as a bare string or an entity object.
type createJobRequest struct {
	Company        json.RawMessage `json:"company"`
	Role           json.RawMessage `json:"role"`
	Source         string          `json:"source"`
	AppliedDate    string          `json:"appliedDate"`
	CurrentStatus  string          `json:"currentStatus"`
	JobDescription string          `json:"jobDescription"`
}

func (h *JobHandler) Create(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var body createJobRequest
	if err := parseBody(c, &body); err != nil {
		return err
	}

	company, err := domain.CoerceEntity(body.Company)
	if err != nil {
		return apperr.InvalidInput("company", "must be a string or an entity object")
	}
	role, err := domain.CoerceEntity(body.Role)
	if err != nil {
		return apperr.InvalidInput("role", "must be a string or an entity object")
	}
	applied, err := parseDate(body.AppliedDate)
	if err != nil {
		return apperr.InvalidInput("appliedDate", "must be RFC3339 or YYYY-MM-DD")
	}

	job, err := h.jobs.Create(c.UserContext(), userID, &in.CreateJobRequest{
		Company:        company,
		Role:           role,
		Source:         domain.JobSource(strings.ToLower(strings.TrimSpace(body.Source))),
		AppliedDate:    applied,
		CurrentStatus:  domain.JobStatus(strings.ToLower(strings.TrimSpace(body.CurrentStatus))),
		JobDescription: body.JobDescription,
	})
	if err != nil {
		return err
	}
	return response.Created(c, job)
}

// updateJobRequest only carries the user-editable fields; anything else in
// the body is ignored.
type updateJobRequest struct {
	Company        json.RawMessage `json:"company"`
	Role           json.RawMessage `json:"role"`
	CurrentStatus  *string         `json:"currentStatus"`
	JobDescription *string         `json:"jobDescription"`
}

func (h *JobHandler) Update(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}

	var body updateJobRequest
	if err := parseBody(c, &body); err != nil {
		return err
	}

	req := &in.UpdateJobRequest{JobDescription: body.JobDescription}
	if len(body.Company) > 0 {
		company, err := domain.CoerceEntity(body.Company)
		if err != nil {
			return apperr.InvalidInput("company", "must be a string or an entity object")
		}
		req.Company = &company
	}
	if len(body.Role) > 0 {
		role, err := domain.CoerceEntity(body.Role)
		if err != nil {
			return apperr.InvalidInput("role", "must be a string or an entity object")
		}
		req.Role = &role
	}
	if body.CurrentStatus != nil {
		status := domain.JobStatus(strings.ToLower(strings.TrimSpace(*body.CurrentStatus)))
		req.CurrentStatus = &status
	}

	job, err := h.jobs.Update(c.UserContext(), userID, c.Params("id"), req)
	if err != nil {
		return err
	}
	return response.OK(c, job)
}

func (h *JobHandler) Delete(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	if err := h.jobs.Delete(c.UserContext(), userID, c.Params("id")); err != nil {
		return err
	}
	return response.NoContent(c)
}

// =============================================================================
// Dashboard
// =============================================================================

func (h *JobHandler) Stats(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	stats, err := h.jobs.Stats(c.UserContext(), userID)
	if err != nil {
		return err
	}
	return response.OK(c, stats)
}

// Events returns the status timeline of one job.
func (h *JobHandler) Events(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	events, err := h.jobs.Timeline(c.UserContext(), userID, c.Params("id"))
	if err != nil {
		return err
	}
	return response.List(c, events, len(events))
}

// PreviewByThread returns the latest stored snapshot of a thread, or null.
func (h *JobHandler) PreviewByThread(c *fiber.Ctx) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	snap, err := h.jobs.PreviewByThread(c.UserContext(), userID, c.Params("threadId"))
	if err != nil {
		return err
	}
	return response.OK(c, snap)
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
