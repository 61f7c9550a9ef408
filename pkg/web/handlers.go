// Package web provides the HTTP API for campaigns, runs, alerts and reports.
package web

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/adopshq/adflow/pkg/alerts"
	"github.com/adopshq/adflow/pkg/coordinator"
	"github.com/adopshq/adflow/pkg/graph"
	"github.com/adopshq/adflow/pkg/models"
	"github.com/adopshq/adflow/pkg/persistence"
	"github.com/adopshq/adflow/pkg/reports"
	"github.com/adopshq/adflow/pkg/steps/create"
)

type APIHandlers struct {
	persistence   persistence.Persistence
	coordinator   *coordinator.Coordinator
	creator       *create.Creator
	alertService  *alerts.Service
	reportService *reports.Service
	validator     *validator.Validate
}

func NewAPIHandlers(
	p persistence.Persistence,
	coord *coordinator.Coordinator,
	creator *create.Creator,
	alertService *alerts.Service,
	reportService *reports.Service,
) *APIHandlers {
	return &APIHandlers{
		persistence:   p,
		coordinator:   coord,
		creator:       creator,
		alertService:  alertService,
		reportService: reportService,
		validator:     validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes attaches the API endpoints to a fiber app.
func (h *APIHandlers) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.HealthCheck)

	app.Post("/campaigns", h.CreateCampaign)
	app.Get("/campaigns", h.GetCampaigns)
	app.Get("/campaigns/:id", h.GetCampaign)
	app.Post("/campaigns/:id/runs", h.TriggerRun)
	app.Get("/campaigns/:id/runs", h.GetCampaignRuns)
	app.Get("/campaigns/:id/alerts", h.GetCampaignAlerts)
	app.Get("/campaigns/:id/reports", h.GetCampaignReports)

	app.Get("/runs/:id", h.GetRun)
	app.Post("/runs/:id/resume", h.ResumeRun)
	app.Post("/runs/:id/cancel", h.CancelRun)

	app.Post("/alerts/:id/acknowledge", h.AcknowledgeAlert)
	app.Post("/alerts/:id/resolve", h.ResolveAlert)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	err := h.persistence.HealthCheck(c.Context())
	if err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

// CreateCampaign drafts a campaign from a natural-language brief. The brief
// is parsed by the Decision Provider and validated; every violation is
// reported in a single response.
func (h *APIHandlers) CreateCampaign(c fiber.Ctx) error {
	var req CreateCampaignRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	campaign, err := h.creator.CreateFromPrompt(c.Context(), req.Prompt)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(campaign)
}

func (h *APIHandlers) GetCampaigns(c fiber.Ctx) error {
	campaigns, err := h.persistence.Campaigns().Campaigns(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"campaigns": campaigns})
}

func (h *APIHandlers) GetCampaign(c fiber.Ctx) error {
	campaign, err := h.persistence.Campaigns().CampaignByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(campaign)
}

// TriggerRun starts a workflow run for a campaign. A second trigger while a
// run is active returns 409 with the run_already_active type.
func (h *APIHandlers) TriggerRun(c fiber.Ctx) error {
	var req TriggerRunRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	graphName := req.Graph
	if graphName == "" {
		graphName = graph.GraphMonitoring
	}

	run, err := h.coordinator.Trigger(c.Context(), c.Params("id"), graphName, req.Context)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(run)
}

func (h *APIHandlers) GetCampaignRuns(c fiber.Ctx) error {
	runs, err := h.persistence.Runs().RunsByCampaign(c.Context(), c.Params("id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"runs": runs})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	run, err := h.persistence.Runs().RunByID(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) ResumeRun(c fiber.Ctx) error {
	run, err := h.coordinator.Resume(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(run)
}

// CancelRun requests cooperative cancellation; the run stops at the next
// node boundary.
func (h *APIHandlers) CancelRun(c fiber.Ctx) error {
	err := h.coordinator.Cancel(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "cancellation_requested"})
}

func (h *APIHandlers) GetCampaignAlerts(c fiber.Ctx) error {
	var status *models.AlertStatus

	if statusStr := c.Query("status"); statusStr != "" {
		s := models.AlertStatus(statusStr)
		status = &s
	}

	alertList, err := h.alertService.List(c.Context(), c.Params("id"), status)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"alerts": alertList})
}

func (h *APIHandlers) AcknowledgeAlert(c fiber.Ctx) error {
	err := h.alertService.Acknowledge(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": "acknowledged"})
}

func (h *APIHandlers) ResolveAlert(c fiber.Ctx) error {
	err := h.alertService.Resolve(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{"status": "resolved"})
}

func (h *APIHandlers) GetCampaignReports(c fiber.Ctx) error {
	artifacts, err := h.reportService.List(c.Context(), c.Params("id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{"reports": artifacts})
}
