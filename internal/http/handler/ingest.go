package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"bidflow/internal/importer"
	"bidflow/internal/ingestion"
	"bidflow/internal/ocr"
	"bidflow/internal/provider"
	"bidflow/internal/scheduler"
)

// Importer runs a user-initiated opportunity import.
type Importer interface {
	ImportManual(ctx context.Context, req importer.ManualImportRequest) (*importer.Result, error)
}

// SchedulerRunner runs one saved-search pass.
type SchedulerRunner interface {
	Run(ctx context.Context, opts scheduler.RunOptions) (*scheduler.RunResult, error)
}

// NotificationSink accepts OCR job completions.
type NotificationSink interface {
	NotifyOcrCompletion(ctx context.Context, batch []ocr.Notification) (ingestion.NotifyResult, error)
}

var (
	_ Importer         = (*importer.Service)(nil)
	_ SchedulerRunner  = (*scheduler.Scheduler)(nil)
	_ NotificationSink = (*ingestion.Correlator)(nil)
)

// ImportOpportunity imports one opportunity and its attachments.
// @Summary Import an opportunity
// @Tags imports
// @Accept application/json
// @Produce json
// @Param request body importer.ManualImportRequest true "import request"
// @Success 201 {object} importer.Result
// @Router /imports [post]
func ImportOpportunity(imp Importer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req importer.ManualImportRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "invalid request body")
		}

		res, err := imp.ImportManual(c.UserContext(), req)
		if err != nil {
			return importError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

func importError(c *fiber.Ctx, err error) error {
	var cfgErr *importer.ConfigurationError
	var provErr *provider.ProviderError
	switch {
	case errors.Is(err, importer.ErrInvalidRequest):
		return writeError(c, fiber.StatusBadRequest, "INVALID_REQUEST", "org_id, source and source_system_id are required and source must be supported")
	case errors.As(err, &cfgErr):
		return writeError(c, fiber.StatusUnprocessableEntity, "PROVIDER_NOT_CONFIGURED", "no API key is configured for this source")
	case errors.Is(err, importer.ErrNoDefaultProject):
		return writeError(c, fiber.StatusUnprocessableEntity, "NO_DEFAULT_PROJECT", "organization has no default project")
	case errors.As(err, &provErr):
		if provErr.StatusCode == http.StatusNotFound {
			return writeError(c, fiber.StatusNotFound, "OPPORTUNITY_NOT_FOUND", "opportunity not found at source")
		}
		return writeError(c, fiber.StatusBadGateway, "PROVIDER_ERROR", "opportunity source request failed")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// RunScheduler triggers a pass, optionally for one ?org_id= and as a
// ?dry_run=true preview.
// @Summary Run saved searches
// @Tags scheduler
// @Produce json
// @Param org_id query string false "limit to one organization"
// @Param dry_run query bool false "search without importing"
// @Success 200 {object} scheduler.RunResult
// @Router /scheduler/run [post]
func RunScheduler(s SchedulerRunner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dryRun := false
		if v := c.Query("dry_run"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return writeError(c, fiber.StatusBadRequest, "INVALID_DRY_RUN", "dry_run must be a boolean")
			}
			dryRun = b
		}

		res, err := s.Run(c.UserContext(), scheduler.RunOptions{OrgID: c.Query("org_id"), DryRun: dryRun})
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "scheduler run failed")
		}
		return c.JSON(res)
	}
}

// ReceiveOcrNotifications is the OCR provider's completion webhook. Store
// failures answer 500 so the provider redelivers; resume is idempotent.
// @Summary OCR completion webhook
// @Tags ocr
// @Accept application/json
// @Produce json
// @Success 200 {object} ingestion.NotifyResult
// @Router /ocr/notifications [post]
func ReceiveOcrNotifications(sink NotificationSink) fiber.Handler {
	return func(c *fiber.Ctx) error {
		headers := make(http.Header)
		for k, vs := range c.GetReqHeaders() {
			for _, v := range vs {
				headers.Add(k, v)
			}
		}

		batch, err := ocr.ParseNotifications(c.UserContext(), headers, c.Body())
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_NOTIFICATION", "notification payload could not be decoded")
		}

		res, err := sink.NotifyOcrCompletion(c.UserContext(), batch)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "notification could not be processed")
		}
		return c.JSON(res)
	}
}
