package handler

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"bidflow/internal/service"
)

// ListDocuments lists documents with limit & offset, optionally scoped to
// ?project_id=.
// @Summary List documents
// @Tags documents
// @Produce json
// @Param project_id query string false "project filter"
// @Param limit query int false "page size"
// @Param offset query int false "page offset"
// @Success 200 {object} service.DocumentListResult
// @Router /documents [get]
func ListDocuments(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		res, err := svc.List(c.UserContext(), c.Query("project_id"), limit, offset)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.JSON(res)
	}
}

// UploadDocument accepts multipart/form-data with a "file" part and the
// org_id, project_id and opportunity_id fields.
// @Summary Upload a document
// @Tags documents
// @Accept multipart/form-data
// @Produce json
// @Param org_id formData string true "organization"
// @Param project_id formData string true "project"
// @Param opportunity_id formData string true "opportunity"
// @Param file formData file true "attachment"
// @Success 201 {object} model.IngestionDocument
// @Router /documents [post]
func UploadDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}

		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		doc, err := svc.Upload(c.UserContext(), service.UploadInput{
			OrgID:         c.FormValue("org_id"),
			ProjectID:     c.FormValue("project_id"),
			OpportunityID: c.FormValue("opportunity_id"),
			Filename:      fh.Filename,
			ContentType:   ct,
			Size:          fh.Size,
			Body:          f,
		})
		if err != nil {
			if errors.Is(err, service.ErrInvalidInput) {
				return writeError(c, fiber.StatusBadRequest, "INVALID_INPUT", err.Error())
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// GetDocument returns one document.
// @Summary Get a document
// @Tags documents
// @Produce json
// @Param id path string true "document id"
// @Success 200 {object} model.IngestionDocument
// @Router /documents/{id} [get]
func GetDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return documentError(c, err)
		}
		return c.JSON(doc)
	}
}

// DeleteDocument removes a terminal document.
// @Summary Delete a terminal document
// @Tags documents
// @Produce json
// @Param id path string true "document id"
// @Success 204
// @Router /documents/{id} [delete]
func DeleteDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		if err := svc.Delete(c.UserContext(), id); err != nil {
			return documentError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// CancelDocument stops an in-flight ingestion.
// @Summary Cancel ingestion
// @Tags documents
// @Produce json
// @Param id path string true "document id"
// @Success 200 {object} model.IngestionDocument
// @Router /documents/{id}/cancel [post]
func CancelDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.Cancel(c.UserContext(), id)
		if err != nil {
			return documentError(c, err)
		}
		return c.JSON(doc)
	}
}

// RetryDocument restarts a cancelled document.
// @Summary Retry a cancelled document
// @Tags documents
// @Produce json
// @Param id path string true "document id"
// @Success 202 {object} model.IngestionDocument
// @Router /documents/{id}/retry [post]
func RetryDocument(svc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ID", "invalid id format")
		}
		doc, err := svc.Retry(c.UserContext(), id)
		if err != nil {
			return documentError(c, err)
		}
		return c.Status(fiber.StatusAccepted).JSON(doc)
	}
}

func documentID(c *fiber.Ctx) (string, bool) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	return id, true
}

func documentError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
	case errors.Is(err, service.ErrInvalidState):
		return writeError(c, fiber.StatusConflict, "INVALID_STATE", "document status does not allow this operation")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
