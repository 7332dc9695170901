package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"bidflow/internal/http/middleware"
)

// errorPayload is the body of every non-2xx response.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// routeErrors covers the statuses fiber itself produces before a handler
// runs. Other statuses keep their code with an INTERNAL_ERROR body.
var routeErrors = map[int]errorEnvelope{
	fiber.StatusBadRequest:            {"BAD_REQUEST", "bad request"},
	fiber.StatusNotFound:              {"NOT_FOUND", "resource not found"},
	fiber.StatusMethodNotAllowed:      {"METHOD_NOT_ALLOWED", "method not allowed"},
	fiber.StatusRequestEntityTooLarge: {"PAYLOAD_TOO_LARGE", "request body too large"},
	fiber.StatusUnsupportedMediaType:  {"UNSUPPORTED_MEDIA_TYPE", "unsupported content type"},
	fiber.StatusUnprocessableEntity:   {"UNPROCESSABLE_ENTITY", "request could not be processed"},
}

func requestIDFromCtx(c *fiber.Ctx) string {
	if s, ok := c.Locals(middleware.RequestIDLocalKey).(string); ok {
		return s
	}
	return middleware.RequestIDFromContext(c.UserContext())
}

// writeError writes the error envelope. message must be safe to show a
// caller; internal error text never goes here.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(errorPayload{
		RequestID: requestIDFromCtx(c),
		Error:     errorEnvelope{Code: code, Message: message},
	})
}

// ErrorHandler renders errors that escape handlers, including fiber's own
// routing errors, in the standard envelope.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		env, ok := routeErrors[status]
		if !ok {
			env = errorEnvelope{"INTERNAL_ERROR", "internal server error"}
		}
		return writeError(c, status, env.Code, env.Message)
	}
}
