package dashboard

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	perrors "github.com/p-blackswan/skillforge/internal/errors"
)

func problemResponse(c *fiber.Ctx, status int, errType, title, detail string) error {
	return c.Status(status).JSON(ProblemDetail{
		Type:     errType,
		Title:    title,
		Status:   status,
		Detail:   detail,
		Instance: c.Path(),
	})
}

// statusFor maps domain errors onto HTTP.
func statusFor(err error) (int, string, string) {
	switch {
	case errors.Is(err, perrors.ErrInvalidInput):
		return fiber.StatusBadRequest, "invalid_input", "Bad Request"
	case errors.Is(err, perrors.ErrNoSkills):
		return fiber.StatusBadRequest, "no_skills", "Bad Request"
	case errors.Is(err, perrors.ErrMissingAPIKey):
		return fiber.StatusBadRequest, "missing_api_key", "Bad Request"
	case errors.Is(err, perrors.ErrNotFound):
		return fiber.StatusNotFound, "not_found", "Not Found"
	case errors.Is(err, perrors.ErrTooLarge):
		return fiber.StatusRequestEntityTooLarge, "too_large", "Payload Too Large"
	case errors.Is(err, perrors.ErrUnavailable):
		return fiber.StatusServiceUnavailable, "unavailable", "Service Unavailable"
	default:
		return fiber.StatusInternalServerError, "internal_error", "Internal Server Error"
	}
}

func (h *Handlers) fail(c *fiber.Ctx, err error) error {
	status, errType, title := statusFor(err)
	detail := err.Error()
	if status == fiber.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		detail = "An internal error occurred"
	}
	return problemResponse(c, status, errType, title, detail)
}

func customErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}

		logger.Error().
			Err(err).
			Int("status", code).
			Str("path", c.Path()).
			Str("method", c.Method()).
			Msg("unhandled error")

		title, detail := "Internal Server Error", "An internal error occurred"
		if code != fiber.StatusInternalServerError {
			title, detail = fe.Message, err.Error()
		}

		return c.Status(code).JSON(ProblemDetail{
			Type:     "http_error",
			Title:    title,
			Status:   code,
			Detail:   detail,
			Instance: c.Path(),
		})
	}
}
