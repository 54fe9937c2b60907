package api

import (
	"errors"
	"log"

	"github.com/example/chat-app/domain/apperr"
	"github.com/gofiber/fiber/v2"
)

var errBadBody = apperr.Validation("invalid request body")

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return fiber.StatusBadRequest
	case apperr.KindAuthentication, apperr.KindAuthorization:
		return fiber.StatusUnauthorized
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// writeError renders err as an ErrorResponse. Internal details are logged,
// never returned.
func writeError(c *fiber.Ctx, err error) error {
	e := apperr.From(err)
	if e.Kind == apperr.KindInternal {
		log.Printf("[api] %s %s failed: %v", c.Method(), c.Path(), err)
	}
	return c.Status(statusFor(e.Kind)).JSON(ErrorResponse{
		Error:   string(e.Kind),
		Message: apperr.Public(err),
	})
}

// customErrorHandler handles errors that escape the handlers, including
// Fiber's own routing errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		kind := "server_error"
		switch {
		case fe.Code == fiber.StatusNotFound:
			kind = string(apperr.KindNotFound)
		case fe.Code < fiber.StatusInternalServerError:
			kind = string(apperr.KindValidation)
		}
		return c.Status(fe.Code).JSON(ErrorResponse{
			Error:   kind,
			Message: fe.Message,
		})
	}
	return writeError(c, err)
}
