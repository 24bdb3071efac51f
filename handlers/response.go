package handlers

import (
	"errors"
	"net/url"

	"github.com/fenilmodi00/govdash-backend/shared"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// retryAfterSeconds matches the open interval of the backend circuit breakers.
const retryAfterSeconds = "30"

func respondData(c *fiber.Ctx, data interface{}) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// respondError writes the error envelope with the status mapped from err.
// Retryable upstream failures carry a Retry-After hint.
func respondError(c *fiber.Ctx, err error) error {
	status := shared.HTTPStatusFor(err)
	fields := logrus.Fields{
		"request_id": RequestID(c),
		"path":       c.Path(),
		"status":     status,
	}
	var serviceErr *shared.ServiceError
	switch {
	case status < fiber.StatusInternalServerError:
		logrus.WithFields(fields).WithError(err).Debug("Request rejected")
	case errors.As(err, &serviceErr):
		serviceErr.LogError(fields)
	default:
		logrus.WithFields(fields).WithError(err).Warn("Request failed")
	}
	if shared.IsRetryableError(err) {
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds)
	}
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"error":   err.Error(),
	})
}

func respondNotFound(c *fiber.Ctx, entity, id string) error {
	return respondError(c, shared.NewNotFoundError(entity, id))
}

// pathParam returns a route parameter with percent-escapes decoded, so
// proposal IDs can be sent as {txhash}%23{index}.
func pathParam(c *fiber.Ctx, name string) string {
	raw := c.Params(name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
