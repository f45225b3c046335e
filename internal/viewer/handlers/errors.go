package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/gofiber/fiber/v3"

	"property-viewer/internal/viewer/property"
	"property-viewer/internal/viewer/service"
)

// writeError переводит доменную ошибку в HTTP-ответ.
func writeError(c fiber.Ctx, err error) error {
	body := fiber.Map{"error": err.Error()}

	status := http.StatusInternalServerError
	var malformed *property.MalformedDescriptionError
	switch {
	case errors.Is(err, property.ErrNotFound),
		errors.Is(err, service.ErrSessionNotFound),
		errors.Is(err, service.ErrFurnitureNotFound):
		status = http.StatusNotFound
	case errors.As(err, &malformed):
		status = http.StatusUnprocessableEntity
		body["field"] = malformed.Field
	case errors.Is(err, property.ErrMalformedDescription),
		errors.Is(err, service.ErrInvalidTransform):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status == http.StatusInternalServerError {
		log.Printf("[VIEWER] %s %s: %v", c.Method(), c.Path(), err)
	}
	return c.Status(status).JSON(body)
}
