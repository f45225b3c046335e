package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
)

// Register подключает маршруты viewer к приложению.
func Register(app *fiber.App, h *ViewerHandler, db Pinger, metrics http.Handler) {
	app.Get("/health/live", LivenessProbe)
	app.Get("/health/ready", ReadinessProbe(db))
	if metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(metrics))
	}

	app.Get("/layouts", h.ListLayouts)
	app.Put("/layouts/:id", h.PutLayout)
	app.Post("/layouts/:id/reload", h.ReloadLayout)
	app.Get("/layouts/:id/master", h.GetMaster)
	app.Post("/layouts/:id/sessions", h.OpenSession)

	app.Get("/sessions/:token", h.GetSession)
	app.Patch("/sessions/:token/rooms/:room/furniture/:index", h.MoveFurniture)
	app.Delete("/sessions/:token", h.CloseSession)

	app.Post("/import", h.Import)
}
