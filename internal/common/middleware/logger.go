package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// ============================================================
// Logger Middleware
// ============================================================

const (
	devFormat  = "[${time}] ${status} - ${latency} ${method} ${path} | session: ${locals:session}\n"
	prodFormat = "${time} ${status} ${latency} ${method} ${path}\n"
)

// Logger возвращает middleware для логирования запросов к viewer.
// В production токен сессии не пишется, пробы и /metrics пропускаются.
func Logger(env string) fiber.Handler {
	cfg := logger.Config{
		Format:     loggerFormat(env),
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}
	if isProduction(env) {
		cfg.TimeFormat = "2006-01-02T15:04:05Z07:00"
		cfg.TimeZone = "UTC"
		cfg.Next = skipProbes
	}
	return logger.New(cfg)
}

func loggerFormat(env string) string {
	if isProduction(env) {
		return prodFormat
	}
	return devFormat
}

func isProduction(env string) bool {
	env = strings.ToLower(env)
	return env == "production" || env == "prod"
}

func skipProbes(c fiber.Ctx) bool {
	path := c.Path()
	return strings.HasPrefix(path, "/health/") || path == "/metrics"
}
