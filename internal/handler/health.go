package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness and the state of backing services. DB and
// Redis are optional; a nil dependency is reported as "disabled".
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client
	Store string
}

// Health handles GET /healthz. It answers 503 when a configured database
// does not respond; Redis outages only degrade the report.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	body := echo.Map{"status": "ok", "store": h.Store, "database": "disabled", "redis": "disabled"}
	if h.DB != nil {
		if err := h.DB.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["database"] = "down"
		} else {
			body["database"] = "up"
		}
	}
	if h.Redis != nil {
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			body["redis"] = "down"
		} else {
			body["redis"] = "up"
		}
	}
	return c.JSON(status, body)
}
