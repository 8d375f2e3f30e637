package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/service"
)

// writeError maps service outcomes to HTTP responses. Unexpected errors are
// logged and reported as 500 without detail.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	var te *service.TransitionError
	switch {
	case errors.As(err, &te):
		body := echo.Map{"error": "invalid_transition", "from": te.From, "to": te.To}
		if te.Reason != "" {
			body["reason"] = te.Reason
		}
		return c.JSON(http.StatusConflict, body)
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": err.Error()})
	case errors.Is(err, service.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_request", "message": err.Error()})
	case errors.Is(err, service.ErrSlotUnavailable):
		return c.JSON(http.StatusConflict, echo.Map{"error": "slot_unavailable", "message": err.Error()})
	case errors.Is(err, service.ErrInvalidTransition):
		return c.JSON(http.StatusConflict, echo.Map{"error": "invalid_transition", "message": err.Error()})
	case errors.Is(err, service.ErrUnauthorized):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden", "message": err.Error()})
	}
	log.Error("request failed",
		zap.String("method", c.Request().Method),
		zap.String("route", c.Path()),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// maxSlotMinutes caps request durations before they are converted to a
// time.Duration.
const maxSlotMinutes = 24 * 60

var errDuration = errors.New("duration must be minutes (e.g. 90) or a duration (e.g. 1h30m)")
