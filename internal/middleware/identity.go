package middleware

// identity.go holds the context keys set by JWTAuth and the helpers used to
// read them back in handlers and other middleware.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/quickcourt/reservation-core/internal/model"
)

const (
	ctxActor  = "actor"
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// ActorFrom returns the authenticated caller, if any.
func ActorFrom(c echo.Context) (model.Actor, bool) {
	a, ok := c.Get(ctxActor).(model.Actor)
	return a, ok && a.UserID != 0
}

// userKey identifies the caller for rate limiting; "anon" when the request
// is unauthenticated.
func userKey(c echo.Context) string {
	if id, ok := c.Get(ctxUserID).(uint64); ok && id != 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
