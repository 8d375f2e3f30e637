package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/quickcourt/reservation-core/internal/handler"
	"github.com/quickcourt/reservation-core/internal/middleware"
	"github.com/quickcourt/reservation-core/internal/model"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Health  *handler.HealthHandler
	Auth    *handler.AuthHandler
	Catalog *handler.CatalogHandler
	Hub     *handler.AvailabilityHub
	Booking *handler.BookingHandler
	Owner   *handler.OwnerHandler
	Admin   *handler.AdminHandler
}

// Register mounts every route. cache wraps the public catalog reads only.
func Register(e *echo.Echo, h Handlers, jwtSecret string, cache echo.MiddlewareFunc) {
	e.GET("/healthz", h.Health.Health)
	RegisterAuth(e, h.Auth, jwtSecret)
	RegisterPublic(e, h.Catalog, h.Hub, cache)
	RegisterBooking(e, h.Booking, jwtSecret)
	RegisterOwner(e, h.Owner, jwtSecret)
	RegisterAdmin(e, h.Admin, jwtSecret)
}

// RegisterAuth mounts /v1/auth. Only /me needs a session.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/verify-otp", a.VerifyOTP)
	g.POST("/resend-otp", a.ResendOTP)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	// logout accepts a refresh token, a bearer token, or both
	g.POST("/logout", a.Logout, middleware.OptionalJWT(jwtSecret))
	g.GET("/me", a.Me, middleware.JWTAuth(jwtSecret))
}

// RegisterPublic mounts unauthenticated catalog and availability reads.
// Free windows are not response-cached; they have their own versioned cache
// that is invalidated on every booking.
func RegisterPublic(e *echo.Echo, c *handler.CatalogHandler, hub *handler.AvailabilityHub, cache echo.MiddlewareFunc) {
	e.GET("/v1/venues", c.ListVenues, cache)
	e.GET("/v1/venues/:id", c.GetVenue, cache)
	e.GET("/v1/venues/:id/courts", c.ListCourts, cache)
	e.GET("/v1/courts/:id/free-windows", c.FreeWindows)
	e.GET("/v1/courts/:id/availability", c.Availability)
	e.GET("/v1/courts/:id/availability/ws", hub.Subscribe)
}

// RegisterBooking mounts the booking endpoints. Any signed-in role may call
// them; what each role may do to a given reservation is decided by the
// ledger.
func RegisterBooking(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	auth := middleware.JWTAuth(jwtSecret)
	anyRole := middleware.RequireRole(model.RoleUser, model.RoleFacilityOwner, model.RoleAdmin)

	g := e.Group("/v1/bookings", auth, anyRole)
	g.POST("", b.Create)
	g.GET("/:id", b.Get)
	g.POST("/:id/status", b.UpdateStatus)
	g.DELETE("/:id", b.Cancel)
	g.GET("/:id/receipt.pdf", b.Receipt)
	g.GET("/:id/qr.png", b.QRCode)

	e.GET("/v1/my-bookings", b.ListMine, auth, anyRole)
}

// RegisterOwner mounts the facility-owner dashboard.
func RegisterOwner(e *echo.Echo, o *handler.OwnerHandler, jwtSecret string) {
	g := e.Group("/v1/owner",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleFacilityOwner, model.RoleAdmin),
	)
	g.GET("/venues/:id/bookings", o.ListVenueBookings)
	g.GET("/venues/:id/stats", o.VenueStats)
}

// RegisterAdmin mounts platform moderation endpoints.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.POST("/venues/:id/active", a.SetVenueActive)
	g.GET("/users", a.ListUsers)
	g.POST("/users/:id/active", a.SetUserActive)
	g.POST("/sweep", a.Sweep)
}
