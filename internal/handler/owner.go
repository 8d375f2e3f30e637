package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/middleware"
	"github.com/quickcourt/reservation-core/internal/model"
	"github.com/quickcourt/reservation-core/internal/service"
)

// OwnerHandler serves the facility-owner dashboard: a venue's bookings and
// their summary. Admins may use it for any venue.
type OwnerHandler struct {
	Orch *service.Orchestrator
	Log  *zap.Logger
}

func NewOwnerHandler(o *service.Orchestrator, log *zap.Logger) *OwnerHandler {
	if o == nil {
		panic("nil orchestrator passed to NewOwnerHandler")
	}
	return &OwnerHandler{Orch: o, Log: log}
}

// ListVenueBookings handles GET /v1/owner/venues/:id/bookings.
// Accepts the same status/from/to/limit filters as /v1/my-bookings plus
// court_id.
func (h *OwnerHandler) ListVenueBookings(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	venueID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	f, err := listFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	if raw := c.QueryParam("court_id"); raw != "" {
		courtID, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || courtID == 0 {
			return badRequest(c, "invalid court_id")
		}
		f.CourtID = courtID
	}
	rs, err := h.Orch.ListForVenue(c.Request().Context(), venueID, actor, f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": viewReservations(rs)})
}

type statsView struct {
	VenueID      uint64               `json:"venue_id"`
	Total        int                  `json:"total"`
	ByStatus     map[model.Status]int `json:"by_status"`
	RevenueCents int64                `json:"revenue_cents"`
}

// VenueStats handles GET /v1/owner/venues/:id/stats.
func (h *OwnerHandler) VenueStats(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	venueID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	st, err := h.Orch.VenueStats(c.Request().Context(), venueID, actor)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, statsView{
		VenueID:      st.VenueID,
		Total:        st.Total,
		ByStatus:     st.ByStatus,
		RevenueCents: st.RevenueCents,
	})
}
