package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/middleware"
	"github.com/quickcourt/reservation-core/internal/model"
	"github.com/quickcourt/reservation-core/internal/service"
)

// BookingHandler serves the player-facing booking endpoints. JWTAuth must
// run first; every method reads the caller from the context.
type BookingHandler struct {
	Orch *service.Orchestrator
	Log  *zap.Logger
}

func NewBookingHandler(o *service.Orchestrator, log *zap.Logger) *BookingHandler {
	if o == nil {
		panic("nil orchestrator passed to NewBookingHandler")
	}
	return &BookingHandler{Orch: o, Log: log}
}

type bookReq struct {
	CourtID         uint64     `json:"court_id"`
	Date            model.Date `json:"date"`
	Start           string     `json:"start"`
	DurationMinutes int        `json:"duration_minutes"`
	PlayerCount     *int       `json:"player_count"` // defaults to 1 when omitted
	Notes           string     `json:"notes"`
}

type bookResp struct {
	ReservationID string          `json:"reservation_id"`
	Reference     string          `json:"reference"`
	Status        model.Status    `json:"status"`
	PriceCents    int64           `json:"price_cents"`
	Reservation   reservationView `json:"reservation"`
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req bookReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	if req.CourtID == 0 {
		return badRequest(c, "court_id is required")
	}
	start, err := model.ParseClock(req.Start)
	if err != nil {
		return badRequest(c, "start must be HH:MM")
	}
	if req.DurationMinutes > maxSlotMinutes {
		return badRequest(c, "duration_minutes must not exceed 1440")
	}
	players := 1
	if req.PlayerCount != nil {
		players = *req.PlayerCount
	}
	res, err := h.Orch.Book(c.Request().Context(), service.BookRequest{
		CourtID:     req.CourtID,
		Date:        req.Date,
		Start:       start,
		Duration:    time.Duration(req.DurationMinutes) * time.Minute,
		UserID:      actor.UserID,
		PlayerCount: players,
		Notes:       req.Notes,
		Actor:       actor,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, bookResp{
		ReservationID: res.ReservationID,
		Reference:     res.Reference,
		Status:        res.Status,
		PriceCents:    res.PriceCents,
		Reservation:   viewReservation(res.Reservation),
	})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	r, err := h.Orch.Get(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, viewReservation(r))
}

type statusReq struct {
	Action string `json:"action"`
	Status string `json:"status"`
}

// UpdateStatus handles POST /v1/bookings/:id/status with either
// {"action": "approve|reject|cancel|complete"} or {"status": "<target>"}.
func (h *BookingHandler) UpdateStatus(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}
	ctx := c.Request().Context()
	id := c.Param("id")

	var (
		r   model.Reservation
		err error
	)
	switch {
	case strings.TrimSpace(req.Action) != "":
		action, ok := model.ParseAction(req.Action)
		if !ok {
			return badRequest(c, fmt.Sprintf("unknown action %q", req.Action))
		}
		r, err = h.Orch.Transition(ctx, id, action, actor)
	case strings.TrimSpace(req.Status) != "":
		st, ok := model.ParseStatus(req.Status)
		if !ok {
			return badRequest(c, fmt.Sprintf("unknown status %q", req.Status))
		}
		r, err = h.Orch.SetStatus(ctx, id, st, actor)
	default:
		return badRequest(c, "action or status is required")
	}
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, viewReservation(r))
}

// Cancel handles DELETE /v1/bookings/:id.
func (h *BookingHandler) Cancel(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	r, err := h.Orch.Transition(c.Request().Context(), c.Param("id"), model.ActionCancel, actor)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, viewReservation(r))
}

// ListMine handles GET /v1/my-bookings?status=&when=upcoming|past&from=&to=&limit=.
func (h *BookingHandler) ListMine(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	f, err := listFilter(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var when service.Timeframe
	switch c.QueryParam("when") {
	case "":
	case "upcoming":
		when = service.Upcoming
	case "past":
		when = service.Past
	default:
		return badRequest(c, "when must be upcoming or past")
	}
	rs, err := h.Orch.ListMine(c.Request().Context(), actor, f, when)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": viewReservations(rs)})
}

// Receipt handles GET /v1/bookings/:id/receipt.pdf.
func (h *BookingHandler) Receipt(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	pdf, r, err := h.Orch.Receipt(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		fmt.Sprintf(`inline; filename="quickcourt-%s.pdf"`, r.Reference))
	return c.Blob(http.StatusOK, "application/pdf", pdf)
}

// QRCode handles GET /v1/bookings/:id/qr.png.
func (h *BookingHandler) QRCode(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return unauthorized(c)
	}
	png, _, err := h.Orch.QRCode(c.Request().Context(), c.Param("id"), actor)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.Blob(http.StatusOK, "image/png", png)
}
