// Public catalog and availability endpoints. No authentication is required;
// responses use the Public* views which omit owner and audit fields.

package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/model"
	"github.com/quickcourt/reservation-core/internal/service"
)

type CatalogHandler struct {
	Catalog *service.Catalog
	Avail   *service.Availability
	Log     *zap.Logger
}

func NewCatalogHandler(cat *service.Catalog, avail *service.Availability, log *zap.Logger) *CatalogHandler {
	if cat == nil || avail == nil {
		panic("nil service passed to NewCatalogHandler")
	}
	return &CatalogHandler{Catalog: cat, Avail: avail, Log: log}
}

// ListVenues handles GET /v1/venues?q=&sport=.
func (h *CatalogHandler) ListVenues(c echo.Context) error {
	venues, err := h.Catalog.ListVenues(c.Request().Context(), model.VenueQuery{
		Text:  c.QueryParam("q"),
		Sport: c.QueryParam("sport"),
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]PublicVenue, 0, len(venues))
	for _, v := range venues {
		out = append(out, viewVenue(v))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// GetVenue handles GET /v1/venues/:id. Inactive venues are reported as not
// found.
func (h *CatalogHandler) GetVenue(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	v, err := h.Catalog.GetVenue(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	if !v.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found", "message": "venue not found"})
	}
	return c.JSON(http.StatusOK, viewVenue(v))
}

// ListCourts handles GET /v1/venues/:id/courts?sport=.
func (h *CatalogHandler) ListCourts(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid venue id")
	}
	courts, err := h.Catalog.ListAvailableCourts(c.Request().Context(), id, c.QueryParam("sport"))
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]PublicCourt, 0, len(courts))
	for _, ct := range courts {
		out = append(out, viewCourt(ct))
	}
	return c.JSON(http.StatusOK, echo.Map{"items": out})
}

// FreeWindows handles GET /v1/courts/:id/free-windows?date=YYYY-MM-DD.
func (h *CatalogHandler) FreeWindows(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid court id")
	}
	d, err := queryDate(c, "date")
	if err != nil || d.IsZero() {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	seq, err := h.Avail.FreeWindows(c.Request().Context(), id, d)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := []windowView{}
	for w := range seq {
		out = append(out, windowView{Start: model.FormatClock(w.Start), End: model.FormatClock(w.End)})
	}
	return c.JSON(http.StatusOK, echo.Map{"court_id": id, "date": d, "windows": out})
}

// Availability handles
// GET /v1/courts/:id/availability?date=YYYY-MM-DD&start=HH:MM&duration=90.
// duration is in minutes, or a Go duration such as 1h30m.
func (h *CatalogHandler) Availability(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid court id")
	}
	d, err := queryDate(c, "date")
	if err != nil || d.IsZero() {
		return badRequest(c, "date must be YYYY-MM-DD")
	}
	start, err := model.ParseClock(c.QueryParam("start"))
	if err != nil {
		return badRequest(c, "start must be HH:MM")
	}
	dur, err := parseMinutes(c.QueryParam("duration"))
	if err != nil {
		return badRequest(c, err.Error())
	}
	free, err := h.Avail.IsFree(c.Request().Context(), id, d, start, dur)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"court_id": id,
		"date":     d,
		"start":    model.FormatClock(start),
		"end":      model.FormatClock(start + dur),
		"free":     free,
	})
}

// parseMinutes accepts "90" (minutes) or a Go duration string.
func parseMinutes(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errDuration
	}
	if d, err := time.ParseDuration(raw); err == nil {
		if d > maxSlotMinutes*time.Minute {
			return 0, errDuration
		}
		return d, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n > maxSlotMinutes {
		return 0, errDuration
	}
	return time.Duration(n) * time.Minute, nil
}
