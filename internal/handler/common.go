package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/quickcourt/reservation-core/internal/model"
)

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id != 0
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// queryDate parses ?name=YYYY-MM-DD; an absent value yields the zero Date.
func queryDate(c echo.Context, name string) (model.Date, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return model.Date{}, nil
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		return model.Date{}, fmt.Errorf("%s must be YYYY-MM-DD", name)
	}
	return d, nil
}

// parseStatuses reads a comma separated ?status= list.
func parseStatuses(raw string) ([]model.Status, error) {
	var out []model.Status
	for _, p := range strings.Split(raw, ",") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		st, ok := model.ParseStatus(p)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", p)
		}
		out = append(out, st)
	}
	return out, nil
}

// listFilter reads the common list query parameters: status, from, to, limit.
func listFilter(c echo.Context) (model.ReservationFilter, error) {
	var f model.ReservationFilter
	var err error
	if f.Statuses, err = parseStatuses(c.QueryParam("status")); err != nil {
		return f, err
	}
	if f.From, err = queryDate(c, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(c, "to"); err != nil {
		return f, err
	}
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			return f, fmt.Errorf("limit must be between 1 and 500")
		}
		f.Limit = n
	}
	return f, nil
}

// ----- response views -----

type reservationView struct {
	ID              string       `json:"id"`
	Reference       string       `json:"reference"`
	CourtID         uint64       `json:"court_id"`
	VenueID         uint64       `json:"venue_id"`
	UserID          uint64       `json:"user_id"`
	Date            model.Date   `json:"date"`
	Start           string       `json:"start"`
	End             string       `json:"end"`
	DurationMinutes int          `json:"duration_minutes"`
	PlayerCount     int          `json:"player_count"`
	Status          model.Status `json:"status"`
	PriceCents      int64        `json:"price_cents"`
	Notes           string       `json:"notes,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

func viewReservation(r model.Reservation) reservationView {
	return reservationView{
		ID:              r.ID,
		Reference:       r.Reference,
		CourtID:         r.CourtID,
		VenueID:         r.VenueID,
		UserID:          r.UserID,
		Date:            r.Date,
		Start:           model.FormatClock(r.Start),
		End:             model.FormatClock(r.End()),
		DurationMinutes: int(r.Duration / time.Minute),
		PlayerCount:     r.PlayerCount,
		Status:          r.Status,
		PriceCents:      r.PriceCents,
		Notes:           r.Notes,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

func viewReservations(rs []model.Reservation) []reservationView {
	out := make([]reservationView, 0, len(rs))
	for _, r := range rs {
		out = append(out, viewReservation(r))
	}
	return out
}

type hoursView struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// PublicVenue hides owner and audit fields.
type PublicVenue struct {
	ID          uint64               `json:"id"`
	Name        string               `json:"name"`
	Location    string               `json:"location"`
	TimeZone    string               `json:"time_zone"`
	SlotMinutes int                  `json:"slot_minutes"`
	AutoConfirm bool                 `json:"auto_confirm"`
	Hours       map[string]hoursView `json:"hours"`
	CourtIDs    []uint64             `json:"court_ids"`
}

func viewVenue(v model.Venue) PublicVenue {
	hours := make(map[string]hoursView, len(v.Hours))
	for wd, h := range v.Hours {
		hours[strings.ToLower(wd.String())] = hoursView{Open: model.FormatClock(h.Open), Close: model.FormatClock(h.Close)}
	}
	ids := v.CourtIDs
	if ids == nil {
		ids = []uint64{}
	}
	return PublicVenue{
		ID:          v.ID,
		Name:        v.Name,
		Location:    v.Location,
		TimeZone:    v.TimeZone,
		SlotMinutes: int(v.Granularity() / time.Minute),
		AutoConfirm: v.AutoConfirm,
		Hours:       hours,
		CourtIDs:    ids,
	}
}

type PublicCourt struct {
	ID               uint64 `json:"id"`
	VenueID          uint64 `json:"venue_id"`
	Name             string `json:"name"`
	Sport            string `json:"sport"`
	HourlyPriceCents int64  `json:"hourly_price_cents"`
	MaxPlayers       int    `json:"max_players,omitempty"`
}

func viewCourt(c model.Court) PublicCourt {
	return PublicCourt{
		ID:               c.ID,
		VenueID:          c.VenueID,
		Name:             c.Name,
		Sport:            c.Sport,
		HourlyPriceCents: c.HourlyPriceCents,
		MaxPlayers:       c.MaxPlayers,
	}
}

type windowView struct {
	Start string `json:"start"`
	End   string `json:"end"`
}
