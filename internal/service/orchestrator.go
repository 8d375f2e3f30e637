package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/model"
)

const maxNotesLen = 500

// Orchestrator is the request boundary for bookings. It composes the
// catalog, availability index and ledger, and prices reservations.
type Orchestrator struct {
	catalog *Catalog
	avail   *Availability
	ledger  *Ledger
	policy  Policy
	now     Clock
	log     *zap.Logger
}

func NewOrchestrator(catalog *Catalog, avail *Availability, ledger *Ledger, policy Policy, now Clock, log *zap.Logger) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{catalog: catalog, avail: avail, ledger: ledger, policy: policy, now: now, log: log}
}

// BookRequest is a player's booking attempt.
type BookRequest struct {
	CourtID     uint64
	Date        model.Date
	Start       time.Duration
	Duration    time.Duration
	UserID      uint64
	PlayerCount int
	Notes       string
	// Actor is the authenticated caller; it is recorded on the created
	// event. When zero the booking is attributed to UserID as a player.
	Actor model.Actor
}

// BookingResult is the confirmation returned to the player.
type BookingResult struct {
	ReservationID string
	Reference     string
	Status        model.Status
	PriceCents    int64
	Reservation   model.Reservation
}

// Book validates, prices and records a booking. It writes to the ledger at
// most once and never on a failure path.
func (o *Orchestrator) Book(ctx context.Context, req BookRequest) (BookingResult, error) {
	court, venue, err := o.catalog.bookable(ctx, req.CourtID)
	if err != nil {
		return BookingResult{}, err
	}
	if err := o.validate(req, court, venue); err != nil {
		return BookingResult{}, err
	}

	price := o.Price(court, req.Duration)
	r, err := o.ledger.Create(ctx, CreateParams{
		CourtID:     court.ID,
		Date:        req.Date,
		Start:       req.Start,
		Duration:    req.Duration,
		UserID:      req.UserID,
		PlayerCount: req.PlayerCount,
		PriceCents:  price,
		Notes:       strings.TrimSpace(req.Notes),
		Actor:       req.Actor,
	})
	if err != nil {
		return BookingResult{}, err
	}
	return BookingResult{
		ReservationID: r.ID,
		Reference:     r.Reference,
		Status:        r.Status,
		PriceCents:    r.PriceCents,
		Reservation:   r,
	}, nil
}

func (o *Orchestrator) validate(req BookRequest, court model.Court, venue model.Venue) error {
	if req.UserID == 0 {
		return invalidf("user is required")
	}
	if req.Date.IsZero() {
		return invalidf("date is required")
	}
	if req.Duration <= 0 {
		return invalidf("duration must be positive")
	}
	if req.Duration > 24*time.Hour {
		return invalidf("duration must not exceed 24h")
	}
	if req.PlayerCount <= 0 {
		return invalidf("player count must be positive")
	}
	if court.MaxPlayers > 0 && req.PlayerCount > court.MaxPlayers {
		return invalidf("court %d allows at most %d players", court.ID, court.MaxPlayers)
	}
	if utf8.RuneCountInString(req.Notes) > maxNotesLen {
		return invalidf("notes exceed %d characters", maxNotesLen)
	}
	today := model.DateOf(o.now().In(venue.Loc()))
	if req.Date.Before(today) {
		return invalidf("date %s is in the past", req.Date)
	}
	return nil
}

// Price is the hourly rate times the duration plus the service fee.
// Fractions of a cent round half up.
func (o *Orchestrator) Price(court model.Court, d time.Duration) int64 {
	minutes := int64(d / time.Minute)
	return (court.HourlyPriceCents*minutes+30)/60 + o.policy.ServiceFeeCents
}

// Transition applies an inbound status action.
func (o *Orchestrator) Transition(ctx context.Context, id string, action model.Action, actor model.Actor) (model.Reservation, error) {
	return o.ledger.Apply(ctx, id, action, actor)
}

// SetStatus moves a reservation to a named status, choosing the action
// that leads there from its current status.
func (o *Orchestrator) SetStatus(ctx context.Context, id string, status model.Status, actor model.Actor) (model.Reservation, error) {
	return o.ledger.UpdateStatus(ctx, id, status, actor)
}

// Get returns a reservation visible to actor: its player, the venue
// owner or an admin.
func (o *Orchestrator) Get(ctx context.Context, id string, actor model.Actor) (model.Reservation, error) {
	r, err := o.ledger.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := o.canView(ctx, r, actor); err != nil {
		return model.Reservation{}, err
	}
	return r, nil
}

func (o *Orchestrator) canView(ctx context.Context, r model.Reservation, actor model.Actor) error {
	switch actor.Role {
	case model.RoleAdmin, model.RoleSystem:
		return nil
	case model.RoleFacilityOwner:
		if r.UserID == actor.UserID {
			return nil
		}
		v, err := o.catalog.GetVenue(ctx, r.VenueID)
		if err != nil {
			return err
		}
		if v.OwnerID == actor.UserID {
			return nil
		}
	case model.RoleUser:
		if r.UserID == actor.UserID {
			return nil
		}
	}
	return fmt.Errorf("%w: reservation %s", ErrUnauthorized, r.ID)
}

// Timeframe splits a player's bookings around the current date of each
// booking's venue.
type Timeframe int

const (
	AnyTime  Timeframe = iota
	Upcoming           // today or later, venue local
	Past               // before today, venue local
)

// ListMine returns the actor's own reservations, narrowed by when.
func (o *Orchestrator) ListMine(ctx context.Context, actor model.Actor, f model.ReservationFilter, when Timeframe) ([]model.Reservation, error) {
	f.UserID = actor.UserID
	f.VenueID = 0
	if when == AnyTime {
		return o.ledger.List(ctx, f)
	}

	// A venue's local date is within a day of the UTC date, so the store
	// query only needs that much slack; the exact cut is per venue below.
	utcToday := model.DateOf(o.now().UTC())
	limit := f.Limit
	f.Limit = 0
	switch when {
	case Upcoming:
		if lo := utcToday.AddDays(-1); f.From.Before(lo) {
			f.From = lo
		}
	case Past:
		if hi := utcToday.AddDays(1); f.To.IsZero() || f.To.After(hi) {
			f.To = hi
		}
	}
	rs, err := o.ledger.List(ctx, f)
	if err != nil {
		return nil, err
	}

	today := map[uint64]model.Date{}
	out := rs[:0]
	for _, r := range rs {
		local, ok := today[r.VenueID]
		if !ok {
			v, err := o.catalog.GetVenue(ctx, r.VenueID)
			if err != nil {
				return nil, err
			}
			local = model.DateOf(o.now().In(v.Loc()))
			today[r.VenueID] = local
		}
		if r.Date.Before(local) == (when == Past) {
			out = append(out, r)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListForVenue returns a venue's reservations to its owner or an admin.
func (o *Orchestrator) ListForVenue(ctx context.Context, venueID uint64, actor model.Actor, f model.ReservationFilter) ([]model.Reservation, error) {
	if err := o.ownsVenue(ctx, venueID, actor); err != nil {
		return nil, err
	}
	f.VenueID = venueID
	return o.ledger.List(ctx, f)
}

// VenueStats summarises a venue's bookings for the owner dashboard.
type VenueStats struct {
	VenueID      uint64
	ByStatus     map[model.Status]int
	Total        int
	RevenueCents int64
}

// VenueStats counts reservations per status. Revenue covers confirmed and
// completed reservations only.
func (o *Orchestrator) VenueStats(ctx context.Context, venueID uint64, actor model.Actor) (VenueStats, error) {
	if err := o.ownsVenue(ctx, venueID, actor); err != nil {
		return VenueStats{}, err
	}
	rs, err := o.ledger.List(ctx, model.ReservationFilter{VenueID: venueID})
	if err != nil {
		return VenueStats{}, err
	}
	st := VenueStats{VenueID: venueID, ByStatus: map[model.Status]int{}}
	for _, r := range rs {
		st.ByStatus[r.Status]++
		st.Total++
		if r.Status == model.StatusConfirmed || r.Status == model.StatusCompleted {
			st.RevenueCents += r.PriceCents
		}
	}
	return st, nil
}

func (o *Orchestrator) ownsVenue(ctx context.Context, venueID uint64, actor model.Actor) error {
	v, err := o.catalog.GetVenue(ctx, venueID)
	if err != nil {
		return err
	}
	switch actor.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleFacilityOwner:
		if v.OwnerID == actor.UserID {
			return nil
		}
	}
	return fmt.Errorf("%w: venue %d", ErrUnauthorized, venueID)
}
