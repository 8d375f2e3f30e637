package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// ParseStatus accepts a status name in any case.
func ParseStatus(s string) (Status, bool) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return st, true
	}
	return "", false
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Blocking reports whether a reservation in this status occupies its slot.
func (s Status) Blocking() bool {
	return s != StatusCancelled
}

// Action is a request to move a reservation to another status.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionCancel   Action = "cancel"
	ActionComplete Action = "complete"
)

func ParseAction(s string) (Action, bool) {
	a := Action(strings.ToLower(strings.TrimSpace(s)))
	switch a {
	case ActionApprove, ActionReject, ActionCancel, ActionComplete:
		return a, true
	}
	return "", false
}

// Target is the status an action moves a reservation to.
func (a Action) Target() Status {
	switch a {
	case ActionApprove:
		return StatusConfirmed
	case ActionComplete:
		return StatusCompleted
	default:
		return StatusCancelled
	}
}

var transitions = map[Status]map[Action]Status{
	StatusPending: {
		ActionApprove: StatusConfirmed,
		ActionReject:  StatusCancelled,
		ActionCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		ActionCancel:   StatusCancelled,
		ActionComplete: StatusCompleted,
	},
}

// Next returns the status reached by applying a to s. ok is false when the
// transition is not part of the lifecycle.
func (s Status) Next(a Action) (next Status, ok bool) {
	next, ok = transitions[s][a]
	return next, ok
}

// ActionFor returns the action that moves a reservation from s to target.
func (s Status) ActionFor(target Status) (Action, bool) {
	// Fixed order: a plain "cancelled" request is a cancel, not a reject.
	for _, a := range []Action{ActionApprove, ActionCancel, ActionReject, ActionComplete} {
		if to, ok := s.Next(a); ok && to == target {
			return a, true
		}
	}
	return "", false
}

// Reservation is a booked or requested interval of court time tied to a
// user.
//
// Fields:
//  ID          – UUID, globally unique.
//  Reference   – short confirmation code shown to the player ("QC1A2B3C4D").
//  CourtID     – court being reserved.
//  VenueID     – venue owning the court, kept for owner queries.
//  UserID      – player who booked.
//  Date        – calendar day in the venue's time zone.
//  Start       – offset from local midnight.
//  Duration    – length of play.
//  PlayerCount – number of players declared at booking.
//  Status      – lifecycle state.
//  PriceCents  – amount charged including the service fee.
//  Notes       – special requests entered by the player.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last status change.
type Reservation struct {
	ID          string        // reservations.id
	Reference   string        // reservations.reference
	CourtID     uint64        // reservations.court_id
	VenueID     uint64        // reservations.venue_id
	UserID      uint64        // reservations.user_id
	Date        Date          // reservations.day
	Start       time.Duration // reservations.start_min
	Duration    time.Duration // reservations.end_min - start_min
	PlayerCount int           // reservations.player_count
	Status      Status        // reservations.status
	PriceCents  int64         // reservations.price_cents
	Notes       string        // reservations.notes
	CreatedAt   time.Time     // reservations.created_at
	UpdatedAt   time.Time     // reservations.updated_at
}

func (r Reservation) End() time.Duration { return r.Start + r.Duration }

func (r Reservation) Slot() TimeSlot {
	return TimeSlot{Date: r.Date, Start: r.Start, End: r.End()}
}

// NewReservationID returns a fresh id and its confirmation reference.
func NewReservationID() (id, reference string) {
	u := uuid.New()
	return u.String(), ReferenceFor(u)
}

// ReferenceFor derives the confirmation code from a reservation id.
func ReferenceFor(id uuid.UUID) string {
	return "QC" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// ReservationFilter narrows reservation listings. Zero values mean "any".
type ReservationFilter struct {
	UserID   uint64
	VenueID  uint64
	CourtID  uint64
	Statuses []Status
	From     Date // inclusive
	To       Date // inclusive
	Limit    int
}

// Match reports whether r passes the filter.
func (f ReservationFilter) Match(r Reservation) bool {
	if f.UserID != 0 && r.UserID != f.UserID {
		return false
	}
	if f.VenueID != 0 && r.VenueID != f.VenueID {
		return false
	}
	if f.CourtID != 0 && r.CourtID != f.CourtID {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if s == r.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && r.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && r.Date.After(f.To) {
		return false
	}
	return true
}
