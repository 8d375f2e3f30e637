// Package queue carries reservation events over RabbitMQ: a publisher that
// observes the ledger and a consumer that keeps an audit log.
package queue

import (
	"time"

	"github.com/quickcourt/reservation-core/internal/model"
)

// Exchange and bindings used by default. Routing keys are the event kinds,
// e.g. reservation.created.
const (
	DefaultExchange = "quickcourt.reservations"
	AuditQueue      = "quickcourt.reservations.audit"
	bindAll         = "reservation.#"
)

// ReservationMessage is the JSON body published for every committed ledger
// write. It is self-contained so consumers never need to query the store.
type ReservationMessage struct {
	Event          string `json:"event"`
	ReservationID  string `json:"reservation_id"`
	Reference      string `json:"reference"`
	CourtID        uint64 `json:"court_id"`
	VenueID        uint64 `json:"venue_id"`
	UserID         uint64 `json:"user_id"`
	Date           string `json:"date"`
	Start          string `json:"start"`
	End            string `json:"end"`
	PlayerCount    int    `json:"player_count"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	PriceCents     int64  `json:"price_cents"`
	ActorID        uint64 `json:"actor_id"`
	ActorRole      string `json:"actor_role"`
	OccurredAt     string `json:"occurred_at"`
}

// MessageFor converts a ledger event to its wire form.
func MessageFor(ev model.ReservationEvent) ReservationMessage {
	r := ev.Reservation
	return ReservationMessage{
		Event:          string(ev.Kind),
		ReservationID:  r.ID,
		Reference:      r.Reference,
		CourtID:        r.CourtID,
		VenueID:        r.VenueID,
		UserID:         r.UserID,
		Date:           r.Date.String(),
		Start:          model.FormatClock(r.Start),
		End:            model.FormatClock(r.End()),
		PlayerCount:    r.PlayerCount,
		Status:         string(r.Status),
		PreviousStatus: string(ev.Previous),
		PriceCents:     r.PriceCents,
		ActorID:        ev.Actor.UserID,
		ActorRole:      string(ev.Actor.Role),
		OccurredAt:     ev.At.UTC().Format(time.RFC3339),
	}
}
