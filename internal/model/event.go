package model

import "time"

// EventKind doubles as the routing key for reservation events.
type EventKind string

const (
	EventCreated   EventKind = "reservation.created"
	EventConfirmed EventKind = "reservation.confirmed"
	EventCancelled EventKind = "reservation.cancelled"
	EventCompleted EventKind = "reservation.completed"
)

// ReservationEvent describes a committed ledger write.
type ReservationEvent struct {
	Kind        EventKind
	Reservation Reservation
	Previous    Status // empty for creations
	Actor       Actor
	At          time.Time
}

// EventKindFor maps a status reached by a transition to its event kind.
func EventKindFor(s Status) EventKind {
	switch s {
	case StatusConfirmed:
		return EventConfirmed
	case StatusCancelled:
		return EventCancelled
	case StatusCompleted:
		return EventCompleted
	default:
		return EventCreated
	}
}
