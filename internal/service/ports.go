package service

import (
	"context"
	"time"

	"github.com/quickcourt/reservation-core/internal/model"
)

// CatalogStore is the read-mostly reference data behind the Catalog.
// Missing rows are reported as repository.ErrNotFound.
type CatalogStore interface {
	GetVenue(ctx context.Context, id uint64) (model.Venue, error)
	GetCourt(ctx context.Context, id uint64) (model.Court, error)
	ListCourts(ctx context.Context, venueID uint64) ([]model.Court, error)
	ListVenues(ctx context.Context, q model.VenueQuery) ([]model.Venue, error)
	// SetVenueActive flips the venue flag and cascades it to the venue's
	// courts in one unit.
	SetVenueActive(ctx context.Context, venueID uint64, active bool) error
}

// ReservationStore persists the ledger.
type ReservationStore interface {
	// InsertIfFree inserts r unless a non-cancelled reservation on the same
	// court and date overlaps it, in which case repository.ErrConflict is
	// returned. The check and the insert are one atomic unit.
	InsertIfFree(ctx context.Context, r model.Reservation) (model.Reservation, error)
	Get(ctx context.Context, id string) (model.Reservation, error)
	// ListBlocking returns the non-cancelled reservations of a court on a
	// date ordered by start.
	ListBlocking(ctx context.Context, courtID uint64, d model.Date) ([]model.Reservation, error)
	List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error)
	// UpdateStatus moves id from `from` to `to`. repository.ErrStale is
	// returned when the stored status is no longer `from`.
	UpdateStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (model.Reservation, error)
}

// WindowCache memoises free windows per (court, date). Implementations
// must never serve windows computed before the latest Invalidate.
type WindowCache interface {
	Load(ctx context.Context, courtID uint64, d model.Date) (slots []model.TimeSlot, version string, ok bool, err error)
	Store(ctx context.Context, courtID uint64, d model.Date, version string, slots []model.TimeSlot) error
	Invalidate(ctx context.Context, courtID uint64, d model.Date) error
}

// Observer is told about every committed ledger write. It must not block
// for long; failures are its own to log.
type Observer interface {
	ReservationChanged(ctx context.Context, ev model.ReservationEvent)
}

// Clock returns the current time. Tests substitute a fixed clock.
type Clock func() time.Time

// Policy holds the product rules that are configuration rather than code.
type Policy struct {
	ServiceFeeCents int64
	// MinLeadTime is how far ahead of its start a slot must be booked.
	MinLeadTime time.Duration
	// CancelCutoff is how long before the start a player may still cancel.
	// Owners and admins are not bound by it.
	CancelCutoff time.Duration
}
