package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/model"
	"github.com/quickcourt/reservation-core/internal/repository"
)

// notifyTimeout bounds observer fan-out after a commit.
const notifyTimeout = 3 * time.Second

// Ledger is the sole authority over reservation state. It guarantees that
// non-cancelled reservations of a court never overlap on the same date and
// that status changes follow the reservation lifecycle.
type Ledger struct {
	catalog   *Catalog
	avail     *Availability
	store     ReservationStore
	policy    Policy
	now       Clock
	log       *zap.Logger
	observers []Observer
	queues    []*queuedObserver
	closeOnce sync.Once
}

func NewLedger(catalog *Catalog, avail *Availability, store ReservationStore, policy Policy, now Clock, log *zap.Logger) *Ledger {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{catalog: catalog, avail: avail, store: store, policy: policy, now: now, log: log}
}

// Subscribe registers an observer for committed writes. It runs inline
// before the write returns, so it must not block; use SubscribeAsync for
// anything that does I/O. It is not safe to call concurrently with writes;
// wire observers at startup.
func (l *Ledger) Subscribe(o Observer) { l.observers = append(l.observers, o) }

// CreateParams is a validated, priced booking request.
type CreateParams struct {
	CourtID     uint64
	Date        model.Date
	Start       time.Duration
	Duration    time.Duration
	UserID      uint64
	PlayerCount int
	PriceCents  int64
	Notes       string
	// Actor placed the booking. Zero means the player did.
	Actor model.Actor
}

// Create checks availability and inserts the reservation as one atomic
// unit. The new reservation is pending, or confirmed when the venue
// auto-confirms.
func (l *Ledger) Create(ctx context.Context, p CreateParams) (model.Reservation, error) {
	court, venue, err := l.catalog.bookable(ctx, p.CourtID)
	if err != nil {
		return model.Reservation{}, err
	}
	slot, err := slotOf(p.Date, p.Start, p.Duration)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := l.avail.checkSlot(venue, slot); err != nil {
		return model.Reservation{}, err
	}

	status := model.StatusPending
	if venue.AutoConfirm {
		status = model.StatusConfirmed
	}
	now := l.now().UTC()
	id, ref := model.NewReservationID()
	r := model.Reservation{
		ID:          id,
		Reference:   ref,
		CourtID:     court.ID,
		VenueID:     venue.ID,
		UserID:      p.UserID,
		Date:        p.Date,
		Start:       p.Start,
		Duration:    p.Duration,
		PlayerCount: p.PlayerCount,
		Status:      status,
		PriceCents:  p.PriceCents,
		Notes:       p.Notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	saved, err := l.store.InsertIfFree(ctx, r)
	if err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return model.Reservation{}, unavailablef("court %d is already booked during %s", court.ID, slot)
		}
		return model.Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}

	l.log.Info("reservation created",
		zap.String("reservation_id", saved.ID),
		zap.String("reference", saved.Reference),
		zap.Uint64("court_id", saved.CourtID),
		zap.Stringer("slot", saved.Slot()),
		zap.String("status", string(saved.Status)))
	actor := p.Actor
	if actor.UserID == 0 {
		actor = model.Actor{UserID: p.UserID, Role: model.RoleUser}
	}
	l.notify(ctx, model.ReservationEvent{
		Kind:        model.EventCreated,
		Reservation: saved,
		Actor:       actor,
		At:          now,
	})
	return saved, nil
}

// Get returns a reservation by id.
func (l *Ledger) Get(ctx context.Context, id string) (model.Reservation, error) {
	r, err := l.store.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, translate(err, "reservation %s", id)
	}
	return r, nil
}

// List returns reservations matching f.
func (l *Ledger) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	rs, err := l.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	return rs, nil
}

// UpdateStatus moves a reservation to newStatus on behalf of actor.
func (l *Ledger) UpdateStatus(ctx context.Context, id string, newStatus model.Status, actor model.Actor) (model.Reservation, error) {
	r, err := l.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	action, ok := r.Status.ActionFor(newStatus)
	if !ok {
		return model.Reservation{}, &TransitionError{From: r.Status, To: newStatus}
	}
	return l.apply(ctx, r, action, actor)
}

// Cancel cancels a pending or confirmed reservation.
func (l *Ledger) Cancel(ctx context.Context, id string, actor model.Actor) (model.Reservation, error) {
	return l.Apply(ctx, id, model.ActionCancel, actor)
}

// Apply performs a lifecycle action on behalf of actor.
func (l *Ledger) Apply(ctx context.Context, id string, action model.Action, actor model.Actor) (model.Reservation, error) {
	r, err := l.Get(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	return l.apply(ctx, r, action, actor)
}

func (l *Ledger) apply(ctx context.Context, r model.Reservation, action model.Action, actor model.Actor) (model.Reservation, error) {
	venue, err := l.catalog.GetVenue(ctx, r.VenueID)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := authorize(r, venue, action, actor); err != nil {
		return model.Reservation{}, err
	}
	next, ok := r.Status.Next(action)
	if !ok {
		return model.Reservation{}, &TransitionError{From: r.Status, To: action.Target()}
	}

	now := l.now()
	loc := venue.Loc()
	switch action {
	case model.ActionComplete:
		if now.Before(r.Date.At(loc, r.End())) {
			return model.Reservation{}, &TransitionError{From: r.Status, To: next, Reason: "reservation has not ended"}
		}
	case model.ActionCancel:
		if actor.Role == model.RoleUser {
			deadline := r.Date.At(loc, r.Start).Add(-l.policy.CancelCutoff)
			if now.After(deadline) {
				return model.Reservation{}, &TransitionError{From: r.Status, To: next, Reason: "cancellation window has closed"}
			}
		}
	}

	updated, err := l.store.UpdateStatus(ctx, r.ID, r.Status, next, now.UTC())
	if err != nil {
		if errors.Is(err, repository.ErrStale) {
			// Someone else moved it first; report against the current state.
			cur, gerr := l.Get(ctx, r.ID)
			if gerr != nil {
				return model.Reservation{}, gerr
			}
			return model.Reservation{}, &TransitionError{From: cur.Status, To: next}
		}
		return model.Reservation{}, translate(err, "reservation %s", r.ID)
	}

	l.log.Info("reservation status changed",
		zap.String("reservation_id", updated.ID),
		zap.String("from", string(r.Status)),
		zap.String("to", string(updated.Status)),
		zap.String("action", string(action)),
		zap.String("actor_role", string(actor.Role)),
		zap.Uint64("actor_id", actor.UserID))
	l.notify(ctx, model.ReservationEvent{
		Kind:        model.EventKindFor(updated.Status),
		Reservation: updated,
		Previous:    r.Status,
		Actor:       actor,
		At:          now.UTC(),
	})
	return updated, nil
}

// authorize decides whether actor may perform action on r.
func authorize(r model.Reservation, venue model.Venue, action model.Action, actor model.Actor) error {
	switch actor.Role {
	case model.RoleAdmin:
		return nil
	case model.RoleSystem:
		if action == model.ActionComplete || action == model.ActionCancel {
			return nil
		}
	case model.RoleFacilityOwner:
		if venue.OwnerID == actor.UserID && action != model.ActionComplete {
			return nil
		}
		if r.UserID == actor.UserID && action == model.ActionCancel {
			return nil
		}
	case model.RoleUser:
		if r.UserID == actor.UserID && action == model.ActionCancel {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %d may not %s reservation %s", ErrUnauthorized, actor.Role, actor.UserID, action, r.ID)
}

// SweepResult counts the reservations moved by one sweep.
type SweepResult struct {
	Completed int
	Expired   int
}

// CompleteElapsed completes confirmed reservations whose slot has ended and
// cancels pending ones whose slot started without approval.
func (l *Ledger) CompleteElapsed(ctx context.Context) (SweepResult, error) {
	now := l.now()
	var res SweepResult
	due, err := l.store.List(ctx, model.ReservationFilter{
		Statuses: []model.Status{model.StatusPending, model.StatusConfirmed},
		To:       model.DateOf(now.UTC()).AddDays(1),
	})
	if err != nil {
		return res, fmt.Errorf("list due reservations: %w", err)
	}

	venues := map[uint64]model.Venue{}
	for _, r := range due {
		v, ok := venues[r.VenueID]
		if !ok {
			v, err = l.catalog.GetVenue(ctx, r.VenueID)
			if err != nil {
				l.log.Warn("sweep: venue lookup failed", zap.Uint64("venue_id", r.VenueID), zap.Error(err))
				continue
			}
			venues[r.VenueID] = v
		}
		loc := v.Loc()

		var action model.Action
		switch {
		case r.Status == model.StatusConfirmed && !now.Before(r.Date.At(loc, r.End())):
			action = model.ActionComplete
		case r.Status == model.StatusPending && !now.Before(r.Date.At(loc, r.Start)):
			action = model.ActionCancel
		default:
			continue
		}
		if _, err := l.apply(ctx, r, action, model.SystemActor); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				continue
			}
			return res, err
		}
		if action == model.ActionComplete {
			res.Completed++
		} else {
			res.Expired++
		}
	}
	return res, nil
}

// notify fans a committed write out to observers. The write has already
// happened, so the caller's cancellation must not cut the fan-out short.
func (l *Ledger) notify(ctx context.Context, ev model.ReservationEvent) {
	if len(l.observers) == 0 {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	for _, o := range l.observers {
		o.ReservationChanged(nctx, ev)
	}
}
