package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/model"
)

// Availability answers whether a court is free for a candidate slot and
// which windows of a day are still bookable. It holds no booking state of
// its own; every answer is derived from the ledger.
type Availability struct {
	catalog *Catalog
	store   ReservationStore
	cache   WindowCache
	policy  Policy
	now     Clock
	log     *zap.Logger
}

// NewAvailability wires the index. cache may be nil.
func NewAvailability(catalog *Catalog, store ReservationStore, cache WindowCache, policy Policy, now Clock, log *zap.Logger) *Availability {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Availability{catalog: catalog, store: store, cache: cache, policy: policy, now: now, log: log}
}

// IsFree reports whether [start, start+duration) on d can be booked on the
// court. Malformed candidates fail with ErrInvalidRequest; candidates that
// are well formed but closed, past or overlapping simply report false.
func (a *Availability) IsFree(ctx context.Context, courtID uint64, d model.Date, start, duration time.Duration) (bool, error) {
	_, venue, err := a.catalog.bookable(ctx, courtID)
	if err != nil {
		return false, err
	}
	slot, err := slotOf(d, start, duration)
	if err != nil {
		return false, err
	}
	if err := a.checkSlot(venue, slot); err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			return false, nil
		}
		return false, err
	}
	booked, err := a.store.ListBlocking(ctx, courtID, d)
	if err != nil {
		return false, fmt.Errorf("load reservations of court %d on %s: %w", courtID, d, err)
	}
	return !overlapsAny(booked, slot), nil
}

// FreeWindows returns the opening interval of d minus every booked
// interval, in chronological order. The sequence is restartable and yields
// the same windows on each pass.
func (a *Availability) FreeWindows(ctx context.Context, courtID uint64, d model.Date) (iter.Seq[model.TimeSlot], error) {
	_, venue, err := a.catalog.bookable(ctx, courtID)
	if err != nil {
		return nil, err
	}
	hours, open := venue.HoursOn(d)
	if !open {
		return func(func(model.TimeSlot) bool) {}, nil
	}

	if a.cache == nil {
		booked, err := a.store.ListBlocking(ctx, courtID, d)
		if err != nil {
			return nil, fmt.Errorf("load reservations of court %d on %s: %w", courtID, d, err)
		}
		return gaps(d, hours, booked), nil
	}

	cached, version, hit, err := a.cache.Load(ctx, courtID, d)
	if err != nil {
		a.log.Warn("window cache load failed", zap.Uint64("court_id", courtID), zap.Stringer("date", d), zap.Error(err))
	} else if hit {
		return slices.Values(cached), nil
	}

	booked, err := a.store.ListBlocking(ctx, courtID, d)
	if err != nil {
		return nil, fmt.Errorf("load reservations of court %d on %s: %w", courtID, d, err)
	}
	windows := slices.Collect(gaps(d, hours, booked))
	if version != "" {
		if err := a.cache.Store(ctx, courtID, d, version, windows); err != nil {
			a.log.Warn("window cache store failed", zap.Uint64("court_id", courtID), zap.Stringer("date", d), zap.Error(err))
		}
	}
	return slices.Values(windows), nil
}

// ReservationChanged drops cached windows when a write changes which
// intervals are blocked.
func (a *Availability) ReservationChanged(ctx context.Context, ev model.ReservationEvent) {
	if a.cache == nil {
		return
	}
	if ev.Previous != "" && ev.Reservation.Status != model.StatusCancelled {
		return
	}
	r := ev.Reservation
	if err := a.cache.Invalidate(ctx, r.CourtID, r.Date); err != nil {
		a.log.Error("window cache invalidate failed",
			zap.Uint64("court_id", r.CourtID), zap.Stringer("date", r.Date), zap.Error(err))
	}
}

// slotOf builds the candidate interval, rejecting shapes whose end would
// not fit in the day before the addition can wrap.
func slotOf(d model.Date, start, duration time.Duration) (model.TimeSlot, error) {
	if duration <= 0 {
		return model.TimeSlot{}, invalidf("duration must be positive")
	}
	if start < 0 || start >= 24*time.Hour || duration > 24*time.Hour-start {
		return model.TimeSlot{}, invalidf("%s starting %s does not fit in one day", duration, model.FormatClock(start))
	}
	return model.TimeSlot{Date: d, Start: start, End: start + duration}, nil
}

// checkSlot applies the rules that do not depend on ledger state: shape,
// alignment, opening hours and lead time.
func (a *Availability) checkSlot(v model.Venue, s model.TimeSlot) error {
	dur := s.Duration()
	if dur <= 0 || s.End <= s.Start {
		return invalidf("duration must be positive")
	}
	if s.Start < 0 || s.End > 24*time.Hour || dur > 24*time.Hour {
		return invalidf("slot %s does not fit in one day", s)
	}
	g := v.Granularity()
	if s.Start%g != 0 || dur%g != 0 {
		return invalidf("start and duration must be multiples of %s", g)
	}

	loc := v.Loc()
	now := a.now().In(loc)
	if s.Date.Before(model.DateOf(now)) {
		return invalidf("date %s is in the past", s.Date)
	}
	hours, ok := v.HoursOn(s.Date)
	if !ok {
		return unavailablef("venue is closed on %s", s.Date.Weekday())
	}
	if s.Start < hours.Open || s.End > hours.Close {
		return unavailablef("%s is outside opening hours %s-%s",
			s, model.FormatClock(hours.Open), model.FormatClock(hours.Close))
	}
	if s.Date.At(loc, s.Start).Before(now.Add(a.policy.MinLeadTime)) {
		return unavailablef("%s starts too soon", s)
	}
	return nil
}

func overlapsAny(booked []model.Reservation, s model.TimeSlot) bool {
	for _, r := range booked {
		if r.Status.Blocking() && r.Slot().Overlaps(s) {
			return true
		}
	}
	return false
}

// gaps yields the free sub-intervals of hours on d. booked is copied and
// sorted so the sequence does not depend on the caller's slice.
func gaps(d model.Date, hours model.OpeningHours, booked []model.Reservation) iter.Seq[model.TimeSlot] {
	spans := make([]model.TimeSlot, 0, len(booked))
	for _, r := range booked {
		if r.Status.Blocking() {
			spans = append(spans, r.Slot())
		}
	}
	slices.SortFunc(spans, func(x, y model.TimeSlot) int { return cmp.Compare(x.Start, y.Start) })

	return func(yield func(model.TimeSlot) bool) {
		cursor := hours.Open
		for _, sp := range spans {
			start := min(max(sp.Start, hours.Open), hours.Close)
			end := min(max(sp.End, hours.Open), hours.Close)
			if end <= cursor {
				continue
			}
			if start > cursor {
				if !yield(model.TimeSlot{Date: d, Start: cursor, End: start}) {
					return
				}
			}
			cursor = end
		}
		if cursor < hours.Close {
			yield(model.TimeSlot{Date: d, Start: cursor, End: hours.Close})
		}
	}
}
