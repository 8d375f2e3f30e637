package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/quickcourt/reservation-core/internal/model"
	"github.com/quickcourt/reservation-core/internal/repository"
)

// Catalog exposes venues, courts, prices and opening hours.
type Catalog struct {
	store CatalogStore
	log   *zap.Logger
}

func NewCatalog(store CatalogStore, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{store: store, log: log}
}

// GetCourt returns the court regardless of its active flag.
func (c *Catalog) GetCourt(ctx context.Context, courtID uint64) (model.Court, error) {
	court, err := c.store.GetCourt(ctx, courtID)
	if err != nil {
		return model.Court{}, translate(err, "court %d", courtID)
	}
	return court, nil
}

func (c *Catalog) GetVenue(ctx context.Context, venueID uint64) (model.Venue, error) {
	v, err := c.store.GetVenue(ctx, venueID)
	if err != nil {
		return model.Venue{}, translate(err, "venue %d", venueID)
	}
	return v, nil
}

// ListAvailableCourts returns the active courts of an active venue,
// optionally restricted to one sport (case-insensitive).
func (c *Catalog) ListAvailableCourts(ctx context.Context, venueID uint64, sport string) ([]model.Court, error) {
	v, err := c.GetVenue(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if !v.IsActive {
		return []model.Court{}, nil
	}
	courts, err := c.store.ListCourts(ctx, venueID)
	if err != nil {
		return nil, fmt.Errorf("list courts of venue %d: %w", venueID, err)
	}
	sport = strings.TrimSpace(sport)
	out := make([]model.Court, 0, len(courts))
	for _, ct := range courts {
		if !ct.IsActive {
			continue
		}
		if sport != "" && !strings.EqualFold(ct.Sport, sport) {
			continue
		}
		out = append(out, ct)
	}
	return out, nil
}

// ListVenues returns active venues matching q.
func (c *Catalog) ListVenues(ctx context.Context, q model.VenueQuery) ([]model.Venue, error) {
	venues, err := c.store.ListVenues(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list venues: %w", err)
	}
	out := venues[:0]
	for _, v := range venues {
		if v.IsActive {
			out = append(out, v)
		}
	}
	return out, nil
}

// SetVenueActive activates or deactivates a venue and all of its courts.
// Only admins may do this.
func (c *Catalog) SetVenueActive(ctx context.Context, venueID uint64, active bool, actor model.Actor) error {
	if actor.Role != model.RoleAdmin {
		return fmt.Errorf("%w: only admins can change venue status", ErrUnauthorized)
	}
	if err := c.store.SetVenueActive(ctx, venueID, active); err != nil {
		return translate(err, "venue %d", venueID)
	}
	c.log.Info("venue status changed",
		zap.Uint64("venue_id", venueID),
		zap.Bool("active", active),
		zap.Uint64("actor_id", actor.UserID))
	return nil
}

// bookable resolves a court and its venue, failing with ErrNotFound when
// either is missing or inactive.
func (c *Catalog) bookable(ctx context.Context, courtID uint64) (model.Court, model.Venue, error) {
	court, err := c.GetCourt(ctx, courtID)
	if err != nil {
		return model.Court{}, model.Venue{}, err
	}
	if !court.IsActive {
		return model.Court{}, model.Venue{}, fmt.Errorf("%w: court %d is inactive", ErrNotFound, courtID)
	}
	venue, err := c.GetVenue(ctx, court.VenueID)
	if err != nil {
		return model.Court{}, model.Venue{}, err
	}
	if !venue.IsActive {
		return model.Court{}, model.Venue{}, fmt.Errorf("%w: venue %d is inactive", ErrNotFound, venue.ID)
	}
	return court, venue, nil
}

// translate maps repository sentinels onto the core taxonomy.
func translate(err error, what string, args ...any) error {
	subject := fmt.Sprintf(what, args...)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, subject)
	case errors.Is(err, repository.ErrConflict):
		return fmt.Errorf("%w: %s", ErrSlotUnavailable, subject)
	default:
		return fmt.Errorf("%s: %w", subject, err)
	}
}
