package repository

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/quickcourt/reservation-core/internal/model"
)

//go:embed seed.json
var defaultSeed []byte

// Seed is the JSON document used to populate the in-memory store.
type Seed struct {
	Users  []SeedUser  `json:"users"`
	Venues []SeedVenue `json:"venues"`
}

type SeedUser struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type SeedVenue struct {
	ID          uint64               `json:"id"`
	OwnerEmail  string               `json:"owner_email"`
	Name        string               `json:"name"`
	Location    string               `json:"location"`
	TimeZone    string               `json:"time_zone"`
	SlotMinutes int                  `json:"slot_minutes"`
	AutoConfirm bool                 `json:"auto_confirm"`
	Inactive    bool                 `json:"inactive"`
	Hours       map[string]SeedHours `json:"hours"`
	Courts      []SeedCourt          `json:"courts"`
}

type SeedHours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

type SeedCourt struct {
	ID               uint64 `json:"id"`
	Name             string `json:"name"`
	Sport            string `json:"sport"`
	HourlyPriceCents int64  `json:"hourly_price_cents"`
	MaxPlayers       int    `json:"max_players"`
	Inactive         bool   `json:"inactive"`
}

// LoadSeed reads a seed file; an empty path selects the built-in demo
// catalog.
func LoadSeed(path string) (Seed, error) {
	raw := defaultSeed
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Seed{}, fmt.Errorf("read seed %s: %w", path, err)
		}
		raw = b
	}
	var s Seed
	if err := json.Unmarshal(raw, &s); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	return s, nil
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

// accounts is what seeding needs from a user store.
type accounts interface {
	Create(ctx context.Context, email, name, password string, role model.Role, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	MarkVerified(ctx context.Context, id uint64) error
}

func seedUsers(ctx context.Context, a accounts, users []SeedUser, bcryptCost int) error {
	for _, u := range users {
		role, ok := model.ParseRole(u.Role)
		if !ok {
			return fmt.Errorf("seed user %s: unknown role %q", u.Email, u.Role)
		}
		id, err := a.Create(ctx, u.Email, u.Name, u.Password, role, bcryptCost)
		if errors.Is(err, ErrEmailExists) {
			continue
		}
		if err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
		// Seeded accounts skip the sign-up code.
		if err := a.MarkVerified(ctx, id); err != nil {
			return fmt.Errorf("seed user %s: %w", u.Email, err)
		}
	}
	return nil
}

// build resolves the owner by email and converts the venue and its courts.
func (sv SeedVenue) build(ctx context.Context, a accounts, now time.Time) (model.Venue, []model.Court, error) {
	var ownerID uint64
	if sv.OwnerEmail != "" {
		owner, err := a.GetByEmail(ctx, sv.OwnerEmail)
		if err != nil {
			return model.Venue{}, nil, fmt.Errorf("seed venue %d: owner %s: %w", sv.ID, sv.OwnerEmail, err)
		}
		ownerID = owner.ID
	}
	hours := map[time.Weekday]model.OpeningHours{}
	for day, h := range sv.Hours {
		wd, ok := weekdays[strings.ToLower(day)]
		if !ok {
			return model.Venue{}, nil, fmt.Errorf("seed venue %d: unknown weekday %q", sv.ID, day)
		}
		open, err := model.ParseClock(h.Open)
		if err != nil {
			return model.Venue{}, nil, fmt.Errorf("seed venue %d: %w", sv.ID, err)
		}
		closeAt, err := model.ParseClock(h.Close)
		if err != nil {
			return model.Venue{}, nil, fmt.Errorf("seed venue %d: %w", sv.ID, err)
		}
		hours[wd] = model.OpeningHours{Open: open, Close: closeAt}
	}
	v := model.Venue{
		ID:              sv.ID,
		OwnerID:         ownerID,
		Name:            sv.Name,
		Location:        sv.Location,
		TimeZone:        sv.TimeZone,
		Hours:           hours,
		SlotGranularity: time.Duration(sv.SlotMinutes) * time.Minute,
		AutoConfirm:     sv.AutoConfirm,
		IsActive:        !sv.Inactive,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	courts := make([]model.Court, 0, len(sv.Courts))
	for _, sc := range sv.Courts {
		courts = append(courts, model.Court{
			ID:               sc.ID,
			VenueID:          sv.ID,
			Name:             sc.Name,
			Sport:            strings.ToLower(sc.Sport),
			HourlyPriceCents: sc.HourlyPriceCents,
			MaxPlayers:       sc.MaxPlayers,
			IsActive:         !sc.Inactive && !sv.Inactive,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}
	return v, courts, nil
}

// Apply creates the seed's accounts, venues and courts. Venue owners are
// resolved by email among the seeded accounts.
func (m *Memory) Apply(ctx context.Context, s Seed, bcryptCost int) error {
	if err := seedUsers(ctx, m, s.Users, bcryptCost); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, sv := range s.Venues {
		v, courts, err := sv.build(ctx, m, now)
		if err != nil {
			return err
		}
		m.PutVenue(v)
		for _, c := range courts {
			m.PutCourt(c)
		}
	}
	return nil
}
