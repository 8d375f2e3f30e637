package model

import "time"

// DefaultSlotGranularity is used when a venue does not configure its own.
const DefaultSlotGranularity = 30 * time.Minute

// OpeningHours is the bookable interval of a single weekday, as offsets
// from local midnight. Close is exclusive.
type OpeningHours struct {
	Open  time.Duration
	Close time.Duration
}

// Venue represents a facility listed by an owner. It groups one or more
// courts and carries the opening-hours table and booking policy shared by
// all of them.
//
// Fields:
//  ID              – primary key identifier.
//  OwnerID         – user that manages the venue (facility_owner role).
//  Name            – display name.
//  Location        – free-form address or area used for search.
//  TimeZone        – IANA zone name; empty means UTC.
//  Hours           – weekday → opening hours; a missing weekday is closed.
//  SlotGranularity – alignment unit for start times and durations.
//  AutoConfirm     – new reservations skip owner approval.
//  IsActive        – inactive venues and their courts cannot be booked.
//  CourtIDs        – ids of the courts owned by this venue.
type Venue struct {
	ID              uint64                        // venues.id
	OwnerID         uint64                        // venues.owner_id
	Name            string                        // venues.name
	Location        string                        // venues.location
	TimeZone        string                        // venues.time_zone
	Hours           map[time.Weekday]OpeningHours // venue_hours rows
	SlotGranularity time.Duration                 // venues.slot_minutes
	AutoConfirm     bool                          // venues.auto_confirm
	IsActive        bool                          // venues.is_active
	CourtIDs        []uint64                      // courts.venue_id
	CreatedAt       time.Time                     // venues.created_at
	UpdatedAt       time.Time                     // venues.updated_at
}

// Granularity returns the venue's slot granularity or the default.
func (v Venue) Granularity() time.Duration {
	if v.SlotGranularity <= 0 {
		return DefaultSlotGranularity
	}
	return v.SlotGranularity
}

// Loc resolves the venue time zone, falling back to UTC when it is unset or
// unknown.
func (v Venue) Loc() *time.Location {
	if v.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(v.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// HoursOn returns the opening interval for the weekday of d.
func (v Venue) HoursOn(d Date) (OpeningHours, bool) {
	h, ok := v.Hours[d.Weekday()]
	if !ok || h.Close <= h.Open {
		return OpeningHours{}, false
	}
	return h, true
}

// VenueQuery filters the public venue listing. Text matches name or
// location; Sport matches any active court of the venue.
type VenueQuery struct {
	Text  string
	Sport string
}

// Court is a single bookable playing surface inside a venue.
//
// Fields:
//  ID               – primary key identifier.
//  VenueID          – owning venue.
//  Name             – display name (e.g. "Court 2").
//  Sport            – sport played on the court (badminton, tennis, ...).
//  HourlyPriceCents – price for one hour of play, in cents.
//  MaxPlayers       – player cap per reservation; 0 means unlimited.
//  IsActive         – inactive courts cannot be booked.
type Court struct {
	ID               uint64    // courts.id
	VenueID          uint64    // courts.venue_id
	Name             string    // courts.name
	Sport            string    // courts.sport
	HourlyPriceCents int64     // courts.hourly_price_cents
	MaxPlayers       int       // courts.max_players
	IsActive         bool      // courts.is_active
	CreatedAt        time.Time // courts.created_at
	UpdatedAt        time.Time // courts.updated_at
}
