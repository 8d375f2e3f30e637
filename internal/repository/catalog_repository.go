package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quickcourt/reservation-core/internal/model"
)

// CatalogRepo reads venues, opening hours and courts from SQL.
type CatalogRepo struct {
	db *sql.DB
	d  Dialect
}

// NewCatalogRepo returns a new CatalogRepo bound to the given database.
func NewCatalogRepo(db *sql.DB, d Dialect) *CatalogRepo { return &CatalogRepo{db: db, d: d} }

const venueColumns = `v.id, v.owner_id, v.name, v.location, v.time_zone, v.slot_minutes,
	v.auto_confirm, v.is_active, v.created_at, v.updated_at`

func scanVenue(sc interface{ Scan(...any) error }) (model.Venue, error) {
	var (
		v       model.Venue
		slotMin int
	)
	err := sc.Scan(&v.ID, &v.OwnerID, &v.Name, &v.Location, &v.TimeZone, &slotMin,
		&v.AutoConfirm, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	v.SlotGranularity = time.Duration(slotMin) * time.Minute
	return v, err
}

// GetVenue loads a venue together with its hours and court ids.
func (r *CatalogRepo) GetVenue(ctx context.Context, id uint64) (model.Venue, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT `+venueColumns+` FROM venues v WHERE v.id = ?`), id)
	v, err := scanVenue(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Venue{}, ErrNotFound
		}
		return model.Venue{}, err
	}
	if err := r.attach(ctx, &v); err != nil {
		return model.Venue{}, err
	}
	return v, nil
}

// attach fills the opening hours and court ids of v.
func (r *CatalogRepo) attach(ctx context.Context, v *model.Venue) error {
	rows, err := r.db.QueryContext(ctx,
		r.d.Rebind(`SELECT weekday, open_min, close_min FROM venue_hours WHERE venue_id = ?`), v.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	v.Hours = map[time.Weekday]model.OpeningHours{}
	for rows.Next() {
		var wd, open, closeMin int
		if err := rows.Scan(&wd, &open, &closeMin); err != nil {
			return err
		}
		v.Hours[time.Weekday(wd)] = model.OpeningHours{
			Open:  time.Duration(open) * time.Minute,
			Close: time.Duration(closeMin) * time.Minute,
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	crows, err := r.db.QueryContext(ctx, r.d.Rebind(`SELECT id FROM courts WHERE venue_id = ? ORDER BY id`), v.ID)
	if err != nil {
		return err
	}
	defer crows.Close()
	v.CourtIDs = nil
	for crows.Next() {
		var id uint64
		if err := crows.Scan(&id); err != nil {
			return err
		}
		v.CourtIDs = append(v.CourtIDs, id)
	}
	return crows.Err()
}

const courtColumns = `id, venue_id, name, sport, hourly_price_cents, max_players, is_active, created_at, updated_at`

func scanCourt(sc interface{ Scan(...any) error }) (model.Court, error) {
	var c model.Court
	err := sc.Scan(&c.ID, &c.VenueID, &c.Name, &c.Sport, &c.HourlyPriceCents, &c.MaxPlayers,
		&c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *CatalogRepo) GetCourt(ctx context.Context, id uint64) (model.Court, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT `+courtColumns+` FROM courts WHERE id = ?`), id)
	c, err := scanCourt(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Court{}, ErrNotFound
		}
		return model.Court{}, err
	}
	return c, nil
}

func (r *CatalogRepo) ListCourts(ctx context.Context, venueID uint64) ([]model.Court, error) {
	rows, err := r.db.QueryContext(ctx,
		r.d.Rebind(`SELECT `+courtColumns+` FROM courts WHERE venue_id = ? ORDER BY id`), venueID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Court{}
	for rows.Next() {
		c, err := scanCourt(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ListVenues searches venues by name/location text and offered sport.
func (r *CatalogRepo) ListVenues(ctx context.Context, q model.VenueQuery) ([]model.Venue, error) {
	where := []string{}
	args := []any{}
	if t := strings.ToLower(strings.TrimSpace(q.Text)); t != "" {
		where = append(where, "(LOWER(v.name) LIKE ? OR LOWER(v.location) LIKE ?)")
		args = append(args, "%"+t+"%", "%"+t+"%")
	}
	if s := strings.ToLower(strings.TrimSpace(q.Sport)); s != "" {
		where = append(where, "EXISTS (SELECT 1 FROM courts c WHERE c.venue_id = v.id AND c.is_active = TRUE AND LOWER(c.sport) = ?)")
		args = append(args, s)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}

	rows, err := r.db.QueryContext(ctx,
		r.d.Rebind(`SELECT `+venueColumns+` FROM venues v WHERE `+cond+` ORDER BY v.id`), args...)
	if err != nil {
		return nil, err
	}
	out := []model.Venue{}
	for rows.Next() {
		v, err := scanVenue(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for i := range out {
		if err := r.attach(ctx, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// SetVenueActive updates the venue and its courts in one transaction.
func (r *CatalogRepo) SetVenueActive(ctx context.Context, venueID uint64, active bool) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		r.d.Rebind(`UPDATE venues SET is_active = ?, updated_at = ? WHERE id = ?`), active, now, venueID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		var one int
		err := tx.QueryRowContext(ctx, r.d.Rebind(`SELECT 1 FROM venues WHERE id = ?`), venueID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		r.d.Rebind(`UPDATE courts SET is_active = ?, updated_at = ? WHERE venue_id = ?`), active, now, venueID); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// Apply loads a seed into an empty catalog. Venues whose id already exists
// are left untouched, so running it on every start is safe.
func (r *CatalogRepo) Apply(ctx context.Context, s Seed, users accounts, bcryptCost int) error {
	if err := seedUsers(ctx, users, s.Users, bcryptCost); err != nil {
		return err
	}
	now := time.Now().UTC()
	for _, sv := range s.Venues {
		var one int
		err := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT 1 FROM venues WHERE id = ?`), sv.ID).Scan(&one)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		v, courts, err := sv.build(ctx, users, now)
		if err != nil {
			return err
		}
		if err := r.insertVenue(ctx, v, courts); err != nil {
			return fmt.Errorf("seed venue %d: %w", v.ID, err)
		}
	}
	return nil
}

func (r *CatalogRepo) insertVenue(ctx context.Context, v model.Venue, courts []model.Court) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, r.d.Rebind(`INSERT INTO venues
		(id, owner_id, name, location, time_zone, slot_minutes, auto_confirm, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		v.ID, v.OwnerID, v.Name, v.Location, v.TimeZone, int(v.Granularity()/time.Minute),
		v.AutoConfirm, v.IsActive, v.CreatedAt, v.UpdatedAt); err != nil {
		return err
	}
	for wd, h := range v.Hours {
		if _, err := tx.ExecContext(ctx, r.d.Rebind(`INSERT INTO venue_hours (venue_id, weekday, open_min, close_min)
			VALUES (?, ?, ?, ?)`),
			v.ID, int(wd), int(h.Open/time.Minute), int(h.Close/time.Minute)); err != nil {
			return err
		}
	}
	for _, c := range courts {
		if _, err := tx.ExecContext(ctx, r.d.Rebind(`INSERT INTO courts
			(id, venue_id, name, sport, hourly_price_cents, max_players, is_active, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`),
			c.ID, c.VenueID, c.Name, c.Sport, c.HourlyPriceCents, c.MaxPlayers, c.IsActive, c.CreatedAt, c.UpdatedAt); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
