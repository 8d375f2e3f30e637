package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/quickcourt/reservation-core/internal/model"
)

// ReservationRepo stores the ledger in SQL. All timestamps are UTC; the
// slot is kept as minutes from local midnight on `day`.
type ReservationRepo struct {
	db *sql.DB
	d  Dialect
}

// NewReservationRepo returns a new ReservationRepo bound to the given database.
func NewReservationRepo(db *sql.DB, d Dialect) *ReservationRepo {
	return &ReservationRepo{db: db, d: d}
}

const reservationColumns = `id, reference, court_id, venue_id, user_id, day, start_min, end_min,
	player_count, status, price_cents, notes, created_at, updated_at`

func scanReservation(sc interface{ Scan(...any) error }) (model.Reservation, error) {
	var (
		r        model.Reservation
		day      time.Time
		startMin int
		endMin   int
		status   string
		notes    sql.NullString
	)
	err := sc.Scan(&r.ID, &r.Reference, &r.CourtID, &r.VenueID, &r.UserID, &day, &startMin, &endMin,
		&r.PlayerCount, &status, &r.PriceCents, &notes, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return model.Reservation{}, err
	}
	r.Date = model.DateOf(day)
	r.Start = time.Duration(startMin) * time.Minute
	r.Duration = time.Duration(endMin-startMin) * time.Minute
	r.Status = model.Status(status)
	r.Notes = notes.String
	return r, nil
}

// InsertIfFree serialises writers on the (court, day) lock row, checks for
// overlapping non-cancelled rows and inserts, all in one transaction. On
// Postgres the exclusion constraint on reservations backs the check up.
func (r *ReservationRepo) InsertIfFree(ctx context.Context, res model.Reservation) (model.Reservation, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Reservation{}, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	day := res.Date.String()
	if _, err := tx.ExecContext(ctx, r.d.Rebind(r.d.lockDaySQL()), res.CourtID, day); err != nil {
		return model.Reservation{}, err
	}

	startMin := int(res.Start / time.Minute)
	endMin := int(res.End() / time.Minute)
	var overlapping int
	err = tx.QueryRowContext(ctx, r.d.Rebind(`SELECT COUNT(*) FROM reservations
		WHERE court_id = ? AND day = ? AND status <> 'cancelled'
		  AND start_min < ? AND end_min > ?`),
		res.CourtID, day, endMin, startMin).Scan(&overlapping)
	if err != nil {
		return model.Reservation{}, err
	}
	if overlapping > 0 {
		return model.Reservation{}, ErrConflict
	}

	_, err = tx.ExecContext(ctx, r.d.Rebind(`INSERT INTO reservations
		(id, reference, court_id, venue_id, user_id, day, start_min, end_min,
		 player_count, status, price_cents, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		res.ID, res.Reference, res.CourtID, res.VenueID, res.UserID, day, startMin, endMin,
		res.PlayerCount, string(res.Status), res.PriceCents, res.Notes, res.CreatedAt, res.UpdatedAt)
	if err != nil {
		if r.d.isOverlapViolation(err) {
			return model.Reservation{}, ErrConflict
		}
		return model.Reservation{}, err
	}

	row := tx.QueryRowContext(ctx, r.d.Rebind(`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`), res.ID)
	saved, err := scanReservation(row)
	if err != nil {
		return model.Reservation{}, err
	}
	if err := tx.Commit(); err != nil {
		if r.d.isOverlapViolation(err) {
			return model.Reservation{}, ErrConflict
		}
		return model.Reservation{}, err
	}
	committed = true
	return saved, nil
}

func (r *ReservationRepo) Get(ctx context.Context, id string) (model.Reservation, error) {
	row := r.db.QueryRowContext(ctx, r.d.Rebind(`SELECT `+reservationColumns+` FROM reservations WHERE id = ?`), id)
	res, err := scanReservation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Reservation{}, ErrNotFound
		}
		return model.Reservation{}, err
	}
	return res, nil
}

func (r *ReservationRepo) ListBlocking(ctx context.Context, courtID uint64, d model.Date) ([]model.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(`SELECT `+reservationColumns+` FROM reservations
		WHERE court_id = ? AND day = ? AND status <> 'cancelled'
		ORDER BY start_min`), courtID, d.String())
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func (r *ReservationRepo) List(ctx context.Context, f model.ReservationFilter) ([]model.Reservation, error) {
	where := []string{}
	args := []any{}
	if f.UserID != 0 {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.VenueID != 0 {
		where = append(where, "venue_id = ?")
		args = append(args, f.VenueID)
	}
	if f.CourtID != 0 {
		where = append(where, "court_id = ?")
		args = append(args, f.CourtID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if !f.From.IsZero() {
		where = append(where, "day >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		where = append(where, "day <= ?")
		args = append(args, f.To.String())
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	q := `SELECT ` + reservationColumns + ` FROM reservations WHERE ` + cond + ` ORDER BY day, start_min, created_at`
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.db.QueryContext(ctx, r.d.Rebind(q), args...)
	if err != nil {
		return nil, err
	}
	return collectReservations(rows)
}

func collectReservations(rows *sql.Rows) ([]model.Reservation, error) {
	defer rows.Close()
	out := []model.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

// UpdateStatus is a compare-and-set on the status column.
func (r *ReservationRepo) UpdateStatus(ctx context.Context, id string, from, to model.Status, at time.Time) (model.Reservation, error) {
	res, err := r.db.ExecContext(ctx,
		r.d.Rebind(`UPDATE reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`),
		string(to), at, id, string(from))
	if err != nil {
		return model.Reservation{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Reservation{}, err
	}
	if n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return model.Reservation{}, err
		}
		return model.Reservation{}, ErrStale
	}
	return r.Get(ctx, id)
}
