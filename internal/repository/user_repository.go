package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quickcourt/reservation-core/internal/model"
	"github.com/quickcourt/reservation-core/internal/utils"
)

type UserRepo struct {
	DB *sql.DB
	d  Dialect
}

func NewUserRepo(db *sql.DB, d Dialect) *UserRepo { return &UserRepo{DB: db, d: d} }

// Create hashes the password and inserts the user, returning its ID.
func (r *UserRepo) Create(ctx context.Context, email, name, password string, role model.Role, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	id, err := r.d.insertID(ctx, r.DB,
		"INSERT INTO users (email, name, password_hash, role) VALUES (?,?,?,?)",
		email, name, hash, string(role))
	if err != nil {
		if r.d.isUniqueViolation(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	return id, nil
}

const userColumns = "id,email,name,password_hash,role,is_active,email_verified,created_at,updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u    model.User
		role string
	)
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.IsActive, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	u.Role = model.Role(role)
	return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		r.d.Rebind("SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1"), email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		r.d.Rebind("SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1"), id))
}

// MarkVerified records that the account confirmed its sign-up code.
func (r *UserRepo) MarkVerified(ctx context.Context, id uint64) error {
	return r.updateOne(ctx, id, "UPDATE users SET email_verified = ?, updated_at = ? WHERE id = ?", true, time.Now().UTC())
}

// SetActive enables or suspends an account.
func (r *UserRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	return r.updateOne(ctx, id, "UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?", active, time.Now().UTC())
}

// updateOne runs an update of user id; query ends with "WHERE id = ?".
func (r *UserRepo) updateOne(ctx context.Context, id uint64, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, r.d.Rebind(query), append(args, id)...)
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows when the values did not change.
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// ListUsers returns the accounts matching q, ordered by id.
func (r *UserRepo) ListUsers(ctx context.Context, q model.UserQuery) ([]model.User, error) {
	var (
		where []string
		args  []any
	)
	if q.Role != "" {
		where = append(where, "role = ?")
		args = append(args, string(q.Role))
	}
	if q.Active != nil {
		where = append(where, "is_active = ?")
		args = append(args, *q.Active)
	}
	if s := strings.ToLower(strings.TrimSpace(q.Search)); s != "" {
		where = append(where, "(LOWER(name) LIKE ? OR email LIKE ?)")
		args = append(args, "%"+s+"%", "%"+s+"%")
	}
	query := "SELECT " + userColumns + " FROM users"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := r.DB.QueryContext(ctx, r.d.Rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
