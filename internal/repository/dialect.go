package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
)

// Dialect captures the SQL differences between the supported databases.
// Queries are written with `?` placeholders and rebound per dialect.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
)

// Rebind rewrites `?` placeholders into `$n` for Postgres. Question marks
// inside single-quoted literals are left alone.
func (d Dialect) Rebind(q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(q); i++ {
		ch := q[i]
		switch {
		case ch == '\'':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// lockDaySQL upserts the (court, day) lock row and leaves it exclusively
// locked by the current transaction.
func (d Dialect) lockDaySQL() string {
	if d == Postgres {
		return `INSERT INTO court_day_locks (court_id, day) VALUES (?, ?)
			ON CONFLICT (court_id, day) DO UPDATE SET court_id = EXCLUDED.court_id`
	}
	return `INSERT INTO court_day_locks (court_id, day) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE court_id = court_id`
}

// isUniqueViolation reports a duplicate-key error (MySQL 1062, Postgres 23505).
func (d Dialect) isUniqueViolation(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23505"
	}
	return false
}

// isOverlapViolation reports a breach of the reservations exclusion
// constraint (Postgres 23P01).
func (d Dialect) isOverlapViolation(err error) bool {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pe.Code == "23P01"
	}
	return false
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// insertID runs an INSERT and returns the generated id. Postgres has no
// LastInsertId, so the statement is extended with RETURNING id.
func (d Dialect) insertID(ctx context.Context, q queryer, query string, args ...any) (uint64, error) {
	if d == Postgres {
		var id uint64
		err := q.QueryRowContext(ctx, d.Rebind(query+" RETURNING id"), args...).Scan(&id)
		return id, err
	}
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}
