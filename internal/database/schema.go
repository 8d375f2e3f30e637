package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// Day-level times are stored as minutes from local midnight (start_min,
// end_min, open_min, close_min); instants are UTC.

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL DEFAULT 'user',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6) ON UPDATE CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		user_id BIGINT UNSIGNED NOT NULL,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at DATETIME(6) NOT NULL,
		revoked_at DATETIME(6) NULL,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY idx_refresh_user (user_id),
		CONSTRAINT fk_refresh_user FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS venues (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		owner_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(255) NOT NULL,
		location VARCHAR(255) NOT NULL DEFAULT '',
		time_zone VARCHAR(64) NOT NULL DEFAULT 'UTC',
		slot_minutes INT NOT NULL DEFAULT 30,
		auto_confirm BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY idx_venues_owner (owner_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS venue_hours (
		venue_id BIGINT UNSIGNED NOT NULL,
		weekday TINYINT NOT NULL,
		open_min INT NOT NULL,
		close_min INT NOT NULL,
		PRIMARY KEY (venue_id, weekday),
		CONSTRAINT fk_hours_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS courts (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		venue_id BIGINT UNSIGNED NOT NULL,
		name VARCHAR(255) NOT NULL,
		sport VARCHAR(64) NOT NULL,
		hourly_price_cents BIGINT NOT NULL,
		max_players INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		updated_at DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		KEY idx_courts_venue (venue_id),
		CONSTRAINT fk_courts_venue FOREIGN KEY (venue_id) REFERENCES venues(id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS court_day_locks (
		court_id BIGINT UNSIGNED NOT NULL,
		day DATE NOT NULL,
		PRIMARY KEY (court_id, day)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id CHAR(36) PRIMARY KEY,
		reference VARCHAR(16) NOT NULL,
		court_id BIGINT UNSIGNED NOT NULL,
		venue_id BIGINT UNSIGNED NOT NULL,
		user_id BIGINT UNSIGNED NOT NULL,
		day DATE NOT NULL,
		start_min INT NOT NULL,
		end_min INT NOT NULL,
		player_count INT NOT NULL DEFAULT 1,
		status VARCHAR(16) NOT NULL,
		price_cents BIGINT NOT NULL,
		notes TEXT NULL,
		created_at DATETIME(6) NOT NULL,
		updated_at DATETIME(6) NOT NULL,
		KEY idx_res_court_day (court_id, day, status),
		KEY idx_res_user (user_id, day),
		KEY idx_res_venue (venue_id, day),
		CONSTRAINT fk_res_court FOREIGN KEY (court_id) REFERENCES courts(id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

var postgresSchema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		email VARCHAR(255) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL DEFAULT '',
		password_hash VARCHAR(255) NOT NULL,
		role VARCHAR(32) NOT NULL DEFAULT 'user',
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		email_verified BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		token_hash CHAR(64) NOT NULL UNIQUE,
		expires_at TIMESTAMPTZ NOT NULL,
		revoked_at TIMESTAMPTZ NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_refresh_user ON refresh_tokens (user_id)`,
	`CREATE TABLE IF NOT EXISTS venues (
		id BIGSERIAL PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		name VARCHAR(255) NOT NULL,
		location VARCHAR(255) NOT NULL DEFAULT '',
		time_zone VARCHAR(64) NOT NULL DEFAULT 'UTC',
		slot_minutes INT NOT NULL DEFAULT 30,
		auto_confirm BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_venues_owner ON venues (owner_id)`,
	`CREATE TABLE IF NOT EXISTS venue_hours (
		venue_id BIGINT NOT NULL REFERENCES venues(id) ON DELETE CASCADE,
		weekday SMALLINT NOT NULL,
		open_min INT NOT NULL,
		close_min INT NOT NULL,
		PRIMARY KEY (venue_id, weekday)
	)`,
	`CREATE TABLE IF NOT EXISTS courts (
		id BIGSERIAL PRIMARY KEY,
		venue_id BIGINT NOT NULL REFERENCES venues(id) ON DELETE CASCADE,
		name VARCHAR(255) NOT NULL,
		sport VARCHAR(64) NOT NULL,
		hourly_price_cents BIGINT NOT NULL,
		max_players INT NOT NULL DEFAULT 0,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_courts_venue ON courts (venue_id)`,
	`CREATE TABLE IF NOT EXISTS court_day_locks (
		court_id BIGINT NOT NULL,
		day DATE NOT NULL,
		PRIMARY KEY (court_id, day)
	)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id UUID PRIMARY KEY,
		reference VARCHAR(16) NOT NULL,
		court_id BIGINT NOT NULL REFERENCES courts(id),
		venue_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		day DATE NOT NULL,
		start_min INT NOT NULL,
		end_min INT NOT NULL,
		player_count INT NOT NULL DEFAULT 1,
		status VARCHAR(16) NOT NULL,
		price_cents BIGINT NOT NULL,
		notes TEXT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		CHECK (start_min < end_min),
		CONSTRAINT reservations_no_overlap EXCLUDE USING gist (
			court_id WITH =,
			day WITH =,
			int4range(start_min, end_min) WITH &&
		) WHERE (status <> 'cancelled')
	)`,
	`CREATE INDEX IF NOT EXISTS idx_res_user ON reservations (user_id, day)`,
	`CREATE INDEX IF NOT EXISTS idx_res_venue ON reservations (venue_id, day)`,
}

// Schema returns the DDL statements for driver, in execution order.
func Schema(driver string) ([]string, error) {
	switch driver {
	case "mysql":
		return mysqlSchema, nil
	case "postgres":
		return postgresSchema, nil
	}
	return nil, fmt.Errorf("database: unsupported driver %q", driver)
}

// Migrate creates any missing tables. Statements are idempotent and run one
// at a time since the MySQL driver rejects multi-statement queries.
func Migrate(ctx context.Context, db *sql.DB, driver string, log *zap.Logger) error {
	stmts, err := Schema(driver)
	if err != nil {
		return err
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("database: migrate step %d: %w", i+1, err)
		}
	}
	log.Info("schema up to date", zap.String("driver", driver), zap.Int("statements", len(stmts)))
	return nil
}
