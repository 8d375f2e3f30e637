package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Config describes a database connection. Driver is "mysql" or "postgres".
type Config struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DSN builds the driver-specific connection string.
func (c Config) DSN() (string, error) {
	switch c.Driver {
	case "mysql":
		auth := c.User
		if c.Password != "" {
			auth = fmt.Sprintf("%s:%s", c.User, c.Password)
		}
		// parseTime=true -> DATETIME/DATE -> time.Time | loc=UTC keeps times consistent
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, c.Host, c.Port, c.Name), nil
	case "postgres":
		ssl := c.SSLMode
		if ssl == "" {
			ssl = "disable"
		}
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.User, c.Password),
			Host:     c.Host + ":" + c.Port,
			Path:     "/" + c.Name,
			RawQuery: "sslmode=" + url.QueryEscape(ssl) + "&timezone=UTC",
		}
		return u.String(), nil
	}
	return "", fmt.Errorf("database: unsupported driver %q", c.Driver)
}

const maxAttempts = 10

// Open connects and verifies the connection, retrying while the server is
// still starting up (container start order is not guaranteed).
func Open(c Config, log *zap.Logger) (*sql.DB, error) {
	dsn, err := c.DSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(c.Driver, dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = db.PingContext(ctx)
		cancel()
		if err == nil {
			log.Info("database connected", zap.String("driver", c.Driver), zap.String("host", c.Host))
			return db, nil
		}
		if attempt == maxAttempts {
			_ = db.Close()
			return nil, fmt.Errorf("database: ping after %d attempts: %w", attempt, err)
		}
		log.Warn("database not ready yet", zap.Int("attempt", attempt), zap.Error(err))
		time.Sleep(2 * time.Second)
	}
}
