package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/noah-isme/tahfidz-admin-api/pkg/config"
)

const applicationName = "tahfidz-admin-api"

// reservedConns stay free for login and listing while an import keeps every worker in a transaction.
const reservedConns = 2

// NewPostgres opens the pool and pings it. importWorkers raises the open-connection limit so that
// each import worker can hold its row transaction without starving other requests.
func NewPostgres(ctx context.Context, cfg config.DatabaseConfig, importWorkers int) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn(cfg))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if open := poolSize(cfg.MaxOpenConns, importWorkers); open > 0 {
		db.SetMaxOpenConns(open)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return db, nil
}

func dsn(cfg config.DatabaseConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s application_name=%s",
		cfg.Host, cfg.Port, cfg.User, quote(cfg.Password), cfg.Name, sslMode, applicationName)
}

// quote escapes a libpq keyword value so passwords may contain spaces and quotes.
func quote(v string) string {
	out := make([]rune, 0, len(v)+2)
	out = append(out, '\'')
	for _, r := range v {
		if r == '\'' || r == '\\' {
			out = append(out, '\\')
		}
		out = append(out, r)
	}
	return string(append(out, '\''))
}

// poolSize returns 0 (unlimited) when nothing is configured.
func poolSize(configured, importWorkers int) int {
	if configured <= 0 {
		return 0
	}
	if floor := importWorkers + reservedConns; importWorkers > 1 && configured < floor {
		return floor
	}
	return configured
}
