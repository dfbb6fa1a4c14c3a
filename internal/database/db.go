package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/Alias1177/HydraX/models"
)

// DB is the Postgres trade journal. It mirrors trade_history.json for
// reporting and is never read back by the trading loop.
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the lib/pq key/value connection string
func (p ConnectionParams) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, sslMode,
	)
}

// New opens and pings the database and creates the journal table
func New(ctx context.Context, params ConnectionParams) (*DB, error) {
	db, err := sql.Open("postgres", params.DSN())
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &DB{db}, nil
}

func createTables(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS trade_journal (
			id BIGSERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			entry_price DOUBLE PRECISION NOT NULL,
			exit_price DOUBLE PRECISION NOT NULL,
			pnl DOUBLE PRECISION NOT NULL,
			exit_reason TEXT NOT NULL,
			entry_time TIMESTAMPTZ,
			exit_time TIMESTAMPTZ NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS trade_journal_exit_time_idx ON trade_journal (exit_time)
	`)
	return err
}

// Record inserts one closed trade
func (db *DB) Record(ctx context.Context, rec models.TradeRecord) error {
	var entry sql.NullTime
	if !rec.EntryTime.IsZero() {
		entry = sql.NullTime{Time: rec.EntryTime.UTC(), Valid: true}
	}
	exit := rec.ExitTime
	if exit.IsZero() {
		exit = time.Now()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO trade_journal (
			symbol, direction, entry_price, exit_price, pnl, exit_reason, entry_time, exit_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		rec.Symbol, string(rec.Direction), rec.EntryPrice, rec.ExitPrice, rec.PnL, rec.ExitReason, entry, exit.UTC())
	return err
}

// Trades returns journaled trades with exit time in [from, to), oldest first.
// A zero to means no upper bound.
func (db *DB) Trades(ctx context.Context, from, to time.Time) ([]models.TradeRecord, error) {
	if to.IsZero() {
		to = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT symbol, direction, entry_price, exit_price, pnl, exit_reason, entry_time, exit_time
		FROM trade_journal
		WHERE exit_time >= $1 AND exit_time < $2
		ORDER BY exit_time, id
	`, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []models.TradeRecord
	for rows.Next() {
		var (
			rec   models.TradeRecord
			dir   string
			entry sql.NullTime
		)
		if err := rows.Scan(&rec.Symbol, &dir, &rec.EntryPrice, &rec.ExitPrice, &rec.PnL, &rec.ExitReason, &entry, &rec.ExitTime); err != nil {
			return nil, err
		}
		rec.Direction = models.Direction(dir)
		if entry.Valid {
			rec.EntryTime = entry.Time.UTC()
		}
		rec.ExitTime = rec.ExitTime.UTC()
		trades = append(trades, rec)
	}
	return trades, rows.Err()
}
