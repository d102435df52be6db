// Package store keeps a local history of published samples in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/relabs-tech/spacenode/internal/env"
)

const (
	queryTimeout = 5 * time.Second

	// MaxRecent caps how many rows Recent returns.
	MaxRecent = 1000

	// timestampLayout is fixed width so text order is time order.
	timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// History is a SQLite-backed sample log.
type History struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and creates the table.
func Open(path string) (*History, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS samples (
            id INTEGER PRIMARY KEY,
            source TEXT NOT NULL,
            timestamp TEXT NOT NULL,
            temperature REAL,
            pressure REAL,
            altitude REAL,
            pressure_ok INTEGER NOT NULL,
            humidity_temperature REAL,
            humidity REAL,
            humidity_ok INTEGER NOT NULL
        );
        CREATE INDEX IF NOT EXISTS samples_timestamp ON samples (timestamp);
        CREATE UNIQUE INDEX IF NOT EXISTS samples_source_timestamp ON samples (source, timestamp);
    `)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}
	return &History{db: db}, nil
}

// Close closes the database.
func (h *History) Close() error {
	return h.db.Close()
}

// Record appends one sample. A sample with the same source and time as a
// stored one is dropped, so replayed retained messages are recorded once.
func (h *History) Record(ctx context.Context, s env.Sample) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := h.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO samples (
			source,
			timestamp,
			temperature,
			pressure,
			altitude,
			pressure_ok,
			humidity_temperature,
			humidity,
			humidity_ok
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, s.Source, s.Time.UTC().Format(timestampLayout),
		s.Temperature, s.Pressure, s.Altitude, s.PressureOK,
		s.HumidityTemp, s.Humidity, s.HumidityOK)
	if err != nil {
		return fmt.Errorf("failed to record sample: %w", err)
	}
	return nil
}

// Recent returns up to limit samples, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]env.Sample, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := h.db.QueryContext(ctx, `
		SELECT source, timestamp, temperature, pressure, altitude, pressure_ok,
		       humidity_temperature, humidity, humidity_ok
		FROM samples ORDER BY timestamp DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query samples: %w", err)
	}
	defer rows.Close()

	var out []env.Sample
	for rows.Next() {
		var (
			s  env.Sample
			ts string
		)
		if err := rows.Scan(&s.Source, &ts, &s.Temperature, &s.Pressure, &s.Altitude, &s.PressureOK,
			&s.HumidityTemp, &s.Humidity, &s.HumidityOK); err != nil {
			return nil, fmt.Errorf("failed to scan sample: %w", err)
		}
		if s.Time, err = time.Parse(timestampLayout, ts); err != nil {
			return nil, fmt.Errorf("bad timestamp %q: %w", ts, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
