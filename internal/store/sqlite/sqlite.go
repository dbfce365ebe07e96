package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

type Store struct {
	db *sql.DB
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) UpsertStations(ctx context.Context, stations []station.Station) error {
	if len(stations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stations (
			station_id, network, sensor, name, latitude, longitude,
			elevation, depth_from, depth_to, landcover, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(station_id)
		DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			elevation = excluded.elevation,
			depth_from = excluded.depth_from,
			depth_to = excluded.depth_to,
			landcover = excluded.landcover,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, st := range stations {
		_, err = stmt.ExecContext(ctx,
			st.ID, st.Network, st.Sensor, st.Name,
			st.Latitude, st.Longitude, st.Elevation,
			st.DepthFrom, st.DepthTo, st.LandCover, now,
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert station %s: %w", st.ID, err)
		}
	}

	return tx.Commit()
}

func (s *Store) InsertMatches(ctx context.Context, runID string, rows []station.Row) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO matches (
			run_id, station_id, orbit, t_s1, vh, vv, angle, t_sm, sm
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, station_id, orbit, t_s1)
		DO NOTHING
	`)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err = stmt.ExecContext(ctx,
			runID, r.StationID, string(r.Orbit),
			formatTime(r.SatelliteTime),
			nullFloat(r.VH), nullFloat(r.VV), nullFloat(r.Angle),
			formatTime(r.GroundTime), nullFloat(r.GroundValue),
		)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert match %s %s: %w", r.StationID, r.Orbit, err)
		}
	}

	return tx.Commit()
}

// CountMatches returns the number of match rows stored for a run.
func (s *Store) CountMatches(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM matches WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}

// CountStations returns the number of stored stations.
func (s *Store) CountStations(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM stations`).Scan(&n)
	return n, err
}

func (s *Store) migrate() error {
	statements := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS stations (
			station_id TEXT NOT NULL PRIMARY KEY,
			network TEXT NOT NULL,
			sensor TEXT NOT NULL,
			name TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			elevation REAL NOT NULL,
			depth_from REAL NOT NULL,
			depth_to REAL NOT NULL,
			landcover INTEGER NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS matches (
			run_id TEXT NOT NULL,
			station_id TEXT NOT NULL REFERENCES stations(station_id),
			orbit TEXT NOT NULL,
			t_s1 TEXT NOT NULL,
			vh REAL,
			vv REAL,
			angle REAL,
			t_sm TEXT NOT NULL,
			sm REAL,
			PRIMARY KEY (run_id, station_id, orbit, t_s1)
		);`,
	}

	for _, statement := range statements {
		if _, err := s.db.Exec(statement); err != nil {
			return err
		}
	}

	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}

// SQLite has no NaN; store it as NULL.
func nullFloat(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}
