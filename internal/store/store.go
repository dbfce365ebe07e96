// Package store persists stations and matched records of an alignment run.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

type Store interface {
	UpsertStations(ctx context.Context, stations []station.Station) error
	InsertMatches(ctx context.Context, runID string, rows []station.Row) error
	Close() error
}

// NewRunID returns a fresh identifier tagging every row written by one run.
func NewRunID() string {
	return uuid.NewString()
}

// Stations returns the station metadata of records.
func Stations(records []station.Record) []station.Station {
	out := make([]station.Station, len(records))
	for i, r := range records {
		out[i] = r.Station
	}
	return out
}

// Save writes stations then matched rows of records to s.
func Save(ctx context.Context, s Store, runID string, records []station.Record) (int, error) {
	if err := s.UpsertStations(ctx, Stations(records)); err != nil {
		return 0, err
	}
	rows := station.Rows(records)
	if err := s.InsertMatches(ctx, runID, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}
