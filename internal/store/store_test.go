package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

type recordingStore struct {
	stations []station.Station
	runID    string
	rows     []station.Row
}

func (r *recordingStore) UpsertStations(_ context.Context, s []station.Station) error {
	r.stations = s
	return nil
}

func (r *recordingStore) InsertMatches(_ context.Context, runID string, rows []station.Row) error {
	r.runID = runID
	r.rows = rows
	return nil
}

func (r *recordingStore) Close() error { return nil }

func TestSave(t *testing.T) {
	t0 := time.Date(2017, 6, 1, 0, 0, 0, 0, time.UTC)
	a := station.Record{Station: station.Station{ID: "a"}}
	a = a.WithMerged(station.OrbitAscending, station.NewMergedSeries([]station.MatchedRecord{{SatelliteTime: t0}}))
	b := station.Record{Station: station.Station{ID: "b"}}

	rs := &recordingStore{}
	n, err := Save(context.Background(), rs, "run-1", []station.Record{a, b})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != 1 || len(rs.rows) != 1 || rs.runID != "run-1" {
		t.Errorf("n=%d rows=%d run=%s", n, len(rs.rows), rs.runID)
	}
	if len(rs.stations) != 2 {
		t.Errorf("stations = %d, want both, including the one without matches", len(rs.stations))
	}
}

func TestNewRunID(t *testing.T) {
	id := NewRunID()
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("run id %q is not a uuid: %v", id, err)
	}
	if id == NewRunID() {
		t.Error("run ids repeat")
	}
}
