package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
	"github.com/KI7MT/ismn-s1-lab/internal/store"
)

func TestNewRequiresPath(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSave(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "lab.db"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	t0 := time.Date(2017, 6, 26, 16, 28, 11, 0, time.UTC)
	rec := station.Record{Station: station.Station{ID: "RSMN-5TM-Barlad", Network: "RSMN", Sensor: "5TM", Name: "Barlad"}}
	rec = rec.WithMerged(station.OrbitDescending, station.NewMergedSeries([]station.MatchedRecord{
		{SatelliteTime: t0, VH: -16, VV: -9, Angle: math.NaN(), GroundTime: t0.Add(-time.Hour), GroundValue: 0.2},
		{SatelliteTime: t0.Add(24 * time.Hour), VH: -15, VV: -8, Angle: 39, GroundTime: t0, GroundValue: 0.21},
	}))

	ctx := context.Background()
	runID := store.NewRunID()
	n, err := store.Save(ctx, s, runID, []station.Record{rec})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n != 2 {
		t.Errorf("saved %d rows, want 2", n)
	}

	// A second save of the same run upserts the station and skips duplicate rows.
	if _, err := store.Save(ctx, s, runID, []station.Record{rec}); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	stations, err := s.CountStations(ctx)
	if err != nil || stations != 1 {
		t.Errorf("stations = %d, %v", stations, err)
	}
	matches, err := s.CountMatches(ctx, runID)
	if err != nil || matches != 2 {
		t.Errorf("matches = %d, %v", matches, err)
	}
	other, err := s.CountMatches(ctx, store.NewRunID())
	if err != nil || other != 0 {
		t.Errorf("other run = %d, %v", other, err)
	}
}
