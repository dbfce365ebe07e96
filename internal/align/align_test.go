package align

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/KI7MT/ismn-s1-lab/internal/log"
	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

func init() {
	log.UseLogger(zap.NewNop())
}

var day = time.Date(2017, 6, 26, 0, 0, 0, 0, time.UTC)

func at(hour int) time.Time {
	return day.Add(time.Duration(hour) * time.Hour)
}

func ground(pairs ...float64) station.GroundSeries {
	g := make(station.GroundSeries, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		g = append(g, station.GroundSample{Time: at(int(pairs[i])), Value: pairs[i+1]})
	}
	return g
}

func sat(pairs ...float64) station.SatelliteSeries {
	s := make([]station.SatelliteSample, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		s = append(s, station.SatelliteSample{
			Time: at(int(pairs[i])),
			VH:   station.Scalar(pairs[i+1]),
			VV:   station.Scalar(pairs[i+1] + 6),
		})
	}
	return station.NewSatelliteSeries(s)
}

type pair struct {
	sat, ground int
	vh, sm      float64
}

func checkPairs(t *testing.T, got []station.MatchedRecord, want []pair) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d records %+v, want %d", len(got), got, len(want))
	}
	for i, w := range want {
		r := got[i]
		if !r.SatelliteTime.Equal(at(w.sat)) || !r.GroundTime.Equal(at(w.ground)) || r.VH != w.vh || r.GroundValue != w.sm {
			t.Errorf("record %d: got (sat=%s vh=%v ground=%s sm=%v), want (sat=%02d:00 vh=%v ground=%02d:00 sm=%v)",
				i, r.SatelliteTime.Format("15:04"), r.VH, r.GroundTime.Format("15:04"), r.GroundValue,
				w.sat, w.vh, w.ground, w.sm)
		}
	}
}

func mustMatch(t *testing.T, s station.SatelliteSeries, g station.GroundSeries) station.MergedSeries {
	t.Helper()
	buf, err := sortedGround(g)
	if err != nil {
		t.Fatalf("sortedGround: %v", err)
	}
	m, err := MatchSeries(s, buf, station.ChannelFirst)
	if err != nil {
		t.Fatalf("MatchSeries: %v", err)
	}
	return m
}

func TestMatchScenarios(t *testing.T) {
	tests := []struct {
		name   string
		sat    station.SatelliteSeries
		ground station.GroundSeries
		want   []pair
	}{
		{
			name:   "basic alignment",
			ground: ground(9, 0.20, 12, 0.25, 18, 0.30),
			sat:    sat(11, -12.0, 17, -11.5),
			want:   []pair{{11, 9, -12.0, 0.20}, {17, 12, -11.5, 0.25}},
		},
		{
			name:   "duplicate timestamps collapse to first",
			ground: ground(5, 100, 15, 200),
			sat:    sat(10, 1, 10, 2, 20, 3),
			want:   []pair{{10, 5, 1, 100}, {20, 15, 3, 200}},
		},
		{
			name:   "empty ground",
			ground: nil,
			sat:    sat(10, 1, 20, 2),
			want:   nil,
		},
		{
			name:   "empty satellite",
			ground: ground(1, 0.1),
			sat:    sat(),
			want:   nil,
		},
		{
			name:   "ground starts after first passes",
			ground: ground(12, 0.3, 20, 0.4),
			sat:    sat(3, -10, 8, -11, 14, -12),
			want:   []pair{{14, 12, -12, 0.3}},
		},
		{
			name:   "ground sample equal to pass time matches",
			ground: ground(6, 0.1, 10, 0.2),
			sat:    sat(10, -9),
			want:   []pair{{10, 10, -9, 0.2}},
		},
		{
			name:   "consumed ground sample is not reused",
			ground: ground(5, 0.1, 30, 0.2),
			sat:    sat(10, -1, 20, -2),
			want:   []pair{{10, 5, -1, 0.1}},
		},
		{
			name:   "latest eligible ground wins",
			ground: ground(1, 0.1, 2, 0.2, 3, 0.3, 9, 0.9),
			sat:    sat(4, -5),
			want:   []pair{{4, 3, -5, 0.3}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := mustMatch(t, tt.sat, tt.ground)
			if m.NoData() {
				t.Fatal("available satellite series produced no-data merged series")
			}
			checkPairs(t, m.Records, tt.want)
		})
	}
}

func TestDuplicateValueNeverAppears(t *testing.T) {
	m := mustMatch(t, sat(10, 1, 10, 2, 20, 3), ground(5, 100, 15, 200))
	for _, r := range m.Records {
		if r.VH == 2 {
			t.Fatalf("second acquisition at t=10 leaked into output: %+v", r)
		}
	}
}

func TestMatchInvariants(t *testing.T) {
	g := ground(0, 0.1, 1, 0.11, 3, 0.13, 4, 0.14, 7, 0.17, 8, 0.18, 12, 0.2, 13, 0.21, 20, 0.3)
	s := sat(2, -1, 2, -1.5, 5, -2, 6, -3, 9, -4, 13, -5, 13, -6, 19, -7, 25, -8)
	m := mustMatch(t, s, g)

	seen := make(map[time.Time]bool)
	for i, r := range m.Records {
		if r.GroundTime.After(r.SatelliteTime) {
			t.Errorf("record %d: ground %s after satellite %s", i, r.GroundTime, r.SatelliteTime)
		}
		if seen[r.GroundTime] {
			t.Errorf("record %d: ground sample %s reused", i, r.GroundTime)
		}
		seen[r.GroundTime] = true
		if i > 0 {
			prev := m.Records[i-1]
			if !r.SatelliteTime.After(prev.SatelliteTime) {
				t.Errorf("record %d: satellite times not strictly ascending", i)
			}
			if r.GroundTime.Before(prev.GroundTime) {
				t.Errorf("record %d: ground times decreased", i)
			}
		}
	}
	if m.Len() > s.Len() {
		t.Errorf("more records (%d) than acquisitions (%d)", m.Len(), s.Len())
	}
}

func TestMatchNoData(t *testing.T) {
	m := mustMatch(t, station.SatelliteSeries{}, ground(1, 0.1))
	if !m.NoData() {
		t.Fatal("no-data satellite series must give no-data merged series")
	}
}

func TestNormalizeGroundKeepsWallClock(t *testing.T) {
	zone := time.FixedZone("UTC+2", 2*60*60)
	in := station.GroundSeries{{Time: time.Date(2017, 6, 26, 9, 30, 0, 0, zone), Value: 0.2}}

	out, err := NormalizeGround(in)
	if err != nil {
		t.Fatalf("NormalizeGround: %v", err)
	}
	want := time.Date(2017, 6, 26, 9, 30, 0, 0, time.UTC)
	if !out[0].Time.Equal(want) || out[0].Time.Location() != time.UTC {
		t.Errorf("got %s, want %s", out[0].Time, want)
	}
	if in[0].Time.Location() != zone {
		t.Error("input series was modified")
	}
}

func TestNormalizeGroundRejectsZeroTime(t *testing.T) {
	_, err := NormalizeGround(station.GroundSeries{{Value: 0.2}})
	if !errors.Is(err, station.ErrMalformedTimestamp) {
		t.Fatalf("got %v, want ErrMalformedTimestamp", err)
	}
}

func TestDedupSatellite(t *testing.T) {
	s := station.NewSatelliteSeries([]station.SatelliteSample{
		{Time: at(20), ProductID: "c"},
		{Time: at(10), ProductID: "a"},
		{Time: at(10), ProductID: "b"},
	})
	out := DedupSatellite(s)
	if len(out) != 2 || out[0].ProductID != "a" || out[1].ProductID != "c" {
		t.Fatalf("got %+v", out)
	}
	if s.Samples[0].ProductID != "c" {
		t.Error("DedupSatellite reordered the caller's series")
	}
}

func TestBuildStationOrbitsAreIndependent(t *testing.T) {
	rec := station.Record{
		Station:    station.Station{ID: "RSMN-5TM-Dumbraveni"},
		Ground:     ground(9, 0.20, 12, 0.25, 18, 0.30),
		Descending: sat(11, -12.0, 17, -11.5),
		Ascending:  sat(11, -13.0, 17, -12.5),
	}

	out, err := BuildStation(rec, Options{})
	if err != nil {
		t.Fatalf("BuildStation: %v", err)
	}
	checkPairs(t, out.MergedDescending.Records, []pair{{11, 9, -12.0, 0.20}, {17, 12, -11.5, 0.25}})
	checkPairs(t, out.MergedAscending.Records, []pair{{11, 9, -13.0, 0.20}, {17, 12, -12.5, 0.25}})

	if !rec.MergedDescending.NoData() {
		t.Error("BuildStation mutated its input")
	}
}

func TestBuildStationNoDataOrbit(t *testing.T) {
	rec := station.Record{
		Station:    station.Station{ID: "s"},
		Ground:     nil,
		Descending: sat(10, -1),
	}
	out, err := BuildStation(rec, Options{})
	if err != nil {
		t.Fatalf("BuildStation: %v", err)
	}
	if out.MergedDescending.NoData() || out.MergedDescending.Len() != 0 {
		t.Errorf("descending: got %+v, want available and empty", out.MergedDescending)
	}
	if !out.MergedAscending.NoData() {
		t.Error("ascending: want no data")
	}
}

func TestRunIsolatesFailingStations(t *testing.T) {
	bad := station.Record{
		Station:    station.Station{ID: "bad"},
		Ground:     station.GroundSeries{{Value: 0.1}},
		Descending: sat(10, -1),
	}
	ambiguous := station.Record{
		Station: station.Station{ID: "ambiguous"},
		Ground:  ground(1, 0.1),
		Descending: station.NewSatelliteSeries([]station.SatelliteSample{
			{Time: at(5), VH: station.Channel{1, 2}, VV: station.Scalar(3)},
		}),
	}
	good := station.Record{
		Station:    station.Station{ID: "good"},
		Ground:     ground(9, 0.20, 12, 0.25),
		Descending: sat(11, -12.0),
	}

	var calls int
	res, err := Run(context.Background(), []station.Record{bad, ambiguous, good}, Options{
		Policy:   station.ChannelError,
		Progress: func(station.Record, error) { calls++ },
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if calls != 3 {
		t.Errorf("progress called %d times, want 3", calls)
	}
	if !errors.Is(res.Failed["bad"], station.ErrMalformedTimestamp) {
		t.Errorf("bad: got %v", res.Failed["bad"])
	}
	if !errors.Is(res.Failed["ambiguous"], station.ErrChannelValueAmbiguous) {
		t.Errorf("ambiguous: got %v", res.Failed["ambiguous"])
	}
	if len(res.Records) != 1 || res.Records[0].Station.ID != "good" {
		t.Fatalf("got records %+v", res.Records)
	}
	if res.Matched != 1 {
		t.Errorf("matched = %d, want 1", res.Matched)
	}
	if _, ok := res.ByID()["good"]; !ok {
		t.Error("ByID missing good station")
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := station.Record{
		Station:    station.Station{ID: "a"},
		Ground:     ground(9, 0.20),
		Descending: sat(11, -12.0),
	}
	res, err := Run(ctx, []station.Record{rec}, Options{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(res.Records) != 0 {
		t.Errorf("got %d records after cancellation", len(res.Records))
	}
}
