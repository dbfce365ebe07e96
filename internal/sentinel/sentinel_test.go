package sentinel

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/KI7MT/ismn-s1-lab/internal/log"
	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

func init() {
	log.UseLogger(zap.NewNop())
}

const (
	idEarly = "S1A_IW_GRDH_1SDV_20170626T162811_20170626T162836_017219_01CB6E_1D3A"
	idLate  = "S1B_IW_GRDH_1SDV_20170702T162740_20170702T162805_006298_00B11E_5F1C"
)

func TestParseProductTime(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		want    time.Time
		wantErr bool
	}{
		{"valid", idEarly, time.Date(2017, 6, 26, 16, 28, 11, 0, time.UTC), false},
		{"second product", idLate, time.Date(2017, 7, 2, 16, 27, 40, 0, time.UTC), false},
		{"too few fields", "S1A_IW_GRDH", time.Time{}, true},
		{"bad stamp", "S1A_IW_GRDH_1SDV_2017X626T162811_rest", time.Time{}, true},
		{"empty", "", time.Time{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseProductTime(tt.id)
			if tt.wantErr {
				if !errors.Is(err, station.ErrMalformedProductID) {
					t.Fatalf("err = %v, want ErrMalformedProductID", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

const regionJSON = `[
 ["id","longitude","latitude","time","VV","VH","angle"],
 ["` + idLate + `", 27.1, 47.2, 1498926460000, -8.5, -15.25, 39.1],
 ["` + idEarly + `", 27.1, 47.2, 1498494491000, -9.0, -16.5, null]
]`

func TestDecodeRegion(t *testing.T) {
	samples, err := DecodeRegion(strings.NewReader(regionJSON))
	if err != nil {
		t.Fatalf("DecodeRegion: %v", err)
	}
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}
	if samples[0].ProductID != idEarly {
		t.Errorf("first sample %s, want the earlier product", samples[0].ProductID)
	}
	if v, _ := samples[0].VH.Value(station.ChannelFirst); v != -16.5 {
		t.Errorf("VH = %v, want -16.5", v)
	}
	if !math.IsNaN(samples[0].Angle) {
		t.Errorf("null angle decoded as %v, want NaN", samples[0].Angle)
	}
	if samples[1].Angle != 39.1 {
		t.Errorf("angle = %v, want 39.1", samples[1].Angle)
	}
}

func TestDecodeRegionMissingID(t *testing.T) {
	_, err := DecodeRegion(strings.NewReader(`[["longitude","latitude"],[1,2]]`))
	if err == nil {
		t.Fatal("expected error for table without id column")
	}
}

const collectionJSON = `{
 "type": "FeatureCollection",
 "features": [
  {"type":"Feature","id":"` + idEarly + `","geometry":null,
   "properties":{"VH":[-16.0,-17.0],"VV":-9.5,"angle":38.2}}
 ]
}`

func TestDecodeFeatureCollection(t *testing.T) {
	samples, err := DecodeFeatureCollection(strings.NewReader(collectionJSON))
	if err != nil {
		t.Fatalf("DecodeFeatureCollection: %v", err)
	}
	if len(samples) != 1 {
		t.Fatalf("got %d samples, want 1", len(samples))
	}
	if len(samples[0].VH) != 2 {
		t.Error("VH should carry two values")
	}
	if _, err := samples[0].VH.Value(station.ChannelError); !errors.Is(err, station.ErrChannelValueAmbiguous) {
		t.Errorf("err = %v, want ErrChannelValueAmbiguous", err)
	}
}

func TestDecodeDetectsShape(t *testing.T) {
	for name, body := range map[string]string{
		"table":      "\n  " + regionJSON,
		"collection": collectionJSON,
	} {
		t.Run(name, func(t *testing.T) {
			samples, err := Decode(strings.NewReader(body))
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(samples) == 0 {
				t.Fatal("no samples decoded")
			}
		})
	}

	if _, err := Decode(strings.NewReader("")); err == nil {
		t.Error("empty input should fail")
	}
	if _, err := Decode(strings.NewReader("id,VH\n")); err == nil {
		t.Error("csv input should fail")
	}
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	st := station.Station{ID: "RSMN-5TM-Barlad"}
	src := DirSource{Dir: dir}

	if err := os.WriteFile(src.Path(st, station.OrbitDescending), []byte(regionJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(`{"type":"FeatureCollection","features":[]}`)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src.Path(st, station.OrbitAscending)+".gz", buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()

	desc, err := src.Series(ctx, st, station.OrbitDescending)
	if err != nil {
		t.Fatalf("descending: %v", err)
	}
	if desc.NoData() || desc.Len() != 2 {
		t.Errorf("descending: NoData=%v Len=%d, want 2 samples", desc.NoData(), desc.Len())
	}

	asc, err := src.Series(ctx, st, station.OrbitAscending)
	if err != nil {
		t.Fatalf("ascending: %v", err)
	}
	if !asc.NoData() {
		t.Error("zero scenes should be no data")
	}

	other := station.Station{ID: "RSMN-5TM-Other"}
	missing, err := src.Series(ctx, other, station.OrbitDescending)
	if err != nil || !missing.NoData() {
		t.Errorf("missing export: NoData=%v err=%v, want no data and nil", missing.NoData(), err)
	}
}

func TestDirSourceEmptyFileIsNoData(t *testing.T) {
	dir := t.TempDir()
	st := station.Station{ID: "N-S-A"}
	src := DirSource{Dir: dir}

	if err := os.WriteFile(src.Path(st, station.OrbitDescending), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src.Path(st, station.OrbitAscending), []byte(regionJSON), 0o644); err != nil {
		t.Fatal(err)
	}

	desc, err := src.Series(context.Background(), st, station.OrbitDescending)
	if err != nil || !desc.NoData() {
		t.Errorf("empty export: NoData=%v err=%v, want no data and nil", desc.NoData(), err)
	}

	out, failed, err := Attach(context.Background(), []station.Record{{Station: st}}, src)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if len(failed) != 0 || len(out) != 1 {
		t.Fatalf("got %d records, failed = %v", len(out), failed)
	}
	if !out[0].Descending.NoData() {
		t.Error("descending should be no data")
	}
	if out[0].Ascending.NoData() || out[0].Ascending.Len() != 2 {
		t.Errorf("ascending: NoData=%v Len=%d, want 2 samples", out[0].Ascending.NoData(), out[0].Ascending.Len())
	}
}

type stubSource map[station.Orbit]error

func (s stubSource) Series(_ context.Context, _ station.Station, o station.Orbit) (station.SatelliteSeries, error) {
	if err := s[o]; err != nil {
		return station.SatelliteSeries{}, err
	}
	return station.NewSatelliteSeries(nil), nil
}

func TestAttach(t *testing.T) {
	records := []station.Record{
		{Station: station.Station{ID: "a"}},
		{Station: station.Station{ID: "b"}},
	}

	out, failed, err := Attach(context.Background(), records, stubSource{})
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if len(out) != 2 || len(failed) != 0 {
		t.Fatalf("got %d records, %d failures", len(out), len(failed))
	}
	for _, rec := range out {
		if rec.Descending.NoData() || rec.Ascending.NoData() {
			t.Errorf("%s: both orbits should be attached", rec.Station.ID)
		}
	}
	if !records[0].Descending.NoData() {
		t.Error("input records must not be modified")
	}
}

func TestAttachDropsFailingStation(t *testing.T) {
	records := []station.Record{{Station: station.Station{ID: "a"}}}
	src := stubSource{station.OrbitAscending: fmt.Errorf("decode: %w", station.ErrMalformedProductID)}

	out, failed, err := Attach(context.Background(), records, src)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("failing station kept: %+v", out)
	}
	if !errors.Is(failed["a"], station.ErrMalformedProductID) {
		t.Errorf("failed = %v", failed)
	}
}

func TestAttachCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := Attach(ctx, []station.Record{{}}, stubSource{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDirSourcePath(t *testing.T) {
	src := DirSource{Dir: "/data/s1"}
	got := src.Path(station.Station{ID: "X-Y-Z"}, station.OrbitAscending)
	if want := filepath.Join("/data/s1", "X-Y-Z_asc.json"); got != want {
		t.Errorf("Path = %s, want %s", got, want)
	}
}
