package sentinel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/pgzip"

	"github.com/KI7MT/ismn-s1-lab/internal/log"
	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// Source yields the backscatter series of one station and orbit. A source
// with no imagery returns the zero SatelliteSeries and a nil error.
type Source interface {
	Series(ctx context.Context, st station.Station, orbit station.Orbit) (station.SatelliteSeries, error)
}

// DirSource reads exports laid out as <Dir>/<station id>_<desc|asc>.json,
// optionally gzip-compressed with a .gz suffix.
type DirSource struct {
	Dir string
}

// Path returns the uncompressed export path for a station and orbit.
func (d DirSource) Path(st station.Station, orbit station.Orbit) string {
	return filepath.Join(d.Dir, fmt.Sprintf("%s_%s.json", st.ID, orbit.Short()))
}

// Series implements Source. A missing export, an empty file and an export
// with zero scenes are all no data.
func (d DirSource) Series(ctx context.Context, st station.Station, orbit station.Orbit) (station.SatelliteSeries, error) {
	if err := ctx.Err(); err != nil {
		return station.SatelliteSeries{}, err
	}

	path := d.Path(st, orbit)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		path += ".gz"
		f, err = os.Open(path)
	}
	if errors.Is(err, fs.ErrNotExist) {
		return station.SatelliteSeries{}, nil
	}
	if err != nil {
		return station.SatelliteSeries{}, err
	}
	defer f.Close()

	var r io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return station.SatelliteSeries{}, fmt.Errorf("%s: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	samples, err := Decode(r)
	if errors.Is(err, errEmptyExport) {
		return station.SatelliteSeries{}, nil
	}
	if err != nil {
		return station.SatelliteSeries{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(samples) == 0 {
		return station.SatelliteSeries{}, nil
	}
	return station.NewSatelliteSeries(samples), nil
}

// Attach fills both orbit series of every record from src. A station whose
// import fails is left out of the returned records and reported in the map
// keyed by station ID. Cancellation stops the loop and is returned.
func Attach(ctx context.Context, records []station.Record, src Source) ([]station.Record, map[string]error, error) {
	out := make([]station.Record, 0, len(records))
	failed := make(map[string]error)

records:
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return out, failed, err
		}
		for _, o := range station.Orbits() {
			series, err := src.Series(ctx, rec.Station, o)
			if err != nil {
				if ctx.Err() != nil {
					return out, failed, ctx.Err()
				}
				failed[rec.Station.ID] = fmt.Errorf("%s: %w", o, err)
				log.Errorw("satellite import failed", "station", rec.Station.ID, "orbit", string(o), "error", err)
				continue records
			}
			if series.NoData() {
				log.Debugw("no satellite data", "station", rec.Station.ID, "orbit", string(o))
			}
			rec = rec.WithSatellite(o, series)
		}
		out = append(out, rec)
	}
	return out, failed, nil
}
