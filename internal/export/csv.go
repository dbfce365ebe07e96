// Package export writes aligned records as CSV, GeoJSON and Parquet.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// ErrNoData is returned when asked to write a series that has no data.
var ErrNoData = errors.New("no data")

// TimeLayout is the timestamp format used in CSV output.
const TimeLayout = "2006-01-02 15:04:05"

// MergedHeader returns the CSV header for one orbit's merged series.
func MergedHeader(o station.Orbit) []string {
	s := o.Short()
	return []string{"t_s1_" + s, "VH_" + s, "VV_" + s, "angle_" + s, "t_sm", "sm"}
}

// WriteMergedCSV writes one orbit's merged series with a header row.
// A no-data series writes nothing and returns ErrNoData; an available but
// empty series writes only the header.
func WriteMergedCSV(w io.Writer, o station.Orbit, m station.MergedSeries) error {
	if m.NoData() {
		return ErrNoData
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(MergedHeader(o)); err != nil {
		return err
	}
	for _, r := range m.Records {
		row := []string{
			formatTime(r.SatelliteTime),
			formatFloat(r.VH),
			formatFloat(r.VV),
			formatFloat(r.Angle),
			formatTime(r.GroundTime),
			formatFloat(r.GroundValue),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MergedFileName is <station id>_<desc|asc>.csv, with .gz when compressed.
func MergedFileName(id string, o station.Orbit, compress bool) string {
	name := fmt.Sprintf("%s_%s.csv", id, o.Short())
	if compress {
		name += ".gz"
	}
	return name
}

// WriteStationCSVs writes one merged CSV per station and orbit into dir and
// returns the written paths. No-data series are skipped.
func WriteStationCSVs(dir string, records []station.Record, compress bool) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	for _, rec := range records {
		for _, o := range station.Orbits() {
			m := rec.Merged(o)
			if m.NoData() {
				continue
			}
			path := filepath.Join(dir, MergedFileName(rec.Station.ID, o, compress))
			if err := writeMergedFile(path, o, m, compress); err != nil {
				return written, fmt.Errorf("%s: %w", path, err)
			}
			written = append(written, path)
		}
	}
	return written, nil
}

func writeMergedFile(path string, o station.Orbit, m station.MergedSeries, compress bool) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var w io.Writer = f
	var gz *gzip.Writer
	if compress {
		gz = gzip.NewWriter(f)
		w = gz
	}

	if err := WriteMergedCSV(w, o, m); err != nil {
		f.Close()
		return err
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// WriteStationsCSV writes the station list as two rows: "lat/lon" coordinates
// and the matching station IDs.
func WriteStationsCSV(w io.Writer, records []station.Record) error {
	coords := make([]string, len(records))
	ids := make([]string, len(records))
	for i, rec := range records {
		coords[i] = formatFloat(rec.Station.Latitude) + "/" + formatFloat(rec.Station.Longitude)
		ids[i] = rec.Station.ID
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(coords); err != nil {
		return err
	}
	if err := cw.Write(ids); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(TimeLayout)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
