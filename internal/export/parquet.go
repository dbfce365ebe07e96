package export

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// MergedRow matches the Parquet schema of the flat merged table. Timestamps
// are Unix seconds.
type MergedRow struct {
	StationID     string  `parquet:"station_id"`
	Orbit         string  `parquet:"orbit"`
	SatelliteTime int64   `parquet:"t_s1"`
	VH            float64 `parquet:"vh"`
	VV            float64 `parquet:"vv"`
	Angle         float64 `parquet:"angle"`
	GroundTime    int64   `parquet:"t_sm"`
	GroundValue   float64 `parquet:"sm"`
}

// NewMergedRow converts a flattened match.
func NewMergedRow(r station.Row) MergedRow {
	return MergedRow{
		StationID:     r.StationID,
		Orbit:         string(r.Orbit),
		SatelliteTime: r.SatelliteTime.Unix(),
		VH:            r.VH,
		VV:            r.VV,
		Angle:         r.Angle,
		GroundTime:    r.GroundTime.Unix(),
		GroundValue:   r.GroundValue,
	}
}

// Row converts back to the flat match form. An unknown orbit name is an error.
func (m MergedRow) Row() (station.Row, error) {
	orbit, err := station.ParseOrbit(m.Orbit)
	if err != nil {
		return station.Row{}, fmt.Errorf("station %s: %w", m.StationID, err)
	}
	return station.Row{
		StationID:     m.StationID,
		Orbit:         orbit,
		SatelliteTime: time.Unix(m.SatelliteTime, 0).UTC(),
		VH:            m.VH,
		VV:            m.VV,
		Angle:         m.Angle,
		GroundTime:    time.Unix(m.GroundTime, 0).UTC(),
		GroundValue:   m.GroundValue,
	}, nil
}

// WriteParquet writes every matched record of records, zstd compressed, and
// returns the number of rows written.
func WriteParquet(w io.Writer, records []station.Record) (int, error) {
	rows := station.Rows(records)
	out := make([]MergedRow, len(rows))
	for i, r := range rows {
		out[i] = NewMergedRow(r)
	}

	pw := parquet.NewGenericWriter[MergedRow](w, parquet.Compression(&parquet.Zstd))
	n, err := pw.Write(out)
	if err != nil {
		pw.Close()
		return n, fmt.Errorf("write parquet: %w", err)
	}
	if err := pw.Close(); err != nil {
		return n, fmt.Errorf("close parquet: %w", err)
	}
	return n, nil
}

// ScanParquet streams a file written by WriteParquet, calling fn with
// successive chunks of rows. The chunk is reused between calls.
func ScanParquet(r io.ReaderAt, size int64, fn func([]MergedRow) error) error {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return fmt.Errorf("open parquet: %w", err)
	}

	reader := parquet.NewGenericReader[MergedRow](pf)
	defer reader.Close()

	buf := make([]MergedRow, 1000)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			if ferr := fn(buf[:n]); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
	}
}

// ReadParquet reads a whole file written by WriteParquet.
func ReadParquet(r io.ReaderAt, size int64) ([]MergedRow, error) {
	var rows []MergedRow
	err := ScanParquet(r, size, func(chunk []MergedRow) error {
		rows = append(rows, chunk...)
		return nil
	})
	return rows, err
}
