package ismn

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/pgzip"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// =============================================================================
// Header layout
// =============================================================================

const (
	// Whitespace-separated header fields.
	HdrCSE       = 0
	HdrNetwork   = 1
	HdrStation   = 2
	HdrLatitude  = 3
	HdrLongitude = 4
	HdrElevation = 5
	HdrDepthFrom = 6
	HdrDepthTo   = 7
	HdrSensor    = 8

	MinHeaderFields = 9

	// Data lines: date time value flag origflag
	MinDataFields = 3

	timestampLayout = "2006/01/02 15:04"
)

// =============================================================================
// Parsing
// =============================================================================

// ParseHeader builds the station description from the first line of a file.
// The filename is used only in error messages.
func ParseHeader(line, filename string) (station.Station, error) {
	f := strings.Fields(line)
	if len(f) < MinHeaderFields {
		return station.Station{}, fmt.Errorf("%s: header has %d fields, need %d", filename, len(f), MinHeaderFields)
	}

	var st station.Station
	var err error

	st.Network = f[HdrNetwork]
	st.Name = f[HdrStation]
	st.Sensor = f[HdrSensor]
	st.ID = station.MakeID(st.Network, st.Sensor, st.Name)

	if st.Latitude, err = parseFloat64(f[HdrLatitude]); err != nil {
		return station.Station{}, fmt.Errorf("%s: invalid latitude: %w", filename, err)
	}
	if st.Longitude, err = parseFloat64(f[HdrLongitude]); err != nil {
		return station.Station{}, fmt.Errorf("%s: invalid longitude: %w", filename, err)
	}
	if st.Elevation, err = parseFloat64(f[HdrElevation]); err != nil {
		return station.Station{}, fmt.Errorf("%s: invalid elevation: %w", filename, err)
	}
	if st.DepthFrom, err = parseFloat64(f[HdrDepthFrom]); err != nil {
		return station.Station{}, fmt.Errorf("%s: invalid depth: %w", filename, err)
	}
	if st.DepthTo, err = parseFloat64(f[HdrDepthTo]); err != nil {
		return station.Station{}, fmt.Errorf("%s: invalid depth: %w", filename, err)
	}
	return st, nil
}

// ParseSeries reads data lines into a ground series. Timestamps are UTC.
// Blank lines are skipped; a line whose timestamp does not parse fails the
// whole series with ErrMalformedTimestamp.
func ParseSeries(r io.Reader) (station.GroundSeries, error) {
	sc := bufio.NewScanner(r)
	var series station.GroundSeries

	lineNo := 0
	for sc.Scan() {
		lineNo++
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		if len(f) < MinDataFields {
			return nil, fmt.Errorf("line %d: %d fields, need %d", lineNo, len(f), MinDataFields)
		}

		ts, err := time.ParseInLocation(timestampLayout, f[0]+" "+f[1], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w: %v", lineNo, station.ErrMalformedTimestamp, err)
		}
		v, err := parseFloat64(f[2])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid value: %w", lineNo, err)
		}

		s := station.GroundSample{Time: ts, Value: v}
		if len(f) > 3 {
			s.Flag = f[3]
		}
		if len(f) > 4 {
			s.OrigFlag = f[4]
		}
		series = append(series, s)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return series, nil
}

// Parse reads a complete station file: header line followed by data lines.
func Parse(r io.Reader, filename string) (station.Record, error) {
	br := bufio.NewReader(r)
	header, err := br.ReadString('\n')
	if err != nil && err != io.EOF {
		return station.Record{}, fmt.Errorf("%s: %w", filename, err)
	}

	st, err := ParseHeader(header, filename)
	if err != nil {
		return station.Record{}, err
	}
	ground, err := ParseSeries(br)
	if err != nil {
		return station.Record{}, fmt.Errorf("%s: %w", filename, err)
	}
	return station.Record{Station: st, Ground: ground}, nil
}

// ReadFile parses one station file, decompressing it when the name ends in .gz.
// It returns the record and the number of bytes read from disk.
func ReadFile(path string) (station.Record, int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return station.Record{}, 0, err
	}

	r, closeFn, err := open(path)
	if err != nil {
		return station.Record{}, 0, err
	}
	defer closeFn()

	rec, err := Parse(r, path)
	return rec, info.Size(), err
}

func open(path string) (io.Reader, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasSuffix(path, ".gz") {
		return f, func() { f.Close() }, nil
	}

	gz, err := pgzip.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return gz, func() {
		gz.Close()
		f.Close()
	}, nil
}

// =============================================================================
// Numeric Parsing Helpers
// =============================================================================

func parseFloat64(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
