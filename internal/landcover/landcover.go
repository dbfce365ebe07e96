// Package landcover applies the CGLS-LC100 land-cover pre-filter to stations
// before any backscatter is attached.
package landcover

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/KI7MT/ismn-s1-lab/internal/log"
	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// ErrUnclassified is returned when a classifier has no class for a station.
var ErrUnclassified = errors.New("station not classified")

// Classifier returns the land-cover class at a station's footprint.
type Classifier interface {
	Class(ctx context.Context, st station.Station) (int, error)
}

// TableClassifier looks classes up by station ID, as exported from the
// cloud platform in a station_id,class CSV.
type TableClassifier map[string]int

// Class implements Classifier.
func (t TableClassifier) Class(_ context.Context, st station.Station) (int, error) {
	c, ok := t[st.ID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnclassified, st.ID)
	}
	return c, nil
}

// ReadTable parses a station_id,class CSV. A header row is skipped when its
// second column is not numeric.
func ReadTable(r io.Reader) (TableClassifier, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	table := make(TableClassifier)
	for line := 1; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(row) < 2 {
			return nil, fmt.Errorf("line %d: want station_id,class", line)
		}

		class, err := strconv.Atoi(strings.TrimSpace(row[1]))
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: invalid class %q", line, row[1])
		}
		table[strings.TrimSpace(row[0])] = class
	}
	return table, nil
}

// LoadTable reads a classification table from a file.
func LoadTable(path string) (TableClassifier, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := ReadTable(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Result is the outcome of Filter.
type Result struct {
	Kept    []station.Record
	Counts  map[int]int      // stations per class, kept or not
	Skipped map[string]error // stations the classifier could not place
}

// Filter keeps the records whose land-cover class is one of ids and stamps
// the class on each kept station. Stations the classifier fails on are
// dropped and reported; cancellation aborts the filter.
func Filter(ctx context.Context, records []station.Record, c Classifier, ids []int) (Result, error) {
	valid := make(map[int]bool, len(ids))
	for _, id := range ids {
		valid[id] = true
	}

	res := Result{
		Counts:  make(map[int]int),
		Skipped: make(map[string]error),
	}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		class, err := c.Class(ctx, rec.Station)
		if err != nil {
			res.Skipped[rec.Station.ID] = err
			log.Warnw("land cover lookup failed", "station", rec.Station.ID, "error", err)
			continue
		}
		res.Counts[class]++
		if !valid[class] {
			continue
		}
		rec.Station.LandCover = class
		res.Kept = append(res.Kept, rec)
	}

	log.Infof("%d out of %d locations remain after applying the land cover filter", len(res.Kept), len(records))
	return res, nil
}
