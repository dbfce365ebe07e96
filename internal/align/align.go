// Package align pairs Sentinel-1 acquisitions with ISMN soil moisture
// readings.
//
// For every station the ground series is normalised to naive wall-clock time
// and sorted into an immutable buffer. Each orbit direction is then matched
// independently: every distinct satellite timestamp takes the latest ground
// reading at or before it that no earlier acquisition has consumed. The scan
// keeps one integer cursor per run, so the work is linear in the length of
// both series.
package align

import (
	"fmt"
	"sort"
	"time"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// =============================================================================
// Ground Series Normalizer
// =============================================================================

// NormalizeGround returns a copy of g whose timestamps keep their wall-clock
// reading and drop the zone offset. No conversion to UTC takes place.
func NormalizeGround(g station.GroundSeries) (station.GroundSeries, error) {
	out := make(station.GroundSeries, len(g))
	for i, s := range g {
		t, err := naive(s.Time)
		if err != nil {
			return nil, fmt.Errorf("ground sample %d: %w", i, err)
		}
		s.Time = t
		out[i] = s
	}
	return out, nil
}

// naive re-anchors the wall clock of t in UTC.
func naive(t time.Time) (time.Time, error) {
	if t.IsZero() {
		return time.Time{}, station.ErrMalformedTimestamp
	}
	y, mo, d := t.Date()
	h, mi, s := t.Clock()
	return time.Date(y, mo, d, h, mi, s, t.Nanosecond(), time.UTC), nil
}

// sortedGround returns the normalised ground buffer ordered by time.
// Equal timestamps keep their source order.
func sortedGround(g station.GroundSeries) ([]station.GroundSample, error) {
	buf, err := NormalizeGround(g)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(buf, func(i, j int) bool {
		return buf[i].Time.Before(buf[j].Time)
	})
	return buf, nil
}

// =============================================================================
// Satellite Series Deduplicator
// =============================================================================

// DedupSatellite returns the samples of s ordered by time with repeated
// timestamps collapsed to their first occurrence. Later samples sharing a
// timestamp are discarded together with their backscatter values.
func DedupSatellite(s station.SatelliteSeries) []station.SatelliteSample {
	buf := make([]station.SatelliteSample, len(s.Samples))
	copy(buf, s.Samples)
	sort.SliceStable(buf, func(i, j int) bool {
		return buf[i].Time.Before(buf[j].Time)
	})

	out := buf[:0]
	for i, smp := range buf {
		if i > 0 && smp.Time.Equal(buf[i-1].Time) {
			continue
		}
		out = append(out, smp)
	}
	return out
}
