// Package station holds the per-station data model shared by the ISMN loader,
// the Sentinel-1 importer, the alignment engine and the exporters.
//
// A Record carries one station's metadata, its ground (soil moisture) series,
// the descending and ascending backscatter series and, once aligned, the two
// merged series. Satellite and merged series distinguish "no data" (never
// extracted, no imagery) from "available but empty" through their Available
// flag; the zero value of both is "no data".
package station

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrMalformedTimestamp is returned when a ground or satellite timestamp
	// cannot be turned into an orderable instant.
	ErrMalformedTimestamp = errors.New("malformed timestamp")

	// ErrMalformedProductID is returned when a Sentinel-1 product identifier
	// has no parsable acquisition field.
	ErrMalformedProductID = errors.New("malformed product id")

	// ErrChannelValueAmbiguous is returned under ChannelError when a channel
	// carries more than one value for a single acquisition.
	ErrChannelValueAmbiguous = errors.New("channel value ambiguous")
)

// =============================================================================
// Orbit
// =============================================================================

// Orbit is the Sentinel-1 pass direction.
type Orbit string

const (
	OrbitDescending Orbit = "DESCENDING"
	OrbitAscending  Orbit = "ASCENDING"
)

// Orbits returns both pass directions in processing order.
func Orbits() []Orbit {
	return []Orbit{OrbitDescending, OrbitAscending}
}

// Short returns the lower-case abbreviation used in file and column names.
func (o Orbit) Short() string {
	switch o {
	case OrbitDescending:
		return "desc"
	case OrbitAscending:
		return "asc"
	default:
		return "unknown"
	}
}

// ParseOrbit accepts the full name or the short form, case-insensitively.
func ParseOrbit(s string) (Orbit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "descending", "desc":
		return OrbitDescending, nil
	case "ascending", "asc":
		return OrbitAscending, nil
	}
	return "", fmt.Errorf("unknown orbit %q", s)
}

// =============================================================================
// Station
// =============================================================================

// Station describes one ISMN sensor location.
type Station struct {
	ID        string  // network-sensor-station, unique per run
	Network   string  // ISMN network (e.g. RSMN)
	Sensor    string  // Sensor model (e.g. 5TM)
	Name      string  // Station name as written in the header
	Latitude  float64 // Decimal degrees
	Longitude float64 // Decimal degrees
	Elevation float64 // Metres above sea level
	DepthFrom float64 // Sensor depth range start (m)
	DepthTo   float64 // Sensor depth range end (m)

	// Footprint is the extraction geometry: an orb.Point or a bounding
	// orb.Polygon around the station. Nil until footprints are built.
	Footprint orb.Geometry

	// LandCover is the CGLS-LC100 class at the footprint, 0 when unknown.
	LandCover int
}

// MakeID composes the station identifier from its header parts.
func MakeID(network, sensor, name string) string {
	return network + "-" + sensor + "-" + name
}

// Point returns the station coordinate as an orb.Point (lon, lat).
func (s Station) Point() orb.Point {
	return orb.Point{s.Longitude, s.Latitude}
}

// =============================================================================
// Ground series
// =============================================================================

// GroundSample is one soil moisture reading.
type GroundSample struct {
	Time     time.Time
	Value    float64
	Flag     string // ISMN quality flag
	OrigFlag string // Provider quality flag
}

// GroundSeries is ordered by ascending Time as delivered by the data source.
type GroundSeries []GroundSample

// =============================================================================
// Satellite series
// =============================================================================

// SatelliteSample is one Sentinel-1 acquisition over a station footprint.
type SatelliteSample struct {
	Time      time.Time // Acquisition start, naive (UTC location, wall clock)
	ProductID string
	VH        Channel
	VV        Channel
	Angle     float64 // Incidence angle (degrees)
}

// SatelliteSeries is the backscatter series of one orbit direction.
// The zero value means no imagery was available.
type SatelliteSeries struct {
	Samples   []SatelliteSample
	Available bool
}

// NewSatelliteSeries returns an available series holding a copy of samples.
func NewSatelliteSeries(samples []SatelliteSample) SatelliteSeries {
	out := make([]SatelliteSample, len(samples))
	copy(out, samples)
	return SatelliteSeries{Samples: out, Available: true}
}

// NoData reports whether the series is the explicit "no data" marker.
func (s SatelliteSeries) NoData() bool {
	return !s.Available
}

// Len returns the number of samples.
func (s SatelliteSeries) Len() int {
	return len(s.Samples)
}

// =============================================================================
// Merged series
// =============================================================================

// MatchedRecord pairs one satellite acquisition with the latest ground reading
// at or before it. GroundTime never exceeds SatelliteTime.
type MatchedRecord struct {
	SatelliteTime time.Time
	VH            float64
	VV            float64
	Angle         float64
	GroundTime    time.Time
	GroundValue   float64
}

// MergedSeries is the aligned output for one (station, orbit) pair.
// The zero value means the satellite series had no data.
type MergedSeries struct {
	Records   []MatchedRecord
	Available bool
}

// NewMergedSeries returns an available merged series.
func NewMergedSeries(records []MatchedRecord) MergedSeries {
	if records == nil {
		records = []MatchedRecord{}
	}
	return MergedSeries{Records: records, Available: true}
}

// NoData reports whether the series is the explicit "no data" marker.
func (m MergedSeries) NoData() bool {
	return !m.Available
}

// Len returns the number of matched records.
func (m MergedSeries) Len() int {
	return len(m.Records)
}

// =============================================================================
// Record
// =============================================================================

// Record is everything known about one station during a run.
type Record struct {
	Station Station
	Ground  GroundSeries

	Descending SatelliteSeries
	Ascending  SatelliteSeries

	MergedDescending MergedSeries
	MergedAscending  MergedSeries
}

// Satellite returns the satellite series for the given orbit.
func (r Record) Satellite(o Orbit) SatelliteSeries {
	if o == OrbitAscending {
		return r.Ascending
	}
	return r.Descending
}

// Merged returns the merged series for the given orbit.
func (r Record) Merged(o Orbit) MergedSeries {
	if o == OrbitAscending {
		return r.MergedAscending
	}
	return r.MergedDescending
}

// WithSatellite returns a copy of r with the satellite series for o replaced.
func (r Record) WithSatellite(o Orbit, s SatelliteSeries) Record {
	if o == OrbitAscending {
		r.Ascending = s
	} else {
		r.Descending = s
	}
	return r
}

// WithMerged returns a copy of r with the merged series for o replaced.
func (r Record) WithMerged(o Orbit, m MergedSeries) Record {
	if o == OrbitAscending {
		r.MergedAscending = m
	} else {
		r.MergedDescending = m
	}
	return r
}
