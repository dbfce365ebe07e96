package station

import "time"

// Row is one matched record flattened with its station and orbit, the shape
// written to Parquet and the match tables.
type Row struct {
	StationID     string
	Orbit         Orbit
	SatelliteTime time.Time
	VH            float64
	VV            float64
	Angle         float64
	GroundTime    time.Time
	GroundValue   float64
}

// Rows flattens the merged series of records, descending before ascending
// within each station. No-data series contribute nothing.
func Rows(records []Record) []Row {
	var n int
	for _, r := range records {
		n += r.MergedDescending.Len() + r.MergedAscending.Len()
	}

	out := make([]Row, 0, n)
	for _, r := range records {
		for _, o := range Orbits() {
			for _, m := range r.Merged(o).Records {
				out = append(out, Row{
					StationID:     r.Station.ID,
					Orbit:         o,
					SatelliteTime: m.SatelliteTime,
					VH:            m.VH,
					VV:            m.VV,
					Angle:         m.Angle,
					GroundTime:    m.GroundTime,
					GroundValue:   m.GroundValue,
				})
			}
		}
	}
	return out
}
