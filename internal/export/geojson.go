package export

import (
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// StationsFeatureCollection builds one feature per station with its footprint
// geometry, or the station point when no footprint has been built.
// matched_desc and matched_asc are null for an orbit without imagery.
func StationsFeatureCollection(records []station.Record) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, rec := range records {
		st := rec.Station

		var g orb.Geometry = st.Point()
		if st.Footprint != nil {
			g = st.Footprint
		}

		f := geojson.NewFeature(g)
		f.ID = st.ID
		f.Properties["id"] = st.ID
		f.Properties["network"] = st.Network
		f.Properties["station"] = st.Name
		f.Properties["sensor"] = st.Sensor
		f.Properties["latitude"] = st.Latitude
		f.Properties["longitude"] = st.Longitude
		f.Properties["elevation"] = st.Elevation
		f.Properties["depth_from"] = st.DepthFrom
		f.Properties["depth_to"] = st.DepthTo
		if st.LandCover != 0 {
			f.Properties["landcover"] = st.LandCover
		}
		f.Properties["matched_desc"] = matchedCount(rec.MergedDescending)
		f.Properties["matched_asc"] = matchedCount(rec.MergedAscending)
		fc.Append(f)
	}
	return fc
}

func matchedCount(m station.MergedSeries) any {
	if m.NoData() {
		return nil
	}
	return m.Len()
}

// WriteStationsGeoJSON writes the station FeatureCollection.
func WriteStationsGeoJSON(w io.Writer, records []station.Record) error {
	data, err := StationsFeatureCollection(records).MarshalJSON()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
