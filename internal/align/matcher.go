package align

import (
	"fmt"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// Match pairs every distinct satellite timestamp in sat with the latest
// sample of ground that is not after it and has not been used yet.
//
// ground must already be normalised and sorted; it is read, never written.
// Once a ground sample is matched, it and everything before it are out of
// reach for later acquisitions, so each ground sample appears in at most one
// record and matched ground times never decrease. Acquisitions with no
// eligible ground sample produce no record.
func Match(sat []station.SatelliteSample, ground []station.GroundSample, policy station.ChannelPolicy) ([]station.MatchedRecord, error) {
	records := make([]station.MatchedRecord, 0, len(sat))
	cursor := 0

	for i, s := range sat {
		if i > 0 && s.Time.Equal(sat[i-1].Time) {
			continue
		}

		last := -1
		for j := cursor; j < len(ground); j++ {
			if ground[j].Time.After(s.Time) {
				break
			}
			last = j
		}
		if last < 0 {
			continue
		}

		vh, err := s.VH.Value(policy)
		if err != nil {
			return nil, fmt.Errorf("%s VH: %w", s.ProductID, err)
		}
		vv, err := s.VV.Value(policy)
		if err != nil {
			return nil, fmt.Errorf("%s VV: %w", s.ProductID, err)
		}

		records = append(records, station.MatchedRecord{
			SatelliteTime: s.Time,
			VH:            vh,
			VV:            vv,
			Angle:         s.Angle,
			GroundTime:    ground[last].Time,
			GroundValue:   ground[last].Value,
		})
		cursor = last + 1
	}

	return records, nil
}

// MatchSeries deduplicates sat and matches it against ground. A satellite
// series without data yields a merged series without data.
func MatchSeries(sat station.SatelliteSeries, ground []station.GroundSample, policy station.ChannelPolicy) (station.MergedSeries, error) {
	if sat.NoData() {
		return station.MergedSeries{}, nil
	}
	records, err := Match(DedupSatellite(sat), ground, policy)
	if err != nil {
		return station.MergedSeries{}, err
	}
	return station.NewMergedSeries(records), nil
}
