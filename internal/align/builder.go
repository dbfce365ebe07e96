package align

import (
	"context"
	"fmt"

	"github.com/KI7MT/ismn-s1-lab/internal/log"
	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// Options controls a run of the merged record builder.
type Options struct {
	// Policy collapses multi-valued backscatter channels.
	Policy station.ChannelPolicy

	// Progress, when set, is called once per station after it was aligned
	// (err == nil) or rejected.
	Progress func(rec station.Record, err error)
}

// BuildStation aligns both orbit directions of rec against its ground series
// and returns a copy of rec with the merged series filled in. The two runs
// share the sorted ground buffer read-only; each keeps its own cursor.
func BuildStation(rec station.Record, opts Options) (station.Record, error) {
	ground, err := sortedGround(rec.Ground)
	if err != nil {
		return rec, fmt.Errorf("station %s: %w", rec.Station.ID, err)
	}

	out := rec
	for _, orbit := range station.Orbits() {
		merged, err := MatchSeries(rec.Satellite(orbit), ground, opts.Policy)
		if err != nil {
			return rec, fmt.Errorf("station %s %s: %w", rec.Station.ID, orbit, err)
		}
		out = out.WithMerged(orbit, merged)
	}
	return out, nil
}

// Result is the outcome of Run.
type Result struct {
	// Records holds the aligned stations in input order.
	Records []station.Record
	// Failed maps station IDs that could not be aligned to the cause.
	Failed map[string]error
	// Matched is the total number of matched records over all stations.
	Matched int
}

// ByID returns the aligned records keyed by station ID.
func (r Result) ByID() map[string]station.Record {
	m := make(map[string]station.Record, len(r.Records))
	for _, rec := range r.Records {
		m[rec.Station.ID] = rec
	}
	return m
}

// Run aligns every station in turn. A station that fails is logged and
// reported in Result.Failed; the remaining stations are still processed.
// ctx is checked between stations; on cancellation the stations aligned so
// far are returned with ctx.Err().
func Run(ctx context.Context, records []station.Record, opts Options) (Result, error) {
	res := Result{
		Records: make([]station.Record, 0, len(records)),
		Failed:  make(map[string]error),
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		aligned, err := BuildStation(rec, opts)
		if opts.Progress != nil {
			opts.Progress(aligned, err)
		}
		if err != nil {
			log.Errorw("station alignment failed", "station", rec.Station.ID, "error", err)
			res.Failed[rec.Station.ID] = err
			continue
		}

		desc, asc := aligned.MergedDescending, aligned.MergedAscending
		log.Debugw("station aligned",
			"station", rec.Station.ID,
			"ground", len(rec.Ground),
			"desc", describe(rec.Descending.Len(), desc),
			"asc", describe(rec.Ascending.Len(), asc),
		)
		res.Matched += desc.Len() + asc.Len()
		res.Records = append(res.Records, aligned)
	}

	return res, nil
}

func describe(scenes int, m station.MergedSeries) string {
	if m.NoData() {
		return "no data"
	}
	return fmt.Sprintf("%d/%d matched", m.Len(), scenes)
}
