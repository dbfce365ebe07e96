// Package report summarises how backscatter tracks soil moisture per station
// and orbit.
package report

import (
	"fmt"
	"io"
	"math"
	"text/tabwriter"

	"gonum.org/v1/gonum/stat"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// Summary describes one merged series.
type Summary struct {
	StationID string
	Orbit     station.Orbit
	NoData    bool
	Count     int
	MeanVH    float64
	MeanVV    float64
	MeanSM    float64
	CorrVH    float64 // Pearson r of VH against soil moisture
	CorrVV    float64 // Pearson r of VV against soil moisture
}

// Summarize returns one summary per station and orbit, descending first.
// Statistics ignore records with a NaN band or ground value and are NaN when
// fewer than two records remain.
func Summarize(records []station.Record) []Summary {
	out := make([]Summary, 0, 2*len(records))
	for _, rec := range records {
		for _, o := range station.Orbits() {
			out = append(out, summarize(rec.Station.ID, o, rec.Merged(o)))
		}
	}
	return out
}

func summarize(id string, o station.Orbit, m station.MergedSeries) Summary {
	s := Summary{
		StationID: id,
		Orbit:     o,
		NoData:    m.NoData(),
		MeanVH:    math.NaN(),
		MeanVV:    math.NaN(),
		MeanSM:    math.NaN(),
		CorrVH:    math.NaN(),
		CorrVV:    math.NaN(),
	}
	if s.NoData {
		return s
	}
	s.Count = m.Len()

	vh := make([]float64, 0, m.Len())
	vv := make([]float64, 0, m.Len())
	sm := make([]float64, 0, m.Len())
	for _, r := range m.Records {
		if math.IsNaN(r.VH) || math.IsNaN(r.VV) || math.IsNaN(r.GroundValue) {
			continue
		}
		vh = append(vh, r.VH)
		vv = append(vv, r.VV)
		sm = append(sm, r.GroundValue)
	}

	if len(sm) > 0 {
		s.MeanVH = stat.Mean(vh, nil)
		s.MeanVV = stat.Mean(vv, nil)
		s.MeanSM = stat.Mean(sm, nil)
	}
	if len(sm) > 1 {
		s.CorrVH = stat.Correlation(vh, sm, nil)
		s.CorrVV = stat.Correlation(vv, sm, nil)
	}
	return s
}

// WriteText writes the summaries as an aligned table.
func WriteText(w io.Writer, summaries []Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STATION\tORBIT\tN\tMEAN VH\tMEAN VV\tMEAN SM\tR(VH,SM)\tR(VV,SM)")
	for _, s := range summaries {
		if s.NoData {
			fmt.Fprintf(tw, "%s\t%s\tno data\t\t\t\t\t\n", s.StationID, s.Orbit.Short())
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			s.StationID, s.Orbit.Short(), s.Count,
			num(s.MeanVH, 2), num(s.MeanVV, 2), num(s.MeanSM, 3),
			num(s.CorrVH, 3), num(s.CorrVV, 3))
	}
	return tw.Flush()
}

func num(v float64, prec int) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.*f", prec, v)
}
