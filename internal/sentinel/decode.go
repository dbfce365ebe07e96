package sentinel

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

var errEmptyExport = errors.New("empty export")

// Column names of the getRegion table header.
const (
	colID    = "id"
	colVH    = "VH"
	colVV    = "VV"
	colAngle = "angle"
)

// Decode reads either export shape, picking the decoder from the first
// non-blank byte: '[' for a getRegion table, '{' for a FeatureCollection.
func Decode(r io.Reader) ([]station.SatelliteSample, error) {
	br := bufio.NewReader(r)
	for {
		b, err := br.Peek(1)
		if err != nil {
			if err == io.EOF {
				return nil, errEmptyExport
			}
			return nil, err
		}
		switch b[0] {
		case ' ', '\t', '\r', '\n':
			_, _ = br.ReadByte()
			continue
		case '[':
			return DecodeRegion(br)
		case '{':
			return DecodeFeatureCollection(br)
		default:
			return nil, fmt.Errorf("unrecognised export (starts with %q)", b[0])
		}
	}
}

// DecodeRegion reads a getRegion table: a header row of column names followed
// by one row per image. Columns are located by name.
func DecodeRegion(r io.Reader) ([]station.SatelliteSample, error) {
	var table [][]json.RawMessage
	if err := json.NewDecoder(r).Decode(&table); err != nil {
		return nil, fmt.Errorf("decode region table: %w", err)
	}
	if len(table) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(table[0]))
	for i, raw := range table[0] {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return nil, fmt.Errorf("header column %d: %w", i, err)
		}
		index[name] = i
	}
	idCol, ok := index[colID]
	if !ok {
		return nil, fmt.Errorf("region table has no %q column", colID)
	}

	samples := make([]station.SatelliteSample, 0, len(table)-1)
	for n, row := range table[1:] {
		var id string
		if idCol >= len(row) {
			return nil, fmt.Errorf("row %d: missing id", n+1)
		}
		if err := json.Unmarshal(row[idCol], &id); err != nil {
			return nil, fmt.Errorf("row %d id: %w", n+1, err)
		}

		var props properties
		if err := props.fromRow(row, index); err != nil {
			return nil, fmt.Errorf("row %d (%s): %w", n+1, id, err)
		}

		s, err := props.sample(id)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}

	sortSamples(samples)
	return samples, nil
}

// featureCollection is the reduceRegion export.
type featureCollection struct {
	Features []struct {
		ID         string     `json:"id"`
		Properties properties `json:"properties"`
	} `json:"features"`
}

// DecodeFeatureCollection reads a reduceRegion export with one feature per
// image; the feature id is the product identifier.
func DecodeFeatureCollection(r io.Reader) ([]station.SatelliteSample, error) {
	var fc featureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode feature collection: %w", err)
	}

	samples := make([]station.SatelliteSample, 0, len(fc.Features))
	for _, f := range fc.Features {
		s, err := f.Properties.sample(f.ID)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}

	sortSamples(samples)
	return samples, nil
}

// properties are the band values of one image.
type properties struct {
	VH    station.Channel `json:"VH"`
	VV    station.Channel `json:"VV"`
	Angle *float64        `json:"angle"`
}

func (p *properties) fromRow(row []json.RawMessage, index map[string]int) error {
	if i, ok := index[colVH]; ok && i < len(row) {
		if err := json.Unmarshal(row[i], &p.VH); err != nil {
			return fmt.Errorf("VH: %w", err)
		}
	}
	if i, ok := index[colVV]; ok && i < len(row) {
		if err := json.Unmarshal(row[i], &p.VV); err != nil {
			return fmt.Errorf("VV: %w", err)
		}
	}
	if i, ok := index[colAngle]; ok && i < len(row) {
		if err := json.Unmarshal(row[i], &p.Angle); err != nil {
			return fmt.Errorf("angle: %w", err)
		}
	}
	return nil
}

func (p properties) sample(id string) (station.SatelliteSample, error) {
	t, err := ParseProductTime(id)
	if err != nil {
		return station.SatelliteSample{}, err
	}
	angle := math.NaN()
	if p.Angle != nil {
		angle = *p.Angle
	}
	return station.SatelliteSample{
		Time:      t,
		ProductID: id,
		VH:        p.VH,
		VV:        p.VV,
		Angle:     angle,
	}, nil
}

// sortSamples orders by acquisition time; repeated timestamps keep export order.
func sortSamples(s []station.SatelliteSample) {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].Time.Before(s[j].Time)
	})
}
