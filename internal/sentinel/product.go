// Package sentinel imports Sentinel-1 backscatter series exported from the
// cloud platform and attaches them to station records.
//
// Two export shapes are understood: the getRegion table written for point
// footprints and the reduceRegion FeatureCollection written for box
// footprints. Acquisition times come from the product identifier, never from
// the export's own time column, so both shapes order identically.
package sentinel

import (
	"fmt"
	"strings"
	"time"

	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// ProductTimeField is the underscore-separated field holding the
// acquisition start (S1A_IW_GRDH_1SDV_<start>_<stop>_...).
const ProductTimeField = 4

// productTimeLayout is YYYYMMDD HHMMSS after the T separator is replaced.
const productTimeLayout = "20060102 150405"

// ParseProductTime extracts the naive acquisition start from a product ID.
func ParseProductTime(id string) (time.Time, error) {
	fields := strings.Split(id, "_")
	if len(fields) <= ProductTimeField {
		return time.Time{}, fmt.Errorf("%w: %q has %d fields", station.ErrMalformedProductID, id, len(fields))
	}

	stamp := strings.Replace(fields[ProductTimeField], "T", " ", 1)
	t, err := time.Parse(productTimeLayout, stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %v", station.ErrMalformedProductID, id, err)
	}
	return t, nil
}
