package station

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/stat"
)

// Channel is the raw value of one polarisation band for one acquisition.
// Most acquisitions carry a single value; some exports deliver a short array
// for the same pass. An empty channel means the band was null in the export.
type Channel []float64

// Scalar returns a single-valued channel.
func Scalar(v float64) Channel {
	return Channel{v}
}

// UnmarshalJSON accepts a number, an array of numbers or null.
func (c *Channel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = nil
		return nil
	}

	if data[0] == '[' {
		var raw []*float64
		if err := json.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("channel array: %w", err)
		}
		out := make(Channel, len(raw))
		for i, v := range raw {
			if v == nil {
				out[i] = math.NaN()
				continue
			}
			out[i] = *v
		}
		*c = out
		return nil
	}

	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("channel value: %w", err)
	}
	*c = Channel{v}
	return nil
}

// =============================================================================
// Channel policy
// =============================================================================

// ChannelPolicy decides how a multi-valued channel collapses to one value.
type ChannelPolicy int

const (
	// ChannelFirst keeps element 0 and drops the rest.
	ChannelFirst ChannelPolicy = iota
	// ChannelError refuses multi-valued channels.
	ChannelError
	// ChannelMean averages all elements.
	ChannelMean
)

// ParseChannelPolicy maps the config spelling (first, error, mean) to a policy.
func ParseChannelPolicy(s string) (ChannelPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first":
		return ChannelFirst, nil
	case "error":
		return ChannelError, nil
	case "mean", "average":
		return ChannelMean, nil
	}
	return ChannelFirst, fmt.Errorf("unknown channel policy %q (want first, error or mean)", s)
}

func (p ChannelPolicy) String() string {
	switch p {
	case ChannelFirst:
		return "first"
	case ChannelError:
		return "error"
	case ChannelMean:
		return "mean"
	default:
		return fmt.Sprintf("ChannelPolicy(%d)", int(p))
	}
}

// Value collapses the channel to one number under policy p.
// An empty channel yields NaN.
func (c Channel) Value(p ChannelPolicy) (float64, error) {
	switch len(c) {
	case 0:
		return math.NaN(), nil
	case 1:
		return c[0], nil
	}

	switch p {
	case ChannelError:
		return math.NaN(), fmt.Errorf("%w: %d values", ErrChannelValueAmbiguous, len(c))
	case ChannelMean:
		return stat.Mean(c, nil), nil
	default:
		return c[0], nil
	}
}
