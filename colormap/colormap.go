// Package colormap inverts the vendor's segmented perfusion color ramps back
// into the scalar values they encode.
package colormap

import "fmt"

// Family selects one of the two vendor color ramps.
type Family int

const (
	// FamilyTime covers delay quantities: Tmax, MTT and TTP.
	FamilyTime Family = iota

	// FamilyFlow covers CBV and CBF.
	FamilyFlow
)

func (f Family) String() string {
	switch f {
	case FamilyTime:
		return "time"
	case FamilyFlow:
		return "flow"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// ParseFamily is the inverse of Family.String.
func ParseFamily(s string) (Family, error) {
	switch s {
	case "time":
		return FamilyTime, nil
	case "flow":
		return FamilyFlow, nil
	}
	return 0, fmt.Errorf("unknown colormap family %q", s)
}

const (
	// DefaultNoiseFloor is the channel sum below which a pixel is background.
	DefaultNoiseFloor = 10

	// MaxRawIndex is both the top of the raw index scale and the calibration
	// denominator used when an image contains no signal.
	MaxRawIndex = 254.0
)

// Rule is one segment of a color ramp: a guard over the channel values and
// the linear transform that applies when it matches.
type Rule struct {
	Name      string
	Match     func(r, g, b float64) bool
	Transform func(r, g, b float64) float64
}

// The vendor's segments overlap on their boundaries, and the highest-numbered
// matching segment owns the pixel. Tables are listed in segment order.
var timeRules = []Rule{
	{
		Name:      "time1",
		Match:     func(r, g, b float64) bool { return g <= 64 && b > 0 },
		Transform: func(r, g, b float64) float64 { return (-r + g + b + 4) * 0.245 },
	},
	{
		Name:      "time2",
		Match:     func(r, g, b float64) bool { return g > 64 && b > 0 },
		Transform: func(r, g, b float64) float64 { return (-r+g-b)*0.125786164 + 95.3 },
	},
	{
		Name:      "time3",
		Match:     func(r, g, b float64) bool { return g > 252 && b == 0 },
		Transform: func(r, g, b float64) float64 { return r*0.252 + 127.75 },
	},
	{
		Name:      "time4",
		Match:     func(r, g, b float64) bool { return r > 252 && b == 0 },
		Transform: func(r, g, b float64) float64 { return (255-g)*0.247 + 191.75 },
	},
}

var flowRules = []Rule{
	{
		Name:      "flow1",
		Match:     func(r, g, b float64) bool { return g <= 1 },
		Transform: func(r, g, b float64) float64 { return (r + b - 122) * (22.0 / 68.0) },
	},
	{
		Name:      "flow2",
		Match:     func(r, g, b float64) bool { return r > g && b > g },
		Transform: func(r, g, b float64) float64 { return (-r+b+g-4)*(19.0/122.0) + 23 },
	},
	{
		Name:      "flow3",
		Match:     func(r, g, b float64) bool { return g == r },
		Transform: func(r, g, b float64) float64 { return (b-130)*(35.0/123.0) + 43 },
	},
	{
		Name:      "flow4",
		Match:     func(r, g, b float64) bool { return g > r && b > 0 },
		Transform: func(r, g, b float64) float64 { return (r+g-b+124)*(79.0/503.0) + 79 },
	},
	{
		Name:      "flow5",
		Match:     func(r, g, b float64) bool { return b < 1 },
		Transform: func(r, g, b float64) float64 { return (r-128)*(70.0/126.0) + 159 },
	},
	{
		Name:      "flow6",
		Match:     func(r, g, b float64) bool { return r > g && r > b },
		Transform: func(r, g, b float64) float64 { return (-r-g+b+495)*(24.0/270.0) + 230 },
	},
}

// Rules returns a copy of the segment table for the family, in segment order.
func Rules(f Family) []Rule {
	var src []Rule
	switch f {
	case FamilyTime:
		src = timeRules
	case FamilyFlow:
		src = flowRules
	}

	out := make([]Rule, len(src))
	copy(out, src)
	return out
}
