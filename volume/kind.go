package volume

import (
	"fmt"
	"strings"

	"github.com/carbocation/ctperfusion/colormap"
)

// Kind is a perfusion parameter.
type Kind int

const (
	KindTmax Kind = iota
	KindCBV
	KindCBF
	KindMTT
	KindTTP
)

// Kinds lists every parameter in canonical order.
var Kinds = []Kind{KindTmax, KindCBV, KindCBF, KindMTT, KindTTP}

func (k Kind) String() string {
	switch k {
	case KindTmax:
		return "TMAX"
	case KindCBV:
		return "CBV"
	case KindCBF:
		return "CBF"
	case KindMTT:
		return "MTT"
	case KindTTP:
		return "TTP"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind accepts the canonical names case-insensitively.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if strings.EqualFold(k.String(), s) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown perfusion parameter %q", s)
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

type Unit string

const (
	UnitSeconds       Unit = "s"
	UnitMLPer100G     Unit = "ml/100g"
	UnitMLPer100GPerM Unit = "ml/100g/min"
)

// KindConfig carries everything the assembler needs to know about one
// parameter.
type KindConfig struct {
	Kind Kind `json:"kind" yaml:"kind"`

	// SeriesKeyword is matched case-insensitively against the DICOM series
	// description.
	SeriesKeyword string `json:"series_keyword" yaml:"series_keyword"`

	Family colormap.Family `json:"-" yaml:"-"`

	// TargetMax is the physical value encoded by the brightest color.
	TargetMax float64 `json:"target_max" yaml:"target_max"`

	Unit Unit `json:"unit" yaml:"unit"`

	// NoiseFloor is the channel sum below which a pixel is background.
	NoiseFloor int `json:"noise_floor" yaml:"noise_floor"`
}

// Decoder returns the colormap decoder for this parameter.
func (c KindConfig) Decoder() colormap.Decoder {
	return colormap.Decoder{Family: c.Family, NoiseFloor: c.NoiseFloor}
}

// DefaultKindConfigs returns the vendor defaults for every parameter.
func DefaultKindConfigs() map[Kind]KindConfig {
	return map[Kind]KindConfig{
		KindTmax: {Kind: KindTmax, SeriesKeyword: "TMAXD", Family: colormap.FamilyTime, TargetMax: 12.0, Unit: UnitSeconds, NoiseFloor: colormap.DefaultNoiseFloor},
		KindCBV:  {Kind: KindCBV, SeriesKeyword: "CBVD", Family: colormap.FamilyFlow, TargetMax: 100.0, Unit: UnitMLPer100G, NoiseFloor: colormap.DefaultNoiseFloor},
		KindCBF:  {Kind: KindCBF, SeriesKeyword: "CBFD", Family: colormap.FamilyFlow, TargetMax: 100.0, Unit: UnitMLPer100GPerM, NoiseFloor: colormap.DefaultNoiseFloor},
		KindMTT:  {Kind: KindMTT, SeriesKeyword: "MTTD", Family: colormap.FamilyTime, TargetMax: 15.0, Unit: UnitSeconds, NoiseFloor: colormap.DefaultNoiseFloor},
		KindTTP:  {Kind: KindTTP, SeriesKeyword: "TTPM", Family: colormap.FamilyTime, TargetMax: 15.0, Unit: UnitSeconds, NoiseFloor: colormap.DefaultNoiseFloor},
	}
}
