package volume

import (
	"fmt"

	"github.com/carbocation/ctperfusion/colormap"
)

type Encoding string

const (
	EncodingRGB    Encoding = "rgb"
	EncodingScalar Encoding = "scalar"
)

// Slice is one 2D image of a perfusion series, normalized away from whatever
// file format it came from. Exactly one of RGB and Scalar is set.
type Slice struct {
	// Source identifies the file or archive entry, for error messages.
	Source string

	SeriesDescription string
	SeriesNumber      string

	// Position along the scan axis, in mm.
	Position    float64
	HasPosition bool

	InstanceNumber    int
	HasInstanceNumber bool

	// PixelSpacing and ImagerPixelSpacing are (row, column) spacing in mm,
	// zero when absent.
	PixelSpacing       [2]float64
	ImagerPixelSpacing [2]float64

	// SliceThickness and SpacingBetweenSlices are zero when absent.
	SliceThickness       float64
	SpacingBetweenSlices float64

	Width  int
	Height int

	RGB    *colormap.RGB
	Scalar []float64
}

func (s Slice) Encoding() Encoding {
	if s.RGB != nil {
		return EncodingRGB
	}
	return EncodingScalar
}

// validate checks the pixel buffer against the declared dimensions.
func (s Slice) validate() error {
	if s.RGB != nil && s.Scalar != nil {
		return fmt.Errorf("slice carries both RGB and scalar pixels")
	}
	if s.RGB != nil {
		if err := s.RGB.Validate(); err != nil {
			return err
		}
		if s.RGB.Width != s.Width || s.RGB.Height != s.Height {
			return fmt.Errorf("RGB buffer is %dx%d but the slice is %dx%d", s.RGB.Width, s.RGB.Height, s.Width, s.Height)
		}
		return nil
	}
	if want := s.Width * s.Height; want == 0 || len(s.Scalar) != want {
		return fmt.Errorf("scalar buffer has %d values, expected %d for %dx%d", len(s.Scalar), want, s.Width, s.Height)
	}
	return nil
}

// decode produces the physical values of the slice, row-major.
func (s Slice) decode(cfg KindConfig) ([]float64, error) {
	if s.RGB == nil {
		out := make([]float64, len(s.Scalar))
		copy(out, s.Scalar)
		return out, nil
	}

	return cfg.Decoder().Decode(s.RGB, cfg.TargetMax)
}
