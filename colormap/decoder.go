package colormap

import (
	"fmt"
	"image"
	"image/color"
)

// RGB is an 8-bit, interleaved, row-major color image.
type RGB struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// NewRGB allocates a black image.
func NewRGB(width, height int) *RGB {
	return &RGB{
		Width:    width,
		Height:   height,
		Channels: 3,
		Pix:      make([]uint8, width*height*3),
	}
}

// Set assigns the color of the pixel at (x, y).
func (m *RGB) Set(x, y int, r, g, b uint8) {
	i := (y*m.Width + x) * 3
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = r, g, b
}

// Validate rejects buffers whose channel count or length disagrees with the
// declared dimensions.
func (m *RGB) Validate() error {
	if m == nil {
		return fmt.Errorf("nil RGB image")
	}
	if m.Channels != 3 {
		return fmt.Errorf("expected 3 color channels, got %d", m.Channels)
	}
	if m.Width <= 0 || m.Height <= 0 {
		return fmt.Errorf("invalid image dimensions %dx%d", m.Width, m.Height)
	}
	if want := m.Width * m.Height * 3; len(m.Pix) != want {
		return fmt.Errorf("pixel buffer has %d bytes, expected %d for %dx%dx3", len(m.Pix), want, m.Width, m.Height)
	}
	return nil
}

// FromImage converts any decoded image into an RGB buffer, dropping alpha.
func FromImage(img image.Image) *RGB {
	bounds := img.Bounds()
	out := NewRGB(bounds.Dx(), bounds.Dy())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.Set(x-bounds.Min.X, y-bounds.Min.Y, c.R, c.G, c.B)
		}
	}

	return out
}

// Decoder maps vendor colors to raw indices and physical values.
type Decoder struct {
	Family Family

	// Pixels whose channel sum is below NoiseFloor decode to 0.
	NoiseFloor int
}

// NewDecoder returns a decoder using DefaultNoiseFloor.
func NewDecoder(f Family) Decoder {
	return Decoder{Family: f, NoiseFloor: DefaultNoiseFloor}
}

// RawIndex returns the raw index in [0, 254] that the vendor encoded as
// (r, g, b). Background and unmatched pixels return 0.
func (d Decoder) RawIndex(r, g, b uint8) float64 {
	if int(r)+int(g)+int(b) < d.NoiseFloor {
		return 0
	}

	rules := timeRules
	if d.Family == FamilyFlow {
		rules = flowRules
	}

	rf, gf, bf := float64(r), float64(g), float64(b)
	for i := len(rules) - 1; i >= 0; i-- {
		if !rules[i].Match(rf, gf, bf) {
			continue
		}

		v := rules[i].Transform(rf, gf, bf)
		if v < 0 {
			return 0
		}
		return v
	}

	return 0
}

// Segment returns the name of the rule that owns (r, g, b), or "" for
// background and unmatched pixels.
func (d Decoder) Segment(r, g, b uint8) string {
	if int(r)+int(g)+int(b) < d.NoiseFloor {
		return ""
	}

	rules := timeRules
	if d.Family == FamilyFlow {
		rules = flowRules
	}

	rf, gf, bf := float64(r), float64(g), float64(b)
	for i := len(rules) - 1; i >= 0; i-- {
		if rules[i].Match(rf, gf, bf) {
			return rules[i].Name
		}
	}

	return ""
}

// Decode converts an RGB image into physical values in [0, targetMax],
// row-major. Each image calibrates itself: the largest raw index present maps
// to targetMax.
func (d Decoder) Decode(img *RGB, targetMax float64) ([]float64, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}

	out := make([]float64, img.Width*img.Height)
	maxRaw := 0.0
	for i := range out {
		p := img.Pix[i*3 : i*3+3]
		raw := d.RawIndex(p[0], p[1], p[2])
		out[i] = raw
		if raw > maxRaw {
			maxRaw = raw
		}
	}

	if maxRaw <= 0 {
		maxRaw = MaxRawIndex
	}

	for i, raw := range out {
		out[i] = raw / maxRaw * targetMax
	}

	return out, nil
}
