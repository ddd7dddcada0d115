package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
)

// Lesion label IDs, shared by the label-encoded PNGs and the RLE export.
const (
	IDBackground uint = 0
	IDPenumbra   uint = 1
	IDCore       uint = 2
)

// A Label ties a lesion class ID to a human-readable name and display color
// (RGB hex, e.g. #FF0000 for red).
type Label struct {
	Label     string `json:"-" yaml:"-"`
	ID        uint   `json:"id" yaml:"id"`
	Color     string `json:"color" yaml:"color"`
	SortOrder int    `json:"sort_order,omitempty" yaml:"sort_order,omitempty"`
}

// LabelMap is keyed by label name.
type LabelMap map[string]Label

func DefaultLabels() LabelMap {
	return LabelMap{
		"background": {ID: IDBackground, Color: "#000000"},
		"penumbra":   {ID: IDPenumbra, Color: "#00ff00"},
		"core":       {ID: IDCore, Color: "#ff0000"},
	}
}

// Valid reports whether each ID is used by exactly one label.
func (l LabelMap) Valid() bool {
	inverse := make(map[uint]string)
	for k, v := range l {
		inverse[v.ID] = k
	}

	return len(l) == len(inverse)
}

// Sorted orders labels by SortOrder, then by ID.
func (l LabelMap) Sorted() []Label {
	out := make([]Label, 0, len(l))

	for k, v := range l {
		v.Label = k
		out = append(out, v)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder != out[j].SortOrder {
			return out[i].SortOrder < out[j].SortOrder
		}
		return out[i].ID < out[j].ID
	})

	return out
}

// Colorize turns an ID-encoded image (#010101 for ID 1, #020202 for ID 2, and
// so on) into the label colors. The background is transparent.
func (l LabelMap) Colorize(encoded image.Image) (*image.RGBA, error) {
	palette := make(map[uint32]color.RGBA)
	for _, v := range l.Sorted() {
		c, err := rgbaFromColorCode(v.Color)
		if err != nil {
			return nil, pfx.Err(fmt.Errorf("label %s: %w", v.Label, err))
		}
		if v.ID == IDBackground {
			c.A = 0
		}
		palette[uint32(v.ID)] = c
	}

	bounds := encoded.Bounds()
	out := image.NewRGBA(bounds)

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			id, err := LabeledPixelToID(encoded.At(x, y))
			if err != nil {
				return nil, err
			}

			c, exists := palette[id]
			if !exists {
				if id != uint32(IDBackground) {
					return nil, pfx.Err(fmt.Errorf("saw ID %d at (%d, %d) but it is not in the label map", id, x, y))
				}
				// An unmapped background stays transparent.
				continue
			}

			out.SetRGBA(x, y, c)
		}
	}

	return out, nil
}

// LabeledPixelToID converts a label-encoded pixel (e.g., #010101), which is
// alpha-premultiplied, into an ID in the range 0-255.
func LabeledPixelToID(c color.Color) (uint32, error) {
	pr, pg, pb, a := c.RGBA()

	if pr != pg || pg != pb {
		return 0, fmt.Errorf("encoding expected to have equal values for R, G, and B. Instead, found %d, %d, %d", pr, pg, pb)
	}
	if a == 0 {
		return 0, nil
	}

	return uint32(math.Round(255 * float64(pr) / float64(a))), nil
}

func rgbaFromColorCode(colorCode string) (color.RGBA, error) {
	colorCode = strings.ReplaceAll(colorCode, "#", "")

	if len(colorCode) < 6 {
		return color.RGBA{}, nil
	}

	var rgb [3]uint8
	for i := range rgb {
		v, err := strconv.ParseUint(colorCode[2*i:2*i+2], 16, 8)
		if err != nil {
			return color.RGBA{}, err
		}
		rgb[i] = uint8(v)
	}

	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 255}, nil
}
