package overlay

import (
	"fmt"
	"image"
	"image/color"

	"github.com/carbocation/ctperfusion/volume"
	"github.com/disintegration/imaging"
)

// Labels assigns every voxel its lesion class ID. Core wins where the masks
// overlap, which a valid segmentation never produces.
func Labels(core, penumbra volume.Mask) []uint8 {
	shape := core.Shape()
	out := make([]uint8, shape.Len())
	for i := range out {
		switch {
		case core.At(i):
			out[i] = uint8(IDCore)
		case penumbra.At(i):
			out[i] = uint8(IDPenumbra)
		}
	}
	return out
}

// LabelSlice encodes slice z of labels as an image where each pixel is
// #010101 for ID 1, #020202 for ID 2, and so on.
func LabelSlice(labels []uint8, shape volume.Shape, z int) (*image.RGBA, error) {
	if len(labels) != shape.Len() {
		return nil, fmt.Errorf("%d labels for a %s grid", len(labels), shape)
	}
	if z < 0 || z >= shape.Depth {
		return nil, fmt.Errorf("slice %d outside 0-%d", z, shape.Depth-1)
	}

	out := image.NewRGBA(image.Rect(0, 0, shape.Width, shape.Height))
	for y := 0; y < shape.Height; y++ {
		for x := 0; x < shape.Width; x++ {
			id := labels[shape.Index(x, y, z)]
			out.SetRGBA(x, y, color.RGBA{R: id, G: id, B: id, A: 255})
		}
	}

	return out, nil
}

// GraySlice windows slice z of v linearly from 0 to max.
func GraySlice(v *volume.Volume, z int, max float64) *image.Gray {
	shape := v.Shape()
	out := image.NewGray(image.Rect(0, 0, shape.Width, shape.Height))
	if max <= 0 {
		return out
	}

	for y := 0; y < shape.Height; y++ {
		for x := 0; x < shape.Width; x++ {
			g := v.AtXYZ(x, y, z) / max * 255
			if g < 0 {
				g = 0
			} else if g > 255 {
				g = 255
			}
			out.SetGray(x, y, color.Gray{Y: uint8(g + 0.5)})
		}
	}

	return out
}

// Composite draws the colored labels over base at the given opacity and
// enlarges the result by an integer scale with nearest-neighbor sampling.
func Composite(base, colored image.Image, opacity float64, scale int) *image.NRGBA {
	out := imaging.Overlay(imaging.Clone(base), colored, image.Pt(0, 0), opacity)
	if scale > 1 {
		out = imaging.Resize(out, out.Bounds().Dx()*scale, 0, imaging.NearestNeighbor)
	}
	return out
}

// SliceImages renders slice z as both a label-encoded image and a color
// composite over the windowed background volume.
func (l LabelMap) SliceImages(background *volume.Volume, labels []uint8, z int, window float64, scale int) (encoded *image.RGBA, composite *image.NRGBA, err error) {
	encoded, err = LabelSlice(labels, background.Shape(), z)
	if err != nil {
		return nil, nil, err
	}

	colored, err := l.Colorize(encoded)
	if err != nil {
		return nil, nil, err
	}

	composite = Composite(GraySlice(background, z, window), colored, 0.5, scale)

	return encoded, composite, nil
}
