package imagesource

import (
	"image"
	"image/color"
)

// grayValues reads 8- or 16-bit gray levels row-major and multiplies them by
// scale. Color images are converted to luminance first.
func grayValues(img image.Image, scale float64) []float64 {
	bounds := img.Bounds()
	out := make([]float64, 0, bounds.Dx()*bounds.Dy())

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var level float64
			switch c := img.At(x, y).(type) {
			case color.Gray:
				level = float64(c.Y)
			case color.Gray16:
				level = float64(c.Y)
			default:
				level = float64(color.GrayModel.Convert(c).(color.Gray).Y)
			}
			out = append(out, level*scale)
		}
	}

	return out
}
