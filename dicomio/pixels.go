package dicomio

import (
	"fmt"
	"image"
	"image/color"

	"github.com/carbocation/ctperfusion/colormap"
	"github.com/suyashkumar/dicom/dicomtag"
	"github.com/suyashkumar/dicom/element"
)

// pixels holds the first frame of a DICOM in one of the two encodings.
type pixels struct {
	width, height int
	rgb           *colormap.RGB
	scalar        []float64
}

func extractPixels(parsedData *element.DataSet, meta *DicomMeta) (*pixels, error) {
	for _, elem := range parsedData.Elements {
		if elem.Tag != dicomtag.PixelData || len(elem.Value) == 0 {
			continue
		}

		data, ok := elem.Value[0].(element.PixelDataInfo)
		if !ok {
			return nil, fmt.Errorf("pixel data has unexpected type %T", elem.Value[0])
		}

		for _, frame := range data.Frames {
			if frame.IsEncapsulated() {
				img, err := frame.GetImage()
				if err != nil {
					return nil, fmt.Errorf("decoding encapsulated frame: %w", err)
				}
				return pixelsFromImage(img, meta), nil
			}

			samples := make([]int, 0, len(frame.NativeData.Data)*meta.SamplesPerPixel)
			for j := 0; j < len(frame.NativeData.Data); j++ {
				samples = append(samples, frame.NativeData.Data[j]...)
			}
			return pixelsFromSamples(samples, meta)
		}
	}

	return nil, fmt.Errorf("no pixel data")
}

// pixelsFromSamples interprets native samples. Color samples are stored
// pixel-interleaved unless the planar configuration says otherwise.
func pixelsFromSamples(samples []int, meta *DicomMeta) (*pixels, error) {
	w, h := meta.Cols, meta.Rows
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("invalid dimensions %dx%d", w, h)
	}
	n := w * h

	if !meta.IsRGB() {
		if len(samples) != n {
			return nil, fmt.Errorf("found %d samples for a %dx%d grayscale image", len(samples), w, h)
		}
		scalar := make([]float64, n)
		for i, s := range samples {
			scalar[i] = float64(s)*meta.RescaleSlope + meta.RescaleIntercept
		}
		return &pixels{width: w, height: h, scalar: scalar}, nil
	}

	if len(samples) != n*3 {
		return nil, fmt.Errorf("found %d samples for a %dx%dx3 color image", len(samples), w, h)
	}

	shift := 0
	if meta.BitsAllocated > 8 {
		shift = meta.BitsAllocated - 8
	}

	img := colormap.NewRGB(w, h)
	for i := 0; i < n; i++ {
		var r, g, b int
		if meta.PlanarConfiguration == 1 {
			r, g, b = samples[i], samples[n+i], samples[2*n+i]
		} else {
			r, g, b = samples[3*i], samples[3*i+1], samples[3*i+2]
		}
		img.Pix[3*i] = clampByte(r >> shift)
		img.Pix[3*i+1] = clampByte(g >> shift)
		img.Pix[3*i+2] = clampByte(b >> shift)
	}

	return &pixels{width: w, height: h, rgb: img}, nil
}

func pixelsFromImage(img image.Image, meta *DicomMeta) *pixels {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if meta.IsRGB() {
		return &pixels{width: w, height: h, rgb: colormap.FromImage(img)}
	}

	scalar := make([]float64, 0, w*h)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			var stored float64
			switch c := img.At(x, y).(type) {
			case color.Gray:
				stored = float64(c.Y)
			case color.Gray16:
				stored = float64(c.Y)
			default:
				stored = float64(color.Gray16Model.Convert(c).(color.Gray16).Y)
			}
			scalar = append(scalar, stored*meta.RescaleSlope+meta.RescaleIntercept)
		}
	}

	return &pixels{width: w, height: h, scalar: scalar}
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}
