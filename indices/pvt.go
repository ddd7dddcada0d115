package indices

import (
	"log"

	"github.com/carbocation/ctperfusion/volume"
)

const (
	PVTPositive = "PVT+"
	PVTNegative = "PVT-"

	// Half-width, in voxels, of the venous ROI boxes.
	venousROIHalfWidth = 15
)

// VenousROI holds the Tmax summary of one venous region of interest.
type VenousROI struct {
	Voxels        int     `json:"voxels"`
	MeanTmax      float64 `json:"tmax_mean"`
	MaxTmax       float64 `json:"tmax_max"`
	Positive      bool    `json:"positive"`
	PositiveRatio float64 `json:"positive_ratio"`
}

// VenousTransit is a qualitative assessment of delayed venous outflow, from
// the presence of prolonged Tmax in the superior sagittal sinus (SSS) and the
// torcula.
type VenousTransit struct {
	Status       string    `json:"pvt_status"`
	Positive     bool      `json:"pvt_positive"`
	ThresholdSec float64   `json:"threshold"`
	SSS          VenousROI `json:"sss"`
	Torcula      VenousROI `json:"torcula"`

	Interpretation string `json:"interpretation"`
	RiskLevel      string `json:"risk_level"`
	Prognosis      string `json:"prognosis"`
	Method         string `json:"method"`
}

// NewVenousTransit locates the SSS and torcula inside the largest connected
// region of positive Tmax and reports whether either holds any voxel at or
// above threshold.
func NewVenousTransit(tmax *volume.Volume, threshold float64) *VenousTransit {
	brain := tmax.Threshold(func(v float64) bool { return v > 0 }).LargestComponent()

	sss, torcula := venousROIs(brain)
	if sss.Empty() {
		log.Println("Warning: superior sagittal sinus ROI is empty")
	}
	if torcula.Empty() {
		log.Println("Warning: torcula ROI is empty")
	}

	out := &VenousTransit{
		ThresholdSec: threshold,
		SSS:          summarizeROI(tmax, sss, threshold),
		Torcula:      summarizeROI(tmax, torcula, threshold),
		Method:       "Qualitative assessment (presence of prolonged Tmax region)",
	}
	out.Positive = out.SSS.Positive || out.Torcula.Positive

	switch {
	case !out.Positive:
		out.Status = PVTNegative
		out.Interpretation = "Normal venous outflow"
	case out.SSS.MeanTmax >= threshold && out.Torcula.MeanTmax >= threshold:
		out.Status = PVTPositive
		out.Interpretation = "Both superficial and deep venous drainage delayed"
	case out.SSS.MeanTmax >= threshold:
		out.Status = PVTPositive
		out.Interpretation = "Superficial venous drainage delayed"
	default:
		out.Status = PVTPositive
		out.Interpretation = "Deep venous drainage delayed"
	}

	if out.Positive {
		out.RiskLevel = "HIGH"
		out.Prognosis = "Poor prognosis"
	} else {
		out.RiskLevel = "LOW"
		out.Prognosis = "Favorable prognosis"
	}

	return out
}

func summarizeROI(tmax *volume.Volume, roi volume.Mask, threshold float64) VenousROI {
	values := tmax.Masked(roi)

	out := VenousROI{Voxels: len(values)}
	if len(values) == 0 {
		return out
	}

	var sum float64
	var above int
	out.MaxTmax = values[0]
	for _, v := range values {
		sum += v
		if v > out.MaxTmax {
			out.MaxTmax = v
		}
		if v >= threshold {
			above++
		}
	}

	out.MeanTmax = sum / float64(len(values))
	out.Positive = above > 0
	out.PositiveRatio = float64(above) / float64(len(values))

	return out
}

// box is a half-open range per axis, in (z, y, x) order.
type box [3][2]int

func (b box) contains(c [3]int) bool {
	for a := 0; a < 3; a++ {
		if c[a] < b[a][0] || c[a] >= b[a][1] {
			return false
		}
	}
	return true
}

// venousROIs places both ROIs relative to the extent of brain. The slice axis
// is the smallest dimension; the SSS spans the top 40% of the brain along it.
func venousROIs(brain volume.Mask) (volume.Mask, volume.Mask) {
	shape := brain.Shape()
	if brain.Empty() {
		return volume.EmptyMask(shape), volume.EmptyMask(shape)
	}

	dims := [3]int{shape.Depth, shape.Height, shape.Width}

	mins := dims
	var maxs [3]int
	for i := 0; i < shape.Len(); i++ {
		if !brain.At(i) {
			continue
		}
		x, y, z := shape.Coords(i)
		c := [3]int{z, y, x}
		for a := 0; a < 3; a++ {
			if c[a] < mins[a] {
				mins[a] = c[a]
			}
			if c[a] > maxs[a] {
				maxs[a] = c[a]
			}
		}
	}

	sliceAxis, largest := 0, dims[0]
	for a := 1; a < 3; a++ {
		if dims[a] < dims[sliceAxis] {
			sliceAxis = a
		}
		if dims[a] > largest {
			largest = dims[a]
		}
	}

	var sss, torcula box
	for a := 0; a < 3; a++ {
		center := (mins[a] + maxs[a]) / 2
		extent := maxs[a] - mins[a]

		switch {
		case a == sliceAxis:
			sss[a] = [2]int{mins[a] + int(float64(extent)*0.6), maxs[a] + 1}
		case dims[a] == largest:
			sss[a] = clip(center-venousROIHalfWidth, center+venousROIHalfWidth, dims[a])
		default:
			sss[a] = [2]int{0, dims[a]}
		}

		if a == sliceAxis {
			center = mins[a] + int(float64(extent)*0.7)
		}
		torcula[a] = clip(center-venousROIHalfWidth, center+venousROIHalfWidth, dims[a])
	}

	inBox := func(b box) func(int) bool {
		return func(i int) bool {
			x, y, z := shape.Coords(i)
			return b.contains([3]int{z, y, x})
		}
	}

	return brain.Where(inBox(sss)), brain.Where(inBox(torcula))
}

func clip(start, end, n int) [2]int {
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	return [2]int{start, end}
}
