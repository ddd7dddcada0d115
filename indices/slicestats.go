package indices

import (
	"github.com/carbocation/ctperfusion/segment"
)

// SliceStat summarizes the lesion on one axial slice. Areas are in cm².
type SliceStat struct {
	Slice                int     `json:"slice_index"`
	CoreAreaCM2          float64 `json:"core_area_cm2"`
	PenumbraAreaCM2      float64 `json:"penumbra_area_cm2"`
	TotalAreaCM2         float64 `json:"total_area_cm2"`
	HypoperfusionAreaCM2 float64 `json:"hypoperfusion_area_cm2"`
	CoreComponents       int     `json:"core_components"`
	PenumbraComponents   int     `json:"penumbra_components"`
}

// SliceStatistics computes one SliceStat per z, in slice order.
func SliceStatistics(seg *segment.Result) []SliceStat {
	area := seg.Spacing.PixelAreaCM2()

	out := make([]SliceStat, 0, seg.Shape.Depth)
	for z := 0; z < seg.Shape.Depth; z++ {
		core := float64(seg.Core.SliceCount(z)) * area
		penumbra := float64(seg.Penumbra.SliceCount(z)) * area

		out = append(out, SliceStat{
			Slice:                z,
			CoreAreaCM2:          core,
			PenumbraAreaCM2:      penumbra,
			TotalAreaCM2:         core + penumbra,
			HypoperfusionAreaCM2: float64(seg.Hypoperfusion.SliceCount(z)) * area,
			CoreComponents:       seg.Core.SliceComponents(z),
			PenumbraComponents:   seg.Penumbra.SliceComponents(z),
		})
	}

	return out
}
