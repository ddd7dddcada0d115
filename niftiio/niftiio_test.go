package niftiio

import (
	"math"
	"testing"

	"github.com/carbocation/ctperfusion"
	"github.com/carbocation/ctperfusion/volume"
)

var fallback = volume.Spacing{X: 0.5, Y: 0.5, Z: 3}

func TestGridVolumeLayout(t *testing.T) {
	g := Grid{
		Dims:    [3]int{3, 2, 2},
		Spacing: [3]float64{0.9, 0.8, 5},
		At:      func(x, y, z int) float64 { return float64(100*z + 10*y + x) },
	}

	v, warnings, err := g.Volume(volume.KindTmax, volume.UnitSeconds, "test.nii", fallback)
	if err != nil {
		t.Fatal(err)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings %v", warnings)
	}

	if v.Shape() != (volume.Shape{Width: 3, Height: 2, Depth: 2}) {
		t.Errorf("shape %s", v.Shape())
	}
	if v.Spacing() != (volume.Spacing{X: 0.9, Y: 0.8, Z: 5}) {
		t.Errorf("spacing %+v", v.Spacing())
	}
	if got := v.AtXYZ(2, 1, 1); got != 112 {
		t.Errorf("voxel (2,1,1) = %g, want 112", got)
	}
	if got := v.At(1); got != 1 {
		t.Errorf("flat index 1 = %g, want x=1 of the first row", got)
	}
}

func TestGridVolumeDefaultSpacing(t *testing.T) {
	g := Grid{
		Dims: [3]int{2, 2, 1},
		At:   func(x, y, z int) float64 { return 1 },
	}

	v, warnings, err := g.Volume(volume.KindCBV, volume.UnitMLPer100G, "test.nii", fallback)
	if err != nil {
		t.Fatal(err)
	}
	if v.Spacing() != fallback {
		t.Errorf("spacing %+v, want %+v", v.Spacing(), fallback)
	}

	codes := map[ctperfusion.WarningCode]bool{}
	for _, w := range warnings {
		codes[w.Code] = true
	}
	if !codes[ctperfusion.WarnDefaultPixelSpacing] || !codes[ctperfusion.WarnDefaultSliceThickness] {
		t.Errorf("warnings %v", warnings)
	}
}

func TestGridVolumeNonFinite(t *testing.T) {
	g := Grid{
		Dims:    [3]int{2, 2, 1},
		Spacing: [3]float64{1, 1, 1},
		At: func(x, y, z int) float64 {
			switch {
			case x == 0 && y == 0:
				return math.NaN()
			case x == 1 && y == 0:
				return math.Inf(1)
			}
			return 3
		},
	}

	v, warnings, err := g.Volume(volume.KindCBV, volume.UnitMLPer100G, "test.nii", fallback)
	if err != nil {
		t.Fatal(err)
	}
	if v.At(0) != 0 || v.At(1) != 0 || v.At(2) != 3 {
		t.Errorf("values %v, want non-finite voxels as 0", v.Values())
	}
	if len(warnings) != 1 || warnings[0].Code != ctperfusion.WarnNonFiniteVoxels {
		t.Errorf("warnings %v", warnings)
	}
}
