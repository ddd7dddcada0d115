package indices

import (
	"testing"

	"github.com/carbocation/ctperfusion/volume"
)

var venousShape = volume.Shape{Width: 40, Height: 40, Depth: 10}

func TestVenousTransitROIPlacement(t *testing.T) {
	tmax := mustVolume(t, volume.KindTmax, venousShape, func(x, y, z int) float64 { return 1 })

	vt := NewVenousTransit(tmax, 10)

	// Slices 5-9, and x and y within 4-33.
	if vt.SSS.Voxels != 5*30*30 {
		t.Errorf("SSS has %d voxels, want %d", vt.SSS.Voxels, 5*30*30)
	}
	if vt.Torcula.Voxels != 10*30*30 {
		t.Errorf("torcula has %d voxels, want %d", vt.Torcula.Voxels, 10*30*30)
	}
	if vt.Positive || vt.Status != PVTNegative || vt.Interpretation != "Normal venous outflow" || vt.RiskLevel != "LOW" {
		t.Errorf("unexpected assessment %+v", vt)
	}
}

func TestVenousTransit(t *testing.T) {
	tests := []struct {
		name           string
		fill           func(x, y, z int) float64
		status         string
		interpretation string
	}{
		{
			name: "focal delay in both ROIs",
			fill: func(x, y, z int) float64 {
				if x == 19 && y == 19 && z == 8 {
					return 12
				}
				return 1
			},
			status:         PVTPositive,
			interpretation: "Deep venous drainage delayed",
		},
		{
			name: "delay outside the ROIs",
			fill: func(x, y, z int) float64 {
				if x == 0 && y == 0 && z == 0 {
					return 12
				}
				return 1
			},
			status:         PVTNegative,
			interpretation: "Normal venous outflow",
		},
		{
			name:           "diffuse delay",
			fill:           func(x, y, z int) float64 { return 12 },
			status:         PVTPositive,
			interpretation: "Both superficial and deep venous drainage delayed",
		},
	}

	for _, tt := range tests {
		vt := NewVenousTransit(mustVolume(t, volume.KindTmax, venousShape, tt.fill), 10)
		if vt.Status != tt.status {
			t.Errorf("%s: status %s, want %s", tt.name, vt.Status, tt.status)
		}
		if vt.Interpretation != tt.interpretation {
			t.Errorf("%s: interpretation %q, want %q", tt.name, vt.Interpretation, tt.interpretation)
		}
		if (vt.RiskLevel == "HIGH") != vt.Positive {
			t.Errorf("%s: risk level %s for positive=%v", tt.name, vt.RiskLevel, vt.Positive)
		}
	}
}

func TestVenousTransitEmptyBrain(t *testing.T) {
	tmax := mustVolume(t, volume.KindTmax, volume.Shape{Width: 3, Height: 3, Depth: 2}, func(x, y, z int) float64 { return 0 })

	vt := NewVenousTransit(tmax, 10)
	if vt.Positive || vt.SSS.Voxels != 0 || vt.Torcula.Voxels != 0 {
		t.Errorf("unexpected assessment %+v", vt)
	}
	if vt.SSS.PositiveRatio != 0 || vt.SSS.MeanTmax != 0 {
		t.Errorf("empty ROI should report zeros, got %+v", vt.SSS)
	}
}
