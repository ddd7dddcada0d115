package indices

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/carbocation/ctperfusion/segment"
	"github.com/carbocation/ctperfusion/volume"
)

var unitSpacing = volume.Spacing{X: 1, Y: 1, Z: 1}

func mustVolume(t *testing.T, kind volume.Kind, shape volume.Shape, fill func(x, y, z int) float64) *volume.Volume {
	t.Helper()

	data := make([]float64, shape.Len())
	for i := range data {
		x, y, z := shape.Coords(i)
		data[i] = fill(x, y, z)
	}

	v, err := volume.New(kind, volume.UnitSeconds, shape, unitSpacing, data)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func calculate(t *testing.T, tmax, cbv *volume.Volume) *Indices {
	t.Helper()

	seg, err := segment.NewEngine().Segment(segment.Input{Tmax: tmax, CBV: cbv})
	if err != nil {
		t.Fatal(err)
	}

	ix, err := Calculate(seg, tmax, cbv, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	return ix
}

func undefinedFields(ix *Indices) map[string]bool {
	out := make(map[string]bool)
	for _, u := range ix.Undefined {
		out[u.Field] = true
	}
	return out
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestNoHypoperfusionIsNull(t *testing.T) {
	shape := volume.Shape{Width: 4, Height: 4, Depth: 4}
	tmax := mustVolume(t, volume.KindTmax, shape, func(x, y, z int) float64 { return 3 })

	ix := calculate(t, tmax, nil)

	if ix.MismatchRatio.Valid || ix.HIR.Valid || ix.PRR.Valid {
		t.Errorf("ratios should be null: mismatch %v hir %v prr %v", ix.MismatchRatio, ix.HIR, ix.PRR)
	}
	if ix.CollateralGrade.Valid || ix.CorrectedCBVIndex.Valid || ix.ContralateralCBV.Valid {
		t.Error("CBV indices should be null without CBV")
	}
	if ix.MismatchVolumeML != 0 {
		t.Errorf("mismatch volume %g, want 0", ix.MismatchVolumeML)
	}

	fields := undefinedFields(ix)
	for _, f := range []string{"mismatch_ratio", "hir", "prr", "contralateral_cbv", "corrected_cbv_index", "conventional_cbv_index", "collateral_grade"} {
		if !fields[f] {
			t.Errorf("%s missing from undefined list", f)
		}
	}
}

func TestNullsSerializeAsNull(t *testing.T) {
	shape := volume.Shape{Width: 2, Height: 2, Depth: 1}
	tmax := mustVolume(t, volume.KindTmax, shape, func(x, y, z int) float64 { return 1 })

	b, err := json.Marshal(calculate(t, tmax, nil))
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{`"mismatch_ratio":null`, `"hir":null`, `"collateral_grade":null`, `"mismatch_volume_ml":0`} {
		if !strings.Contains(string(b), want) {
			t.Errorf("%s not found in %s", want, b)
		}
	}
}

func TestHalfVolumeMismatch(t *testing.T) {
	shape := volume.Shape{Width: 10, Height: 10, Depth: 10}
	tmax := mustVolume(t, volume.KindTmax, shape, func(x, y, z int) float64 {
		if x < 5 {
			return 0
		}
		return 12
	})

	ix := calculate(t, tmax, nil)

	if !ix.MismatchRatio.Valid || ix.MismatchRatio.Float64 != 1 {
		t.Errorf("mismatch ratio %v, want 1", ix.MismatchRatio)
	}
	if !ix.HIR.Valid || ix.HIR.Float64 != 1 {
		t.Errorf("hir %v, want 1", ix.HIR)
	}
	if !ix.PRR.Valid || ix.PRR.Float64 != 0 {
		t.Errorf("prr %v, want 0", ix.PRR)
	}

	if len(ix.SliceStatistics) != shape.Depth {
		t.Fatalf("%d slice stats, want %d", len(ix.SliceStatistics), shape.Depth)
	}
	for _, s := range ix.SliceStatistics {
		if !near(s.CoreAreaCM2, 0.5) || s.PenumbraAreaCM2 != 0 || !near(s.TotalAreaCM2, 0.5) {
			t.Errorf("slice %d: core %g penumbra %g total %g", s.Slice, s.CoreAreaCM2, s.PenumbraAreaCM2, s.TotalAreaCM2)
		}
		if s.CoreComponents != 1 || s.PenumbraComponents != 0 {
			t.Errorf("slice %d: %d core and %d penumbra components", s.Slice, s.CoreComponents, s.PenumbraComponents)
		}
	}
}

// Lesion on the left half with CBV 1, normal right half with CBV 3.
func TestCBVIndicesCorticalBand(t *testing.T) {
	shape := volume.Shape{Width: 10, Height: 2, Depth: 1}
	tmax := mustVolume(t, volume.KindTmax, shape, func(x, y, z int) float64 {
		if x < 5 {
			return 12
		}
		return 1
	})
	cbv := mustVolume(t, volume.KindCBV, shape, func(x, y, z int) float64 {
		if x < 5 {
			return 1
		}
		return 3
	})

	ix := calculate(t, tmax, cbv)

	if ix.ContralateralCBVSource.String != string(SourceCorticalBand) || !near(ix.ContralateralCBV.Float64, 3) {
		t.Errorf("contralateral %v from %v, want 3 from cortical band", ix.ContralateralCBV, ix.ContralateralCBVSource)
	}
	if !ix.CorrectedCBVIndex.Valid || !near(ix.CorrectedCBVIndex.Float64, 1.0/3) {
		t.Errorf("corrected %v, want 1/3", ix.CorrectedCBVIndex)
	}
	if !ix.ConventionalCBVIndex.Valid || !near(ix.ConventionalCBVIndex.Float64, 1.0/3) || ix.ConventionalFromCorrected {
		t.Errorf("conventional %v (from corrected %v), want 1/3", ix.ConventionalCBVIndex, ix.ConventionalFromCorrected)
	}
	if ix.CollateralGrade.String != GradePoor || ix.CollateralGradeDetail.String != "ASITN/SIR 0-2" {
		t.Errorf("grade %v %v, want Poor", ix.CollateralGrade, ix.CollateralGradeDetail)
	}
}

func TestContralateralFallsBackToMirroredRegion(t *testing.T) {
	shape := volume.Shape{Width: 10, Height: 1, Depth: 1}
	tmax := mustVolume(t, volume.KindTmax, shape, func(x, y, z int) float64 {
		if x == 0 {
			return 12
		}
		return 1
	})
	// The mirrored voxel sits above the 90th percentile band.
	cbv := mustVolume(t, volume.KindCBV, shape, func(x, y, z int) float64 {
		if x == 9 {
			return 100
		}
		return 1
	})

	seg, err := segment.NewEngine().Segment(segment.Input{Tmax: tmax, CBV: cbv})
	if err != nil {
		t.Fatal(err)
	}

	got, source := ContralateralCBV(cbv, seg.Hypoperfusion, DefaultOptions())
	if source != SourceMirroredRegion || got != 100 {
		t.Errorf("got %g from %s, want 100 from %s", got, source, SourceMirroredRegion)
	}
}

func TestContralateralDefaultAndConventionalFallback(t *testing.T) {
	shape := volume.Shape{Width: 6, Height: 2, Depth: 2}
	tmax := mustVolume(t, volume.KindTmax, shape, func(x, y, z int) float64 {
		if x < 2 {
			return 8
		}
		return 1
	})
	cbv := mustVolume(t, volume.KindCBV, shape, func(x, y, z int) float64 { return 0 })

	ix := calculate(t, tmax, cbv)

	if ix.ContralateralCBVSource.String != string(SourceDefaultConstant) || ix.ContralateralCBV.Float64 != DefaultContralateralCBV {
		t.Errorf("contralateral %v from %v, want default", ix.ContralateralCBV, ix.ContralateralCBVSource)
	}
	if !ix.CorrectedCBVIndex.Valid || ix.CorrectedCBVIndex.Float64 != 0 {
		t.Errorf("corrected %v, want 0", ix.CorrectedCBVIndex)
	}
	if !ix.ConventionalFromCorrected || ix.ConventionalCBVIndex != ix.CorrectedCBVIndex {
		t.Errorf("conventional %v should come from corrected %v", ix.ConventionalCBVIndex, ix.CorrectedCBVIndex)
	}
}

func TestLeftHemisphereNeedsStrictMajority(t *testing.T) {
	shape := volume.Shape{Width: 4, Height: 1, Depth: 1}

	tests := []struct {
		name string
		in   func(x int) bool
		want bool
	}{
		{"empty", func(x int) bool { return false }, false},
		{"tie", func(x int) bool { return x == 1 || x == 2 }, false},
		{"left", func(x int) bool { return x < 2 }, true},
		{"right", func(x int) bool { return x == 3 }, false},
	}

	for _, tt := range tests {
		m := volume.MaskFrom(shape, func(i int) bool {
			x, _, _ := shape.Coords(i)
			return tt.in(x)
		})
		if got := LeftHemisphere(m); got != tt.want {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestConventionalLesionStaysInLesionHemisphere(t *testing.T) {
	shape := volume.Shape{Width: 4, Height: 1, Depth: 1}
	cbv := mustVolume(t, volume.KindCBV, shape, func(x, y, z int) float64 { return 1 })
	hypo := volume.MaskFrom(shape, func(i int) bool { return i == 3 })

	lesion := ConventionalLesion(cbv, hypo, DefaultConventionalPercentile)
	for x := 0; x < 4; x++ {
		if want := x >= 2; lesion.AtXYZ(x, 0, 0) != want {
			t.Errorf("x=%d: in lesion %v, want %v", x, lesion.AtXYZ(x, 0, 0), want)
		}
	}
}

func TestCalculateShapeMismatch(t *testing.T) {
	tmax := mustVolume(t, volume.KindTmax, volume.Shape{Width: 2, Height: 2, Depth: 2}, func(x, y, z int) float64 { return 7 })
	other := mustVolume(t, volume.KindCBV, volume.Shape{Width: 3, Height: 2, Depth: 2}, func(x, y, z int) float64 { return 1 })

	seg, err := segment.NewEngine().Segment(segment.Input{Tmax: tmax})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := Calculate(seg, tmax, other, DefaultOptions()); err == nil {
		t.Error("expected an error for a CBV volume of a different shape")
	}
	if _, err := Calculate(seg, nil, nil, DefaultOptions()); err == nil {
		t.Error("expected an error without Tmax")
	}
}

func TestNonPositiveContralateralIsNull(t *testing.T) {
	shape := volume.Shape{Width: 6, Height: 2, Depth: 2}
	tmax := mustVolume(t, volume.KindTmax, shape, func(x, y, z int) float64 {
		if x < 2 {
			return 8
		}
		return 1
	})
	cbv := mustVolume(t, volume.KindCBV, shape, func(x, y, z int) float64 { return 0 })

	seg, err := segment.NewEngine().Segment(segment.Input{Tmax: tmax, CBV: cbv})
	if err != nil {
		t.Fatal(err)
	}

	for _, ref := range []float64{0, -1} {
		opts := DefaultOptions()
		opts.DefaultContralateralCBV = ref

		ix, err := Calculate(seg, tmax, cbv, opts)
		if err != nil {
			t.Fatal(err)
		}

		if ix.ContralateralCBV.Valid || ix.CorrectedCBVIndex.Valid || ix.ConventionalCBVIndex.Valid || ix.CollateralGrade.Valid {
			t.Errorf("reference %g: contralateral %v corrected %v conventional %v grade %v, want all null",
				ref, ix.ContralateralCBV, ix.CorrectedCBVIndex, ix.ConventionalCBVIndex, ix.CollateralGrade)
		}
		if ix.ContralateralCBVSource.String != string(SourceDefaultConstant) {
			t.Errorf("reference %g: source %v", ref, ix.ContralateralCBVSource)
		}

		fields := undefinedFields(ix)
		for _, f := range []string{"contralateral_cbv", "corrected_cbv_index", "conventional_cbv_index", "collateral_grade"} {
			if !fields[f] {
				t.Errorf("reference %g: %s missing from undefined list", ref, f)
			}
		}

		if _, err := json.Marshal(ix); err != nil {
			t.Errorf("reference %g: %v", ref, err)
		}
	}
}

func TestNonFiniteCBVStaysEncodable(t *testing.T) {
	shape := volume.Shape{Width: 4, Height: 1, Depth: 1}
	tmaxValues := []float64{12, 8, 1, 1}
	cbvValues := []float64{math.NaN(), 3, 4, 4}
	tmax := mustVolume(t, volume.KindTmax, shape, func(x, y, z int) float64 { return tmaxValues[x] })
	cbv := mustVolume(t, volume.KindCBV, shape, func(x, y, z int) float64 { return cbvValues[x] })

	ix := calculate(t, tmax, cbv)

	for name, v := range map[string]float64{
		"contralateral": ix.ContralateralCBV.Float64,
		"corrected":     ix.CorrectedCBVIndex.Float64,
		"conventional":  ix.ConventionalCBVIndex.Float64,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s index is %g", name, v)
		}
	}
	if _, err := json.Marshal(ix); err != nil {
		t.Fatal(err)
	}
}

func TestRatio(t *testing.T) {
	tests := []struct {
		num, den float64
		valid    bool
		want     float64
	}{
		{1, 4, true, 0.25},
		{0, 4, true, 0},
		{1, 0, false, 0},
		{math.NaN(), 2, false, 0},
		{math.Inf(1), 2, false, 0},
		{1, math.Inf(1), true, 0},
	}

	for _, tt := range tests {
		ix := &Indices{}
		got := ix.ratio("x", tt.num, tt.den)
		if got.Valid != tt.valid || (tt.valid && got.Float64 != tt.want) {
			t.Errorf("%g/%g = %v, want valid=%v %g", tt.num, tt.den, got, tt.valid, tt.want)
		}
		if !tt.valid && (len(ix.Undefined) != 1 || ix.Undefined[0].Field != "x") {
			t.Errorf("%g/%g: undefined %v", tt.num, tt.den, ix.Undefined)
		}
	}
}
