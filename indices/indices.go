// Package indices derives the secondary clinical indices (mismatch ratio,
// HIR, PRR, CBV indices and collateral grade) from a segmentation.
//
// Any index that cannot be computed is null rather than zero, and is listed
// in Indices.Undefined with the reason.
package indices

import (
	"fmt"
	"math"

	"github.com/carbocation/ctperfusion"
	"github.com/carbocation/ctperfusion/segment"
	"github.com/carbocation/ctperfusion/volume"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/guregu/null.v3"
)

const (
	DefaultCollateralCutoff       = 0.70
	DefaultCorticalBandLow        = 40.0
	DefaultCorticalBandHigh       = 90.0
	DefaultConventionalPercentile = 35.0
	DefaultContralateralCBV       = 1.0
)

// ContralateralSource records which reference region produced the
// contralateral CBV.
type ContralateralSource string

const (
	SourceCorticalBand    ContralateralSource = "cortical_band"
	SourceMirroredRegion  ContralateralSource = "mirrored_region"
	SourceDefaultConstant ContralateralSource = "default_constant"
)

const (
	GradeGood = "Good"
	GradePoor = "Poor"
)

type Options struct {
	// CollateralCutoff is the corrected CBV index at or above which
	// collaterals are graded Good.
	CollateralCutoff float64 `json:"collateral_cutoff" yaml:"collateral_cutoff"`

	// CorticalBandLow and CorticalBandHigh bound the percentile band of
	// positive CBV taken as normal cortex.
	CorticalBandLow  float64 `json:"cortical_band_low_percentile" yaml:"cortical_band_low_percentile"`
	CorticalBandHigh float64 `json:"cortical_band_high_percentile" yaml:"cortical_band_high_percentile"`

	ConventionalPercentile float64 `json:"conventional_lesion_percentile" yaml:"conventional_lesion_percentile"`

	// DefaultContralateralCBV is used when no reference region has any
	// positive CBV.
	DefaultContralateralCBV float64 `json:"default_contralateral_cbv" yaml:"default_contralateral_cbv"`

	// VenousThresholdSec is the Tmax above which venous outflow counts as
	// delayed. Zero uses the segmentation's severe threshold.
	VenousThresholdSec float64 `json:"venous_threshold_sec" yaml:"venous_threshold_sec"`
}

func DefaultOptions() Options {
	return Options{
		CollateralCutoff:        DefaultCollateralCutoff,
		CorticalBandLow:         DefaultCorticalBandLow,
		CorticalBandHigh:        DefaultCorticalBandHigh,
		ConventionalPercentile:  DefaultConventionalPercentile,
		DefaultContralateralCBV: DefaultContralateralCBV,
	}
}

// Indices is the set of derived values for one analysis. HIR and PRR are null,
// not 0.0, when the hypoperfusion volume is zero.
type Indices struct {
	MismatchRatio    null.Float `json:"mismatch_ratio"`
	MismatchVolumeML float64    `json:"mismatch_volume_ml"`

	HIR null.Float `json:"hir"`
	PRR null.Float `json:"prr"`

	ContralateralCBV       null.Float  `json:"contralateral_cbv"`
	ContralateralCBVSource null.String `json:"contralateral_cbv_source"`

	CorrectedCBVIndex    null.Float `json:"corrected_cbv_index"`
	ConventionalCBVIndex null.Float `json:"conventional_cbv_index"`

	// ConventionalFromCorrected is set when the conventional lesion region
	// was empty and the corrected index was reported in its place.
	ConventionalFromCorrected bool `json:"conventional_from_corrected"`

	CollateralGrade       null.String `json:"collateral_grade"`
	CollateralGradeDetail null.String `json:"collateral_grade_detail"`

	SliceStatistics []SliceStat    `json:"slice_statistics"`
	VenousTransit   *VenousTransit `json:"venous_transit,omitempty"`

	Undefined []ctperfusion.NumericEdgeCase `json:"undefined"`
}

func (ix *Indices) undefined(field, format string, args ...interface{}) {
	ix.Undefined = append(ix.Undefined, ctperfusion.NumericEdgeCase{Field: field, Reason: fmt.Sprintf(format, args...)})
}

// ratio returns num/den, or null with an Undefined entry for field when the
// quotient is not a finite number.
func (ix *Indices) ratio(field string, num, den float64) null.Float {
	if den == 0 {
		ix.undefined(field, "denominator is zero")
		return null.Float{}
	}

	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		ix.undefined(field, "%g / %g is not finite", num, den)
		return null.Float{}
	}

	return null.FloatFrom(r)
}

// Calculate derives all indices from seg. tmax is required; cbv may be nil,
// in which case every CBV-based index is null.
func Calculate(seg *segment.Result, tmax, cbv *volume.Volume, opts Options) (*Indices, error) {
	if seg == nil {
		return nil, fmt.Errorf("no segmentation result")
	}
	if tmax == nil {
		return nil, ctperfusion.NewInputDataError(volume.KindTmax.String(), "", "the Tmax volume is mandatory but was not provided")
	}
	if tmax.Shape() != seg.Shape {
		return nil, ctperfusion.NewInputDataError(volume.KindTmax.String(), "", "volume shape %s differs from segmentation shape %s", tmax.Shape(), seg.Shape)
	}
	if cbv != nil && cbv.Shape() != seg.Shape {
		return nil, ctperfusion.NewInputDataError(volume.KindCBV.String(), "", "volume shape %s differs from segmentation shape %s", cbv.Shape(), seg.Shape)
	}

	ix := &Indices{
		MismatchVolumeML: seg.PenumbraVolumeML(),
		Undefined:        []ctperfusion.NumericEdgeCase{},
	}

	hypo := seg.Hypoperfusion.Count()
	core := seg.Core.Count()

	if core > 0 {
		ix.MismatchRatio = ix.ratio("mismatch_ratio", float64(hypo), float64(core))
	} else {
		ix.undefined("mismatch_ratio", "infarct core volume is zero")
	}

	if hypo > 0 {
		ix.HIR = ix.ratio("hir", float64(seg.Severe.Count()), float64(hypo))
		ix.PRR = ix.ratio("prr", float64(seg.Penumbra.Count()), float64(hypo))
	} else {
		ix.undefined("hir", "hypoperfusion volume is zero")
		ix.undefined("prr", "hypoperfusion volume is zero")
	}

	if cbv != nil {
		cbvIndices(ix, seg, cbv, opts)
	} else {
		for _, field := range []string{"contralateral_cbv", "corrected_cbv_index", "conventional_cbv_index", "collateral_grade"} {
			ix.undefined(field, "no CBV volume was provided")
		}
	}

	ix.SliceStatistics = SliceStatistics(seg)

	threshold := opts.VenousThresholdSec
	if threshold <= 0 {
		threshold = seg.Thresholds.SevereTmaxSec
	}
	ix.VenousTransit = NewVenousTransit(tmax, threshold)

	return ix, nil
}

func cbvIndices(ix *Indices, seg *segment.Result, cbv *volume.Volume, opts Options) {
	contralateral, source := ContralateralCBV(cbv, seg.Hypoperfusion, opts)
	ix.ContralateralCBVSource = null.StringFrom(string(source))

	// Every CBV index is a quotient over the contralateral reference.
	if !(contralateral > 0) || math.IsInf(contralateral, 0) {
		ix.undefined("contralateral_cbv", "%s reference CBV %g is not positive", source, contralateral)
		for _, field := range []string{"corrected_cbv_index", "conventional_cbv_index", "collateral_grade"} {
			ix.undefined(field, "contralateral CBV is undefined")
		}
		return
	}
	ix.ContralateralCBV = null.FloatFrom(contralateral)

	if seg.Hypoperfusion.Empty() {
		ix.undefined("corrected_cbv_index", "hypoperfusion region is empty")
	} else {
		ix.CorrectedCBVIndex = ix.ratio("corrected_cbv_index", stat.Mean(cbv.Masked(seg.Hypoperfusion), nil), contralateral)
	}

	lesion := ConventionalLesion(cbv, seg.Hypoperfusion, opts.ConventionalPercentile)
	if !lesion.Empty() {
		ix.ConventionalCBVIndex = ix.ratio("conventional_cbv_index", stat.Mean(cbv.Masked(lesion), nil), contralateral)
	} else {
		ix.ConventionalCBVIndex = ix.CorrectedCBVIndex
		ix.ConventionalFromCorrected = true
		if !ix.ConventionalCBVIndex.Valid {
			ix.undefined("conventional_cbv_index", "conventional lesion region and hypoperfusion region are both empty")
		}
	}

	if !ix.CorrectedCBVIndex.Valid {
		ix.undefined("collateral_grade", "corrected CBV index is undefined")
		return
	}

	if ix.CorrectedCBVIndex.Float64 >= opts.CollateralCutoff {
		ix.CollateralGrade = null.StringFrom(GradeGood)
		ix.CollateralGradeDetail = null.StringFrom("ASITN/SIR 3-4")
	} else {
		ix.CollateralGrade = null.StringFrom(GradePoor)
		ix.CollateralGradeDetail = null.StringFrom("ASITN/SIR 0-2")
	}
}

// ContralateralCBV returns the reference CBV of normal tissue mirrored across
// the midline from hypo. The cortical band is the CBV between the configured
// percentiles of all positive CBV.
func ContralateralCBV(cbv *volume.Volume, hypo volume.Mask, opts Options) (float64, ContralateralSource) {
	positive := cbv.Threshold(func(v float64) bool { return v > 0 })
	if positive.Empty() {
		return opts.DefaultContralateralCBV, SourceDefaultConstant
	}

	sorted := sortedCopy(cbv.Masked(positive))
	low := percentileSorted(sorted, opts.CorticalBandLow)
	high := percentileSorted(sorted, opts.CorticalBandHigh)

	mirrored := hypo.FlipX()

	band := mirrored.Where(func(i int) bool {
		v := cbv.At(i)
		return v >= low && v <= high
	})
	if !band.Empty() {
		return stat.Mean(cbv.Masked(band), nil), SourceCorticalBand
	}

	normal := mirrored.And(positive)
	if !normal.Empty() {
		return stat.Mean(cbv.Masked(normal), nil), SourceMirroredRegion
	}

	return opts.DefaultContralateralCBV, SourceDefaultConstant
}

// ConventionalLesion is the low-CBV region of the hemisphere with the larger
// hypoperfusion burden: positive CBV at or below the given percentile. Ties go
// to the right hemisphere (x >= W/2).
func ConventionalLesion(cbv *volume.Volume, hypo volume.Mask, percentile float64) volume.Mask {
	shape := cbv.Shape()
	positive := cbv.Threshold(func(v float64) bool { return v > 0 })
	if positive.Empty() {
		return volume.EmptyMask(shape)
	}

	cut := Percentile(cbv.Masked(positive), percentile)

	left := LeftHemisphere(hypo)
	midline := shape.Width / 2

	return positive.Where(func(i int) bool {
		if cbv.At(i) > cut {
			return false
		}
		x, _, _ := shape.Coords(i)
		return (x < midline) == left
	})
}

// LeftHemisphere reports whether the x < W/2 half holds strictly more of m
// than the other half.
func LeftHemisphere(m volume.Mask) bool {
	shape := m.Shape()
	midline := shape.Width / 2

	var left, right int
	for i := 0; i < shape.Len(); i++ {
		if !m.At(i) {
			continue
		}
		if x, _, _ := shape.Coords(i); x < midline {
			left++
		} else {
			right++
		}
	}

	return left > right
}
