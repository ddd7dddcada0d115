// Package segment classifies perfusion volumes into brain, hypoperfusion,
// infarct core and penumbra.
package segment

import (
	"fmt"
	"log"

	"github.com/carbocation/ctperfusion"
	"github.com/carbocation/ctperfusion/volume"
	"gonum.org/v1/gonum/stat"
)

// Input holds the volumes of one analysis. Tmax is mandatory.
type Input struct {
	Tmax *volume.Volume
	CBV  *volume.Volume
	CBF  *volume.Volume
}

// Result holds the masks of one segmentation. Core is always a subset of
// Hypoperfusion, and Penumbra is exactly Hypoperfusion without Core.
type Result struct {
	// RequestedPolicy is chosen from the volumes present; Policy is the one
	// that was actually applied after any fallback.
	RequestedPolicy Policy
	Policy          Policy
	Thresholds      Thresholds

	Shape   volume.Shape
	Spacing volume.Spacing

	HasCBV bool
	HasCBF bool

	Brain         volume.Mask
	Hypoperfusion volume.Mask
	Severe        volume.Mask
	Core          volume.Mask
	Penumbra      volume.Mask

	// ContralateralCBF is the CBF normalization denominator, set only when
	// the CBF policy was applied.
	ContralateralCBF    float64
	HasContralateralCBF bool

	Warnings []ctperfusion.Warning
}

func (r *Result) VoxelVolumeML() float64 {
	return r.Spacing.VoxelVolumeML()
}

// VolumeML converts a mask of this result's grid to milliliters.
func (r *Result) VolumeML(m volume.Mask) float64 {
	return float64(m.Count()) * r.VoxelVolumeML()
}

func (r *Result) BrainVolumeML() float64         { return r.VolumeML(r.Brain) }
func (r *Result) HypoperfusionVolumeML() float64 { return r.VolumeML(r.Hypoperfusion) }
func (r *Result) SevereVolumeML() float64        { return r.VolumeML(r.Severe) }
func (r *Result) CoreVolumeML() float64          { return r.VolumeML(r.Core) }
func (r *Result) PenumbraVolumeML() float64      { return r.VolumeML(r.Penumbra) }

// Engine segments volumes with a fixed set of thresholds. It holds no state
// between runs.
type Engine struct {
	Thresholds Thresholds
}

func NewEngine() Engine {
	return Engine{Thresholds: DefaultThresholds()}
}

// Segment computes the masks for in.
func (e Engine) Segment(in Input) (*Result, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	t := e.Thresholds
	tmax := in.Tmax

	res := &Result{
		Thresholds: t,
		Shape:      tmax.Shape(),
		Spacing:    tmax.Spacing(),
		HasCBV:     in.CBV != nil,
		HasCBF:     in.CBF != nil,
	}

	brain := tmax.Threshold(func(v float64) bool { return v > t.BrainTmaxSec })
	if in.CBV != nil {
		brain = brain.Or(in.CBV.Threshold(func(v float64) bool { return v > t.BrainCBV }))
	}
	if in.CBF != nil {
		brain = brain.Or(in.CBF.Threshold(func(v float64) bool { return v > t.BrainCBF }))
	}
	res.Brain = brain

	res.Hypoperfusion = brain.Where(func(i int) bool { return tmax.At(i) >= t.HypoperfusionTmaxSec })
	res.Severe = brain.Where(func(i int) bool { return tmax.At(i) >= t.SevereTmaxSec })

	res.RequestedPolicy = SelectPolicy(res.HasCBF, res.HasCBV)
	res.Policy = res.RequestedPolicy
	if res.RequestedPolicy != PolicyCBF {
		res.Warnings = append(res.Warnings, ctperfusion.NewWarning(ctperfusion.WarnCorePolicyDegraded, volume.KindCBF.String(),
			"no CBF volume; core defined by %s", res.RequestedPolicy))
	}

	for {
		var applied bool
		switch res.Policy {
		case PolicyCBF:
			res.Core, res.ContralateralCBF, applied = e.cbfCore(res.Hypoperfusion, in.CBF)
			res.HasContralateralCBF = applied
		case PolicyCBV:
			res.Core = res.Hypoperfusion.And(res.Severe).Where(func(i int) bool { return in.CBV.At(i) < t.CoreCBV })
			applied = true
		default:
			res.Core = res.Hypoperfusion.And(res.Severe)
			applied = true
		}

		if applied {
			break
		}

		next := res.Policy.fallback(res.HasCBV)
		res.Warnings = append(res.Warnings, ctperfusion.NewWarning(ctperfusion.WarnCorePolicyFallback, volume.KindCBF.String(),
			"contralateral CBF reference is empty or zero; core defined by %s instead of %s", next, res.Policy))
		res.Policy = next
	}

	res.Penumbra = res.Hypoperfusion.AndNot(res.Core)

	log.Printf("Segmented %s grid with %s core: hypoperfusion %.2f ml, core %.2f ml, penumbra %.2f ml\n",
		res.Shape, res.Policy, res.HypoperfusionVolumeML(), res.CoreVolumeML(), res.PenumbraVolumeML())

	return res, nil
}

// cbfCore normalizes CBF by the mean of the mirrored hypoperfusion region. It
// reports false when that reference is unusable.
func (e Engine) cbfCore(hypo volume.Mask, cbf *volume.Volume) (volume.Mask, float64, bool) {
	reference := hypo.FlipX().Where(func(i int) bool { return cbf.At(i) > 0 })
	if reference.Empty() {
		return volume.Mask{}, 0, false
	}

	normal := stat.Mean(cbf.Masked(reference), nil)
	if !(normal > 0) {
		return volume.Mask{}, 0, false
	}

	core := hypo.Where(func(i int) bool { return cbf.At(i)/normal < e.Thresholds.RelativeCBF })
	return core, normal, true
}

func validate(in Input) error {
	if in.Tmax == nil {
		return ctperfusion.NewInputDataError(volume.KindTmax.String(), "", "the Tmax volume is mandatory but was not provided")
	}

	for _, other := range []*volume.Volume{in.CBV, in.CBF} {
		if other == nil {
			continue
		}
		if other.Shape() != in.Tmax.Shape() {
			return ctperfusion.NewInputDataError(other.Kind().String(), "", "volume shape %s differs from Tmax shape %s", other.Shape(), in.Tmax.Shape())
		}
		if !other.Spacing().Equal(in.Tmax.Spacing()) {
			return ctperfusion.NewInputDataError(other.Kind().String(), "", "voxel spacing %s differs from Tmax spacing %s", spacingString(other.Spacing()), spacingString(in.Tmax.Spacing()))
		}
	}

	return nil
}

func spacingString(s volume.Spacing) string {
	return fmt.Sprintf("%gx%gx%g mm", s.X, s.Y, s.Z)
}
