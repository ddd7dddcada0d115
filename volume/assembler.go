package volume

import (
	"fmt"
	"log"
	"math"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/carbocation/ctperfusion"
	"github.com/carbocation/runningvariance"
)

const (
	// DefaultInPlaneSpacingMM applies when a series carries no pixel spacing.
	DefaultInPlaneSpacingMM = 0.5

	// DefaultSliceThicknessMM applies when a series carries no slice
	// thickness.
	DefaultSliceThicknessMM = 3.0
)

// Assembler stacks the slices of one parameter series into a calibrated
// volume.
type Assembler struct {
	Configs map[Kind]KindConfig

	// DefaultSpacing is used for whichever spacing metadata is absent.
	DefaultSpacing Spacing

	// Workers bounds the number of slices decoded concurrently.
	Workers int
}

// NewAssembler returns an assembler with the default parameter table,
// fallback spacing and one worker per CPU.
func NewAssembler() Assembler {
	return Assembler{
		Configs: DefaultKindConfigs(),
		DefaultSpacing: Spacing{
			X: DefaultInPlaneSpacingMM,
			Y: DefaultInPlaneSpacingMM,
			Z: DefaultSliceThicknessMM,
		},
		Workers: runtime.NumCPU(),
	}
}

// Metadata describes an assembled volume for audit and debugging.
type Metadata struct {
	Kind              Kind                  `json:"kind"`
	SeriesKeyword     string                `json:"series_keyword"`
	SeriesDescription string                `json:"series_description"`
	SeriesNumber      string                `json:"series_number,omitempty"`
	NumSlices         int                   `json:"num_slices"`
	Shape             []int                 `json:"shape"`
	Encoding          Encoding              `json:"encoding"`
	ColormapFamily    string                `json:"colormap_family,omitempty"`
	TargetMax         float64               `json:"target_max"`
	Unit              Unit                  `json:"unit"`
	ValueRange        [2]float64            `json:"value_range"`
	Mean              float64               `json:"mean"`
	Std               float64               `json:"std"`
	PixelSpacingMM    [3]float64            `json:"pixel_spacing_mm"`
	PositionRangeMM   []float64             `json:"position_range_mm,omitempty"`
	Warnings          []ctperfusion.Warning `json:"warnings,omitempty"`
}

// Select returns the slices belonging to the series for kind. When several
// series numbers match the keyword, the series with the most slices wins.
func (a Assembler) Select(kind Kind, all []Slice) ([]Slice, []ctperfusion.Warning, error) {
	cfg, exists := a.Configs[kind]
	if !exists {
		return nil, nil, fmt.Errorf("no configuration for parameter %s", kind)
	}
	keyword := strings.ToUpper(cfg.SeriesKeyword)

	bySeries := make(map[string][]Slice)
	var seriesOrder []string
	for _, s := range all {
		if !strings.Contains(strings.ToUpper(s.SeriesDescription), keyword) {
			continue
		}
		if _, seen := bySeries[s.SeriesNumber]; !seen {
			seriesOrder = append(seriesOrder, s.SeriesNumber)
		}
		bySeries[s.SeriesNumber] = append(bySeries[s.SeriesNumber], s)
	}

	if len(seriesOrder) == 0 {
		return nil, nil, ctperfusion.NewInputDataError(cfg.SeriesKeyword, "", "no slices have a series description containing %q", cfg.SeriesKeyword)
	}

	var warnings []ctperfusion.Warning
	chosen := seriesOrder[0]
	if len(seriesOrder) > 1 {
		sort.Strings(seriesOrder)
		chosen = seriesOrder[0]
		for _, num := range seriesOrder[1:] {
			if len(bySeries[num]) > len(bySeries[chosen]) {
				chosen = num
			}
		}
		warnings = append(warnings, ctperfusion.NewWarning(ctperfusion.WarnMultipleSeries, cfg.SeriesKeyword,
			"%d series numbers (%s) match; using series %q with %d slices", len(seriesOrder), strings.Join(seriesOrder, ", "), chosen, len(bySeries[chosen])))
	}

	return bySeries[chosen], warnings, nil
}

// Matches reports whether any slice belongs to a series for kind.
func (a Assembler) Matches(kind Kind, all []Slice) bool {
	cfg, exists := a.Configs[kind]
	if !exists {
		return false
	}
	keyword := strings.ToUpper(cfg.SeriesKeyword)

	for _, s := range all {
		if strings.Contains(strings.ToUpper(s.SeriesDescription), keyword) {
			return true
		}
	}
	return false
}

// Assemble builds the volume for kind from every slice in all whose series
// description contains the kind's keyword.
func (a Assembler) Assemble(kind Kind, all []Slice) (*Volume, *Metadata, error) {
	cfg, exists := a.Configs[kind]
	if !exists {
		return nil, nil, fmt.Errorf("no configuration for parameter %s", kind)
	}
	series := cfg.SeriesKeyword

	selected, warnings, err := a.Select(kind, all)
	if err != nil {
		return nil, nil, err
	}

	slices, orderWarnings := orderSlices(series, selected)
	warnings = append(warnings, orderWarnings...)

	first := slices[0]
	encoding := first.Encoding()
	for _, s := range slices {
		if err := s.validate(); err != nil {
			return nil, nil, ctperfusion.NewInputDataError(series, s.Source, "malformed pixel array: %v", err)
		}
		if s.Width != first.Width || s.Height != first.Height {
			return nil, nil, ctperfusion.NewInputDataError(series, s.Source, "slice is %dx%d but %s is %dx%d", s.Width, s.Height, first.Source, first.Width, first.Height)
		}
		if s.Encoding() != encoding {
			return nil, nil, ctperfusion.NewInputDataError(series, s.Source, "slice encoding %s differs from %s in %s", s.Encoding(), encoding, first.Source)
		}
	}

	spacing, spacingWarnings := a.spacing(series, slices)
	warnings = append(warnings, spacingWarnings...)

	shape := Shape{Width: first.Width, Height: first.Height, Depth: len(slices)}
	data, err := a.decodeAll(cfg, slices, shape)
	if err != nil {
		return nil, nil, err
	}

	vol := newOwned(kind, cfg.Unit, shape, spacing, data)
	meta := describe(cfg, vol, slices)
	meta.Warnings = warnings

	log.Printf("Assembled %s volume %s from series %q (%s, spacing %.3gx%.3gx%.3g mm, range %.3g-%.3g)\n",
		kind, shape, meta.SeriesDescription, encoding, spacing.X, spacing.Y, spacing.Z, meta.ValueRange[0], meta.ValueRange[1])

	return vol, meta, nil
}

// orderSlices sorts by scan-axis position. If positions are incomplete it
// falls back to instance numbers, and otherwise keeps the input order; both
// fallbacks are reported.
func orderSlices(series string, in []Slice) ([]Slice, []ctperfusion.Warning) {
	out := make([]Slice, len(in))
	copy(out, in)

	var warnings []ctperfusion.Warning

	missingPosition, missingInstance := 0, 0
	for _, s := range out {
		if !s.HasPosition {
			missingPosition++
		}
		if !s.HasInstanceNumber {
			missingInstance++
		}
	}

	switch {
	case missingPosition == 0:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })

		duplicates := 0
		for i := 1; i < len(out); i++ {
			if out[i].Position == out[i-1].Position {
				duplicates++
			}
		}
		if duplicates > 0 {
			warnings = append(warnings, ctperfusion.NewWarning(ctperfusion.WarnDuplicatePosition, series,
				"%d slices share a position with a neighbor; their input order was kept", duplicates))
		}

	case missingInstance == 0:
		sort.SliceStable(out, func(i, j int) bool { return out[i].InstanceNumber < out[j].InstanceNumber })
		warnings = append(warnings, ctperfusion.NewWarning(ctperfusion.WarnMissingPosition, series,
			"%d of %d slices have no position; ordered by instance number", missingPosition, len(out)))

	default:
		warnings = append(warnings, ctperfusion.NewWarning(ctperfusion.WarnMissingPosition, series,
			"%d of %d slices have no position and %d have no instance number; input order was kept", missingPosition, len(out), missingInstance))
	}

	return out, warnings
}

// spacing reads voxel spacing from the first slice, falling back to the
// assembler's defaults.
func (a Assembler) spacing(series string, slices []Slice) (Spacing, []ctperfusion.Warning) {
	var warnings []ctperfusion.Warning
	first := slices[0]

	// DICOM pixel spacing is (row spacing, column spacing), i.e. (Y, X).
	inPlane := first.PixelSpacing
	if !positivePair(inPlane) {
		inPlane = first.ImagerPixelSpacing
	}

	out := Spacing{}
	if positivePair(inPlane) {
		out.X, out.Y = inPlane[1], inPlane[0]
	} else {
		out.X, out.Y = a.DefaultSpacing.X, a.DefaultSpacing.Y
		warnings = append(warnings, ctperfusion.NewWarning(ctperfusion.WarnDefaultPixelSpacing, series,
			"no pixel spacing in %s; using the default %gx%g mm", first.Source, out.X, out.Y))
	}

	switch {
	case first.SliceThickness > 0:
		out.Z = first.SliceThickness
	case first.SpacingBetweenSlices > 0:
		out.Z = first.SpacingBetweenSlices
	default:
		out.Z = a.DefaultSpacing.Z
		warnings = append(warnings, ctperfusion.NewWarning(ctperfusion.WarnDefaultSliceThickness, series,
			"no slice thickness in %s; using the default %g mm", first.Source, out.Z))
	}

	for _, s := range slices[1:] {
		if positivePair(s.PixelSpacing) && positivePair(first.PixelSpacing) &&
			(math.Abs(s.PixelSpacing[0]-first.PixelSpacing[0]) > 1e-6 || math.Abs(s.PixelSpacing[1]-first.PixelSpacing[1]) > 1e-6) {
			warnings = append(warnings, ctperfusion.NewWarning(ctperfusion.WarnSpacingMismatch, series,
				"%s has pixel spacing %v but %s has %v; using the latter", s.Source, s.PixelSpacing, first.Source, first.PixelSpacing))
			break
		}
	}

	return out, warnings
}

func positivePair(p [2]float64) bool {
	return p[0] > 0 && p[1] > 0
}

// decodeAll decodes the already-sorted slices concurrently. Each worker
// writes only its own z plane.
func (a Assembler) decodeAll(cfg KindConfig, slices []Slice, shape Shape) ([]float64, error) {
	workers := a.Workers
	if workers < 1 {
		workers = 1
	}

	n := shape.SliceLen()
	data := make([]float64, shape.Len())
	errs := make([]error, len(slices))

	sem := make(chan bool, workers)
	var wg sync.WaitGroup
	for z, s := range slices {
		wg.Add(1)
		sem <- true
		go func(z int, s Slice) {
			defer func() {
				<-sem
				wg.Done()
			}()

			plane, err := s.decode(cfg)
			if err != nil {
				errs[z] = ctperfusion.NewInputDataError(cfg.SeriesKeyword, s.Source, "malformed pixel array: %v", err)
				return
			}
			copy(data[z*n:(z+1)*n], plane)
		}(z, s)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return data, nil
}

func describe(cfg KindConfig, vol *Volume, slices []Slice) *Metadata {
	first := slices[0]
	meta := &Metadata{
		Kind:              cfg.Kind,
		SeriesKeyword:     cfg.SeriesKeyword,
		SeriesDescription: first.SeriesDescription,
		SeriesNumber:      first.SeriesNumber,
		NumSlices:         len(slices),
		Shape:             vol.Shape().ZYX(),
		Encoding:          first.Encoding(),
		TargetMax:         cfg.TargetMax,
		Unit:              cfg.Unit,
		PixelSpacingMM:    vol.Spacing().Array(),
	}
	if meta.Encoding == EncodingRGB {
		meta.ColormapFamily = cfg.Family.String()
	}

	if first.HasPosition {
		lo, hi := first.Position, first.Position
		for _, s := range slices {
			if !s.HasPosition {
				continue
			}
			lo = math.Min(lo, s.Position)
			hi = math.Max(hi, s.Position)
		}
		meta.PositionRangeMM = []float64{lo, hi}
	}

	rs := runningvariance.NewRunningStat()
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range vol.data {
		rs.Push(v)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	meta.ValueRange = [2]float64{lo, hi}
	meta.Mean = finiteOrZero(rs.Mean())
	meta.Std = finiteOrZero(rs.StandardDeviation())

	return meta
}

// finiteOrZero maps NaN and infinities to 0.
func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
