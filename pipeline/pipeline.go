// Package pipeline runs one complete analysis: volume assembly, lesion
// segmentation, index calculation and the metrics report.
package pipeline

import (
	"log"
	"time"

	"github.com/carbocation/ctperfusion"
	"github.com/carbocation/ctperfusion/config"
	"github.com/carbocation/ctperfusion/dicomio"
	"github.com/carbocation/ctperfusion/indices"
	"github.com/carbocation/ctperfusion/overlay"
	"github.com/carbocation/ctperfusion/report"
	"github.com/carbocation/ctperfusion/segment"
	"github.com/carbocation/ctperfusion/volume"
)

// Pipeline holds the settings of an analysis. It keeps no state between runs.
type Pipeline struct {
	Assembler volume.Assembler
	Engine    segment.Engine
	Options   indices.Options
	Labels    overlay.LabelMap
}

func New(cfg config.Config) (Pipeline, error) {
	a, err := cfg.Assembler()
	if err != nil {
		return Pipeline{}, err
	}

	return Pipeline{
		Assembler: a,
		Engine:    cfg.Engine(),
		Options:   cfg.Indices,
		Labels:    cfg.Labels,
	}, nil
}

// Output is everything one run produces.
type Output struct {
	Volumes  map[volume.Kind]*volume.Volume
	Series   map[volume.Kind]*volume.Metadata
	Missing  []volume.Kind
	Warnings []ctperfusion.Warning

	Segmentation *segment.Result
	Indices      *indices.Indices
	Document     report.Document

	// Labels is the per-voxel lesion class, indexed like the volumes.
	Labels []uint8
}

// Run assembles every parameter present in slices and analyzes them. Tmax is
// mandatory; the other parameters are optional and are listed in Missing when
// absent.
func (p Pipeline) Run(slices []volume.Slice, patient *dicomio.PatientInfo) (*Output, error) {
	started := time.Now()

	out := &Output{
		Volumes: make(map[volume.Kind]*volume.Volume),
		Series:  make(map[volume.Kind]*volume.Metadata),
	}

	for _, kind := range volume.Kinds {
		if kind != volume.KindTmax && !p.Assembler.Matches(kind, slices) {
			log.Printf("No %s series found; continuing without it\n", kind)
			out.Missing = append(out.Missing, kind)
			continue
		}

		vol, meta, err := p.Assembler.Assemble(kind, slices)
		if err != nil {
			return nil, err
		}

		out.Volumes[kind] = vol
		out.Series[kind] = meta
		out.Warnings = append(out.Warnings, meta.Warnings...)
	}

	log.Printf("Assembled %d volumes in %s\n", len(out.Volumes), time.Since(started))

	if err := p.analyze(out, patient); err != nil {
		return nil, err
	}

	return out, nil
}

// Analyze works from volumes that were assembled elsewhere, such as NIfTI
// maps. The volumes map must contain Tmax.
func (p Pipeline) Analyze(volumes map[volume.Kind]*volume.Volume, warnings []ctperfusion.Warning) (*Output, error) {
	out := &Output{
		Volumes:  volumes,
		Series:   make(map[volume.Kind]*volume.Metadata),
		Warnings: warnings,
	}
	for _, kind := range volume.Kinds {
		if volumes[kind] == nil {
			out.Missing = append(out.Missing, kind)
		}
	}

	if err := p.analyze(out, nil); err != nil {
		return nil, err
	}

	return out, nil
}

func (p Pipeline) analyze(out *Output, patient *dicomio.PatientInfo) error {
	tmax := out.Volumes[volume.KindTmax]
	cbv := out.Volumes[volume.KindCBV]

	seg, err := p.Engine.Segment(segment.Input{
		Tmax: tmax,
		CBV:  cbv,
		CBF:  out.Volumes[volume.KindCBF],
	})
	if err != nil {
		return err
	}
	out.Segmentation = seg

	ix, err := indices.Calculate(seg, tmax, cbv, p.Options)
	if err != nil {
		return err
	}
	out.Indices = ix

	out.Labels = overlay.Labels(seg.Core, seg.Penumbra)

	metrics := report.NewPerfusionMetrics(seg, ix, p.Options, out.Warnings)
	out.Document = report.NewDocument(patient, out.Series, out.Missing, metrics)

	return nil
}
