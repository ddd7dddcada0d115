// Package report assembles the perfusion metrics document written alongside
// the mask exports.
package report

import (
	"time"

	"github.com/carbocation/ctperfusion"
	"github.com/carbocation/ctperfusion/compileinfo"
	"github.com/carbocation/ctperfusion/dicomio"
	"github.com/carbocation/ctperfusion/indices"
	"github.com/carbocation/ctperfusion/segment"
	"github.com/carbocation/ctperfusion/volume"
	"gopkg.in/guregu/null.v3"
)

// ThresholdsRecord lists every numeric cutoff applied to produce a metrics
// record.
type ThresholdsRecord struct {
	segment.Thresholds

	CorrectedCBVIndexCutoff      float64    `json:"corrected_cbv_index_cutoff"`
	CorticalBandPercentiles      [2]float64 `json:"cortical_band_percentiles"`
	ConventionalLesionPercentile float64    `json:"conventional_lesion_percentile"`
}

// PerfusionMetrics is the clinical summary of one analysis. Null fields could
// not be computed; Undefined says why.
type PerfusionMetrics struct {
	HypoperfusionVolumeML float64 `json:"hypoperfusion_volume_ml"`
	InfarctCoreVolumeML   float64 `json:"infarct_core_volume_ml"`
	PenumbraVolumeML      float64 `json:"penumbra_volume_ml"`
	BrainVolumeML         float64 `json:"brain_volume_ml"`

	MismatchRatio    null.Float `json:"mismatch_ratio"`
	MismatchVolumeML float64    `json:"mismatch_volume_ml"`
	HIR              null.Float `json:"hir"`
	PRR              null.Float `json:"prr"`

	// PVTML is the absolute volume of tissue over the hypoperfusion cutoff.
	PVTML float64 `json:"pvt_ml"`

	CorrectedCBVIndex      null.Float  `json:"corrected_cbv_index"`
	ConventionalCBVIndex   null.Float  `json:"conventional_cbv_index"`
	ContralateralCBV       null.Float  `json:"contralateral_cbv"`
	ContralateralCBVSource null.String `json:"contralateral_cbv_source"`
	CollateralGrade        null.String `json:"collateral_grade"`
	CollateralGradeDetail  null.String `json:"collateral_grade_detail"`

	CorePolicy          segment.Policy `json:"core_policy"`
	RequestedCorePolicy segment.Policy `json:"requested_core_policy"`
	CoreDefinition      string         `json:"core_definition"`
	ContralateralCBF    null.Float     `json:"contralateral_cbf"`

	Thresholds     ThresholdsRecord `json:"thresholds"`
	PixelSpacingMM [3]float64       `json:"pixel_spacing_mm"`
	VoxelVolumeML  float64          `json:"voxel_volume_ml"`

	SliceStatistics []indices.SliceStat    `json:"slice_statistics"`
	VenousTransit   *indices.VenousTransit `json:"venous_transit,omitempty"`

	Warnings  []ctperfusion.Warning         `json:"warnings"`
	Undefined []ctperfusion.NumericEdgeCase `json:"undefined"`
}

// NewPerfusionMetrics combines a segmentation and its indices. Warnings from
// volume assembly are passed in so that the record carries all of them.
func NewPerfusionMetrics(seg *segment.Result, ix *indices.Indices, opts indices.Options, assemblyWarnings []ctperfusion.Warning) PerfusionMetrics {
	out := PerfusionMetrics{
		HypoperfusionVolumeML: seg.HypoperfusionVolumeML(),
		InfarctCoreVolumeML:   seg.CoreVolumeML(),
		PenumbraVolumeML:      seg.PenumbraVolumeML(),
		BrainVolumeML:         seg.BrainVolumeML(),

		MismatchRatio:    ix.MismatchRatio,
		MismatchVolumeML: ix.MismatchVolumeML,
		HIR:              ix.HIR,
		PRR:              ix.PRR,
		PVTML:            seg.HypoperfusionVolumeML(),

		CorrectedCBVIndex:      ix.CorrectedCBVIndex,
		ConventionalCBVIndex:   ix.ConventionalCBVIndex,
		ContralateralCBV:       ix.ContralateralCBV,
		ContralateralCBVSource: ix.ContralateralCBVSource,
		CollateralGrade:        ix.CollateralGrade,
		CollateralGradeDetail:  ix.CollateralGradeDetail,

		CorePolicy:          seg.Policy,
		RequestedCorePolicy: seg.RequestedPolicy,
		CoreDefinition:      seg.Policy.Description(seg.Thresholds),
		ContralateralCBF:    null.NewFloat(seg.ContralateralCBF, seg.HasContralateralCBF),

		Thresholds: ThresholdsRecord{
			Thresholds:                   seg.Thresholds,
			CorrectedCBVIndexCutoff:      opts.CollateralCutoff,
			CorticalBandPercentiles:      [2]float64{opts.CorticalBandLow, opts.CorticalBandHigh},
			ConventionalLesionPercentile: opts.ConventionalPercentile,
		},
		PixelSpacingMM: seg.Spacing.Array(),
		VoxelVolumeML:  seg.VoxelVolumeML(),

		SliceStatistics: ix.SliceStatistics,
		VenousTransit:   ix.VenousTransit,

		Warnings:  make([]ctperfusion.Warning, 0, len(assemblyWarnings)+len(seg.Warnings)),
		Undefined: ix.Undefined,
	}

	out.Warnings = append(out.Warnings, assemblyWarnings...)
	out.Warnings = append(out.Warnings, seg.Warnings...)

	return out
}

// Document is the top level of perfusion_metrics.json.
type Document struct {
	PatientInfo *dicomio.PatientInfo        `json:"patient_info,omitempty"`
	Series      map[string]*volume.Metadata `json:"series"`
	Missing     []string                    `json:"missing_series"`
	Metrics     PerfusionMetrics            `json:"metrics"`
	Software    compileinfo.CompileInfo     `json:"software"`
	CreatedAt   time.Time                   `json:"created_at"`
}

// NewDocument wraps metrics with provenance. series is keyed by parameter.
func NewDocument(patient *dicomio.PatientInfo, series map[volume.Kind]*volume.Metadata, missing []volume.Kind, metrics PerfusionMetrics) Document {
	out := Document{
		PatientInfo: patient,
		Series:      make(map[string]*volume.Metadata, len(series)),
		Missing:     make([]string, 0, len(missing)),
		Metrics:     metrics,
		Software:    compileinfo.Get(),
		CreatedAt:   time.Now().UTC(),
	}

	for k, m := range series {
		out.Series[k.String()] = m
	}
	for _, k := range missing {
		out.Missing = append(out.Missing, k.String())
	}

	return out
}
