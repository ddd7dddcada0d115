package segment

// Clinical cutoffs from the stroke imaging literature. Each may be overridden
// through Thresholds.
const (
	DefaultBrainTmaxSec         = 0.1
	DefaultBrainCBV             = 0.5
	DefaultBrainCBF             = 0.5
	DefaultHypoperfusionTmaxSec = 6.0
	DefaultSevereTmaxSec        = 10.0
	DefaultRelativeCBF          = 0.38
	DefaultCoreCBV              = 2.0
)

// Thresholds is the full set of cutoffs used by one segmentation. It is
// reported with the results so that any run can be reproduced.
type Thresholds struct {
	// Tissue is any voxel above one of these.
	BrainTmaxSec float64 `json:"brain_tmax_sec" yaml:"brain_tmax_sec"`
	BrainCBV     float64 `json:"brain_cbv" yaml:"brain_cbv"`
	BrainCBF     float64 `json:"brain_cbf" yaml:"brain_cbf"`

	HypoperfusionTmaxSec float64 `json:"tmax_hypoperfusion_sec" yaml:"tmax_hypoperfusion_sec"`

	// SevereTmaxSec defines severely delayed tissue, used by the CBV and
	// Tmax-only core definitions and by HIR.
	SevereTmaxSec float64 `json:"tmax_core_sec" yaml:"tmax_core_sec"`

	// RelativeCBF is the fraction of contralateral CBF below which
	// hypoperfused tissue is core.
	RelativeCBF float64 `json:"relative_cbf_core" yaml:"relative_cbf_core"`

	CoreCBV float64 `json:"cbv_core_ml_per_100g" yaml:"cbv_core_ml_per_100g"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		BrainTmaxSec:         DefaultBrainTmaxSec,
		BrainCBV:             DefaultBrainCBV,
		BrainCBF:             DefaultBrainCBF,
		HypoperfusionTmaxSec: DefaultHypoperfusionTmaxSec,
		SevereTmaxSec:        DefaultSevereTmaxSec,
		RelativeCBF:          DefaultRelativeCBF,
		CoreCBV:              DefaultCoreCBV,
	}
}
