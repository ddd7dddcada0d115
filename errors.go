package ctperfusion

import (
	"fmt"
	"log"
)

// InputDataError reports input that makes an analysis run impossible: a
// missing mandatory series, a series with no slices, slices whose shapes
// disagree, or pixel data that cannot be interpreted. It is always fatal for
// the run.
type InputDataError struct {
	// Series is the series keyword or kind that failed, if known.
	Series string

	// Source identifies the offending slice or file, if known.
	Source string

	Reason string
}

func (e *InputDataError) Error() string {
	switch {
	case e.Series != "" && e.Source != "":
		return fmt.Sprintf("input data error in series %s (%s): %s", e.Series, e.Source, e.Reason)
	case e.Series != "":
		return fmt.Sprintf("input data error in series %s: %s", e.Series, e.Reason)
	case e.Source != "":
		return fmt.Sprintf("input data error (%s): %s", e.Source, e.Reason)
	}

	return fmt.Sprintf("input data error: %s", e.Reason)
}

// NewInputDataError is a convenience constructor with a fmt-style reason.
func NewInputDataError(series, source, format string, args ...interface{}) *InputDataError {
	return &InputDataError{
		Series: series,
		Source: source,
		Reason: fmt.Sprintf(format, args...),
	}
}

type WarningCode string

const (
	WarnDefaultPixelSpacing   WarningCode = "default_pixel_spacing"
	WarnDefaultSliceThickness WarningCode = "default_slice_thickness"
	WarnSpacingMismatch       WarningCode = "spacing_mismatch"
	WarnMissingPosition       WarningCode = "missing_position"
	WarnDuplicatePosition     WarningCode = "duplicate_position"
	WarnMultipleSeries        WarningCode = "multiple_series"
	WarnCorePolicyFallback    WarningCode = "core_policy_fallback"
	WarnCorePolicyDegraded    WarningCode = "core_policy_degraded"
	WarnNonFiniteVoxels       WarningCode = "non_finite_voxels"
)

// Warning records a degradation in precision. Computation continues, but the
// consumer of the metrics should know that an ideal path was not taken.
type Warning struct {
	Code    WarningCode `json:"code"`
	Series  string      `json:"series,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Series != "" {
		return fmt.Sprintf("%s [%s]: %s", w.Code, w.Series, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}

// NewWarning builds a Warning and logs it.
func NewWarning(code WarningCode, series, format string, args ...interface{}) Warning {
	w := Warning{
		Code:    code,
		Series:  series,
		Message: fmt.Sprintf(format, args...),
	}
	log.Println("Warning:", w)

	return w
}

// NumericEdgeCase names a derived value that could not be computed, such as a
// ratio with a zero denominator. The value itself is reported as null.
type NumericEdgeCase struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}
