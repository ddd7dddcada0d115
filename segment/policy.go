package segment

import "fmt"

// Policy is the rule that defines the infarct core.
type Policy int

const (
	// PolicyCBF: hypoperfused tissue whose CBF, relative to the mirrored
	// contralateral region, is below Thresholds.RelativeCBF.
	PolicyCBF Policy = iota

	// PolicyCBV: severely delayed hypoperfused tissue with CBV below
	// Thresholds.CoreCBV.
	PolicyCBV

	// PolicyTmaxOnly: severely delayed hypoperfused tissue.
	PolicyTmaxOnly
)

func (p Policy) String() string {
	switch p {
	case PolicyCBF:
		return "cbf_relative"
	case PolicyCBV:
		return "cbv_tmax"
	case PolicyTmaxOnly:
		return "tmax_only"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

func (p Policy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Description is a human-readable summary of the rule.
func (p Policy) Description(t Thresholds) string {
	switch p {
	case PolicyCBF:
		return fmt.Sprintf("relative CBF < %g within Tmax >= %gs", t.RelativeCBF, t.HypoperfusionTmaxSec)
	case PolicyCBV:
		return fmt.Sprintf("Tmax >= %gs and CBV < %g ml/100g", t.SevereTmaxSec, t.CoreCBV)
	case PolicyTmaxOnly:
		return fmt.Sprintf("Tmax >= %gs", t.SevereTmaxSec)
	}
	return p.String()
}

// SelectPolicy picks the best-supported policy for the volumes available.
func SelectPolicy(hasCBF, hasCBV bool) Policy {
	switch {
	case hasCBF:
		return PolicyCBF
	case hasCBV:
		return PolicyCBV
	}
	return PolicyTmaxOnly
}

// fallback is the next policy to try when p cannot be computed.
func (p Policy) fallback(hasCBV bool) Policy {
	if p == PolicyCBF && hasCBV {
		return PolicyCBV
	}
	return PolicyTmaxOnly
}
