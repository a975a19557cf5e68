package access

import "github.com/quantlab/quantlab/internal/quantschema"

// Guardrails flags suspicious single-day moves on a raw close series
// without ever correcting a value — corporate-action *correction* is an
// explicit non-goal; only flagging is in scope.
//
// r_t = P_t/P_{t-1} - 1. |r_t| >= corpActionJumpThreshold flags
// SUSPECT_CORP_ACTION (default threshold 0.40). If maxAbsReturn is set
// (>0) and exceeded, OUTLIER_RETURN is also flagged. Index i of the
// returned slice corresponds to dates[i]; index 0 is never flagged (no
// prior observation to compare against).
func Guardrails(dates []string, closes []*float64, policy ValidationPolicy) []quantschema.QualityFlagSet {
	flags := make([]quantschema.QualityFlagSet, len(dates))
	for i := range flags {
		flags[i] = quantschema.NewQualityFlagSet()
	}
	threshold := policy.CorpActionJumpThreshold
	if threshold <= 0 {
		threshold = 0.40
	}
	for i := 1; i < len(closes); i++ {
		prev, cur := closes[i-1], closes[i]
		if prev == nil || cur == nil || *prev == 0 {
			continue
		}
		r := *cur/ *prev - 1
		absR := r
		if absR < 0 {
			absR = -absR
		}
		if absR >= threshold {
			flags[i].Add(quantschema.FlagSuspectCorpAction)
		}
		if policy.MaxAbsReturn > 0 && absR > policy.MaxAbsReturn {
			flags[i].Add(quantschema.FlagOutlierReturn)
		}
	}
	return flags
}
