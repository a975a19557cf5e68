package access

// MissingDataPolicy controls how a reindexed asset's gaps against the
// target calendar index are handled.
type MissingDataPolicy string

const (
	// MissingDataNanOK leaves gaps in place and counts them in the
	// quality summary.
	MissingDataNanOK MissingDataPolicy = "NAN_OK"
	// MissingDataDropDates drops any date where a required field is
	// missing for any requested asset.
	MissingDataDropDates MissingDataPolicy = "DROP_DATES"
	// MissingDataError raises on the first missing value.
	MissingDataError MissingDataPolicy = "ERROR"
)

// DedupDiscipline controls how same-date duplicate observations are
// resolved before alignment.
type DedupDiscipline string

const (
	DedupLast  DedupDiscipline = "LAST"
	DedupFirst DedupDiscipline = "FIRST"
	DedupError DedupDiscipline = "ERROR"
)

// ValidationPolicy configures the access service's dedup discipline and
// guardrail thresholds. No value is ever corrected by this package — a
// policy can only flag or reject.
type ValidationPolicy struct {
	DedupDiscipline         DedupDiscipline
	CorpActionJumpThreshold float64 // default 0.40
	MaxAbsReturn            float64 // 0 means unset/unbounded
}

// DefaultValidationPolicy matches the documented defaults: last-wins
// dedup, a 40% single-day return flags SUSPECT_CORP_ACTION, no additional
// outlier bound.
func DefaultValidationPolicy() ValidationPolicy {
	return ValidationPolicy{
		DedupDiscipline:         DedupLast,
		CorpActionJumpThreshold: 0.40,
	}
}

func (p ValidationPolicy) canonicalMap() map[string]interface{} {
	return map[string]interface{}{
		"dedup_discipline":           string(p.DedupDiscipline),
		"corp_action_jump_threshold": p.CorpActionJumpThreshold,
		"max_abs_return":             p.MaxAbsReturn,
	}
}
