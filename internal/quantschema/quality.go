package quantschema

import "sort"

// QualityFlag is a stable string code attached to a record or output
// describing a soft data-quality issue.
type QualityFlag string

const (
	FlagMissingValue          QualityFlag = "MISSING_VALUE"
	FlagDuplicateResolved     QualityFlag = "DUPLICATE_RESOLVED"
	FlagOutlierReturn         QualityFlag = "OUTLIER_RETURN"
	FlagSuspectCorpAction     QualityFlag = "SUSPECT_CORP_ACTION"
	FlagNonpositivePrice      QualityFlag = "NONPOSITIVE_PRICE"
	FlagNonmonotonicIndex     QualityFlag = "NONMONOTONIC_INDEX"
	FlagStale                 QualityFlag = "STALE"
	FlagProviderTimestampUsed QualityFlag = "PROVIDER_TIMESTAMP_USED"
	FlagAdjustedPricePresent  QualityFlag = "ADJUSTED_PRICE_PRESENT"
	FlagImputed               QualityFlag = "IMPUTED"
	FlagCalendarConflict      QualityFlag = "CALENDAR_CONFLICT"
)

// QualityFlagSet is a set of QualityFlag values with deterministic
// (sorted) iteration via Sorted(), used everywhere a canonical
// serialization of flags is required.
type QualityFlagSet map[QualityFlag]struct{}

// NewQualityFlagSet builds a set from a variadic list of flags.
func NewQualityFlagSet(flags ...QualityFlag) QualityFlagSet {
	s := make(QualityFlagSet, len(flags))
	for _, f := range flags {
		s[f] = struct{}{}
	}
	return s
}

// Add inserts a flag into the set.
func (s QualityFlagSet) Add(f QualityFlag) { s[f] = struct{}{} }

// Has reports whether the flag is present.
func (s QualityFlagSet) Has(f QualityFlag) bool {
	_, ok := s[f]
	return ok
}

// Sorted returns the flags in stable lexicographic order, the form used by
// every canonical serialization in this repo.
func (s QualityFlagSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for f := range s {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}
