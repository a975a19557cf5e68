package access

import "fmt"

// DuplicateDateError reports a same-date duplicate observation under
// DedupError discipline.
type DuplicateDateError struct {
	Asset string
	Date  string
}

func (e *DuplicateDateError) Error() string {
	return fmt.Sprintf("access: duplicate observation for asset %q on %s (dedup discipline ERROR)", e.Asset, e.Date)
}

// MissingValueError reports a gap under the ERROR missing-data policy.
type MissingValueError struct {
	Asset string
	Date  string
}

func (e *MissingValueError) Error() string {
	return fmt.Sprintf("access: missing value for asset %q on %s (missing_data_policy ERROR)", e.Asset, e.Date)
}

// NonpositivePriceError reports a non-positive raw close under a hard
// validation policy.
type NonpositivePriceError struct {
	Asset string
	Date  string
	Value float64
}

func (e *NonpositivePriceError) Error() string {
	return fmt.Sprintf("access: non-positive price for asset %q on %s: %v", e.Asset, e.Date, e.Value)
}
