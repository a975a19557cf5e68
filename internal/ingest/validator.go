package ingest

import (
	"fmt"
	"sort"

	"github.com/quantlab/quantlab/internal/quantschema"
)

// ValidationPolicy controls how the Validator escalates soft findings.
// BarRecord.Validate already rejects malformed OHLC outright as a
// construction-time hard error; this policy covers the boundary cases left
// as an operator choice, namely calendar-conflict escalation.
type ValidationPolicy struct {
	// CalendarConflictIsHard escalates CALENDAR_CONFLICT from a soft flag
	// to a publish-blocking hard error. Default false: a calendar
	// conflict alone does not block a publish.
	CalendarConflictIsHard bool
}

// DefaultValidationPolicy leaves calendar conflicts as a soft flag.
func DefaultValidationPolicy() ValidationPolicy {
	return ValidationPolicy{CalendarConflictIsHard: false}
}

// RecordFinding pairs one record's instrument/date with its flags and, if
// any, its hard-rule violation.
type RecordFinding struct {
	InstrumentID quantschema.InstrumentId
	TradingDate  string
	Flags        []string
	HardError    error
}

// ValidationReport is the Validator's output: hard-error counts (which must
// be zero for the IngestionRunner to publish) and the per-record flag list
// that becomes part of lineage/quality metadata.
type ValidationReport struct {
	TotalRecords          int
	HardErrorCount        int
	HardCalendarConflicts int
	Findings              []RecordFinding
}

// Validator partitions BarRecord findings into hard errors (block
// publishing) and soft flags (publish with warnings).
type Validator struct {
	Policy ValidationPolicy
}

// NewValidator constructs a Validator with the given policy.
func NewValidator(policy ValidationPolicy) *Validator {
	return &Validator{Policy: policy}
}

// ValidateBars runs every hard/soft rule over recs and returns the report.
// Hard-rule violations already enforced at construction time
// (quantschema.BarRecord.Validate) are re-checked here since records may
// have been built directly by a Normalizer bypassing a constructor.
func (v *Validator) ValidateBars(recs []quantschema.BarRecord) ValidationReport {
	report := ValidationReport{TotalRecords: len(recs)}

	for _, r := range recs {
		finding := RecordFinding{
			InstrumentID: r.InstrumentID,
			TradingDate:  r.TradingDateLocal,
			Flags:        r.QualityFlags.Sorted(),
		}

		if err := r.Validate(); err != nil {
			finding.HardError = err
			report.HardErrorCount++
		}

		if r.QualityFlags.Has(quantschema.FlagCalendarConflict) {
			if v.Policy.CalendarConflictIsHard {
				report.HardCalendarConflicts++
				if finding.HardError == nil {
					finding.HardError = fmt.Errorf("ingest: calendar conflict treated as hard error for %q on %q", r.InstrumentID, r.TradingDateLocal)
					report.HardErrorCount++
				}
			}
		}

		report.Findings = append(report.Findings, finding)
	}

	sort.Slice(report.Findings, func(i, j int) bool {
		if report.Findings[i].InstrumentID != report.Findings[j].InstrumentID {
			return report.Findings[i].InstrumentID < report.Findings[j].InstrumentID
		}
		return report.Findings[i].TradingDate < report.Findings[j].TradingDate
	})
	return report
}

// ValidatePoints runs the hard/soft rules over point records (FX fixings
// and other scalar observations), mirroring ValidateBars.
func (v *Validator) ValidatePoints(recs []quantschema.PointRecord) ValidationReport {
	report := ValidationReport{TotalRecords: len(recs)}

	for _, r := range recs {
		finding := RecordFinding{
			InstrumentID: r.InstrumentID,
			TradingDate:  r.TradingDateLocal,
			Flags:        r.QualityFlags.Sorted(),
		}
		if err := r.Validate(); err != nil {
			finding.HardError = err
			report.HardErrorCount++
		}
		if r.QualityFlags.Has(quantschema.FlagCalendarConflict) && v.Policy.CalendarConflictIsHard {
			report.HardCalendarConflicts++
			if finding.HardError == nil {
				finding.HardError = fmt.Errorf("ingest: calendar conflict treated as hard error for %q on %q", r.InstrumentID, r.TradingDateLocal)
				report.HardErrorCount++
			}
		}
		report.Findings = append(report.Findings, finding)
	}

	sort.Slice(report.Findings, func(i, j int) bool {
		if report.Findings[i].InstrumentID != report.Findings[j].InstrumentID {
			return report.Findings[i].InstrumentID < report.Findings[j].InstrumentID
		}
		return report.Findings[i].TradingDate < report.Findings[j].TradingDate
	})
	return report
}

// CanPublish reports whether a report contains zero hard errors.
func (r ValidationReport) CanPublish() bool { return r.HardErrorCount == 0 }
