package calendar

import (
	"fmt"
	"time"

	"github.com/quantlab/quantlab/internal/quantschema"
)

// DerivedTs is the result of applying the ts_provenance derivation
// hierarchy to a single canonical EOD observation.
type DerivedTs struct {
	Ts           time.Time
	Provenance   quantschema.TsProvenance
	QualityFlags []quantschema.QualityFlag
}

// DeriveEODTimestamp derives the canonical UTC ts for an EOD record on
// tradingDateLocal at the given venue, following the fixed hierarchy:
//
//  1. SessionRules close for the MIC on tradingDateLocal -> UTC, EXCHANGE_CLOSE.
//  2. Baseline venue calendar close -> UTC, EXCHANGE_CLOSE.
//  3. Provider timestamp, preserved as UTC, PROVIDER_EOD + PROVIDER_TIMESTAMP_USED.
//
// providerTs may be nil; if every other source is unavailable and
// providerTs is nil, DeriveEODTimestamp returns an error since no record
// may be published without a ts.
func DeriveEODTimestamp(rules *SessionRules, venue *VenueCalendar, mic MIC, tradingDateLocal string, providerTs *time.Time) (DerivedTs, error) {
	if venue == nil {
		// Without a venue there is no local timezone to anchor a close
		// time to, so only the provider timestamp tier applies.
		if providerTs != nil {
			return DerivedTs{
				Ts:           providerTs.UTC(),
				Provenance:   quantschema.TsProviderEOD,
				QualityFlags: []quantschema.QualityFlag{quantschema.FlagProviderTimestampUsed},
			}, nil
		}
		return DerivedTs{}, fmt.Errorf("calendar: cannot derive ts for mic=%s date=%s: no venue calendar, no provider timestamp", mic, tradingDateLocal)
	}
	loc, err := venue.location()
	if err != nil {
		return DerivedTs{}, err
	}
	date, err := time.ParseInLocation("2006-01-02", tradingDateLocal, loc)
	if err != nil {
		return DerivedTs{}, fmt.Errorf("calendar: parse trading_date_local: %w", err)
	}

	if rules != nil {
		if off, ok := rules.CloseFor(mic, tradingDateLocal); ok {
			return DerivedTs{
				Ts:         date.Add(off).UTC(),
				Provenance: quantschema.TsExchangeClose,
			}, nil
		}
	}

	if venue != nil && venue.IsTradingDay(tradingDateLocal) {
		return DerivedTs{
			Ts:         date.Add(venue.CloseOffset(tradingDateLocal)).UTC(),
			Provenance: quantschema.TsExchangeClose,
		}, nil
	}

	if providerTs != nil {
		return DerivedTs{
			Ts:           providerTs.UTC(),
			Provenance:   quantschema.TsProviderEOD,
			QualityFlags: []quantschema.QualityFlag{quantschema.FlagProviderTimestampUsed},
		}, nil
	}

	return DerivedTs{}, fmt.Errorf("calendar: cannot derive ts for mic=%s date=%s: no session rule, no baseline close, no provider timestamp", mic, tradingDateLocal)
}

// DetectCalendarConflict reports whether a provider bar's presence on
// tradingDateLocal conflicts with the venue calendar: a bar delivered on a
// day the calendar says is closed, or no bar on a day the calendar says is
// open. A conflict never drops the record silently; the
// caller attaches CALENDAR_CONFLICT and, depending on ValidationPolicy,
// may additionally treat it as a hard error.
func DetectCalendarConflict(venue *VenueCalendar, tradingDateLocal string, providerDeliveredBar bool) bool {
	isOpen := venue.IsTradingDay(tradingDateLocal)
	return providerDeliveredBar != isOpen
}
