package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/quantlab/quantlab/internal/calendar"
	"github.com/quantlab/quantlab/internal/quantschema"
)

// UniverseEntry maps one instrument_id to its venue, vendor symbol,
// currency, and local timezone — the seed-universe row every ingestion and
// access request is resolved through.
type UniverseEntry struct {
	InstrumentID  string `yaml:"instrument_id"`
	MIC           string `yaml:"mic"`
	VendorSymbol  string `yaml:"vendor_symbol"`
	Currency      string `yaml:"currency"`
	TimezoneLocal string `yaml:"timezone_local"`
}

// SeedUniverse is the YAML-configured set of instruments a dataset's
// ingestion and access requests are scoped to, plus the calendar/session
// identity every dataset_registry entry records alongside it.
type SeedUniverse struct {
	Name                string          `yaml:"name"`
	Instruments         []UniverseEntry `yaml:"instruments"`
	CalendarVersion     string          `yaml:"calendar_version"`
	SessionRulesVersion string          `yaml:"sessionrules_version"`
}

// Validate checks every entry for a well-formed instrument id and
// currency.
func (u SeedUniverse) Validate() error {
	if len(u.Instruments) == 0 {
		return fmt.Errorf("config: universe %s has no instruments", u.Name)
	}
	seen := make(map[string]struct{}, len(u.Instruments))
	for _, e := range u.Instruments {
		if _, err := quantschema.NewInstrumentId(e.InstrumentID); err != nil {
			return fmt.Errorf("config: universe %s: %w", u.Name, err)
		}
		if _, dup := seen[e.InstrumentID]; dup {
			return fmt.Errorf("config: universe %s: duplicate instrument_id %q", u.Name, e.InstrumentID)
		}
		seen[e.InstrumentID] = struct{}{}
		if e.MIC == "" {
			return fmt.Errorf("config: universe %s: instrument %q has no mic", u.Name, e.InstrumentID)
		}
		if e.Currency != "" {
			if _, err := quantschema.NewCurrency(e.Currency); err != nil {
				return fmt.Errorf("config: universe %s: instrument %q: %w", u.Name, e.InstrumentID, err)
			}
		}
	}
	return nil
}

// UniverseHash returns a deterministic identity for this universe,
// suitable for the registry's universe_hash column. It is invariant under
// entry insertion order.
func (u SeedUniverse) UniverseHash() (string, error) {
	return hashUniverseEntries(u.Instruments)
}

// InstrumentIDs parses the configured entries into typed
// quantschema.InstrumentId values, failing on the first malformed entry.
func (u SeedUniverse) InstrumentIDs() ([]quantschema.InstrumentId, error) {
	ids := make([]quantschema.InstrumentId, 0, len(u.Instruments))
	for _, e := range u.Instruments {
		id, err := quantschema.NewInstrumentId(e.InstrumentID)
		if err != nil {
			return nil, fmt.Errorf("config: universe %s: %w", u.Name, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// InstrumentMIC builds the instrument -> MIC lookup the Normalizer's
// MappingContext needs.
func (u SeedUniverse) InstrumentMIC() map[quantschema.InstrumentId]calendar.MIC {
	out := make(map[quantschema.InstrumentId]calendar.MIC, len(u.Instruments))
	for _, e := range u.Instruments {
		out[quantschema.InstrumentId(e.InstrumentID)] = calendar.MIC(e.MIC)
	}
	return out
}

// InstrumentCurrency builds the instrument -> currency lookup attached to
// canonical records.
func (u SeedUniverse) InstrumentCurrency() map[quantschema.InstrumentId]quantschema.Currency {
	out := make(map[quantschema.InstrumentId]quantschema.Currency, len(u.Instruments))
	for _, e := range u.Instruments {
		if e.Currency == "" {
			continue
		}
		out[quantschema.InstrumentId(e.InstrumentID)] = quantschema.Currency(e.Currency)
	}
	return out
}

// VendorSymbols builds the asset -> provider-symbol table backing an
// access.StaticSymbolMapper. The MVP keys market-data ids by
// instrument_id for universe-scoped assets.
func (u SeedUniverse) VendorSymbols() map[quantschema.MarketDataId]string {
	out := make(map[quantschema.MarketDataId]string, len(u.Instruments))
	for _, e := range u.Instruments {
		sym := e.VendorSymbol
		if sym == "" {
			sym = e.InstrumentID
		}
		out[quantschema.MarketDataId(e.InstrumentID)] = sym
	}
	return out
}

// CalendarSpec is the YAML-friendly representation of a venue calendar;
// calendar.VenueCalendar itself carries no yaml tags since it is a pure
// domain type also built directly in code and in tests. ToVenueCalendar
// converts between the two.
type CalendarSpec struct {
	MIC               string   `yaml:"mic"`
	Timezone          string   `yaml:"timezone"`
	Version           string   `yaml:"version"`
	TradingDays       []string `yaml:"trading_days"`
	RegularCloseHours float64  `yaml:"regular_close_hours"`
}

// ToVenueCalendar builds a calendar.VenueCalendar from the YAML spec.
func (s CalendarSpec) ToVenueCalendar() calendar.VenueCalendar {
	days := make(map[string]struct{}, len(s.TradingDays))
	for _, d := range s.TradingDays {
		days[d] = struct{}{}
	}
	return calendar.VenueCalendar{
		MIC:          calendar.MIC(s.MIC),
		Timezone:     s.Timezone,
		Version:      s.Version,
		TradingDays:  days,
		EarlyCloses:  map[string]time.Duration{},
		RegularClose: time.Duration(s.RegularCloseHours * float64(time.Hour)),
	}
}

// AppConfig is the top-level application configuration: the seed
// universes available to ingestion/access requests and the venue
// calendars they're validated against.
type AppConfig struct {
	Universes map[string]SeedUniverse `yaml:"universes"`
	Calendars map[string]CalendarSpec `yaml:"calendars"`
}

// LoadAppConfig reads and validates an application config YAML file.
func LoadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read app config: %w", err)
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse app config: %w", err)
	}
	names := make([]string, 0, len(cfg.Universes))
	for name := range cfg.Universes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := cfg.Universes[name].Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// Universe looks up a configured seed universe by name.
func (c *AppConfig) Universe(name string) (SeedUniverse, bool) {
	u, ok := c.Universes[name]
	return u, ok
}

// Calendar looks up a configured venue calendar by MIC.
func (c *AppConfig) Calendar(mic string) (calendar.VenueCalendar, bool) {
	spec, ok := c.Calendars[mic]
	if !ok {
		return calendar.VenueCalendar{}, false
	}
	return spec.ToVenueCalendar(), true
}

// VenueCalendars converts every configured calendar, keyed by MIC, the
// shape ingest.MappingContext consumes.
func (c *AppConfig) VenueCalendars() map[calendar.MIC]*calendar.VenueCalendar {
	out := make(map[calendar.MIC]*calendar.VenueCalendar, len(c.Calendars))
	for mic, spec := range c.Calendars {
		v := spec.ToVenueCalendar()
		out[calendar.MIC(mic)] = &v
	}
	return out
}
