package stress

import (
	"fmt"

	"github.com/quantlab/quantlab/internal/instruments"
	"github.com/quantlab/quantlab/internal/quantschema"
)

// MissingShockPolicy controls how an asset present in the portfolio and
// market state, but absent from a scenario's shock vector, is handled.
type MissingShockPolicy string

const (
	MissingShockZeroWithWarning MissingShockPolicy = "ZERO_WITH_WARNING"
	MissingShockError           MissingShockPolicy = "ERROR"
)

// MarketState is the as-of price for every asset the portfolio needs,
// keyed by market_data_id.
type MarketState map[quantschema.MarketDataId]float64

// ApplyShock computes the shocked price for a given base price and shock
// value under convention. It does not check the sign of the result;
// RevaluePosition rejects a non-positive shocked price with
// ShockedPriceNonPositiveError.
func ApplyShock(price, shock float64, convention ShockConvention) (float64, error) {
	var shocked float64
	switch convention {
	case ConventionMultReturn:
		shocked = price * (1 + shock)
	case ConventionMultFactor:
		shocked = price * shock
	default:
		return 0, fmt.Errorf("stress: unknown shock convention %q", convention)
	}
	return shocked, nil
}

// PositionPnL is one position's result under one scenario.
type PositionPnL struct {
	InstrumentID quantschema.InstrumentId
	MarketDataID quantschema.MarketDataId
	Currency     quantschema.Currency
	BasePrice    float64
	ShockedPrice float64
	PnL          float64
	Warning      string
}

// RevaluePosition applies a scenario's shock to inst/pos and computes
// linear P&L (equity/index: q*(P'-P); future: q*multiplier*(P'-P); cash:
// always 0 in its own currency).
func RevaluePosition(inst instruments.Instrument, pos instruments.Position, state MarketState, scenario Scenario, policy MissingShockPolicy) (PositionPnL, error) {
	if inst.InstrumentType == instruments.TypeCash {
		ccy := quantschema.Currency("")
		if inst.Currency != nil {
			ccy = *inst.Currency
		}
		return PositionPnL{InstrumentID: inst.InstrumentID, Currency: ccy, PnL: 0}, nil
	}

	if inst.MarketDataID == nil {
		return PositionPnL{}, &StressInputError{MarketDataID: string(inst.InstrumentID)}
	}
	mdid := *inst.MarketDataID

	price, ok := state[mdid]
	if !ok {
		return PositionPnL{}, &StressInputError{MarketDataID: string(mdid)}
	}

	shock, hasShock := scenario.ShockVector[mdid]
	var warning string
	if !hasShock {
		switch policy {
		case MissingShockError:
			return PositionPnL{}, fmt.Errorf("stress: scenario %q has no shock for %q", scenario.ScenarioID, mdid)
		default:
			shock = 0
			warning = fmt.Sprintf("no shock for %q in scenario %q; treated as zero", mdid, scenario.ScenarioID)
		}
	}

	shocked, err := ApplyShock(price, shock, scenario.Convention)
	if err != nil {
		return PositionPnL{}, err
	}
	if shocked <= 0 {
		return PositionPnL{}, &ShockedPriceNonPositiveError{MarketDataID: string(mdid), Shocked: shocked}
	}

	var pnl float64
	switch spec := inst.Spec.(type) {
	case instruments.FutureSpec:
		pnl = pos.Quantity * spec.Multiplier * (shocked - price)
	default:
		pnl = pos.Quantity * (shocked - price)
	}

	ccy := quantschema.Currency("")
	if inst.Currency != nil {
		ccy = *inst.Currency
	}
	return PositionPnL{
		InstrumentID: inst.InstrumentID,
		MarketDataID: mdid,
		Currency:     ccy,
		BasePrice:    price,
		ShockedPrice: shocked,
		PnL:          pnl,
		Warning:      warning,
	}, nil
}
