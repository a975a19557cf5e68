package risk

import (
	"fmt"
	"math"
)

// PriceSeries is a date-aligned series of observed (possibly missing)
// prices. A nil entry in Values marks a gap.
type PriceSeries struct {
	Dates  []string
	Values []*float64
}

// ReturnSeries is a date-aligned series of built returns. Dates[i] is the
// date the return *ends* on (the t in r_t).
type ReturnSeries struct {
	Dates    []string
	Values   []float64
	Warnings []string
}

// BuildReturns constructs a return series from a price series per
// definition and policy, rejecting NaN/Inf outputs.
func BuildReturns(prices PriceSeries, definition ReturnDefinition, policy MissingDataPolicy) (ReturnSeries, error) {
	if len(prices.Dates) != len(prices.Values) {
		return ReturnSeries{}, fmt.Errorf("risk: price series dates/values length mismatch")
	}

	filled := make([]*float64, len(prices.Values))
	copy(filled, prices.Values)
	var warnings []string

	if policy == MissingFFill {
		var last *float64
		anyFilled := false
		for i, v := range filled {
			if v == nil {
				if last != nil {
					filled[i] = last
					anyFilled = true
				}
			} else {
				last = v
			}
		}
		if anyFilled {
			warnings = append(warnings, "missing prices forward-filled")
		}
	}

	out := ReturnSeries{}
	partialDropped := 0
	for i := 1; i < len(filled); i++ {
		prev, cur := filled[i-1], filled[i]
		if prev == nil || cur == nil {
			switch policy {
			case MissingError:
				return ReturnSeries{}, fmt.Errorf("risk: missing price at or before %s", prices.Dates[i])
			case MissingDrop:
				continue
			case MissingPartial:
				partialDropped++
				continue
			case MissingFFill:
				continue // still missing after ffill (leading gap): treat as drop
			default:
				return ReturnSeries{}, fmt.Errorf("risk: unknown missing data policy %q", policy)
			}
		}

		var r float64
		switch definition {
		case ReturnSimple:
			r = *cur/ *prev - 1
		case ReturnLog:
			r = math.Log(*cur / *prev)
		default:
			return ReturnSeries{}, fmt.Errorf("risk: unknown return definition %q", definition)
		}
		if math.IsNaN(r) || math.IsInf(r, 0) {
			return ReturnSeries{}, &NonFiniteReturnError{Index: i, Value: r}
		}
		out.Dates = append(out.Dates, prices.Dates[i])
		out.Values = append(out.Values, r)
	}

	if policy == MissingPartial && partialDropped > 0 {
		warnings = append(warnings, fmt.Sprintf("partial series: dropped %d dates with missing prices", partialDropped))
	}
	out.Warnings = warnings
	return out, nil
}

// PortfolioReturns computes a single portfolio return series from aligned
// per-asset return series and weights, per InputMode.
// Static-weights mode always carries a warning that it ignores intra-window
// rebalancing.
func PortfolioReturns(mode InputMode, assetReturns map[string]ReturnSeries, weights map[string]float64, dates []string) (ReturnSeries, error) {
	out := ReturnSeries{Dates: dates, Values: make([]float64, len(dates))}

	byDate := make(map[string]map[string]float64, len(dates))
	for asset, rs := range assetReturns {
		for i, d := range rs.Dates {
			if byDate[d] == nil {
				byDate[d] = map[string]float64{}
			}
			byDate[d][asset] = rs.Values[i]
		}
	}

	for i, d := range dates {
		var sum float64
		for asset, w := range weights {
			r, ok := byDate[d][asset]
			if !ok {
				return ReturnSeries{}, fmt.Errorf("risk: missing return for asset %q on %s", asset, d)
			}
			sum += w * r
		}
		out.Values[i] = sum
	}

	if mode == InputStaticWeightsXAssetRets {
		out.Warnings = append(out.Warnings, "approximation ignores intra-window rebalancing")
	}
	return out, nil
}

// Volatility is the sample standard deviation of r scaled by
// sqrt(annualizationFactor).
func Volatility(r []float64, annualizationFactor float64) float64 {
	if len(r) < 2 {
		return 0
	}
	mean := meanOf(r)
	var ss float64
	for _, v := range r {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(len(r)-1))
	return std * math.Sqrt(annualizationFactor)
}

func meanOf(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
