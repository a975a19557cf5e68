package risk

import (
	"fmt"
	"math"
	"sort"
)

// minVaRSampleSize is the sample count below which a VaR/ES estimate at any
// requested confidence level is considered unreliable and carries a
// warning rather than a hard failure.
const minVaRSampleSize = 30

// VarEsResult is one confidence level's historical VaR/ES estimate in loss
// convention.
type VarEsResult struct {
	Confidence float64
	VaR        float64
	ES         float64
	Warning    string
}

// LossesFromReturns converts a return series to the loss convention used
// throughout VaR/ES: loss = -return.
func LossesFromReturns(returns []float64) []float64 {
	losses := make([]float64, len(returns))
	for i, r := range returns {
		losses[i] = -r
	}
	return losses
}

// HistoricalVaR computes the empirical quantile of losses at confidence
// alpha using the Hazen (type-5) plotting position: rank h = alpha*n + 0.5
// (1-indexed), linearly interpolated between the bracketing order
// statistics. The interpolation rule is pinned here so every VaR in the
// repo agrees on the same convention.
func HistoricalVaR(losses []float64, alpha float64) (float64, error) {
	n := len(losses)
	if n < 1 {
		return 0, fmt.Errorf("risk: VaR requires at least one observation")
	}
	if alpha <= 0 || alpha >= 1 {
		return 0, fmt.Errorf("risk: confidence level %v must be in (0,1)", alpha)
	}
	sorted := make([]float64, n)
	copy(sorted, losses)
	sort.Float64s(sorted)

	h := alpha*float64(n) + 0.5
	if h < 1 {
		h = 1
	}
	if h > float64(n) {
		h = float64(n)
	}
	lo := int(math.Floor(h))
	hi := int(math.Ceil(h))
	if lo < 1 {
		lo = 1
	}
	if hi > n {
		hi = n
	}
	frac := h - float64(lo)
	return sorted[lo-1] + frac*(sorted[hi-1]-sorted[lo-1]), nil
}

// HistoricalES computes the expected shortfall at the VaR boundary: the
// mean of realized losses strictly worse than varValue, together with
// varValue itself as the boundary pseudo-observation. Appending the
// (possibly interpolated) VaR value keeps ES well-defined — and ES >= VaR
// — even when fewer than two realized losses exceed the threshold.
func HistoricalES(losses []float64, varValue float64) float64 {
	tail := make([]float64, 0, len(losses)+1)
	for _, l := range losses {
		if l > varValue {
			tail = append(tail, l)
		}
	}
	tail = append(tail, varValue)
	return meanOf(tail)
}

// ComputeVarEs evaluates HistoricalVaR/HistoricalES for every requested
// confidence level, attaching a sample-size warning when the series is too
// short to trust the tail estimate.
func ComputeVarEs(returns []float64, confidenceLevels []float64) ([]VarEsResult, error) {
	losses := LossesFromReturns(returns)
	out := make([]VarEsResult, 0, len(confidenceLevels))
	for _, alpha := range confidenceLevels {
		v, err := HistoricalVaR(losses, alpha)
		if err != nil {
			return nil, err
		}
		es := HistoricalES(losses, v)
		if es < v {
			return nil, fmt.Errorf("risk: ES (%v) < VaR (%v) at confidence %v, invariant violated", es, v, alpha)
		}
		res := VarEsResult{Confidence: alpha, VaR: v, ES: es}
		if len(losses) < minVaRSampleSize {
			res.Warning = fmt.Sprintf("sample size %d below recommended minimum %d for confidence %v", len(losses), minVaRSampleSize, alpha)
		}
		out = append(out, res)
	}
	return out, nil
}
