package risk

// DrawdownResult is the output of drawdown analysis.
type DrawdownResult struct {
	Wealth         []float64
	Drawdown       []float64
	MaxDrawdown    float64
	MaxDrawdownIdx int
	TimeToRecovery *int // nil if not recovered within the window
}

// ComputeDrawdown builds the cumulative wealth curve W_t = prod(1+r_s),
// the drawdown series D_t = W_t/running_max(W)_t - 1, the maximum drawdown
// (min D_t), and time-to-recovery measured in periods from the trough to
// the first subsequent point where wealth returns to its prior running
// maximum.
func ComputeDrawdown(returns []float64) DrawdownResult {
	n := len(returns)
	wealth := make([]float64, n)
	runningMax := make([]float64, n)
	drawdown := make([]float64, n)

	w := 1.0
	for i, r := range returns {
		w *= 1 + r
		wealth[i] = w
		if i == 0 || w > runningMax[i-1] {
			runningMax[i] = w
		} else {
			runningMax[i] = runningMax[i-1]
		}
		drawdown[i] = wealth[i]/runningMax[i] - 1
	}

	maxDD := 0.0
	argmin := -1
	for i, d := range drawdown {
		if d < maxDD || argmin == -1 {
			maxDD = d
			argmin = i
		}
	}

	var timeToRecovery *int
	if argmin >= 0 {
		peak := runningMax[argmin]
		for j := argmin + 1; j < n; j++ {
			if wealth[j] >= peak {
				d := j - argmin
				timeToRecovery = &d
				break
			}
		}
	}

	return DrawdownResult{
		Wealth:         wealth,
		Drawdown:       drawdown,
		MaxDrawdown:    maxDD,
		MaxDrawdownIdx: argmin,
		TimeToRecovery: timeToRecovery,
	}
}

// TrackingError computes the annualized standard deviation of
// portfolioReturns - benchmarkReturns, after the caller has already
// date-aligned the two series per its missing-data policy (
// step 8).
func TrackingError(portfolioReturns, benchmarkReturns []float64, annualizationFactor float64) float64 {
	n := len(portfolioReturns)
	diffs := make([]float64, n)
	for i := range diffs {
		diffs[i] = portfolioReturns[i] - benchmarkReturns[i]
	}
	return Volatility(diffs, annualizationFactor)
}
