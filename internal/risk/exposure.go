package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Exposures is the asset/currency weight breakdown for a portfolio
//.
type Exposures struct {
	AssetWeights      map[string]float64
	CurrencyExposures map[string]float64
	Normalized        bool
	Convention        string
}

// ComputeExposures builds asset weights from raw notionals (or an explicit
// valuation snapshot's weights, passed in by the caller as basis), and
// currency exposures from a separate per-currency notional map. Weights are
// normalized to sum to 1 when the total is non-zero; otherwise the raw
// notional convention is reported as-is.
func ComputeExposures(basis map[string]float64, currencyNotionals map[string]float64) Exposures {
	total := 0.0
	for _, v := range basis {
		total += v
	}

	assetWeights := make(map[string]float64, len(basis))
	normalized := total != 0
	for k, v := range basis {
		if normalized {
			assetWeights[k] = v / total
		} else {
			assetWeights[k] = v
		}
	}

	ccyTotal := 0.0
	for _, v := range currencyNotionals {
		ccyTotal += v
	}
	ccyExposures := make(map[string]float64, len(currencyNotionals))
	for k, v := range currencyNotionals {
		if ccyTotal != 0 {
			ccyExposures[k] = v / ccyTotal
		} else {
			ccyExposures[k] = v
		}
	}

	convention := "normalized_weight"
	if !normalized {
		convention = "raw_notional"
	}
	return Exposures{
		AssetWeights:      assetWeights,
		CurrencyExposures: ccyExposures,
		Normalized:        normalized,
		Convention:        convention,
	}
}

// AttributionResult is the variance-attribution output of
// VarianceAttribution: portfolio variance
// sigma^2 = w^T*Sigma*w, and each asset's contribution-to-covariance-
// variance CCV_i = w_i * (Sigma*w)_i, which sums to sigma^2 within
// tolerance.
type AttributionResult struct {
	Variance      float64
	Contributions []float64
	Order         []string
	Convention    string
}

// VarianceAttribution computes sigma^2 and per-asset CCV contributions
// using gonum's matrix-vector product over the covariance matrix produced
// by SampleCovariance.
func VarianceAttribution(order []string, weights []float64, cov *mat.SymDense) (AttributionResult, error) {
	n := len(order)
	if len(weights) != n {
		return AttributionResult{}, fmt.Errorf("risk: weights length %d != order length %d", len(weights), n)
	}
	rows, cols := cov.Dims()
	if rows != n || cols != n {
		return AttributionResult{}, fmt.Errorf("risk: covariance dims %dx%d != %d assets", rows, cols, n)
	}

	w := mat.NewVecDense(n, weights)
	var sigmaW mat.VecDense
	sigmaW.MulVec(cov, w)
	variance := mat.Dot(w, &sigmaW)

	contributions := make([]float64, n)
	sum := 0.0
	for i := 0; i < n; i++ {
		contributions[i] = weights[i] * sigmaW.AtVec(i)
		sum += contributions[i]
	}
	if math.Abs(sum-variance) > 1e-6*(1+math.Abs(variance)) {
		return AttributionResult{}, fmt.Errorf("risk: variance attribution contributions (%v) do not reconcile to variance (%v)", sum, variance)
	}

	return AttributionResult{
		Variance:      variance,
		Contributions: contributions,
		Order:         order,
		Convention:    "CCV",
	}, nil
}
