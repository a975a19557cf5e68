package risk

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CovarianceDiagnostics accompanies every covariance matrix the risk engine
// produces.
type CovarianceDiagnostics struct {
	SampleSize       int
	MissingCount     int
	SymmetryMaxError float64
	IsSymmetric      bool
	Estimator        CovarianceEstimator
}

// SampleCovariance computes the unbiased (n-1) sample covariance matrix for
// the asset return series named in order, which must all share the same
// length and already be date-aligned by the caller. It returns a
// *mat.SymDense so downstream consumers (correlation, variance attribution)
// can use gonum's linear algebra directly.
func SampleCovariance(order []string, series map[string][]float64) (*mat.SymDense, CovarianceDiagnostics, error) {
	n := len(order)
	if n == 0 {
		return nil, CovarianceDiagnostics{}, fmt.Errorf("risk: covariance requires at least one asset")
	}
	t := len(series[order[0]])
	missing := 0
	for _, name := range order {
		s, ok := series[name]
		if !ok {
			return nil, CovarianceDiagnostics{}, fmt.Errorf("risk: missing return series for %q", name)
		}
		if len(s) != t {
			return nil, CovarianceDiagnostics{}, fmt.Errorf("risk: return series length mismatch for %q: %d != %d", name, len(s), t)
		}
	}
	if t < 2 {
		return nil, CovarianceDiagnostics{}, &InsufficientSampleError{Have: t, Need: 2, For: "sample covariance"}
	}

	means := make([]float64, n)
	for i, name := range order {
		means[i] = stat.Mean(series[name], nil)
	}

	raw := make([][]float64, n)
	for i := range raw {
		raw[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var sum float64
			for k := 0; k < t; k++ {
				sum += (series[order[i]][k] - means[i]) * (series[order[j]][k] - means[j])
			}
			v := sum / float64(t-1)
			raw[i][j] = v
			raw[j][i] = v
		}
	}

	maxErr := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if d := math.Abs(raw[i][j] - raw[j][i]); d > maxErr {
				maxErr = d
			}
		}
	}

	flat := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			flat[i*n+j] = raw[i][j]
		}
	}
	cov := mat.NewSymDense(n, flat)

	diag := CovarianceDiagnostics{
		SampleSize:       t,
		MissingCount:     missing,
		SymmetryMaxError: maxErr,
		IsSymmetric:      maxErr <= 1e-9,
		Estimator:        CovarianceSample,
	}
	return cov, diag, nil
}

// Correlation derives the correlation matrix from a covariance matrix by
// safe division; zero-variance rows/columns yield NaN off-diagonal entries
// and a diagonal of 1.
func Correlation(cov *mat.SymDense) *mat.Dense {
	n, _ := cov.Dims()
	out := mat.NewDense(n, n, nil)
	std := make([]float64, n)
	for i := 0; i < n; i++ {
		std[i] = math.Sqrt(cov.At(i, i))
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				out.Set(i, j, 1)
				continue
			}
			if std[i] == 0 || std[j] == 0 {
				out.Set(i, j, math.NaN())
				continue
			}
			out.Set(i, j, cov.At(i, j)/(std[i]*std[j]))
		}
	}
	return out
}
