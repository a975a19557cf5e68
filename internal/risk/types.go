// Package risk implements the risk engine: return
// builders, sample covariance, drawdown, tracking error, historical VaR/ES,
// exposures, variance attribution, and the typed RiskReport with full input
// lineage. Every computation here is a pure function of its inputs.
package risk

import (
	"time"

	"github.com/quantlab/quantlab/internal/quantschema"
)

// ReturnDefinition selects the return convention used to build series.
type ReturnDefinition string

const (
	ReturnSimple ReturnDefinition = "simple"
	ReturnLog    ReturnDefinition = "log"
)

// MissingDataPolicy controls how gaps in a price series are handled when
// building returns.
type MissingDataPolicy string

const (
	MissingError   MissingDataPolicy = "ERROR"
	MissingDrop    MissingDataPolicy = "DROP"
	MissingFFill   MissingDataPolicy = "FFILL"
	MissingPartial MissingDataPolicy = "PARTIAL"
)

// InputMode selects how the portfolio return series is constructed.
type InputMode string

const (
	InputPortfolioReturns        InputMode = "PORTFOLIO_RETURNS"
	InputStaticWeightsXAssetRets InputMode = "STATIC_WEIGHTS_X_ASSET_RETURNS"
)

// CovarianceEstimator names the estimator used; MVP supports SAMPLE only.
type CovarianceEstimator string

const CovarianceSample CovarianceEstimator = "SAMPLE"

// Window bounds a risk computation either by lookback or explicit range.
type Window struct {
	LookbackDays int
	Start        time.Time
	End          time.Time
}

// Request is the risk engine's input.
type Request struct {
	AsOf                  time.Time
	Window                Window
	ReturnDefinition      ReturnDefinition
	AnnualizationFactor   float64
	ConfidenceLevels      []float64
	InputMode             InputMode
	MissingDataPolicy     MissingDataPolicy
	CovarianceEstimator   CovarianceEstimator
	BenchmarkMarketDataID *quantschema.MarketDataId
	Lineage               Lineage
}

// Lineage is the set of content-hash references a RiskReport must carry.
type Lineage struct {
	PortfolioSnapshotHash string
	MarketDataBundleHash  string
	RequestHash           string
	BenchmarkID           string
	BenchmarkHash         string
}
