package risk

import "fmt"

// InsufficientSampleError is returned when a statistic requires more
// observations than are available (e.g. a sample covariance or tracking
// error over fewer than two aligned returns).
type InsufficientSampleError struct {
	Have int
	Need int
	For  string
}

func (e *InsufficientSampleError) Error() string {
	return fmt.Sprintf("insufficient sample for %s: have %d, need >= %d", e.For, e.Have, e.Need)
}

// LookAheadError is returned when a computation would consume data strictly
// after the request's as_of instant.
type LookAheadError struct {
	AsOf string
	Used string
}

func (e *LookAheadError) Error() string {
	return fmt.Sprintf("look-ahead: as_of=%s but used data at %s", e.AsOf, e.Used)
}

// MissingMarketStateError is returned when a required market_data_id has no
// observation in the supplied bundle.
type MissingMarketStateError struct {
	MarketDataID string
}

func (e *MissingMarketStateError) Error() string {
	return fmt.Sprintf("missing market state for %q", e.MarketDataID)
}

// UnknownAssetError is returned when a portfolio references a
// market_data_id absent from the bundle entirely.
type UnknownAssetError struct {
	MarketDataID string
}

func (e *UnknownAssetError) Error() string {
	return fmt.Sprintf("unknown asset %q: not present in market data bundle", e.MarketDataID)
}

// NonFiniteReturnError is returned when a built return is NaN/Inf.
type NonFiniteReturnError struct {
	Index int
	Value float64
}

func (e *NonFiniteReturnError) Error() string {
	return fmt.Sprintf("non-finite return at index %d: %v", e.Index, e.Value)
}
