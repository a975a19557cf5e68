package stress

import "fmt"

// StressInputError is returned when a portfolio position references a
// market_data_id with no price in the supplied market state.
type StressInputError struct {
	MarketDataID string
}

func (e *StressInputError) Error() string {
	return fmt.Sprintf("stress: no market state price for %q", e.MarketDataID)
}

// ShockedPriceNonPositiveError is returned when applying a shock would push
// a price-positive instrument's price to zero or below.
type ShockedPriceNonPositiveError struct {
	MarketDataID string
	Shocked      float64
}

func (e *ShockedPriceNonPositiveError) Error() string {
	return fmt.Sprintf("stress: shocked price for %q is non-positive: %v", e.MarketDataID, e.Shocked)
}
