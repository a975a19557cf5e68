package access

import (
	"fmt"

	"github.com/quantlab/quantlab/internal/quantschema"
)

// MissingSymbolMappingError is the typed failure raised when an asset has
// no provider-symbol mapping, an identity/lineage error kind.
type MissingSymbolMappingError struct {
	Asset quantschema.MarketDataId
}

func (e *MissingSymbolMappingError) Error() string {
	return fmt.Sprintf("access: no provider symbol mapping for asset %q", e.Asset)
}

// SymbolMapper resolves a canonical MarketDataId to the symbol a
// SeriesProvider understands. It never applies calendar or FX logic — only
// identity translation.
type SymbolMapper interface {
	ProviderSymbol(asset quantschema.MarketDataId) (string, error)
}

// StaticSymbolMapper is a fixed asset->provider-symbol table, the MVP
// mapper backing a configured seed universe.
type StaticSymbolMapper map[quantschema.MarketDataId]string

// ProviderSymbol looks up asset, failing with MissingSymbolMappingError
// rather than silently falling back to the asset id itself.
func (m StaticSymbolMapper) ProviderSymbol(asset quantschema.MarketDataId) (string, error) {
	sym, ok := m[asset]
	if !ok {
		return "", &MissingSymbolMappingError{Asset: asset}
	}
	return sym, nil
}

var _ SymbolMapper = StaticSymbolMapper{}
