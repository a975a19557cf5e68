// Package stress implements the stress engine: scenario models,
// deterministic scenario-set hashing, shock application,
// and linear revaluation of a portfolio's market state.
package stress

import (
	"fmt"
	"math"
	"sort"

	"github.com/quantlab/quantlab/internal/hashing"
	"github.com/quantlab/quantlab/internal/quantschema"
)

// ShockConvention selects how a scenario's shock values are interpreted.
type ShockConvention string

const (
	ConventionMultReturn ShockConvention = "MULT_RETURN"
	ConventionMultFactor ShockConvention = "MULT_FACTOR"
)

// ScenarioKind discriminates the Scenario tagged variant.
type ScenarioKind string

const (
	KindParametricShock  ScenarioKind = "PARAMETRIC_SHOCK"
	KindCustomShockVector ScenarioKind = "CUSTOM_SHOCK_VECTOR"
	KindHistoricalShock  ScenarioKind = "HISTORICAL_SHOCK"
)

// Scenario is one shock vector to apply to a market state. Regardless of
// Kind, a scenario is fully described by its ShockVector and Convention;
// Kind and PeriodTag are provenance metadata only. stress/ never fetches a
// HistoricalShock's vector — it must already be materialized by the caller.
type Scenario struct {
	ScenarioID  string
	Name        string
	Kind        ScenarioKind
	ShockVector map[quantschema.MarketDataId]float64
	Convention  ShockConvention
	Tags        []string
	PeriodTag   string // set only for KindHistoricalShock
}

func (s Scenario) validate() error {
	if s.ScenarioID == "" {
		return fmt.Errorf("stress: scenario_id must not be empty")
	}
	switch s.Convention {
	case ConventionMultReturn, ConventionMultFactor:
	default:
		return fmt.Errorf("stress: scenario %q has unknown convention %q", s.ScenarioID, s.Convention)
	}
	for asset, v := range s.ShockVector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("stress: scenario %q shock for %q is not finite: %v", s.ScenarioID, asset, v)
		}
	}
	return nil
}

// ScenarioSet is an ordered collection of scenarios. Its canonical hash is
// independent of insertion order: scenarios are sorted by scenario_id
// before hashing and before any stable serialization.
type ScenarioSet struct {
	Scenarios []Scenario
}

// NewScenarioSet validates every scenario and rejects duplicate
// scenario_ids.
func NewScenarioSet(scenarios []Scenario) (ScenarioSet, error) {
	seen := make(map[string]struct{}, len(scenarios))
	for _, s := range scenarios {
		if err := s.validate(); err != nil {
			return ScenarioSet{}, err
		}
		if _, dup := seen[s.ScenarioID]; dup {
			return ScenarioSet{}, fmt.Errorf("stress: duplicate scenario_id %q", s.ScenarioID)
		}
		seen[s.ScenarioID] = struct{}{}
	}
	return ScenarioSet{Scenarios: scenarios}, nil
}

// Sorted returns the scenarios ordered by scenario_id, the stable
// serialization order used in reports.
func (s ScenarioSet) Sorted() []Scenario {
	out := make([]Scenario, len(s.Scenarios))
	copy(out, s.Scenarios)
	sort.Slice(out, func(i, j int) bool { return out[i].ScenarioID < out[j].ScenarioID })
	return out
}

// CanonicalMap implements hashing.Canonicalizer, order-invariant over
// scenario insertion order.
func (s ScenarioSet) CanonicalMap() (map[string]interface{}, error) {
	scenarios := make([]interface{}, 0, len(s.Scenarios))
	for _, sc := range s.Sorted() {
		shocks := make(map[string]interface{}, len(sc.ShockVector))
		for asset, v := range sc.ShockVector {
			fv, err := hashing.Finite(v, "shock_vector")
			if err != nil {
				return nil, err
			}
			shocks[string(asset)] = fv
		}
		scenarios = append(scenarios, map[string]interface{}{
			"scenario_id":  sc.ScenarioID,
			"name":         sc.Name,
			"convention":   string(sc.Convention),
			"shock_vector": shocks,
			"tags":         hashing.SortedStrings(sc.Tags),
		})
	}
	return map[string]interface{}{"scenarios": scenarios}, nil
}

var _ hashing.Canonicalizer = ScenarioSet{}
