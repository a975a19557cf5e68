// Package access implements the access service: request hashing, market
// calendar alignment, missing-data and validation policies, guardrail
// detection, a per-asset parquet cache with manifests, and replay.
// get_timeseries is the package's sole entry point; everything else
// supports it.
package access

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/quantlab/quantlab/internal/quantschema"
)

// CalendarSpec is the access service's calendar dependency: the sorted,
// unique, inclusive set of trading dates between start and end
// ("2006-01-02"). *calendar.VenueCalendar satisfies this directly.
type CalendarSpec interface {
	Sessions(start, end string) ([]string, error)
}

// Service wires the collaborators get_timeseries needs: a SymbolMapper, a
// SeriesProvider, a CalendarSpec for target-index construction, and a
// Cache for manifest/parquet persistence. No collaborator carries process-
// wide state; a Service is safe to construct per-request configuration or
// share across concurrent reads once published.
type Service struct {
	Provider     SeriesProvider
	SymbolMapper SymbolMapper
	Calendar     CalendarSpec
	Cache        *Cache
	CodeVersion  string
	now          func() time.Time
}

// NewService constructs a Service over its collaborators.
func NewService(provider SeriesProvider, mapper SymbolMapper, cal CalendarSpec, cache *Cache) *Service {
	return &Service{Provider: provider, SymbolMapper: mapper, Calendar: cal, Cache: cache, now: time.Now}
}

// GetTimeSeries is the access service's single entry point. It computes
// the request hash, serves a cache hit without calling the provider on a
// replay, and otherwise builds a fresh aligned Bundle: calendar alignment,
// per-asset reindexing, missing-data policy, dedup/guardrail validation,
// parquet + manifest persistence.
func (s *Service) GetTimeSeries(ctx context.Context, req TimeSeriesRequest) (*Bundle, error) {
	requestHash, err := req.Hash()
	if err != nil {
		return nil, fmt.Errorf("access: %w", err)
	}

	if manifest, hit, err := s.Cache.ReadManifest(requestHash); err != nil {
		return nil, err
	} else if hit {
		return s.replay(req, manifest)
	}

	startDate, endDate := req.Start.UTC().Format("2006-01-02"), req.End.UTC().Format("2006-01-02")
	dates, err := s.Calendar.Sessions(startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("access: calendar sessions: %w", err)
	}

	bundle := &Bundle{
		Dates:      dates,
		Columns:    map[ColumnKey][]*float64{},
		AssetsMeta: map[quantschema.MarketDataId]AssetMeta{},
		Quality:    QualitySummary{Flags: map[quantschema.MarketDataId]quantschema.QualityFlagSet{}},
	}

	assetFields := map[quantschema.MarketDataId]map[string][]*float64{}

	for _, asset := range req.AssetIDs {
		sym, err := s.SymbolMapper.ProviderSymbol(asset)
		if err != nil {
			return nil, fmt.Errorf("access: %w", err)
		}
		var assetWarnings []string
		assetFields[asset] = map[string][]*float64{}

		for _, field := range req.Fields {
			obs, err := s.Provider.FetchField(ctx, sym, field, req.Start, req.End)
			if err != nil {
				return nil, fmt.Errorf("access: fetch %s/%s: %w", asset, field, err)
			}

			byDate, dupCount, err := dedup(string(asset), obs, req.ValidationPolicy.DedupDiscipline)
			if err != nil {
				return nil, err
			}
			if dupCount > 0 {
				bundle.Quality.DuplicatesResolved += dupCount
				s.flagAsset(bundle, asset, quantschema.FlagDuplicateResolved)
				assetWarnings = append(assetWarnings, fmt.Sprintf("%s: resolved %d duplicate date(s)", field, dupCount))
			}

			col := make([]*float64, len(dates))
			missing := 0
			for i, d := range dates {
				if v, ok := byDate[d]; ok {
					vv := v
					col[i] = &vv
				} else {
					missing++
				}
			}
			if missing > 0 {
				bundle.Quality.MissingCount += missing
				if req.MissingDataPolicy == MissingDataError {
					return nil, &MissingValueError{Asset: string(asset), Date: firstMissing(dates, col)}
				}
			}

			if field == "close" {
				s.applyGuardrails(bundle, asset, dates, col, req.ValidationPolicy)
				for i, v := range col {
					if v != nil && *v <= 0 {
						return nil, &NonpositivePriceError{Asset: string(asset), Date: dates[i], Value: *v}
					}
				}
			}

			assetFields[asset][field] = col
			bundle.Columns[ColumnKey{Asset: asset, Field: field}] = col
		}
		bundle.AssetsMeta[asset] = AssetMeta{ProviderSymbol: sym, Warnings: assetWarnings}
	}

	if req.MissingDataPolicy == MissingDataDropDates {
		before := len(bundle.Dates)
		dropIncompleteDates(bundle)
		bundle.Quality.DroppedDateCount += before - len(bundle.Dates)
	}

	var asOf *time.Time
	if !req.AsOf.IsZero() {
		t := req.AsOf.UTC()
		asOf = &t
	}
	bundle.Lineage = LineageMeta{
		Provider:       s.Provider.Name(),
		IngestionTsUTC: s.now().UTC(),
		AsOfUTC:        asOf,
		CodeVersion:    s.CodeVersion,
		RequestHash:    requestHash,
	}

	if err := s.persist(req, requestHash, bundle, assetFields); err != nil {
		return nil, err
	}
	return bundle, nil
}

func (s *Service) flagAsset(b *Bundle, asset quantschema.MarketDataId, flag quantschema.QualityFlag) {
	set, ok := b.Quality.Flags[asset]
	if !ok {
		set = quantschema.NewQualityFlagSet()
		b.Quality.Flags[asset] = set
	}
	set.Add(flag)
}

func (s *Service) applyGuardrails(b *Bundle, asset quantschema.MarketDataId, dates []string, closes []*float64, policy ValidationPolicy) {
	perDate := Guardrails(dates, closes, policy)
	for _, set := range perDate {
		for _, f := range set.Sorted() {
			s.flagAsset(b, asset, quantschema.QualityFlag(f))
		}
	}
}

func dedup(asset string, obs []Observation, discipline DedupDiscipline) (map[string]float64, int, error) {
	out := map[string]float64{}
	seen := map[string]bool{}
	dupCount := 0
	for _, o := range obs {
		if seen[o.Date] {
			dupCount++
			switch discipline {
			case DedupLast:
				out[o.Date] = o.Value
			case DedupFirst:
				// keep first value already stored
			case DedupError:
				return nil, 0, &DuplicateDateError{Asset: asset, Date: o.Date}
			default:
				out[o.Date] = o.Value
			}
			continue
		}
		seen[o.Date] = true
		out[o.Date] = o.Value
	}
	return out, dupCount, nil
}

func firstMissing(dates []string, col []*float64) string {
	for i, v := range col {
		if v == nil {
			return dates[i]
		}
	}
	return ""
}

// dropIncompleteDates removes every date index where any column in the
// bundle has a gap, per the DROP_DATES missing-data policy.
func dropIncompleteDates(b *Bundle) {
	keep := make([]bool, len(b.Dates))
	for i := range keep {
		keep[i] = true
	}
	for _, col := range b.Columns {
		for i, v := range col {
			if v == nil {
				keep[i] = false
			}
		}
	}
	newDates := make([]string, 0, len(b.Dates))
	for i, k := range keep {
		if k {
			newDates = append(newDates, b.Dates[i])
		}
	}
	for key, col := range b.Columns {
		newCol := make([]*float64, 0, len(newDates))
		for i, k := range keep {
			if k {
				newCol = append(newCol, col[i])
			}
		}
		b.Columns[key] = newCol
	}
	b.Dates = newDates
}

func (s *Service) persist(req TimeSeriesRequest, requestHash string, bundle *Bundle, assetFields map[quantschema.MarketDataId]map[string][]*float64) error {
	provider := s.Provider.Name()
	var allPaths []string
	for asset, fields := range assetFields {
		paths, err := s.Cache.WriteAssetParquet(provider, asset, bundle.Dates, fields)
		if err != nil {
			return fmt.Errorf("access: write parquet for %s: %w", asset, err)
		}
		allPaths = append(allPaths, paths...)
	}
	sort.Strings(allPaths)

	reqJSON, err := json.Marshal(requestViewOf(req))
	if err != nil {
		return fmt.Errorf("access: marshal request json: %w", err)
	}

	flags := map[string][]string{}
	assets := make([]string, 0, len(bundle.Quality.Flags))
	for a := range bundle.Quality.Flags {
		assets = append(assets, string(a))
	}
	sort.Strings(assets)
	for _, a := range assets {
		flags[a] = bundle.Quality.Flags[quantschema.MarketDataId(a)].Sorted()
	}

	manifest := Manifest{
		RequestJSON:    reqJSON,
		RequestHash:    requestHash,
		Provider:       bundle.Lineage.Provider,
		IngestionTsUTC: bundle.Lineage.IngestionTsUTC,
		AsOfUTC:        bundle.Lineage.AsOfUTC,
		CodeVersion:    bundle.Lineage.CodeVersion,
		StoragePaths:   allPaths,
		QualitySummary: ManifestQualitySummary{
			MissingCount:       bundle.Quality.MissingCount,
			DroppedDateCount:   bundle.Quality.DroppedDateCount,
			DuplicatesResolved: bundle.Quality.DuplicatesResolved,
			Flags:              flags,
		},
	}
	return s.Cache.WriteManifest(manifest)
}

// replay reconstructs a Bundle from cached parquet parts without invoking
// the provider — the cache-hit path invoked whenever an identical request
// (including as_of) is repeated.
func (s *Service) replay(req TimeSeriesRequest, manifest *Manifest) (*Bundle, error) {
	startDate, endDate := req.Start.UTC().Format("2006-01-02"), req.End.UTC().Format("2006-01-02")
	dates, err := s.Calendar.Sessions(startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("access: calendar sessions: %w", err)
	}
	startYear, endYear := startDate[:4], endDate[:4]

	bundle := &Bundle{
		Dates:      dates,
		Columns:    map[ColumnKey][]*float64{},
		AssetsMeta: map[quantschema.MarketDataId]AssetMeta{},
		Quality:    QualitySummary{Flags: map[quantschema.MarketDataId]quantschema.QualityFlagSet{}},
		Lineage: LineageMeta{
			Provider:       manifest.Provider,
			IngestionTsUTC: manifest.IngestionTsUTC,
			AsOfUTC:        manifest.AsOfUTC,
			CodeVersion:    manifest.CodeVersion,
			RequestHash:    manifest.RequestHash,
		},
	}
	for asset, flags := range manifest.QualitySummary.Flags {
		set := quantschema.NewQualityFlagSet()
		for _, f := range flags {
			set.Add(quantschema.QualityFlag(f))
		}
		bundle.Quality.Flags[quantschema.MarketDataId(asset)] = set
	}
	bundle.Quality.MissingCount = manifest.QualitySummary.MissingCount
	bundle.Quality.DroppedDateCount = manifest.QualitySummary.DroppedDateCount
	bundle.Quality.DuplicatesResolved = manifest.QualitySummary.DuplicatesResolved

	for _, asset := range req.AssetIDs {
		sym, err := s.SymbolMapper.ProviderSymbol(asset)
		if err != nil {
			return nil, fmt.Errorf("access: %w", err)
		}
		rawDates, cols, err := s.Cache.ReadAssetParquet(manifest.Provider, asset, startYear, endYear)
		if err != nil {
			return nil, fmt.Errorf("access: replay read for %s: %w", asset, err)
		}
		byDate := map[string]map[string]*float64{}
		for field, vals := range cols {
			for i, v := range vals {
				if i >= len(rawDates) {
					break
				}
				d := rawDates[i]
				if byDate[d] == nil {
					byDate[d] = map[string]*float64{}
				}
				byDate[d][field] = v
			}
		}
		for _, field := range req.Fields {
			col := make([]*float64, len(dates))
			for i, d := range dates {
				if fv, ok := byDate[d]; ok {
					col[i] = fv[field]
				}
			}
			bundle.Columns[ColumnKey{Asset: asset, Field: field}] = col
		}
		bundle.AssetsMeta[asset] = AssetMeta{ProviderSymbol: sym}
	}
	return bundle, nil
}

// requestView is the JSON-serializable projection of a TimeSeriesRequest
// stored verbatim in a manifest's request_json field.
type requestView struct {
	Provider          string   `json:"provider"`
	Assets            []string `json:"assets"`
	Fields            []string `json:"fields"`
	Start             string   `json:"start"`
	End               string   `json:"end"`
	AsOf              string   `json:"as_of,omitempty"`
	MissingDataPolicy string   `json:"missing_data_policy"`
}

func requestViewOf(r TimeSeriesRequest) requestView {
	assets := make([]string, len(r.AssetIDs))
	for i, a := range r.AssetIDs {
		assets[i] = string(a)
	}
	v := requestView{
		Provider:          r.Provider,
		Assets:            assets,
		Fields:            append([]string(nil), r.Fields...),
		Start:             r.Start.UTC().Format("2006-01-02"),
		End:               r.End.UTC().Format("2006-01-02"),
		MissingDataPolicy: string(r.MissingDataPolicy),
	}
	if !r.AsOf.IsZero() {
		v.AsOf = r.AsOf.UTC().Format(time.RFC3339)
	}
	return v
}
