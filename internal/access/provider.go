package access

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Observation is one raw (date, value) pair as delivered by a
// SeriesProvider, in encounter order. A provider that delivers two
// observations for the same date (a late correction row, a vendor replay)
// is exactly the case the access service's dedup discipline resolves —
// the provider itself never deduplicates.
type Observation struct {
	Date  string
	Value float64
}

// SeriesProvider is the access service's data source contract: given a
// resolved provider symbol and field, return every observation the
// provider holds in [start, end], with no reindexing, deduplication, or
// flagging applied — those are the access service's job, never the
// provider's ().
type SeriesProvider interface {
	FetchField(ctx context.Context, providerSymbol, field string, start, end time.Time) ([]Observation, error)
	Name() string
}

// FixtureSeriesProvider is the MVP local-fixture adapter, mirroring the
// ingestion boundary's fixture adapter (package ingest/fixture): it reads
// "<root>/<provider_symbol>.csv" files with "date,field,value" rows and
// delivers exactly what the file contains, letting the access service's
// own policies react to any gap or duplicate.
type FixtureSeriesProvider struct {
	Root string
}

// NewFixtureSeriesProvider constructs a FixtureSeriesProvider rooted at dir.
func NewFixtureSeriesProvider(dir string) *FixtureSeriesProvider {
	return &FixtureSeriesProvider{Root: dir}
}

// Name identifies the provider for manifests and cache paths.
func (p *FixtureSeriesProvider) Name() string { return "fixture" }

// FetchField reads providerSymbol's CSV fixture and returns every row
// matching field whose date falls in [start, end], inclusive.
func (p *FixtureSeriesProvider) FetchField(ctx context.Context, providerSymbol, field string, start, end time.Time) ([]Observation, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	path := filepath.Join(p.Root, providerSymbol+".csv")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("access: open fixture %s: %w", path, err)
	}
	defer f.Close()

	startDate, endDate := start.UTC().Format("2006-01-02"), end.UTC().Format("2006-01-02")
	var out []Observation
	scanner := bufio.NewScanner(f)
	first := true
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if strings.HasPrefix(line, "date,") {
				continue
			}
		}
		parts := strings.Split(line, ",")
		if len(parts) != 3 {
			return nil, fmt.Errorf("access: fixture %s: malformed row %q", path, line)
		}
		date, rowField, rawValue := parts[0], parts[1], parts[2]
		if rowField != field {
			continue
		}
		if date < startDate || date > endDate {
			continue
		}
		v, err := strconv.ParseFloat(rawValue, 64)
		if err != nil {
			return nil, fmt.Errorf("access: fixture %s: parse value %q: %w", path, rawValue, err)
		}
		out = append(out, Observation{Date: date, Value: v})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("access: scan fixture %s: %w", path, err)
	}
	return out, nil
}

var _ SeriesProvider = (*FixtureSeriesProvider)(nil)
