package access

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	pqfile "github.com/apache/arrow-go/v18/parquet/file"
	pqschema "github.com/apache/arrow-go/v18/parquet/schema"
	"github.com/redis/go-redis/v9"

	"github.com/quantlab/quantlab/internal/quantschema"
)

// manifestAccelTTL bounds how long a manifest lives in the Redis
// accelerator before a cache-hit falls back to the on-disk copy.
const manifestAccelTTL = 6 * time.Hour

// Manifest is the cache-hit record the access service reads on a replay
// request instead of calling the provider again: the exact request JSON,
// its hash, lineage, storage paths, and a quality summary.
type Manifest struct {
	RequestJSON    json.RawMessage        `json:"request_json"`
	RequestHash    string                 `json:"request_hash"`
	Provider       string                 `json:"provider"`
	IngestionTsUTC time.Time              `json:"ingestion_ts_utc"`
	AsOfUTC        *time.Time             `json:"as_of_utc,omitempty"`
	DatasetVersion string                 `json:"dataset_version,omitempty"`
	CodeVersion    string                 `json:"code_version,omitempty"`
	StoragePaths   []string               `json:"storage_paths"`
	QualitySummary ManifestQualitySummary `json:"quality_summary"`
}

// ManifestQualitySummary is the JSON-serializable projection of
// QualitySummary written into a manifest.
type ManifestQualitySummary struct {
	MissingCount       int                 `json:"missing_count"`
	DroppedDateCount   int                 `json:"dropped_date_count"`
	DuplicatesResolved int                 `json:"duplicates_resolved"`
	Flags              map[string][]string `json:"flags"`
}

// Cache persists per-asset parquet parts and request manifests under Root
// per the layout: cache/market/<provider>/<asset>/1D/part-YYYY.parquet and
// cache/manifests/<request_hash>.json. When Redis is set, manifest lookups
// are accelerated through it; the on-disk manifest stays the durable copy
// and is never bypassed for writes.
type Cache struct {
	Root  string
	Redis *redis.Client
}

// NewCache constructs a Cache rooted at dir, creating it if necessary, with
// no Redis accelerator.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("access: create cache root %s: %w", dir, err)
	}
	return &Cache{Root: dir}, nil
}

// NewCacheWithRedis constructs a Cache rooted at dir and fronted by a
// request-hash to manifest-JSON accelerator at redisAddr. A cache hit
// served from Redis never touches the on-disk manifest store or the
// provider.
func NewCacheWithRedis(dir, redisAddr string) (*Cache, error) {
	c, err := NewCache(dir)
	if err != nil {
		return nil, err
	}
	c.Redis = redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		MaxRetries:   3,
	})
	return c, nil
}

func (c *Cache) manifestAccelKey(requestHash string) string {
	return "quantlab:manifest:" + requestHash
}

func (c *Cache) manifestPath(requestHash string) string {
	return filepath.Join(c.Root, "manifests", requestHash+".json")
}

func (c *Cache) assetPartPath(provider string, asset quantschema.MarketDataId, year string) string {
	return filepath.Join(c.Root, "market", provider, string(asset), "1D", "part-"+year+".parquet")
}

// ReadManifest reads back a previously written manifest, or returns
// (nil, false, nil) if none exists — the signal the access service uses
// to decide whether this is a cache hit. A Redis hit skips the disk read
// entirely; a Redis miss or a disabled accelerator falls back to disk and,
// on a disk hit, repopulates Redis for the next lookup.
func (c *Cache) ReadManifest(requestHash string) (*Manifest, bool, error) {
	if c.Redis != nil {
		ctx := context.Background()
		raw, err := c.Redis.Get(ctx, c.manifestAccelKey(requestHash)).Bytes()
		if err == nil {
			var m Manifest
			if uerr := json.Unmarshal(raw, &m); uerr == nil {
				return &m, true, nil
			}
		} else if err != redis.Nil {
			return nil, false, fmt.Errorf("access: redis manifest lookup %s: %w", requestHash, err)
		}
	}

	raw, err := os.ReadFile(c.manifestPath(requestHash))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("access: read manifest %s: %w", requestHash, err)
	}
	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false, fmt.Errorf("access: unmarshal manifest %s: %w", requestHash, err)
	}
	if c.Redis != nil {
		c.Redis.Set(context.Background(), c.manifestAccelKey(requestHash), raw, manifestAccelTTL)
	}
	return &m, true, nil
}

// WriteManifest persists m, overwriting any prior manifest for the same
// request hash (a manifest is a cache entry, not lineage of record — the
// registry is the append-only log; caches may be rebuilt), and refreshes
// the Redis accelerator entry when one is configured.
func (c *Cache) WriteManifest(m Manifest) error {
	path := c.manifestPath(m.RequestHash)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("access: mkdir for manifest: %w", err)
	}
	raw, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("access: marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("access: write manifest: %w", err)
	}
	if c.Redis != nil {
		if err := c.Redis.Set(context.Background(), c.manifestAccelKey(m.RequestHash), raw, manifestAccelTTL).Err(); err != nil {
			return fmt.Errorf("access: refresh redis manifest accelerator: %w", err)
		}
	}
	return nil
}

// assetParquetSchema builds a group node with one optional double column
// per field, plus the date key.
func assetParquetSchema(fields []string) *pqschema.GroupNode {
	nodes := pqschema.FieldList{
		pqschema.MustPrimitive(pqschema.NewPrimitiveNodeConverted(
			"date", parquet.Repetitions.Required, parquet.Types.ByteArray, pqschema.ConvertedTypes.UTF8, 0, 0, 0, -1)),
	}
	for _, f := range fields {
		nodes = append(nodes, pqschema.NewFloat64Node(f, parquet.Repetitions.Optional, -1))
	}
	return pqschema.MustGroup(pqschema.NewGroupNode("schema", parquet.Repetitions.Required, nodes, -1))
}

// WriteAssetParquet writes one asset's aligned rows (dates + one column per
// field, nil meaning a gap) to its Year-partitioned part file at
// <root>/market/<provider>/<asset>/1D/part-<year>.parquet, grouping rows by
// the calendar year of each date and returning every storage path written
// so the manifest can cite them.
func (c *Cache) WriteAssetParquet(provider string, asset quantschema.MarketDataId, dates []string, columns map[string][]*float64) ([]string, error) {
	fields := make([]string, 0, len(columns))
	for f := range columns {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	byYear := map[string][]int{}
	for i, d := range dates {
		if len(d) < 4 {
			continue
		}
		year := d[:4]
		byYear[year] = append(byYear[year], i)
	}

	var paths []string
	years := make([]string, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	sort.Strings(years)

	for _, year := range years {
		idxs := byYear[year]
		path := c.assetPartPath(provider, asset, year)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("access: mkdir for parquet part: %w", err)
		}
		if err := writeParquetPart(path, fields, dates, columns, idxs); err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeParquetPart(path string, fields []string, dates []string, columns map[string][]*float64, idxs []int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("access: create parquet part %s: %w", path, err)
	}
	defer f.Close()

	props := parquet.NewWriterProperties(
		parquet.WithVersion(parquet.V2_LATEST),
		parquet.WithCompression(compress.Codecs.Snappy))

	node := assetParquetSchema(fields)
	pw := pqfile.NewParquetWriter(f, node, pqfile.WithWriterProps(props))
	defer pw.Close()

	rgw := pw.AppendBufferedRowGroup()
	defer rgw.Close()

	cw, err := rgw.Column(0)
	if err != nil {
		return fmt.Errorf("access: date column writer: %w", err)
	}
	dateCol := cw.(*pqfile.ByteArrayColumnChunkWriter)
	for _, i := range idxs {
		if _, err := dateCol.WriteBatch([]parquet.ByteArray{parquet.ByteArray(dates[i])}, nil, nil); err != nil {
			return fmt.Errorf("access: write date row: %w", err)
		}
	}

	for fieldIdx, field := range fields {
		cw, err := rgw.Column(fieldIdx + 1)
		if err != nil {
			return fmt.Errorf("access: column writer for %s: %w", field, err)
		}
		valCol := cw.(*pqfile.Float64ColumnChunkWriter)
		col := columns[field]
		for _, i := range idxs {
			if col[i] == nil {
				if _, err := valCol.WriteBatch(nil, []int16{0}, nil); err != nil {
					return fmt.Errorf("access: write null %s: %w", field, err)
				}
				continue
			}
			if _, err := valCol.WriteBatch([]float64{*col[i]}, []int16{1}, nil); err != nil {
				return fmt.Errorf("access: write %s value: %w", field, err)
			}
		}
	}

	if err := pw.FlushWithFooter(); err != nil {
		return fmt.Errorf("access: flush parquet part %s: %w", path, err)
	}
	return nil
}

// ReadAssetParquet reads back every part file under
// <root>/market/<provider>/<asset>/1D/ whose year falls in [startYear,
// endYear] and merges them into a single date-ordered set of columns, the
// inverse of WriteAssetParquet used to serve cache-hit replay requests
// without calling the provider.
func (c *Cache) ReadAssetParquet(provider string, asset quantschema.MarketDataId, startYear, endYear string) ([]string, map[string][]*float64, error) {
	dir := filepath.Join(c.Root, "market", provider, string(asset), "1D")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, map[string][]*float64{}, nil
		}
		return nil, nil, fmt.Errorf("access: list parquet parts %s: %w", dir, err)
	}

	var allDates []string
	merged := map[string][]*float64{}
	for _, ent := range entries {
		name := ent.Name()
		if len(name) < len("part-YYYY.parquet") {
			continue
		}
		year := name[len("part-") : len("part-")+4]
		if year < startYear || year > endYear {
			continue
		}
		dates, cols, err := readParquetPart(filepath.Join(dir, name))
		if err != nil {
			return nil, nil, err
		}
		allDates = append(allDates, dates...)
		for field, vals := range cols {
			merged[field] = append(merged[field], vals...)
		}
	}
	return allDates, merged, nil
}

func readParquetPart(path string) ([]string, map[string][]*float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("access: open parquet part %s: %w", path, err)
	}
	defer f.Close()

	reader, err := pqfile.NewParquetReader(f)
	if err != nil {
		return nil, nil, fmt.Errorf("access: open parquet reader %s: %w", path, err)
	}
	defer reader.Close()

	schema := reader.MetaData().Schema
	fieldNames := make([]string, schema.NumColumns())
	for i := 0; i < schema.NumColumns(); i++ {
		fieldNames[i] = schema.Column(i).Name()
	}

	var dates []string
	cols := make(map[string][]*float64, len(fieldNames)-1)
	for _, name := range fieldNames[1:] {
		cols[name] = nil
	}

	for rg := 0; rg < reader.NumRowGroups(); rg++ {
		rgr := reader.RowGroup(rg)
		numRows := rgr.NumRows()

		dateChunk, err := rgr.Column(0)
		if err != nil {
			return nil, nil, fmt.Errorf("access: date column in %s: %w", path, err)
		}
		dateReader := dateChunk.(*pqfile.ByteArrayColumnChunkReader)
		dateValues := make([]parquet.ByteArray, numRows)
		if _, _, err := dateReader.ReadBatch(numRows, dateValues, nil, nil); err != nil {
			return nil, nil, fmt.Errorf("access: read date batch in %s: %w", path, err)
		}
		for _, v := range dateValues {
			dates = append(dates, string(v))
		}

		for i, name := range fieldNames[1:] {
			chunk, err := rgr.Column(i + 1)
			if err != nil {
				return nil, nil, fmt.Errorf("access: column %s in %s: %w", name, path, err)
			}
			valReader := chunk.(*pqfile.Float64ColumnChunkReader)
			values := make([]float64, numRows)
			defLevels := make([]int16, numRows)
			if _, _, err := valReader.ReadBatch(numRows, values, defLevels, nil); err != nil {
				return nil, nil, fmt.Errorf("access: read %s batch in %s: %w", name, path, err)
			}
			// ReadBatch packs the non-null values densely at the front of
			// values; defLevels has one entry per row. Walk them with
			// separate cursors or a null row shifts every later value.
			rowCol := make([]*float64, numRows)
			cursor := 0
			for j := range defLevels {
				if defLevels[j] > 0 {
					v := values[cursor]
					cursor++
					rowCol[j] = &v
				}
			}
			cols[name] = append(cols[name], rowCol...)
		}
	}
	return dates, cols, nil
}
