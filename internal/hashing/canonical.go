// Package hashing implements QuantLab's single canonicalization routine.
// Every identity derived from hashing anywhere in the
// repo — request fingerprints, snapshot content hashes, portfolio snapshot
// hashes, scenario-set hashes — MUST go through CanonicalJSON/ContentHash
// in this package. Using any other serialization for an identity is a bug:
// hashes would drift between equivalent logical values.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Canonicalizer produces the canonical dict for a value: a fully ordered,
// normalized mapping. Keys will be sorted by
// CanonicalJSON, so CanonicalMap need only guarantee that set-like fields
// (slices with set semantics) are themselves sorted before insertion.
type Canonicalizer interface {
	CanonicalMap() (map[string]interface{}, error)
}

// CanonicalJSON serializes a Canonicalizer's canonical map with sorted
// keys, compact separators, and ASCII-only output: the canonical_json
// contract (sort_keys=true, separators=(",",":"),
// ensure_ascii=true). Dates/timestamps must already be ISO-8601 strings and
// floats must already be finite by the time CanonicalMap returns; this
// function re-validates both as a last line of defense.
func CanonicalJSON(c Canonicalizer) ([]byte, error) {
	m, err := c.CanonicalMap()
	if err != nil {
		return nil, fmt.Errorf("canonical map: %w", err)
	}
	if err := checkFinite(m); err != nil {
		return nil, err
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("canonical json marshal: %w", err)
	}
	return ensureASCII(raw), nil
}

// ContentHash computes sha256(CanonicalJSON(c)) hex-encoded — the identity
// used for request fingerprints, snapshot hashes, portfolio hashes, and
// scenario-set hashes throughout the repo.
func ContentHash(c Canonicalizer) (string, error) {
	raw, err := CanonicalJSON(c)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

// Sha256Hex hex-encodes sha256(raw), the same primitive ContentHash uses
// internally, exposed for callers that already hold canonical bytes (e.g.
// an integrity check recomputing a stored snapshot's hash without
// re-canonicalizing it).
func Sha256Hex(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// ISOTime renders t as ISO-8601 UTC with an explicit offset, the encoding
// every timestamp field in a canonical map must use.
func ISOTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// ISODate renders t as an ISO-8601 calendar date (YYYY-MM-DD), used for
// date-only fields such as Portfolio.as_of's date component or window
// bounds.
func ISODate(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// SortedStrings returns a sorted copy of ss, for building canonical maps
// out of set-like string fields (asset lists, tag sets, field sets).
func SortedStrings(ss []string) []string {
	out := make([]string, len(ss))
	copy(out, ss)
	sort.Strings(out)
	return out
}

// Finite validates a float64 is finite (not NaN/Inf), returning it
// unchanged on success. Every numeric leaf in a canonical map must pass
// through this.
func Finite(v float64, field string) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("field %q is not finite: %v", field, v)
	}
	return v, nil
}

func checkFinite(v interface{}) error {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("canonical map contains non-finite float: %v", t)
		}
	case map[string]interface{}:
		for _, vv := range t {
			if err := checkFinite(vv); err != nil {
				return err
			}
		}
	case []interface{}:
		for _, vv := range t {
			if err := checkFinite(vv); err != nil {
				return err
			}
		}
	}
	return nil
}

// ensureASCII rewrites any non-ASCII byte sequence in a JSON document as a
// \uXXXX escape (with surrogate pairs above U+FFFF), matching Python's
// json.dumps(ensure_ascii=True) used by the reference canonicalization
// routine this repo's hashing must agree with bit-for-bit across languages.
func ensureASCII(raw []byte) []byte {
	s := string(raw)
	needsEscape := false
	for _, r := range s {
		if r > 0x7f {
			needsEscape = true
			break
		}
	}
	if !needsEscape {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range s {
		if r <= 0x7f {
			b.WriteRune(r)
			continue
		}
		if r > 0xffff {
			r -= 0x10000
			hi := 0xd800 + (r >> 10)
			lo := 0xdc00 + (r & 0x3ff)
			fmt.Fprintf(&b, `\u%04x\u%04x`, hi, lo)
			continue
		}
		fmt.Fprintf(&b, `\u%04x`, r)
	}
	return []byte(b.String())
}
