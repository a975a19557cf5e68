package storage

import (
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// RawEnvelope is the metadata sidecar stored alongside every raw payload,
// keyed by (ingest_run_id, request_fingerprint). It is encoded with
// msgpack (distinct from the canonical JSON used for content hashing —
// the raw zone is a write-once cache of provider bytes, not a hashed
// identity).
type RawEnvelope struct {
	IngestRunID        string
	RequestFingerprint string
	Provider           string
	Endpoint           string
	PayloadFormat      string
	FetchedAtTs        time.Time
	HTTPStatus         int
	Attempts           int
}

// RawZone is the write-once store for provider payloads, keyed by
// (ingest_run_id, request_fingerprint):
// raw/ingest_run_id=<ID>/request=<FPRINT>/{payload.<ext>, envelope.msgpack}.
type RawZone struct {
	zone Zone
}

// NewRawZone wraps zone as a RawZone.
func NewRawZone(zone Zone) *RawZone { return &RawZone{zone: zone} }

func rawBaseKey(ingestRunID, requestFingerprint string) string {
	return fmt.Sprintf("ingest_run_id=%s/request=%s", ingestRunID, requestFingerprint)
}

// Put writes payload and its envelope under the (ingest_run_id,
// request_fingerprint) key. ext is the payload file extension ("csv",
// "json"). Both writes are write-once: a second Put for the same key
// fails with SnapshotOverwriteError without touching either file.
func (z *RawZone) Put(envelope RawEnvelope, ext string, payload []byte) error {
	base := rawBaseKey(envelope.IngestRunID, envelope.RequestFingerprint)

	packed, err := msgpack.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("storage: marshal raw envelope: %w", err)
	}

	if err := z.zone.Put(base+"/payload."+ext, payload); err != nil {
		return fmt.Errorf("storage: put raw payload: %w", err)
	}
	if err := z.zone.Put(base+"/envelope.msgpack", packed); err != nil {
		return fmt.Errorf("storage: put raw envelope: %w", err)
	}
	return nil
}

// Get reads back the payload and envelope for (ingestRunID,
// requestFingerprint).
func (z *RawZone) Get(ingestRunID, requestFingerprint, ext string) ([]byte, RawEnvelope, error) {
	base := rawBaseKey(ingestRunID, requestFingerprint)

	payload, err := z.zone.Get(base + "/payload." + ext)
	if err != nil {
		return nil, RawEnvelope{}, fmt.Errorf("storage: get raw payload: %w", err)
	}
	packed, err := z.zone.Get(base + "/envelope.msgpack")
	if err != nil {
		return nil, RawEnvelope{}, fmt.Errorf("storage: get raw envelope: %w", err)
	}
	var envelope RawEnvelope
	if err := msgpack.Unmarshal(packed, &envelope); err != nil {
		return nil, RawEnvelope{}, fmt.Errorf("storage: unmarshal raw envelope: %w", err)
	}
	return payload, envelope, nil
}

// Exists reports whether (ingestRunID, requestFingerprint) has already
// been written.
func (z *RawZone) Exists(ingestRunID, requestFingerprint, ext string) (bool, error) {
	return z.zone.Exists(rawBaseKey(ingestRunID, requestFingerprint) + "/payload." + ext)
}
