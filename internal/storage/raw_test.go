package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRawZonePutGetRoundtrip(t *testing.T) {
	zone, err := NewLocalZone(t.TempDir())
	require.NoError(t, err)
	raw := NewRawZone(zone)

	envelope := RawEnvelope{
		IngestRunID:        "run-1",
		RequestFingerprint: "fp-1",
		Provider:           "fixture",
		Endpoint:           "fixture://local",
		PayloadFormat:      "csv",
		FetchedAtTs:        time.Date(2024, 1, 2, 21, 0, 0, 0, time.UTC),
		HTTPStatus:         200,
		Attempts:           1,
	}
	payload := []byte("instrument_id,date,open,high,low,close,volume\n")

	require.NoError(t, raw.Put(envelope, "csv", payload))

	gotPayload, gotEnvelope, err := raw.Get("run-1", "fp-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, payload, gotPayload)
	assert.Equal(t, envelope.Provider, gotEnvelope.Provider)
	assert.Equal(t, envelope.RequestFingerprint, gotEnvelope.RequestFingerprint)
	assert.True(t, envelope.FetchedAtTs.Equal(gotEnvelope.FetchedAtTs))
}

func TestRawZoneWriteOnce(t *testing.T) {
	zone, err := NewLocalZone(t.TempDir())
	require.NoError(t, err)
	raw := NewRawZone(zone)

	envelope := RawEnvelope{IngestRunID: "run-1", RequestFingerprint: "fp-1"}
	require.NoError(t, raw.Put(envelope, "csv", []byte("a")))

	err = raw.Put(envelope, "csv", []byte("b"))
	require.Error(t, err)
	var overwrite *SnapshotOverwriteError
	require.ErrorAs(t, err, &overwrite)
}

func TestRawZoneExists(t *testing.T) {
	zone, err := NewLocalZone(t.TempDir())
	require.NoError(t, err)
	raw := NewRawZone(zone)

	ok, err := raw.Exists("run-1", "fp-1", "csv")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, raw.Put(RawEnvelope{IngestRunID: "run-1", RequestFingerprint: "fp-1"}, "csv", []byte("a")))

	ok, err = raw.Exists("run-1", "fp-1", "csv")
	require.NoError(t, err)
	assert.True(t, ok)
}
