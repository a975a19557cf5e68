package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalZonePutGetRoundtrip(t *testing.T) {
	zone, err := NewLocalZone(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, zone.Put("a/b.txt", []byte("hello")))

	exists, err := zone.Exists("a/b.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	data, err := zone.Get("a/b.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)
}

func TestLocalZoneRefusesOverwrite(t *testing.T) {
	zone, err := NewLocalZone(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, zone.Put("k", []byte("v1")))
	err = zone.Put("k", []byte("v2"))
	require.Error(t, err)
	var overwrite *SnapshotOverwriteError
	require.ErrorAs(t, err, &overwrite)

	data, err := zone.Get("k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), data, "failed overwrite must not touch the published value")
}

func TestLocalZoneNoStageFileLeftBehind(t *testing.T) {
	root := t.TempDir()
	zone, err := NewLocalZone(root)
	require.NoError(t, err)

	require.NoError(t, zone.Put("k", []byte("v")))

	_, statErr := filepath.Glob(filepath.Join(root, "*.stage"))
	require.NoError(t, statErr)
	matches, err := filepath.Glob(filepath.Join(root, "k.stage"))
	require.NoError(t, err)
	assert.Empty(t, matches, "stage file must be renamed away, not left behind")
}
