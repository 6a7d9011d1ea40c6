package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryGetPutDelete(t *testing.T) {
	var kv KV = NewMemory()
	_, err := kv.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Put("topology", []byte("snapshot-1")))
	v, err := kv.Get("topology")
	require.NoError(t, err)
	assert.Equal(t, "snapshot-1", string(v))

	require.NoError(t, kv.Delete("topology"))
	_, err = kv.Get("topology")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLevelDBRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "nexdigi.ldb"))
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put("route-health", []byte("{}")))
	v, err := db.Get("route-health")
	require.NoError(t, err)
	assert.Equal(t, "{}", string(v))

	_, err = db.Get("absent")
	assert.ErrorIs(t, err, ErrNotFound)
}
