package herald

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileKV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "state.json")

	kv, err := NewFileKV(path)
	require.NoError(t, err)

	_, present, err := kv.Get("last_notification")
	require.NoError(t, err)
	assert.False(t, present)

	require.NoError(t, kv.Set("last_notification", "1700000000"))

	// Reopen: the value survives the process.
	reopened, err := NewFileKV(path)
	require.NoError(t, err)
	value, present, err := reopened.Get("last_notification")
	require.NoError(t, err)
	assert.True(t, present)
	assert.Equal(t, "1700000000", value)
}

func TestFileKV_CorruptFileStartsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, os.WriteFile(path, []byte("{definitely not json"), 0600))

	kv, err := NewFileKV(path)
	require.NoError(t, err, "corruption must not be fatal")

	_, present, err := kv.Get("last_notification")
	require.NoError(t, err)
	assert.False(t, present)

	// And it's writable again.
	require.NoError(t, kv.Set("last_notification", "1"))
}

func TestFileKV_OverwriteKeepsOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	kv, err := NewFileKV(path)
	require.NoError(t, err)

	require.NoError(t, kv.Set("a", "1"))
	require.NoError(t, kv.Set("b", "2"))
	require.NoError(t, kv.Set("a", "3"))

	reopened, err := NewFileKV(path)
	require.NoError(t, err)
	a, _, _ := reopened.Get("a")
	b, _, _ := reopened.Get("b")
	assert.Equal(t, "3", a)
	assert.Equal(t, "2", b)
}
