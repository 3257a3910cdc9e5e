package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/1broseidon/tuck/internal/menubar"
)

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "nope", "hidden-items.json"))
	require.NoError(t, err)
	assert.Equal(t, 0, l.Len())
}

func TestSaveAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuck", "hidden-items.json")
	l := New(path)

	x := menubar.IdentityKey{Owner: "com.app.X", Title: "X"}
	y := menubar.IdentityKey{Owner: "pid:42", Title: "Y"}
	l.Replace(menubar.NewKeySet(x, y))
	require.NoError(t, l.Save())

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())
	assert.True(t, reopened.Contains(x))
	assert.True(t, reopened.Contains(y))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file left behind")
}

func TestKeysReturnsCopy(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "l.json"))
	x := menubar.IdentityKey{Owner: "a", Title: "b"}
	l.Replace(menubar.NewKeySet(x))

	keys := l.Keys()
	delete(keys, x)
	assert.True(t, l.Contains(x))
}

func TestClearPersistsEmptySet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l.json")
	l := New(path)
	l.Replace(menubar.NewKeySet(menubar.IdentityKey{Owner: "a", Title: "b"}))
	require.NoError(t, l.Save())

	l.Clear()
	require.NoError(t, l.Save())

	reopened, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, reopened.Len())
}

func TestOpen_RejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))
	_, err := Open(path)
	assert.Error(t, err)
}

func TestOpen_RejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "l.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"version": 99, "items": []}`), 0644))
	_, err := Open(path)
	assert.ErrorContains(t, err, "unsupported version")
}
