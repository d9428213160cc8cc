package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKeyring(t *testing.T) *Keyring {
	t.Helper()
	return OpenAt(filepath.Join(t.TempDir(), "credentials.json"))
}

func TestKeyringRoundTrip(t *testing.T) {
	t.Parallel()

	k := testKeyring(t)
	require.NoError(t, k.Set("gemini", "sk-test-123"))

	got, err := k.Get("gemini")
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", got)

	// Provider names are normalized.
	got, err = k.Get("  GEMINI ")
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", got)
}

func TestKeyringGetMissing(t *testing.T) {
	t.Parallel()

	_, err := testKeyring(t).Get("gemini")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestKeyringDelete(t *testing.T) {
	t.Parallel()

	k := testKeyring(t)
	require.NoError(t, k.Set("gemini", "sk-test-123"))
	require.NoError(t, k.Delete("gemini"))

	_, err := k.Get("gemini")
	require.ErrorIs(t, err, ErrKeyNotFound)

	// A second delete reports there was nothing to remove.
	require.ErrorIs(t, k.Delete("gemini"), ErrKeyNotFound)
}

func TestKeyringSetOverwrites(t *testing.T) {
	t.Parallel()

	k := testKeyring(t)
	require.NoError(t, k.Set("gemini", "old"))
	require.NoError(t, k.Set("gemini", "new"))

	got, err := k.Get("gemini")
	require.NoError(t, err)
	require.Equal(t, "new", got)
}

func TestKeyringProviders(t *testing.T) {
	t.Parallel()

	k := testKeyring(t)
	names, err := k.Providers()
	require.NoError(t, err)
	require.Empty(t, names)

	require.NoError(t, k.Set("ollama", "x"))
	require.NoError(t, k.Set("gemini", "y"))

	names, err = k.Providers()
	require.NoError(t, err)
	require.Equal(t, []string{"gemini", "ollama"}, names)
}

func TestKeyringRejectsBadInput(t *testing.T) {
	t.Parallel()

	k := testKeyring(t)
	require.Error(t, k.Set("  ", "key"))
	require.Error(t, k.Set("gemini", "   "))
	_, err := k.Get("")
	require.Error(t, err)
	require.Error(t, k.Delete(""))
}

func TestKeyringFileIsNotPlainText(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "credentials.json")
	k := OpenAt(path)
	require.NoError(t, k.Set("gemini", "sk-super-secret"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotContains(t, string(raw), "sk-super-secret")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasSuffix(e.Name(), ".tmp"))
	}
}
