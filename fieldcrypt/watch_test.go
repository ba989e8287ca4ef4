package fieldcrypt

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecrets(t *testing.T, path string, lines string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets")
	writeSecrets(t, path, "# rotation order: newest first\nfirst secret\n")

	src, err := Watch(path)
	require.NoError(t, err)
	defer src.Close()
	assert.Equal(t, 1, src.Keyset().Len())

	tok, err := src.Keyset().Encrypt([]byte("v"))
	require.NoError(t, err)

	writeSecrets(t, path, "second secret\nfirst secret\n")

	// The reload is asynchronous; poll until the new keyset lands.
	require.Eventually(t, func() bool {
		return src.Keyset().Len() == 2
	}, 5*time.Second, 10*time.Millisecond)

	// Values encrypted before the rotation are still readable.
	msg, err := src.Keyset().Decrypt(tok)
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), msg)
}

func TestWatchMissingFile(t *testing.T) {
	_, err := Watch(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestWatchBadReloadKeepsKeyset(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "secrets")
	writeSecrets(t, path, "only secret\n")

	src, err := Watch(path)
	require.NoError(t, err)
	defer src.Close()
	old := src.Keyset()

	// An empty file fails New with ErrNoKeys; the previous keyset stays.
	writeSecrets(t, path, "")
	time.Sleep(200 * time.Millisecond)
	assert.Same(t, old, src.Keyset())
}
