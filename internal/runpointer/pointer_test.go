package runpointer

import (
	"os"
	"path/filepath"
	"testing"

	"mlgate/domain/core"
	"mlgate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteThenRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultPath)

	require.NoError(t, Write(path, core.RunID("first")))
	require.NoError(t, Write(path, core.RunID("0123456789abcdef0123456789abcdef")))

	id, ok, err := Read(path)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, core.RunID("0123456789abcdef0123456789abcdef"), id)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef\n", string(raw))
}

func TestReadMissingOrBlank(t *testing.T) {
	dir := t.TempDir()

	_, ok, err := Read(filepath.Join(dir, "absent.txt"))
	require.NoError(t, err)
	assert.False(t, ok)

	blank := filepath.Join(dir, "blank.txt")
	require.NoError(t, os.WriteFile(blank, []byte("  \n"), 0o644))
	_, ok, err = Read(blank)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPath)
	require.NoError(t, os.WriteFile(path, []byte("../etc/passwd\n"), 0o644))

	_, _, err := Read(path)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}
