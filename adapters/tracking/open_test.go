package tracking

import (
	"context"
	"path/filepath"
	"testing"

	"mlgate/adapters/tracking/filestore"
	"mlgate/adapters/tracking/sqlstore"
	"mlgate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSelectsBackendByScheme(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	fileBackend, err := Open(ctx, "file://"+filepath.ToSlash(filepath.Join(dir, "mlruns")), "", nil)
	require.NoError(t, err)
	defer fileBackend.Close()
	assert.IsType(t, &filestore.Store{}, fileBackend.Store)
	assert.DirExists(t, filepath.Join(dir, "mlruns", "0"))

	plain, err := Open(ctx, filepath.Join(dir, "plain"), "", nil)
	require.NoError(t, err)
	defer plain.Close()
	assert.IsType(t, &filestore.Store{}, plain.Store)

	sqlBackend, err := Open(ctx, "sqlite://"+filepath.ToSlash(filepath.Join(dir, "tracking.db")), filepath.Join(dir, "artifacts"), nil)
	require.NoError(t, err)
	defer sqlBackend.Close()
	assert.IsType(t, &sqlstore.Store{}, sqlBackend.Store)
	assert.FileExists(t, filepath.Join(dir, "tracking.db"))
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "http://tracking.example:5000", "", nil)
	require.Error(t, err)
	assert.Equal(t, errors.CodeConfigInvalid, errors.GetCode(err))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://user:xxxxx@db/mlgate", redact("postgres://user:secret@db/mlgate"))
	assert.Equal(t, "file:///tmp/mlruns", redact("file:///tmp/mlruns"))
}
