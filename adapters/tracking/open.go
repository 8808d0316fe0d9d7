package tracking

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"mlgate/adapters/tracking/artifacts"
	"mlgate/adapters/tracking/filestore"
	"mlgate/adapters/tracking/sqlstore"
	"mlgate/internal"
	"mlgate/internal/errors"
	"mlgate/ports"
)

// Backend is an opened tracking store with its artifact repository
type Backend struct {
	Store     ports.TrackingStore
	Artifacts ports.ArtifactRepository
	URI       string
}

// Close releases the store
func (b *Backend) Close() error {
	return b.Store.Close()
}

// Open selects a store implementation from the URI scheme:
//
//	file:///abs/mlruns or a plain path   directory store
//	sqlite:///abs/tracking.db            SQLite metadata, artifacts under artifactRoot
//	postgres://user@host/db              PostgreSQL metadata, artifacts under artifactRoot
func Open(ctx context.Context, uri, artifactRoot string, logger *internal.Logger) (*Backend, error) {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	scheme := ""
	if i := strings.Index(uri, "://"); i > 0 {
		scheme = strings.ToLower(uri[:i])
	}

	var (
		store ports.TrackingStore
		err   error
	)
	switch scheme {
	case "", "file":
		store, err = filestore.New(filepath.FromSlash(strings.TrimPrefix(uri, "file://")), logger)
	case "sqlite":
		path := strings.TrimPrefix(uri, uri[:len(scheme)+3])
		if path == "" {
			return nil, errors.ConfigInvalid("sqlite tracking URI needs a database path")
		}
		store, err = sqlstore.Open(ctx, sqlstore.DriverSQLite, path, artifactRoot, logger)
	case "postgres", "postgresql":
		if _, perr := url.Parse(uri); perr != nil {
			return nil, errors.WithCode(errors.CodeConfigInvalid, perr, "invalid postgres tracking URI")
		}
		store, err = sqlstore.Open(ctx, sqlstore.DriverPostgres, uri, artifactRoot, logger)
	default:
		return nil, errors.ConfigInvalid(fmt.Sprintf("unsupported tracking URI scheme %q", scheme))
	}
	if err != nil {
		return nil, err
	}

	logger.Debug("[Tracking] opened %s store at %s", storeKind(scheme), redact(uri))
	return &Backend{Store: store, Artifacts: artifacts.NewLocalRepository(logger), URI: uri}, nil
}

func storeKind(scheme string) string {
	if scheme == "" {
		return "file"
	}
	return scheme
}

// redact drops credentials from URIs before logging
func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	return u.Redacted()
}
