package dataset

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"mlgate/adapters/tabular"
	"mlgate/domain/core"
	domain "mlgate/domain/dataset"
	"mlgate/internal"
	"mlgate/internal/errors"
	"mlgate/ports"
)

// StorageConfig locates the remote dataset and its local cache
type StorageConfig struct {
	URL       string
	CachePath string
	Delimiter rune
}

// CachedRepository fetches the dataset once and reuses the cached copy on
// every later call. There is no cache validation or expiry.
type CachedRepository struct {
	config   StorageConfig
	fetcher  ports.DatasetFetcher
	logger   *internal.Logger
	progress io.Writer
}

// NewCachedRepository wires a fetcher to a cache path. progress receives
// the human-readable [DATA] lines and may be nil.
func NewCachedRepository(config StorageConfig, fetcher ports.DatasetFetcher, logger *internal.Logger, progress io.Writer) *CachedRepository {
	if config.Delimiter == 0 {
		config.Delimiter = ';'
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if progress == nil {
		progress = io.Discard
	}
	return &CachedRepository{config: config, fetcher: fetcher, logger: logger, progress: progress}
}

// Load returns the parsed cached dataset, downloading it first when the
// cache file is absent. The downloaded bytes are written to disk before
// parsing so a schema failure still leaves the cache populated.
func (s *CachedRepository) Load(ctx context.Context) (*domain.Loaded, error) {
	exists, err := s.Exists()
	if err != nil {
		return nil, err
	}

	source := s.config.CachePath
	if !exists {
		if err := s.populate(ctx); err != nil {
			return nil, err
		}
		source = s.config.URL
	} else {
		s.logger.Debug("[DataRepository] reusing cache %s", s.config.CachePath)
	}

	data, err := os.ReadFile(s.config.CachePath)
	if err != nil {
		return nil, errors.FileSystemError(fmt.Sprintf("failed to read cache %s", s.config.CachePath), err)
	}

	reader := tabular.NewDataReader(s.config.CachePath, s.config.Delimiter, s.logger)
	table, err := reader.Parse(data)
	if err != nil {
		return nil, err
	}

	hash := core.NewDatasetHash(data)
	s.logger.Info("[DataRepository] loaded %d rows x %d columns (sha256 %s)",
		table.NumRows(), table.NumCols(), core.Hash(hash).Short())

	return &domain.Loaded{Table: table, Hash: hash, Source: source}, nil
}

func (s *CachedRepository) populate(ctx context.Context) error {
	fmt.Fprintf(s.progress, "[DATA] Downloading: %s\n", s.config.URL)

	body, err := s.fetcher.Fetch(ctx, s.config.URL)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.config.CachePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.FileSystemError(fmt.Sprintf("failed to create cache directory %s", dir), err)
		}
	}
	if err := writeCacheFile(s.config.CachePath, body); err != nil {
		return errors.FileSystemError(fmt.Sprintf("failed to write cache %s", s.config.CachePath), err)
	}

	fmt.Fprintf(s.progress, "[DATA] Saved to: %s\n", s.config.CachePath)
	return nil
}

// Exists checks if the cache file is present
func (s *CachedRepository) Exists() (bool, error) {
	info, err := os.Stat(s.config.CachePath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errors.FileSystemError(fmt.Sprintf("failed to check cache %s", s.config.CachePath), err)
	}
	if info.IsDir() {
		return false, errors.FileSystemError(fmt.Sprintf("cache path %s is a directory", s.config.CachePath), nil)
	}
	return true, nil
}

// writeCacheFile writes data next to path and renames it into place, so
// path either holds every byte or does not exist.
func writeCacheFile(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
