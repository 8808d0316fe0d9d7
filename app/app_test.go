package app

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"mlgate/adapters/tracking/artifacts"
	"mlgate/adapters/tracking/filestore"
	"mlgate/internal"
	"mlgate/internal/config"
	"mlgate/internal/dataset"
	"mlgate/internal/testkit"
	"mlgate/ports"

	"github.com/stretchr/testify/require"
)

// fixture wires both stages to shared adapters rooted in a temp dir
type fixture struct {
	cfg       *config.Config
	fetcher   *testkit.CountingFetcher
	store     ports.TrackingStore
	artifacts ports.ArtifactRepository
	logger    *internal.Logger
}

func wineCSV(t *testing.T, seed int64) []byte {
	t.Helper()
	gen := testkit.DefaultWineConfig()
	gen.Seed = seed
	body, err := testkit.NewWineDataGenerator(gen).GenerateCSV()
	require.NoError(t, err)
	return body
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Data.URL = "https://example.test/winequality-red.csv"
	cfg.Data.CachePath = filepath.Join(dir, "data", "winequality-red.csv")
	cfg.Tracking.URI = "file://" + filepath.ToSlash(filepath.Join(dir, "mlruns"))
	cfg.Tracking.ArtifactRoot = filepath.Join(dir, "mlruns")
	cfg.Tracking.PointerFile = filepath.Join(dir, "last_run_id.txt")
	return cfg
}

// newMemoryFixture uses the in-memory store and artifact repository
func newMemoryFixture(t *testing.T, body []byte) (*fixture, *testkit.TestKit) {
	t.Helper()
	kit := testkit.NewTestKit(body)
	return &fixture{
		cfg:       testConfig(t),
		fetcher:   kit.Fetcher,
		store:     kit.Store,
		artifacts: kit.Artifacts,
		logger:    internal.NewNopLogger(),
	}, kit
}

// newFileFixture uses the directory store and local artifacts
func newFileFixture(t *testing.T, body []byte) *fixture {
	t.Helper()
	cfg := testConfig(t)
	store, err := filestore.New(cfg.Tracking.ArtifactRoot, nil)
	require.NoError(t, err)
	return &fixture{
		cfg:       cfg,
		fetcher:   &testkit.CountingFetcher{Body: body},
		store:     store,
		artifacts: artifacts.NewLocalRepository(nil),
		logger:    internal.NewNopLogger(),
	}
}

func (f *fixture) data() ports.DatasetRepository {
	return f.dataWithProgress(nil)
}

// dataWithProgress sends the [DATA] lines to progress
func (f *fixture) dataWithProgress(progress io.Writer) ports.DatasetRepository {
	return dataset.NewCachedRepository(dataset.StorageConfig{
		URL:       f.cfg.Data.URL,
		CachePath: f.cfg.Data.CachePath,
		Delimiter: f.cfg.Data.DelimiterRune(),
	}, f.fetcher, f.logger, progress)
}

func (f *fixture) trainer() *TrainingService {
	return NewTrainingService(f.cfg, f.data(), f.store, f.artifacts, f.logger, nil)
}

func (f *fixture) validator() *ValidationService {
	return NewValidationService(f.cfg, f.data(), f.store, f.artifacts, f.logger, nil)
}

func (f *fixture) train(t *testing.T) *TrainingResult {
	t.Helper()
	res, err := f.trainer().Train(context.Background())
	require.NoError(t, err)
	return res
}
