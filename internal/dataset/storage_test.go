package dataset

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"mlgate/domain/core"
	"mlgate/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const sampleCSV = "\"alcohol\";\"pH\";\"quality\"\n9.4;3.51;5\n9.8;3.2;5\n10;3.26;6\n9.5;3.16;6\n"

type countingFetcher struct {
	body  []byte
	err   error
	calls int
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.body, nil
}

func TestLoadPopulatesCacheThenReusesIt(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "data", "wine.csv")
	fetcher := &countingFetcher{body: []byte(sampleCSV)}
	var progress bytes.Buffer

	repo := NewCachedRepository(StorageConfig{URL: "https://example.test/wine.csv", CachePath: cachePath}, fetcher, nil, &progress)

	first, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, "https://example.test/wine.csv", first.Source)
	assert.Contains(t, progress.String(), "[DATA] Downloading: https://example.test/wine.csv")
	assert.Contains(t, progress.String(), "[DATA] Saved to: "+cachePath)

	onDisk, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, string(onDisk))

	second, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls, "populated cache must not touch the network")
	assert.Equal(t, first.Table, second.Table)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, core.NewDatasetHash([]byte(sampleCSV)), second.Hash)
}

func TestLoadPropagatesNetworkError(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "wine.csv")
	fetcher := &countingFetcher{err: errors.NetworkError("GET failed", nil)}

	repo := NewCachedRepository(StorageConfig{URL: "https://example.test/wine.csv", CachePath: cachePath}, fetcher, nil, nil)

	_, err := repo.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))
	assert.Equal(t, 1, fetcher.calls)
	assert.NoFileExists(t, cachePath)
}

func TestLoadSchemaErrorKeepsCache(t *testing.T) {
	cachePath := filepath.Join(t.TempDir(), "wine.csv")
	fetcher := &countingFetcher{body: []byte("a,b,quality\n1,2,3\n")}

	repo := NewCachedRepository(StorageConfig{URL: "https://example.test/wine.csv", CachePath: cachePath}, fetcher, nil, nil)

	_, err := repo.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeSchema, errors.GetCode(err))
	assert.FileExists(t, cachePath)
}

func TestBuildProfile(t *testing.T) {
	repo := NewCachedRepository(StorageConfig{CachePath: writeCache(t, sampleCSV)}, &countingFetcher{}, nil, nil)
	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)

	profile, err := BuildProfile(loaded, "quality")
	require.NoError(t, err)

	assert.Equal(t, 4, profile.Rows)
	require.Len(t, profile.Columns, 3)
	require.NotNil(t, profile.TargetStats)
	assert.Equal(t, "quality", profile.TargetStats.Name)
	assert.InDelta(t, 5.5, profile.TargetStats.Mean, 1e-12)
	assert.InDelta(t, 0.5, profile.TargetStats.StdDev, 1e-12)
	assert.Equal(t, 5.0, profile.TargetStats.Min)
	assert.Equal(t, 6.0, profile.TargetStats.Max)
	assert.InDelta(t, 5.5, profile.TargetStats.Median, 1e-12)

	raw, err := profile.JSON()
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"sha256": "`+loaded.Hash.String()+`"`)
}

func writeCache(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	body, _ := args.Get(0).([]byte)
	return body, args.Error(1)
}

func TestLoadFetchesConfiguredURLOnce(t *testing.T) {
	const url = "https://example.test/winequality-red.csv"
	fetcher := new(mockFetcher)
	fetcher.On("Fetch", mock.Anything, url).Return([]byte(sampleCSV), nil).Once()

	repo := NewCachedRepository(StorageConfig{URL: url, CachePath: filepath.Join(t.TempDir(), "wine.csv")}, fetcher, nil, nil)
	for i := 0; i < 3; i++ {
		loaded, err := repo.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 4, loaded.Table.NumRows())
	}

	fetcher.AssertExpectations(t)
	fetcher.AssertNumberOfCalls(t, "Fetch", 1)
}

func TestWriteCacheFileFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "wine.csv")
	require.NoError(t, os.MkdirAll(filepath.Join(target, "occupied"), 0o755))

	err := writeCacheFile(target, []byte(sampleCSV))
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary file must be removed")
	assert.True(t, entries[0].IsDir())
}

func TestLoadIgnoresInterruptedDownload(t *testing.T) {
	dir := t.TempDir()
	cachePath := filepath.Join(dir, "wine.csv")
	// what a killed process leaves behind mid-write
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".wine.csv.tmp-123"), []byte(sampleCSV[:20]), 0o644))

	fetcher := &countingFetcher{body: []byte(sampleCSV)}
	repo := NewCachedRepository(StorageConfig{URL: "https://example.test/wine.csv", CachePath: cachePath}, fetcher, nil, nil)

	loaded, err := repo.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, 4, loaded.Table.NumRows())

	onDisk, err := os.ReadFile(cachePath)
	require.NoError(t, err)
	assert.Equal(t, sampleCSV, string(onDisk))
}
