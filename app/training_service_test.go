package app

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path"
	"strings"
	"testing"

	"mlgate/domain/core"
	"mlgate/domain/model"
	"mlgate/domain/run"
	internaldataset "mlgate/internal/dataset"
	"mlgate/internal/errors"
	"mlgate/internal/report"
	"mlgate/internal/testkit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrainLogsCompleteRun(t *testing.T) {
	f, kit := newMemoryFixture(t, wineCSV(t, 42))
	var out bytes.Buffer
	svc := NewTrainingService(f.cfg, f.dataWithProgress(&out), f.store, f.artifacts, f.logger, &out)

	res, err := svc.Train(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 16, res.TrainRows)
	assert.Equal(t, 4, res.TestRows)
	assert.Equal(t, 1, kit.Fetcher.Calls())

	rec, err := kit.Store.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, run.StatusFinished, rec.Info.Status)
	assert.False(t, rec.Info.EndTime.IsZero())

	params := rec.Data.Params
	assert.Equal(t, "Ridge", params[run.ParamModel])
	assert.Equal(t, "1", params[run.ParamAlpha])
	assert.Equal(t, "UCI Wine Quality (Red)", params[run.ParamDataset])
	assert.Equal(t, "0.2", params[run.ParamTestSize])
	assert.Equal(t, "42", params[run.ParamRandomState])
	assert.Equal(t, "11", params[run.ParamFeatureCount])
	assert.Equal(t, "quality", params[run.ParamTarget])
	assert.Equal(t, core.NewDatasetHash(wineCSV(t, 42)).String(), params[run.ParamDatasetHash])

	assert.Equal(t, res.Eval.RMSE, rec.Data.Metrics[run.MetricRMSE])
	assert.Equal(t, res.Eval.MSE, rec.Data.Metrics[run.MetricMSE])
	assert.Contains(t, rec.Data.Metrics, run.MetricMAE)
	assert.Contains(t, rec.Data.Metrics, run.MetricR2)

	assert.Equal(t, "mlgate", rec.Data.Tags[run.TagSource])
	assert.Equal(t, res.Manifest.Fingerprint().String(), rec.Data.Tags[run.TagFingerprint])

	for _, name := range []string{
		path.Join("model", model.MLModelFile),
		path.Join("model", model.PipelineFile),
		path.Join("model", model.InputExampleFile),
		internaldataset.ProfileFile,
		report.MarkdownFile,
		report.HTMLFile,
	} {
		_, err := kit.Artifacts.ReadArtifact(context.Background(), rec.Info.ArtifactURI, name)
		assert.NoError(t, err, name)
	}

	pointer, err := os.ReadFile(f.cfg.Tracking.PointerFile)
	require.NoError(t, err)
	assert.Equal(t, res.RunID.String()+"\n", string(pointer))

	text := out.String()
	assert.Contains(t, text, "[DATA] Downloading: https://example.test/winequality-red.csv")
	assert.Contains(t, text, "[MLflow] Experiment created: CI-CD-Workshop4")
	assert.Contains(t, text, "[MLflow] Run ID: "+res.RunID.String())
	assert.Contains(t, text, "Training OK | MSE=")
}

func TestTrainReusesExperimentAndCache(t *testing.T) {
	f, kit := newMemoryFixture(t, wineCSV(t, 42))

	first := f.train(t)
	second := f.train(t)

	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Equal(t, first.Experiment.ID, second.Experiment.ID)
	assert.Equal(t, first.Eval, second.Eval)
	assert.Equal(t, 1, kit.Fetcher.Calls())

	exps, err := kit.Store.ListExperiments(context.Background())
	require.NoError(t, err)
	assert.Len(t, exps, 1)

	pointer, err := os.ReadFile(f.cfg.Tracking.PointerFile)
	require.NoError(t, err)
	assert.Equal(t, second.RunID.String(), strings.TrimSpace(string(pointer)))
}

func TestTrainSchemaFailureBeforeFit(t *testing.T) {
	table, err := testkit.NewWineDataGenerator(testkit.DefaultWineConfig()).GenerateTable()
	require.NoError(t, err)
	f, kit := newMemoryFixture(t, testkit.EncodeCSV(table, ','))

	_, err = f.trainer().Train(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeSchema, errors.GetCode(err))

	exps, err := kit.Store.ListExperiments(context.Background())
	require.NoError(t, err)
	require.Len(t, exps, 1)
	runs, err := kit.Store.ListRuns(context.Background(), exps[0].ID)
	require.NoError(t, err)
	assert.Empty(t, runs)
	assert.Zero(t, kit.Artifacts.Calls())
	assert.NoFileExists(t, f.cfg.Tracking.PointerFile)

	// the downloaded bytes stay cached even though they did not parse
	assert.FileExists(t, f.cfg.Data.CachePath)
}

func TestTrainMissingTarget(t *testing.T) {
	f, _ := newMemoryFixture(t, wineCSV(t, 42))
	f.cfg.Data.Target = "rating"

	_, err := f.trainer().Train(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeSchema, errors.GetCode(err))
	assert.ErrorIs(t, err, core.ErrMissingColumn)
}

func TestTrainNetworkFailure(t *testing.T) {
	f, kit := newMemoryFixture(t, nil)
	kit.Fetcher.Err = errors.NetworkError("GET failed with status 503", nil)

	_, err := f.trainer().Train(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeNetwork, errors.GetCode(err))
	assert.NoFileExists(t, f.cfg.Data.CachePath)
}

func TestTrainExperimentUnavailable(t *testing.T) {
	f, kit := newMemoryFixture(t, wineCSV(t, 42))
	kit.Store.CreateExperimentErr = stderrors.New("read-only store")

	_, err := f.trainer().Train(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeTrackingStore, errors.GetCode(err))
	assert.Zero(t, kit.Fetcher.Calls())
}

type failingArtifacts struct {
	*testkit.InMemoryArtifactRepository
}

func (failingArtifacts) LogArtifact(ctx context.Context, artifactURI, p string, data []byte) error {
	return errors.FileSystemError("disk full", nil)
}

func TestTrainEndsRunFailed(t *testing.T) {
	f, kit := newMemoryFixture(t, wineCSV(t, 42))
	f.artifacts = failingArtifacts{kit.Artifacts}

	_, err := f.trainer().Train(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeFileSystem, errors.GetCode(err))

	exps, err := kit.Store.ListExperiments(context.Background())
	require.NoError(t, err)
	runs, err := kit.Store.ListRuns(context.Background(), exps[0].ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.StatusFailed, runs[0].Status)
	assert.NoFileExists(t, f.cfg.Tracking.PointerFile)
}

func TestTrainPointerWriteFailureEndsRunFailed(t *testing.T) {
	f, kit := newMemoryFixture(t, wineCSV(t, 42))
	f.cfg.Tracking.PointerFile = t.TempDir()

	_, err := f.trainer().Train(context.Background())
	require.Error(t, err)
	assert.Equal(t, errors.CodeFileSystem, errors.GetCode(err))
	assert.Contains(t, err.Error(), "failed to write run pointer")

	exps, err := kit.Store.ListExperiments(context.Background())
	require.NoError(t, err)
	runs, err := kit.Store.ListRuns(context.Background(), exps[0].ID)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.StatusFailed, runs[0].Status)
}

func TestEnsureExperimentLooksUpFirst(t *testing.T) {
	kit := testkit.NewTestKit(nil)
	ctx := context.Background()

	created, wasCreated, err := EnsureExperiment(ctx, kit.Store, "wine", nil)
	require.NoError(t, err)
	assert.True(t, wasCreated)

	kit.Store.CreateExperimentErr = stderrors.New("must not be called")
	found, wasCreated, err := EnsureExperiment(ctx, kit.Store, "wine", nil)
	require.NoError(t, err)
	assert.False(t, wasCreated)
	assert.Equal(t, created.ID, found.ID)
}
