package testkit

import (
	"context"
	"errors"
	"testing"
	"time"

	"mlgate/domain/core"
	"mlgate/domain/run"
	"mlgate/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTrackingStoreContract exercises the behaviour every tracking store
// backend must share. newStore returns a fresh, empty store.
func RunTrackingStoreContract(t *testing.T, newStore func(t *testing.T) ports.TrackingStore) {
	t.Helper()

	t.Run("experiment lookup then create", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		_, err := store.GetExperimentByName(ctx, "CI-CD-Workshop4")
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrExperimentNotFound))

		created, err := store.CreateExperiment(ctx, "CI-CD-Workshop4")
		require.NoError(t, err)
		assert.Equal(t, "CI-CD-Workshop4", created.Name)
		assert.Equal(t, run.LifecycleActive, created.LifecycleStage)

		found, err := store.GetExperimentByName(ctx, "CI-CD-Workshop4")
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)

		byID, err := store.GetExperiment(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "CI-CD-Workshop4", byID.Name)

		_, err = store.CreateExperiment(ctx, "CI-CD-Workshop4")
		assert.Error(t, err, "duplicate names are rejected")

		experiments, err := store.ListExperiments(ctx)
		require.NoError(t, err)
		names := make([]string, 0, len(experiments))
		for _, e := range experiments {
			names = append(names, e.Name)
		}
		assert.Contains(t, names, "CI-CD-Workshop4")
	})

	t.Run("run round trip", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		exp, err := store.CreateExperiment(ctx, "roundtrip")
		require.NoError(t, err)

		start := core.NewTimestamp(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
		info, err := store.CreateRun(ctx, exp.ID, "train", start)
		require.NoError(t, err)
		assert.Equal(t, run.StatusRunning, info.Status)
		assert.NotEmpty(t, info.ArtifactURI)

		params := map[string]string{
			"model":        "Ridge",
			"alpha":        "1",
			"test_size":    "0.2",
			"random_state": "42",
		}
		require.NoError(t, store.LogParams(ctx, info.RunID, params))
		require.NoError(t, store.LogParams(ctx, info.RunID, map[string]string{"alpha": "1"}), "same value may be re-logged")
		assert.Error(t, store.LogParams(ctx, info.RunID, map[string]string{"alpha": "2"}))

		ts := core.NewTimestamp(time.Date(2026, 3, 1, 12, 0, 1, 0, time.UTC))
		require.NoError(t, store.LogMetric(ctx, info.RunID, run.Metric{Key: "rmse", Value: 0.9, Timestamp: ts}))
		require.NoError(t, store.LogMetric(ctx, info.RunID, run.Metric{Key: "rmse", Value: 0.6480000000000001, Timestamp: ts, Step: 1}))
		require.NoError(t, store.LogMetric(ctx, info.RunID, run.Metric{Key: "mse", Value: 0.42, Timestamp: ts}))
		require.NoError(t, store.SetTag(ctx, info.RunID, "mlgate.source", "mlgate train"))

		end := core.NewTimestamp(time.Date(2026, 3, 1, 12, 0, 5, 0, time.UTC))
		require.NoError(t, store.EndRun(ctx, info.RunID, run.StatusFinished, end))

		got, err := store.GetRun(ctx, info.RunID)
		require.NoError(t, err)
		assert.Equal(t, info.RunID, got.Info.RunID)
		assert.Equal(t, exp.ID, got.Info.ExperimentID)
		assert.Equal(t, run.StatusFinished, got.Info.Status)
		assert.Equal(t, start.UnixMilli(), got.Info.StartTime.UnixMilli())
		assert.Equal(t, end.UnixMilli(), got.Info.EndTime.UnixMilli())
		assert.Equal(t, params, got.Data.Params)
		assert.Equal(t, 0.6480000000000001, got.Data.Metrics["rmse"], "latest step wins, value is exact")
		assert.Equal(t, 0.42, got.Data.Metrics["mse"])
		assert.Equal(t, "mlgate train", got.Data.Tags["mlgate.source"])

		runs, err := store.ListRuns(ctx, exp.ID)
		require.NoError(t, err)
		require.Len(t, runs, 1)
		assert.Equal(t, info.RunID, runs[0].RunID)
	})

	t.Run("terminal runs are immutable", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		exp, err := store.CreateExperiment(ctx, "immutable")
		require.NoError(t, err)
		info, err := store.CreateRun(ctx, exp.ID, "", core.Now())
		require.NoError(t, err)
		require.NoError(t, store.EndRun(ctx, info.RunID, run.StatusFailed, core.Now()))

		err = store.LogParams(ctx, info.RunID, map[string]string{"late": "1"})
		assert.True(t, errors.Is(err, core.ErrRunNotActive))
		err = store.LogMetric(ctx, info.RunID, run.Metric{Key: "late", Value: 1, Timestamp: core.Now()})
		assert.True(t, errors.Is(err, core.ErrRunNotActive))
		assert.Error(t, store.EndRun(ctx, info.RunID, run.StatusFinished, core.Now()))

		got, err := store.GetRun(ctx, info.RunID)
		require.NoError(t, err)
		assert.Equal(t, run.StatusFailed, got.Info.Status)
	})

	t.Run("unknown ids", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		_, err := store.GetRun(ctx, core.RunID("0123456789abcdef0123456789abcdef"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrRunNotFound))
		assert.True(t, core.IsNotFoundError(err))

		_, err = store.GetExperiment(ctx, core.ExperimentID("424242"))
		assert.True(t, errors.Is(err, core.ErrExperimentNotFound))

		_, err = store.CreateRun(ctx, core.ExperimentID("424242"), "", core.Now())
		assert.Error(t, err)

		_, err = store.ListRuns(ctx, core.ExperimentID("424242"))
		assert.True(t, core.IsNotFoundError(err))
	})
}
