package ports

import (
	"context"

	"mlgate/domain/core"
	"mlgate/domain/run"
)

// TrackingStore persists experiments and runs. Lookups of unknown
// experiments or runs return errors matching core.ErrExperimentNotFound or
// core.ErrRunNotFound.
type TrackingStore interface {
	ReaderPort

	CreateExperiment(ctx context.Context, name string) (*run.Experiment, error)

	// Run lifecycle
	CreateRun(ctx context.Context, experimentID core.ExperimentID, runName string, start core.Timestamp) (*run.RunInfo, error)
	EndRun(ctx context.Context, runID core.RunID, status run.Status, end core.Timestamp) error

	// Run data. Writing to a terminal run fails with core.ErrRunNotActive.
	LogParams(ctx context.Context, runID core.RunID, params map[string]string) error
	LogMetric(ctx context.Context, runID core.RunID, metric run.Metric) error
	SetTag(ctx context.Context, runID core.RunID, key, value string) error

	Close() error
}
