package ports

import (
	"context"

	"mlgate/domain/core"
	"mlgate/domain/run"
)

// ReaderPort provides read-only access to tracking data for the browser
// and the validation stage.
type ReaderPort interface {
	GetExperiment(ctx context.Context, id core.ExperimentID) (*run.Experiment, error)
	GetExperimentByName(ctx context.Context, name string) (*run.Experiment, error)
	ListExperiments(ctx context.Context) ([]run.Experiment, error)

	GetRun(ctx context.Context, runID core.RunID) (*run.Run, error)
	ListRuns(ctx context.Context, experimentID core.ExperimentID) ([]run.RunInfo, error)
}
