package app

import (
	"context"
	"fmt"

	"mlgate/domain/core"
	"mlgate/domain/run"
	"mlgate/internal"
	"mlgate/internal/errors"
	"mlgate/ports"
)

// EnsureExperiment looks the experiment up by name and creates it when it
// does not exist. created reports which path was taken.
func EnsureExperiment(ctx context.Context, store ports.TrackingStore, name string, logger *internal.Logger) (exp *run.Experiment, created bool, err error) {
	exp, err = store.GetExperimentByName(ctx, name)
	if err == nil {
		return exp, false, nil
	}
	if !core.IsNotFoundError(err) {
		return nil, false, errors.TrackingStoreError(fmt.Sprintf("failed to look up experiment %q", name), err)
	}

	if logger != nil {
		logger.Debug("[Experiment] %q not found, creating it", name)
	}
	exp, err = store.CreateExperiment(ctx, name)
	if err != nil {
		return nil, false, errors.TrackingStoreError(fmt.Sprintf("could not create or find experiment %q", name), err)
	}
	return exp, true, nil
}
