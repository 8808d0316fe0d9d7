package app

import (
	"context"
	"fmt"

	"mlgate/domain/dataset"
	"mlgate/internal/analysis"
	"mlgate/internal/errors"
	"mlgate/ports"
)

// preparedData is the dataset after acquisition, target split and
// partitioning. Both stages build it the same way.
type preparedData struct {
	loaded    *dataset.Loaded
	split     *dataset.FeatureTarget
	partition *analysis.PartitionResult
}

func prepareData(ctx context.Context, data ports.DatasetRepository, target string, testSize float64, seed int64) (*preparedData, error) {
	loaded, err := data.Load(ctx)
	if err != nil {
		return nil, err
	}

	split, err := dataset.SplitFeatureTarget(loaded.Table, target)
	if err != nil {
		return nil, errors.SchemaError(fmt.Sprintf("cannot separate target %q from %s", target, loaded.Source), err)
	}

	partition, err := analysis.TrainTestSplit(split, testSize, seed)
	if err != nil {
		return nil, errors.SchemaError("cannot partition dataset", err)
	}

	return &preparedData{loaded: loaded, split: split, partition: partition}, nil
}
