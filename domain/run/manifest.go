package run

import (
	"fmt"
	"strconv"

	"mlgate/domain/core"
)

// Parameter keys logged with every training run
const (
	ParamModel        = "model"
	ParamAlpha        = "alpha"
	ParamDataset      = "dataset"
	ParamTestSize     = "test_size"
	ParamRandomState  = "random_state"
	ParamFeatureCount = "n_features"
	ParamTarget       = "target"
	ParamDatasetHash  = "dataset_sha256"
)

// Metric keys
const (
	MetricMSE  = "mse"
	MetricRMSE = "rmse"
	MetricMAE  = "mae"
	MetricR2   = "r2"
)

// Tag keys
const (
	TagSource      = "mlgate.source"
	TagFingerprint = "mlgate.fingerprint"
)

// SplitManifest is everything validation needs to rebuild the exact
// train/test partition a run was trained on. It is persisted as run params.
type SplitManifest struct {
	Dataset      string           `json:"dataset"`
	Target       string           `json:"target"`
	TestSize     float64          `json:"test_size"`
	Seed         int64            `json:"seed"`
	DatasetHash  core.DatasetHash `json:"dataset_sha256"`
	FeatureCount int              `json:"n_features"`
}

// Params encodes the manifest as run parameters
func (m SplitManifest) Params() map[string]string {
	params := map[string]string{
		ParamDataset:      m.Dataset,
		ParamTarget:       m.Target,
		ParamTestSize:     FormatFloat(m.TestSize),
		ParamRandomState:  strconv.FormatInt(m.Seed, 10),
		ParamFeatureCount: strconv.Itoa(m.FeatureCount),
	}
	if m.DatasetHash != "" {
		params[ParamDatasetHash] = m.DatasetHash.String()
	}
	return params
}

// SplitManifestFromParams decodes the partition parameters of a run.
// test_size and random_state are required; the rest are best effort.
func SplitManifestFromParams(params map[string]string) (SplitManifest, error) {
	m := SplitManifest{
		Dataset:     params[ParamDataset],
		Target:      params[ParamTarget],
		DatasetHash: core.DatasetHash(params[ParamDatasetHash]),
	}

	raw, ok := params[ParamTestSize]
	if !ok {
		return m, core.NewValidationError(ParamTestSize, "not logged")
	}
	testSize, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return m, core.NewValidationError(ParamTestSize, err.Error())
	}
	m.TestSize = testSize

	raw, ok = params[ParamRandomState]
	if !ok {
		return m, core.NewValidationError(ParamRandomState, "not logged")
	}
	seed, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return m, core.NewValidationError(ParamRandomState, err.Error())
	}
	m.Seed = seed

	if raw, ok := params[ParamFeatureCount]; ok {
		if n, err := strconv.Atoi(raw); err == nil {
			m.FeatureCount = n
		}
	}

	return m, m.Validate()
}

// Validate checks the partition parameters are usable
func (m SplitManifest) Validate() error {
	if m.TestSize <= 0 || m.TestSize >= 1 {
		return core.NewValidationError(ParamTestSize, fmt.Sprintf("%v is outside (0, 1)", m.TestSize))
	}
	return nil
}

// Fingerprint hashes every determinism parameter of the split.
func (m SplitManifest) Fingerprint() core.Hash {
	return core.ComputeParamsHash(m.Params())
}

// FormatFloat renders a float with the shortest exact representation.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
