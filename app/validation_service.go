package app

import (
	"context"
	"fmt"
	"io"
	"strings"

	"mlgate/domain/core"
	"mlgate/domain/run"
	"mlgate/internal"
	"mlgate/internal/config"
	"mlgate/internal/errors"
	"mlgate/internal/learn"
	"mlgate/internal/metrics"
	"mlgate/internal/modelio"
	"mlgate/internal/runpointer"
	"mlgate/ports"
)

// ValidationService reloads a logged pipeline and applies the quality gate
type ValidationService struct {
	config *config.Config
	data   ports.DatasetRepository
	models *modelio.Repository
	logger *internal.Logger
	out    io.Writer
}

// ValidationResult is the gate outcome for one run
type ValidationResult struct {
	RunID     core.RunID
	ModelURI  run.ModelURI
	Manifest  run.SplitManifest
	RMSE      float64
	Threshold float64
	TestRows  int
	Passed    bool
}

// NewValidationService creates a validation service. Only read access to
// the tracking store is needed.
func NewValidationService(cfg *config.Config, data ports.DatasetRepository, store ports.ReaderPort, artifacts ports.ArtifactRepository, logger *internal.Logger, out io.Writer) *ValidationService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if out == nil {
		out = io.Discard
	}
	return &ValidationService{
		config: cfg,
		data:   data,
		models: modelio.NewRepository(store, artifacts, logger),
		logger: logger,
		out:    out,
	}
}

// ResolveRunID prefers the explicit id, then the pointer file.
func (s *ValidationService) ResolveRunID(explicit string) (core.RunID, error) {
	return ResolveRunID(explicit, s.config.Tracking.PointerFile)
}

// ResolveRunID picks the run to validate without touching the tracking
// store or the network.
func ResolveRunID(explicit, pointerFile string) (core.RunID, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		id, err := core.ParseRunID(explicit)
		if err != nil {
			return "", errors.WithCode(errors.CodeConfigInvalid, err, "invalid --run-id")
		}
		return id, nil
	}

	id, ok, err := runpointer.Read(pointerFile)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errors.ConfigInvalid(fmt.Sprintf("no --run-id given and no run id in %s", pointerFile))
	}
	return id, nil
}

// Validate recomputes the held-out RMSE of a run and compares it to the
// threshold. A failed gate returns the result together with ErrGateFailed.
func (s *ValidationService) Validate(ctx context.Context, explicitRunID string) (*ValidationResult, error) {
	runID, err := s.ResolveRunID(explicitRunID)
	if err != nil {
		return nil, err
	}
	fmt.Fprintf(s.out, "[MLflow] Validating Run ID: %s\n", runID)

	uri := run.NewModelURI(runID, modelio.DefaultArtifactPath)
	fmt.Fprintf(s.out, "[MLflow] Loading model: %s\n", uri)
	model, err := s.models.LoadModel(ctx, uri.String())
	if err != nil {
		return nil, err
	}

	manifest := s.splitManifest(model.Run.Data.Params)
	prep, err := prepareData(ctx, s.data, manifest.Target, manifest.TestSize, manifest.Seed)
	if err != nil {
		return nil, err
	}
	if manifest.DatasetHash != "" && manifest.DatasetHash != prep.loaded.Hash {
		s.logger.Warn("[Validation] dataset changed since run %s was trained: logged sha256 %s, now %s",
			runID, core.Hash(manifest.DatasetHash).Short(), core.Hash(prep.loaded.Hash).Short())
	}

	test := prep.partition.Test
	predictions, err := model.Pipeline.Predict(test.Features)
	if err != nil {
		return nil, errors.SchemaError("dataset does not match the logged model", err)
	}

	threshold := s.config.Gate.RMSEThreshold
	result := &ValidationResult{
		RunID:     runID,
		ModelURI:  uri,
		Manifest:  manifest,
		RMSE:      learn.RMSE(test.Target, predictions),
		Threshold: threshold,
		TestRows:  test.Len(),
	}
	result.Passed = PassesGate(result.RMSE, threshold)

	fmt.Fprintf(s.out, "Model RMSE: %.4f (threshold: %g)\n", result.RMSE, threshold)
	if result.Passed {
		fmt.Fprintln(s.out, "The model meets the quality threshold.")
	} else {
		fmt.Fprintln(s.out, "The model does NOT meet the quality threshold.")
	}

	if path := s.config.Gate.MetricsFile; path != "" {
		exporter := metrics.NewGateExporter()
		exporter.Record(metrics.GateResult{
			RunID:     runID.String(),
			RMSE:      result.RMSE,
			Threshold: threshold,
			TestRows:  result.TestRows,
			Passed:    result.Passed,
		})
		if err := exporter.WriteFile(path); err != nil {
			return result, errors.FileSystemError("failed to export gate metrics", err)
		}
	}

	if !result.Passed {
		return result, gateError(result.RMSE, threshold)
	}
	return result, nil
}

// splitManifest reads the partition parameters back from the run. Runs
// that did not log them fall back to the configured split.
func (s *ValidationService) splitManifest(params map[string]string) run.SplitManifest {
	m, err := run.SplitManifestFromParams(params)
	if err != nil {
		s.logger.Warn("[Validation] run params do not describe the split (%v); using configured test_size=%g random_state=%d",
			err, s.config.Training.TestSize, s.config.Training.Seed)
		m.TestSize = s.config.Training.TestSize
		m.Seed = s.config.Training.Seed
	}
	if m.Target == "" {
		s.logger.Warn("[Validation] run did not log %s; using %q", run.ParamTarget, s.config.Data.Target)
		m.Target = s.config.Data.Target
	}
	return m
}
