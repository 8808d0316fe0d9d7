package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"mlgate/domain/core"
	"mlgate/domain/run"
	"mlgate/internal"
	"mlgate/internal/config"
	"mlgate/internal/dataset"
	"mlgate/internal/errors"
	"mlgate/internal/learn"
	"mlgate/internal/modelio"
	"mlgate/internal/report"
	"mlgate/internal/runpointer"
	"mlgate/ports"
)

// TrainingService fits the pipeline and records it as a tracked run
type TrainingService struct {
	config    *config.Config
	data      ports.DatasetRepository
	store     ports.TrackingStore
	artifacts ports.ArtifactRepository
	models    *modelio.Repository
	logger    *internal.Logger
	out       io.Writer

	// Source is recorded in the mlgate.source tag
	Source string
}

// TrainingResult summarizes a finished training run
type TrainingResult struct {
	Experiment *run.Experiment
	RunID      core.RunID
	ModelURI   run.ModelURI
	Manifest   run.SplitManifest
	Eval       learn.Eval
	TrainRows  int
	TestRows   int
}

// NewTrainingService creates a training service. out receives the
// human-readable progress lines and may be nil.
func NewTrainingService(cfg *config.Config, data ports.DatasetRepository, store ports.TrackingStore, artifacts ports.ArtifactRepository, logger *internal.Logger, out io.Writer) *TrainingService {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if out == nil {
		out = io.Discard
	}
	models := modelio.NewRepository(store, artifacts, logger)
	if cfg.Training.SampleRows > 0 {
		models.ExampleRows = cfg.Training.SampleRows
	}
	return &TrainingService{
		config:    cfg,
		data:      data,
		store:     store,
		artifacts: artifacts,
		models:    models,
		logger:    logger,
		out:       out,
		Source:    "mlgate",
	}
}

// Train runs the training stage end to end. Data problems surface before
// a run is opened; any failure after that, including the pointer write,
// ends the run FAILED.
func (s *TrainingService) Train(ctx context.Context) (*TrainingResult, error) {
	cfg := s.config

	exp, created, err := EnsureExperiment(ctx, s.store, cfg.Tracking.ExperimentName, s.logger)
	if err != nil {
		return nil, err
	}
	if created {
		fmt.Fprintf(s.out, "[MLflow] Experiment created: %s (%s)\n", exp.Name, exp.ID)
	} else {
		fmt.Fprintf(s.out, "[MLflow] Existing experiment: %s (%s)\n", exp.Name, exp.ID)
	}

	prep, err := prepareData(ctx, s.data, cfg.Data.Target, cfg.Training.TestSize, cfg.Training.Seed)
	if err != nil {
		return nil, err
	}
	train, test := prep.partition.Train, prep.partition.Test

	started := time.Now()
	info, err := s.store.CreateRun(ctx, exp.ID, runName(started), core.NewTimestamp(started))
	if err != nil {
		return nil, errors.TrackingStoreError("failed to start run", err)
	}
	fmt.Fprintf(s.out, "[MLflow] Run ID: %s\n", info.RunID)

	result := &TrainingResult{
		Experiment: exp,
		RunID:      info.RunID,
		TrainRows:  train.Len(),
		TestRows:   test.Len(),
		Manifest: run.SplitManifest{
			Dataset:      cfg.Data.Name,
			Target:       cfg.Data.Target,
			TestSize:     cfg.Training.TestSize,
			Seed:         cfg.Training.Seed,
			DatasetHash:  prep.loaded.Hash,
			FeatureCount: prep.split.Features.NumCols(),
		},
	}

	err = s.trainRun(ctx, info, prep, result)
	if err == nil {
		err = runpointer.Write(cfg.Tracking.PointerFile, info.RunID)
	}
	if err != nil {
		if endErr := s.store.EndRun(ctx, info.RunID, run.StatusFailed, core.Now()); endErr != nil {
			s.logger.Error("[Training] could not mark run %s failed: %v", info.RunID, endErr)
		}
		return nil, err
	}

	if err := s.store.EndRun(ctx, info.RunID, run.StatusFinished, core.Now()); err != nil {
		return nil, errors.TrackingStoreError("failed to end run", err)
	}

	fmt.Fprintf(s.out, "Training OK | MSE=%.4f | RMSE=%.4f\n", result.Eval.MSE, result.Eval.RMSE)
	fmt.Fprintf(s.out, "[MLflow] Model logged with signature and input example.\n")
	fmt.Fprintf(s.out, "[MLflow] %s -> %s\n", cfg.Tracking.PointerFile, info.RunID)
	return result, nil
}

// trainRun does everything that happens while the run is open
func (s *TrainingService) trainRun(ctx context.Context, info *run.RunInfo, prep *preparedData, result *TrainingResult) error {
	cfg := s.config
	train, test := prep.partition.Train, prep.partition.Test

	pipeline := learn.NewPipeline(cfg.Training.Alpha)
	if err := pipeline.Fit(train.Features, train.Target); err != nil {
		return errors.Wrap(err, "failed to fit pipeline")
	}
	predictions, err := pipeline.Predict(test.Features)
	if err != nil {
		return errors.Wrap(err, "failed to predict held-out rows")
	}
	eval, err := learn.Evaluate(test.Target, predictions)
	if err != nil {
		return errors.Wrap(err, "failed to evaluate held-out rows")
	}
	result.Eval = eval
	s.logger.Info("[Training] %s: train=%d test=%d rmse=%.4f", pipeline, train.Len(), test.Len(), eval.RMSE)

	params := result.Manifest.Params()
	params[run.ParamModel] = learn.ModelKind
	params[run.ParamAlpha] = run.FormatFloat(cfg.Training.Alpha)
	if err := s.store.LogParams(ctx, info.RunID, params); err != nil {
		return errors.TrackingStoreError("failed to log params", err)
	}

	now := core.Now()
	for _, m := range []run.Metric{
		{Key: run.MetricMSE, Value: eval.MSE, Timestamp: now},
		{Key: run.MetricRMSE, Value: eval.RMSE, Timestamp: now},
		{Key: run.MetricMAE, Value: eval.MAE, Timestamp: now},
		{Key: run.MetricR2, Value: eval.R2, Timestamp: now},
	} {
		if err := s.store.LogMetric(ctx, info.RunID, m); err != nil {
			return errors.TrackingStoreError(fmt.Sprintf("failed to log metric %s", m.Key), err)
		}
	}

	tags := map[string]string{
		run.TagSource:      s.Source,
		run.TagFingerprint: result.Manifest.Fingerprint().String(),
	}
	for k, v := range tags {
		if err := s.store.SetTag(ctx, info.RunID, k, v); err != nil {
			return errors.TrackingStoreError(fmt.Sprintf("failed to set tag %s", k), err)
		}
	}

	uri, err := s.models.LogModel(ctx, info, modelio.DefaultArtifactPath, pipeline, train.Features)
	if err != nil {
		return err
	}
	result.ModelURI = uri

	profile, err := dataset.BuildProfile(prep.loaded, cfg.Data.Target)
	if err != nil {
		return errors.Wrap(err, "failed to profile dataset")
	}
	profileJSON, err := profile.JSON()
	if err != nil {
		return errors.Wrap(err, "failed to encode dataset profile")
	}
	if err := s.artifacts.LogArtifact(ctx, info.ArtifactURI, dataset.ProfileFile, profileJSON); err != nil {
		return err
	}

	summary := report.TrainingReport{
		Experiment: result.Experiment.Name,
		RunID:      info.RunID.String(),
		RunName:    info.RunName,
		ModelURI:   uri.String(),
		Created:    info.StartTime.Time(),
		Manifest:   result.Manifest,
		TrainRows:  train.Len(),
		TestRows:   test.Len(),
		Eval:       eval,
		Pipeline:   pipeline,
		Profile:    profile,
	}
	md, err := summary.Markdown()
	if err != nil {
		return errors.Wrap(err, "failed to render report")
	}
	if err := s.artifacts.LogArtifact(ctx, info.ArtifactURI, report.MarkdownFile, md); err != nil {
		return err
	}
	if err := s.artifacts.LogArtifact(ctx, info.ArtifactURI, report.HTMLFile, report.ToHTML(md, info.RunName)); err != nil {
		return err
	}
	return nil
}

func runName(t time.Time) string {
	return fmt.Sprintf("%s-%s", strings.ToLower(learn.ModelKind), t.UTC().Format("20060102-150405"))
}
