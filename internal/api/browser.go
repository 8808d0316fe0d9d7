// Package api serves read-only JSON views of the tracking store.
package api

import (
	"context"

	"mlgate/domain/core"
	"mlgate/domain/run"
	"mlgate/internal"
	"mlgate/internal/modelio"
	"mlgate/internal/report"
	"mlgate/ports"

	"golang.org/x/sync/errgroup"
)

// DefaultParallel bounds concurrent store reads per request
const DefaultParallel = 4

// ExperimentSummary is an experiment with its run count
type ExperimentSummary struct {
	run.Experiment
	RunCount int `json:"run_count"`
}

// RunDetail is a run with its artifact listing
type RunDetail struct {
	run.Run
	ModelURI  string               `json:"model_uri,omitempty"`
	Artifacts []ports.ArtifactInfo `json:"artifacts"`
}

// Browser answers read-only questions about experiments and runs
type Browser struct {
	store     ports.ReaderPort
	artifacts ports.ArtifactRepository
	logger    *internal.Logger
	parallel  int
}

// NewBrowser creates a browser over a tracking store
func NewBrowser(store ports.ReaderPort, artifacts ports.ArtifactRepository, logger *internal.Logger) *Browser {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &Browser{store: store, artifacts: artifacts, logger: logger, parallel: DefaultParallel}
}

// Experiments lists every experiment with the number of runs it holds
func (b *Browser) Experiments(ctx context.Context) ([]ExperimentSummary, error) {
	exps, err := b.store.ListExperiments(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ExperimentSummary, len(exps))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallel)
	for i, exp := range exps {
		g.Go(func() error {
			runs, err := b.store.ListRuns(gCtx, exp.ID)
			if err != nil {
				return err
			}
			out[i] = ExperimentSummary{Experiment: exp, RunCount: len(runs)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Runs loads the full record of every run in an experiment, newest first
func (b *Browser) Runs(ctx context.Context, experimentID core.ExperimentID) ([]run.Run, error) {
	infos, err := b.store.ListRuns(ctx, experimentID)
	if err != nil {
		return nil, err
	}

	out := make([]run.Run, len(infos))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallel)
	for i, info := range infos {
		g.Go(func() error {
			r, err := b.store.GetRun(gCtx, info.RunID)
			if err != nil {
				return err
			}
			out[i] = *r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Run returns one run with its top-level artifacts and those of its model
func (b *Browser) Run(ctx context.Context, runID core.RunID) (*RunDetail, error) {
	r, err := b.store.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	detail := &RunDetail{Run: *r}

	top, err := b.artifacts.ListArtifacts(ctx, r.Info.ArtifactURI, "")
	if err != nil {
		return nil, err
	}
	for _, a := range top {
		detail.Artifacts = append(detail.Artifacts, a)
		if a.IsDir && a.Path == modelio.DefaultArtifactPath {
			detail.ModelURI = run.NewModelURI(runID, a.Path).String()
			nested, err := b.artifacts.ListArtifacts(ctx, r.Info.ArtifactURI, a.Path)
			if err != nil {
				return nil, err
			}
			detail.Artifacts = append(detail.Artifacts, nested...)
		}
	}
	if detail.Artifacts == nil {
		detail.Artifacts = []ports.ArtifactInfo{}
	}
	return detail, nil
}

// ReportHTML returns the rendered run report. ok is false when the run has
// no report artifact.
func (b *Browser) ReportHTML(ctx context.Context, runID core.RunID) (html []byte, ok bool, err error) {
	r, err := b.store.GetRun(ctx, runID)
	if err != nil {
		return nil, false, err
	}
	md, err := b.artifacts.ReadArtifact(ctx, r.Info.ArtifactURI, report.MarkdownFile)
	if core.IsNotFoundError(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return report.Fragment(md), true, nil
}
