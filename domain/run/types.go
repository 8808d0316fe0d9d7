package run

import (
	"fmt"
	"strings"

	"mlgate/domain/core"
)

// Status is the lifecycle state of a run
type Status string

const (
	StatusRunning  Status = "RUNNING"
	StatusFinished Status = "FINISHED"
	StatusFailed   Status = "FAILED"
)

// IsTerminal reports whether the run can no longer receive data.
func (s Status) IsTerminal() bool {
	return s == StatusFinished || s == StatusFailed
}

// Lifecycle stages shared by experiments and runs
const (
	LifecycleActive  = "active"
	LifecycleDeleted = "deleted"
)

// Experiment is a named grouping of runs
type Experiment struct {
	ID               core.ExperimentID `json:"experiment_id" yaml:"experiment_id"`
	Name             string            `json:"name" yaml:"name"`
	ArtifactLocation string            `json:"artifact_location" yaml:"artifact_location"`
	LifecycleStage   string            `json:"lifecycle_stage" yaml:"lifecycle_stage"`
	CreatedAt        core.Timestamp    `json:"creation_time" yaml:"-"`
}

// RunInfo holds the immutable identity and lifecycle of a run
type RunInfo struct {
	RunID          core.RunID        `json:"run_id"`
	ExperimentID   core.ExperimentID `json:"experiment_id"`
	RunName        string            `json:"run_name"`
	Status         Status            `json:"status"`
	StartTime      core.Timestamp    `json:"start_time"`
	EndTime        core.Timestamp    `json:"end_time"`
	ArtifactURI    string            `json:"artifact_uri"`
	LifecycleStage string            `json:"lifecycle_stage"`
}

// RunData holds the latest logged values of a run
type RunData struct {
	Params  map[string]string  `json:"params"`
	Metrics map[string]float64 `json:"metrics"`
	Tags    map[string]string  `json:"tags"`
}

// NewRunData returns empty, non-nil maps
func NewRunData() RunData {
	return RunData{
		Params:  make(map[string]string),
		Metrics: make(map[string]float64),
		Tags:    make(map[string]string),
	}
}

// Run is one logged record of a training execution
type Run struct {
	Info RunInfo `json:"info"`
	Data RunData `json:"data"`
}

// Metric is a single metric observation
type Metric struct {
	Key       string         `json:"key"`
	Value     float64        `json:"value"`
	Timestamp core.Timestamp `json:"timestamp"`
	Step      int64          `json:"step"`
}

// ModelURIScheme prefixes references to run-relative artifacts.
const ModelURIScheme = "runs:/"

// ModelURI addresses a model artifact inside a run, e.g. runs:/<id>/model.
type ModelURI struct {
	RunID        core.RunID
	ArtifactPath string
}

// NewModelURI builds a reference to artifactPath inside runID.
func NewModelURI(runID core.RunID, artifactPath string) ModelURI {
	return ModelURI{RunID: runID, ArtifactPath: strings.Trim(artifactPath, "/")}
}

func (u ModelURI) String() string {
	return fmt.Sprintf("%s%s/%s", ModelURIScheme, u.RunID, u.ArtifactPath)
}

// ParseModelURI parses a runs:/<id>/<path> reference.
func ParseModelURI(s string) (ModelURI, error) {
	if !strings.HasPrefix(s, ModelURIScheme) {
		return ModelURI{}, fmt.Errorf("%w: %q must start with %s", core.ErrInvalidModelURI, s, ModelURIScheme)
	}
	rest := strings.TrimLeft(strings.TrimPrefix(s, ModelURIScheme), "/")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || strings.Trim(parts[1], "/") == "" {
		return ModelURI{}, fmt.Errorf("%w: %q has no artifact path", core.ErrInvalidModelURI, s)
	}
	runID, err := core.ParseRunID(parts[0])
	if err != nil {
		return ModelURI{}, fmt.Errorf("%w: %v", core.ErrInvalidModelURI, err)
	}
	path := strings.Trim(parts[1], "/")
	for _, seg := range strings.Split(path, "/") {
		if seg == ".." || seg == "." {
			return ModelURI{}, fmt.Errorf("%w: %q escapes the run", core.ErrInvalidModelURI, s)
		}
	}
	return ModelURI{RunID: runID, ArtifactPath: path}, nil
}
