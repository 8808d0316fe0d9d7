package testkit

import (
	"context"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"mlgate/domain/core"
	"mlgate/domain/run"
	"mlgate/internal/errors"
	"mlgate/ports"
)

// TestKit bundles in-memory adapters for service tests
type TestKit struct {
	Store     *InMemoryTrackingStore
	Artifacts *InMemoryArtifactRepository
	Fetcher   *CountingFetcher
}

// NewTestKit creates a kit whose fetcher serves body
func NewTestKit(body []byte) *TestKit {
	return &TestKit{
		Store:     NewInMemoryTrackingStore(),
		Artifacts: NewInMemoryArtifactRepository(),
		Fetcher:   &CountingFetcher{Body: body},
	}
}

// ---- fetcher ----

// CountingFetcher serves a fixed body and records every call
type CountingFetcher struct {
	mu    sync.Mutex
	Body  []byte
	Err   error
	calls int
}

func (f *CountingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]byte(nil), f.Body...), nil
}

// Calls returns how many times Fetch ran
func (f *CountingFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// ---- tracking store ----

// InMemoryTrackingStore implements ports.TrackingStore in memory and
// counts every call so tests can assert the store was never touched.
type InMemoryTrackingStore struct {
	mu          sync.Mutex
	experiments []run.Experiment
	runs        map[core.RunID]*run.Run
	calls       int

	// CreateExperimentErr, when set, is returned by CreateExperiment
	CreateExperimentErr error
}

// NewInMemoryTrackingStore creates an empty store
func NewInMemoryTrackingStore() *InMemoryTrackingStore {
	return &InMemoryTrackingStore{runs: make(map[core.RunID]*run.Run)}
}

// Calls returns the number of store operations performed
func (s *InMemoryTrackingStore) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *InMemoryTrackingStore) touch() {
	s.calls++
}

func (s *InMemoryTrackingStore) CreateExperiment(ctx context.Context, name string) (*run.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.CreateExperimentErr != nil {
		return nil, s.CreateExperimentErr
	}
	for _, e := range s.experiments {
		if e.Name == name {
			return nil, errors.TrackingStoreError(fmt.Sprintf("experiment %q already exists", name), nil)
		}
	}
	exp := run.Experiment{
		ID:               core.ExperimentID(strconv.Itoa(len(s.experiments) + 1)),
		Name:             name,
		ArtifactLocation: "mem://" + name,
		LifecycleStage:   run.LifecycleActive,
		CreatedAt:        core.Now(),
	}
	s.experiments = append(s.experiments, exp)
	return &exp, nil
}

func (s *InMemoryTrackingStore) GetExperiment(ctx context.Context, id core.ExperimentID) (*run.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	for _, e := range s.experiments {
		if e.ID == id {
			exp := e
			return &exp, nil
		}
	}
	return nil, errors.NotFoundError(fmt.Sprintf("experiment %s", id), core.ErrExperimentNotFound)
}

func (s *InMemoryTrackingStore) GetExperimentByName(ctx context.Context, name string) (*run.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	for _, e := range s.experiments {
		if e.Name == name {
			exp := e
			return &exp, nil
		}
	}
	return nil, errors.NotFoundError(fmt.Sprintf("experiment named %q", name), core.ErrExperimentNotFound)
}

func (s *InMemoryTrackingStore) ListExperiments(ctx context.Context) ([]run.Experiment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return append([]run.Experiment(nil), s.experiments...), nil
}

func (s *InMemoryTrackingStore) CreateRun(ctx context.Context, experimentID core.ExperimentID, runName string, start core.Timestamp) (*run.RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	found := false
	for _, e := range s.experiments {
		found = found || e.ID == experimentID
	}
	if !found {
		return nil, errors.NotFoundError(fmt.Sprintf("experiment %s", experimentID), core.ErrExperimentNotFound)
	}

	id := core.NewRunID()
	r := &run.Run{
		Info: run.RunInfo{
			RunID:          id,
			ExperimentID:   experimentID,
			RunName:        runName,
			Status:         run.StatusRunning,
			StartTime:      start,
			ArtifactURI:    "mem://" + id.String() + "/artifacts",
			LifecycleStage: run.LifecycleActive,
		},
		Data: run.NewRunData(),
	}
	s.runs[id] = r
	info := r.Info
	return &info, nil
}

func (s *InMemoryTrackingStore) GetRun(ctx context.Context, runID core.RunID) (*run.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	r, ok := s.runs[runID]
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("run %s", runID), core.ErrRunNotFound)
	}
	cp := run.Run{Info: r.Info, Data: run.NewRunData()}
	for k, v := range r.Data.Params {
		cp.Data.Params[k] = v
	}
	for k, v := range r.Data.Metrics {
		cp.Data.Metrics[k] = v
	}
	for k, v := range r.Data.Tags {
		cp.Data.Tags[k] = v
	}
	return &cp, nil
}

func (s *InMemoryTrackingStore) ListRuns(ctx context.Context, experimentID core.ExperimentID) ([]run.RunInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	found := false
	for _, e := range s.experiments {
		found = found || e.ID == experimentID
	}
	if !found {
		return nil, errors.NotFoundError(fmt.Sprintf("experiment %s", experimentID), core.ErrExperimentNotFound)
	}
	var infos []run.RunInfo
	for _, r := range s.runs {
		if r.Info.ExperimentID == experimentID {
			infos = append(infos, r.Info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].StartTime.After(infos[j].StartTime) })
	return infos, nil
}

func (s *InMemoryTrackingStore) EndRun(ctx context.Context, runID core.RunID, status run.Status, end core.Timestamp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	r, err := s.activeRun(runID)
	if err != nil {
		return err
	}
	r.Info.Status = status
	r.Info.EndTime = end
	return nil
}

func (s *InMemoryTrackingStore) LogParams(ctx context.Context, runID core.RunID, params map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	r, err := s.activeRun(runID)
	if err != nil {
		return err
	}
	for k, v := range params {
		if old, ok := r.Data.Params[k]; ok && old != v {
			return errors.TrackingStoreError(fmt.Sprintf("param %q already logged", k), nil)
		}
		r.Data.Params[k] = v
	}
	return nil
}

func (s *InMemoryTrackingStore) LogMetric(ctx context.Context, runID core.RunID, metric run.Metric) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	r, err := s.activeRun(runID)
	if err != nil {
		return err
	}
	r.Data.Metrics[metric.Key] = metric.Value
	return nil
}

func (s *InMemoryTrackingStore) SetTag(ctx context.Context, runID core.RunID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	r, err := s.activeRun(runID)
	if err != nil {
		return err
	}
	r.Data.Tags[key] = value
	return nil
}

func (s *InMemoryTrackingStore) Close() error {
	return nil
}

func (s *InMemoryTrackingStore) activeRun(runID core.RunID) (*run.Run, error) {
	r, ok := s.runs[runID]
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("run %s", runID), core.ErrRunNotFound)
	}
	if r.Info.Status != run.StatusRunning {
		return nil, errors.TrackingStoreError(fmt.Sprintf("run %s is %s", runID, r.Info.Status), core.ErrRunNotActive)
	}
	return r, nil
}

// ---- artifacts ----

// InMemoryArtifactRepository implements ports.ArtifactRepository in memory
type InMemoryArtifactRepository struct {
	mu    sync.Mutex
	files map[string][]byte
	calls int
}

// NewInMemoryArtifactRepository creates an empty repository
func NewInMemoryArtifactRepository() *InMemoryArtifactRepository {
	return &InMemoryArtifactRepository{files: make(map[string][]byte)}
}

// Calls returns the number of repository operations performed
func (r *InMemoryArtifactRepository) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *InMemoryArtifactRepository) LogArtifact(ctx context.Context, artifactURI, p string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.files[path.Join(artifactURI, p)] = append([]byte(nil), data...)
	return nil
}

func (r *InMemoryArtifactRepository) ReadArtifact(ctx context.Context, artifactURI, p string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	data, ok := r.files[path.Join(artifactURI, p)]
	if !ok {
		return nil, errors.NotFoundError(fmt.Sprintf("artifact %s", p), core.ErrArtifactNotFound)
	}
	return append([]byte(nil), data...), nil
}

func (r *InMemoryArtifactRepository) ListArtifacts(ctx context.Context, artifactURI, dir string) ([]ports.ArtifactInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	prefix := strings.TrimSuffix(path.Join(artifactURI, dir), "/") + "/"
	seen := make(map[string]bool)
	var infos []ports.ArtifactInfo
	for key, data := range r.files {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		rest := strings.TrimPrefix(key, prefix)
		name, _, isDir := strings.Cut(rest, "/")
		entry := path.Join(dir, name)
		if seen[entry] {
			continue
		}
		seen[entry] = true
		info := ports.ArtifactInfo{Path: entry, IsDir: isDir}
		if !isDir {
			info.FileSize = int64(len(data))
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

var (
	_ ports.TrackingStore      = (*InMemoryTrackingStore)(nil)
	_ ports.ArtifactRepository = (*InMemoryArtifactRepository)(nil)
	_ ports.DatasetFetcher     = (*CountingFetcher)(nil)
)
