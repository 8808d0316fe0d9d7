package filestore

import (
	"bufio"
	"context"
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"mlgate/domain/core"
	"mlgate/domain/run"
	"mlgate/internal"
	"mlgate/internal/errors"

	"gopkg.in/yaml.v3"
)

const (
	metaFile              = "meta.yaml"
	paramsDir             = "params"
	metricsDir            = "metrics"
	tagsDir               = "tags"
	artifactsDir          = "artifacts"
	trashDir              = ".trash"
	DefaultExperimentID   = "0"
	DefaultExperimentName = "Default"
)

type experimentMeta struct {
	ArtifactLocation string `yaml:"artifact_location"`
	CreationTime     int64  `yaml:"creation_time"`
	ExperimentID     string `yaml:"experiment_id"`
	LastUpdateTime   int64  `yaml:"last_update_time"`
	LifecycleStage   string `yaml:"lifecycle_stage"`
	Name             string `yaml:"name"`
}

type runMeta struct {
	ArtifactURI    string `yaml:"artifact_uri"`
	EndTime        *int64 `yaml:"end_time"`
	ExperimentID   string `yaml:"experiment_id"`
	LifecycleStage string `yaml:"lifecycle_stage"`
	RunID          string `yaml:"run_id"`
	RunName        string `yaml:"run_name"`
	StartTime      int64  `yaml:"start_time"`
	Status         string `yaml:"status"`
}

// Store is a directory-backed tracking store. Each experiment is a
// directory holding meta.yaml and one directory per run; run data is kept
// as one file per key.
type Store struct {
	root   string
	logger *internal.Logger
}

// New opens (and if needed initializes) a store rooted at root
func New(root string, logger *internal.Logger) (*Store, error) {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("invalid store root %s", root), err)
	}
	s := &Store{root: abs, logger: logger}

	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to create store root %s", abs), err)
	}
	if _, err := os.Stat(s.experimentMetaPath(DefaultExperimentID)); os.IsNotExist(err) {
		if _, err := s.createExperiment(DefaultExperimentID, DefaultExperimentName); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Root returns the absolute store directory
func (s *Store) Root() string {
	return s.root
}

func (s *Store) Close() error {
	return nil
}

// ---- experiments ----

func (s *Store) CreateExperiment(ctx context.Context, name string) (*run.Experiment, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.TrackingStoreError("experiment name cannot be empty", nil)
	}
	if existing, err := s.GetExperimentByName(ctx, name); err == nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("experiment %q already exists with id %s", name, existing.ID), nil)
	} else if !core.IsNotFoundError(err) {
		return nil, err
	}

	id, err := s.nextExperimentID()
	if err != nil {
		return nil, err
	}
	return s.createExperiment(id, name)
}

func (s *Store) createExperiment(id, name string) (*run.Experiment, error) {
	dir := filepath.Join(s.root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to create experiment directory %s", dir), err)
	}

	now := core.Now()
	meta := experimentMeta{
		ArtifactLocation: fileURI(dir),
		CreationTime:     now.UnixMilli(),
		ExperimentID:     id,
		LastUpdateTime:   now.UnixMilli(),
		LifecycleStage:   run.LifecycleActive,
		Name:             name,
	}
	if err := writeYAML(filepath.Join(dir, metaFile), meta); err != nil {
		return nil, err
	}

	s.logger.Debug("[FileStore] created experiment %s (%s)", name, id)
	return meta.toExperiment(), nil
}

func (s *Store) GetExperiment(ctx context.Context, id core.ExperimentID) (*run.Experiment, error) {
	if _, err := core.ParseExperimentID(id.String()); err != nil {
		return nil, errors.NotFoundError(fmt.Sprintf("experiment %q", id), core.ErrExperimentNotFound)
	}
	var meta experimentMeta
	if err := readYAML(s.experimentMetaPath(id.String()), &meta); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError(fmt.Sprintf("experiment %s", id), core.ErrExperimentNotFound)
		}
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to read experiment %s", id), err)
	}
	return meta.toExperiment(), nil
}

func (s *Store) GetExperimentByName(ctx context.Context, name string) (*run.Experiment, error) {
	experiments, err := s.ListExperiments(ctx)
	if err != nil {
		return nil, err
	}
	for i := range experiments {
		if experiments[i].Name == name {
			return &experiments[i], nil
		}
	}
	return nil, errors.NotFoundError(fmt.Sprintf("experiment named %q", name), core.ErrExperimentNotFound)
}

// ListExperiments returns active experiments ordered by id
func (s *Store) ListExperiments(ctx context.Context) ([]run.Experiment, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to list %s", s.root), err)
	}

	var experiments []run.Experiment
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == trashDir {
			continue
		}
		var meta experimentMeta
		if err := readYAML(s.experimentMetaPath(entry.Name()), &meta); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.TrackingStoreError(fmt.Sprintf("failed to read experiment %s", entry.Name()), err)
		}
		if meta.LifecycleStage != run.LifecycleActive {
			continue
		}
		experiments = append(experiments, *meta.toExperiment())
	}

	sort.Slice(experiments, func(i, j int) bool {
		return lessID(experiments[i].ID.String(), experiments[j].ID.String())
	})
	return experiments, nil
}

func (s *Store) nextExperimentID() (string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return "", errors.TrackingStoreError(fmt.Sprintf("failed to list %s", s.root), err)
	}
	next := 1
	for _, entry := range entries {
		if n, err := strconv.Atoi(entry.Name()); err == nil && n >= next {
			next = n + 1
		}
	}
	return strconv.Itoa(next), nil
}

// ---- runs ----

func (s *Store) CreateRun(ctx context.Context, experimentID core.ExperimentID, runName string, start core.Timestamp) (*run.RunInfo, error) {
	exp, err := s.GetExperiment(ctx, experimentID)
	if err != nil {
		return nil, err
	}
	if exp.LifecycleStage != run.LifecycleActive {
		return nil, errors.TrackingStoreError(fmt.Sprintf("experiment %s is %s", exp.ID, exp.LifecycleStage), nil)
	}

	runID := core.NewRunID()
	dir := filepath.Join(s.root, exp.ID.String(), runID.String())
	for _, sub := range []string{paramsDir, metricsDir, tagsDir, artifactsDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, errors.TrackingStoreError(fmt.Sprintf("failed to create run directory %s", dir), err)
		}
	}

	meta := runMeta{
		ArtifactURI:    fileURI(filepath.Join(dir, artifactsDir)),
		ExperimentID:   exp.ID.String(),
		LifecycleStage: run.LifecycleActive,
		RunID:          runID.String(),
		RunName:        runName,
		StartTime:      start.UnixMilli(),
		Status:         string(run.StatusRunning),
	}
	if err := writeYAML(filepath.Join(dir, metaFile), meta); err != nil {
		return nil, err
	}

	s.logger.Debug("[FileStore] created run %s in experiment %s", runID, exp.ID)
	info := meta.toRunInfo()
	return &info, nil
}

func (s *Store) GetRun(ctx context.Context, runID core.RunID) (*run.Run, error) {
	dir, meta, err := s.findRun(runID)
	if err != nil {
		return nil, err
	}

	data := run.NewRunData()
	if err := readKeyFiles(filepath.Join(dir, paramsDir), func(key string, raw []byte) error {
		data.Params[key] = string(raw)
		return nil
	}); err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to read params of run %s", runID), err)
	}
	if err := readKeyFiles(filepath.Join(dir, tagsDir), func(key string, raw []byte) error {
		data.Tags[key] = string(raw)
		return nil
	}); err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to read tags of run %s", runID), err)
	}
	if err := readKeyFiles(filepath.Join(dir, metricsDir), func(key string, raw []byte) error {
		latest, err := latestMetric(key, raw)
		if err != nil {
			return err
		}
		data.Metrics[key] = latest.Value
		return nil
	}); err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to read metrics of run %s", runID), err)
	}

	return &run.Run{Info: meta.toRunInfo(), Data: data}, nil
}

// ListRuns returns the runs of an experiment, newest first
func (s *Store) ListRuns(ctx context.Context, experimentID core.ExperimentID) ([]run.RunInfo, error) {
	if _, err := s.GetExperiment(ctx, experimentID); err != nil {
		return nil, err
	}
	expDir := filepath.Join(s.root, experimentID.String())
	entries, err := os.ReadDir(expDir)
	if err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to list %s", expDir), err)
	}

	var runs []run.RunInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		var meta runMeta
		if err := readYAML(filepath.Join(expDir, entry.Name(), metaFile), &meta); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, errors.TrackingStoreError(fmt.Sprintf("failed to read run %s", entry.Name()), err)
		}
		if meta.LifecycleStage != run.LifecycleActive {
			continue
		}
		runs = append(runs, meta.toRunInfo())
	}

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartTime.After(runs[j].StartTime)
	})
	return runs, nil
}

func (s *Store) EndRun(ctx context.Context, runID core.RunID, status run.Status, end core.Timestamp) error {
	if !status.IsTerminal() {
		return errors.TrackingStoreError(fmt.Sprintf("cannot end run with status %s", status), nil)
	}
	dir, meta, err := s.findRun(runID)
	if err != nil {
		return err
	}
	if run.Status(meta.Status).IsTerminal() {
		return errors.TrackingStoreError(fmt.Sprintf("run %s already %s", runID, meta.Status), core.ErrRunNotActive)
	}

	endMillis := end.UnixMilli()
	meta.EndTime = &endMillis
	meta.Status = string(status)
	return writeYAML(filepath.Join(dir, metaFile), meta)
}

// LogParams writes each param once. Re-logging a key with a different
// value is rejected.
func (s *Store) LogParams(ctx context.Context, runID core.RunID, params map[string]string) error {
	dir, err := s.activeRunDir(runID)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := run.ValidateKey(key); err != nil {
			return errors.TrackingStoreError("invalid param key", err)
		}
		path := filepath.Join(dir, paramsDir, filepath.FromSlash(key))
		if existing, err := os.ReadFile(path); err == nil {
			if string(existing) != params[key] {
				return errors.TrackingStoreError(
					fmt.Sprintf("param %q already logged as %q, refusing %q", key, existing, params[key]), nil)
			}
			continue
		}
		if err := writeFile(path, []byte(params[key])); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) LogMetric(ctx context.Context, runID core.RunID, metric run.Metric) error {
	dir, err := s.activeRunDir(runID)
	if err != nil {
		return err
	}
	if err := run.ValidateKey(metric.Key); err != nil {
		return errors.TrackingStoreError("invalid metric key", err)
	}

	path := filepath.Join(dir, metricsDir, filepath.FromSlash(metric.Key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.TrackingStoreError(fmt.Sprintf("failed to create %s", filepath.Dir(path)), err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.TrackingStoreError(fmt.Sprintf("failed to open metric file %s", path), err)
	}
	defer f.Close()

	line := fmt.Sprintf("%d %s %d\n", metric.Timestamp.UnixMilli(), run.FormatFloat(metric.Value), metric.Step)
	if _, err := f.WriteString(line); err != nil {
		return errors.TrackingStoreError(fmt.Sprintf("failed to append metric %s", metric.Key), err)
	}
	return nil
}

func (s *Store) SetTag(ctx context.Context, runID core.RunID, key, value string) error {
	dir, err := s.activeRunDir(runID)
	if err != nil {
		return err
	}
	if err := run.ValidateKey(key); err != nil {
		return errors.TrackingStoreError("invalid tag key", err)
	}
	return writeFile(filepath.Join(dir, tagsDir, filepath.FromSlash(key)), []byte(value))
}

// GetMetricHistory returns every logged observation of a metric in file order
func (s *Store) GetMetricHistory(ctx context.Context, runID core.RunID, key string) ([]run.Metric, error) {
	dir, _, err := s.findRun(runID)
	if err != nil {
		return nil, err
	}
	if err := run.ValidateKey(key); err != nil {
		return nil, errors.TrackingStoreError("invalid metric key", err)
	}
	raw, err := os.ReadFile(filepath.Join(dir, metricsDir, filepath.FromSlash(key)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NotFoundError(fmt.Sprintf("metric %q of run %s", key, runID), core.ErrNotFound)
		}
		return nil, errors.TrackingStoreError(fmt.Sprintf("failed to read metric %s", key), err)
	}
	history, err := parseMetricLines(key, raw)
	if err != nil {
		return nil, errors.TrackingStoreError(fmt.Sprintf("corrupt metric file for %s", key), err)
	}
	return history, nil
}

func (s *Store) activeRunDir(runID core.RunID) (string, error) {
	dir, meta, err := s.findRun(runID)
	if err != nil {
		return "", err
	}
	if meta.Status != string(run.StatusRunning) {
		return "", errors.TrackingStoreError(fmt.Sprintf("run %s is %s", runID, meta.Status), core.ErrRunNotActive)
	}
	return dir, nil
}

// findRun scans experiment directories for the run
func (s *Store) findRun(runID core.RunID) (string, *runMeta, error) {
	if _, err := core.ParseRunID(runID.String()); err != nil {
		return "", nil, errors.NotFoundError(fmt.Sprintf("run %q", runID), core.ErrRunNotFound)
	}
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return "", nil, errors.TrackingStoreError(fmt.Sprintf("failed to list %s", s.root), err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || entry.Name() == trashDir {
			continue
		}
		dir := filepath.Join(s.root, entry.Name(), runID.String())
		var meta runMeta
		if err := readYAML(filepath.Join(dir, metaFile), &meta); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", nil, errors.TrackingStoreError(fmt.Sprintf("failed to read run %s", runID), err)
		}
		return dir, &meta, nil
	}
	return "", nil, errors.NotFoundError(fmt.Sprintf("run %s", runID), core.ErrRunNotFound)
}

func (s *Store) experimentMetaPath(id string) string {
	return filepath.Join(s.root, id, metaFile)
}

// ---- encoding helpers ----

func (m experimentMeta) toExperiment() *run.Experiment {
	return &run.Experiment{
		ID:               core.ExperimentID(m.ExperimentID),
		Name:             m.Name,
		ArtifactLocation: m.ArtifactLocation,
		LifecycleStage:   m.LifecycleStage,
		CreatedAt:        core.FromUnixMilli(m.CreationTime),
	}
}

func (m runMeta) toRunInfo() run.RunInfo {
	info := run.RunInfo{
		RunID:          core.RunID(m.RunID),
		ExperimentID:   core.ExperimentID(m.ExperimentID),
		RunName:        m.RunName,
		Status:         run.Status(m.Status),
		StartTime:      core.FromUnixMilli(m.StartTime),
		ArtifactURI:    m.ArtifactURI,
		LifecycleStage: m.LifecycleStage,
	}
	if m.EndTime != nil {
		info.EndTime = core.FromUnixMilli(*m.EndTime)
	}
	return info
}

func readKeyFiles(dir string, fn func(key string, raw []byte) error) error {
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return fn(filepath.ToSlash(rel), raw)
	})
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func parseMetricLines(key string, raw []byte) ([]run.Metric, error) {
	var history []run.Metric
	scanner := bufio.NewScanner(strings.NewReader(string(raw)))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("metric %s: malformed line %q", key, line)
		}
		ts, err := strconv.ParseInt(fields[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("metric %s: bad timestamp in %q: %w", key, line, err)
		}
		value, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("metric %s: bad value in %q: %w", key, line, err)
		}
		var step int64
		if len(fields) == 3 {
			if step, err = strconv.ParseInt(fields[2], 10, 64); err != nil {
				return nil, fmt.Errorf("metric %s: bad step in %q: %w", key, line, err)
			}
		}
		history = append(history, run.Metric{Key: key, Value: value, Timestamp: core.FromUnixMilli(ts), Step: step})
	}
	return history, scanner.Err()
}

// latestMetric picks the observation with the highest step, then the
// latest timestamp; later lines win ties.
func latestMetric(key string, raw []byte) (run.Metric, error) {
	history, err := parseMetricLines(key, raw)
	if err != nil {
		return run.Metric{}, err
	}
	if len(history) == 0 {
		return run.Metric{}, fmt.Errorf("metric %s: empty file", key)
	}
	latest := history[0]
	for _, m := range history[1:] {
		if m.Step > latest.Step || (m.Step == latest.Step && !m.Timestamp.Before(latest.Timestamp)) {
			latest = m
		}
	}
	return latest, nil
}

func readYAML(path string, out any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(raw, out)
}

func writeYAML(path string, v any) error {
	raw, err := yaml.Marshal(v)
	if err != nil {
		return errors.TrackingStoreError(fmt.Sprintf("failed to encode %s", path), err)
	}
	return writeFile(path, raw)
}

// writeFile replaces path through a temporary file in the same directory
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.TrackingStoreError(fmt.Sprintf("failed to create %s", filepath.Dir(path)), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return errors.TrackingStoreError(fmt.Sprintf("failed to write %s", path), err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.TrackingStoreError(fmt.Sprintf("failed to write %s", path), err)
	}
	if err := tmp.Close(); err != nil {
		return errors.TrackingStoreError(fmt.Sprintf("failed to write %s", path), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.TrackingStoreError(fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

func fileURI(path string) string {
	return "file://" + filepath.ToSlash(path)
}

func lessID(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}
