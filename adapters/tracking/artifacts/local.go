package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"mlgate/domain/core"
	"mlgate/internal"
	"mlgate/internal/errors"
	"mlgate/ports"
)

// LocalRepository stores artifacts on the local filesystem under the
// directory named by a run's file:// artifact URI.
type LocalRepository struct {
	logger *internal.Logger
}

// NewLocalRepository creates a repository
func NewLocalRepository(logger *internal.Logger) *LocalRepository {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	return &LocalRepository{logger: logger}
}

func (r *LocalRepository) LogArtifact(ctx context.Context, artifactURI, path string, data []byte) error {
	full, err := resolve(artifactURI, path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return errors.FileSystemError(fmt.Sprintf("failed to create %s", filepath.Dir(full)), err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return errors.FileSystemError(fmt.Sprintf("failed to write artifact %s", path), err)
	}
	r.logger.Debug("[Artifacts] wrote %s (%d bytes)", full, len(data))
	return nil
}

func (r *LocalRepository) ReadArtifact(ctx context.Context, artifactURI, path string) ([]byte, error) {
	full, err := resolve(artifactURI, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if os.IsNotExist(err) {
		return nil, errors.NotFoundError(fmt.Sprintf("artifact %s", path), core.ErrArtifactNotFound)
	}
	if err != nil {
		return nil, errors.FileSystemError(fmt.Sprintf("failed to read artifact %s", path), err)
	}
	return data, nil
}

// ListArtifacts returns the direct children of dir. A missing directory
// lists as empty.
func (r *LocalRepository) ListArtifacts(ctx context.Context, artifactURI, dir string) ([]ports.ArtifactInfo, error) {
	full, err := resolve(artifactURI, dir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(full)
	if os.IsNotExist(err) {
		return []ports.ArtifactInfo{}, nil
	}
	if err != nil {
		return nil, errors.FileSystemError(fmt.Sprintf("failed to list artifacts in %s", dir), err)
	}

	infos := make([]ports.ArtifactInfo, 0, len(entries))
	for _, entry := range entries {
		info := ports.ArtifactInfo{
			Path:  filepath.ToSlash(filepath.Join(dir, entry.Name())),
			IsDir: entry.IsDir(),
		}
		if !entry.IsDir() {
			if fi, err := entry.Info(); err == nil {
				info.FileSize = fi.Size()
			}
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// LocalPath converts a file:// artifact URI to a directory path
func LocalPath(artifactURI string) (string, error) {
	if strings.HasPrefix(artifactURI, "file://") {
		return filepath.FromSlash(strings.TrimPrefix(artifactURI, "file://")), nil
	}
	if strings.Contains(artifactURI, "://") {
		return "", errors.TrackingStoreError(fmt.Sprintf("unsupported artifact URI %q", artifactURI), nil)
	}
	if artifactURI == "" {
		return "", errors.TrackingStoreError("run has no artifact URI", nil)
	}
	return filepath.FromSlash(artifactURI), nil
}

func resolve(artifactURI, path string) (string, error) {
	root, err := LocalPath(artifactURI)
	if err != nil {
		return "", err
	}
	if path == "" || path == "." {
		return root, nil
	}
	rel := filepath.FromSlash(path)
	if !filepath.IsLocal(rel) {
		return "", errors.InvalidInput(fmt.Sprintf("artifact path %q escapes the artifact root", path))
	}
	return filepath.Join(root, rel), nil
}
