package ports

import (
	"context"
)

// ArtifactInfo describes one entry under a run's artifact root
type ArtifactInfo struct {
	Path     string `json:"path"`
	IsDir    bool   `json:"is_dir"`
	FileSize int64  `json:"file_size,omitempty"`
}

// ArtifactRepository stores files under a run's artifact URI. Paths are
// relative to that root and may not escape it.
type ArtifactRepository interface {
	LogArtifact(ctx context.Context, artifactURI, path string, data []byte) error
	ReadArtifact(ctx context.Context, artifactURI, path string) ([]byte, error)
	ListArtifacts(ctx context.Context, artifactURI, dir string) ([]ArtifactInfo, error)
}
