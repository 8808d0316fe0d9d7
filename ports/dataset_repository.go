package ports

import (
	"context"

	"mlgate/domain/dataset"
)

// DatasetFetcher downloads the raw bytes of a remote dataset.
// Implementations must not retry.
type DatasetFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// DatasetRepository returns the dataset, populating its local cache on first use
type DatasetRepository interface {
	Load(ctx context.Context) (*dataset.Loaded, error)
}
