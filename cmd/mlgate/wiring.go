package main

import (
	"context"

	"mlgate/adapters/httpsource"
	"mlgate/adapters/tracking"
	"mlgate/internal/dataset"
)

func (c *cli) openTracking(ctx context.Context) (*tracking.Backend, error) {
	backend, err := tracking.Open(ctx, c.cfg.Tracking.URI, c.cfg.Tracking.ArtifactRoot, c.logger)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("[CLI] tracking store %s", c.cfg.Tracking.URI)
	return backend, nil
}

func (c *cli) dataRepository() *dataset.CachedRepository {
	return dataset.NewCachedRepository(dataset.StorageConfig{
		URL:       c.cfg.Data.URL,
		CachePath: c.cfg.Data.CachePath,
		Delimiter: c.cfg.Data.DelimiterRune(),
	}, httpsource.NewFetcher(c.cfg.Data.FetchTimeout), c.logger, c.stdout)
}

func (c *cli) closeTracking(backend *tracking.Backend) {
	if err := backend.Close(); err != nil {
		c.logger.Warn("[CLI] closing tracking store: %v", err)
	}
}
