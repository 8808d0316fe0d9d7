package httpsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mlgate/internal/errors"
)

// Fetcher performs a single bounded GET per call. Failures are returned to
// the caller as NETWORK_ERROR and never retried.
type Fetcher struct {
	Timeout time.Duration
	Client  *http.Client
}

// NewFetcher creates a fetcher with its own client bound to timeout
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		Timeout: timeout,
		Client:  &http.Client{Timeout: timeout},
	}
}

// Fetch downloads url and returns the body bytes unchanged
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.NetworkError("missing dataset URL", nil)
	}

	client := f.Client
	if client == nil {
		client = &http.Client{Timeout: f.Timeout}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.NetworkError(fmt.Sprintf("build request for %s", url), err)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, errors.NetworkError(fmt.Sprintf("GET %s failed", url), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NetworkError(fmt.Sprintf("read response from %s", url), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.NetworkError(fmt.Sprintf("GET %s returned http %d", url, resp.StatusCode), nil)
	}
	return body, nil
}
