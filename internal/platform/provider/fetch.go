package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dontdude/goconv/internal/domain"
)

// HTTPFetcher downloads converted files from provider-issued URLs.
type HTTPFetcher struct {
	http     *http.Client
	maxBytes int64
}

var _ domain.ArtifactFetcher = (*HTTPFetcher)(nil)

// NewHTTPFetcher limits each download to maxBytes; zero means unlimited.
func NewHTTPFetcher(timeout time.Duration, maxBytes int64) *HTTPFetcher {
	return &HTTPFetcher{
		http:     &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// FetchArtifact GETs url and returns the body. Errors wrap domain.ErrArtifactFetch.
func (f *HTTPFetcher) FetchArtifact(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrArtifactFetch, err)
	}

	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrArtifactFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrArtifactFetch, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if f.maxBytes > 0 {
		body = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", domain.ErrArtifactFetch, err)
	}
	if f.maxBytes > 0 && int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: artifact exceeds %d bytes", domain.ErrArtifactFetch, f.maxBytes)
	}
	return data, nil
}
