package cachepurge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPWorker checks for updates by fetching a manifest URL.
type HTTPWorker struct {
	URL    string
	Client *http.Client

	// Headers supplies request headers, normally refresh.Signal.Headers so
	// the check bypasses intermediate caches.
	Headers func(ctx context.Context) map[string]string
}

// Update fetches URL. An empty URL is unsupported; a non-2xx status is an
// error.
func (w *HTTPWorker) Update(ctx context.Context) error {
	if w.URL == "" {
		return ErrUnsupported
	}
	client := w.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
	if err != nil {
		return fmt.Errorf("build update request: %w", err)
	}
	if w.Headers != nil {
		for k, v := range w.Headers(ctx) {
			req.Header.Set(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("fetch update manifest: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fetch update manifest: unexpected status %s", resp.Status)
	}
	return nil
}
