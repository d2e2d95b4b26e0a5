// Package refresh carries the one-shot "bypass caches" signal from a
// migration pass to the data-fetching layer.
package refresh

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/roach88/coherence/internal/clock"
	"github.com/roach88/coherence/internal/kv"
)

// Session-store keys.
const (
	KeyForceRefresh    = "force_refresh"
	KeyUpdateTimestamp = "update_timestamp"
)

// Header names and values sent while an update is recent.
const (
	HeaderCacheControl = "Cache-Control"
	HeaderPragma       = "Pragma"
	HeaderExpires      = "Expires"
	HeaderAppVersion   = "X-App-Version"

	NoCache = "no-cache, no-store, must-revalidate"
)

// Signal reads and writes the refresh flag in the session store.
//
// The flag is consumed exactly once; the update timestamp stays for the
// rest of the session so every request keeps its no-cache headers.
type Signal struct {
	session    kv.Store
	appVersion string
	clock      clock.Clock
	logger     *slog.Logger
}

// New creates a Signal. appVersion is echoed in X-App-Version.
func New(session kv.Store, appVersion string, clk clock.Clock, logger *slog.Logger) *Signal {
	if clk == nil {
		clk = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Signal{session: session, appVersion: appVersion, clock: clk, logger: logger}
}

// Arm sets the flag and stamps the update time.
func (s *Signal) Arm(ctx context.Context) error {
	if err := s.session.Set(ctx, KeyForceRefresh, "1"); err != nil {
		return err
	}
	return s.session.Set(ctx, KeyUpdateTimestamp, clock.Format(s.clock.Now()))
}

// ConsumeOnce reports whether the flag was set, clearing it. Storage
// errors read as false.
func (s *Signal) ConsumeOnce(ctx context.Context) bool {
	v, ok, err := s.session.Get(ctx, KeyForceRefresh)
	if err != nil {
		s.logger.Warn("refresh flag unreadable", "error", err)
		return false
	}
	if !ok || v != "1" {
		return false
	}
	if err := s.session.Delete(ctx, KeyForceRefresh); err != nil {
		s.logger.Warn("refresh flag not cleared", "error", err)
	}
	return true
}

// Headers returns the request headers for the current session. It never
// writes.
func (s *Signal) Headers(ctx context.Context) map[string]string {
	h := map[string]string{HeaderAppVersion: s.appVersion}

	_, ok, err := s.session.Get(ctx, KeyUpdateTimestamp)
	if err != nil {
		s.logger.Debug("update timestamp unreadable", "error", err)
		return h
	}
	if ok {
		h[HeaderCacheControl] = NoCache
		h[HeaderPragma] = "no-cache"
		h[HeaderExpires] = "0"
	}
	return h
}

// Apply sets Headers on req, replacing existing values.
func (s *Signal) Apply(ctx context.Context, req *http.Request) {
	for k, v := range s.Headers(ctx) {
		req.Header.Set(k, v)
	}
}
