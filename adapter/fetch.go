package adapter

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/njsecure/orbit"
)

// maxDownloadSize bounds a single download.
const maxDownloadSize = 512 << 20

type fetchSettings struct {
	client       *http.Client
	cacheDir     string
	cacheTTL     time.Duration
	forceRefresh bool
	logger       *slog.Logger
}

// fetcher reads local files and http(s) URLs, caching downloads on disk.
type fetcher struct {
	settings fetchSettings
	now      func() time.Time
}

func newFetcher(s fetchSettings) *fetcher {
	return &fetcher{settings: s, now: time.Now}
}

// fetch returns the payload at location. Every failure matches
// orbit.ErrSourceUnavailable.
func (f *fetcher) fetch(ctx context.Context, op, location string) (Raw, error) {
	unavailable := func(err error) (Raw, error) {
		return Raw{}, orbit.NewSourceUnavailableError(op, err).
			WithContext(map[string]any{"location": location})
	}

	if location == "" {
		return unavailable(errors.New("no location given"))
	}
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}

	if !isRemote(location) {
		data, err := os.ReadFile(strings.TrimPrefix(location, "file://"))
		if err != nil {
			return unavailable(err)
		}
		return Raw{Location: location, Data: data}, nil
	}

	target := rawURL(location)
	cachePath := f.cachePath(target)

	if cachePath != "" && !f.settings.forceRefresh {
		if data, ok := f.readCache(cachePath); ok {
			f.settings.logger.Debug("using cached download", "url", target, "path", cachePath, "bytes", len(data))
			return Raw{Location: target, Data: data, Cached: true}, nil
		}
	}

	data, err := f.download(ctx, target)
	if err != nil {
		return unavailable(err)
	}

	if cachePath != "" {
		f.writeCache(cachePath, data)
	}
	return Raw{Location: target, Data: data}, nil
}

func (f *fetcher) download(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "orbit")

	start := f.now()
	resp, err := f.settings.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", target, err)
	}
	defer orbit.CloseWithLog(resp.Body, f.settings.logger, "response body")

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download %s: unexpected status %s", target, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", target, err)
	}
	if len(data) > maxDownloadSize {
		return nil, fmt.Errorf("download %s: payload exceeds %d bytes", target, maxDownloadSize)
	}

	f.settings.logger.Debug("downloaded source",
		"url", target,
		"bytes", len(data),
		"duration", f.now().Sub(start))
	return data, nil
}

func (f *fetcher) cachePath(target string) string {
	if f.settings.cacheDir == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(target))
	name := hex.EncodeToString(sum[:8]) + "-" + path.Base(target)
	return filepath.Join(f.settings.cacheDir, name)
}

func (f *fetcher) readCache(p string) ([]byte, bool) {
	info, err := os.Stat(p)
	if err != nil {
		return nil, false
	}
	if f.settings.cacheTTL > 0 && f.now().Sub(info.ModTime()) >= f.settings.cacheTTL {
		return nil, false
	}
	data, err := os.ReadFile(p)
	if err != nil {
		f.settings.logger.Warn("failed to read cache, downloading", "path", p, "error", err)
		return nil, false
	}
	return data, true
}

// writeCache stores data atomically. Failures are logged, not returned: the
// download itself succeeded.
func (f *fetcher) writeCache(p string, data []byte) {
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		f.settings.logger.Warn("failed to create cache directory", "path", p, "error", err)
		return
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		f.settings.logger.Warn("failed to write cache", "path", p, "error", err)
		return
	}
	if err := os.Rename(tmp, p); err != nil {
		f.settings.logger.Warn("failed to rename cache file", "path", p, "error", err)
		_ = os.Remove(tmp)
	}
}

func isRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// rawURL rewrites a GitHub "blob" page URL to the raw content URL. Other
// URLs are returned unchanged.
func rawURL(location string) string {
	u, err := url.Parse(location)
	if err != nil || u.Host != "github.com" {
		return location
	}
	// /<owner>/<repo>/blob/<ref>/<path...>
	parts := strings.SplitN(strings.TrimPrefix(u.Path, "/"), "/", 4)
	if len(parts) < 4 || parts[2] != "blob" {
		return location
	}
	u.Host = "raw.githubusercontent.com"
	u.Path = "/" + parts[0] + "/" + parts[1] + "/" + parts[3]
	u.RawQuery = ""
	return u.String()
}
