package ics

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterbourgon/diskv/v3"

	appLog "meetcal/internal/log"
	"meetcal/internal/model"
)

// Source is a single meetings feed.
type Source struct {
	// ID identifies the feed in logs and seeds fallback meeting IDs.
	ID string
	// URL is an http(s) URL, a file:// URL or a local path.
	URL string
}

// FetchResult is the raw body of one feed.
type FetchResult struct {
	Source    Source
	Body      []byte
	FromCache bool
}

type cacheEntry struct {
	URL          string    `json:"url"`
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Fetcher loads feeds. Remote feeds are fetched with conditional requests
// against a disk cache and fall back to the cached body when the server is
// unreachable.
type Fetcher struct {
	client *http.Client
	cache  *diskv.Diskv
}

// NewFetcher creates a Fetcher caching remote feeds under cacheDir.
func NewFetcher(cacheDir string) *Fetcher {
	if cacheDir == "" {
		cacheDir = "./cache/feeds"
	}
	return &Fetcher{
		client: &http.Client{Timeout: 15 * time.Second},
		cache: diskv.New(diskv.Options{
			BasePath:     cacheDir,
			TempDir:      filepath.Join(cacheDir, ".tmp"),
			CacheSizeMax: 4 * 1024 * 1024,
			FilePerm:     0o600,
			PathPerm:     0o700,
		}),
	}
}

// LoadAll fetches and decodes every source. Sources that fail are logged,
// reported in the error slice and skipped; the others still load.
func (f *Fetcher) LoadAll(ctx context.Context, sources []Source) ([]model.Meeting, []error) {
	var (
		out  []model.Meeting
		errs []error
	)
	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			appLog.Error("feed fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			errs = append(errs, err)
			continue
		}
		meetings, err := Decode(res.Source, res.Body)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, meetings...)
	}
	return out, errs
}

// FetchOne returns the body of a single source.
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, fmt.Errorf("ics: source %q has no URL", src.ID)
	}
	if path, ok := localPath(src.URL); ok {
		body, err := os.ReadFile(path)
		if err != nil {
			return FetchResult{}, fmt.Errorf("ics: read %s: %w", path, err)
		}
		return FetchResult{Source: src, Body: body}, nil
	}
	return f.fetchRemote(ctx, src)
}

// localPath reports whether raw names a file rather than an http(s) URL.
func localPath(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw, true
	}
	switch strings.ToLower(u.Scheme) {
	case "file":
		return u.Path, true
	case "http", "https":
		return "", false
	}
	// Windows drive letters parse as a scheme.
	return raw, len(u.Scheme) == 1
}

func (f *Fetcher) fetchRemote(ctx context.Context, src Source) (FetchResult, error) {
	key := cacheKey(src.URL)
	meta, _ := f.loadCacheMeta(key)
	cachedBody, _ := f.cache.Read(key + ".ics")
	cached := func(reason error) (FetchResult, error) {
		if len(cachedBody) == 0 {
			return FetchResult{}, reason
		}
		appLog.Warn("feed fetch failed, using cached body", "id", src.ID, "url", redactURL(src.URL), "reason", reason.Error())
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	if meta.ETag != "" {
		req.Header.Set("If-None-Match", meta.ETag)
	}
	if meta.LastModified != "" {
		req.Header.Set("If-Modified-Since", meta.LastModified)
	}

	appLog.Debug("feed fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return cached(err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return FetchResult{}, err
		}
		entry := cacheEntry{
			URL:          src.URL,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}
		if err := f.saveCache(key, entry, body); err != nil {
			appLog.Error("feed cache save failed", err, "id", src.ID, "url", redactURL(src.URL))
		}
		appLog.Info("feed fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(body))
		return FetchResult{Source: src, Body: body}, nil

	case http.StatusNotModified:
		if len(cachedBody) == 0 {
			return FetchResult{}, errors.New("ics: 304 Not Modified without a cached body")
		}
		appLog.Debug("feed not modified; using cache", "id", src.ID, "url", redactURL(src.URL))
		return FetchResult{Source: src, Body: cachedBody, FromCache: true}, nil

	default:
		return cached(fmt.Errorf("ics: %s: %s", redactURL(src.URL), resp.Status))
	}
}

// cacheKey maps a feed URL to a flat cache key.
func cacheKey(u string) string {
	sum := sha256.Sum256([]byte(u))
	return hex.EncodeToString(sum[:8])
}

func (f *Fetcher) loadCacheMeta(key string) (cacheEntry, error) {
	var meta cacheEntry
	data, err := f.cache.Read(key + ".json")
	if err != nil {
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return cacheEntry{}, err
	}
	return meta, nil
}

func (f *Fetcher) saveCache(key string, meta cacheEntry, body []byte) error {
	// Body first so meta never points at a missing body.
	if err := f.cache.Write(key+".ics", body); err != nil {
		return err
	}
	meta.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	return f.cache.Write(key+".json", data)
}

// redactURL keeps only scheme and host of a feed URL for logging; private
// calendar URLs often embed tokens in the path or query.
func redactURL(raw string) string {
	if p, ok := localPath(raw); ok {
		return "file://" + filepath.Base(p)
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "feed://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
