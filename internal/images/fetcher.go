// ABOUTME: Byte sources for image resolution: HTTP(S) and a local asset directory
// ABOUTME: Relative sources resolve against the asset directory or a configured base URL

package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// DefaultMaxImageBytes caps how much of a response body is read.
const DefaultMaxImageBytes = 20 << 20

// ErrUnresolvable is returned for a relative source when neither an asset
// directory nor a base URL is configured.
var ErrUnresolvable = errors.New("relative image source with no asset dir or base url")

// Fetcher loads the raw bytes of an image. Implementations must honour ctx
// cancellation; the service also abandons fetches that ignore it.
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, src string) ([]byte, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, src string) ([]byte, error) {
	return f(ctx, src)
}

// HTTPStatusError reports a non-200 response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetching %s: status %d", e.URL, e.StatusCode)
}

// HTTPFetcherConfig configures an HTTPFetcher.
type HTTPFetcherConfig struct {
	// BaseURL resolves relative sources such as "/images/a.jpg".
	BaseURL string
	// AssetDir serves relative sources from disk; it takes precedence over BaseURL.
	AssetDir  string
	UserAgent string
	MaxBytes  int64
	Client    *http.Client
}

// HTTPFetcher fetches absolute URLs over HTTP and relative ones from disk or a base URL.
type HTTPFetcher struct {
	client    *http.Client
	baseURL   *url.URL
	assetDir  string
	userAgent string
	maxBytes  int64
}

// NewHTTPFetcher validates cfg and builds a fetcher.
func NewHTTPFetcher(cfg HTTPFetcherConfig) (*HTTPFetcher, error) {
	f := &HTTPFetcher{
		client:    cfg.Client,
		assetDir:  strings.TrimSpace(cfg.AssetDir),
		userAgent: strings.TrimSpace(cfg.UserAgent),
		maxBytes:  cfg.MaxBytes,
	}
	if f.client == nil {
		// Per-attempt deadlines come from the caller's context
		f.client = &http.Client{Timeout: time.Minute}
	}
	if f.maxBytes <= 0 {
		f.maxBytes = DefaultMaxImageBytes
	}
	if f.userAgent == "" {
		f.userAgent = "nurture-hub"
	}

	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parsing base url %q: %w", base, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return nil, fmt.Errorf("base url %q must be http or https", base)
		}
		f.baseURL = u
	}

	return f, nil
}

// Fetch returns the bytes behind src.
func (f *HTTPFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(src))
	if err != nil {
		return nil, fmt.Errorf("parsing source %q: %w", src, err)
	}

	switch {
	case u.Scheme == "http" || u.Scheme == "https":
		return f.get(ctx, u)
	case u.Scheme != "":
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	case f.assetDir != "":
		return f.readAsset(ctx, u.Path)
	case f.baseURL != nil:
		return f.get(ctx, f.baseURL.ResolveReference(u))
	default:
		return nil, ErrUnresolvable
	}
}

func (f *HTTPFetcher) get(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "image/avif,image/webp,image/png,image/jpeg,image/gif,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &HTTPStatusError{URL: u.String(), StatusCode: resp.StatusCode}
	}

	return readLimited(resp.Body, f.maxBytes)
}

func (f *HTTPFetcher) readAsset(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Clean against "/" so "../" cannot escape the asset directory
	clean := path.Clean("/" + p)
	file, err := os.Open(filepath.Join(f.assetDir, filepath.FromSlash(clean)))
	if err != nil {
		return nil, fmt.Errorf("opening asset %s: %w", clean, err)
	}
	defer file.Close()

	return readLimited(file, f.maxBytes)
}

func readLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("image exceeds %d bytes", limit)
	}
	return data, nil
}
