package lightmap

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	// Registered image formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/gogpu/envfx/internal/applog"
	"github.com/gogpu/envfx/internal/cache"
	"github.com/gogpu/envfx/light"
)

// RetryDelay is the default pause before the cache-busting re-fetch.
const RetryDelay = 2 * time.Second

// DecodeError reports that an image could not be fetched or decoded.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("lightmap: decode %s: %v", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decoder fetches and decodes an image by URL or path.
type Decoder interface {
	Decode(ctx context.Context, url string) (*image.NRGBA, error)
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithHTTPClient sets the client used for http and https URLs.
func WithHTTPClient(c *http.Client) LoaderOption {
	return func(l *Loader) { l.client = c }
}

// WithRetry sets how many cache-busting re-fetches follow a failed load and
// the delay before each.
func WithRetry(retries int, delay time.Duration) LoaderOption {
	return func(l *Loader) {
		l.retries = max(retries, 0)
		l.retryDelay = delay
	}
}

// WithCacheSize bounds the number of decoded images kept in memory.
// Zero disables caching.
func WithCacheSize(n int) LoaderOption {
	return func(l *Loader) { l.cacheSize = n }
}

// WithClock sets the time source used for cache-busting parameters.
func WithClock(now func() time.Time) LoaderOption {
	return func(l *Loader) { l.now = now }
}

// Loader is the default Decoder. It reads local paths, file:// URLs and
// http(s) URLs, and decodes PNG, JPEG, GIF, BMP and WebP.
//
// Successfully decoded images are cached by URL. A failed load is retried
// after a delay with a cache-busting query parameter.
type Loader struct {
	client     *http.Client
	retries    int
	retryDelay time.Duration
	cacheSize  int
	now        func() time.Time
	images     *cache.Cache[string, *image.NRGBA]
}

// NewLoader creates a Loader with one retry after RetryDelay and a cache of
// 16 images.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		client:     http.DefaultClient,
		retries:    1,
		retryDelay: RetryDelay,
		cacheSize:  16,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.cacheSize > 0 {
		l.images = cache.New[string, *image.NRGBA](l.cacheSize)
	}
	return l
}

// Decode implements Decoder.
func (l *Loader) Decode(ctx context.Context, src string) (*image.NRGBA, error) {
	if l.images != nil {
		if img, ok := l.images.Get(src); ok {
			return img, nil
		}
	}

	img, err := l.load(ctx, src)
	for attempt := 0; err != nil && attempt < l.retries; attempt++ {
		applog.Logger().Warn("lightmap: load failed, retrying",
			"url", src, "attempt", attempt+1, "delay", l.retryDelay, "err", err)
		if werr := sleep(ctx, l.retryDelay); werr != nil {
			return nil, &DecodeError{URL: src, Err: werr}
		}
		img, err = l.load(ctx, CacheBust(src, l.now()))
	}
	if err != nil {
		return nil, err
	}

	if l.images != nil {
		l.images.Set(src, img)
	}
	return img, nil
}

func (l *Loader) load(ctx context.Context, src string) (*image.NRGBA, error) {
	rc, err := l.open(ctx, src)
	if err != nil {
		return nil, &DecodeError{URL: src, Err: err}
	}
	defer rc.Close()

	img, format, err := image.Decode(rc)
	if err != nil {
		return nil, &DecodeError{URL: src, Err: err}
	}
	applog.Logger().Debug("lightmap: decoded image",
		"url", src, "format", format, "bounds", img.Bounds())
	return toNRGBA(img), nil
}

func (l *Loader) open(ctx context.Context, src string) (io.ReadCloser, error) {
	switch {
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
		if err != nil {
			return nil, err
		}
		resp, err := l.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status %s", resp.Status)
		}
		return resp.Body, nil
	case strings.HasPrefix(src, "file://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, err
		}
		return os.Open(u.Path)
	default:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return os.Open(src)
	}
}

// CacheBust returns src with a "t" query parameter set to the Unix
// millisecond time of now. Only http(s) URLs are rewritten; paths and
// file:// URLs are returned unchanged.
func CacheBust(src string, now time.Time) string {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return src
	}
	u, err := url.Parse(src)
	if err != nil {
		return src
	}
	q := u.Query()
	q.Set("t", strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Extract decodes the lightmap at src and scans it. Decode failures are
// logged and yield no lights.
func Extract(ctx context.Context, dec Decoder, src string, cfg Config, target image.Point) []light.Light {
	img, err := dec.Decode(ctx, src)
	if err != nil {
		applog.Logger().Warn("lightmap: no lights extracted", "url", src, "err", err)
		return nil
	}
	if img == nil {
		return nil
	}
	lights := ScanImage(img, cfg, target)
	applog.Logger().Info("lightmap: lights extracted", "url", src, "count", len(lights))
	return lights
}
