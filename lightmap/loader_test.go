package lightmap

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func writeLightmap(t *testing.T) string {
	t.Helper()
	img := newBlack(256, 256)
	fill(img, 100, 100, 120, 120, gray(255))
	path := filepath.Join(t.TempDir(), "lightmap.png")
	if err := os.WriteFile(path, encodePNG(t, img), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoaderDecodeFile(t *testing.T) {
	path := writeLightmap(t)
	l := NewLoader()

	for _, src := range []string{path, "file://" + path} {
		img, err := l.Decode(context.Background(), src)
		if err != nil {
			t.Fatalf("Decode(%q): %v", src, err)
		}
		if img.Bounds().Dx() != 256 || img.Bounds().Dy() != 256 {
			t.Errorf("Decode(%q) bounds = %v", src, img.Bounds())
		}
	}
}

func TestLoaderMissingFile(t *testing.T) {
	l := NewLoader(WithRetry(0, 0))
	_, err := l.Decode(context.Background(), filepath.Join(t.TempDir(), "nope.png"))
	if err == nil {
		t.Fatal("Decode() of missing file succeeded")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error %T is not *DecodeError", err)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error %v does not wrap os.ErrNotExist", err)
	}
}

func TestLoaderNotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.png")
	if err := os.WriteFile(path, []byte("definitely not a png"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := NewLoader(WithRetry(0, 0)).Decode(context.Background(), path)
	if !errors.Is(err, image.ErrFormat) {
		t.Errorf("Decode() error = %v, want image.ErrFormat", err)
	}
}

func TestLoaderRetriesWithCacheBust(t *testing.T) {
	img := newBlack(64, 64)
	body := encodePNG(t, img)

	var calls atomic.Int32
	var lastQuery atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		lastQuery.Store(r.URL.RawQuery)
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	now := time.UnixMilli(1700000000123)
	l := NewLoader(
		WithHTTPClient(srv.Client()),
		WithRetry(1, 0),
		WithClock(func() time.Time { return now }),
	)

	got, err := l.Decode(context.Background(), srv.URL+"/map.png")
	if err != nil {
		t.Fatalf("Decode(): %v", err)
	}
	if got.Bounds().Dx() != 64 {
		t.Errorf("bounds = %v", got.Bounds())
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server calls = %d, want 2", n)
	}
	if q, _ := lastQuery.Load().(string); q != "t=1700000000123" {
		t.Errorf("retry query = %q, want t=1700000000123", q)
	}

	// Cached under the original URL.
	if _, err := l.Decode(context.Background(), srv.URL+"/map.png"); err != nil {
		t.Fatal(err)
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("server calls after cache hit = %d, want 2", n)
	}
}

func TestLoaderRetryHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.NotFound(w, nil)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	l := NewLoader(WithHTTPClient(srv.Client()), WithRetry(1, time.Hour))
	_, err := l.Decode(ctx, srv.URL+"/map.png")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Decode() error = %v, want context.Canceled", err)
	}
}

func TestLoaderCacheDisabled(t *testing.T) {
	path := writeLightmap(t)
	l := NewLoader(WithCacheSize(0))
	a, err := l.Decode(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	b, err := l.Decode(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("expected a fresh image with caching disabled")
	}
}

func TestCacheBust(t *testing.T) {
	now := time.UnixMilli(42)
	tests := []struct {
		in   string
		want string
	}{
		{"https://cdn.example.com/map.png", "https://cdn.example.com/map.png?t=42"},
		{"http://host/map.png?v=2", "http://host/map.png?t=42&v=2"},
		{"http://host/map.png?t=1", "http://host/map.png?t=42"},
		{"assets/map.png", "assets/map.png"},
		{"file:///tmp/map.png", "file:///tmp/map.png"},
	}
	for _, tt := range tests {
		if got := CacheBust(tt.in, now); got != tt.want {
			t.Errorf("CacheBust(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

type stubDecoder struct {
	img *image.NRGBA
	err error
}

func (s stubDecoder) Decode(context.Context, string) (*image.NRGBA, error) {
	return s.img, s.err
}

func TestExtract(t *testing.T) {
	img := newBlack(256, 256)
	fill(img, 100, 100, 120, 120, gray(255))

	lights := Extract(context.Background(), stubDecoder{img: img}, "x", DefaultConfig, image.Point{})
	if len(lights) != 1 {
		t.Fatalf("Extract() = %d lights, want 1", len(lights))
	}

	failing := stubDecoder{err: &DecodeError{URL: "x", Err: errors.New("boom")}}
	if got := Extract(context.Background(), failing, "x", DefaultConfig, image.Point{}); got != nil {
		t.Errorf("Extract() on failure = %v, want nil", got)
	}
	if got := Extract(context.Background(), stubDecoder{}, "x", DefaultConfig, image.Point{}); got != nil {
		t.Errorf("Extract() on nil image = %v, want nil", got)
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	err := &DecodeError{URL: "a.png", Err: errors.New("bad")}
	if !strings.Contains(err.Error(), "a.png") || !strings.Contains(err.Error(), "bad") {
		t.Errorf("Error() = %q", err.Error())
	}
}
