// Package thumbnail turns remote images into cached, fixed-size JPEG thumbnails.
package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/url"
	"strconv"
	"time"

	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"

	"github.com/deusflow/milnews/internal/httpclient"
	"github.com/deusflow/milnews/internal/logger"
	"github.com/deusflow/milnews/internal/metrics"
)

// ErrNotFound is returned for every resolution failure: bad input, network
// errors, non-200 responses and undecodable images alike.
var ErrNotFound = errors.New("thumbnail not found")

const (
	DefaultTimeout = 6 * time.Second
	DefaultQuality = 82
	DefaultMaxDim  = 1600

	maxImageBytes  = 15 << 20 // 15 MiB
	maxImagePixels = 50_000_000
)

var imageHeaders = map[string]string{
	"Accept": "image/avif,image/webp,image/png,image/jpeg,image/*;q=0.8,*/*;q=0.5",
}

// Key derives the cache key for url rendered at w×h.
func Key(rawURL string, w, h int) string {
	return base64.RawURLEncoding.EncodeToString([]byte(rawURL)) + "_" + strconv.Itoa(w) + "x" + strconv.Itoa(h)
}

// Cache is the blob store thumbnails are persisted in.
type Cache interface {
	Get(key string) ([]byte, bool, error)
	Put(key string, data []byte) error
}

// Options tune a Resolver. Zero values take the package defaults.
type Options struct {
	Timeout time.Duration
	Quality int
	MaxDim  int
}

func (o Options) withDefaults() Options {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Quality <= 0 || o.Quality > 100 {
		o.Quality = DefaultQuality
	}
	if o.MaxDim <= 0 {
		o.MaxDim = DefaultMaxDim
	}
	return o
}

// Resolver fetches, crops and caches thumbnails. Concurrent requests for the
// same key share one download.
type Resolver struct {
	client httpclient.Client
	cache  Cache
	opts   Options
	group  singleflight.Group
}

// NewResolver builds a Resolver. A nil client gets a default resty client.
func NewResolver(client httpclient.Client, cache Cache, opts Options) *Resolver {
	opts = opts.withDefaults()
	if client == nil {
		client = httpclient.NewRestyClient(opts.Timeout)
	}
	return &Resolver{client: client, cache: cache, opts: opts}
}

// Resolve returns JPEG bytes of exactly w×h pixels for the image at rawURL.
// The returned slice may be shared with other callers and must not be modified.
func (r *Resolver) Resolve(ctx context.Context, rawURL string, w, h int) ([]byte, error) {
	if err := r.validate(rawURL, w, h); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	key := Key(rawURL, w, h)
	if data, ok := r.cached(key); ok {
		metrics.Global.IncrementThumbnailHits()
		return data, nil
	}
	metrics.Global.IncrementThumbnailMisses()

	// The shared call must outlive whichever caller started it.
	shared := context.WithoutCancel(ctx)
	v, err, _ := r.group.Do(key, func() (any, error) {
		if data, ok := r.cached(key); ok {
			return data, nil
		}
		data, err := r.render(shared, rawURL, w, h)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Put(key, data); err != nil {
			logger.Warn("Failed to cache thumbnail", "url", rawURL, "error", err)
		}
		return data, nil
	})
	if err != nil {
		metrics.Global.IncrementThumbnailFailures()
		logger.Debug("Thumbnail resolution failed", "url", rawURL, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return v.([]byte), nil
}

func (r *Resolver) validate(rawURL string, w, h int) error {
	if w <= 0 || h <= 0 || w > r.opts.MaxDim || h > r.opts.MaxDim {
		return fmt.Errorf("invalid size %dx%d", w, h)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("unsupported url %q", rawURL)
	}
	return nil
}

func (r *Resolver) cached(key string) ([]byte, bool) {
	data, ok, err := r.cache.Get(key)
	if err != nil {
		logger.Warn("Thumbnail cache read failed", "key", key, "error", err)
		return nil, false
	}
	return data, ok
}

func (r *Resolver) render(ctx context.Context, rawURL string, w, h int) ([]byte, error) {
	raw, err := r.download(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return Render(raw, w, h, r.opts.Quality)
}

func (r *Resolver) download(ctx context.Context, rawURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, r.opts.Timeout)
	defer cancel()

	resp, err := r.client.Get(ctx, rawURL, imageHeaders, maxImageBytes)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("image %s returned status %d", rawURL, resp.StatusCode())
	}
	body := resp.Body()
	if len(body) == 0 {
		return nil, fmt.Errorf("image %s is empty", rawURL)
	}
	if len(body) > maxImageBytes {
		return nil, fmt.Errorf("image %s too large (%d bytes)", rawURL, len(body))
	}
	return body, nil
}

// Render decodes raw, crops it to the w:h aspect ratio around the centre,
// scales it to exactly w×h and encodes it as JPEG.
func Render(raw []byte, w, h, quality int) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image config: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > maxImagePixels {
		return nil, fmt.Errorf("unsupported image size %dx%d", cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, cropToFill(src.Bounds(), w, h), draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// cropToFill returns the largest centred rectangle inside b with aspect w:h.
func cropToFill(b image.Rectangle, w, h int) image.Rectangle {
	sw, sh := b.Dx(), b.Dy()
	if sw*h > sh*w {
		cw := max(sh*w/h, 1)
		x0 := b.Min.X + (sw-cw)/2
		return image.Rect(x0, b.Min.Y, x0+cw, b.Max.Y)
	}
	ch := max(sw*h/w, 1)
	y0 := b.Min.Y + (sh-ch)/2
	return image.Rect(b.Min.X, y0, b.Max.X, y0+ch)
}
