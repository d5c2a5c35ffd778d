package thumbnail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deusflow/milnews/internal/storage"
)

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newResolver(t *testing.T) (*Resolver, *storage.FileCache) {
	t.Helper()
	fc := storage.NewFileCache(t.TempDir(), ".jpg")
	return NewResolver(nil, fc, Options{Timeout: 2 * time.Second}), fc
}

func TestKey(t *testing.T) {
	u := "https://example.com/a b.png?x=1&y=2"
	key := Key(u, 320, 180)
	assert.Equal(t, base64.RawURLEncoding.EncodeToString([]byte(u))+"_320x180", key)
	assert.Equal(t, key, Key(u, 320, 180))
	assert.NotEqual(t, key, Key(u, 180, 320))
	assert.NotContains(t, key, "/")
}

func TestResolve_ExactDimensions(t *testing.T) {
	img := pngBytes(t, 400, 100)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(img)
	}))
	defer srv.Close()

	r, fc := newResolver(t)
	for _, size := range [][2]int{{120, 120}, {300, 50}, {50, 300}} {
		data, err := r.Resolve(context.Background(), srv.URL+"/wide.png", size[0], size[1])
		require.NoError(t, err)

		out, err := jpeg.Decode(bytes.NewReader(data))
		require.NoError(t, err)
		assert.Equal(t, size[0], out.Bounds().Dx())
		assert.Equal(t, size[1], out.Bounds().Dy())
		assert.FileExists(t, fc.Path(Key(srv.URL+"/wide.png", size[0], size[1])))
	}
}

func TestResolve_CacheHitSkipsNetwork(t *testing.T) {
	var hits atomic.Int32
	img := pngBytes(t, 64, 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Write(img)
	}))
	defer srv.Close()

	r, _ := newResolver(t)
	first, err := r.Resolve(context.Background(), srv.URL+"/a.png", 32, 32)
	require.NoError(t, err)
	second, err := r.Resolve(context.Background(), srv.URL+"/a.png", 32, 32)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load())
}

func TestResolve_ConcurrentRequestsShareOneFetch(t *testing.T) {
	var hits atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	img := pngBytes(t, 200, 150)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			close(started)
		}
		<-release
		w.Write(img)
	}))
	defer srv.Close()

	r, fc := newResolver(t)
	const callers = 10
	results := make([][]byte, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.Resolve(context.Background(), srv.URL+"/same.png", 90, 60)
		}(i)
	}

	<-started
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), hits.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}

	onDisk, err := os.ReadFile(fc.Path(Key(srv.URL+"/same.png", 90, 60)))
	require.NoError(t, err)
	assert.Equal(t, results[0], onDisk)
}

func TestResolve_FailuresAreNotFound(t *testing.T) {
	small := pngBytes(t, 10, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.png":
			http.NotFound(w, r)
		case "/garbage.png":
			w.Write([]byte("definitely not an image"))
		case "/slow.png":
			time.Sleep(500 * time.Millisecond)
			w.Write(small)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	fc := storage.NewFileCache(dir, ".jpg")
	r := NewResolver(nil, fc, Options{Timeout: 100 * time.Millisecond})

	cases := []struct {
		name string
		url  string
		w, h int
	}{
		{"non-200", srv.URL + "/missing.png", 10, 10},
		{"undecodable", srv.URL + "/garbage.png", 10, 10},
		{"timeout", srv.URL + "/slow.png", 10, 10},
		{"bad scheme", "ftp://example.com/a.png", 10, 10},
		{"relative", "/a.png", 10, 10},
		{"zero size", srv.URL + "/missing.png", 0, 10},
		{"too large", srv.URL + "/missing.png", 10, DefaultMaxDim + 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := r.Resolve(context.Background(), tc.url, tc.w, tc.h)
			assert.Nil(t, data)
			assert.True(t, errors.Is(err, ErrNotFound), "got %v", err)
			assert.NoFileExists(t, fc.Path(Key(tc.url, tc.w, tc.h)))
		})
	}

	entries, err := os.ReadDir(dir)
	if err == nil {
		assert.Empty(t, entries, "no partial cache files")
	}
}

func TestResolve_OversizedImageIsCutOff(t *testing.T) {
	var written atomic.Int64
	chunk := make([]byte, 64<<10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		for written.Load() < 4*maxImageBytes {
			n, err := w.Write(chunk)
			written.Add(int64(n))
			if err != nil {
				return
			}
		}
	}))

	r, fc := newResolver(t)
	u := srv.URL + "/huge.png"
	data, err := r.Resolve(context.Background(), u, 10, 10)
	srv.Close()

	assert.Nil(t, data)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "too large")
	assert.Less(t, written.Load(), int64(4*maxImageBytes))
	assert.NoFileExists(t, fc.Path(Key(u, 10, 10)))
}

func TestCropToFill(t *testing.T) {
	wide := image.Rect(0, 0, 400, 100)
	assert.Equal(t, image.Rect(150, 0, 250, 100), cropToFill(wide, 50, 50))

	tall := image.Rect(0, 0, 100, 400)
	assert.Equal(t, image.Rect(0, 150, 100, 250), cropToFill(tall, 50, 50))

	same := image.Rect(10, 10, 110, 60)
	assert.Equal(t, same, cropToFill(same, 200, 100))
}
