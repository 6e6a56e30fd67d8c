package profile

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

func serve(t *testing.T, h fasthttp.RequestHandler) func(string) (net.Conn, error) {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	srv := &fasthttp.Server{Handler: h}
	go func() { _ = srv.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })
	return func(string) (net.Conn, error) { return ln.Dial() }
}

func TestClientMe(t *testing.T) {
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/42":
			if string(ctx.QueryArgs().Peek("fields")) != "id,first_name" {
				ctx.SetStatusCode(fasthttp.StatusBadRequest)
				return
			}
			ctx.SetBodyString(`{"id":"42","first_name":" Mina "}`)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	})
	c := NewClient("http://graph.test/", WithDial(dial))

	p, err := c.Me(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42", p.ExternalID)
	assert.Equal(t, "Mina", p.Name)
	assert.Equal(t, "http://graph.test/42/picture?type=small", p.ImageURL)
	assert.Zero(t, p.Score)

	_, err = c.Me(context.Background(), "7")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClientServerError(t *testing.T) {
	var calls atomic.Int32
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusBadGateway)
	})
	c := NewClient("http://graph.test", WithDial(dial))
	_, err := c.Me(context.Background(), "42")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load(), "single attempt")
}

func TestClientNotConfigured(t *testing.T) {
	var c *Client
	_, err := c.Me(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = NewClient("  ").Me(context.Background(), "1")
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Empty(t, NewClient("").PictureURL("1"))
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestAvatarFetchScalesAndCaches(t *testing.T) {
	body := pngBytes(t, 120, 80)
	var calls atomic.Int32
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		if string(ctx.Path()) != "/a.png" {
			ctx.SetStatusCode(fasthttp.StatusNotFound)
			return
		}
		ctx.SetContentType("image/png")
		ctx.SetBody(body)
	})
	cache := NewAvatarCache(dial)

	img, err := cache.Fetch(context.Background(), "http://cdn.test/a.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, AvatarSize, AvatarSize), img.Bounds())

	again, err := cache.Fetch(context.Background(), "http://cdn.test/a.png")
	require.NoError(t, err)
	assert.Same(t, img, again)
	assert.Equal(t, int32(1), calls.Load())

	cached, ok := cache.Cached("http://cdn.test/a.png")
	assert.True(t, ok)
	assert.Same(t, img, cached)
}

func TestAvatarFailureIsRemembered(t *testing.T) {
	var calls atomic.Int32
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetStatusCode(fasthttp.StatusNotFound)
	})
	cache := NewAvatarCache(dial)

	_, err := cache.Fetch(context.Background(), "http://cdn.test/missing.png")
	assert.True(t, errors.Is(err, ErrNoAvatar))
	_, err = cache.Fetch(context.Background(), "http://cdn.test/missing.png")
	assert.ErrorIs(t, err, ErrNoAvatar)
	assert.Equal(t, int32(1), calls.Load())

	_, ok := cache.Cached("http://cdn.test/missing.png")
	assert.False(t, ok)

	_, err = cache.Fetch(context.Background(), "")
	assert.ErrorIs(t, err, ErrNoAvatar)
}

func TestAvatarContextErrorIsNotRemembered(t *testing.T) {
	body := pngBytes(t, 60, 60)
	var calls atomic.Int32
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		ctx.SetBody(body)
	})
	cache := NewAvatarCache(dial)

	expired, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()
	_, err := cache.Fetch(expired, "http://cdn.test/a.png")
	require.ErrorIs(t, err, ErrNoAvatar)
	_, ok := cache.Cached("http://cdn.test/a.png")
	assert.False(t, ok)

	img, err := cache.Fetch(context.Background(), "http://cdn.test/a.png")
	require.NoError(t, err)
	assert.NotNil(t, img)
	_, ok = cache.Cached("http://cdn.test/a.png")
	assert.True(t, ok)
}

func TestAvatarSlowDownloadStillLandsInCache(t *testing.T) {
	body := pngBytes(t, 60, 60)
	release := make(chan struct{})
	var calls atomic.Int32
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		<-release
		ctx.SetBody(body)
	})
	cache := NewAvatarCache(dial)

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := cache.Fetch(short, "http://cdn.test/slow.png")
	require.ErrorIs(t, err, ErrNoAvatar)
	close(release)

	img, err := cache.Fetch(context.Background(), "http://cdn.test/slow.png")
	require.NoError(t, err)
	assert.NotNil(t, img)
	assert.Equal(t, int32(1), calls.Load(), "second fetch joins or reuses the first download")
}

func TestAvatarServerErrorIsRetried(t *testing.T) {
	body := pngBytes(t, 60, 60)
	var calls atomic.Int32
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		if calls.Add(1) == 1 {
			ctx.SetStatusCode(fasthttp.StatusBadGateway)
			return
		}
		ctx.SetBody(body)
	})
	cache := NewAvatarCache(dial)

	_, err := cache.Fetch(context.Background(), "http://cdn.test/a.png")
	require.ErrorIs(t, err, ErrNoAvatar)
	img, err := cache.Fetch(context.Background(), "http://cdn.test/a.png")
	require.NoError(t, err)
	assert.NotNil(t, img)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAvatarConcurrentFetchSharesDownload(t *testing.T) {
	body := pngBytes(t, 60, 60)
	release := make(chan struct{})
	var calls atomic.Int32
	dial := serve(t, func(ctx *fasthttp.RequestCtx) {
		calls.Add(1)
		<-release
		ctx.SetBody(body)
	})
	cache := NewAvatarCache(dial)

	const n = 8
	var wg sync.WaitGroup
	results := make([]image.Image, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = cache.Fetch(context.Background(), "http://cdn.test/same.png")
		}(i)
	}
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	// 늦게 온 호출도 같은 다운로드에 붙을 시간을 준다
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, img := range results {
		assert.Same(t, results[0], img)
	}
}

func TestAvatarCacheEvictsOldest(t *testing.T) {
	body := pngBytes(t, 10, 10)
	dial := serve(t, func(ctx *fasthttp.RequestCtx) { ctx.SetBody(body) })
	cache := NewAvatarCache(dial)
	cache.limit = 2

	for _, u := range []string{"http://cdn.test/1.png", "http://cdn.test/2.png", "http://cdn.test/3.png"} {
		_, err := cache.Fetch(context.Background(), u)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.Len())
	_, ok := cache.Cached("http://cdn.test/1.png")
	assert.False(t, ok)
	_, ok = cache.Cached("http://cdn.test/3.png")
	assert.True(t, ok)
}
