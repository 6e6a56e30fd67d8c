package profile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/valyala/fasthttp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

const (
	AvatarSize     = 50
	maxAvatarBytes = 2 << 20
	// 리더보드 상위 몇 명분이면 충분하다
	maxAvatarEntries = 256
)

var ErrNoAvatar = errors.New("avatar unavailable")

// permanentError marks a failure that will not change on retry (4xx, bad image).
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

type avatarEntry struct {
	img image.Image
	err error
}

// AvatarCache downloads and scales profile pictures once per URL. Permanent failures
// are remembered as misses; timeouts and transport errors are retried on the next Fetch.
type AvatarCache struct {
	http    *fasthttp.Client
	timeout time.Duration
	limit   int
	flight  singleflight.Group

	mu      sync.Mutex
	entries map[string]avatarEntry
	order   []string // insertion order, oldest first
}

func NewAvatarCache(dial func(addr string) (net.Conn, error)) *AvatarCache {
	c := &AvatarCache{
		http:    &fasthttp.Client{ReadTimeout: 5 * time.Second, MaxResponseBodySize: maxAvatarBytes},
		timeout: 4 * time.Second,
		limit:   maxAvatarEntries,
		entries: make(map[string]avatarEntry),
	}
	if dial != nil {
		c.http.Dial = dial
	}
	return c
}

// Fetch returns an AvatarSize×AvatarSize image for rawURL. Concurrent calls for the
// same URL share one download.
func (c *AvatarCache) Fetch(ctx context.Context, rawURL string) (image.Image, error) {
	rawURL = strings.TrimSpace(rawURL)
	if c == nil || rawURL == "" {
		return nil, ErrNoAvatar
	}
	if e, ok := c.lookup(rawURL); ok {
		return e.img, e.err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoAvatar, err)
	}

	ch := c.flight.DoChan(rawURL, func() (any, error) {
		// 다운로드는 첫 호출자의 ctx 에 묶이지 않는다
		img, err := c.download(rawURL)
		if err != nil {
			wrapped := fmt.Errorf("%w: %v", ErrNoAvatar, err)
			if isPermanent(err) {
				c.store(rawURL, avatarEntry{err: wrapped})
			}
			return nil, wrapped
		}
		c.store(rawURL, avatarEntry{img: img})
		return img, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNoAvatar, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(image.Image), nil
	}
}

// Cached returns an already fetched avatar without network access.
func (c *AvatarCache) Cached(rawURL string) (image.Image, bool) {
	if c == nil {
		return nil, false
	}
	e, ok := c.lookup(strings.TrimSpace(rawURL))
	if !ok || e.err != nil {
		return nil, false
	}
	return e.img, true
}

func (c *AvatarCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *AvatarCache) lookup(rawURL string) (avatarEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[rawURL]
	return e, ok
}

// store evicts the oldest entry once the cache is at its limit.
func (c *AvatarCache) store(rawURL string, e avatarEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[rawURL]; !ok {
		for len(c.order) >= c.limit {
			delete(c.entries, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, rawURL)
	}
	c.entries[rawURL] = e
}

func isPermanent(err error) bool {
	var perm *permanentError
	return errors.As(err, &perm)
}

func (c *AvatarCache) download(rawURL string) (image.Image, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(rawURL)
	req.SetTimeout(c.timeout)

	// Graph picture endpoints answer with a redirect to the CDN.
	if err := c.http.DoRedirects(req, resp, 3); err != nil {
		return nil, err
	}
	status := resp.StatusCode()
	switch {
	case status >= 400 && status < 500:
		return nil, &permanentError{fmt.Errorf("status=%d", status)}
	case status != fasthttp.StatusOK:
		return nil, fmt.Errorf("status=%d", status)
	}
	src, _, err := image.Decode(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, &permanentError{fmt.Errorf("decode avatar: %w", err)}
	}
	dst := image.NewRGBA(image.Rect(0, 0, AvatarSize, AvatarSize))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst, nil
}
