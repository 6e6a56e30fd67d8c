package iris

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const (
	replyPath  = "/reply"
	configPath = "/config"

	maxErrorBody = 512
)

// StatusError is a non-2xx answer from Iris.
type StatusError struct {
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("iris %s: status=%d body=%s", e.Path, e.Status, e.Body)
}

// Temporary reports whether the gateway may accept the same request later.
func (e *StatusError) Temporary() bool {
	switch e.Status {
	case fasthttp.StatusInternalServerError, fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable, fasthttp.StatusGatewayTimeout:
		return true
	}
	return false
}

// Client posts chat replies to the Iris HTTP API.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	headers HeaderProvider
	timeout time.Duration
	tries   int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithRetry sets the total number of attempts for a reply.
func WithRetry(tries int) Option {
	return func(c *Client) { c.tries = tries }
}

func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &fasthttp.Client{
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			MaxConnsPerHost: 64,
		},
		timeout: 10 * time.Second,
		tries:   3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetConfig reads the gateway's bot settings. Used by the probe and never retried.
func (c *Client) GetConfig(ctx context.Context) (*Config, error) {
	body, err := c.once(ctx, fasthttp.MethodGet, configPath, nil)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(body, &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func (c *Client) SendMessage(ctx context.Context, room, message string) error {
	return c.reply(ctx, ReplyRequest{Type: "text", Room: room, Data: message})
}

// SendImage posts a base64 encoded PNG.
func (c *Client) SendImage(ctx context.Context, room, imageBase64 string) error {
	return c.reply(ctx, ReplyRequest{Type: "image", Room: room, Data: imageBase64})
}

// reply retries transport failures and temporary statuses; a duplicated line beats a lost frame.
func (c *Client) reply(ctx context.Context, r ReplyRequest) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}
	tries := max(c.tries, 1)
	var lastErr error
	for attempt := 0; attempt < tries; attempt++ {
		if attempt > 0 {
			if werr := wait(ctx, replyBackoff(attempt)); werr != nil {
				return errors.Join(lastErr, werr)
			}
		}
		_, lastErr = c.once(ctx, fasthttp.MethodPost, replyPath, payload)
		if lastErr == nil {
			return nil
		}
		var se *StatusError
		if errors.As(lastErr, &se) && !se.Temporary() {
			return lastErr
		}
	}
	return lastErr
}

// once performs a single request and returns a copy of the response body.
func (c *Client) once(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	c.applyHeaders(req)
	if payload != nil {
		req.SetBody(payload)
	}

	if err := c.http.DoDeadline(req, resp, c.deadline(ctx)); err != nil {
		return nil, fmt.Errorf("iris %s: %w", path, err)
	}
	if status := resp.StatusCode(); status < 200 || status >= 300 {
		body := string(resp.Body())
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{Path: path, Status: status, Body: body}
	}
	return append([]byte(nil), resp.Body()...), nil
}

func (c *Client) applyHeaders(req *fasthttp.Request) {
	if c.headers == nil {
		return
	}
	for k, v := range c.headers() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		req.Header.Set(k, v)
	}
}

func (c *Client) deadline(ctx context.Context) time.Time {
	dl := time.Now().Add(c.timeout)
	if ctxDL, ok := ctx.Deadline(); ok && ctxDL.Before(dl) {
		return ctxDL
	}
	return dl
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// 100ms, 200ms, 400ms ... capped at 1.6s
func replyBackoff(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 5)
	return (100 * time.Millisecond) << (attempt - 1)
}
