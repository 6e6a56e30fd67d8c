package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/park285/Sushi-Neko-bot/internal/match"
	"github.com/valyala/fasthttp"
)

var (
	ErrNotConfigured = errors.New("profile lookup not configured")
	ErrNotFound      = errors.New("profile not found")
)

// Client looks up player profiles from a Graph-style API: GET {base}/{id}?fields=id,first_name.
// One attempt per call; callers treat failure as "no profile".
type Client struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithDial overrides the dialer; tests point it at an in-memory listener.
func WithDial(dial func(addr string) (net.Conn, error)) Option {
	return func(c *Client) { c.http.Dial = dial }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &fasthttp.Client{ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second, MaxConnsPerHost: 16},
		timeout: 3 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type meResponse struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
}

// Me fetches the profile for id. Score is left zero; the leaderboard owns it.
func (c *Client) Me(ctx context.Context, id string) (*match.Profile, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, ErrNotFound
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetRequestURI(c.baseURL + "/" + url.PathEscape(id) + "?fields=id,first_name")

	if err := c.http.DoDeadline(req, resp, deadline(ctx, c.timeout)); err != nil {
		return nil, fmt.Errorf("profile request: %w", err)
	}
	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusNotFound:
		return nil, ErrNotFound
	case status < 200 || status >= 300:
		return nil, fmt.Errorf("profile api error: status=%d", status)
	}

	var me meResponse
	if err := json.Unmarshal(resp.Body(), &me); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	if strings.TrimSpace(me.ID) == "" {
		return nil, ErrNotFound
	}
	return &match.Profile{
		ExternalID: me.ID,
		Name:       strings.TrimSpace(me.FirstName),
		ImageURL:   c.PictureURL(me.ID),
	}, nil
}

// PictureURL is the small avatar URL for id.
func (c *Client) PictureURL(id string) string {
	if c == nil || c.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/picture?type=small", c.baseURL, url.PathEscape(strings.TrimSpace(id)))
}

func deadline(ctx context.Context, timeout time.Duration) time.Time {
	clientDL := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}
