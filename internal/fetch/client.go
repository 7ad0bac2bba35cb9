package fetch

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/brogergvhs/noveld/internal/util"
)

type logger interface {
	Debugf(string, ...any)
	Warnf(string, ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Warnf(string, ...any)  {}

// Options configures a Client. The zero value of every field maps to
// a sensible default; BackoffBase and MaxBounces exist mostly so tests
// do not have to sleep through real escalation delays.
type Options struct {
	Timeout           time.Duration
	UserAgent         string
	Cookie            string
	CookieFile        string
	CloudflareBypass  bool
	RequestsPerSecond float64
	Burst             int
	BackoffBase       time.Duration
	MaxBounces        uint32
	Log               logger
}

// Client is the single gate to the network. Sources and the epub
// writer share one instance per process, which is what makes the
// per-host buckets and the bounce counter global politeness state.
type Client struct {
	http        *http.Client
	hosts       *hostLimiters
	bounce      atomic.Uint32
	bytes       atomic.Int64
	backoffBase time.Duration
	maxBounces  uint32
	log         logger
}

func New(opts Options) (*Client, error) {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RequestsPerSecond == 0 {
		opts.RequestsPerSecond = 2
	}
	if opts.Burst == 0 {
		opts.Burst = 1
	}
	if opts.BackoffBase == 0 {
		opts.BackoffBase = 8 * time.Second
	}
	if opts.MaxBounces == 0 {
		opts.MaxBounces = 10
	}
	if opts.Log == nil {
		opts.Log = noopLogger{}
	}

	hc, err := util.NewHTTPClient(util.HTTPClientOptions{
		Timeout:          opts.Timeout,
		UserAgent:        util.PickUserAgent(opts.UserAgent),
		Cookie:           opts.Cookie,
		CookieFile:       opts.CookieFile,
		CloudflareBypass: opts.CloudflareBypass,
		DebugLogger:      opts.Log,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}

	return &Client{
		http:        hc,
		hosts:       newHostLimiters(opts.RequestsPerSecond, opts.Burst),
		backoffBase: opts.BackoffBase,
		maxBounces:  opts.MaxBounces,
		log:         opts.Log,
	}, nil
}

// GetText fetches rawurl and returns the body as a string.
func (c *Client) GetText(ctx context.Context, rawurl string) (string, error) {
	b, err := c.get(ctx, rawurl)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// GetBytes fetches rawurl and returns the raw body.
func (c *Client) GetBytes(ctx context.Context, rawurl string) ([]byte, error) {
	return c.get(ctx, rawurl)
}

// Bytes reports how much body data the client has downloaded so far.
func (c *Client) Bytes() int64 {
	return c.bytes.Load()
}

func (c *Client) get(ctx context.Context, rawurl string) ([]byte, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, fmt.Errorf("fetch: parse %q: %w", rawurl, err)
	}

	for {
		// A positive bounce means some request recently hit a 429;
		// every request in the process then sits out the penalty.
		if bounce := c.bounce.Load(); bounce > 0 {
			wait := c.backoffBase << bounce
			c.log.Warnf("too many requests, waiting for %s", wait)
			time.Sleep(wait)
		}

		c.waitTurn(u.Hostname())

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
		if err != nil {
			return nil, fmt.Errorf("fetch: %w", err)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", rawurl, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			drain(resp.Body)
			if bounce := c.bounce.Load(); bounce <= c.maxBounces {
				c.bounce.Add(1)
				continue
			}
			c.bounce.Store(0)
			return nil, &RateLimitError{URL: rawurl}
		}
		c.bounce.Store(0)

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			drain(resp.Body)
			return nil, &StatusError{URL: rawurl, Code: resp.StatusCode}
		}

		body, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("fetch %s: read body: %w", rawurl, err)
		}

		c.bytes.Add(int64(len(body)))
		return body, nil
	}
}

// waitTurn polls the host bucket instead of reserving a slot, so a
// burst of workers converges on the configured rate without queueing.
func (c *Client) waitTurn(host string) {
	lim := c.hosts.get(host)
	for !lim.Allow() {
		time.Sleep(50*time.Millisecond + time.Duration(rand.Int63n(int64(30*time.Millisecond))))
	}
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
