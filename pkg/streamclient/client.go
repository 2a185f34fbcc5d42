// Package streamclient consumes the verifier's live event stream. It
// reconnects forever with exponential backoff and hands each decoded
// event to a caller-supplied handler; consumers are expected to re-fetch
// /api/status after every reconnect because events may have been missed.
package streamclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// Handler receives each decoded event. Blocking here applies backpressure
// to this client's read loop only, never to the server.
type Handler func(msg Message)

// ConnectFunc is called after every successful (re)connect, before any
// events are delivered. Use it to re-sync from the status endpoint.
type ConnectFunc func()

type Client struct {
	url        string
	httpClient *http.Client
	log        *slog.Logger

	onConnect ConnectFunc
	backoff   time.Duration
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithOnConnect(fn ConnectFunc) Option {
	return func(cl *Client) { cl.onConnect = fn }
}

func New(url string, log *slog.Logger, opts ...Option) *Client {
	c := &Client{
		url:        url,
		httpClient: http.DefaultClient,
		log:        log,
		backoff:    initialBackoff,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run connects and consumes events until ctx is cancelled. Every
// connection failure or dropped stream waits out the current backoff and
// retries; a successful connection resets the backoff to one second.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	for {
		err := c.consume(ctx, handle)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("stream disconnected", "err", err, "retry_in", c.backoff)

		select {
		case <-time.After(c.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		c.backoff = nextBackoff(c.backoff)
	}
}

func (c *Client) consume(ctx context.Context, handle Handler) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	c.backoff = initialBackoff
	c.log.Info("stream connected", "url", c.url)
	if c.onConnect != nil {
		c.onConnect()
	}

	p := newParser(resp.Body)
	for {
		msg, err := p.Next()
		if err != nil {
			return err
		}
		handle(*msg)
	}
}

// nextBackoff doubles the wait up to the 30 second ceiling.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
