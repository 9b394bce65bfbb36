package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"vsixgrab/internal/schedule"
	"vsixgrab/internal/utils"
)

const (
	DefaultAttempts = 3
	DefaultBackoff  = 300 * time.Millisecond
)

type Client struct {
	baseURL  string
	client   *http.Client
	attempts int
	backoff  time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *utils.Logger
}

type ClientOption func(*Client)

func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) { cl.client = c }
}

func WithAttempts(n int) ClientOption {
	return func(cl *Client) {
		if n > 0 {
			cl.attempts = n
		}
	}
}

func WithBackoff(base time.Duration) ClientOption {
	return func(cl *Client) { cl.backoff = base }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Minute},
		attempts: DefaultAttempts,
		backoff:  DefaultBackoff,
		sleep:    sleepContext,
		logger:   utils.NewNamedLogger("bridge-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// sideEffects lists actions that must reach the handler at most once per call.
var sideEffects = map[string]bool{
	ActionDownload:    true,
	ActionCopy:        true,
	ActionSetSettings: true,
}

// retryable marks structural failures. delivered is set when the handler may
// already have run.
type retryable struct {
	err       error
	delivered bool
}

func (r retryable) Error() string { return r.err.Error() }
func (r retryable) Unwrap() error { return r.err }

// Request sends msg to target. Transport errors, a missing receiver and 5xx
// replies are retried with exponential backoff. Actions with side effects are
// retried only when the message cannot have been handled: a failed dial or a
// missing receiver. A reply with success=false is returned as is; use
// Response.Err to inspect it.
func (c *Client) Request(ctx context.Context, target string, msg Message) (*Response, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.attempts; attempt++ {
		if attempt > 0 {
			delay := schedule.Backoff(c.backoff, 2, attempt-1)
			c.logger.LogDebug("bridge %s/%s attempt %d failed, retrying in %v: %v", target, msg.Action, attempt, delay, lastErr)
			if err := c.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		resp, err := c.send(ctx, target, body)
		if err == nil {
			return resp, nil
		}
		var r retryable
		if !errors.As(err, &r) {
			return nil, err
		}
		lastErr = r.err
		if r.delivered && sideEffects[msg.Action] {
			return nil, fmt.Errorf("bridge request %s/%s may have been handled, not retrying: %w", target, msg.Action, r.err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("bridge request %s/%s failed after %d attempts: %w", target, msg.Action, c.attempts, lastErr)
}

func (c *Client) send(ctx context.Context, target string, body []byte) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/bridge/"+target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(utils.ContentTypeHeader, utils.JSONContentType)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, retryable{err: fmt.Errorf("request error: %w", err), delivered: !dialFailed(err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retryable{err: fmt.Errorf("failed to read response: %w", err), delivered: true}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, retryable{err: fmt.Errorf("%w: %s", ErrReceivingEnd, target)}
	case resp.StatusCode >= 500:
		return nil, retryable{err: fmt.Errorf("invalid status code: %d", resp.StatusCode), delivered: true}
	case resp.StatusCode != http.StatusOK:
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return nil, fmt.Errorf("bridge rejected message: %s", e.Error)
		}
		return nil, fmt.Errorf("invalid status code: %d", resp.StatusCode)
	}

	var out Response
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}

// dialFailed reports whether err happened before a connection existed.
func dialFailed(err error) bool {
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
