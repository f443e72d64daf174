// Package client talks to the Firecracker API over its UNIX domain socket.
//
// All mutations are issued as PUT on the wire; the endpoints documented as
// PATCH accept PUT with partial bodies.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Describe kinds accepted by Client.Describe.
const (
	DescribeInstance          = "instance"
	DescribeBalloon           = "balloon"
	DescribeBalloonStatistics = "balloon_statistics"
	DescribeMachineConfig     = "machine_config"
	DescribeMMDS              = "mmds"
	DescribeVMConfig          = "vm_config"
	DescribeVersion           = "version"
)

var describePaths = map[string]string{
	DescribeInstance:          "/",
	DescribeBalloon:           "/balloon",
	DescribeBalloonStatistics: "/balloon/statistics",
	DescribeMachineConfig:     "/machine-config",
	DescribeMMDS:              "/mmds",
	DescribeVMConfig:          "/vm/config",
	DescribeVersion:           "/version",
}

// TraceEvent describes one completed API round-trip, delivered to an
// optional trace hook.
type TraceEvent struct {
	Method   string
	Path     string
	Status   int
	Err      error
	Duration time.Duration
}

// Client is a thin REST client bound to one API socket.
type Client struct {
	socketPath string
	http       *http.Client
	trace      func(TraceEvent)
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client; the caller owns
// timeouts and transport tuning.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTrace installs a hook observing every round-trip.
func WithTrace(fn func(TraceEvent)) Option {
	return func(c *Client) { c.trace = fn }
}

// New returns a client dialing the UNIX socket at socketPath.
func New(socketPath string, opts ...Option) *Client {
	c := &Client{socketPath: socketPath}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
		}
	}
	return c
}

// SocketPath returns the bound API socket path.
func (c *Client) SocketPath() string { return c.socketPath }

// Describe issues a GET for one of the describe kinds and decodes the JSON
// body.
func (c *Client) Describe(ctx context.Context, kind string) (map[string]any, error) {
	path, ok := describePaths[kind]
	if !ok {
		return nil, fmt.Errorf("unknown describe kind %q", kind)
	}
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return out, nil
}

// Put writes a full declarative body to path. A 204 is expected.
func (c *Client) Put(ctx context.Context, path string, body any) error {
	_, err := c.do(ctx, http.MethodPut, path, body)
	return err
}

// Patch updates a resource with a partial body. The API accepts these as
// PUT, so that is what goes on the wire.
func (c *Client) Patch(ctx context.Context, path string, body any) error {
	return c.Put(ctx, path, body)
}

// CreateSyncAction triggers an /actions action such as InstanceStart,
// SendCtrlAltDel or FlushMetrics.
func (c *Client) CreateSyncAction(ctx context.Context, actionType string) error {
	return c.Put(ctx, "/actions", map[string]any{"action_type": actionType})
}

// CreateSnapshot writes the snapshot-create envelope.
func (c *Client) CreateSnapshot(ctx context.Context, body any) error {
	return c.Put(ctx, "/snapshot/create", body)
}

// LoadSnapshot writes the snapshot-load envelope.
func (c *Client) LoadSnapshot(ctx context.Context, body any) error {
	return c.Put(ctx, "/snapshot/load", body)
}

// PatchVM updates the VM state ("Paused" / "Resumed").
func (c *Client) PatchVM(ctx context.Context, state string) error {
	return c.Patch(ctx, "/vm", map[string]any{"state": state})
}

// WaitReady polls the instance info endpoint until the API answers,
// backing off exponentially. It returns the last error when the deadline
// passes. Liveness of the process is a weaker signal; this confirms the API
// server is accepting requests.
func (c *Client) WaitReady(ctx context.Context, timeout time.Duration) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 20 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = timeout
	return backoff.Retry(func() error {
		_, err := c.Describe(ctx, DescribeInstance)
		return err
	}, backoff.WithContext(bo, ctx))
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s body: %w", path, err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://localhost"+path, payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if c.trace != nil {
		ev := TraceEvent{Method: method, Path: path, Err: err, Duration: time.Since(start)}
		if resp != nil {
			ev.Status = resp.StatusCode
		}
		c.trace(ev)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s %s: read response: %w", method, path, err)
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
		return data, nil
	}

	var fault struct {
		FaultMessage string `json:"fault_message"`
	}
	if err := json.Unmarshal(data, &fault); err == nil && fault.FaultMessage != "" {
		return nil, &APIError{StatusCode: resp.StatusCode, FaultMessage: fault.FaultMessage}
	}
	return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
}
