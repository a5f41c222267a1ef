package control

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"warden/internal/api"
)

// Client talks to the control server over its unix socket.
type Client struct {
	http    *http.Client
	baseURL string
	socket  string
}

// UnavailableError is returned when the supervisor cannot be reached.
type UnavailableError struct {
	Socket string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("failed to reach supervisor at %s: %v", e.Socket, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// IsUnavailable reports whether err means the supervisor is not running.
func IsUnavailable(err error) bool {
	var unavailable *UnavailableError
	return errors.As(err, &unavailable)
}

// NewClient creates a client for the socket at path.
func NewClient(path string) *Client {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			var d net.Dialer
			return d.DialContext(ctx, "unix", path)
		},
	}
	return &Client{
		http:    &http.Client{Transport: transport, Timeout: 2 * time.Minute},
		baseURL: "http://warden",
		socket:  path,
	}
}

// Start asks the supervisor to start name.
func (c *Client) Start(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/v1/services/"+url.PathEscape(name)+"/start", nil)
}

// Stop asks the supervisor to stop name.
func (c *Client) Stop(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/v1/services/"+url.PathEscape(name)+"/stop", nil)
}

// Restart asks the supervisor to restart name.
func (c *Client) Restart(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodPost, "/v1/services/"+url.PathEscape(name)+"/restart", nil)
}

// Status returns the snapshot of name.
func (c *Client) Status(ctx context.Context, name string) (api.StateSnapshot, error) {
	var snap api.StateSnapshot
	err := c.do(ctx, http.MethodGet, "/v1/services/"+url.PathEscape(name), &snap)
	return snap, err
}

// StatusAll returns every snapshot.
func (c *Client) StatusAll(ctx context.Context) ([]api.StateSnapshot, error) {
	var snaps []api.StateSnapshot
	err := c.do(ctx, http.MethodGet, "/v1/services", &snaps)
	return snaps, err
}

// List returns the known definitions.
func (c *Client) List(ctx context.Context) ([]api.ServiceInfo, error) {
	var infos []api.ServiceInfo
	err := c.do(ctx, http.MethodGet, "/v1/definitions", &infos)
	return infos, err
}

// Reload asks the supervisor to re-read its definitions.
func (c *Client) Reload(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/reload", nil)
}

// DumpStatus asks the supervisor to log and persist its status.
func (c *Client) DumpStatus(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/v1/dump", nil)
}

// ProcessStats returns live statistics of a supervised pid.
func (c *Client) ProcessStats(ctx context.Context, pid int) (*api.ProcessStats, error) {
	var stats api.ProcessStats
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/processes/%d", pid), &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &UnavailableError{Socket: c.socket, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError turns an error response back into the typed error.
func decodeError(status int, body []byte) error {
	var e ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil || e.Error == "" {
		return fmt.Errorf("supervisor returned %d: %s", status, bytes.TrimSpace(body))
	}
	switch e.Kind {
	case KindNotFound:
		return &api.NotFoundError{Message: e.Error}
	case KindAlreadyRunning:
		return &api.AlreadyRunningError{Service: e.Service, State: e.State}
	case KindUnavailable:
		if e.Error == api.ErrShuttingDown.Error() {
			return api.ErrShuttingDown
		}
		return errors.New(e.Error)
	}
	return errors.New(e.Error)
}
