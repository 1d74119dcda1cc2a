package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"time"

	"lrucache/internal/errs"
)

// ErrNotFound is what callers that need an error for a miss should use;
// Client.Get itself reports a miss as found=false.
var ErrNotFound = errors.New("cache: not found")

// RemoteError is a failure reported by the daemon.
type RemoteError struct {
	Op  string
	Msg string
}

func (e *RemoteError) Error() string { return "cache " + e.Op + ": " + e.Msg }

// Client talks to a daemon over its Unix socket, one connection per call.
type Client struct {
	socketPath  string
	dialTimeout time.Duration
}

func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath, dialTimeout: 500 * time.Millisecond}
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	resp, err := c.do(ctx, Request{Op: OpGet, Key: key})
	if err != nil {
		return nil, false, err
	}
	if !resp.Found {
		return nil, false, nil
	}
	if resp.Value == nil {
		return []byte{}, true, nil
	}
	return resp.Value, true, nil
}

// Put stores value; ttl is rounded up to whole seconds, ttl <= 0 never expires.
func (c *Client) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	_, err := c.do(ctx, Request{Op: OpPut, Key: key, Value: value, TTLSeconds: ttlSeconds(ttl)})
	return err
}

// ttlSeconds rounds a positive ttl up so sub-second values still expire;
// on the wire 0 means "never".
func ttlSeconds(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	secs := int64(ttl / time.Second)
	if ttl%time.Second != 0 {
		secs++
	}
	return secs
}

// Delete removes key and reports whether it was present.
func (c *Client) Delete(ctx context.Context, key string) (bool, error) {
	resp, err := c.do(ctx, Request{Op: OpDelete, Key: key})
	if err != nil {
		return false, err
	}
	return resp.Found, nil
}

// Keys lists the daemon's keys in LRU -> MRU order.
func (c *Client) Keys(ctx context.Context) ([]string, error) {
	resp, err := c.do(ctx, Request{Op: OpKeys})
	if err != nil {
		return nil, err
	}
	return resp.Keys, nil
}

func (c *Client) Len(ctx context.Context) (int, error) {
	resp, err := c.do(ctx, Request{Op: OpLen})
	if err != nil {
		return 0, err
	}
	return resp.Len, nil
}

func (c *Client) do(ctx context.Context, req Request) (Response, error) {
	d := net.Dialer{Timeout: c.dialTimeout}
	conn, err := d.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return Response{}, errs.Wrap(err, "dial daemon")
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	if err := json.NewEncoder(conn).Encode(&req); err != nil {
		return Response{}, errs.Wrap(err, "encode request")
	}
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, errs.Wrap(err, "decode response")
	}
	if !resp.OK {
		return Response{}, &RemoteError{Op: req.Op, Msg: resp.Error}
	}
	return resp, nil
}
