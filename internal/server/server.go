// Package server exposes a byte-valued cache over a Unix domain socket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lrucache/internal/cache"
	"lrucache/internal/errs"
	"lrucache/internal/logging"
)

// maxTTLSeconds is the largest ttl_seconds that fits a time.Duration.
const maxTTLSeconds = math.MaxInt64 / int64(time.Second)

// Server answers protocol requests against one shared cache.
type Server struct {
	cache *cache.Cache[string, []byte]

	mu    sync.Mutex
	conns map[net.Conn]struct{}
	wg    sync.WaitGroup
}

func New(c *cache.Cache[string, []byte]) *Server {
	return &Server{
		cache: c,
		conns: make(map[net.Conn]struct{}),
	}
}

// Listen removes a stale socket at path and listens on it with 0600 perms.
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errs.Wrap(err, "create socket dir")
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, errs.Wrap(err, "remove stale socket")
	}

	l, err := net.Listen("unix", path)
	if err != nil {
		return nil, errs.Wrapf(err, "listen on %s", path)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		_ = l.Close()
		return nil, errs.Wrap(err, "chmod socket")
	}
	return l, nil
}

// Serve accepts connections until ctx is canceled, then closes the listener
// and every open connection and waits for handlers to return.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "server"))

	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	defer func() {
		s.closeConns()
		s.wg.Wait()
	}()

	logging.Info(logCtx, "serving", slog.String("addr", l.Addr().String()))

	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logging.Warn(logCtx, "accept failed", slog.Any("err", errs.Loggable(err)))
			time.Sleep(10 * time.Millisecond)
			continue
		}

		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			s.handleConn(logging.WithAttrs(logCtx, slog.String("conn_id", uuid.NewString())), conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	_ = conn.Close()
}

func (s *Server) closeConns() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.conns {
		_ = conn.Close()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	logging.Debug(ctx, "connection opened")
	defer logging.Debug(ctx, "connection closed")

	dec := json.NewDecoder(conn)
	enc := json.NewEncoder(conn)
	for {
		var req Request
		if err := dec.Decode(&req); err != nil {
			if !errors.Is(err, io.EOF) {
				logging.Debug(ctx, "malformed request, closing connection", slog.Any("err", errs.Loggable(err)))
			}
			return
		}
		resp := s.Handle(req)
		if !resp.OK {
			logging.Debug(ctx, "request rejected", slog.String("op", req.Op), slog.String("error", resp.Error))
		}
		if err := enc.Encode(resp); err != nil {
			logging.Warn(ctx, "write response failed", slog.Any("err", errs.Loggable(err)))
			return
		}
	}
}

// Handle executes one request against the cache.
func (s *Server) Handle(req Request) Response {
	op := strings.ToLower(strings.TrimSpace(req.Op))
	switch op {
	case OpKeys:
		return Response{OK: true, Keys: s.cache.Keys()}
	case OpLen:
		return Response{OK: true, Len: s.cache.Len()}
	case OpGet, OpPut, OpDelete:
	default:
		return Response{OK: false, Error: "unknown op " + req.Op}
	}

	if req.Key == "" {
		return Response{OK: false, Error: "key is required"}
	}

	switch op {
	case OpGet:
		v, ok := s.cache.Get(req.Key)
		if !ok {
			return Response{OK: true}
		}
		return Response{OK: true, Found: true, Value: cloneBytes(v)}
	case OpPut:
		if req.TTLSeconds < 0 {
			return Response{OK: false, Error: "ttl_seconds must not be negative"}
		}
		if req.TTLSeconds > maxTTLSeconds {
			return Response{OK: false, Error: "ttl_seconds out of range"}
		}
		s.cache.PutWithTTL(req.Key, cloneBytes(req.Value), time.Duration(req.TTLSeconds)*time.Second)
		return Response{OK: true}
	default:
		return Response{OK: true, Found: s.cache.Delete(req.Key)}
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
