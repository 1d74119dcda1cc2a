package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"lrucache/internal/cache"
	"lrucache/internal/server"
)

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestDemoScenario(t *testing.T) {
	chdir(t, t.TempDir())

	out, err := execute(t, context.Background(), "demo")
	if err != nil {
		t.Fatalf("demo: %v", err)
	}

	want := strings.Join([]string{
		"put(1, 1)  keys(LRU->MRU)=[1]",
		"put(2, 2)  keys(LRU->MRU)=[1 2]",
		"get(1) = 1  keys(LRU->MRU)=[2 1]",
		"put(3, 3)  keys(LRU->MRU)=[1 3]",
		"get(2) = miss",
		"put(4, 4)  keys(LRU->MRU)=[3 4]",
		"get(1) = miss",
		"get(3) = 3  keys(LRU->MRU)=[4 3]",
		"get(4) = 4  keys(LRU->MRU)=[3 4]",
	}, "\n") + "\n"
	if out != want {
		t.Fatalf("demo output:\n%s\nwant:\n%s", out, want)
	}
}

func TestDemoRejectsZeroCapacity(t *testing.T) {
	chdir(t, t.TempDir())

	_, err := execute(t, context.Background(), "demo", "--capacity", "0")
	if !errors.Is(err, cache.ErrInvalidCapacity) {
		t.Fatalf("err = %v, want ErrInvalidCapacity", err)
	}
}

// startDaemon runs `serve` until the test ends and waits for the socket.
func startDaemon(t *testing.T, sock string) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := execute(t, ctx, "serve")
		done <- err
	}()

	client := server.NewClient(sock)
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := client.Len(context.Background()); err == nil {
			break
		}
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("daemon did not come up on %s", sock)
		}
		time.Sleep(10 * time.Millisecond)
	}

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("serve: %v", err)
			}
		case <-time.After(3 * time.Second):
			t.Errorf("serve did not stop")
		}
	})
}

func TestServeAndClientCommands(t *testing.T) {
	chdir(t, t.TempDir())

	dir, err := os.MkdirTemp("", "lru")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	sock := filepath.Join(dir, "c.sock")
	t.Setenv("LRUCACHE_SERVER_SOCKET", sock)
	t.Setenv("LRUCACHE_SNAPSHOT_PATH", filepath.Join(dir, "snap.bbolt"))
	t.Setenv("LRUCACHE_CACHE_CAPACITY", "2")

	t.Run("first run", func(t *testing.T) {
		startDaemon(t, sock)
		ctx := context.Background()

		for _, kv := range [][2]string{{"a", "1"}, {"b", "2"}} {
			if _, err := execute(t, ctx, "put", kv[0], kv[1]); err != nil {
				t.Fatalf("put %s: %v", kv[0], err)
			}
		}

		out, err := execute(t, ctx, "get", "a")
		if err != nil || out != "1\n" {
			t.Fatalf("get a = %q, %v", out, err)
		}

		if _, err := execute(t, ctx, "get", "missing"); !errors.Is(err, server.ErrNotFound) {
			t.Fatalf("get missing err = %v, want ErrNotFound", err)
		}

		out, err = execute(t, ctx, "keys")
		if err != nil || out != "b\na\n" {
			t.Fatalf("keys = %q, %v", out, err)
		}
	})

	t.Run("restart restores snapshot", func(t *testing.T) {
		startDaemon(t, sock)
		ctx := context.Background()

		out, err := execute(t, ctx, "keys")
		if err != nil || out != "b\na\n" {
			t.Fatalf("keys after restart = %q, %v", out, err)
		}

		out, err = execute(t, ctx, "delete", "b")
		if err != nil || out != "true\n" {
			t.Fatalf("delete b = %q, %v", out, err)
		}
	})
}

// chdir changes the working directory for the duration of the test
// (equivalent to testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
