// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package remote_test

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/creachadair/taskgroup"
	"github.com/farcall/farcall"
	"github.com/farcall/farcall/remote"
	"github.com/farcall/farcall/wire"
	"github.com/fortytw2/leaktest"
)

func testRegistry() *farcall.Registry {
	return farcall.NewRegistry().
		Register("demo", "greet", func(_ context.Context, args []any, _ map[string]any) (any, error) {
			if len(args) == 0 {
				return "hello, stranger", nil
			}
			return fmt.Sprint("hello, ", args[0]), nil
		}).
		Register("demo", "sum", func(_ context.Context, args []any, _ map[string]any) (any, error) {
			var total int64
			for _, a := range args {
				total += a.(int64)
			}
			return total, nil
		}).
		Register("demo", "fail", func(context.Context, []any, map[string]any) (any, error) {
			return nil, errors.New("no can do")
		})
}

// startService runs srv on a loopback listener and returns its address along
// with a function that stops it. The caller must defer stop before leaktest's
// check so the service is down when leaks are counted.
func startService(t *testing.T, srv *remote.Server) (addr string, stop func()) {
	t.Helper()
	lst, err := srv.Listen("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr = lst.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := taskgroup.Go(func() error { return srv.Serve(ctx, lst) })
	t.Logf("Service listening at %q", addr)
	return addr, func() {
		cancel()
		if err := done.Wait(); err != nil {
			t.Errorf("Serve: unexpected error: %v", err)
		}
	}
}

func newTestClient(addr string) *remote.Client {
	return remote.NewClient(addr, remote.ClientOptions{CallTimeout: 10 * time.Second})
}

func TestExecute(t *testing.T) {
	defer leaktest.Check(t)()

	srv := remote.NewServer(testRegistry(), remote.ServerOptions{})
	addr, stop := startService(t, srv)
	defer stop()
	c := newTestClient(addr)
	defer c.Close()
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		v, err := c.Call(ctx, farcall.Target{Module: "demo", Function: "greet"}, []any{"kit"}, nil)
		if err != nil {
			t.Fatalf("Call: unexpected error: %v", err)
		}
		if got, want := v, any("hello, kit"); got != want {
			t.Errorf("Call: got %v, want %v", got, want)
		}
	})

	t.Run("Numeric", func(t *testing.T) {
		v, err := c.Call(ctx, farcall.Target{Module: "demo", Function: "sum"}, []any{1, 2, 3}, nil)
		if err != nil {
			t.Fatalf("Call: unexpected error: %v", err)
		}
		if got, want := v, any(int64(6)); got != want {
			t.Errorf("Call: got %v (%[1]T), want %v", got, want)
		}
	})

	t.Run("TargetError", func(t *testing.T) {
		_, err := c.Call(ctx, farcall.Target{Module: "demo", Function: "fail"}, nil, nil)
		var re *farcall.RemoteError
		if !errors.As(err, &re) {
			t.Fatalf("Call: got error %[1]T (%[1]v), want *RemoteError", err)
		}
		if re.Kind != farcall.KindError || !strings.Contains(re.Message, "no can do") {
			t.Errorf("RemoteError: got kind %q message %q", re.Kind, re.Message)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := c.Call(ctx, farcall.Target{Module: "demo", Function: "nonesuch"}, nil, nil)
		if got := farcall.Kind(err); got != farcall.KindNotFound {
			t.Errorf("Kind: got %q, want %q (err=%v)", got, farcall.KindNotFound, err)
		}
	})
}

func TestConcurrentCalls(t *testing.T) {
	defer leaktest.Check(t)()

	const numCalls = 100

	srv := remote.NewServer(testRegistry(), remote.ServerOptions{})
	addr, stop := startService(t, srv)
	defer stop()
	c := newTestClient(addr)
	defer c.Close()

	g := taskgroup.New(func(err error) { t.Errorf("Task error: %v", err) })
	for i := range numCalls {
		g.Go(func() error {
			v, err := c.Call(context.Background(), farcall.Target{Module: "demo", Function: "greet"},
				[]any{fmt.Sprint("caller-", i)}, nil)
			if err != nil {
				return err
			}
			if want := fmt.Sprint("hello, caller-", i); v != want {
				return fmt.Errorf("got %v, want %v", v, want)
			}
			return nil
		})
	}
	g.Wait()

	requests, succeeded, failed, _ := srv.Stats()
	if requests != numCalls || succeeded != numCalls || failed != 0 {
		t.Errorf("Stats: got %d/%d/%d, want %d/%d/0", requests, succeeded, failed, numCalls, numCalls)
	}
}

func TestFileOps(t *testing.T) {
	defer leaktest.Check(t)()

	srv := remote.NewServer(farcall.NewRegistry(), remote.ServerOptions{})
	addr, stop := startService(t, srv)
	defer stop()
	c := newTestClient(addr)
	defer c.Close()
	ctx := context.Background()
	dir := t.TempDir()

	path := filepath.Join(dir, "sub", "note.txt")
	const text = "all is well\n"

	t.Run("WriteCreatesDirs", func(t *testing.T) {
		textCopy := text
		rsp, err := c.WriteFile(ctx, wire.WriteFileRequest{
			Path: path, Text: &textCopy, CreateDirs: true,
		})
		if err != nil {
			t.Fatalf("WriteFile: unexpected error: %v", err)
		}
		if !rsp.Success || rsp.BytesWritten != int64(len(text)) {
			t.Errorf("WriteFile: got %+v, want %d bytes written", rsp, len(text))
		}
	})

	t.Run("ReadBack", func(t *testing.T) {
		rsp, err := c.ReadFile(ctx, wire.ReadFileRequest{Path: path})
		if err != nil {
			t.Fatalf("ReadFile: unexpected error: %v", err)
		}
		if !rsp.Success || rsp.Text != text {
			t.Errorf("ReadFile: got %+v, want %q", rsp, text)
		}
	})

	t.Run("ReadMissing", func(t *testing.T) {
		missing := filepath.Join(dir, "nonesuch.txt")
		rsp, err := c.ReadFile(ctx, wire.ReadFileRequest{Path: missing})
		if err != nil {
			t.Fatalf("ReadFile: unexpected error: %v", err)
		}
		if rsp.Success {
			t.Fatal("ReadFile missing: unexpectedly succeeded")
		}
		// The failure names the offending path for the caller's logs.
		if !strings.Contains(rsp.ErrorMessage, missing) {
			t.Errorf("ErrorMessage %q does not mention %q", rsp.ErrorMessage, missing)
		}
		if rsp.ErrorType != "not-found" {
			t.Errorf("ErrorType: got %q, want not-found", rsp.ErrorType)
		}
	})

	t.Run("Exists", func(t *testing.T) {
		rsp, err := c.FileExists(ctx, path)
		if err != nil {
			t.Fatalf("FileExists: unexpected error: %v", err)
		}
		if !rsp.Exists || rsp.IsDir {
			t.Errorf("FileExists: got %+v, want existing file", rsp)
		}
	})

	t.Run("List", func(t *testing.T) {
		rsp, err := c.ListDir(ctx, wire.ListDirRequest{Path: filepath.Join(dir, "sub")})
		if err != nil {
			t.Fatalf("ListDir: unexpected error: %v", err)
		}
		if len(rsp.Entries) != 1 || rsp.Entries[0].Name != "note.txt" {
			t.Errorf("ListDir: got %+v, want note.txt", rsp.Entries)
		}
	})

	t.Run("MoveCopyDelete", func(t *testing.T) {
		moved := filepath.Join(dir, "moved.txt")
		if rsp, err := c.MoveFile(ctx, wire.MoveFileRequest{Source: path, Destination: moved}); err != nil || !rsp.Success {
			t.Fatalf("MoveFile: got %+v, %v", rsp, err)
		}
		copied := filepath.Join(dir, "copied.txt")
		if rsp, err := c.CopyFile(ctx, wire.CopyFileRequest{Source: moved, Destination: copied}); err != nil || !rsp.Success {
			t.Fatalf("CopyFile: got %+v, %v", rsp, err)
		}
		if rsp, err := c.DeleteFile(ctx, wire.DeleteFileRequest{Path: copied}); err != nil || !rsp.Success {
			t.Fatalf("DeleteFile: got %+v, %v", rsp, err)
		}
		if _, err := os.Stat(copied); !os.IsNotExist(err) {
			t.Errorf("Stat %q: got %v, want not-exist", copied, err)
		}
	})
}

func TestExecCommand(t *testing.T) {
	defer leaktest.Check(t)()

	srv := remote.NewServer(farcall.NewRegistry(), remote.ServerOptions{})
	addr, stop := startService(t, srv)
	defer stop()
	c := newTestClient(addr)
	defer c.Close()

	rsp, err := c.ExecCommand(context.Background(), wire.CommandRequest{
		Command: "echo", Args: []string{"over", "the", "wire"},
	})
	if err != nil {
		t.Fatalf("ExecCommand: unexpected error: %v", err)
	}
	if !rsp.Success || rsp.ExitCode != 0 {
		t.Fatalf("ExecCommand: got %+v, want success", rsp)
	}
	if got, want := rsp.Stdout, "over the wire\n"; got != want {
		t.Errorf("Stdout: got %q, want %q", got, want)
	}
}

func TestDiagnostics(t *testing.T) {
	defer leaktest.Check(t)()

	reg := testRegistry()
	srv := remote.NewServer(reg, remote.ServerOptions{
		Config: func() map[string]string { return map[string]string{"mode": "test"} },
	})
	addr, stop := startService(t, srv)
	defer stop()
	c := newTestClient(addr)
	defer c.Close()
	ctx := context.Background()

	t.Run("Ping", func(t *testing.T) {
		rsp, err := c.Ping(ctx, "marco")
		if err != nil {
			t.Fatalf("Ping: unexpected error: %v", err)
		}
		if got, want := rsp.Message, "pong: marco"; got != want {
			t.Errorf("Ping: got %q, want %q", got, want)
		}
		if rsp.LatencyMillis < 0 {
			t.Errorf("Latency: got %d, want >= 0", rsp.LatencyMillis)
		}
	})

	t.Run("Health", func(t *testing.T) {
		rsp, err := c.ServerHealth(ctx, false)
		if err != nil {
			t.Fatalf("ServerHealth: unexpected error: %v", err)
		}
		if !rsp.Healthy || rsp.State != "healthy" {
			t.Errorf("ServerHealth: got %+v, want healthy", rsp)
		}
	})

	t.Run("Status", func(t *testing.T) {
		c.Call(ctx, farcall.Target{Module: "demo", Function: "greet"}, nil, nil)
		rsp, err := c.ServerStatus(ctx, true)
		if err != nil {
			t.Fatalf("ServerStatus: unexpected error: %v", err)
		}
		if rsp.Requests < 1 || rsp.Succeeded < 1 {
			t.Errorf("ServerStatus: got %+v, want recorded requests", rsp)
		}
		if got := rsp.Config["mode"]; got != "test" {
			t.Errorf("Config: got %q, want test", got)
		}
		if len(rsp.Targets) != 3 {
			t.Errorf("Targets: got %v, want 3 entries", rsp.Targets)
		}
	})

	t.Run("IsConnected", func(t *testing.T) {
		if !c.IsConnected() {
			t.Error("IsConnected: got false, want true")
		}
	})
}

func TestConnectionRateLimit(t *testing.T) {
	defer leaktest.Check(t)()

	// Bind a listener and close it immediately, so the address refuses
	// connections.
	lst, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := lst.Addr().String()
	lst.Close()

	c := newTestClient(addr)
	defer c.Close()
	ctx := context.Background()
	target := farcall.Target{Module: "demo", Function: "greet"}
	for range 5 {
		if _, err := c.Call(ctx, target, nil, nil); err == nil {
			t.Fatal("Call: unexpectedly succeeded")
		}
	}

	// Only the first call should have dialed; the rest fall inside the
	// minimum retry interval.
	h := c.Health()
	if got := h.Details["connection_attempts"]; got != 1 {
		t.Errorf("Connection attempts: got %v, want 1", got)
	}
	if c.IsConnected() {
		t.Error("IsConnected: got true, want false")
	}
}
