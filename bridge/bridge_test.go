// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package bridge_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/farcall/farcall"
	"github.com/farcall/farcall/bridge"
	"github.com/farcall/farcall/wire"
	"github.com/fortytw2/leaktest"
	"github.com/rs/zerolog"
)

const testPassword = "sesame"

func testRegistry() *farcall.Registry {
	return farcall.NewRegistry().
		Register("demo", "greet", func(_ context.Context, args []any, _ map[string]any) (any, error) {
			if len(args) == 0 {
				return "hello, stranger", nil
			}
			return "hello, " + args[0].(string), nil
		}).
		Register("demo", "fail", func(context.Context, []any, map[string]any) (any, error) {
			return nil, errors.New("no can do")
		})
}

// startEndpoint serves the legacy call surface from reg over HTTP for the
// duration of the test.
func startEndpoint(t *testing.T, reg *farcall.Registry) string {
	t.Helper()
	h := bridge.NewRFCHandler(reg, testPassword, zerolog.Nop())
	hs := httptest.NewServer(h)
	t.Cleanup(hs.Close)
	return hs.URL
}

func fixedEndpoint(url, password string) func() (string, string) {
	return func() (string, string) { return url, password }
}

func TestRoundTrip(t *testing.T) {
	url := startEndpoint(t, testRegistry())
	bt := bridge.New(bridge.Options{
		Endpoint:    fixedEndpoint(url, testPassword),
		CallTimeout: 5 * time.Second,
	})
	defer bt.Close()

	ctx := context.Background()
	v, err := bt.Call(ctx, farcall.Target{Module: "demo", Function: "greet"}, []any{"kit"}, nil)
	if err != nil {
		t.Fatalf("Call: unexpected error: %v", err)
	}
	if got, want := v, any("hello, kit"); got != want {
		t.Errorf("Call: got %v, want %v", got, want)
	}

	// A failure of the target surfaces as a remote execution error.
	_, err = bt.Call(ctx, farcall.Target{Module: "demo", Function: "fail"}, nil, nil)
	var re *farcall.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("Call: got error %[1]T (%[1]v), want *RemoteError", err)
	}
}

func TestBadCredential(t *testing.T) {
	url := startEndpoint(t, testRegistry())
	bt := bridge.New(bridge.Options{Endpoint: fixedEndpoint(url, "wrong")})
	defer bt.Close()

	_, err := bt.Call(context.Background(), farcall.Target{Module: "demo", Function: "greet"}, nil, nil)
	var re *farcall.RemoteError
	if !errors.As(err, &re) {
		t.Fatalf("Call: got error %[1]T (%[1]v), want *RemoteError", err)
	}
}

func TestMissingConfiguration(t *testing.T) {
	tests := []struct {
		name     string
		endpoint func() (string, string)
	}{
		{"NoEndpoint", nil},
		{"EmptyURL", fixedEndpoint("", testPassword)},
		{"EmptyCredential", fixedEndpoint("http://localhost:1", "")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Even with fallback available, a configuration error surfaces
			// immediately: there is nothing to retry.
			bt := bridge.New(bridge.Options{
				Endpoint: tc.endpoint,
				Registry: testRegistry(),
				Fallback: func() bool { return true },
			})
			defer bt.Close()

			_, err := bt.Call(context.Background(), farcall.Target{Module: "demo", Function: "greet"}, nil, nil)
			if got := farcall.Kind(err); got != farcall.KindConfig {
				t.Errorf("Kind: got %q, want %q (err=%v)", got, farcall.KindConfig, err)
			}
		})
	}
}

// failingCall is a CallFunc that always reports the given error.
func failingCall(err error) bridge.CallFunc {
	return func(context.Context, string, string, farcall.Target, []any, map[string]any) (any, error) {
		return nil, err
	}
}

func TestLocalFallback(t *testing.T) {
	remoteErr := &farcall.TransportError{Op: "call", Err: errors.New("endpoint down")}

	t.Run("Succeeds", func(t *testing.T) {
		bt := bridge.New(bridge.Options{
			Endpoint: fixedEndpoint("http://localhost:1", testPassword),
			Call:     failingCall(remoteErr),
			Registry: testRegistry(),
			Fallback: func() bool { return true },
		})
		defer bt.Close()

		v, err := bt.Call(context.Background(), farcall.Target{Module: "demo", Function: "greet"}, nil, nil)
		if err != nil {
			t.Fatalf("Call: unexpected error: %v", err)
		}
		if got, want := v, any("hello, stranger"); got != want {
			t.Errorf("Call: got %v, want %v", got, want)
		}
	})

	t.Run("NativeMode", func(t *testing.T) {
		// Native mode enables the local retry even when fallback is off.
		bt := bridge.New(bridge.Options{
			Endpoint: fixedEndpoint("http://localhost:1", testPassword),
			Call:     failingCall(remoteErr),
			Registry: testRegistry(),
			Native:   func() bool { return true },
		})
		defer bt.Close()

		if _, err := bt.Call(context.Background(), farcall.Target{Module: "demo", Function: "greet"}, nil, nil); err != nil {
			t.Errorf("Call: unexpected error: %v", err)
		}
	})

	t.Run("PreservesRootCause", func(t *testing.T) {
		// When the local retry also fails, the ORIGINAL remote error is
		// reported, not the local one.
		bt := bridge.New(bridge.Options{
			Endpoint: fixedEndpoint("http://localhost:1", testPassword),
			Call:     failingCall(remoteErr),
			Registry: testRegistry(),
			Fallback: func() bool { return true },
		})
		defer bt.Close()

		_, err := bt.Call(context.Background(), farcall.Target{Module: "demo", Function: "fail"}, nil, nil)
		if !errors.Is(err, remoteErr) {
			t.Errorf("Call: got %v, want %v", err, remoteErr)
		}
	})

	t.Run("Disabled", func(t *testing.T) {
		bt := bridge.New(bridge.Options{
			Endpoint: fixedEndpoint("http://localhost:1", testPassword),
			Call:     failingCall(remoteErr),
			Registry: testRegistry(),
		})
		defer bt.Close()

		_, err := bt.Call(context.Background(), farcall.Target{Module: "demo", Function: "greet"}, nil, nil)
		if !errors.Is(err, remoteErr) {
			t.Errorf("Call: got %v, want %v", err, remoteErr)
		}
	})
}

func TestCallSyncTimeout(t *testing.T) {
	defer leaktest.Check(t)()

	// The remote call blocks until its context is canceled, simulating an
	// endpoint that hangs far past the call budget.
	slow := func(ctx context.Context, _, _ string, _ farcall.Target, _ []any, _ map[string]any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	const budget = 100 * time.Millisecond
	bt := bridge.New(bridge.Options{
		Endpoint:    fixedEndpoint("http://localhost:1", testPassword),
		Call:        slow,
		CallTimeout: budget,
	})
	defer bt.Close()

	start := time.Now()
	_, err := bt.CallSync(farcall.Target{Module: "demo", Function: "greet"}, nil, nil)
	elapsed := time.Since(start)

	var te *farcall.TimeoutError
	if !errors.As(err, &te) {
		t.Fatalf("CallSync: got error %[1]T (%[1]v), want *TimeoutError", err)
	}
	if te.Budget != budget {
		t.Errorf("Budget: got %v, want %v", te.Budget, budget)
	}
	if elapsed > 10*budget {
		t.Errorf("CallSync blocked %v, want about %v", elapsed, budget)
	}
}

func TestHandleInbound(t *testing.T) {
	bt := bridge.New(bridge.Options{
		Endpoint: fixedEndpoint("http://localhost:1", testPassword),
		Registry: testRegistry(),
	})
	defer bt.Close()

	body, _ := json.Marshal(wire.LegacyCall{Module: "demo", Function: "greet", Args: []any{"kit"}})
	rsp := bt.HandleInbound(context.Background(), &wire.RFCRequest{Body: body, RequestID: "r7"})
	if !rsp.Success || rsp.StatusCode != 200 || rsp.RequestID != "r7" {
		t.Fatalf("HandleInbound: got %+v, want success", rsp)
	}
	var result string
	if err := json.Unmarshal(rsp.Body, &result); err != nil || result != "hello, kit" {
		t.Errorf("Body: got %q, %v; want hello kit", rsp.Body, err)
	}

	rsp = bt.HandleInbound(context.Background(), &wire.RFCRequest{Body: []byte("not json"), RequestID: "r8"})
	if rsp.Success || rsp.StatusCode != 400 {
		t.Errorf("HandleInbound bad body: got %+v, want 400 failure", rsp)
	}
}
