// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package farcall_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/creachadair/mds/mtest"
	"github.com/farcall/farcall"
	"github.com/google/go-cmp/cmp"
)

func TestParseTarget(t *testing.T) {
	tests := []struct {
		input string
		want  farcall.Target
		ok    bool
	}{
		{"files.read_file", farcall.Target{Module: "files", Function: "read_file"}, true},
		{"a.b.c", farcall.Target{Module: "a.b", Function: "c"}, true},
		{"nodot", farcall.Target{}, false},
		{".leading", farcall.Target{}, false},
		{"trailing.", farcall.Target{}, false},
		{"", farcall.Target{}, false},
	}
	for _, tc := range tests {
		got, err := farcall.ParseTarget(tc.input)
		if tc.ok != (err == nil) {
			t.Errorf("ParseTarget %q: got error %v, want ok=%v", tc.input, err, tc.ok)
		} else if got != tc.want {
			t.Errorf("ParseTarget %q: got %v, want %v", tc.input, got, tc.want)
		}
	}

	want := "files.read_file"
	if got := (farcall.Target{Module: "files", Function: "read_file"}).String(); got != want {
		t.Errorf("String: got %q, want %q", got, want)
	}
}

func stub(result any) farcall.Func {
	return func(context.Context, []any, map[string]any) (any, error) { return result, nil }
}

func TestRegistry(t *testing.T) {
	reg := farcall.NewRegistry().
		Register("files", "read_file", stub("text")).
		Register("files", "write_file", stub(true)).
		RegisterAsync("jobs", "enqueue", stub("queued"))

	if got, want := reg.Len(), 3; got != want {
		t.Errorf("Len: got %d, want %d", got, want)
	}

	e, err := reg.Resolve(farcall.Target{Module: "jobs", Function: "enqueue"})
	if err != nil {
		t.Fatalf("Resolve: unexpected error: %v", err)
	}
	if !e.Async {
		t.Error("Resolve jobs.enqueue: entry is not async")
	}
	if v, err := e.Run(context.Background(), nil, nil); err != nil || v != "queued" {
		t.Errorf("Run: got %v, %v; want queued, nil", v, err)
	}

	if _, err := reg.Resolve(farcall.Target{Module: "files", Function: "nonesuch"}); err == nil {
		t.Error("Resolve files.nonesuch: unexpectedly succeeded")
	} else if got := farcall.Kind(err); got != farcall.KindNotFound {
		t.Errorf("Kind: got %q, want %q", got, farcall.KindNotFound)
	}

	want := []farcall.Target{
		{Module: "files", Function: "read_file"},
		{Module: "files", Function: "write_file"},
		{Module: "jobs", Function: "enqueue"},
	}
	if diff := cmp.Diff(reg.Targets(), want); diff != "" {
		t.Errorf("Targets (-got, +want):\n%s", diff)
	}

	// Re-registration replaces the previous entry.
	reg.Register("files", "read_file", stub("other"))
	if got, want := reg.Len(), 3; got != want {
		t.Errorf("Len after replace: got %d, want %d", got, want)
	}
}

func TestRegistryPanics(t *testing.T) {
	reg := farcall.NewRegistry()
	mtest.MustPanic(t, func() { reg.Register("", "f", stub(nil)) })
	mtest.MustPanic(t, func() { reg.Register("m", "", stub(nil)) })
	mtest.MustPanic(t, func() { reg.Register("m", "f", nil) })
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&farcall.NotFoundError{}, farcall.KindNotFound},
		{&farcall.TransportError{Op: "dial", Err: errors.New("refused")}, farcall.KindTransport},
		{&farcall.RemoteError{Kind: "io-error", Message: "boom"}, "io-error"},
		{&farcall.RemoteError{Message: "boom"}, farcall.KindRemote},
		{&farcall.TimeoutError{}, farcall.KindTimeout},
		{&farcall.ConfigError{Reason: "no URL"}, farcall.KindConfig},
		{context.DeadlineExceeded, farcall.KindTimeout},
		{context.Canceled, farcall.KindCanceled},
		{errors.New("whatever"), farcall.KindError},

		// Wrapped typed errors classify the same as bare ones.
		{errf("call: %w", &farcall.NotFoundError{}), farcall.KindNotFound},
		{&farcall.TransportError{Op: "send", Err: context.Canceled}, farcall.KindTransport},
	}
	for _, tc := range tests {
		if got := farcall.Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v): got %q, want %q", tc.err, got, tc.want)
		}
	}
}

func errf(f string, args ...any) error { return fmt.Errorf(f, args...) }
