// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package wire_test

import (
	"testing"
	"time"

	"github.com/farcall/farcall/wire"
	"github.com/google/go-cmp/cmp"
)

var valueEqual = cmp.Comparer(wire.Value.Equal)

func TestCallEnvelope(t *testing.T) {
	env := wire.CallEnvelope{
		Module:      "files",
		Function:    "read_file",
		ExecutionID: "rpc_100_1",
		Async:       true,
		Timeout:     1500 * time.Millisecond,
		Args:        wire.EncodeAll([]any{"/tmp/x", 25, true}),
		Kwargs:      wire.EncodeMap(map[string]any{"binary": false, "max_size": 4096}),
	}
	var dec wire.CallEnvelope
	if err := dec.Decode(env.Encode()); err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	if diff := cmp.Diff(dec, env, valueEqual); diff != "" {
		t.Errorf("Envelope (-got, +want):\n%s", diff)
	}
	if got, want := dec.Target(), "files.read_file"; got != want {
		t.Errorf("Target: got %q, want %q", got, want)
	}
}

func TestCallEnvelopeEmpty(t *testing.T) {
	var env wire.CallEnvelope
	var dec wire.CallEnvelope
	if err := dec.Decode(env.Encode()); err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	if dec.Args != nil || dec.Kwargs != nil {
		t.Errorf("Decode: got args %v kwargs %v, want none", dec.Args, dec.Kwargs)
	}
}

func TestCallEnvelopeDeterministic(t *testing.T) {
	// Keyword arguments are a map, but the encoding must not depend on map
	// iteration order.
	env := wire.CallEnvelope{
		Module:   "m",
		Function: "f",
		Kwargs: wire.EncodeMap(map[string]any{
			"alpha": 1, "bravo": 2, "charlie": 3, "delta": 4, "echo": 5,
		}),
	}
	first := env.Encode()
	for range 10 {
		if got := env.Encode(); string(got) != string(first) {
			t.Fatalf("Encode is not deterministic:\n got %v\nwant %v", got, first)
		}
	}
}

func TestResultEnvelope(t *testing.T) {
	ok := wire.ResultEnvelope{
		ExecutionID: "rpc_100_2",
		OK:          true,
		Result:      wire.Encode("done"),
		Elapsed:     3 * time.Millisecond,
	}
	var dec wire.ResultEnvelope
	if err := dec.Decode(ok.Encode()); err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	if diff := cmp.Diff(dec, ok, valueEqual); diff != "" {
		t.Errorf("Envelope (-got, +want):\n%s", diff)
	}

	fail := wire.ResultEnvelope{
		ExecutionID: "rpc_100_3",
		ErrKind:     "target-not-found",
		ErrMessage:  "no such target",
		Elapsed:     time.Millisecond,
	}
	if err := dec.Decode(fail.Encode()); err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	if diff := cmp.Diff(dec, fail, valueEqual); diff != "" {
		t.Errorf("Envelope (-got, +want):\n%s", diff)
	}
}

func TestEnvelopeTruncated(t *testing.T) {
	env := wire.CallEnvelope{Module: "m", Function: "f", Args: wire.EncodeAll([]any{"x"})}
	enc := env.Encode()
	for n := range len(enc) {
		var dec wire.CallEnvelope
		if err := dec.Decode(enc[:n]); err == nil {
			t.Errorf("Decode %d bytes: unexpectedly succeeded", n)
		}
	}

	var dec wire.CallEnvelope
	if err := dec.Decode(append(enc, 0)); err == nil {
		t.Error("Decode with trailing data: unexpectedly succeeded")
	}
}

func TestResultTruncated(t *testing.T) {
	env := wire.ResultEnvelope{ExecutionID: "e", OK: true, Result: wire.Encode(1)}
	enc := env.Encode()
	for n := range len(enc) {
		var dec wire.ResultEnvelope
		if err := dec.Decode(enc[:n]); err == nil {
			t.Errorf("Decode %d bytes: unexpectedly succeeded", n)
		}
	}
}
