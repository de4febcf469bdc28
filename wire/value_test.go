// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package wire_test

import (
	"testing"

	"github.com/farcall/farcall/wire"
	"github.com/google/go-cmp/cmp"
)

func TestEncodeDecode(t *testing.T) {
	tests := []struct {
		input any
		kind  wire.Kind
		want  any // expected Decode result
	}{
		{"hello", wire.KindString, "hello"},
		{"", wire.KindString, ""},
		{25, wire.KindInt, int64(25)},
		{int64(-3), wire.KindInt, int64(-3)},
		{uint16(500), wire.KindInt, int64(500)},
		{3.5, wire.KindFloat, 3.5},
		{float32(0.25), wire.KindFloat, 0.25},
		{true, wire.KindBool, true},
		{false, wire.KindBool, false},
		{[]byte("\x00\x01"), wire.KindBytes, []byte("\x00\x01")},
		{[]string{"a", "b"}, wire.KindJSON, []any{"a", "b"}},
		{map[string]int{"n": 3}, wire.KindJSON, map[string]any{"n": float64(3)}},
		{nil, wire.KindJSON, nil},
	}
	for _, tc := range tests {
		v := wire.Encode(tc.input)
		if v.Kind() != tc.kind {
			t.Errorf("Encode %v: got kind %v, want %v", tc.input, v.Kind(), tc.kind)
		}
		if diff := cmp.Diff(v.Decode(), tc.want); diff != "" {
			t.Errorf("Decode %v (-got, +want):\n%s", tc.input, diff)
		}
	}
}

func TestEncodeIsTotal(t *testing.T) {
	// A channel has no JSON encoding. The value must still encode, carried as
	// a plain string, so the call proceeds.
	v := wire.Encode(make(chan int))
	if v.Kind() != wire.KindString {
		t.Errorf("Encode chan: got kind %v, want %v", v.Kind(), wire.KindString)
	}
	if s, ok := v.Decode().(string); !ok || s == "" {
		t.Errorf("Decode chan: got %v, want a non-empty string", v.Decode())
	}
}

func TestEncodeValuePassthrough(t *testing.T) {
	orig := wire.Encode("carrier")
	if got := wire.Encode(orig); !got.Equal(orig) {
		t.Errorf("Encode(Value): got %v, want %v", got, orig)
	}
}

func TestEncodeAllDecodeAll(t *testing.T) {
	args := []any{"a", 1, true}
	got := wire.DecodeAll(wire.EncodeAll(args))
	want := []any{"a", int64(1), true}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Round trip (-got, +want):\n%s", diff)
	}
	if wire.EncodeAll(nil) != nil {
		t.Error("EncodeAll(nil): got non-nil")
	}
	if wire.DecodeAll(nil) != nil {
		t.Error("DecodeAll(nil): got non-nil")
	}
}

func TestEncodeMapDecodeMap(t *testing.T) {
	kw := map[string]any{"name": "x", "count": 5}
	got := wire.DecodeMap(wire.EncodeMap(kw))
	want := map[string]any{"name": "x", "count": int64(5)}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Round trip (-got, +want):\n%s", diff)
	}
	if wire.EncodeMap(nil) != nil {
		t.Error("EncodeMap(nil): got non-nil")
	}
}
