// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package wire_test

import (
	"testing"

	"github.com/farcall/farcall/wire"
)

func TestVint30(t *testing.T) {
	tests := []struct {
		input wire.Vint30
		want  string
	}{
		// Single-byte encodings.
		{0, "\x00"},
		{1, "\x04"},
		{63, "\xfc"},

		// Two-byte encodings.
		{64, "\x01\x01"},
		{100, "\x91\x01"},
		{16383, "\xfd\xff"},

		// Three-byte encodings.
		{16384, "\x02\x00\x01"},
		{1048576, "\x02\x00\x40"},

		// Four-byte encodings.
		{62830181, "\x97\xd9\xfa\x0e"},
		{1073741823, "\xff\xff\xff\xff"}, // maximum supported value
	}

	var packed []byte
	for _, tc := range tests {
		got := tc.input.Append(nil)
		if string(got) != tc.want {
			t.Errorf("Encode %d: got %v, want %v", tc.input, got, []byte(tc.want))
		}
		packed = tc.input.Append(packed) // see below

		s := wire.NewScanner(got)
		cmp, err := s.Vint30()
		if err != nil {
			t.Errorf("Scan: unexpected error: %v", err)
		} else if wire.Vint30(cmp) != tc.input {
			t.Errorf("Scan: got %v, want %v", cmp, tc.input)
		}
	}

	// Decode the accumulated results to verify self-framing.
	s := wire.NewScanner(packed)
	var i int
	for s.Len() != 0 {
		got, err := s.Vint30()
		if err != nil {
			t.Fatalf("Invalid encoding at offset %d (%v)", s.Offset(), s.Rest())
		} else if i >= len(tests) {
			t.Errorf("Index %d: got extra value %d (%v)", i, got, s.Rest())
		} else if wire.Vint30(got) != tests[i].input {
			t.Errorf("Index %d: got %v, want %v", i, got, tests[i].input)
		}
		i++
	}
}

func TestBuilderScanner(t *testing.T) {
	var b wire.Builder
	b.Bool(true)
	b.Uint16(5000)
	b.Uint32(0xfc009a01)
	b.Uint64(1<<40 + 7)
	b.VPutString("tele")
	b.VPut([]byte{9, 9, 9})

	s := wire.NewScanner(b.Bytes())
	if got, err := s.Bool(); err != nil || !got {
		t.Errorf("Bool: got %v, %v; want true, nil", got, err)
	}
	if got, err := s.Uint16(); err != nil || got != 5000 {
		t.Errorf("Uint16: got %v, %v; want 5000, nil", got, err)
	}
	if got, err := s.Uint32(); err != nil || got != 0xfc009a01 {
		t.Errorf("Uint32: got %v, %v; want %v, nil", got, err, uint32(0xfc009a01))
	}
	if got, err := s.Uint64(); err != nil || got != 1<<40+7 {
		t.Errorf("Uint64: got %v, %v; want %v, nil", got, err, uint64(1<<40+7))
	}
	if got, err := wire.VGet[string](s); err != nil || got != "tele" {
		t.Errorf("VGet: got %q, %v; want %q, nil", got, err, "tele")
	}
	if got, err := wire.VGet[[]byte](s); err != nil || string(got) != "\x09\x09\x09" {
		t.Errorf("VGet: got %v, %v; want [9 9 9], nil", got, err)
	}
	if s.Len() != 0 {
		t.Errorf("Scanner: %d bytes left over", s.Len())
	}

	if _, err := s.Byte(); err == nil {
		t.Error("Byte on empty scanner: unexpectedly succeeded")
	}
	if _, err := wire.VGet[string](s); err == nil {
		t.Error("VGet on empty scanner: unexpectedly succeeded")
	}
}
