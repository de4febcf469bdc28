// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package wire

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// A CallEnvelope is the payload of a function execution request. It names the
// target, carries the encoded arguments, and describes how the call should be
// run: the execution ID correlates logs and results across the process
// boundary, the Async flag reports whether the target manages its own
// blocking, and the Timeout bounds execution on the serving side.
type CallEnvelope struct {
	Module      string
	Function    string
	ExecutionID string
	Async       bool
	Timeout     time.Duration
	Args        []Value
	Kwargs      map[string]Value
}

// Encode encodes the envelope in binary format. Keyword arguments are
// written in sorted key order, so equal envelopes produce equal bytes.
func (e CallEnvelope) Encode() []byte {
	var b Builder
	b.VPutString(e.Module)
	b.VPutString(e.Function)
	b.VPutString(e.ExecutionID)
	b.Bool(e.Async)
	b.Uint32(uint32(max(e.Timeout, 0) / time.Millisecond))
	b.Vint30(uint32(len(e.Args)))
	for _, arg := range e.Args {
		arg.encodeTo(&b)
	}
	b.Vint30(uint32(len(e.Kwargs)))
	for _, key := range slices.Sorted(maps.Keys(e.Kwargs)) {
		b.VPutString(key)
		e.Kwargs[key].encodeTo(&b)
	}
	return b.Bytes()
}

// Decode decodes data into a call envelope.
func (e *CallEnvelope) Decode(data []byte) error {
	s := NewScanner(data)
	var err error
	if e.Module, err = VGet[string](s); err != nil {
		return fmt.Errorf("module: %w", err)
	}
	if e.Function, err = VGet[string](s); err != nil {
		return fmt.Errorf("function: %w", err)
	}
	if e.ExecutionID, err = VGet[string](s); err != nil {
		return fmt.Errorf("execution ID: %w", err)
	}
	if e.Async, err = s.Bool(); err != nil {
		return fmt.Errorf("async flag: %w", err)
	}
	ms, err := s.Uint32()
	if err != nil {
		return fmt.Errorf("timeout: %w", err)
	}
	e.Timeout = time.Duration(ms) * time.Millisecond

	nargs, err := s.Vint30()
	if err != nil {
		return fmt.Errorf("args count: %w", err)
	}
	e.Args = nil
	for i := range nargs {
		arg, err := decodeValue(s)
		if err != nil {
			return fmt.Errorf("arg %d: %w", i+1, err)
		}
		e.Args = append(e.Args, arg)
	}

	nkw, err := s.Vint30()
	if err != nil {
		return fmt.Errorf("kwargs count: %w", err)
	}
	e.Kwargs = nil
	for i := range nkw {
		key, err := VGet[string](s)
		if err != nil {
			return fmt.Errorf("kwarg %d key: %w", i+1, err)
		}
		val, err := decodeValue(s)
		if err != nil {
			return fmt.Errorf("kwarg %q: %w", key, err)
		}
		if e.Kwargs == nil {
			e.Kwargs = make(map[string]Value, nkw)
		}
		e.Kwargs[key] = val
	}
	if s.Len() != 0 {
		return fmt.Errorf("call envelope: %d bytes of trailing data", s.Len())
	}
	return nil
}

// Target returns the call target rendered as "module.function".
func (e CallEnvelope) Target() string { return e.Module + "." + e.Function }

// String returns a human-friendly rendering of the envelope.
func (e CallEnvelope) String() string {
	return fmt.Sprintf("Call(%s, ID=%s, args=%d, kwargs=%d)", e.Target(), e.ExecutionID, len(e.Args), len(e.Kwargs))
}

// A ResultEnvelope is the payload of a function execution response,
// correlated to its request by the execution ID. On success the Result value
// is populated; on failure the error kind and message record where and why
// the call failed. Elapsed is the execution time observed by the serving
// peer.
type ResultEnvelope struct {
	ExecutionID string
	OK          bool
	Result      Value
	ErrKind     string
	ErrMessage  string
	Elapsed     time.Duration
}

// Encode encodes the envelope in binary format.
func (e ResultEnvelope) Encode() []byte {
	var b Builder
	b.VPutString(e.ExecutionID)
	b.Bool(e.OK)
	if e.OK {
		e.Result.encodeTo(&b)
	} else {
		b.VPutString(e.ErrKind)
		b.VPutString(e.ErrMessage)
	}
	b.Uint64(uint64(max(e.Elapsed, 0)))
	return b.Bytes()
}

// Decode decodes data into a result envelope.
func (e *ResultEnvelope) Decode(data []byte) error {
	s := NewScanner(data)
	var err error
	if e.ExecutionID, err = VGet[string](s); err != nil {
		return fmt.Errorf("execution ID: %w", err)
	}
	if e.OK, err = s.Bool(); err != nil {
		return fmt.Errorf("status: %w", err)
	}
	if e.OK {
		e.Result, err = decodeValue(s)
		if err != nil {
			return fmt.Errorf("result: %w", err)
		}
		e.ErrKind, e.ErrMessage = "", ""
	} else {
		if e.ErrKind, err = VGet[string](s); err != nil {
			return fmt.Errorf("error kind: %w", err)
		}
		if e.ErrMessage, err = VGet[string](s); err != nil {
			return fmt.Errorf("error message: %w", err)
		}
		e.Result = Value{}
	}
	ns, err := s.Uint64()
	if err != nil {
		return fmt.Errorf("elapsed: %w", err)
	}
	e.Elapsed = time.Duration(ns)
	if s.Len() != 0 {
		return fmt.Errorf("result envelope: %d bytes of trailing data", s.Len())
	}
	return nil
}

// String returns a human-friendly rendering of the envelope.
func (e ResultEnvelope) String() string {
	if e.OK {
		return fmt.Sprintf("Result(ID=%s, ok, %v, %v)", e.ExecutionID, e.Result, e.Elapsed)
	}
	return fmt.Sprintf("Result(ID=%s, failed [%s]: %s)", e.ExecutionID, e.ErrKind, e.ErrMessage)
}
