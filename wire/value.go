// Copyright (C) 2025 Michael J. Fromberger. All Rights Reserved.

package wire

import (
	"encoding/json"
	"fmt"
	"math"
)

// A Kind identifies which variant a [Value] carries.
type Kind byte

const (
	KindString Kind = 1 // a UTF-8 string
	KindInt    Kind = 2 // a 64-bit signed integer
	KindFloat  Kind = 3 // a 64-bit floating point number
	KindBool   Kind = 4 // a Boolean
	KindBytes  Kind = 5 // an opaque byte string
	KindJSON   Kind = 6 // a JSON text for any other structure
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindBool:
		return "bool"
	case KindBytes:
		return "bytes"
	case KindJSON:
		return "json"
	default:
		return fmt.Sprintf("kind %d", byte(k))
	}
}

// A Value is a single call argument or result in wire form. Exactly one
// variant is populated, identified by the Kind. The zero Value is invalid and
// will not be produced by Encode.
type Value struct {
	kind Kind
	str  string // KindString and KindJSON
	num  int64
	fnum float64
	flag bool
	data []byte
}

// Constructors for each variant.

func stringValue(s string) Value { return Value{kind: KindString, str: s} }
func intValue(z int64) Value     { return Value{kind: KindInt, num: z} }
func floatValue(f float64) Value { return Value{kind: KindFloat, fnum: f} }
func boolValue(ok bool) Value    { return Value{kind: KindBool, flag: ok} }
func bytesValue(bs []byte) Value { return Value{kind: KindBytes, data: bs} }
func jsonValue(text string) Value { return Value{kind: KindJSON, str: text} }

// Kind reports which variant v carries.
func (v Value) Kind() Kind { return v.kind }

// Equal reports whether v and w carry the same variant with equal contents.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case KindString, KindJSON:
		return v.str == w.str
	case KindInt:
		return v.num == w.num
	case KindFloat:
		return v.fnum == w.fnum || (math.IsNaN(v.fnum) && math.IsNaN(w.fnum))
	case KindBool:
		return v.flag == w.flag
	case KindBytes:
		return string(v.data) == string(w.data)
	default:
		return true
	}
}

// String returns a human-friendly rendering of the value.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return fmt.Sprintf("Value(string, %q)", v.str)
	case KindInt:
		return fmt.Sprintf("Value(int, %d)", v.num)
	case KindFloat:
		return fmt.Sprintf("Value(float, %g)", v.fnum)
	case KindBool:
		return fmt.Sprintf("Value(bool, %v)", v.flag)
	case KindBytes:
		return fmt.Sprintf("Value(bytes, [%d bytes])", len(v.data))
	case KindJSON:
		return fmt.Sprintf("Value(json, %s)", v.str)
	default:
		return fmt.Sprintf("Value(invalid %d)", byte(v.kind))
	}
}

// Encode converts an arbitrary Go value into wire form. Strings, signed and
// unsigned integers, floats, Booleans, and byte slices map to their dedicated
// variants; everything else is serialized as JSON text. Encode is total: a
// value the JSON encoder rejects is rendered with fmt.Sprint and carried as a
// string, so that an exotic argument degrades a call rather than failing it.
func Encode(arg any) Value {
	switch t := arg.(type) {
	case Value:
		return t
	case string:
		return stringValue(t)
	case []byte:
		return bytesValue(t)
	case bool:
		return boolValue(t)
	case int:
		return intValue(int64(t))
	case int8:
		return intValue(int64(t))
	case int16:
		return intValue(int64(t))
	case int32:
		return intValue(int64(t))
	case int64:
		return intValue(t)
	case uint:
		return intValue(int64(t))
	case uint8:
		return intValue(int64(t))
	case uint16:
		return intValue(int64(t))
	case uint32:
		return intValue(int64(t))
	case uint64:
		if t <= math.MaxInt64 {
			return intValue(int64(t))
		}
	case float32:
		return floatValue(float64(t))
	case float64:
		return floatValue(t)
	}
	text, err := json.Marshal(arg)
	if err != nil {
		return stringValue(fmt.Sprint(arg))
	}
	return jsonValue(string(text))
}

// EncodeAll converts a slice of arbitrary Go values into wire form.
func EncodeAll(args []any) []Value {
	if len(args) == 0 {
		return nil
	}
	out := make([]Value, len(args))
	for i, arg := range args {
		out[i] = Encode(arg)
	}
	return out
}

// EncodeMap converts a map of arbitrary Go values into wire form.
func EncodeMap(kwargs map[string]any) map[string]Value {
	if len(kwargs) == 0 {
		return nil
	}
	out := make(map[string]Value, len(kwargs))
	for key, arg := range kwargs {
		out[key] = Encode(arg)
	}
	return out
}

// Decode converts a wire value back into a Go value: string, int64, float64,
// bool, []byte, or the result of unmarshaling the JSON variant. A JSON text
// that does not parse is returned verbatim as a string, so a mangled payload
// surfaces to the caller instead of being lost.
func (v Value) Decode() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindInt:
		return v.num
	case KindFloat:
		return v.fnum
	case KindBool:
		return v.flag
	case KindBytes:
		return v.data
	case KindJSON:
		var out any
		if err := json.Unmarshal([]byte(v.str), &out); err != nil {
			return v.str
		}
		return out
	default:
		return nil
	}
}

// DecodeAll converts a slice of wire values back into Go values.
func DecodeAll(vs []Value) []any {
	if len(vs) == 0 {
		return nil
	}
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v.Decode()
	}
	return out
}

// DecodeMap converts a map of wire values back into Go values.
func DecodeMap(vs map[string]Value) map[string]any {
	if len(vs) == 0 {
		return nil
	}
	out := make(map[string]any, len(vs))
	for key, v := range vs {
		out[key] = v.Decode()
	}
	return out
}

// encodeTo appends the binary form of v to b: a kind byte followed by the
// variant payload. Variable-length variants are length-prefixed.
func (v Value) encodeTo(b *Builder) {
	b.Put(byte(v.kind))
	switch v.kind {
	case KindString, KindJSON:
		b.VPutString(v.str)
	case KindInt:
		b.Uint64(uint64(v.num))
	case KindFloat:
		b.Uint64(math.Float64bits(v.fnum))
	case KindBool:
		b.Bool(v.flag)
	case KindBytes:
		b.VPut(v.data)
	}
}

// decodeValue parses a single binary value from the head of s.
func decodeValue(s *Scanner) (Value, error) {
	tag, err := s.Byte()
	if err != nil {
		return Value{}, err
	}
	switch Kind(tag) {
	case KindString, KindJSON:
		text, err := VGet[string](s)
		if err != nil {
			return Value{}, err
		}
		return Value{kind: Kind(tag), str: text}, nil
	case KindInt:
		z, err := s.Uint64()
		if err != nil {
			return Value{}, err
		}
		return intValue(int64(z)), nil
	case KindFloat:
		bits, err := s.Uint64()
		if err != nil {
			return Value{}, err
		}
		return floatValue(math.Float64frombits(bits)), nil
	case KindBool:
		ok, err := s.Bool()
		if err != nil {
			return Value{}, err
		}
		return boolValue(ok), nil
	case KindBytes:
		bs, err := VGet[[]byte](s)
		if err != nil {
			return Value{}, err
		}
		return bytesValue(bs), nil
	default:
		return Value{}, fmt.Errorf("invalid value kind %d", tag)
	}
}
