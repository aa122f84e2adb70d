// Package wire encodes messages in the protobuf wire format with protowire,
// field by field, without generated code.
package wire

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrMalformed = errors.New("malformed message")

// Message is implemented by every type that travels over the wire or is
// persisted
type Message interface {
	MarshalWire() ([]byte, error)
	UnmarshalWire([]byte) error
}

// FieldFunc consumes the value of a single field from b and returns the
// number of bytes it consumed
type FieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// Walk calls fn for every field of the encoded message b
func Walk(b []byte, fn FieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return malformed(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		b = b[m:]
	}

	return nil
}

// Skip consumes a field the message does not know
func Skip(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
	n := protowire.ConsumeFieldValue(num, typ, b)
	if n < 0 {
		return 0, malformed(n)
	}

	return n, nil
}

func String(typ protowire.Type, b []byte, dst *string) (int, error) {
	if err := expect(typ, protowire.BytesType); err != nil {
		return 0, err
	}

	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, malformed(n)
	}

	*dst = v
	return n, nil
}

// Bytes copies the field value, so dst never aliases b
func Bytes(typ protowire.Type, b []byte, dst *[]byte) (int, error) {
	if err := expect(typ, protowire.BytesType); err != nil {
		return 0, err
	}

	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, malformed(n)
	}

	*dst = append([]byte(nil), v...)
	return n, nil
}

func Uint64(typ protowire.Type, b []byte, dst *uint64) (int, error) {
	if err := expect(typ, protowire.VarintType); err != nil {
		return 0, err
	}

	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, malformed(n)
	}

	*dst = v
	return n, nil
}

func Uint32(typ protowire.Type, b []byte, dst *uint32) (int, error) {
	var v uint64
	n, err := Uint64(typ, b, &v)
	if err != nil {
		return 0, err
	}

	*dst = uint32(v)
	return n, nil
}

func Bool(typ protowire.Type, b []byte, dst *bool) (int, error) {
	var v uint64
	n, err := Uint64(typ, b, &v)
	if err != nil {
		return 0, err
	}

	*dst = protowire.DecodeBool(v)
	return n, nil
}

func AppendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func AppendUint64(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	return AppendUint64(b, num, protowire.EncodeBool(v))
}

func expect(got, want protowire.Type) error {
	if got != want {
		return fmt.Errorf("%w: wire type %d, want %d", ErrMalformed, got, want)
	}

	return nil
}

func malformed(code int) error {
	return fmt.Errorf("%w: %s", ErrMalformed, protowire.ParseError(code).Error())
}
