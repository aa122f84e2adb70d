package wire

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestWalk(t *testing.T) {
	r := require.New(t)

	var b []byte
	b = AppendString(b, 1, "handle")
	b = AppendUint64(b, 2, 300)
	b = AppendBytes(b, 3, []byte{1, 2, 3})
	b = AppendBool(b, 4, true)
	b = AppendString(b, 99, "unknown")
	b = AppendString(b, 1, "second")

	var (
		handles []string
		size    uint32
		payload []byte
		flag    bool
	)

	err := Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var s string
			n, err := String(typ, b, &s)
			handles = append(handles, s)
			return n, err
		case 2:
			return Uint32(typ, b, &size)
		case 3:
			return Bytes(typ, b, &payload)
		case 4:
			return Bool(typ, b, &flag)
		default:
			return Skip(num, typ, b)
		}
	})
	r.NoError(err)
	r.Equal([]string{"handle", "second"}, handles)
	r.EqualValues(300, size)
	r.Equal([]byte{1, 2, 3}, payload)
	r.True(flag)
}

func TestWalkMalformed(t *testing.T) {
	r := require.New(t)

	truncated := AppendString(nil, 1, "handle")
	truncated = truncated[:len(truncated)-2]

	var s string
	err := Walk(truncated, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		return String(typ, b, &s)
	})
	r.True(errors.Is(err, ErrMalformed))

	wrongType := AppendUint64(nil, 1, 7)
	err = Walk(wrongType, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		return String(typ, b, &s)
	})
	r.True(errors.Is(err, ErrMalformed))
}
