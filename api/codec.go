package api

import (
	"fmt"

	"github.com/frankonly/blockseal/wire"
)

// codecName is also the content subtype, application/grpc+blockseal
const codecName = "blockseal"

// Codec marshals the service messages for gRPC. It is forced on both ends of
// the connection, see ServerOptions and DialOptions.
type Codec struct{}

func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(wire.Message)
	if !ok {
		return nil, fmt.Errorf("%w: cannot marshal %T", wire.ErrMalformed, v)
	}

	return m.MarshalWire()
}

func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(wire.Message)
	if !ok {
		return fmt.Errorf("%w: cannot unmarshal into %T", wire.ErrMalformed, v)
	}

	return m.UnmarshalWire(data)
}

func (Codec) Name() string {
	return codecName
}
