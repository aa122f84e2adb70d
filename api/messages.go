package api

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/frankonly/blockseal/ledger"
	"github.com/frankonly/blockseal/wire"
)

type SealRequest struct {
	// Image is an encoded PNG or JPEG
	Image []byte
}

type SealResponse struct {
	BlockHash string
	Root      string
	Leaves    uint32
	Width     uint32
	Height    uint32
	BlockSize uint32
}

type VerifyRequest struct {
	BlockHash string
	Image     []byte
}

// Region is the rectangle of a tampered block
type Region struct {
	X    uint32
	Y    uint32
	Size uint32
}

type VerifyResponse struct {
	BlockHash string
	// Vector holds one byte per block, 1 for tampered
	Vector  []byte
	Regions []Region
}

type RestoreRequest struct {
	BlockHash string
	Image     []byte
	Vector    []byte
}

type RestoreResponse struct {
	// Image is the restored image encoded as PNG
	Image []byte
}

type GetBlockRequest struct {
	BlockHash string
}

type GetBlockResponse struct {
	Hash  string
	Block ledger.Block
}

func (m *SealRequest) MarshalWire() ([]byte, error) {
	return wire.AppendBytes(nil, 1, m.Image), nil
}

func (m *SealRequest) UnmarshalWire(b []byte) error {
	return wire.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return wire.Bytes(typ, b, &m.Image)
		}
		return wire.Skip(num, typ, b)
	})
}

func (m *SealResponse) MarshalWire() ([]byte, error) {
	var b []byte
	b = wire.AppendString(b, 1, m.BlockHash)
	b = wire.AppendString(b, 2, m.Root)
	b = wire.AppendUint64(b, 3, uint64(m.Leaves))
	b = wire.AppendUint64(b, 4, uint64(m.Width))
	b = wire.AppendUint64(b, 5, uint64(m.Height))
	b = wire.AppendUint64(b, 6, uint64(m.BlockSize))

	return b, nil
}

func (m *SealResponse) UnmarshalWire(b []byte) error {
	return wire.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return wire.String(typ, b, &m.BlockHash)
		case 2:
			return wire.String(typ, b, &m.Root)
		case 3:
			return wire.Uint32(typ, b, &m.Leaves)
		case 4:
			return wire.Uint32(typ, b, &m.Width)
		case 5:
			return wire.Uint32(typ, b, &m.Height)
		case 6:
			return wire.Uint32(typ, b, &m.BlockSize)
		default:
			return wire.Skip(num, typ, b)
		}
	})
}

func (m *VerifyRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = wire.AppendString(b, 1, m.BlockHash)
	b = wire.AppendBytes(b, 2, m.Image)

	return b, nil
}

func (m *VerifyRequest) UnmarshalWire(b []byte) error {
	return wire.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return wire.String(typ, b, &m.BlockHash)
		case 2:
			return wire.Bytes(typ, b, &m.Image)
		default:
			return wire.Skip(num, typ, b)
		}
	})
}

func (m Region) marshal() []byte {
	var b []byte
	b = wire.AppendUint64(b, 1, uint64(m.X))
	b = wire.AppendUint64(b, 2, uint64(m.Y))
	b = wire.AppendUint64(b, 3, uint64(m.Size))

	return b
}

func (m *Region) unmarshal(b []byte) error {
	return wire.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return wire.Uint32(typ, b, &m.X)
		case 2:
			return wire.Uint32(typ, b, &m.Y)
		case 3:
			return wire.Uint32(typ, b, &m.Size)
		default:
			return wire.Skip(num, typ, b)
		}
	})
}

func (m *VerifyResponse) MarshalWire() ([]byte, error) {
	var b []byte
	b = wire.AppendString(b, 1, m.BlockHash)
	b = wire.AppendBytes(b, 2, m.Vector)
	for _, region := range m.Regions {
		b = wire.AppendBytes(b, 3, region.marshal())
	}

	return b, nil
}

func (m *VerifyResponse) UnmarshalWire(b []byte) error {
	return wire.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return wire.String(typ, b, &m.BlockHash)
		case 2:
			return wire.Bytes(typ, b, &m.Vector)
		case 3:
			var raw []byte
			n, err := wire.Bytes(typ, b, &raw)
			if err != nil {
				return 0, err
			}

			var region Region
			if err := region.unmarshal(raw); err != nil {
				return 0, err
			}
			m.Regions = append(m.Regions, region)
			return n, nil
		default:
			return wire.Skip(num, typ, b)
		}
	})
}

func (m *RestoreRequest) MarshalWire() ([]byte, error) {
	var b []byte
	b = wire.AppendString(b, 1, m.BlockHash)
	b = wire.AppendBytes(b, 2, m.Image)
	b = wire.AppendBytes(b, 3, m.Vector)

	return b, nil
}

func (m *RestoreRequest) UnmarshalWire(b []byte) error {
	return wire.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return wire.String(typ, b, &m.BlockHash)
		case 2:
			return wire.Bytes(typ, b, &m.Image)
		case 3:
			return wire.Bytes(typ, b, &m.Vector)
		default:
			return wire.Skip(num, typ, b)
		}
	})
}

func (m *RestoreResponse) MarshalWire() ([]byte, error) {
	return wire.AppendBytes(nil, 1, m.Image), nil
}

func (m *RestoreResponse) UnmarshalWire(b []byte) error {
	return wire.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return wire.Bytes(typ, b, &m.Image)
		}
		return wire.Skip(num, typ, b)
	})
}

func (m *GetBlockRequest) MarshalWire() ([]byte, error) {
	return wire.AppendString(nil, 1, m.BlockHash), nil
}

func (m *GetBlockRequest) UnmarshalWire(b []byte) error {
	return wire.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num == 1 {
			return wire.String(typ, b, &m.BlockHash)
		}
		return wire.Skip(num, typ, b)
	})
}

func (m *GetBlockResponse) MarshalWire() ([]byte, error) {
	raw, err := m.Block.MarshalWire()
	if err != nil {
		return nil, err
	}

	var b []byte
	b = wire.AppendString(b, 1, m.Hash)
	b = wire.AppendBytes(b, 2, raw)

	return b, nil
}

func (m *GetBlockResponse) UnmarshalWire(b []byte) error {
	return wire.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return wire.String(typ, b, &m.Hash)
		case 2:
			var raw []byte
			n, err := wire.Bytes(typ, b, &raw)
			if err != nil {
				return 0, err
			}
			return n, m.Block.UnmarshalWire(raw)
		default:
			return wire.Skip(num, typ, b)
		}
	})
}
