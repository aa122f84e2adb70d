package ledger

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/frankonly/blockseal/wire"
)

// Version of the block format
const Version = 1

// Header links a block to its predecessor and anchors a merkle root
type Header struct {
	Version       uint32
	PrevBlockHash string
	MerkleRoot    string
	Time          uint32
	Nonce         uint32
}

// Transaction lists the leaf handles the merkle root was computed over, in
// leaf order, and the geometry of the sealed image
type Transaction struct {
	Handles   []string
	Width     uint32
	Height    uint32
	BlockSize uint32
	Hasher    string
	// Salt keys the block cipher of this image
	Salt []byte
}

// Block is a ledger entry
type Block struct {
	Header      Header
	Transaction Transaction
}

// Hash returns the header hash identifying the block
func (b Block) Hash() string {
	return HeaderHash(b.Header)
}

// HeaderHash is the lowercase hex MD5 of the header fields concatenated in
// their decimal and string forms
func HeaderHash(h Header) string {
	s := fmt.Sprintf("%d%s%s%d%d", h.Version, h.PrevBlockHash, h.MerkleRoot, h.Time, h.Nonce)
	sum := md5.Sum([]byte(s))

	return hex.EncodeToString(sum[:])
}

func (h Header) MarshalWire() ([]byte, error) {
	var b []byte
	b = wire.AppendUint64(b, 1, uint64(h.Version))
	b = wire.AppendString(b, 2, h.PrevBlockHash)
	b = wire.AppendString(b, 3, h.MerkleRoot)
	b = wire.AppendUint64(b, 4, uint64(h.Time))
	b = wire.AppendUint64(b, 5, uint64(h.Nonce))

	return b, nil
}

func (h *Header) UnmarshalWire(b []byte) error {
	return wire.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			return wire.Uint32(typ, b, &h.Version)
		case 2:
			return wire.String(typ, b, &h.PrevBlockHash)
		case 3:
			return wire.String(typ, b, &h.MerkleRoot)
		case 4:
			return wire.Uint32(typ, b, &h.Time)
		case 5:
			return wire.Uint32(typ, b, &h.Nonce)
		default:
			return wire.Skip(num, typ, b)
		}
	})
}

func (t Transaction) MarshalWire() ([]byte, error) {
	var b []byte
	for _, handle := range t.Handles {
		b = wire.AppendString(b, 1, handle)
	}
	b = wire.AppendUint64(b, 2, uint64(t.Width))
	b = wire.AppendUint64(b, 3, uint64(t.Height))
	b = wire.AppendUint64(b, 4, uint64(t.BlockSize))
	b = wire.AppendString(b, 5, t.Hasher)
	if len(t.Salt) > 0 {
		b = wire.AppendBytes(b, 6, t.Salt)
	}

	return b, nil
}

func (t *Transaction) UnmarshalWire(b []byte) error {
	return wire.Walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			var handle string
			n, err := wire.String(typ, b, &handle)
			if err != nil {
				return 0, err
			}
			t.Handles = append(t.Handles, handle)
			return n, nil
		case 2:
			return wire.Uint32(typ, b, &t.Width)
		case 3:
			return wire.Uint32(typ, b, &t.Height)
		case 4:
			return wire.Uint32(typ, b, &t.BlockSize)
		case 5:
			return wire.String(typ, b, &t.Hasher)
		case 6:
			return wire.Bytes(typ, b, &t.Salt)
		default:
			return wire.Skip(num, typ, b)
		}
	})
}

func (b Block) MarshalWire() ([]byte, error) {
	header, err := b.Header.MarshalWire()
	if err != nil {
		return nil, err
	}

	tx, err := b.Transaction.MarshalWire()
	if err != nil {
		return nil, err
	}

	var out []byte
	out = wire.AppendBytes(out, 1, header)
	out = wire.AppendBytes(out, 2, tx)

	return out, nil
}

func (b *Block) UnmarshalWire(raw []byte) error {
	return wire.Walk(raw, func(num protowire.Number, typ protowire.Type, v []byte) (int, error) {
		var nested []byte
		switch num {
		case 1:
			n, err := wire.Bytes(typ, v, &nested)
			if err != nil {
				return 0, err
			}
			return n, b.Header.UnmarshalWire(nested)
		case 2:
			n, err := wire.Bytes(typ, v, &nested)
			if err != nil {
				return 0, err
			}
			return n, b.Transaction.UnmarshalWire(nested)
		default:
			return wire.Skip(num, typ, v)
		}
	})
}
