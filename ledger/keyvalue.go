package ledger

import (
	"encoding/binary"
)

const (
	sizeConstantKey = "s"
	blockPrefix     = "b"
	hashIndexPrefix = "h"
)

func blockKey(height uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, height)

	return append([]byte(blockPrefix), key...)
}

func sizeKey() []byte {
	return []byte(sizeConstantKey)
}

func encodeUint64(v uint64) []byte {
	value := make([]byte, 8)
	binary.BigEndian.PutUint64(value, v)

	return value
}

func hashKey(hash string) []byte {
	return append([]byte(hashIndexPrefix), hash...)
}
