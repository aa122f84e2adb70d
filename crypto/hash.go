package crypto

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	sha256 "github.com/minio/sha256-simd"
	"golang.org/x/crypto/sha3"
	"lukechampine.com/blake3"
)

// DigestSize is the width of every leaf and node digest in bytes
const DigestSize = 32

var (
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
	ErrInvalidDigest    = errors.New("invalid digest")
)

// Digest is a fixed-width content fingerprint
type Digest [DigestSize]byte

// Hex renders the digest as lowercase hex
func (d Digest) Hex() string {
	return hex.EncodeToString(d[:])
}

func (d Digest) String() string {
	return d.Hex()
}

// ParseDigest parses a hex-encoded digest
func ParseDigest(s string) (Digest, error) {
	var d Digest

	raw, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("%w: %s", ErrInvalidDigest, err.Error())
	}
	if len(raw) != DigestSize {
		return d, fmt.Errorf("%w: length %d", ErrInvalidDigest, len(raw))
	}

	copy(d[:], raw)
	return d, nil
}

// Hasher maps an arbitrary payload to a 256-bit digest. Implementations are
// pure and safe for concurrent use.
type Hasher interface {
	Sum(payload []byte) Digest
	Name() string
}

var (
	// SHA256 hashes by SHA-256
	SHA256 Hasher = sha256Hasher{}
	// Keccak256 hashes by the legacy Keccak-256 used by ethereum and swarm
	Keccak256 Hasher = keccakHasher{}
	// BLAKE3 hashes by BLAKE3 with a 256-bit output
	BLAKE3 Hasher = blake3Hasher{}
)

var hashers = map[string]Hasher{
	SHA256.Name():    SHA256,
	Keccak256.Name(): Keccak256,
	BLAKE3.Name():    BLAKE3,
}

// HasherByName resolves a hasher from its configuration name
func HasherByName(name string) (Hasher, error) {
	h, ok := hashers[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: hasher %q", ErrUnknownAlgorithm, name)
	}

	return h, nil
}

// HashNodes hashes two nodes into one
func HashNodes(h Hasher, left, right Digest) Digest {
	var buf [2 * DigestSize]byte
	copy(buf[:DigestSize], left[:])
	copy(buf[DigestSize:], right[:])

	return h.Sum(buf[:])
}

type sha256Hasher struct{}

func (sha256Hasher) Sum(payload []byte) Digest { return sha256.Sum256(payload) }
func (sha256Hasher) Name() string              { return "sha256" }

type keccakHasher struct{}

func (keccakHasher) Sum(payload []byte) Digest {
	var d Digest

	h := sha3.NewLegacyKeccak256()
	// hash.Hash never returns an error on Write
	_, _ = h.Write(payload)
	h.Sum(d[:0])

	return d
}

func (keccakHasher) Name() string { return "keccak256" }

type blake3Hasher struct{}

func (blake3Hasher) Sum(payload []byte) Digest { return blake3.Sum256(payload) }
func (blake3Hasher) Name() string              { return "blake3" }
