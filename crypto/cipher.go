package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	sha256 "github.com/minio/sha256-simd"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
)

// SaltSize is the length of the per-image salt
const SaltSize = 16

var (
	ErrInvalidKey   = errors.New("invalid key")
	ErrInvalidNonce = errors.New("invalid nonce")
	ErrInvalidSalt  = errors.New("invalid salt")
	ErrInvalidIndex = errors.New("invalid block index")
)

// kdfInfo binds derived image keys to this use
var kdfInfo = []byte("blockseal image key")

// BlockCipher encrypts the blocks of an image. Every image gets its own key,
// derived from the configured key and a random salt, so no two images share
// a keystream. Within an image the keystream depends on the leaf index, so
// equal blocks at equal positions of the same salt encrypt to equal bytes.
type BlockCipher interface {
	Encrypt(salt []byte, index int, plaintext []byte) ([]byte, error)
	Decrypt(salt []byte, index int, ciphertext []byte) ([]byte, error)
	Name() string
}

// NewSalt returns a random salt for a new image
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	return salt, nil
}

// CipherByName builds a block cipher from its configuration name
func CipherByName(name string, key, nonce []byte) (BlockCipher, error) {
	switch strings.ToLower(name) {
	case "aes-ctr", "aes":
		return NewAESCTR(key, nonce)
	case "chacha20":
		return NewChaCha20(key, nonce)
	default:
		return nil, fmt.Errorf("%w: cipher %q", ErrUnknownAlgorithm, name)
	}
}

type aesCTR struct {
	key   []byte
	nonce []byte
}

// NewAESCTR returns AES in CTR mode. A 16 byte key selects AES-128.
func NewAESCTR(key, nonce []byte) (BlockCipher, error) {
	if _, err := aes.NewCipher(key); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidKey, err.Error())
	}
	if len(nonce) != aes.BlockSize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidNonce, aes.BlockSize, len(nonce))
	}

	return &aesCTR{
		key:   append([]byte(nil), key...),
		nonce: append([]byte(nil), nonce...),
	}, nil
}

func (c *aesCTR) Encrypt(salt []byte, index int, plaintext []byte) ([]byte, error) {
	key, err := imageKey(c.key, salt)
	if err != nil {
		return nil, err
	}

	iv, err := blockNonce(c.nonce, index)
	if err != nil {
		return nil, err
	}

	return ctrKeyStream(key, iv, plaintext)
}

// Decrypt is the same keystream application as Encrypt
func (c *aesCTR) Decrypt(salt []byte, index int, ciphertext []byte) ([]byte, error) {
	return c.Encrypt(salt, index, ciphertext)
}

func (c *aesCTR) Name() string { return "aes-ctr" }

func ctrKeyStream(key, iv, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}

type chachaCipher struct {
	key   []byte
	nonce []byte
}

// NewChaCha20 returns an unauthenticated ChaCha20 stream cipher
func NewChaCha20(key, nonce []byte) (BlockCipher, error) {
	if len(key) != chacha20.KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, chacha20.KeySize, len(key))
	}
	if len(nonce) != chacha20.NonceSize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidNonce, chacha20.NonceSize, len(nonce))
	}

	return &chachaCipher{
		key:   append([]byte(nil), key...),
		nonce: append([]byte(nil), nonce...),
	}, nil
}

func (c *chachaCipher) Encrypt(salt []byte, index int, plaintext []byte) ([]byte, error) {
	key, err := imageKey(c.key, salt)
	if err != nil {
		return nil, err
	}

	nonce, err := blockNonce(c.nonce, index)
	if err != nil {
		return nil, err
	}

	stream, err := chacha20.NewUnauthenticatedCipher(key, nonce)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(plaintext))
	stream.XORKeyStream(out, plaintext)
	return out, nil
}

func (c *chachaCipher) Decrypt(salt []byte, index int, ciphertext []byte) ([]byte, error) {
	return c.Encrypt(salt, index, ciphertext)
}

func (c *chachaCipher) Name() string { return "chacha20" }

// imageKey derives the key of the image identified by salt with HKDF-SHA256.
// The derived key has the length of the configured one.
func imageKey(key, salt []byte) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidSalt, SaltSize, len(salt))
	}

	derived := make([]byte, len(key))
	if _, err := io.ReadFull(hkdf.New(sha256.New, key, salt, kdfInfo), derived); err != nil {
		return nil, err
	}

	return derived, nil
}

// blockNonce adds the leaf index into the first 8 bytes of the base nonce.
// The low bytes stay free for the CTR block counter.
func blockNonce(base []byte, index int) ([]byte, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidIndex, index)
	}

	nonce := append([]byte(nil), base...)
	head := nonce[:8]
	binary.BigEndian.PutUint64(head, binary.BigEndian.Uint64(head)+uint64(index))

	return nonce, nil
}
