package crypto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHash(t *testing.T) {
	r := require.New(t)

	inputs := []struct {
		Hasher Hasher
		Input  string
		Expect string
	}{
		{SHA256, "", "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{SHA256, "abc", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{Keccak256, "", "c5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470"},
		{Keccak256, "abc", "4e03657aea45a94fc7d47ba826c8d667c0d1e6e33a64a036ec44f58fa12d6c45"},
		{BLAKE3, "", "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"},
	}

	for _, input := range inputs {
		digest := input.Hasher.Sum([]byte(input.Input))
		r.Equal(input.Expect, digest.Hex(), "%s(%q)", input.Hasher.Name(), input.Input)
		r.Equal(digest, input.Hasher.Sum([]byte(input.Input)))
	}
}

func TestHashNodes(t *testing.T) {
	r := require.New(t)

	left := SHA256.Sum([]byte("left"))
	right := SHA256.Sum([]byte("right"))

	expect := SHA256.Sum(append(left[:], right[:]...))
	r.Equal(expect, HashNodes(SHA256, left, right))
	r.NotEqual(HashNodes(SHA256, left, right), HashNodes(SHA256, right, left))

	// inputs must stay untouched
	r.Equal(SHA256.Sum([]byte("left")), left)
}

func TestHasherByName(t *testing.T) {
	r := require.New(t)

	for _, name := range []string{"sha256", "SHA256", "keccak256", "blake3"} {
		h, err := HasherByName(name)
		r.NoError(err)
		r.NotNil(h)
	}

	_, err := HasherByName("md5")
	r.True(errors.Is(err, ErrUnknownAlgorithm))
}

func TestParseDigest(t *testing.T) {
	r := require.New(t)

	digest := SHA256.Sum([]byte("abc"))
	parsed, err := ParseDigest(digest.Hex())
	r.NoError(err)
	r.Equal(digest, parsed)

	_, err = ParseDigest("zz")
	r.True(errors.Is(err, ErrInvalidDigest))

	_, err = ParseDigest("abcd")
	r.True(errors.Is(err, ErrInvalidDigest))
}
