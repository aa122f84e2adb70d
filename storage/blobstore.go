package storage

import (
	"context"
	"fmt"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

const blobPrefix = "c"

// handlePrefix produces IPFS compatible CIDv1 handles of raw content
var handlePrefix = cid.Prefix{
	Version:  1,
	Codec:    cid.Raw,
	MhType:   multihash.SHA2_256,
	MhLength: -1,
}

// BlobStore is a content-addressed store: the handle of a blob is derived
// from its bytes, so putting the same bytes twice yields the same handle.
type BlobStore struct {
	db    KvStore
	cache *lru.Cache[string, []byte]
}

// NewBlobStore stores blobs into db. A positive cacheSize keeps that many
// recently read blobs in memory.
func NewBlobStore(db KvStore, cacheSize int) (*BlobStore, error) {
	s := &BlobStore{db: db}

	if cacheSize > 0 {
		cache, err := lru.New[string, []byte](cacheSize)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}

	return s, nil
}

// HandleOf computes the handle data would be stored under, without storing it
func HandleOf(data []byte) (string, error) {
	c, err := handlePrefix.Sum(data)
	if err != nil {
		return "", err
	}

	return c.String(), nil
}

// Put stores data and returns its handle
func (s *BlobStore) Put(ctx context.Context, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c, err := handlePrefix.Sum(data)
	if err != nil {
		return "", err
	}

	key := blobKey(c)
	exists, err := s.db.Has(key)
	if err != nil {
		return "", err
	}

	if !exists {
		if err := s.db.Put(key, data); err != nil {
			return "", err
		}
	}

	return c.String(), nil
}

// Get returns the blob stored under handle. The content is checked against
// the handle before it is returned.
func (s *BlobStore) Get(ctx context.Context, handle string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := parseHandle(handle)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, ok := s.cache.Get(c.KeyString()); ok {
			return slices.Clone(data), nil
		}
	}

	data, err := s.db.Get(blobKey(c))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, handle)
	}

	sum, err := c.Prefix().Sum(data)
	if err != nil {
		return nil, err
	}
	if !sum.Equals(c) {
		return nil, fmt.Errorf("%w: %s", ErrCorrupted, handle)
	}

	if s.cache != nil {
		s.cache.Add(c.KeyString(), slices.Clone(data))
	}

	return data, nil
}

// Has reports whether a blob is stored under handle
func (s *BlobStore) Has(ctx context.Context, handle string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	c, err := parseHandle(handle)
	if err != nil {
		return false, err
	}

	return s.db.Has(blobKey(c))
}

func parseHandle(handle string) (cid.Cid, error) {
	c, err := cid.Decode(handle)
	if err != nil {
		return cid.Undef, fmt.Errorf("%w: %s", ErrInvalidHandle, err.Error())
	}

	return c, nil
}

func blobKey(c cid.Cid) []byte {
	return append([]byte(blobPrefix), c.Bytes()...)
}
