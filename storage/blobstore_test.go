package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ipfs/go-cid"
	"github.com/stretchr/testify/require"
)

func newTestBlobStore(t *testing.T, cacheSize int) (*BlobStore, KvStore) {
	t.Helper()

	db, err := NewMemLevelDB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	blobs, err := NewBlobStore(db, cacheSize)
	require.NoError(t, err)

	return blobs, db
}

func TestBlobStorePutGet(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	for _, cacheSize := range []int{0, 16} {
		blobs, _ := newTestBlobStore(t, cacheSize)

		data := []byte("encrypted block bytes")
		handle, err := blobs.Put(ctx, data)
		r.NoError(err)
		r.True(strings.HasPrefix(handle, "bafkrei"), handle)

		expect, err := HandleOf(data)
		r.NoError(err)
		r.Equal(expect, handle)

		again, err := blobs.Put(ctx, data)
		r.NoError(err)
		r.Equal(handle, again)

		for i := 0; i < 2; i++ {
			value, err := blobs.Get(ctx, handle)
			r.NoError(err)
			r.Equal(data, value)

			// callers own the returned bytes
			value[0] ^= 0xff
		}

		ok, err := blobs.Has(ctx, handle)
		r.NoError(err)
		r.True(ok)
	}
}

func TestBlobStoreErrors(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	blobs, db := newTestBlobStore(t, 0)

	missing, err := HandleOf([]byte("never stored"))
	r.NoError(err)
	_, err = blobs.Get(ctx, missing)
	r.True(errors.Is(err, ErrNotFound))

	ok, err := blobs.Has(ctx, missing)
	r.NoError(err)
	r.False(ok)

	_, err = blobs.Get(ctx, "not-a-cid")
	r.True(errors.Is(err, ErrInvalidHandle))

	handle, err := blobs.Put(ctx, []byte("original"))
	r.NoError(err)

	c, err := cid.Decode(handle)
	r.NoError(err)
	r.NoError(db.Put(blobKey(c), []byte("swapped")))

	_, err = blobs.Get(ctx, handle)
	r.True(errors.Is(err, ErrCorrupted))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = blobs.Put(cancelled, []byte("late"))
	r.True(errors.Is(err, context.Canceled))
	_, err = blobs.Get(cancelled, handle)
	r.True(errors.Is(err, context.Canceled))
}
