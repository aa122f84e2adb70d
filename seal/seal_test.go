package seal

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/frankonly/blockseal/block"
	"github.com/frankonly/blockseal/crypto"
	"github.com/frankonly/blockseal/ledger"
	"github.com/frankonly/blockseal/merkle"
	"github.com/frankonly/blockseal/storage"
)

var (
	testKey   = []byte("0123456789abcdef")
	testNonce = []byte("fedcba9876543210")
)

func testService(t *testing.T, msb bool) (*Service, *ledger.Chain) {
	t.Helper()
	r := require.New(t)

	db, err := storage.NewMemLevelDB()
	r.NoError(err)
	t.Cleanup(func() { _ = db.Close() })

	blobs, err := storage.NewBlobStore(db, 8)
	r.NoError(err)

	chain, err := ledger.Open(db)
	r.NoError(err)

	cipher, err := crypto.NewAESCTR(testKey, testNonce)
	r.NoError(err)

	s, err := New(blobs, chain, Options{
		BlockSize: 4,
		Hasher:    crypto.SHA256,
		Cipher:    cipher,
		MSB:       msb,
		Workers:   2,
	}, nil)
	r.NoError(err)

	return s, chain
}

// testImage is 10x6, which is 3x2 blocks of size 4 with partial edge blocks
func testImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 10, 6))
	for y := 0; y < 6; y++ {
		for x := 0; x < 10; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 20), G: uint8(y * 40), B: uint8(x*y + 60), A: 0xff})
		}
	}

	return img
}

func paint(img *image.RGBA, rect image.Rectangle, c color.RGBA) *image.RGBA {
	out := block.ToRGBA(img)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			out.Set(x, y, c)
		}
	}

	return out
}

func TestNewRejectsOptions(t *testing.T) {
	r := require.New(t)

	cipher, err := crypto.NewAESCTR(testKey, testNonce)
	r.NoError(err)

	_, err = New(nil, nil, Options{BlockSize: 0, Hasher: crypto.SHA256, Cipher: cipher}, nil)
	r.True(errors.Is(err, ErrInvalidOptions))
	r.True(errors.Is(err, block.ErrInvalidBlockSize))

	_, err = New(nil, nil, Options{BlockSize: 4, Cipher: cipher}, nil)
	r.True(errors.Is(err, ErrInvalidOptions))

	_, err = New(nil, nil, Options{BlockSize: 4, Hasher: crypto.SHA256}, nil)
	r.True(errors.Is(err, ErrInvalidOptions))
}

func TestSealVerifyClean(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s, chain := testService(t, false)
	img := testImage()

	receipt, err := s.Seal(ctx, img)
	r.NoError(err)
	r.Equal(6, receipt.Leaves)
	r.Equal(block.Grid{Width: 10, Height: 6, BlockSize: 4}, receipt.Grid)
	r.Equal(2, chain.Len())

	anchored, err := chain.Block(receipt.BlockHash)
	r.NoError(err)
	r.Equal(receipt.Root, anchored.Header.MerkleRoot)
	r.Len(anchored.Transaction.Handles, 6)
	r.Equal("sha256", anchored.Transaction.Hasher)

	report, err := s.Verify(ctx, receipt.BlockHash, img)
	r.NoError(err)
	r.Len(report.Vector, 6)
	r.True(report.Vector.Clean())
	r.Empty(report.Regions)

	r.Equal(1.0, testutil.ToFloat64(s.metrics.SealedImages))
	r.Equal(6.0, testutil.ToFloat64(s.metrics.StoredBlocks))
	r.Equal(1.0, testutil.ToFloat64(s.metrics.Verifications))
	r.Zero(testutil.ToFloat64(s.metrics.TamperedBlocks))
}

func TestSealSaltsEveryImage(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s, chain := testService(t, false)

	first, err := s.Seal(ctx, testImage())
	r.NoError(err)
	second, err := s.Seal(ctx, testImage())
	r.NoError(err)

	// same pixels, different keys
	r.NotEqual(first.Root, second.Root)
	r.NotEqual(first.BlockHash, second.BlockHash)

	for _, receipt := range []*Receipt{first, second} {
		sealed, err := chain.Block(receipt.BlockHash)
		r.NoError(err)
		r.Len(sealed.Transaction.Salt, crypto.SaltSize)

		report, err := s.Verify(ctx, receipt.BlockHash, testImage())
		r.NoError(err)
		r.True(report.Vector.Clean())
	}
}

func TestSealNoSharedKeystream(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s, chain := testService(t, false)

	zeros := image.NewRGBA(image.Rect(0, 0, 4, 4))
	filled := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range filled.Pix {
		filled.Pix[i] = 0x5a
	}

	ciphertext := func(img image.Image) []byte {
		receipt, err := s.Seal(ctx, img)
		r.NoError(err)
		sealed, err := chain.Block(receipt.BlockHash)
		r.NoError(err)

		data, err := s.blobs.Get(ctx, sealed.Transaction.Handles[0])
		r.NoError(err)
		return data
	}

	a, b := ciphertext(zeros), ciphertext(filled)
	r.Len(a, 64)

	xored := make([]byte, len(a))
	for i := range a {
		xored[i] = a[i] ^ b[i]
	}
	r.NotEqual(bytes.Repeat([]byte{0x5a}, 64), xored)

	// sealing the same pixels twice does not repeat the ciphertext either
	r.NotEqual(a, ciphertext(zeros))
}

func TestVerifyLocalizesTampering(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s, _ := testService(t, false)
	img := testImage()

	receipt, err := s.Seal(ctx, img)
	r.NoError(err)

	// a single pixel inside the partial block at the bottom right
	tampered := paint(img, image.Rect(9, 5, 10, 6), color.RGBA{A: 0xff})

	report, err := s.Verify(ctx, receipt.BlockHash, tampered)
	r.NoError(err)
	r.Equal(merkle.TamperVector{0, 0, 0, 0, 0, 1}, report.Vector)
	r.Equal([]image.Rectangle{image.Rect(8, 4, 12, 8)}, report.Regions)
	r.Equal(1.0, testutil.ToFloat64(s.metrics.TamperedBlocks))

	// two blocks in the top row
	tampered = paint(img, image.Rect(0, 0, 5, 1), color.RGBA{R: 1, A: 0xff})

	report, err = s.Verify(ctx, receipt.BlockHash, tampered)
	r.NoError(err)
	r.Equal([]int{0, 1}, report.Vector.Tampered())
}

func TestRestore(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s, _ := testService(t, false)
	img := testImage()

	receipt, err := s.Seal(ctx, img)
	r.NoError(err)

	tampered := paint(img, image.Rect(2, 2, 7, 5), color.RGBA{G: 0xff, A: 0xff})

	report, err := s.Verify(ctx, receipt.BlockHash, tampered)
	r.NoError(err)
	r.Equal([]int{0, 1, 3, 4}, report.Vector.Tampered())

	restored, err := s.Restore(ctx, receipt.BlockHash, tampered, report.Vector)
	r.NoError(err)
	r.Equal(img.Bounds(), restored.Bounds())
	r.Equal(img.Pix, restored.Pix)

	report, err = s.Verify(ctx, receipt.BlockHash, restored)
	r.NoError(err)
	r.True(report.Vector.Clean())
	r.Equal(4.0, testutil.ToFloat64(s.metrics.RestoredBlocks))
}

func TestRestoreCleanVector(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s, _ := testService(t, false)
	img := testImage()

	receipt, err := s.Seal(ctx, img)
	r.NoError(err)

	restored, err := s.Restore(ctx, receipt.BlockHash, img, make(merkle.TamperVector, 6))
	r.NoError(err)
	r.Equal(img.Pix, restored.Pix)

	_, err = s.Restore(ctx, receipt.BlockHash, img, make(merkle.TamperVector, 5))
	r.True(errors.Is(err, merkle.ErrLeafCountMismatch))
}

func TestVerifyMSB(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s, _ := testService(t, true)
	img := testImage()

	receipt, err := s.Seal(ctx, img)
	r.NoError(err)

	// low bits only, the MSB plane is unchanged
	noise := block.ToRGBA(img)
	for i := range noise.Pix {
		noise.Pix[i] ^= 0x01
	}
	report, err := s.Verify(ctx, receipt.BlockHash, noise)
	r.NoError(err)
	r.True(report.Vector.Clean())

	flipped := paint(img, image.Rect(4, 0, 5, 1), color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff})
	report, err = s.Verify(ctx, receipt.BlockHash, flipped)
	r.NoError(err)
	r.Equal([]int{1}, report.Vector.Tampered())

	restored, err := s.Restore(ctx, receipt.BlockHash, flipped, report.Vector)
	r.NoError(err)
	r.Equal(block.ExtractMSB(img).Pix, restored.Pix)
}

func TestVerifyDimensionMismatch(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s, _ := testService(t, false)

	receipt, err := s.Seal(ctx, testImage())
	r.NoError(err)

	_, err = s.Verify(ctx, receipt.BlockHash, image.NewRGBA(image.Rect(0, 0, 10, 7)))
	r.True(errors.Is(err, ErrDimensionMismatch))

	_, err = s.Restore(ctx, receipt.BlockHash, image.NewRGBA(image.Rect(0, 0, 9, 6)), make(merkle.TamperVector, 6))
	r.True(errors.Is(err, ErrDimensionMismatch))
}

func TestVerifyUnknownBlock(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s, chain := testService(t, false)

	_, err := s.Verify(ctx, "missing", testImage())
	r.True(errors.Is(err, ledger.ErrNotFound))

	_, err = s.Verify(ctx, chain.Last().Hash(), testImage())
	r.True(errors.Is(err, ErrNotSealed))
}

func TestVerifyRootMismatch(t *testing.T) {
	r := require.New(t)
	ctx := context.Background()

	s, chain := testService(t, false)

	receipt, err := s.Seal(ctx, testImage())
	r.NoError(err)
	sealed, err := chain.Block(receipt.BlockHash)
	r.NoError(err)

	forged, err := chain.AddBlock("forged", sealed.Transaction)
	r.NoError(err)

	_, err = s.Verify(ctx, forged.Hash(), testImage())
	r.True(errors.Is(err, ErrRootMismatch))
}

func TestVerifyCancelled(t *testing.T) {
	r := require.New(t)

	s, _ := testService(t, false)

	receipt, err := s.Seal(context.Background(), testImage())
	r.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Verify(ctx, receipt.BlockHash, testImage())
	r.True(errors.Is(err, context.Canceled))

	_, err = s.Seal(ctx, testImage())
	r.True(errors.Is(err, context.Canceled))
}

func TestRegions(t *testing.T) {
	r := require.New(t)

	grid, err := block.NewGrid(4, 4, 2)
	r.NoError(err)

	regions, err := Regions(grid, merkle.TamperVector{1, 0, 0, 1})
	r.NoError(err)
	r.Equal([]image.Rectangle{image.Rect(0, 0, 2, 2), image.Rect(2, 2, 4, 4)}, regions)

	_, err = Regions(grid, merkle.TamperVector{1})
	r.True(errors.Is(err, merkle.ErrLeafCountMismatch))

	_, err = Regions(block.Grid{}, merkle.TamperVector{})
	r.True(errors.Is(err, block.ErrInvalidBlockSize))
}
