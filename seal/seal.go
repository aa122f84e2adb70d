// Package seal ties the block engine to its collaborators. Sealing encrypts
// every block of an image into the blob store and anchors the merkle root of
// the block handles in the ledger. Verifying rebuilds both trees and diffs
// them, restoring copies the sealed blocks back over the tampered ones.
package seal

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/frankonly/blockseal/block"
	"github.com/frankonly/blockseal/crypto"
	"github.com/frankonly/blockseal/ledger"
	"github.com/frankonly/blockseal/merkle"
	"github.com/frankonly/blockseal/storage"
)

var (
	ErrRootMismatch      = errors.New("anchored root does not match the sealed handles")
	ErrDimensionMismatch = errors.New("image dimensions differ from the sealed image")
	ErrNotSealed         = errors.New("block anchors no image")
	ErrInvalidOptions    = errors.New("invalid options")
)

type Options struct {
	BlockSize int
	Hasher    crypto.Hasher
	Cipher    crypto.BlockCipher
	// MSB seals the most significant bit plane instead of the full pixels
	MSB bool
	// Workers bounds the blocks processed at once, GOMAXPROCS if not positive
	Workers int
}

// Receipt describes a sealed image
type Receipt struct {
	BlockHash string
	Root      string
	Leaves    int
	Grid      block.Grid
}

// Report is the outcome of a verification
type Report struct {
	BlockHash string
	Vector    merkle.TamperVector
	// Regions holds the rectangle of every tampered block, in leaf order
	Regions []image.Rectangle
	Grid    block.Grid
}

type Service struct {
	blobs   *storage.BlobStore
	chain   *ledger.Chain
	opts    Options
	logger  *zap.SugaredLogger
	metrics metrics
}

func New(blobs *storage.BlobStore, chain *ledger.Chain, opts Options, logger *zap.SugaredLogger) (*Service, error) {
	switch {
	case opts.BlockSize <= 0:
		return nil, fmt.Errorf("%w: %w", ErrInvalidOptions, block.ErrInvalidBlockSize)
	case opts.Hasher == nil:
		return nil, fmt.Errorf("%w: no hasher", ErrInvalidOptions)
	case opts.Cipher == nil:
		return nil, fmt.Errorf("%w: no cipher", ErrInvalidOptions)
	}

	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Service{
		blobs:   blobs,
		chain:   chain,
		opts:    opts,
		logger:  logger,
		metrics: newMetrics(),
	}, nil
}

// Seal stores the encrypted blocks of img and anchors their merkle root in a
// new ledger block
func (s *Service) Seal(ctx context.Context, img image.Image) (*Receipt, error) {
	prepared := s.prepare(img)

	blocks, err := block.Partition(prepared, s.opts.BlockSize)
	if err != nil {
		return nil, err
	}

	salt, err := crypto.NewSalt()
	if err != nil {
		return nil, err
	}

	handles := make([]string, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, b := range blocks {
		g.Go(func() error {
			ciphertext, err := s.opts.Cipher.Encrypt(salt, i, b.Pixels)
			if err != nil {
				return err
			}

			handle, err := s.blobs.Put(gctx, ciphertext)
			if err != nil {
				return fmt.Errorf("store %s: %w", block.HandleName(i), err)
			}

			handles[i] = handle
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	s.metrics.StoredBlocks.Add(float64(len(blocks)))

	tree, err := merkle.FromStrings(s.opts.Hasher, handles)
	if err != nil {
		return nil, err
	}

	bounds := prepared.Bounds()
	grid, err := block.NewGrid(bounds.Dx(), bounds.Dy(), s.opts.BlockSize)
	if err != nil {
		return nil, err
	}

	anchored, err := s.chain.AddBlock(tree.RootHex(), ledger.Transaction{
		Handles:   handles,
		Width:     uint32(grid.Width),
		Height:    uint32(grid.Height),
		BlockSize: uint32(grid.BlockSize),
		Hasher:    s.opts.Hasher.Name(),
		Salt:      salt,
	})
	if err != nil {
		return nil, err
	}
	s.metrics.SealedImages.Inc()

	s.logger.Infow("image sealed",
		"block", anchored.Hash(),
		"root", tree.RootHex(),
		"leaves", tree.LeafCount(),
		"width", grid.Width,
		"height", grid.Height,
	)

	return &Receipt{
		BlockHash: anchored.Hash(),
		Root:      tree.RootHex(),
		Leaves:    tree.LeafCount(),
		Grid:      grid,
	}, nil
}

// Verify compares img against the image sealed in the ledger block blockHash
// and reports every tampered block
func (s *Service) Verify(ctx context.Context, blockHash string, img image.Image) (*Report, error) {
	start := time.Now()
	defer func() { s.metrics.VerifyTime.Observe(time.Since(start).Seconds()) }()

	sealed, grid, err := s.sealed(blockHash)
	if err != nil {
		return nil, err
	}

	hasher, err := crypto.HasherByName(sealed.Transaction.Hasher)
	if err != nil {
		return nil, err
	}

	reference, err := merkle.FromStrings(hasher, sealed.Transaction.Handles)
	if err != nil {
		return nil, err
	}
	if reference.RootHex() != sealed.Header.MerkleRoot {
		return nil, fmt.Errorf("%w: %s != %s", ErrRootMismatch, reference.RootHex(), sealed.Header.MerkleRoot)
	}

	if err := checkDimensions(grid, img); err != nil {
		return nil, err
	}

	handles, err := s.handles(ctx, s.prepare(img), grid.BlockSize, sealed.Transaction.Salt)
	if err != nil {
		return nil, err
	}

	suspect, err := merkle.FromStrings(hasher, handles)
	if err != nil {
		return nil, err
	}

	vector, err := merkle.Diff(reference, suspect)
	if err != nil {
		return nil, err
	}

	regions, err := Regions(grid, vector)
	if err != nil {
		return nil, err
	}

	s.metrics.Verifications.Inc()
	s.metrics.TamperedBlocks.Add(float64(len(regions)))
	s.logger.Infow("image verified", "block", blockHash, "leaves", len(vector), "tampered", len(regions))

	return &Report{BlockHash: blockHash, Vector: vector, Regions: regions, Grid: grid}, nil
}

// Restore returns a copy of the prepared img in which every block flagged in
// vector is replaced by its sealed content
func (s *Service) Restore(ctx context.Context, blockHash string, img image.Image, vector merkle.TamperVector) (*image.RGBA, error) {
	sealed, grid, err := s.sealed(blockHash)
	if err != nil {
		return nil, err
	}

	handles := sealed.Transaction.Handles
	if len(vector) != len(handles) {
		return nil, fmt.Errorf("%w: %d flags for %d blocks", merkle.ErrLeafCountMismatch, len(vector), len(handles))
	}
	if err := checkDimensions(grid, img); err != nil {
		return nil, err
	}

	tampered := vector.Tampered()
	restored := make([]block.Block, len(tampered))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for k, i := range tampered {
		g.Go(func() error {
			ciphertext, err := s.blobs.Get(gctx, handles[i])
			if err != nil {
				return err
			}

			pixels, err := s.opts.Cipher.Decrypt(sealed.Transaction.Salt, i, ciphertext)
			if err != nil {
				return err
			}
			if len(pixels) != grid.BlockSize*grid.BlockSize*block.Channels {
				return fmt.Errorf("%w: %s holds %d bytes", storage.ErrCorrupted, block.HandleName(i), len(pixels))
			}

			x, y, err := grid.Coords(i)
			if err != nil {
				return err
			}

			restored[k] = block.Block{X: x, Y: y, Size: grid.BlockSize, Pixels: pixels}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	dst := s.prepare(img)
	for _, b := range restored {
		block.Paste(dst, b)
	}
	s.metrics.RestoredBlocks.Add(float64(len(restored)))

	s.logger.Infow("image restored", "block", blockHash, "restored", len(restored))

	return dst, nil
}

// Regions maps every tampered position of vector to its block rectangle
func Regions(grid block.Grid, vector merkle.TamperVector) ([]image.Rectangle, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	if len(vector) != grid.Len() {
		return nil, fmt.Errorf("%w: %d flags for %d blocks", merkle.ErrLeafCountMismatch, len(vector), grid.Len())
	}

	regions := make([]image.Rectangle, 0, vector.Count())
	for _, i := range vector.Tampered() {
		rect, err := grid.Rect(i)
		if err != nil {
			return nil, err
		}
		regions = append(regions, rect)
	}

	return regions, nil
}

// Block returns the ledger block with the given hash
func (s *Service) Block(blockHash string) (ledger.Block, error) {
	return s.chain.Block(blockHash)
}

// prepare returns the plane that gets sealed, always a fresh copy
func (s *Service) prepare(img image.Image) *image.RGBA {
	if s.opts.MSB {
		return block.ExtractMSB(img)
	}

	return block.ToRGBA(img)
}

// handles computes the block handles of img without storing anything
func (s *Service) handles(ctx context.Context, img image.Image, size int, salt []byte) ([]string, error) {
	blocks, err := block.Partition(img, size)
	if err != nil {
		return nil, err
	}

	handles := make([]string, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)

	for i, b := range blocks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			ciphertext, err := s.opts.Cipher.Encrypt(salt, i, b.Pixels)
			if err != nil {
				return err
			}

			handles[i], err = storage.HandleOf(ciphertext)
			return err
		})
	}

	return handles, g.Wait()
}

func (s *Service) sealed(blockHash string) (ledger.Block, block.Grid, error) {
	sealed, err := s.chain.Block(blockHash)
	if err != nil {
		return ledger.Block{}, block.Grid{}, err
	}

	tx := sealed.Transaction
	if len(tx.Handles) == 0 {
		return ledger.Block{}, block.Grid{}, fmt.Errorf("%w: %s", ErrNotSealed, blockHash)
	}

	grid, err := block.NewGrid(int(tx.Width), int(tx.Height), int(tx.BlockSize))
	if err != nil {
		return ledger.Block{}, block.Grid{}, err
	}
	if grid.Len() != len(tx.Handles) {
		return ledger.Block{}, block.Grid{}, fmt.Errorf("%w: %d handles for %d blocks", ErrRootMismatch, len(tx.Handles), grid.Len())
	}

	return sealed, grid, nil
}

func checkDimensions(grid block.Grid, img image.Image) error {
	got, want := img.Bounds().Size(), grid.Bounds().Size()
	if got != want {
		return fmt.Errorf("%w: %dx%d, sealed %dx%d", ErrDimensionMismatch, got.X, got.Y, want.X, want.Y)
	}

	return nil
}
