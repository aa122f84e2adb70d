package block

import (
	"errors"
	"fmt"
	"image"
)

var (
	ErrInvalidBlockSize  = errors.New("invalid block size")
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	ErrOutOfRange        = errors.New("out of range")
)

// Grid maps leaf indices to block origins of a raster and back. The order is
// the row-major order Partition produces blocks in.
type Grid struct {
	Width     int
	Height    int
	BlockSize int
}

// NewGrid validates the raster geometry
func NewGrid(width, height, blockSize int) (Grid, error) {
	g := Grid{Width: width, Height: height, BlockSize: blockSize}
	if err := g.Validate(); err != nil {
		return Grid{}, err
	}

	return g, nil
}

// Validate checks the geometry of a grid that was not built by NewGrid
func (g Grid) Validate() error {
	if g.BlockSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidBlockSize, g.BlockSize)
	}
	if g.Width <= 0 || g.Height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, g.Width, g.Height)
	}

	return nil
}

// BlocksPerRow returns ceil(width / blockSize), 0 for an invalid grid
func (g Grid) BlocksPerRow() int {
	if g.Validate() != nil {
		return 0
	}

	return ceilDiv(g.Width, g.BlockSize)
}

// Rows returns ceil(height / blockSize), 0 for an invalid grid
func (g Grid) Rows() int {
	if g.Validate() != nil {
		return 0
	}

	return ceilDiv(g.Height, g.BlockSize)
}

// Len returns the number of blocks, which is the number of merkle leaves
func (g Grid) Len() int {
	return g.BlocksPerRow() * g.Rows()
}

// Coords returns the origin of the i-th block
func (g Grid) Coords(i int) (x, y int, err error) {
	if err := g.Validate(); err != nil {
		return 0, 0, err
	}
	if i < 0 || i >= g.Len() {
		return 0, 0, fmt.Errorf("%w: index %d of %d", ErrOutOfRange, i, g.Len())
	}

	perRow := g.BlocksPerRow()
	return (i % perRow) * g.BlockSize, (i / perRow) * g.BlockSize, nil
}

// Index is the inverse of Coords. The origin must be block aligned.
func (g Grid) Index(x, y int) (int, error) {
	if err := g.Validate(); err != nil {
		return 0, err
	}
	if x < 0 || y < 0 || x%g.BlockSize != 0 || y%g.BlockSize != 0 {
		return 0, fmt.Errorf("%w: unaligned origin (%d, %d)", ErrOutOfRange, x, y)
	}

	col, row := x/g.BlockSize, y/g.BlockSize
	if col >= g.BlocksPerRow() || row >= g.Rows() {
		return 0, fmt.Errorf("%w: origin (%d, %d)", ErrOutOfRange, x, y)
	}

	return row*g.BlocksPerRow() + col, nil
}

// Rect returns the full block rectangle of the i-th block. It may extend past
// the raster at the right and bottom edges.
func (g Grid) Rect(i int) (image.Rectangle, error) {
	x, y, err := g.Coords(i)
	if err != nil {
		return image.Rectangle{}, err
	}

	return image.Rect(x, y, x+g.BlockSize, y+g.BlockSize), nil
}

// Bounds returns the raster rectangle
func (g Grid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Width, g.Height)
}

// HandleName names the encrypted file of the i-th block
func HandleName(i int) string {
	return fmt.Sprintf("block_%d.enc", i+1)
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
