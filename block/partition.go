// Package block slices rasters into fixed-size blocks and maps block indices
// back onto the raster.
package block

import (
	"image"
	"image/draw"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Channels is the number of bytes per pixel of a block payload (RGBA)
const Channels = 4

// Block is a size x size RGBA region. Pixels outside the source raster are
// zero, so len(Pixels) is always Size*Size*Channels.
type Block struct {
	X      int
	Y      int
	Size   int
	Pixels []byte
}

// Rect returns the block rectangle in raster coordinates
func (b Block) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.Size, b.Y+b.Size)
}

// Image views the block payload as an image anchored at the block origin
func (b Block) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    b.Pixels,
		Stride: b.Size * Channels,
		Rect:   b.Rect(),
	}
}

// Partition slices img into blocks in row-major order: y steps by size in
// the outer loop and x in the inner loop. Coordinates are relative to the
// image bounds minimum.
func Partition(img image.Image, size int) ([]Block, error) {
	bounds := img.Bounds()

	grid, err := NewGrid(bounds.Dx(), bounds.Dy(), size)
	if err != nil {
		return nil, err
	}

	src := ToRGBA(img)
	blocks := make([]Block, grid.Len())
	perRow := grid.BlocksPerRow()

	g := new(errgroup.Group)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for row := 0; row < grid.Rows(); row++ {
		g.Go(func() error {
			for col := 0; col < perRow; col++ {
				blocks[row*perRow+col] = cut(src, col*size, row*size, size)
			}
			return nil
		})
	}

	// cut never fails
	_ = g.Wait()

	return blocks, nil
}

// cut copies the block at origin (x, y) out of src, whose bounds start at 0
func cut(src *image.RGBA, x, y, size int) Block {
	b := Block{X: x, Y: y, Size: size, Pixels: make([]byte, size*size*Channels)}

	width := min(size, src.Rect.Dx()-x)
	height := min(size, src.Rect.Dy()-y)
	rowBytes := width * Channels

	for by := 0; by < height; by++ {
		from := (y+by)*src.Stride + x*Channels
		to := by * size * Channels
		copy(b.Pixels[to:to+rowBytes], src.Pix[from:from+rowBytes])
	}

	return b
}

// ToRGBA returns a copy of img as RGBA with bounds starting at (0, 0)
func ToRGBA(img image.Image) *image.RGBA {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Rect, img, bounds.Min, draw.Src)

	return dst
}

// Paste writes the block back into dst, clipped to the bounds of dst
func Paste(dst *image.RGBA, b Block) {
	draw.Draw(dst, b.Rect(), b.Image(), b.Rect().Min, draw.Src)
}
