package api

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"

	"github.com/frankonly/blockseal/merkle"
)

// DefaultMaxPixels bounds the raster an incoming image may declare
const DefaultMaxPixels = 1 << 26

var (
	ErrInvalidImage  = errors.New("invalid image")
	ErrImageTooLarge = errors.New("image too large")
	ErrInvalidVector = errors.New("invalid tamper vector")
)

// decodeImage checks the declared raster size against maxPixels before
// anything is allocated for the pixels
func decodeImage(data []byte, maxPixels int) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidImage, err.Error())
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidImage, cfg.Width, cfg.Height)
	}
	if int64(cfg.Width)*int64(cfg.Height) > int64(maxPixels) {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidImage, err.Error())
	}

	return img, nil
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

func encodeVector(v merkle.TamperVector) []byte {
	out := make([]byte, len(v))
	for i, flag := range v {
		out[i] = byte(flag)
	}

	return out
}

func decodeVector(b []byte) (merkle.TamperVector, error) {
	v := make(merkle.TamperVector, len(b))
	for i, flag := range b {
		if merkle.Flag(flag) != merkle.Match && merkle.Flag(flag) != merkle.Mismatch {
			return nil, fmt.Errorf("%w: flag %d at %d", ErrInvalidVector, flag, i)
		}
		v[i] = merkle.Flag(flag)
	}

	return v, nil
}
