package block

import (
	"image"
)

// ExtractMSB keeps the most significant bit of each color channel, scaled to
// 0 or 255, and makes every pixel opaque. The result is anchored at (0, 0).
func ExtractMSB(img image.Image) *image.RGBA {
	dst := ToRGBA(img)

	for i := 0; i < len(dst.Pix); i += Channels {
		dst.Pix[i] = msb(dst.Pix[i])
		dst.Pix[i+1] = msb(dst.Pix[i+1])
		dst.Pix[i+2] = msb(dst.Pix[i+2])
		dst.Pix[i+3] = 0xff
	}

	return dst
}

func msb(v uint8) uint8 {
	return (v >> 7) * 0xff
}
