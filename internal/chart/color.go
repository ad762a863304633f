package chart

import (
	"hash/fnv"
	"image/color"
)

// SeriesColor deterministically derives an RGB color from a series name
// by hashing it with FNV-1a and slicing the result into three 2-bit
// color channels, so the same module or series always renders in the
// same color across charts without a color table to maintain.
func SeriesColor(name string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	sum := h.Sum32()

	return color.RGBA{
		R: uint8((sum & 0x30) << 2),
		G: uint8((sum & 0x0c) << 4),
		B: uint8((sum & 0x03) << 6),
		A: 0xff,
	}
}
