package hal

import "image/color"

// RGB565 packs an 8-bit-per-channel colour.
func RGB565(c color.RGBA) uint16 {
	return rgb565(c.R, c.G, c.B)
}

func rgb565(r, g, b uint8) uint16 {
	return uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
}

// rgb888From565 expands a packed pixel, replicating the high bits so that
// full scale maps to 0xFF.
func rgb888From565(p uint16) (r, g, b uint8) {
	r5 := uint8(p >> 11 & 0x1F)
	g6 := uint8(p >> 5 & 0x3F)
	b5 := uint8(p & 0x1F)
	return r5<<3 | r5>>2, g6<<2 | g6>>4, b5<<3 | b5>>2
}

// PutPixel stores a packed pixel in an RGB565 framebuffer. It reports
// false when (x, y) is outside the buffer.
func PutPixel(fb Framebuffer, x, y int, pixel uint16) bool {
	if x < 0 || y < 0 || x >= fb.Width() || y >= fb.Height() {
		return false
	}
	buf := fb.Buffer()
	off := y*fb.StrideBytes() + x*2
	if off+1 >= len(buf) {
		return false
	}
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
	return true
}

func fillRGB565(buf []byte, pixel uint16) {
	lo, hi := byte(pixel), byte(pixel>>8)
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i] = lo
		buf[i+1] = hi
	}
}

// swapRGB565 copies whole pixels from src into dst with their bytes
// swapped and returns the bytes written.
func swapRGB565(dst, src []byte) int {
	n := min(len(dst), len(src)) &^ 1
	for i := 0; i < n; i += 2 {
		dst[i], dst[i+1] = src[i+1], src[i]
	}
	return n
}
