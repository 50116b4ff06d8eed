package analyzer

import (
	"image/color"

	"multiprobe/hal"

	"tinygo.org/x/drivers"
)

// fbDisplay draws into an RGB565 framebuffer through the drivers.Displayer
// interface. A non-zero region confines it to a sub-rectangle whose origin
// becomes (0, 0).
type fbDisplay struct {
	fb hal.Framebuffer

	x0, y0 int16
	w, h   int16
}

func newFBDisplay(fb hal.Framebuffer) *fbDisplay {
	return &fbDisplay{fb: fb, w: int16(fb.Width()), h: int16(fb.Height())}
}

// region returns a display clipped to the given rectangle.
func (d *fbDisplay) region(x, y, w, h int16) *fbDisplay {
	return &fbDisplay{fb: d.fb, x0: d.x0 + x, y0: d.y0 + y, w: w, h: h}
}

func (d *fbDisplay) Size() (x, y int16) { return d.w, d.h }

func (d *fbDisplay) SetPixel(x, y int16, c color.RGBA) {
	if x < 0 || y < 0 || x >= d.w || y >= d.h {
		return
	}
	hal.PutPixel(d.fb, int(d.x0+x), int(d.y0+y), hal.RGB565(c))
}

func (d *fbDisplay) Display() error { return d.fb.Present() }

func (d *fbDisplay) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	x0, y0 := clamp16(x, 0, d.w), clamp16(y, 0, d.h)
	x1, y1 := clamp16(x+width, 0, d.w), clamp16(y+height, 0, d.h)
	pixel := hal.RGB565(c)
	for py := y0; py < y1; py++ {
		for px := x0; px < x1; px++ {
			hal.PutPixel(d.fb, int(d.x0+px), int(d.y0+py), pixel)
		}
	}
	return nil
}

// SetScroll is a no-op; the console scrolls in software.
func (d *fbDisplay) SetScroll(line int16) {}

func (d *fbDisplay) SetRotation(rotation drivers.Rotation) error {
	if rotation != drivers.Rotation0 {
		return hal.ErrNotImplemented
	}
	return nil
}

func (d *fbDisplay) vline(x, y0, y1 int16, c color.RGBA) {
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	d.FillRectangle(x, y0, 1, y1-y0+1, c)
}

func clamp16(v, lo, hi int16) int16 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
