package app

import (
	"fmt"
	"image/color"
	"strings"
	"unicode/utf8"

	"multiprobe/hal"
	"multiprobe/probeos/kernel"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
)

const (
	panicFontHeight = 10
	panicFontOffset = 7
)

// installPanicHandler logs a task panic and paints it over the display.
// The step function stops the system afterwards.
func installPanicHandler(h hal.HAL) {
	kernel.SetPanicHandler(func(info kernel.PanicInfo) {
		lines := panicLines(info)
		if l := h.Logger(); l != nil {
			for _, line := range lines {
				l.WriteLineString(line)
			}
		}
		if led := h.LED(); led != nil {
			led.Low()
		}

		disp := h.Display()
		if disp == nil {
			return
		}
		fb := disp.Framebuffer()
		if fb == nil || fb.Format() != hal.PixelFormatRGB565 || fb.Buffer() == nil {
			return
		}
		drawPanic(panicDisplay{fb: fb}, lines)
		_ = fb.Present()
	})
}

func panicLines(info kernel.PanicInfo) []string {
	lines := []string{
		"multiprobe panic",
		fmt.Sprintf("task: %d", info.TaskID),
		fmt.Sprintf("panic: %v", info.Value),
	}
	if len(info.Stack) == 0 {
		return append(lines, "stack: unavailable")
	}
	lines = append(lines, "stack:")
	for _, line := range strings.Split(string(info.Stack), "\n") {
		if line != "" {
			lines = append(lines, strings.ReplaceAll(line, "\t", "  "))
		}
	}
	return lines
}

func drawPanic(d panicDisplay, lines []string) {
	w, h := d.Size()
	d.fill(0, 0, w, h, color.RGBA{R: 0x40, A: 0xff})
	d.fill(0, 0, w, panicFontHeight+2, color.RGBA{R: 0xc0, G: 0x20, B: 0x20, A: 0xff})

	font := &proggy.TinySZ8pt7b
	_, cw := tinyfont.LineWidth(font, "0")
	cols := int16(1)
	if cw > 0 {
		cols = w / int16(cw)
	}

	fg := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	y := int16(1)
	for _, line := range lines {
		for line != "" {
			if y+panicFontHeight > h {
				return
			}
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(d, font, 1, y+panicFontOffset, chunk, fg)
			y += panicFontHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
}

type panicDisplay struct {
	fb hal.Framebuffer
}

func (d panicDisplay) Size() (x, y int16) {
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d panicDisplay) SetPixel(x, y int16, c color.RGBA) {
	hal.PutPixel(d.fb, int(x), int(y), hal.RGB565(c))
}

func (d panicDisplay) Display() error { return nil }

func (d panicDisplay) fill(x0, y0, w, h int16, c color.RGBA) {
	pixel := hal.RGB565(c)
	for y := int(y0); y < int(y0+h); y++ {
		for x := int(x0); x < int(x0+w); x++ {
			hal.PutPixel(d.fb, x, y, pixel)
		}
	}
}

// takeRunes splits s after at most n runes.
func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	i := 0
	for count := int16(0); i < len(s) && count < n; count++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i], s[i:]
}
