// Package decimate rasterizes a captured sample window into one TracePoint
// per channel per display column.
package decimate

import (
	"encoding/binary"

	"multiprobe/probeos/acq/capture"
)

// TracePoint is the rendering class of one channel in one pixel column.
type TracePoint uint8

const (
	Blank TracePoint = iota
	Low
	High
	Edge
)

func (p TracePoint) String() string {
	switch p {
	case Blank:
		return "blank"
	case Low:
		return "low"
	case High:
		return "high"
	case Edge:
		return "edge"
	default:
		return "unknown"
	}
}

// Channels is the number of traces produced per pass.
const Channels = 3

// Trace holds one row of points per channel.
type Trace [Channels][]TracePoint

// Channel is the decimation view of a probe channel.
type Channel struct {
	Enabled bool
	Mask    uint32
}

// Options tune a Rasterizer.
type Options struct {
	// Smooth turns a flat level change between two adjacent columns into
	// an Edge so the renderer draws the transition.
	Smooth bool
}

// DefaultOptions enables boundary smoothing.
func DefaultOptions() Options { return Options{Smooth: true} }

// Rasterizer reuses its trace storage across passes.
type Rasterizer struct {
	width int
	opts  Options
	trace Trace
}

func NewRasterizer(width int, opts Options) *Rasterizer {
	if width < 0 {
		width = 0
	}
	r := &Rasterizer{width: width, opts: opts}
	for i := range r.trace {
		r.trace[i] = make([]TracePoint, width)
	}
	return r
}

func (r *Rasterizer) Width() int { return r.width }

// Rasterize replaces the whole trace from w. Column p covers the samples
// [p*n/W, (p+1)*n/W) of the window, so every sample lands in exactly one
// column. A column with no samples is Blank.
func (r *Rasterizer) Rasterize(w capture.Window, chans [Channels]Channel) Trace {
	n := w.Len()
	for p := 0; p < r.width; p++ {
		lo := p * n / r.width
		hi := (p + 1) * n / r.width
		if hi <= lo {
			for c := range r.trace {
				r.trace[c][p] = Blank
			}
			continue
		}

		anded, ored := accumulate(w, lo, hi)
		for c, ch := range chans {
			if !ch.Enabled {
				r.trace[c][p] = Blank
				continue
			}
			pt := classify(anded, ored, ch.Mask)
			if r.opts.Smooth && p > 0 {
				pt = smooth(r.trace[c][p-1], pt)
			}
			r.trace[c][p] = pt
		}
	}
	return r.trace
}

// Rasterize is a one-shot helper around Rasterizer.
func Rasterize(w capture.Window, chans [Channels]Channel, width int, opts Options) Trace {
	return NewRasterizer(width, opts).Rasterize(w, chans)
}

func classify(anded, ored uint8, mask uint32) TracePoint {
	high := uint32(ored)&mask != 0
	low := uint32(anded)&mask == 0
	switch {
	case high && low:
		return Edge
	case high:
		return High
	default:
		return Low
	}
}

func smooth(prev, cur TracePoint) TracePoint {
	if prev != Low && prev != High {
		return cur
	}
	if cur != Low && cur != High {
		return cur
	}
	if prev != cur {
		return Edge
	}
	return cur
}

// accumulate ANDs and ORs every sample of the logical range [lo, hi).
func accumulate(w capture.Window, lo, hi int) (anded, ored uint8) {
	first, second := w.Segments(lo, hi)
	a, o := foldSpan(first, w.Data, 0xFF, 0x00)
	if second != nil {
		a, o = foldSpan(second, w.Data, a, o)
	}
	return a, o
}

// foldSpan folds span, a sub-slice of region, into the running AND/OR. The
// middle of the span is read as 32-bit words aligned to region.
func foldSpan(span, region []byte, anded, ored uint8) (uint8, uint8) {
	if len(span) == 0 {
		return anded, ored
	}

	// Offset of span within region, for word alignment.
	base := cap(region) - cap(span)
	head := (4 - base%4) % 4
	if head > len(span) {
		head = len(span)
	}
	for _, b := range span[:head] {
		anded &= b
		ored |= b
	}

	rest := span[head:]
	andW, orW := ^uint32(0), uint32(0)
	words := len(rest) / 4
	for i := 0; i < words; i++ {
		x := binary.LittleEndian.Uint32(rest[i*4:])
		andW &= x
		orW |= x
	}
	andW &= andW >> 16
	andW &= andW >> 8
	orW |= orW >> 16
	orW |= orW >> 8
	anded &= uint8(andW)
	ored |= uint8(orW)

	for _, b := range rest[words*4:] {
		anded &= b
		ored |= b
	}
	return anded, ored
}
