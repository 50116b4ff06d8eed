package analyzer

import (
	"fmt"
	"image/color"

	"multiprobe/hal"
	"multiprobe/probeos/acq"
	"multiprobe/probeos/acq/decimate"

	"tinygo.org/x/tinyfont"
)

var (
	colorBG    = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}
	colorFG    = color.RGBA{R: 0xee, G: 0xee, B: 0xee, A: 0xff}
	colorDim   = color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}
	colorHdrBG = color.RGBA{R: 0x18, G: 0x18, B: 0x18, A: 0xff}
	colorMark  = color.RGBA{R: 0xff, G: 0xdd, B: 0x66, A: 0xff}

	laneColors = [acq.NumChannels]color.RGBA{
		{R: 0x4a, G: 0xdf, B: 0x6a, A: 0xff},
		{R: 0x4a, G: 0xa8, B: 0xff, A: 0xff},
		{R: 0xff, G: 0x6a, B: 0x6a, A: 0xff},
	}
)

// Layout of the trace pane in display pixels.
const (
	headerH   = 12
	labelW    = 32
	laneTop   = headerH + 4
	laneH     = 40
	laneGap   = 4
	traceHigh = 6
	traceLow  = laneH - 8
)

// Pane holds the last published trace and draws it. It implements
// acq.Pane.
type Pane struct {
	width  int
	points [acq.NumChannels][]decimate.TracePoint

	trigChannel int
	trigEdge    hal.Edge

	dirty bool
}

func NewPane(width int) *Pane {
	p := &Pane{width: width, dirty: true}
	for i := range p.points {
		p.points[i] = make([]decimate.TracePoint, width)
	}
	return p
}

func (p *Pane) SetTracePoint(channel, pixel int, pt decimate.TracePoint) {
	if channel < 0 || channel >= len(p.points) || pixel < 0 || pixel >= p.width {
		return
	}
	p.points[channel][pixel] = pt
	p.dirty = true
}

func (p *Pane) SetTrigger(channel int, edge hal.Edge) {
	if p.trigChannel != channel || p.trigEdge != edge {
		p.dirty = true
	}
	p.trigChannel = channel
	p.trigEdge = edge
}

// Point returns the stored point, for inspection.
func (p *Pane) Point(channel, pixel int) decimate.TracePoint {
	return p.points[channel][pixel]
}

// TriggerLabel is the trigger status text.
func (p *Pane) TriggerLabel() string {
	if p.trigChannel == 0 {
		return "T:free"
	}
	return fmt.Sprintf("T:CH%d %s", p.trigChannel, p.trigEdge)
}

func (p *Pane) Dirty() bool { return p.dirty }

// Height is the pixel height of the lanes area below the header.
func (p *Pane) Height() int16 {
	return laneTop + acq.NumChannels*(laneH+laneGap)
}

// renderHeader draws the status line.
func (p *Pane) renderHeader(d *fbDisplay, font tinyfont.Fonter, status string) {
	w, _ := d.Size()
	d.FillRectangle(0, 0, w, headerH, colorHdrBG)
	tinyfont.WriteLine(d, font, 2, headerH-3, p.TriggerLabel()+"  "+status, colorFG)
}

// renderLanes draws every channel lane and the trigger marker at
// markerPct percent of the trace width, or none when markerPct < 0.
func (p *Pane) renderLanes(d *fbDisplay, font tinyfont.Fonter, enabled [acq.NumChannels]bool, markerPct int) {
	w, _ := d.Size()
	d.FillRectangle(0, headerH, w, p.Height()-headerH, colorBG)

	for c := range p.points {
		y0 := int16(laneTop + c*(laneH+laneGap))
		label := fmt.Sprintf("CH%d", c+1)
		lc := laneColors[c]
		if !enabled[c] {
			lc = colorDim
		}
		tinyfont.WriteLine(d, font, 2, y0+laneH/2+3, label, lc)
		d.FillRectangle(labelW, y0+laneH, int16(p.width), 1, colorDim)

		for x, pt := range p.points[c] {
			px := int16(labelW + x)
			switch pt {
			case decimate.High:
				d.SetPixel(px, y0+traceHigh, lc)
			case decimate.Low:
				d.SetPixel(px, y0+traceLow, lc)
			case decimate.Edge:
				d.vline(px, y0+traceHigh, y0+traceLow, lc)
			}
		}
	}

	if markerPct >= 0 {
		x := int16(labelW + p.width*markerPct/100)
		if x >= labelW+int16(p.width) {
			x = labelW + int16(p.width) - 1
		}
		d.vline(x, laneTop, p.Height()-laneGap, colorMark)
	}
	p.dirty = false
}
