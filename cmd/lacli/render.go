package main

import (
	"fmt"
	"strings"

	"multiprobe/hal"
	"multiprobe/probeos/acq"
	"multiprobe/probeos/acq/decimate"

	"github.com/charmbracelet/lipgloss"
)

type styles struct {
	lanes  [acq.NumChannels]lipgloss.Style
	off    lipgloss.Style
	label  lipgloss.Style
	marker lipgloss.Style
	status lipgloss.Style
	err    lipgloss.Style
}

// ANSI colours: 2 green, 4 blue, 1 red, 8 grey, 3 yellow, 7 white.
func newStyles() styles {
	return styles{
		lanes: [acq.NumChannels]lipgloss.Style{
			lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(2)),
			lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(4)),
			lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(1)),
		},
		off:    lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(8)),
		label:  lipgloss.NewStyle().Bold(true),
		marker: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(3)),
		status: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(7)).Background(lipgloss.ANSIColor(4)),
		err:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.ANSIColor(7)).Background(lipgloss.ANSIColor(1)),
	}
}

// textPane keeps the last published trace for terminal rendering.
type textPane struct {
	points      [acq.NumChannels][]decimate.TracePoint
	trigChannel int
	trigEdge    hal.Edge
}

func newTextPane(width int) *textPane {
	p := &textPane{}
	for i := range p.points {
		p.points[i] = make([]decimate.TracePoint, width)
	}
	return p
}

func (p *textPane) SetTracePoint(channel, pixel int, pt decimate.TracePoint) {
	if channel < 0 || channel >= len(p.points) || pixel < 0 || pixel >= len(p.points[channel]) {
		return
	}
	p.points[channel][pixel] = pt
}

func (p *textPane) SetTrigger(channel int, edge hal.Edge) {
	p.trigChannel = channel
	p.trigEdge = edge
}

// glyph draws a point as two text rows: the high rail and the low rail.
func glyph(pt decimate.TracePoint) (hi, lo rune) {
	switch pt {
	case decimate.High:
		return '▔', ' '
	case decimate.Low:
		return ' ', '▁'
	case decimate.Edge:
		return '│', '│'
	default:
		return ' ', '·'
	}
}

func (p *textPane) lane(ch int) (hi, lo string) {
	var a, b strings.Builder
	for _, pt := range p.points[ch] {
		h, l := glyph(pt)
		a.WriteRune(h)
		b.WriteRune(l)
	}
	return a.String(), b.String()
}

// render draws every lane, a trigger marker row when a trigger channel is
// set, and a status line.
func (p *textPane) render(st styles, s acq.Settings, status string) string {
	var out []string
	out = append(out, st.status.Render(" "+status+" "))
	chans := s.Channels()
	for c := range p.points {
		style := st.lanes[c]
		if !chans[c].Enabled {
			style = st.off
		}
		hi, lo := p.lane(c)
		label := st.label.Render(fmt.Sprintf("CH%d ", c+1))
		out = append(out, lipgloss.JoinHorizontal(lipgloss.Top,
			label,
			style.Render(hi+"\n"+lo),
		))
	}
	if p.trigChannel != 0 {
		w := len(p.points[0])
		x := w * int(s.TriggerPosition) / 100
		if x >= w {
			x = w - 1
		}
		out = append(out, "    "+strings.Repeat(" ", x)+st.marker.Render(fmt.Sprintf("^ CH%d %s", p.trigChannel, p.trigEdge)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, out...)
}
