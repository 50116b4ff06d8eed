// Package analyzer is the logic analyzer app: it owns the acquisition
// controller, applies requests from the keypad, and draws the trace pane
// with a diagnostics console below it.
package analyzer

import (
	"errors"
	"fmt"
	"io"

	"multiprobe/hal"
	"multiprobe/probeos/acq"
	"multiprobe/probeos/kernel"
	"multiprobe/probeos/proto"
	"multiprobe/probeos/services/logger"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/proggy"
	"tinygo.org/x/tinyterm"
)

// Width is the trace width in pixels.
const Width = 256

// Config wires a Task.
type Config struct {
	Display     hal.Display
	LED         hal.LED
	Acquisition hal.Acquisition

	// Endpoint receives analyzer requests.
	Endpoint kernel.Capability
	// Log is the logger service endpoint.
	Log kernel.Capability

	Settings  acq.Settings
	BlockSize int
	// AutoRun starts capturing on the first step.
	AutoRun bool
}

type Task struct {
	ctl  *acq.Controller
	pane *Pane
	logq *logger.Queue

	ep    kernel.Capability
	logTo kernel.Capability
	led   hal.LED

	disp    *fbDisplay
	font    tinyfont.Fonter
	console *tinyterm.Terminal
	// consoleDirty is set when the console was written since the last
	// present.
	consoleDirty bool

	autoRun bool
	started bool
	status  string
	ledOn   bool
}

func New(cfg Config) (*Task, error) {
	if cfg.Acquisition == nil {
		return nil, acq.ErrNoFrontEnd
	}
	t := &Task{
		pane:    NewPane(Width),
		logq:    &logger.Queue{},
		ep:      cfg.Endpoint,
		logTo:   cfg.Log,
		led:     cfg.LED,
		font:    &proggy.TinySZ8pt7b,
		autoRun: cfg.AutoRun,
	}

	ctl, err := acq.New(cfg.Acquisition, t.pane, acq.Config{
		BlockSize: cfg.BlockSize,
		Width:     Width,
		Logger:    t.logq,
	}, cfg.Settings)
	if err != nil {
		return nil, err
	}
	t.ctl = ctl

	if cfg.Display != nil {
		if fb := cfg.Display.Framebuffer(); fb != nil && fb.Format() == hal.PixelFormatRGB565 && fb.Buffer() != nil {
			t.disp = newFBDisplay(fb)
			t.initConsole()
		}
	}
	return t, nil
}

func (t *Task) initConsole() {
	w, h := t.disp.Size()
	top := t.pane.Height() + 2
	if top >= h {
		return
	}
	t.console = tinyterm.NewTerminal(t.disp.region(0, top, w, h-top))
	t.console.Configure(&tinyterm.Config{
		Font:              t.font,
		FontHeight:        10,
		FontOffset:        7,
		UseSoftwareScroll: true,
	})
}

// Controller exposes the acquisition controller.
func (t *Task) Controller() *acq.Controller { return t.ctl }

// Pane exposes the trace pane.
func (t *Task) Pane() *Pane { return t.pane }

// Console is the on-screen diagnostics console. It returns nil without a
// display.
func (t *Task) Console() io.Writer {
	if t.console == nil {
		return nil
	}
	return consoleWriter{t}
}

type consoleWriter struct{ t *Task }

func (w consoleWriter) Write(p []byte) (int, error) {
	w.t.consoleDirty = true
	return w.t.console.Write(p)
}

func (t *Task) Step(ctx *kernel.Context) {
	if !t.started {
		t.started = true
		t.logq.WriteLineString(fmt.Sprintf("analyzer: %d samples/capture, %s", t.ctl.BufferSize(), describe(t.ctl.Settings())))
		if t.autoRun {
			t.run()
		}
	}

	for {
		msg, ok := ctx.TryRecv(t.ep)
		if !ok {
			break
		}
		t.handle(msg)
	}

	t.ctl.Poll()
	t.updateLED()
	t.render()
	t.logq.Flush(ctx, t.logTo)
	ctx.BlockOnTick()
}

func (t *Task) handle(msg kernel.Message) {
	kind := proto.Kind(msg.Kind)
	var err error
	switch kind {
	case proto.MsgAnalyzerToggle:
		ch, ok := proto.DecodeChannelPayload(msg.Payload())
		if !ok {
			err = errBadPayload
			break
		}
		err = t.ctl.ToggleChannel(int(ch))
	case proto.MsgAnalyzerFreq:
		hz, ok := proto.DecodeFreqPayload(msg.Payload())
		if !ok {
			err = errBadPayload
			break
		}
		err = t.ctl.SetSampleFrequency(hz)
	case proto.MsgAnalyzerTrigger:
		ch, edge, pos, ok := proto.DecodeTriggerPayload(msg.Payload())
		if !ok {
			err = errBadPayload
			break
		}
		err = t.ctl.SetTrigger(ch, hal.Edge(edge), pos)
	case proto.MsgAnalyzerMode:
		m, ok := proto.DecodeModePayload(msg.Payload())
		if !ok {
			err = errBadPayload
			break
		}
		err = t.ctl.SetMode(acq.Mode(m))
	case proto.MsgAnalyzerRun:
		t.run()
		return
	case proto.MsgAnalyzerCancel:
		t.ctl.Cancel()
		return
	case proto.MsgSettingsSaved:
		t.logq.WriteLineString("analyzer: settings saved")
		return
	case proto.MsgError:
		code, ref, detail, _ := proto.DecodeErrorPayload(msg.Payload())
		t.logq.WriteLineString(fmt.Sprintf("analyzer: %s failed: %s: %s", ref, code, detail))
		return
	default:
		err = errBadPayload
	}
	if err != nil {
		t.logq.WriteLineString(fmt.Sprintf("analyzer: %s: %v", kind, err))
		return
	}
	t.logq.WriteLineString("analyzer: next capture " + describe(t.ctl.Settings()))
}

var errBadPayload = errors.New("bad payload")

func (t *Task) run() {
	if t.ctl.Halted() {
		t.ctl.Reset()
	}
	if err := t.ctl.Run(); err != nil {
		t.logq.WriteLineString("analyzer: run: " + err.Error())
	}
}

func (t *Task) updateLED() {
	if t.led == nil {
		return
	}
	on := t.ctl.State() != acq.Idle
	if on == t.ledOn {
		return
	}
	t.ledOn = on
	if on {
		t.led.High()
	} else {
		t.led.Low()
	}
}

// Status is the header text for the current controller state.
func (t *Task) Status() string {
	s := t.ctl.Settings()
	state := t.ctl.State().String()
	if t.ctl.Halted() {
		state = "halt"
	}
	last := t.ctl.Last()
	partial := ""
	if last.Partial {
		partial = "*"
	}
	return fmt.Sprintf("%s %s %s #%d%s", fmtHz(s.SampleFrequency), s.Mode, state, last.Seq, partial)
}

func (t *Task) render() {
	if t.disp == nil {
		return
	}
	status := t.Status()
	present := t.consoleDirty
	t.consoleDirty = false
	if status != t.status {
		t.status = status
		t.pane.renderHeader(t.disp, t.font, status)
		present = true
	}
	if t.pane.Dirty() {
		active := t.ctl.Active()
		var enabled [acq.NumChannels]bool
		for i, ch := range active.Channels() {
			enabled[i] = ch.Enabled
		}
		marker := -1
		if active.TriggerChannel != 0 {
			marker = int(active.TriggerPosition)
		}
		t.pane.renderLanes(t.disp, t.font, enabled, marker)
		present = true
	}
	if present {
		t.disp.Display()
	}
}

func describe(s acq.Settings) string {
	trig := "free-run"
	if s.TriggerChannel != 0 {
		trig = fmt.Sprintf("CH%d %s @%d%%", s.TriggerChannel, s.TriggerEdge, s.TriggerPosition)
	}
	return fmt.Sprintf("%s ch=%03b trig=%s mode=%s", fmtHz(s.SampleFrequency), s.EnabledChannels, trig, s.Mode)
}

func fmtHz(hz uint32) string {
	switch {
	case hz >= 1_000_000 && hz%1_000_000 == 0:
		return fmt.Sprintf("%dMHz", hz/1_000_000)
	case hz >= 1_000 && hz%1_000 == 0:
		return fmt.Sprintf("%dkHz", hz/1_000)
	default:
		return fmt.Sprintf("%dHz", hz)
	}
}
