// Package acq is the acquisition mode controller of the logic analyzer.
//
// It owns the sample ring, the ping-pong pipeline, the trigger chain and the
// rasterizer, and runs them in sequence from a cooperative Poll:
//
//	Idle -> Armed (waiting for the edge) or Sampling (free-run)
//	     -> PostTrigger -> Stopped -> readback, rasterize, publish
//	     -> re-arm (Auto) or Idle (Single)
package acq

import (
	"errors"
	"fmt"

	"multiprobe/hal"
	"multiprobe/probeos/acq/capture"
	"multiprobe/probeos/acq/decimate"
	"multiprobe/probeos/acq/trigger"
)

// State is the acquisition cycle position.
type State uint8

const (
	Idle State = iota
	Armed
	Sampling
	PostTrigger
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Sampling:
		return "sampling"
	case PostTrigger:
		return "post-trigger"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

var (
	ErrNoFrontEnd = errors.New("acq: no acquisition front end")
	ErrHalted     = errors.New("acq: halted")
)

// Pane receives the result of every decimation pass.
type Pane interface {
	SetTracePoint(channel, pixel int, p decimate.TracePoint)
	SetTrigger(channel int, edge hal.Edge)
}

// Config sizes the controller. Zero fields take defaults.
type Config struct {
	BlockSize int
	Width     int
	Options   *decimate.Options
	Logger    hal.Logger
}

const DefaultWidth = 256

// Capture summarizes a published capture.
type Capture struct {
	Seq     uint64
	Partial bool
	Start   int
	Trace   decimate.Trace
}

// Controller runs capture cycles on one acquisition front end.
type Controller struct {
	front hal.Acquisition
	buf   *capture.Buffer
	pipe  *capture.Pipeline
	trig  *trigger.Controller
	ras   *decimate.Rasterizer
	pane  Pane
	log   hal.Logger

	active  Settings
	pending Settings

	state     State
	requested bool
	halted    bool
	err       error

	last Capture
}

// New builds a controller. pane may be nil.
func New(front hal.Acquisition, pane Pane, cfg Config, s Settings) (*Controller, error) {
	if front == nil {
		return nil, ErrNoFrontEnd
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if cfg.BlockSize == 0 {
		cfg.BlockSize = capture.DefaultBlockSize
	}
	if cfg.Width == 0 {
		cfg.Width = DefaultWidth
	}
	opts := decimate.DefaultOptions()
	if cfg.Options != nil {
		opts = *cfg.Options
	}

	buf, err := capture.NewBuffer(cfg.BlockSize)
	if err != nil {
		return nil, err
	}
	pipe, err := capture.NewPipeline(buf, front.SampleDMA())
	if err != nil {
		return nil, err
	}

	return &Controller{
		front:   front,
		buf:     buf,
		pipe:    pipe,
		trig:    trigger.New(front),
		ras:     decimate.NewRasterizer(cfg.Width, opts),
		pane:    pane,
		log:     cfg.Logger,
		active:  s,
		pending: s,
	}, nil
}

func (c *Controller) State() State { return c.state }
func (c *Controller) Mode() Mode   { return c.pending.Mode }

// Settings returns the configuration the next arm will use.
func (c *Controller) Settings() Settings { return c.pending }

// Active returns the configuration of the current or last cycle.
func (c *Controller) Active() Settings { return c.active }

func (c *Controller) Halted() bool { return c.halted }
func (c *Controller) Err() error   { return c.err }

// Requested reports whether a capture is wanted.
func (c *Controller) Requested() bool { return c.requested }

// Last returns the most recently published capture.
func (c *Controller) Last() Capture { return c.last }

// BufferSize is the number of samples per capture.
func (c *Controller) BufferSize() int { return c.buf.Size() }

// Trigger exposes the trigger controller for status display.
func (c *Controller) Trigger() *trigger.Controller { return c.trig }

// ToggleChannel flips channel n (1..3) for the next arm.
func (c *Controller) ToggleChannel(n int) error {
	if n < 1 || n > NumChannels {
		return fmt.Errorf("%w: %d", ErrChannel, n)
	}
	c.pending.EnabledChannels ^= 1 << (n - 1)
	return nil
}

// SetSampleFrequency stages a new sample rate for the next arm.
func (c *Controller) SetSampleFrequency(hz uint32) error {
	next := c.pending
	next.SampleFrequency = hz
	if err := next.Validate(); err != nil {
		return err
	}
	c.pending = next
	return nil
}

// SetTrigger stages a trigger source. Channel 0 selects free-run.
func (c *Controller) SetTrigger(channel uint8, edge hal.Edge, position uint8) error {
	next := c.pending
	next.TriggerChannel = channel
	next.TriggerEdge = edge
	next.TriggerPosition = position
	if err := next.Validate(); err != nil {
		return err
	}
	c.pending = next
	return nil
}

// SetMode stages the mode. Switching to Auto while idle does not start a
// capture; Run does.
func (c *Controller) SetMode(m Mode) error {
	next := c.pending
	next.Mode = m
	if err := next.Validate(); err != nil {
		return err
	}
	c.pending = next
	return nil
}

// Apply stages a whole settings record.
func (c *Controller) Apply(s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	c.pending = s
	return nil
}

// Run requests a capture. The next Poll arms it.
func (c *Controller) Run() error {
	if c.halted {
		return fmt.Errorf("%w: %v", ErrHalted, c.err)
	}
	c.requested = true
	return nil
}

// Cancel stops an in-flight capture by software and discards it. In Auto
// mode it also stops re-arming until the next Run.
func (c *Controller) Cancel() {
	c.requested = false
	if c.state == Idle {
		return
	}
	c.trig.Abort()
	c.state = Idle
	c.logLine("acq: capture cancelled")
}

// Reset clears a halt so the controller can be run again.
func (c *Controller) Reset() {
	if c.state != Idle {
		c.trig.Abort()
	}
	c.halted = false
	c.err = nil
	c.state = Idle
}

// Poll is the per-tick step. It arms a requested capture, follows the
// hardware state and, once the clock has stopped, reads back, rasterizes
// and publishes the window before re-arming or going idle.
func (c *Controller) Poll() State {
	if c.halted {
		return c.state
	}
	if err := c.pipe.Err(); err != nil && c.state != Idle {
		c.halt(err)
		return c.state
	}

	switch c.state {
	case Idle:
		if c.requested {
			c.arm()
		}
	case Armed, Sampling, PostTrigger:
		switch c.trig.Poll() {
		case trigger.Triggered:
			if c.state == Armed {
				c.state = PostTrigger
			}
		case trigger.Expired:
			c.state = Stopped
			c.finish()
		}
	}
	return c.state
}

func (c *Controller) arm() {
	c.active = c.pending
	if err := c.front.SampleClock().SetFrequency(c.active.SampleFrequency); err != nil {
		c.halt(fmt.Errorf("acq: sample clock: %w", err))
		return
	}
	if err := c.pipe.Prime(); err != nil {
		c.halt(err)
		return
	}
	cfg := c.active.trigger()
	if c.pane != nil {
		c.pane.SetTrigger(cfg.Source(), cfg.Edge)
	}
	if err := c.trig.Arm(cfg, c.buf.Size()); err != nil {
		c.halt(err)
		return
	}
	if cfg.FreeRun() {
		c.state = Sampling
	} else {
		c.state = Armed
	}
}

// finish runs with the clock stopped, so the ring is no longer written.
func (c *Controller) finish() {
	if err := c.pipe.Err(); err != nil {
		c.halt(err)
		return
	}

	w := c.pipe.Window()
	chans := c.active.Channels()
	tr := c.ras.Rasterize(w, lanes(chans))
	c.trig.Disarm()

	c.last = Capture{
		Seq:     c.last.Seq + 1,
		Partial: !c.pipe.Warm(),
		Start:   w.Start,
		Trace:   tr,
	}
	c.publish(tr)
	if c.last.Partial {
		c.logLine(fmt.Sprintf("acq: capture %d partial, ring not yet filled", c.last.Seq))
	}

	c.state = Idle
	if c.active.Mode == Single || c.pending.Mode == Single {
		c.requested = false
		return
	}
	c.arm()
}

func (c *Controller) publish(tr decimate.Trace) {
	if c.pane == nil {
		return
	}
	for ch, row := range tr {
		for px, pt := range row {
			c.pane.SetTracePoint(ch, px, pt)
		}
	}
}

func (c *Controller) halt(err error) {
	c.trig.Abort()
	c.halted = true
	c.requested = false
	c.err = err
	c.state = Idle
	c.logLine("acq: halted: " + err.Error())
}

func (c *Controller) logLine(line string) {
	if c.log != nil {
		c.log.WriteLineString(line)
	}
}
