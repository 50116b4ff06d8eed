package hal

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// GPIOMode selects whether a pin is an input or output.
type GPIOMode uint8

const (
	GPIOModeInput GPIOMode = iota
	GPIOModeOutput
)

// GPIOPull selects the pull resistor configuration.
type GPIOPull uint8

const (
	GPIOPullNone GPIOPull = iota
	GPIOPullUp
	GPIOPullDown
)

// GPIOCaps declares what operations a pin supports.
type GPIOCaps uint8

const (
	GPIOCapInput GPIOCaps = 1 << iota
	GPIOCapOutput
	GPIOCapPullUp
	GPIOCapPullDown
)

// GPIO provides access to general-purpose IO pins.
//
// Implementations may return nil if GPIO is unsupported.
type GPIO interface {
	PinCount() int
	Pin(id int) GPIOPin
}

// GPIOPin is a single digital IO pin.
type GPIOPin interface {
	Name() string
	Caps() GPIOCaps
	Configure(mode GPIOMode, pull GPIOPull) error
	Read() (level bool, err error)
	Write(level bool) error
}

// SignalSource reports a digital level at a point in (simulated) time.
type SignalSource interface {
	LevelAt(t time.Duration) bool
}

type nullGPIO struct{}

func (nullGPIO) PinCount() int      { return 0 }
func (nullGPIO) Pin(id int) GPIOPin { return nil }

type virtualGPIO struct {
	pins []GPIOPin
}

func newVirtualGPIO(pins []GPIOPin) GPIO {
	if len(pins) == 0 {
		return nullGPIO{}
	}
	return &virtualGPIO{pins: pins}
}

func (g *virtualGPIO) PinCount() int {
	if g == nil {
		return 0
	}
	return len(g.pins)
}

func (g *virtualGPIO) Pin(id int) GPIOPin {
	if g == nil || id < 0 || id >= len(g.pins) {
		return nil
	}
	return g.pins[id]
}

// signalPin is an input-only pin producing a periodic pulse train: high for
// the first `high` of every `period`, delayed by `phase`.
type signalPin struct {
	mu   sync.Mutex
	name string

	mode GPIOMode
	pull GPIOPull

	t0     time.Time
	now    func() time.Time
	period time.Duration
	high   time.Duration
	phase  time.Duration
}

func newSignalPin(name string, period, high, phase time.Duration) *signalPin {
	return newSignalPinWithClock(name, period, high, phase, time.Now)
}

func newSignalPinWithClock(name string, period, high, phase time.Duration, now func() time.Time) *signalPin {
	if strings.TrimSpace(name) == "" {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	if period <= 0 {
		period = 1 * time.Second
	}
	if high < 0 {
		high = 0
	}
	if high > period {
		high = period
	}
	return &signalPin{
		name:   name,
		mode:   GPIOModeInput,
		pull:   GPIOPullNone,
		t0:     now(),
		now:    now,
		period: period,
		high:   high,
		phase:  phase,
	}
}

func (p *signalPin) Name() string   { return p.name }
func (p *signalPin) Caps() GPIOCaps { return GPIOCapInput }

func (p *signalPin) Configure(mode GPIOMode, pull GPIOPull) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if mode != GPIOModeInput {
		return fmt.Errorf("gpio: pin %s: only input supported", p.name)
	}
	if pull != GPIOPullNone {
		return fmt.Errorf("gpio: pin %s: pull unsupported", p.name)
	}
	p.mode = mode
	p.pull = pull
	return nil
}

func (p *signalPin) Read() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.mode != GPIOModeInput {
		return false, fmt.Errorf("gpio: pin %s: not configured for input", p.name)
	}
	return p.levelAt(p.now().Sub(p.t0)), nil
}

// LevelAt returns the level at t since the pin's epoch. It does not take the
// lock: period, high and phase never change after construction.
func (p *signalPin) LevelAt(t time.Duration) bool {
	return p.levelAt(t)
}

func (p *signalPin) levelAt(t time.Duration) bool {
	return PulseTrain{Period: p.period, High: p.high, Phase: p.phase}.LevelAt(t)
}

// PulseTrain is a SignalSource that is high for the first High of every
// Period, delayed by Phase.
type PulseTrain struct {
	Period time.Duration
	High   time.Duration
	Phase  time.Duration
}

func (p PulseTrain) LevelAt(t time.Duration) bool {
	if p.Period <= 0 {
		return false
	}
	t -= p.Phase
	if t < 0 {
		t = -t
	}
	return t%p.Period < p.High
}

func (p *signalPin) Write(level bool) error {
	_ = level
	return fmt.Errorf("gpio: pin %s: output unsupported", p.name)
}

// ProbePort packs signal sources into one sample byte; source i drives bit i.
type ProbePort struct {
	sources []SignalSource
}

// NewProbePort returns a port over at most eight sources.
func NewProbePort(sources ...SignalSource) *ProbePort {
	if len(sources) > 8 {
		sources = sources[:8]
	}
	return &ProbePort{sources: sources}
}

// ProbePortFromGPIO builds a port from the GPIO pins that can report a
// level over time, in pin order.
func ProbePortFromGPIO(g GPIO) *ProbePort {
	var srcs []SignalSource
	if g == nil {
		return NewProbePort()
	}
	for i := 0; i < g.PinCount(); i++ {
		if src, ok := g.Pin(i).(SignalSource); ok {
			srcs = append(srcs, src)
		}
	}
	return NewProbePort(srcs...)
}

func (p *ProbePort) Sample(t time.Duration) uint8 {
	var v uint8
	for i, src := range p.sources {
		if src != nil && src.LevelAt(t) {
			v |= 1 << i
		}
	}
	return v
}
