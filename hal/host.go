//go:build !tinygo

package hal

import (
	"fmt"
	"os"
	"sync"
	"time"
)

// HostConfig tunes the host HAL.
type HostConfig struct {
	// FlashPath overrides the backing file of the emulated flash.
	FlashPath string
	// Keys are replayed one per tick before live input.
	Keys []KeyEvent
}

type hostHAL struct {
	logger *hostLogger
	led    *hostLED
	gpio   GPIO
	fb     *hostFramebuffer
	kbd    *hostKeyboard
	t      *hostTime
	flash  Flash
	acq    *SimAcquisition

	last time.Time
}

// New returns a host HAL implementation with default config.
func New() HAL {
	return NewHost(HostConfig{})
}

// NewHost returns a host HAL whose analyzer front end samples three
// simulated probe signals.
func NewHost(cfg HostConfig) HAL {
	logger := &hostLogger{w: os.Stdout}
	led := &hostLED{logger: logger}

	// Probe sources: a 100 Hz square, a 40 Hz 25% PWM and a 1 ms pulse
	// every 20 ms.
	pins := []GPIOPin{
		newSignalPin("CH1", 10*time.Millisecond, 5*time.Millisecond, 0),
		newSignalPin("CH2", 25*time.Millisecond, 6250*time.Microsecond, 3*time.Millisecond),
		newSignalPin("CH3", 20*time.Millisecond, 1*time.Millisecond, 7*time.Millisecond),
	}
	gpio := newVirtualGPIO(pins)

	return &hostHAL{
		logger: logger,
		led:    led,
		gpio:   gpio,
		fb:     newHostFramebuffer(320, 240),
		kbd:    newHostKeyboard(cfg.Keys),
		t:      newHostTime(),
		flash:  newHostFlash(cfg.FlashPath),
		acq:    NewSimAcquisition(ProbePortFromGPIO(gpio)),
	}
}

func (h *hostHAL) Logger() Logger   { return h.logger }
func (h *hostHAL) LED() LED         { return h.led }
func (h *hostHAL) GPIO() GPIO       { return h.gpio }
func (h *hostHAL) Display() Display { return hostDisplay{fb: h.fb} }
func (h *hostHAL) Input() Input     { return hostInput{kbd: h.kbd} }
func (h *hostHAL) Flash() Flash     { return h.flash }
func (h *hostHAL) Time() Time       { return h.t }

func (h *hostHAL) Acquisition() Acquisition { return h.acq }

// advance emits the HAL ticks and lets the simulated front end run for the
// wall time elapsed since the previous call.
func (h *hostHAL) advance() {
	h.t.step()
	now := time.Now()
	if !h.last.IsZero() {
		h.acq.AdvanceDuration(now.Sub(h.last))
	}
	h.last = now
}

type hostDisplay struct {
	fb *hostFramebuffer
}

func (d hostDisplay) Framebuffer() Framebuffer { return d.fb }

type hostInput struct {
	kbd *hostKeyboard
}

func (in hostInput) Keyboard() Keyboard { return in.kbd }

type hostLogger struct {
	mu sync.Mutex
	w  *os.File
}

func (l *hostLogger) WriteLineString(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.w, s)
}

func (l *hostLogger) WriteLineBytes(b []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Write(b)
	l.w.Write([]byte{'\n'})
}

type hostLED struct {
	mu     sync.Mutex
	on     bool
	logger *hostLogger
}

func (l *hostLED) High() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.on {
		return
	}
	l.on = true
	l.logger.WriteLineString("led: armed")
}

func (l *hostLED) Low() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.on {
		return
	}
	l.on = false
	l.logger.WriteLineString("led: idle")
}
