//go:build tinygo && baremetal && picocalc

package hal

import (
	"machine"
	"time"
)

type picoCalcHAL struct {
	logger *uartLogger
	led    *pinLED
	gpio   GPIO
	fb     Framebuffer
	kbd    Keyboard
	t      *tinyGoTime
	flash  Flash
	acq    Acquisition
}

// New returns a PicoCalc HAL implementation (Pico on the PicoCalc carrier).
//
// UART: UART0 on GP0 (TX) / GP1 (RX), 115200 8N1.
// Analyzer inputs: GP2..GP4 as CH1..CH3, sampled by PIO0.
func New() HAL {
	uart := machine.UART0
	uart.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GP0,
		RX:       machine.GP1,
	})
	logger := &uartLogger{uart: uart}

	ledPin := machine.LED
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	h := &picoCalcHAL{
		logger: logger,
		led:    &pinLED{pin: ledPin},
		gpio: newVirtualGPIO([]GPIOPin{
			&machinePin{name: "CH1", pin: machine.GP2},
			&machinePin{name: "CH2", pin: machine.GP3},
			&machinePin{name: "CH3", pin: machine.GP4},
		}),
		t:     newTinyGoTime(),
		flash: newBoardFlash(),
		acq:   newBoardAcquisition(machine.GP2),
	}

	if fb, err := newPicoCalcDisplay(); err == nil {
		h.fb = fb
	} else {
		logger.WriteLineString("lcd: " + err.Error())
	}
	if kb, err := newPicoCalcKeyboard(); err == nil {
		h.kbd = kb
	} else {
		logger.WriteLineString(err.Error())
	}
	return h
}

func (h *picoCalcHAL) Logger() Logger           { return h.logger }
func (h *picoCalcHAL) LED() LED                 { return h.led }
func (h *picoCalcHAL) GPIO() GPIO               { return h.gpio }
func (h *picoCalcHAL) Flash() Flash             { return h.flash }
func (h *picoCalcHAL) Time() Time               { return h.t }
func (h *picoCalcHAL) Acquisition() Acquisition { return h.acq }

func (h *picoCalcHAL) Display() Display {
	if h.fb == nil {
		return nil
	}
	return picoCalcDisplay{fb: h.fb}
}

func (h *picoCalcHAL) Input() Input {
	if h.kbd == nil {
		return nil
	}
	return picoCalcInput{kbd: h.kbd}
}

type picoCalcDisplay struct {
	fb Framebuffer
}

func (d picoCalcDisplay) Framebuffer() Framebuffer { return d.fb }

type picoCalcInput struct {
	kbd Keyboard
}

func (in picoCalcInput) Keyboard() Keyboard { return in.kbd }

// picoCalcFramebuffer is drawn in little-endian RGB565 and pushed to the
// panel whole on Present.
type picoCalcFramebuffer struct {
	w      int
	h      int
	stride int
	buf    []byte

	lcd *ili9488
}

func (f *picoCalcFramebuffer) Width() int          { return f.w }
func (f *picoCalcFramebuffer) Height() int         { return f.h }
func (f *picoCalcFramebuffer) Format() PixelFormat { return PixelFormatRGB565 }
func (f *picoCalcFramebuffer) StrideBytes() int    { return f.stride }
func (f *picoCalcFramebuffer) Buffer() []byte      { return f.buf }

func (f *picoCalcFramebuffer) ClearRGB(r, g, b uint8) {
	fillRGB565(f.buf, rgb565(r, g, b))
}

func (f *picoCalcFramebuffer) Present() error {
	return f.lcd.blitRGB565LittleEndian(f.buf, f.w, f.h)
}

func newPicoCalcDisplay() (*picoCalcFramebuffer, error) {
	lcd, err := initILI9488()
	if err != nil {
		return nil, err
	}

	const w = 320
	const h = 320
	return &picoCalcFramebuffer{
		w:      w,
		h:      h,
		stride: w * 2,
		buf:    make([]byte, w*h*2),
		lcd:    lcd,
	}, nil
}

type picoCalcKeyboard struct {
	ch chan KeyEvent
}

func (k *picoCalcKeyboard) Events() <-chan KeyEvent { return k.ch }

// newPicoCalcKeyboard polls the keyboard MCU every 2ms. Events are dropped
// while the channel is full.
func newPicoCalcKeyboard() (*picoCalcKeyboard, error) {
	kbd, err := initI2CKeyboard()
	if err != nil {
		return nil, err
	}
	dev := &picoCalcKeyboard{ch: make(chan KeyEvent, 64)}

	go func() {
		for {
			if ev, ok := kbd.readEvent(); ok {
				select {
				case dev.ch <- ev:
				default:
				}
			}
			time.Sleep(2 * time.Millisecond)
		}
	}()

	return dev, nil
}
