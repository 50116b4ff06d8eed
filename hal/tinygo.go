//go:build tinygo && baremetal && !picocalc

package hal

import (
	"machine"
)

type tinyGoHAL struct {
	logger *uartLogger
	led    *pinLED
	gpio   GPIO
	t      *tinyGoTime
	flash  Flash
	acq    Acquisition
}

// New returns a Pico HAL implementation.
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

	ledPin := machine.LED
	ledPin.Configure(machine.PinConfig{Mode: machine.PinOutput})

	return &tinyGoHAL{
		logger: &uartLogger{uart: uart},
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
}

func (h *tinyGoHAL) Logger() Logger   { return h.logger }
func (h *tinyGoHAL) LED() LED         { return h.led }
func (h *tinyGoHAL) GPIO() GPIO       { return h.gpio }
func (h *tinyGoHAL) Flash() Flash     { return h.flash }
func (h *tinyGoHAL) Time() Time       { return h.t }

// The bare Pico has no panel or keypad; the analyzer runs from saved
// settings and logs over UART.
func (h *tinyGoHAL) Display() Display { return nil }
func (h *tinyGoHAL) Input() Input     { return nil }

func (h *tinyGoHAL) Acquisition() Acquisition { return h.acq }
