package hal

import (
	"fmt"
	"time"
)

// RP2040 front-end encodings. The register writes live in the tinygo
// build; the word layouts are kept here so they build and test on a host.

// PIO0 state machine roles and program placement.
const (
	rpSMSample = 0
	rpSMTimer  = 1
	rpSMEdge   = 2

	rpOffSample = 0
	rpOffTimer  = 1
	rpOffEdge   = 8
)

// DREQ numbers of the PIO0 RX FIFOs; DREQ_PIO0_RXn is 4+n.
const rpDREQPIO0RX0 = 4

const (
	pioCondAlways = 0
	pioCondXDec   = 2
	pioCondPin    = 6
)

// pioMaxDelay is the delay field width with no side-set pins.
const pioMaxDelay = 31

func pioJmp(cond uint16, addr uint8) uint16 { return cond<<5 | uint16(addr&0x1f) }

// pioInPins shifts count pins into the ISR.
func pioInPins(count uint8) uint16 { return 0x4000 | uint16(count&0x1f) }

func pioDelay(instr uint16, d uint8) uint16 {
	if d > pioMaxDelay {
		d = pioMaxDelay
	}
	return instr&^(0x1f<<8) | uint16(d)<<8
}

const (
	pioPullBlock   uint16 = 0x80a0
	pioPushNoBlock uint16 = 0x8000
	pioMovXOSR     uint16 = 0xa027
	pioNop         uint16 = 0xa042 // mov y, y
	pioIRQSetFlag0 uint16 = 0xc000
)

// sampleProgram pushes one 3-lane sample every cycles SM clocks. With
// autopush at 3 bits, each sample is one RX FIFO entry.
func sampleProgram(cycles uint8) []uint16 {
	return []uint16{pioDelay(pioInPins(3), cycles-1)}
}

// timerProgram pulls a loop count, spins it down at the sample rate and
// pushes once on expiry, raising the RX DREQ.
func timerProgram(base, cycles uint8) []uint16 {
	loop := base + 2
	park := base + 4
	return []uint16{
		pioPullBlock,
		pioMovXOSR,
		pioDelay(pioJmp(pioCondXDec, loop), cycles-1),
		pioPushNoBlock,
		pioJmp(pioCondAlways, park),
	}
}

// edgeProgram watches the JMP pin and on the selected transition sets
// IRQ flag 0 and pushes one word. It then parks until re-armed.
func edgeProgram(base uint8, edge Edge) ([]uint16, error) {
	at := func(n uint8) uint8 { return base + n }
	var body []uint16
	switch edge {
	case EdgeRising:
		body = []uint16{
			pioJmp(pioCondPin, at(0)),
			pioJmp(pioCondPin, at(4)),
			pioJmp(pioCondAlways, at(1)),
			pioNop,
		}
	case EdgeFalling:
		body = []uint16{
			pioJmp(pioCondPin, at(3)),
			pioJmp(pioCondAlways, at(0)),
			pioNop,
			pioJmp(pioCondPin, at(3)),
		}
	case EdgeEither:
		body = []uint16{
			pioJmp(pioCondPin, at(3)),
			pioJmp(pioCondPin, at(4)),
			pioJmp(pioCondAlways, at(1)),
			pioJmp(pioCondPin, at(3)),
		}
	default:
		return nil, fmt.Errorf("pio: edge %d: %w", edge, ErrInvalidRoute)
	}
	return append(body,
		pioIRQSetFlag0,
		pioPushNoBlock,
		pioJmp(pioCondAlways, at(6)),
	), nil
}

// pioDivider is a 16.8 fixed-point SM clock divider and the number of SM
// cycles spent per sample.
type pioDivider struct {
	Int    uint16
	Frac   uint8
	Cycles uint8
}

func (d pioDivider) reg() uint32 { return uint32(d.Int)<<16 | uint32(d.Frac)<<8 }

// pioClockDivider picks a divider for hz samples per second from a sys
// clock. Slow rates stretch each sample over 32 SM cycles.
func pioClockDivider(sys, hz uint32) (pioDivider, error) {
	if hz == 0 || hz > sys {
		return pioDivider{}, fmt.Errorf("%w: %d Hz", ErrClockRange, hz)
	}
	for _, cyc := range []uint64{1, pioMaxDelay + 1} {
		den := uint64(hz) * cyc
		div := (uint64(sys)<<8 + den/2) / den
		if div < 1<<8 {
			break
		}
		if div <= 0xffffff {
			return pioDivider{Int: uint16(div >> 8), Frac: uint8(div), Cycles: uint8(cyc)}, nil
		}
	}
	return pioDivider{}, fmt.Errorf("%w: %d Hz", ErrClockRange, hz)
}

// pulsesIn is the number of whole sample periods in d at hz.
func pulsesIn(d time.Duration, hz uint32) uint64 {
	if d <= 0 {
		return 0
	}
	return uint64(d) * uint64(hz) / uint64(time.Second)
}

// timerLoad is the X preload that makes timerProgram expire after n
// samples. The pull and mov ahead of the loop are taken out of the count.
func timerLoad(n uint64, cycles uint8) uint32 {
	c := uint64(cycles)
	if c == 0 {
		c = 1
	}
	overhead := (2 + c - 1) / c
	if n <= overhead {
		return 0
	}
	x := n - overhead - 1
	if x > 0xffffffff {
		return 0xffffffff
	}
	return uint32(x)
}

func pioExecCtrl(jmpPin, wrapTop, wrapBottom uint8) uint32 {
	return uint32(jmpPin&0x1f)<<24 | uint32(wrapTop&0x1f)<<12 | uint32(wrapBottom&0x1f)<<7
}

// pioShiftCtrl shifts left into the ISR; joinRX trades the TX FIFO for an
// 8-deep RX FIFO.
func pioShiftCtrl(autopush bool, pushThresh uint8, joinRX bool) uint32 {
	v := uint32(pushThresh&0x1f) << 20
	if autopush {
		v |= 1 << 16
	}
	if joinRX {
		v |= 1 << 31
	}
	return v
}

func pioPinCtrlIn(base uint8) uint32 { return uint32(base&0x1f) << 15 }

// rpDMACtrl is a DMA channel CTRL word.
type rpDMACtrl struct {
	Enable    bool
	Word      bool
	IncrRead  bool
	IncrWrite bool
	ChainTo   uint8
	TREQ      uint8
}

const rpDMABusy = 1 << 24

func (c rpDMACtrl) bits() uint32 {
	v := uint32(c.ChainTo&0xf)<<11 | uint32(c.TREQ&0x3f)<<15
	if c.Enable {
		v |= 1
	}
	if c.Word {
		v |= 2 << 2
	}
	if c.IncrRead {
		v |= 1 << 4
	}
	if c.IncrWrite {
		v |= 1 << 5
	}
	return v
}

// rpControlDREQ maps an acquisition event onto the RX DREQ of the state
// machine that raises it.
func rpControlDREQ(ev Event) (uint8, error) {
	switch ev {
	case EventEdgeCaptured:
		return rpDREQPIO0RX0 + rpSMEdge, nil
	case EventTimerExpired:
		return rpDREQPIO0RX0 + rpSMTimer, nil
	}
	return 0, fmt.Errorf("control: event %d: %w", ev, ErrInvalidRoute)
}

// rpControlWord is the PIO CTRL alias offset and the SM enable mask an
// action writes. Set and clear aliases sit 0x2000 and 0x3000 above the
// register.
func rpControlWord(a Action) (alias uintptr, mask uint32, err error) {
	const set, clr = 0x2000, 0x3000
	switch a {
	case ActionStartClock:
		return set, 1 << rpSMSample, nil
	case ActionStopClock:
		return clr, 1 << rpSMSample, nil
	case ActionStartTimer:
		return set, 1 << rpSMTimer, nil
	case ActionStopTimer:
		return clr, 1 << rpSMTimer, nil
	}
	return 0, 0, fmt.Errorf("control: action %d: %w", a, ErrInvalidRoute)
}

// rpChainTo is the CHAIN_TO field for one of a pair of sampling channels.
// A channel chained in either direction hands over to its partner; an
// unchained one names itself, which disables chaining.
func rpChainTo(self, partner uint8, chain ChainDir) uint8 {
	if chain == ChainNone {
		return self
	}
	return partner
}
