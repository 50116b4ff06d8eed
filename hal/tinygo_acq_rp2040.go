//go:build tinygo && rp2040

package hal

import (
	"device/rp"
	"fmt"
	"machine"
	"math/bits"
	"runtime/interrupt"
	"runtime/volatile"
	"time"
	"unsafe"
)

// Channels 8..11 are left to the front end; lower ones belong to machine
// drivers.
const (
	rpDMASampleA = 8
	rpDMASampleB = 9
	rpDMAControl = 10
)

// Single DMA channel. See rp.DMA_Type.
type rpDMAChannelHW struct {
	READ_ADDR   volatile.Register32
	WRITE_ADDR  volatile.Register32
	TRANS_COUNT volatile.Register32
	CTRL_TRIG   volatile.Register32
	AL1_CTRL    volatile.Register32
	_           [11]volatile.Register32 // aliases
}

// Per state machine block starting at SM0_CLKDIV.
type rpSMHW struct {
	CLKDIV    volatile.Register32
	EXECCTRL  volatile.Register32
	SHIFTCTRL volatile.Register32
	ADDR      volatile.Register32
	INSTR     volatile.Register32
	PINCTRL   volatile.Register32
}

var (
	rpDMAChannels = (*[12]rpDMAChannelHW)(unsafe.Pointer(rp.DMA))
	rpSMs         = (*[4]rpSMHW)(unsafe.Pointer(&rp.PIO0.SM0_CLKDIV))
	rpInstrMem    = (*[32]volatile.Register32)(unsafe.Pointer(&rp.PIO0.INSTR_MEM0))
	rpTXF         = (*[4]volatile.Register32)(unsafe.Pointer(&rp.PIO0.TXF0))
	rpRXF         = (*[4]volatile.Register32)(unsafe.Pointer(&rp.PIO0.RXF0))
)

const (
	pioCtrlSMRestart     = 4
	pioCtrlClkdivRestart = 8
	pioFStatRXEmpty      = 8
	pioFStatTXEmpty      = 24
	pioShiftFJoinRX      = 1 << 31
	pioIRQ0InteSM0       = 1 << 8
)

// rpFrontEnd receives the DMA and PIO interrupts.
var rpFrontEnd *rpAcquisition

// rpAcquisition drives PIO0 and DMA channels 8..11. SM0 samples three
// pins from base into the RX FIFO, which DMA 8 and 9 drain in turns. SM1
// counts the post-trigger window. SM2 watches the trigger pin. DMA 10
// and 11 each move one enable mask into the PIO CTRL set or clear alias
// when their state machine pushes.
type rpAcquisition struct {
	base  machine.Pin
	clock rpClock
	timer rpTimer
	dma   [2]rpSampleDMA
	ctl   [2]rpControl
	edge  rpEdge
}

// newBoardAcquisition claims GPIO base..base+2 for PIO0.
func newBoardAcquisition(base machine.Pin) Acquisition {
	a := &rpAcquisition{base: base}
	rp.RESETS.RESET.ClearBits(rp.RESETS_RESET_PIO0 | rp.RESETS_RESET_DMA)
	for !rp.RESETS.RESET_DONE.HasBits(rp.RESETS_RESET_DONE_PIO0 | rp.RESETS_RESET_DONE_DMA) {
	}
	for i := machine.Pin(0); i < 3; i++ {
		(base + i).Configure(machine.PinConfig{Mode: machine.PinPIO0})
	}

	for sm := 0; sm < 3; sm++ {
		rpSMDisable(sm)
	}
	rpSMs[rpSMSample].PINCTRL.Set(pioPinCtrlIn(uint8(base)))
	rpSMs[rpSMSample].SHIFTCTRL.Set(pioShiftCtrl(true, 3, true))
	rpSMs[rpSMSample].EXECCTRL.Set(pioExecCtrl(0, rpOffSample, rpOffSample))
	rpSMs[rpSMTimer].SHIFTCTRL.Set(pioShiftCtrl(false, 0, false))
	rpSMs[rpSMTimer].EXECCTRL.Set(pioExecCtrl(0, rpOffTimer+4, rpOffTimer))

	a.clock.a = a
	a.timer.a = a
	a.edge.a = a
	for i := range a.dma {
		a.dma[i] = rpSampleDMA{idx: i, ch: uint8(rpDMASampleA + i), partner: uint8(rpDMASampleB - i)}
	}
	for i := range a.ctl {
		a.ctl[i].ch = uint8(rpDMAControl + i)
	}
	if err := a.clock.SetFrequency(1_000_000); err != nil {
		panic(err)
	}

	rpFrontEnd = a
	rp.DMA.INTS0.Set(1<<rpDMASampleA | 1<<rpDMASampleB)
	rp.DMA.INTE0.SetBits(1<<rpDMASampleA | 1<<rpDMASampleB)
	interrupt.New(rp.IRQ_DMA_IRQ_0, rpDMAInterrupt).Enable()
	interrupt.New(rp.IRQ_PIO0_IRQ_0, rpPIOInterrupt).Enable()
	return a
}

func (a *rpAcquisition) SampleClock() Clock            { return &a.clock }
func (a *rpAcquisition) PostTriggerTimer() Timer       { return &a.timer }
func (a *rpAcquisition) EdgeCapture() EdgeCapture      { return &a.edge }
func (a *rpAcquisition) SampleDMA() [2]DMAChannel      { return [2]DMAChannel{&a.dma[0], &a.dma[1]} }
func (a *rpAcquisition) ControlDMA() [2]ControlChannel { return [2]ControlChannel{&a.ctl[0], &a.ctl[1]} }

func rpDMAInterrupt(interrupt.Interrupt) {
	st := rp.DMA.INTS0.Get()
	rp.DMA.INTS0.Set(st)
	a := rpFrontEnd
	if a == nil {
		return
	}
	for i := range a.dma {
		d := &a.dma[i]
		if st&(1<<d.ch) != 0 && d.onComplete != nil {
			d.onComplete()
		}
	}
}

func rpPIOInterrupt(interrupt.Interrupt) {
	rp.PIO0.IRQ.Set(1)
	if a := rpFrontEnd; a != nil && a.edge.onCapture != nil {
		a.edge.onCapture()
	}
}

func rpAlias(r *volatile.Register32, off uintptr) *volatile.Register32 {
	return (*volatile.Register32)(unsafe.Pointer(uintptr(unsafe.Pointer(r)) + off))
}

func rpSMEnabled(sm int) bool { return rp.PIO0.CTRL.Get()&(1<<sm) != 0 }

func rpSMEnable(sm int)  { rpAlias(&rp.PIO0.CTRL, 0x2000).Set(1 << sm) }
func rpSMDisable(sm int) { rpAlias(&rp.PIO0.CTRL, 0x3000).Set(1 << sm) }

// rpSMReset stops sm, empties both FIFOs and jumps to pc.
func rpSMReset(sm int, pc uint8) {
	rpSMDisable(sm)
	s := &rpSMs[sm]
	shift := s.SHIFTCTRL.Get()
	s.SHIFTCTRL.Set(shift ^ pioShiftFJoinRX)
	s.SHIFTCTRL.Set(shift)
	rpAlias(&rp.PIO0.CTRL, 0x2000).Set(1<<(pioCtrlSMRestart+sm) | 1<<(pioCtrlClkdivRestart+sm))
	s.INSTR.Set(uint32(pioJmp(pioCondAlways, pc)))
}

func rpLoad(at uint8, prog []uint16) {
	for i, in := range prog {
		rpInstrMem[int(at)+i].Set(uint32(in))
	}
}

func rpAddr(p unsafe.Pointer) uint32 { return uint32(uintptr(p)) }

// rpAbort cancels any transfer on ch and waits for it to drain.
func rpAbort(ch uint8) {
	mask := uint32(1) << ch
	rp.DMA.CHAN_ABORT.Set(mask)
	for rp.DMA.CHAN_ABORT.Get()&mask != 0 {
	}
}

type rpClock struct {
	a   *rpAcquisition
	hz  uint32
	div pioDivider
}

func (c *rpClock) SetFrequency(hz uint32) error {
	if c.Running() {
		return ErrClockRunning
	}
	div, err := pioClockDivider(machine.CPUFrequency(), hz)
	if err != nil {
		return err
	}
	c.hz, c.div = hz, div
	rpSMs[rpSMSample].CLKDIV.Set(div.reg())
	rpSMs[rpSMTimer].CLKDIV.Set(div.reg())
	rpLoad(rpOffSample, sampleProgram(div.Cycles))
	rpLoad(rpOffTimer, timerProgram(rpOffTimer, div.Cycles))
	return nil
}

func (c *rpClock) Frequency() uint32 { return c.hz }

// Start restarts sampling with empty FIFOs so the first DMA byte is the
// first sample.
func (c *rpClock) Start() {
	rpSMReset(rpSMSample, rpOffSample)
	rpSMEnable(rpSMSample)
}

func (c *rpClock) Stop()         { rpSMDisable(rpSMSample) }
func (c *rpClock) Running() bool { return rpSMEnabled(rpSMSample) }

type rpTimer struct {
	a *rpAcquisition
	d time.Duration
}

// SetDuration preloads the count; the timer SM holds it in its TX FIFO
// until it is enabled.
func (t *rpTimer) SetDuration(d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("acq: timer duration %s: %w", d, ErrInvalidTransfer)
	}
	if t.Running() {
		return ErrTimerRunning
	}
	t.d = d
	t.prime()
	return nil
}

func (t *rpTimer) prime() {
	rpSMReset(rpSMTimer, rpOffTimer)
	n := pulsesIn(t.d, t.a.clock.hz)
	rpTXF[rpSMTimer].Set(timerLoad(n, t.a.clock.div.Cycles))
}

func (t *rpTimer) Duration() time.Duration { return t.d }

func (t *rpTimer) Start() {
	if rp.PIO0.FSTAT.Get()&(1<<(pioFStatTXEmpty+rpSMTimer)) != 0 {
		t.prime()
	}
	rpSMEnable(rpSMTimer)
}

func (t *rpTimer) Stop() { rpSMReset(rpSMTimer, rpOffTimer) }

// Running is true while the count is loaded or spinning and has not
// pushed its expiry word.
func (t *rpTimer) Running() bool {
	if !rpSMEnabled(rpSMTimer) {
		return false
	}
	return rp.PIO0.FSTAT.Get()&(1<<(pioFStatRXEmpty+rpSMTimer)) != 0
}

// rpSampleDMA moves one sample byte per RX0 DREQ into dst.
type rpSampleDMA struct {
	idx        int
	ch         uint8
	partner    uint8
	dst        []byte
	onComplete func()
}

func (d *rpSampleDMA) hw() *rpDMAChannelHW { return &rpDMAChannels[d.ch] }

func (d *rpSampleDMA) Index() int { return d.idx }

// Configure aborts any transfer in flight. A chained channel hands over to
// its partner when it completes; without Enable it waits for that trigger.
func (d *rpSampleDMA) Configure(cfg DMAConfig) error {
	if len(cfg.Dst) == 0 {
		return fmt.Errorf("dma%d: empty destination: %w", d.idx, ErrInvalidTransfer)
	}
	rpAbort(d.ch)
	d.dst = cfg.Dst
	d.onComplete = cfg.OnComplete

	hw := d.hw()
	hw.AL1_CTRL.Set(0)
	hw.READ_ADDR.Set(rpAddr(unsafe.Pointer(&rpRXF[rpSMSample])))
	hw.WRITE_ADDR.Set(rpAddr(unsafe.Pointer(&cfg.Dst[0])))
	hw.TRANS_COUNT.Set(uint32(len(cfg.Dst)))
	ctrl := rpDMACtrl{
		Enable:    true,
		IncrWrite: true,
		ChainTo:   rpChainTo(d.ch, d.partner, cfg.Chain),
		TREQ:      rpDREQPIO0RX0 + rpSMSample,
	}.bits()
	if cfg.Enable {
		hw.CTRL_TRIG.Set(ctrl)
	} else {
		hw.AL1_CTRL.Set(ctrl)
	}
	return nil
}

func (d *rpSampleDMA) SetDestination(dst []byte) error {
	if len(dst) == 0 {
		return fmt.Errorf("dma%d: empty destination: %w", d.idx, ErrInvalidTransfer)
	}
	if d.Busy() {
		return ErrChannelBusy
	}
	d.dst = dst
	hw := d.hw()
	hw.WRITE_ADDR.Set(rpAddr(unsafe.Pointer(&dst[0])))
	hw.TRANS_COUNT.Set(uint32(len(dst)))
	return nil
}

func (d *rpSampleDMA) Busy() bool { return d.hw().CTRL_TRIG.Get()&rpDMABusy != 0 }

func (d *rpSampleDMA) Offset() int {
	if len(d.dst) == 0 {
		return 0
	}
	return int(d.hw().WRITE_ADDR.Get() - rpAddr(unsafe.Pointer(&d.dst[0])))
}

// rpControl is a one-word DMA: when its DREQ fires it writes word to the
// PIO CTRL alias of its action.
type rpControl struct {
	ch   uint8
	word uint32
}

func (c *rpControl) hw() *rpDMAChannelHW { return &rpDMAChannels[c.ch] }

func (c *rpControl) Wire(from Event, to Action) error {
	dreq, err := rpControlDREQ(from)
	if err != nil {
		return err
	}
	alias, mask, err := rpControlWord(to)
	if err != nil {
		return err
	}
	if c.Armed() {
		return ErrChannelBusy
	}
	c.word = mask
	hw := c.hw()
	hw.READ_ADDR.Set(rpAddr(unsafe.Pointer(&c.word)))
	hw.WRITE_ADDR.Set(rpAddr(unsafe.Pointer(rpAlias(&rp.PIO0.CTRL, alias))))
	hw.TRANS_COUNT.Set(1)
	hw.CTRL_TRIG.Set(rpDMACtrl{Enable: true, Word: true, ChainTo: c.ch, TREQ: dreq}.bits())
	return nil
}

func (c *rpControl) Release() {
	rpAbort(c.ch)
	c.hw().AL1_CTRL.Set(0)
}

func (c *rpControl) Armed() bool { return c.hw().CTRL_TRIG.Get()&rpDMABusy != 0 }

// rpEdge runs the edge program on SM2 with the trigger lane as JMP pin.
type rpEdge struct {
	a         *rpAcquisition
	onCapture func()
}

func (e *rpEdge) Configure(mask uint8, edge Edge, onCapture func()) error {
	if mask == 0 {
		return fmt.Errorf("capture: empty mask: %w", ErrInvalidRoute)
	}
	prog, err := edgeProgram(rpOffEdge, edge)
	if err != nil {
		return err
	}
	e.Disable()
	pin := uint8(e.a.base) + uint8(bits.TrailingZeros8(mask))
	rpLoad(rpOffEdge, prog)
	rpSMs[rpSMEdge].EXECCTRL.Set(pioExecCtrl(pin, rpOffEdge+uint8(len(prog))-1, rpOffEdge))
	e.onCapture = onCapture
	rpSMReset(rpSMEdge, rpOffEdge)
	rp.PIO0.IRQ.Set(1)
	rp.PIO0.IRQ0_INTE.SetBits(pioIRQ0InteSM0)
	rpSMEnable(rpSMEdge)
	return nil
}

// Disable parks SM2 and drops its pending push so a later Wire on the
// edge event does not fire on a stale DREQ.
func (e *rpEdge) Disable() {
	rp.PIO0.IRQ0_INTE.ClearBits(pioIRQ0InteSM0)
	rpSMReset(rpSMEdge, rpOffEdge)
	e.onCapture = nil
}
