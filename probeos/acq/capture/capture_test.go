package capture

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"multiprobe/hal"
)

// counterProbe returns the pulse index at 1 MHz, truncated to a byte.
var counterProbe = hal.ProbeFunc(func(t time.Duration) uint8 {
	return uint8(t / time.Microsecond)
})

func newSimPipeline(t *testing.T, blockSize int) (*hal.SimAcquisition, *Pipeline) {
	t.Helper()
	sim := hal.NewSimAcquisition(counterProbe)
	buf, err := NewBuffer(blockSize)
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}
	p, err := NewPipeline(buf, sim.SampleDMA())
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}
	if err := p.Prime(); err != nil {
		t.Fatalf("Prime() error = %v", err)
	}
	return sim, p
}

func TestNextFreeBlock(t *testing.T) {
	for last, want := range []int{2, 0, 1} {
		if got := NextFreeBlock(last); got != want {
			t.Fatalf("NextFreeBlock(%d) = %d, want %d", last, got, want)
		}
	}
}

func TestBufferBlocksDoNotOverlap(t *testing.T) {
	buf, err := NewBuffer(4)
	if err != nil {
		t.Fatalf("NewBuffer() error = %v", err)
	}
	if got := buf.Size(); got != 12 {
		t.Fatalf("Size() = %d, want 12", got)
	}
	b := buf.Block(1)
	if cap(b) != 4 {
		t.Fatalf("cap(Block(1)) = %d, want 4", cap(b))
	}
	b[0] = 0xAA
	if buf.Bytes()[4] != 0xAA {
		t.Fatalf("Block(1) does not alias region offset 4")
	}
	if _, err := NewBuffer(0); err == nil {
		t.Fatalf("NewBuffer(0) error = nil, want error")
	}
}

func TestWindowSegmentsWrap(t *testing.T) {
	data := make([]byte, 20)
	for i := range data {
		data[i] = byte(i)
	}
	w := Window{Data: data, Start: 15}

	first, second := w.Segments(0, 8)
	if len(first) != 5 || len(second) != 3 {
		t.Fatalf("Segments(0, 8) lens = %d, %d, want 5, 3", len(first), len(second))
	}
	if first[0] != 15 || second[2] != 2 {
		t.Fatalf("Segments(0, 8) = %v %v", first, second)
	}

	first, second = w.Segments(5, 10)
	if second != nil || first[0] != 0 || len(first) != 5 {
		t.Fatalf("Segments(5, 10) = %v %v, want [0..4] nil", first, second)
	}
	if got := w.At(5); got != 0 {
		t.Fatalf("At(5) = %d, want 0", got)
	}
}

func TestPipelinePingPong(t *testing.T) {
	sim, p := newSimPipeline(t, 8)
	sim.SampleClock().Start()

	// A fills block 0, B starts on block 1, A moves to block 2.
	sim.Advance(8)
	if ch, blk := p.LastCompleted(); ch != 0 || blk != 0 {
		t.Fatalf("LastCompleted() = %d, %d, want 0, 0", ch, blk)
	}
	if got := p.Block(0); got != 2 {
		t.Fatalf("Block(0) = %d, want 2", got)
	}
	dma := sim.SampleDMA()
	if !dma[1].Busy() || dma[0].Busy() {
		t.Fatalf("busy = %v, %v, want false, true", dma[0].Busy(), dma[1].Busy())
	}

	sim.Advance(8)
	if got := p.Block(1); got != 0 {
		t.Fatalf("Block(1) = %d, want 0", got)
	}
	if !dma[0].Busy() {
		t.Fatalf("channel 0 not restarted by chain")
	}
	if p.Warm() {
		t.Fatalf("Warm() = true after 2 blocks")
	}
	sim.Advance(8)
	if !p.Warm() {
		t.Fatalf("Warm() = false after 3 blocks")
	}
}

func TestPipelineRotationNeverCollides(t *testing.T) {
	sim, p := newSimPipeline(t, 5)
	sim.SampleClock().Start()

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		sim.Advance(uint64(rng.Intn(12) + 1))
		if err := p.Err(); err != nil {
			t.Fatalf("step %d: Err() = %v", i, err)
		}
		if p.Block(0) == p.Block(1) {
			t.Fatalf("step %d: both channels on block %d", i, p.Block(0))
		}
	}
	if p.Filled() == 0 {
		t.Fatalf("Filled() = 0 after 500 steps")
	}
}

func TestPipelineWindowIsContiguous(t *testing.T) {
	sim, p := newSimPipeline(t, 16)
	sim.SampleClock().Start()
	sim.Advance(16*3*2 + 7)
	sim.SampleClock().Stop()

	if got, want := p.StopOffset(), 7; got != want {
		t.Fatalf("StopOffset() = %d, want %d", got, want)
	}

	w := p.Window()
	for i := 1; i < w.Len(); i++ {
		if w.At(i) != w.At(i-1)+1 {
			t.Fatalf("window gap at %d: %d after %d", i, w.At(i), w.At(i-1))
		}
	}
	// The newest sample is the last one written.
	if got, want := w.At(w.Len()-1), uint8(16*3*2+7-1); got != want {
		t.Fatalf("newest sample = %d, want %d", got, want)
	}
}

func TestPipelineStopOnBlockBoundary(t *testing.T) {
	sim, p := newSimPipeline(t, 4)
	sim.SampleClock().Start()
	sim.Advance(4)
	sim.SampleClock().Stop()

	// B was started by the chain in the same pulse and has written nothing.
	if got := p.StopOffset(); got != 4 {
		t.Fatalf("StopOffset() = %d, want 4", got)
	}
}

func TestPipelineLatchesReprogramFault(t *testing.T) {
	sim, p := newSimPipeline(t, 4)
	fault := errors.New("bus error")
	sim.InjectDMAFault(0, fault)
	sim.SampleClock().Start()
	sim.Advance(4)

	err := p.Err()
	if !errors.Is(err, fault) {
		t.Fatalf("Err() = %v, want %v", err, fault)
	}
	if got := p.Block(0); got != 0 {
		t.Fatalf("Block(0) = %d, want 0 after failed reprogram", got)
	}

	if err := p.Prime(); err != nil {
		t.Fatalf("Prime() error = %v", err)
	}
	if p.Err() != nil {
		t.Fatalf("Err() = %v after Prime, want nil", p.Err())
	}
}
