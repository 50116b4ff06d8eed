package capture

import (
	"errors"
	"fmt"

	"multiprobe/hal"
)

// ErrCollision reports a block reassignment onto the block the other
// channel owns. It means the completion bookkeeping is out of step.
var ErrCollision = errors.New("capture: block collision")

// NextFreeBlock is the block a channel moves to after completing block
// last. With three blocks it is never the block its partner is writing.
func NextFreeBlock(last int) int {
	return (last + 2) % Blocks
}

// Pipeline ping-pongs two sampling DMA channels across a Buffer.
//
// Channel A starts on block 0 and is chained from B; B waits on block 1 and
// is chained from A. Each completion only reprograms the finished channel's
// destination; the hardware chain keeps sampling gapless.
type Pipeline struct {
	buf *Buffer
	ch  [2]hal.DMAChannel

	block [2]int

	lastChannel int
	lastBlock   int
	completed   uint64

	err error
}

// NewPipeline binds the two sampling channels to buf.
func NewPipeline(buf *Buffer, ch [2]hal.DMAChannel) (*Pipeline, error) {
	if buf == nil {
		return nil, errors.New("capture: nil buffer")
	}
	for i, c := range ch {
		if c == nil {
			return nil, fmt.Errorf("capture: sampling channel %d missing", i)
		}
	}
	return &Pipeline{buf: buf, ch: ch, lastChannel: -1, lastBlock: -1}, nil
}

// Prime configures both channels for a new capture cycle. The clock must be
// stopped.
func (p *Pipeline) Prime() error {
	p.err = nil
	p.lastChannel = -1
	p.lastBlock = -1

	chains := [2]hal.ChainDir{hal.ChainFromLower, hal.ChainFromHigher}
	for i, c := range p.ch {
		p.block[i] = i
		err := c.Configure(hal.DMAConfig{
			Dst:        p.buf.Block(i),
			Chain:      chains[i],
			Enable:     i == 0,
			OnComplete: func() { p.OnComplete(i) },
		})
		if err != nil {
			return fmt.Errorf("capture: prime channel %d: %w", i, err)
		}
	}
	return nil
}

// OnComplete is the completion handler of channel i. It moves the channel
// to the next free block and records the completion. A failure is latched
// and ends the cycle.
func (p *Pipeline) OnComplete(i int) {
	blk := p.block[i]
	p.lastChannel = i
	p.lastBlock = blk
	p.completed++
	if p.err != nil {
		return
	}

	next := NextFreeBlock(blk)
	if next == p.block[1-i] {
		p.err = fmt.Errorf("%w: channel %d to block %d", ErrCollision, i, next)
		return
	}
	if err := p.ch[i].SetDestination(p.buf.Block(next)); err != nil {
		p.err = fmt.Errorf("capture: reprogram channel %d to block %d: %w", i, next, err)
		return
	}
	p.block[i] = next
}

// Err returns the latched reprogramming fault of the current cycle.
func (p *Pipeline) Err() error { return p.err }

// Block returns the block channel i currently targets.
func (p *Pipeline) Block(i int) int { return p.block[i] }

// LastCompleted returns the channel and block of the latest completion, or
// -1, -1 if none completed this cycle.
func (p *Pipeline) LastCompleted() (channel, block int) {
	return p.lastChannel, p.lastBlock
}

// Filled returns the number of blocks completed since construction.
func (p *Pipeline) Filled() uint64 { return p.completed }

// Warm reports whether every block has been written in full at least once.
// Until then the oldest part of the ring holds power-up contents.
func (p *Pipeline) Warm() bool { return p.completed >= Blocks }

// StopOffset returns where writing stopped: the write cursor of the busy
// channel, or the end of the last completed block when neither is busy.
func (p *Pipeline) StopOffset() int {
	size := p.buf.Size()
	bs := p.buf.BlockSize()
	for i, c := range p.ch {
		if c.Busy() {
			return (p.block[i]*bs + c.Offset()) % size
		}
	}
	if p.lastBlock < 0 {
		return 0
	}
	return ((p.lastBlock + 1) * bs) % size
}

// Window returns the ring rotated so the stop offset is its end. Call it
// only after the sample clock has stopped.
func (p *Pipeline) Window() Window {
	return Window{Data: p.buf.Bytes(), Start: p.StopOffset()}
}
