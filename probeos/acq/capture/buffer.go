// Package capture streams sampled bytes into a three-block ring and reads
// the ring back once the sample clock has stopped.
package capture

import "fmt"

const (
	// Blocks is the number of equal blocks in a Buffer.
	Blocks = 3

	// DefaultBlockSize matches the reference front end.
	DefaultBlockSize = 65536
)

// Buffer is the sample ring: one contiguous region split into Blocks equal
// blocks. It is allocated once and reused by every capture.
type Buffer struct {
	data      []byte
	blockSize int
}

// NewBuffer allocates a ring of Blocks*blockSize bytes.
func NewBuffer(blockSize int) (*Buffer, error) {
	if blockSize <= 0 {
		return nil, fmt.Errorf("capture: block size %d", blockSize)
	}
	return &Buffer{
		data:      make([]byte, Blocks*blockSize),
		blockSize: blockSize,
	}, nil
}

// Block returns block i. The slice cannot grow into its neighbour.
func (b *Buffer) Block(i int) []byte {
	lo := i * b.blockSize
	hi := lo + b.blockSize
	return b.data[lo:hi:hi]
}

func (b *Buffer) Size() int      { return len(b.data) }
func (b *Buffer) BlockSize() int { return b.blockSize }

// Bytes returns the whole region in physical order.
func (b *Buffer) Bytes() []byte { return b.data }

// Window is the ring viewed with its oldest sample at logical index 0.
type Window struct {
	Data  []byte
	Start int
}

func (w Window) Len() int { return len(w.Data) }

// At returns the i-th oldest sample.
func (w Window) At(i int) byte {
	n := len(w.Data)
	return w.Data[(w.Start+i)%n]
}

// Segments splits the logical range [lo, hi) into at most two physical
// slices, the second one present only when the range wraps.
func (w Window) Segments(lo, hi int) (first, second []byte) {
	n := len(w.Data)
	if n == 0 || hi <= lo {
		return nil, nil
	}
	start := (w.Start + lo) % n
	count := hi - lo
	if start+count <= n {
		return w.Data[start : start+count], nil
	}
	return w.Data[start:], w.Data[:start+count-n]
}
