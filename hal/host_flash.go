//go:build !tinygo

package hal

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

const (
	hostFlashDefaultPath      = "probe.flash"
	hostFlashDefaultSizeBytes = 256 * 1024
	hostFlashEraseBlockBytes  = 4096
)

type hostFlash struct {
	mu    sync.Mutex
	f     *os.File
	size  uint32
	blank [hostFlashEraseBlockBytes]byte
}

// newHostFlash opens (or creates) a file-backed flash image. An empty path
// falls back to $PROBE_FLASH_PATH, then to probe.flash in the working dir.
// Open failures yield a flash that reports the failure on every access.
func newHostFlash(path string) Flash {
	if path == "" {
		path = os.Getenv("PROBE_FLASH_PATH")
	}
	if path == "" {
		path = hostFlashDefaultPath
	}
	hf, err := openHostFlash(path, hostFlashDefaultSizeBytes)
	if err != nil {
		return noFlash{err: err}
	}
	return hf
}

// OpenFlashFile opens a flash image file, creating an erased one of size
// bytes when it does not exist. The caller closes it.
func OpenFlashFile(path string, size uint32) (Flash, io.Closer, error) {
	hf, err := openHostFlash(path, size)
	if err != nil {
		return nil, nil, err
	}
	return hf, hf.f, nil
}

func openHostFlash(path string, size uint32) (*hostFlash, error) {
	if size == 0 || size%hostFlashEraseBlockBytes != 0 {
		return nil, fmt.Errorf("flash image %s: size %d: %w", path, size, os.ErrInvalid)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("flash image: %w", err)
	}

	hf := &hostFlash{f: f, size: size}
	for i := range hf.blank {
		hf.blank[i] = 0xFF
	}

	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flash image: %w", err)
	}
	switch {
	case st.Size() > int64(^uint32(0)):
		_ = f.Close()
		return nil, fmt.Errorf("flash image %s: too large", path)
	case st.Size() > 0:
		hf.size = uint32(st.Size())
	default:
		for off := uint32(0); off < size; off += hostFlashEraseBlockBytes {
			if _, err := f.WriteAt(hf.blank[:], int64(off)); err != nil {
				_ = f.Close()
				return nil, fmt.Errorf("flash image: %w", err)
			}
		}
	}
	return hf, nil
}

func (f *hostFlash) SizeBytes() uint32 { return f.size }
func (f *hostFlash) EraseBlockBytes() uint32 {
	return hostFlashEraseBlockBytes
}

func (f *hostFlash) ReadAt(p []byte, off uint32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return 0, ErrNotImplemented
	}
	if off >= f.size {
		return 0, fmt.Errorf("flash read at %d: %w", off, os.ErrInvalid)
	}
	maxN := int(f.size - off)
	if len(p) > maxN {
		p = p[:maxN]
	}
	return f.f.ReadAt(p, int64(off))
}

func (f *hostFlash) WriteAt(p []byte, off uint32) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return 0, ErrNotImplemented
	}
	if off >= f.size {
		return 0, fmt.Errorf("flash write at %d: %w", off, os.ErrInvalid)
	}
	maxN := int(f.size - off)
	if len(p) > maxN {
		p = p[:maxN]
	}

	buf := make([]byte, len(p))
	if _, err := f.f.ReadAt(buf, int64(off)); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("flash read before write at %d: %w", off, err)
	}
	for i := range p {
		if buf[i]&p[i] != p[i] {
			return 0, ErrFlashWriteRequiresErase
		}
	}
	return f.f.WriteAt(p, int64(off))
}

func (f *hostFlash) Erase(off, size uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.f == nil {
		return ErrNotImplemented
	}
	if size == 0 {
		return nil
	}
	if off%hostFlashEraseBlockBytes != 0 || size%hostFlashEraseBlockBytes != 0 {
		return fmt.Errorf("flash erase off=%d size=%d: %w", off, size, os.ErrInvalid)
	}
	if off >= f.size || off+size > f.size {
		return fmt.Errorf("flash erase off=%d size=%d: %w", off, size, os.ErrInvalid)
	}

	for size > 0 {
		if _, err := f.f.WriteAt(f.blank[:], int64(off)); err != nil {
			return fmt.Errorf("flash erase block at %d: %w", off, err)
		}
		off += hostFlashEraseBlockBytes
		size -= hostFlashEraseBlockBytes
	}
	return nil
}
