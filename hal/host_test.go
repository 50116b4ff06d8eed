//go:build !tinygo

package hal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func TestHostTimeTicks(t *testing.T) {
	now := time.Unix(100, 0)
	ht := newHostTime()
	ht.now = func() time.Time { return now }

	ht.step()
	now = now.Add(2500 * time.Microsecond)
	ht.step()
	now = now.Add(600 * time.Microsecond)
	ht.step()

	var got []uint64
	for len(ht.Ticks()) > 0 {
		got = append(got, <-ht.Ticks())
	}
	// 1 initial tick, 2 for 2.5 ms, 1 once the 0.5 ms carry reaches 1.1 ms.
	if len(got) != 4 || got[3] != 4 {
		t.Fatalf("ticks = %v, want [1 2 3 4]", got)
	}
}

func TestHostFramebufferPresent(t *testing.T) {
	fb := newHostFramebuffer(4, 2)
	fb.ClearRGB(0xFF, 0xFF, 0xFF)

	dst := make([]byte, 16)
	if n := fb.snapshot(dst); n != 0 || dst[0] != 0 {
		t.Fatalf("snapshot before Present = %d, %#x, want 0, 0", n, dst[0])
	}
	_ = fb.Present()
	if n := fb.snapshot(dst); n != 1 || dst[0] != 0xFF || dst[15] != 0xFF {
		t.Fatalf("snapshot after Present = %d, %#x, want 1, 0xff", n, dst[0])
	}
}

func TestHostFlashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "probe.flash")
	f, closer, err := OpenFlashFile(path, 8192)
	if err != nil {
		t.Fatalf("OpenFlashFile() error = %v", err)
	}
	defer closer.Close()

	if got := f.SizeBytes(); got != 8192 {
		t.Fatalf("SizeBytes() = %d, want 8192", got)
	}
	buf := make([]byte, 4)
	if _, err := f.ReadAt(buf, 4096); err != nil {
		t.Fatalf("ReadAt() error = %v", err)
	}
	if buf[0] != 0xFF || buf[3] != 0xFF {
		t.Fatalf("new image not erased: % x", buf)
	}

	if _, err := f.WriteAt([]byte{0x0F}, 10); err != nil {
		t.Fatalf("WriteAt() error = %v", err)
	}
	if _, err := f.WriteAt([]byte{0xF0}, 10); err != ErrFlashWriteRequiresErase {
		t.Fatalf("WriteAt() over cleared bits error = %v, want %v", err, ErrFlashWriteRequiresErase)
	}
	if err := f.Erase(0, 4096); err != nil {
		t.Fatalf("Erase() error = %v", err)
	}
	if _, err := f.WriteAt([]byte{0xF0}, 10); err != nil {
		t.Fatalf("WriteAt() after erase error = %v", err)
	}
}

func TestHeadlessReplaysKeys(t *testing.T) {
	keys, err := ParseKeyScript("1{wait}{f1}r")
	if err != nil {
		t.Fatalf("ParseKeyScript() error = %v", err)
	}

	var got []KeyEvent
	cfg := HeadlessConfig{
		Hz:    1000,
		Ticks: 6,
		Host:  HostConfig{FlashPath: filepath.Join(t.TempDir(), "probe.flash"), Keys: keys},
	}
	err = RunHeadless(context.Background(), func(h HAL) func() error {
		events := h.Input().Keyboard().Events()
		return func() error {
			for {
				select {
				case ev := <-events:
					got = append(got, ev)
				default:
					return nil
				}
			}
		}
	}, cfg)
	if err != nil {
		t.Fatalf("RunHeadless() error = %v", err)
	}

	want := []KeyEvent{{Press: true, Rune: '1'}, {Press: true, Code: KeyF1}, {Press: true, Rune: 'r'}}
	if len(got) != len(want) {
		t.Fatalf("events = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestHostFlashOpenFailure(t *testing.T) {
	f := newHostFlash(filepath.Join(t.TempDir(), "missing", "probe.flash"))
	if f.SizeBytes() != 0 {
		t.Fatalf("SizeBytes() = %d, want 0", f.SizeBytes())
	}
	_, err := f.ReadAt(make([]byte, 1), 0)
	if err == nil || err == ErrNotImplemented {
		t.Fatalf("ReadAt() error = %v, want the open failure", err)
	}
}
