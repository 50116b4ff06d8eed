package kernel

import (
	"sync"
	"sync/atomic"
)

// PanicInfo describes a recovered task panic.
type PanicInfo struct {
	TaskID TaskID
	Value  any
	Stack  []byte
}

var (
	panicActive  atomic.Bool
	panicOnce    sync.Once
	panicHandler atomic.Value // func(PanicInfo)
	firstPanic   atomic.Pointer[PanicInfo]
)

// InPanicMode reports whether a task has panicked.
func InPanicMode() bool { return panicActive.Load() }

// FirstPanic returns the panic that put the process into panic mode.
func FirstPanic() (PanicInfo, bool) {
	p := firstPanic.Load()
	if p == nil {
		return PanicInfo{}, false
	}
	return *p, true
}

// SetPanicHandler installs the process-wide panic handler. It runs at most
// once, for the first panic, and must not panic itself.
func SetPanicHandler(fn func(PanicInfo)) {
	panicHandler.Store(fn)
}

func triggerPanic(info PanicInfo) {
	panicOnce.Do(func() {
		info.Stack = captureStack()
		firstPanic.Store(&info)
		panicActive.Store(true)
		if fn, ok := panicHandler.Load().(func(PanicInfo)); ok && fn != nil {
			fn(info)
		}
	})
}
