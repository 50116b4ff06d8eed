//go:build !tinygo

package hal

type hostKeyboard struct {
	ch     chan KeyEvent
	script []KeyEvent
}

func newHostKeyboard(script []KeyEvent) *hostKeyboard {
	return &hostKeyboard{ch: make(chan KeyEvent, 64), script: script}
}

func (k *hostKeyboard) Events() <-chan KeyEvent { return k.ch }

func (k *hostKeyboard) send(ev KeyEvent) {
	select {
	case k.ch <- ev:
	default:
	}
}

// replay delivers the next scripted key, one per poll.
func (k *hostKeyboard) replay() {
	if len(k.script) == 0 {
		return
	}
	ev := k.script[0]
	k.script = k.script[1:]
	if ev != (KeyEvent{}) {
		k.send(ev)
	}
}
