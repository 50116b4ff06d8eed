//go:build !tinygo && !cgo

package hal

// poll only replays the key script; there is no window to read keys from.
func (k *hostKeyboard) poll() { k.replay() }
