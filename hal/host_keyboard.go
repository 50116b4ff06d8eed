//go:build !tinygo && cgo

package hal

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

// keypad maps desktop keys onto the analyzer's front-panel keys.
var keypad = []struct {
	key  ebiten.Key
	code KeyCode
}{
	{ebiten.KeyArrowUp, KeyUp},
	{ebiten.KeyArrowDown, KeyDown},
	{ebiten.KeyArrowLeft, KeyLeft},
	{ebiten.KeyArrowRight, KeyRight},
	{ebiten.KeyEnter, KeyEnter},
	{ebiten.KeyEscape, KeyEscape},
	{ebiten.KeyBackspace, KeyBackspace},
	{ebiten.KeyTab, KeyTab},
	{ebiten.KeyF1, KeyF1},
	{ebiten.KeyF2, KeyF2},
	{ebiten.KeyF3, KeyF3},
	{ebiten.KeyF4, KeyF4},
}

func (k *hostKeyboard) poll() {
	k.replay()
	send := k.send

	// Digits and letters drive channel toggles and mode shortcuts.
	for _, r := range ebiten.AppendInputChars(nil) {
		send(KeyEvent{Press: true, Rune: r})
	}

	for _, m := range keypad {
		if inpututil.IsKeyJustPressed(m.key) {
			send(KeyEvent{Code: m.code, Press: true})
		}
		if inpututil.IsKeyJustReleased(m.key) {
			send(KeyEvent{Code: m.code, Press: false})
		}
	}
}
