package hal

// PicoCalc keyboard MCU codes, read over I2C as (state, key) pairs.
const (
	picoCalcKbdAddr uint16 = 0x1F
	picoCalcKbdCmd         = 0x09

	picoCalcStateDown = 0x01
	picoCalcStateHeld = 0x02
	picoCalcStateUp   = 0x03
)

const (
	picoCalcKeyAlt       byte = 0xA1
	picoCalcKeyBackspace byte = 0x08
	picoCalcKeyCtrl      byte = 0xA5
	picoCalcKeyDel       byte = 0xD4
	picoCalcKeyEsc       byte = 0xB1
	picoCalcKeyF1        byte = 0x81
	picoCalcKeyF2        byte = 0x82
	picoCalcKeyF3        byte = 0x83
	picoCalcKeyF4        byte = 0x84
	picoCalcKeyIns       byte = 0xD1
	picoCalcKeyLeft      byte = 0xB4
	picoCalcKeyRight     byte = 0xB7
	picoCalcKeyUp        byte = 0xB5
	picoCalcKeyDown      byte = 0xB6
)

func picoCalcSpecial(code byte) KeyCode {
	switch code {
	case picoCalcKeyBackspace, picoCalcKeyDel:
		return KeyBackspace
	case picoCalcKeyEsc:
		return KeyEscape
	case picoCalcKeyLeft:
		return KeyLeft
	case picoCalcKeyRight:
		return KeyRight
	case picoCalcKeyUp:
		return KeyUp
	case picoCalcKeyDown:
		return KeyDown
	case picoCalcKeyF1:
		return KeyF1
	case picoCalcKeyF2:
		return KeyF2
	case picoCalcKeyF3:
		return KeyF3
	case picoCalcKeyF4:
		return KeyF4
	case picoCalcKeyIns:
		return KeyTab
	}
	return KeyUnknown
}

// picoCalcEvent turns one keyboard report into a KeyEvent. Modifier and
// held reports yield nothing; the analyzer binds no chords.
func picoCalcEvent(state, code byte) (KeyEvent, bool) {
	if code == 0 || code == picoCalcKeyAlt || code == picoCalcKeyCtrl {
		return KeyEvent{}, false
	}
	switch state {
	case picoCalcStateDown:
	case picoCalcStateUp:
		return KeyEvent{Code: picoCalcSpecial(code)}, true
	default:
		return KeyEvent{}, false
	}
	if kc := picoCalcSpecial(code); kc != KeyUnknown {
		return KeyEvent{Code: kc, Press: true}, true
	}
	if code == '\r' || code == '\n' {
		return KeyEvent{Code: KeyEnter, Press: true}, true
	}
	return KeyEvent{Press: true, Rune: rune(code)}, true
}
