package hal

import "testing"

func TestPicoCalcEvent(t *testing.T) {
	cases := []struct {
		name  string
		state byte
		code  byte
		want  KeyEvent
		ok    bool
	}{
		{"letter", picoCalcStateDown, 'r', KeyEvent{Press: true, Rune: 'r'}, true},
		{"digit", picoCalcStateDown, '2', KeyEvent{Press: true, Rune: '2'}, true},
		{"enter", picoCalcStateDown, '\r', KeyEvent{Code: KeyEnter, Press: true}, true},
		{"f4", picoCalcStateDown, picoCalcKeyF4, KeyEvent{Code: KeyF4, Press: true}, true},
		{"del is backspace", picoCalcStateDown, picoCalcKeyDel, KeyEvent{Code: KeyBackspace, Press: true}, true},
		{"release", picoCalcStateUp, picoCalcKeyUp, KeyEvent{Code: KeyUp}, true},
		{"held", picoCalcStateHeld, 'r', KeyEvent{}, false},
		{"modifier", picoCalcStateDown, picoCalcKeyCtrl, KeyEvent{}, false},
		{"empty report", 0, 0, KeyEvent{}, false},
	}
	for _, tc := range cases {
		got, ok := picoCalcEvent(tc.state, tc.code)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: picoCalcEvent(%#x, %#x) = %+v, %v, want %+v, %v", tc.name, tc.state, tc.code, got, ok, tc.want, tc.ok)
		}
	}
}
