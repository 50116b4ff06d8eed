package hal

import (
	"fmt"
	"strings"
)

var keyNames = map[string]KeyCode{
	"up":    KeyUp,
	"down":  KeyDown,
	"left":  KeyLeft,
	"right": KeyRight,
	"enter": KeyEnter,
	"esc":   KeyEscape,
	"bs":    KeyBackspace,
	"tab":   KeyTab,
	"f1":    KeyF1,
	"f2":    KeyF2,
	"f3":    KeyF3,
	"f4":    KeyF4,
}

// ParseKeyScript turns a key script into press events. Plain characters
// press that rune; {name} presses a named key (up, down, left, right,
// enter, esc, bs, tab, f1..f4) and {wait} is an idle tick.
func ParseKeyScript(s string) ([]KeyEvent, error) {
	var out []KeyEvent
	for len(s) > 0 {
		if s[0] != '{' {
			r := []rune(s)[0]
			out = append(out, KeyEvent{Press: true, Rune: r})
			s = s[len(string(r)):]
			continue
		}
		end := strings.IndexByte(s, '}')
		if end < 0 {
			return nil, fmt.Errorf("key script: unterminated %q", s)
		}
		name := strings.ToLower(s[1:end])
		s = s[end+1:]
		if name == "wait" {
			out = append(out, KeyEvent{})
			continue
		}
		code, ok := keyNames[name]
		if !ok {
			return nil, fmt.Errorf("key script: unknown key {%s}", name)
		}
		out = append(out, KeyEvent{Code: code, Press: true})
	}
	return out, nil
}
