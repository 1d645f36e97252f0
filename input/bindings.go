package input

import (
	"fmt"
	"strings"
)

// Binding is a keybinding chord: a set of modifiers plus one key,
// identified by its evdev code.
type Binding struct {
	Mods Modifiers
	Code uint32
}

// Bindings maps chords to window-manager action names. The active set
// is swapped atomically on config reload; matching happens before any
// client forwarding, so bound chords are never client-visible.
type Bindings map[Binding]string

// Lookup returns the action bound to the chord, if any.
func (b Bindings) Lookup(mods Modifiers, code uint32) (string, bool) {
	action, ok := b[Binding{Mods: mods, Code: code}]
	return action, ok
}

// keyCodes maps key names to evdev codes for the keys bindings are
// commonly attached to.
var keyCodes = map[string]uint32{
	"esc": 1, "escape": 1,
	"1": 2, "2": 3, "3": 4, "4": 5, "5": 6,
	"6": 7, "7": 8, "8": 9, "9": 10, "0": 11,
	"q": 16, "w": 17, "e": 18, "r": 19, "t": 20,
	"y": 21, "u": 22, "i": 23, "o": 24, "p": 25,
	"enter": 28, "return": 28,
	"a": 30, "s": 31, "d": 32, "f": 33, "g": 34,
	"h": 35, "j": 36, "k": 37, "l": 38,
	"z": 44, "x": 45, "c": 46, "v": 47, "b": 48,
	"n": 49, "m": 50,
	"space": 57,
	"f1": 59, "f2": 60, "f3": 61, "f4": 62, "f5": 63,
	"f6": 64, "f7": 65, "f8": 66, "f9": 67, "f10": 68,
	"f11": 87, "f12": 88,
	"up": 103, "down": 108, "left": 105, "right": 106,
	"tab": 15,
}

var modNames = map[string]Modifiers{
	"shift":   ModShift,
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"mod1":    ModAlt,
	"super":   ModSuper,
	"mod4":    ModSuper,
	"logo":    ModSuper,
}

// ParseBinding parses a chord like "super+shift+q".
func ParseBinding(s string) (Binding, error) {
	var b Binding
	parts := strings.Split(strings.ToLower(s), "+")
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if mod, ok := modNames[part]; ok {
			b.Mods |= mod
			continue
		}
		code, ok := keyCodes[part]
		if !ok {
			return b, fmt.Errorf("unknown key %q in binding %q", part, s)
		}
		if i != len(parts)-1 {
			return b, fmt.Errorf("key %q must come last in binding %q", part, s)
		}
		b.Code = code
	}
	if b.Code == 0 {
		return b, fmt.Errorf("binding %q has no key", s)
	}
	return b, nil
}

// ParseBindings parses a chord→action table, such as the bindings
// section of the config file.
func ParseBindings(m map[string]string) (Bindings, error) {
	out := make(Bindings, len(m))
	for chord, action := range m {
		b, err := ParseBinding(chord)
		if err != nil {
			return nil, err
		}
		out[b] = action
	}
	return out, nil
}
