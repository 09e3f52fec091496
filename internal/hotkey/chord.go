package hotkey

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrInvalidChord is returned for chord specs that name unknown keys,
// repeat a key, or are malformed.
var ErrInvalidChord = errors.New("invalid chord")

// DefaultChordSpec is used when the configured chord is empty
// Default: Ctrl+Option+Space
const DefaultChordSpec = "CTRL,ALT,SPACE"

// Key is a normalized key name such as "CMD", "SPACE" or "F5".
type Key string

// Modifier keys
const (
	KeyCtrl  Key = "CTRL"
	KeyShift Key = "SHIFT"
	KeyAlt   Key = "ALT"
	KeyCmd   Key = "CMD"
)

// Named keys
const (
	KeySpace  Key = "SPACE"
	KeyTab    Key = "TAB"
	KeyEnter  Key = "ENTER"
	KeyEscape Key = "ESC"
	KeyDelete Key = "DELETE"
	KeyUp     Key = "UP"
	KeyDown   Key = "DOWN"
	KeyLeft   Key = "LEFT"
	KeyRight  Key = "RIGHT"
)

// modifierOrder is the display and sort order of modifiers.
var modifierOrder = []Key{KeyCtrl, KeyShift, KeyAlt, KeyCmd}

var aliases = map[string]Key{
	"CONTROL": KeyCtrl, "CTRL_L": KeyCtrl, "CTRL_R": KeyCtrl,
	"SHIFT_L": KeyShift, "SHIFT_R": KeyShift,
	"OPT": KeyAlt, "OPTION": KeyAlt, "ALT_L": KeyAlt, "ALT_R": KeyAlt,
	"COMMAND": KeyCmd, "SUPER": KeyCmd, "WIN": KeyCmd, "CMD_L": KeyCmd, "CMD_R": KeyCmd,
	"RETURN": KeyEnter, "ESCAPE": KeyEscape, "BACKSPACE": KeyDelete,
}

// IsModifier reports whether k is a modifier key.
func (k Key) IsModifier() bool {
	return slices.Contains(modifierOrder, k)
}

func knownKey(name string) (Key, bool) {
	if k, ok := aliases[name]; ok {
		return k, true
	}
	k := Key(name)
	switch k {
	case KeyCtrl, KeyShift, KeyAlt, KeyCmd,
		KeySpace, KeyTab, KeyEnter, KeyEscape, KeyDelete,
		KeyUp, KeyDown, KeyLeft, KeyRight:
		return k, true
	}
	if len(name) == 1 {
		c := name[0]
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') {
			return k, true
		}
	}
	if n, ok := functionKey(name); ok && n >= 1 && n <= 20 {
		return k, true
	}
	return "", false
}

// functionKey parses "F1".."F20".
func functionKey(name string) (int, bool) {
	if len(name) < 2 || len(name) > 3 || name[0] != 'F' {
		return 0, false
	}
	n := 0
	for _, c := range name[1:] {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}

// Chord is a set of keys that must be held together.
type Chord struct {
	keys []Key
}

// ParseChord parses a comma- or plus-separated key list such as
// "CMD,ALT" or "ctrl+shift+space". An empty spec yields the default chord.
func ParseChord(spec string) (Chord, error) {
	if strings.TrimSpace(spec) == "" {
		spec = DefaultChordSpec
	}

	tokens := strings.FieldsFunc(spec, func(r rune) bool { return r == ',' || r == '+' })
	if strings.Count(spec, ",")+strings.Count(spec, "+") >= len(tokens) && len(tokens) > 0 {
		// "CMD,,ALT" or trailing separators
		return Chord{}, fmt.Errorf("%w: %q has an empty key", ErrInvalidChord, spec)
	}

	seen := make(map[Key]bool, len(tokens))
	keys := make([]Key, 0, len(tokens))
	for _, tok := range tokens {
		name := strings.ToUpper(strings.TrimSpace(tok))
		if name == "" {
			return Chord{}, fmt.Errorf("%w: %q has an empty key", ErrInvalidChord, spec)
		}
		k, ok := knownKey(name)
		if !ok {
			return Chord{}, fmt.Errorf("%w: unknown key %q", ErrInvalidChord, tok)
		}
		if seen[k] {
			return Chord{}, fmt.Errorf("%w: key %q repeated", ErrInvalidChord, tok)
		}
		seen[k] = true
		keys = append(keys, k)
	}
	if len(keys) == 0 {
		return Chord{}, fmt.Errorf("%w: %q names no keys", ErrInvalidChord, spec)
	}

	slices.SortFunc(keys, compareKeys)
	return Chord{keys: keys}, nil
}

// MustParseChord is ParseChord for constant specs.
func MustParseChord(spec string) Chord {
	c, err := ParseChord(spec)
	if err != nil {
		panic(err)
	}
	return c
}

func compareKeys(a, b Key) int {
	ia, ib := slices.Index(modifierOrder, a), slices.Index(modifierOrder, b)
	switch {
	case ia >= 0 && ib >= 0:
		return ia - ib
	case ia >= 0:
		return -1
	case ib >= 0:
		return 1
	default:
		return strings.Compare(string(a), string(b))
	}
}

// Keys returns a copy of the chord's keys, modifiers first.
func (c Chord) Keys() []Key {
	return slices.Clone(c.keys)
}

// Modifiers returns the modifier keys of the chord.
func (c Chord) Modifiers() []Key {
	var mods []Key
	for _, k := range c.keys {
		if k.IsModifier() {
			mods = append(mods, k)
		}
	}
	return mods
}

// Triggers returns the non-modifier keys of the chord.
func (c Chord) Triggers() []Key {
	var keys []Key
	for _, k := range c.keys {
		if !k.IsModifier() {
			keys = append(keys, k)
		}
	}
	return keys
}

// SatisfiedBy reports whether every chord key is in pressed.
func (c Chord) SatisfiedBy(pressed map[Key]bool) bool {
	if len(c.keys) == 0 {
		return false
	}
	for _, k := range c.keys {
		if !pressed[k] {
			return false
		}
	}
	return true
}

// Equal reports whether two chords hold the same keys.
func (c Chord) Equal(other Chord) bool {
	return slices.Equal(c.keys, other.keys)
}

// String returns the chord as "CTRL+ALT+SPACE".
func (c Chord) String() string {
	parts := make([]string, len(c.keys))
	for i, k := range c.keys {
		parts[i] = string(k)
	}
	return strings.Join(parts, "+")
}
