package hotkey

import "golang.design/x/hotkey"

// X11: Mod1 is Alt, Mod4 is Super.
var systemModifiers = map[Key]hotkey.Modifier{
	KeyCtrl:  hotkey.ModCtrl,
	KeyShift: hotkey.ModShift,
	KeyAlt:   hotkey.Mod1,
	KeyCmd:   hotkey.Mod4,
}
