package hotkey

import "golang.design/x/hotkey"

var systemModifiers = map[Key]hotkey.Modifier{
	KeyCtrl:  hotkey.ModCtrl,
	KeyShift: hotkey.ModShift,
	KeyAlt:   hotkey.ModOption,
	KeyCmd:   hotkey.ModCmd,
}
