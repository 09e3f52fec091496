package hotkey

import "strings"

// ConflictInfo represents information about a known shortcut conflict
type ConflictInfo struct {
	Name        string
	Description string
	Chord       Chord
}

// knownConflicts contains system and launcher shortcuts that swallow the chord
var knownConflicts = []ConflictInfo{
	{Name: "Spotlight", Description: "macOS Spotlight search", Chord: MustParseChord("CMD,SPACE")},
	{Name: "Input Source", Description: "Input method switch", Chord: MustParseChord("CTRL,SPACE")},
	{Name: "Character Viewer", Description: "macOS emoji and symbols", Chord: MustParseChord("CTRL,CMD,SPACE")},
	{Name: "Finder Search", Description: "Finder search window", Chord: MustParseChord("ALT,CMD,SPACE")},
	{Name: "Force Quit", Description: "macOS Force Quit", Chord: MustParseChord("ALT,CMD,ESC")},
	{Name: "Task Manager", Description: "Windows Task Manager", Chord: MustParseChord("CTRL,SHIFT,ESC")},
}

// CheckConflicts checks if the given chord matches known system shortcuts
func CheckConflicts(chord Chord) []ConflictInfo {
	var conflicts []ConflictInfo
	for _, known := range knownConflicts {
		if known.Chord.Equal(chord) {
			conflicts = append(conflicts, known)
		}
	}
	return conflicts
}

var modifierSymbols = map[Key]string{
	KeyCtrl:  "⌃",
	KeyShift: "⇧",
	KeyAlt:   "⌥",
	KeyCmd:   "⌘",
}

var keyNames = map[Key]string{
	KeySpace:  "Space",
	KeyEscape: "Esc",
	KeyEnter:  "Return",
	KeyTab:    "Tab",
	KeyDelete: "Delete",
	KeyUp:     "↑",
	KeyDown:   "↓",
	KeyLeft:   "←",
	KeyRight:  "→",
}

// FormatChord returns a human-readable representation such as "⌃⌥Space".
// Modifier-only chords are joined with "+".
func FormatChord(chord Chord) string {
	var b strings.Builder
	for _, m := range chord.Modifiers() {
		b.WriteString(modifierSymbols[m])
	}
	triggers := chord.Triggers()
	for i, k := range triggers {
		if i > 0 {
			b.WriteString("+")
		}
		if name, ok := keyNames[k]; ok {
			b.WriteString(name)
		} else {
			b.WriteString(string(k))
		}
	}
	if len(triggers) == 0 {
		return chord.String()
	}
	return b.String()
}
