package recorder

import "strings"

// knownHotkeyActions maps recognised combinations to their semantic action
// names. Unknown combinations are still emitted with an empty action.
var knownHotkeyActions = map[string]string{
	"Alt+Tab":        "Switch Window",
	"Alt+Shift+Tab":  "Switch Window",
	"Ctrl+C":         "Copy",
	"Ctrl+V":         "Paste",
	"Ctrl+X":         "Cut",
	"Ctrl+Z":         "Undo",
	"Ctrl+Y":         "Redo",
	"Ctrl+A":         "Select All",
	"Ctrl+S":         "Save",
	"Ctrl+F":         "Find",
	"Ctrl+T":         "New Tab",
	"Ctrl+W":         "Close Tab",
	"Ctrl+Shift+T":   "Reopen Closed Tab",
	"Ctrl+Tab":       "Next Tab",
	"Ctrl+Shift+Tab": "Previous Tab",
	"Ctrl+L":         "Focus Address Bar",
	"Alt+Left":       "Navigate Back",
	"Alt+Right":      "Navigate Forward",
	"Alt+F4":         "Close Window",
	"Win+D":          "Show Desktop",
	"Win+L":          "Lock Screen",
	"F5":             "Refresh",
}

// hotkeyFSM tracks modifier state and emits a Hotkey on every non-modifier
// keydown while Ctrl, Alt or Win is held; Shift alone does not make a
// hotkey. Bare function keys with a known action also emit.
type hotkeyFSM struct {
	mods Modifiers
}

func newHotkeyFSM() *hotkeyFSM { return &hotkeyFSM{} }

func (f *hotkeyFSM) tick(uint64) []Event { return nil }

func (f *hotkeyFSM) feed(ev RawEvent) []Event {
	kb, ok := ev.(RawKeyboard)
	if !ok {
		return nil
	}
	if isModifierVK(kb.VK) {
		f.setModifier(kb.VK, kb.Down)
		return nil
	}
	if !kb.Down {
		return nil
	}
	// Hooks deliver a modifier snapshot with each event; prefer it over the
	// tracked state when present.
	mods := kb.Modifiers
	if !mods.Ctrl && !mods.Alt && !mods.Shift && !mods.Win {
		mods = f.mods
	}
	if !mods.Ctrl && !mods.Alt && !mods.Win {
		if isFunctionVK(kb.VK) {
			combo := keyName(kb.VK, kb.Char)
			if action, known := knownHotkeyActions[combo]; known {
				return []Event{Hotkey{Combination: combo, Action: action, Time: kb.Time}}
			}
		}
		return nil
	}
	combo := formatCombination(mods, kb.VK, kb.Char)
	return []Event{Hotkey{
		Combination: combo,
		Action:      knownHotkeyActions[combo],
		Time:        kb.Time,
	}}
}

func (f *hotkeyFSM) setModifier(vk int, down bool) {
	switch vk {
	case vkShift:
		f.mods.Shift = down
	case vkCtrl:
		f.mods.Ctrl = down
	case vkAlt:
		f.mods.Alt = down
	case vkLWin, vkRWin:
		f.mods.Win = down
	}
}

func formatCombination(mods Modifiers, vk int, char rune) string {
	var parts []string
	if mods.Ctrl {
		parts = append(parts, "Ctrl")
	}
	if mods.Alt {
		parts = append(parts, "Alt")
	}
	if mods.Shift {
		parts = append(parts, "Shift")
	}
	if mods.Win {
		parts = append(parts, "Win")
	}
	parts = append(parts, keyName(vk, char))
	return strings.Join(parts, "+")
}
