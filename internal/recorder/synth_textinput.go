package recorder

import (
	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// textInputFSM accumulates keystrokes per focused editable field and emits
// one TextInputCompleted when the episode ends: focus leaves the field,
// Enter/Tab is pressed, or the completion timeout elapses after the last
// keystroke. Two completions for the same field without an intervening
// focus change are impossible by construction: emitting resets the buffer
// and an empty buffer never emits.
type textInputFSM struct {
	cfg Config

	field      *uia.Element
	firstTS    uint64
	lastTS     uint64
	keystrokes int

	sawPaste        bool
	sawSuggestion   bool
	sawAutoComplete bool
	clipboard       string
	baseValue       string
	typedLen        int
}

func newTextInputFSM(cfg Config) *textInputFSM { return &textInputFSM{cfg: cfg} }

func (f *textInputFSM) feed(ev RawEvent) []Event {
	switch e := ev.(type) {
	case RawFocus:
		return f.onFocus(e)
	case RawKeyboard:
		return f.onKey(e)
	case RawPropertyChange:
		f.onPropertyChange(e)
	case RawClipboard:
		if e.Op == "copy" || e.Op == "cut" || e.Op == "change" {
			f.clipboard = e.Content
		}
	}
	return nil
}

func (f *textInputFSM) tick(now uint64) []Event {
	if f.field == nil || f.keystrokes == 0 {
		return nil
	}
	if now-f.lastTS >= f.cfg.TextInputCompletionTimeoutMS {
		return f.complete(now)
	}
	return nil
}

func (f *textInputFSM) onFocus(e RawFocus) []Event {
	var out []Event
	if f.field != nil && (e.Element == nil || !sameNode(f.field, e.Element)) {
		// Blur completes the pending episode.
		if f.keystrokes > 0 {
			out = f.complete(e.Time)
		}
		f.reset()
	}
	if e.Element != nil {
		a := e.Element.Attributes()
		if uia.RolesMatch(a.Role, "edit") || uia.RolesMatch(a.Role, "document") {
			f.field = e.Element
			f.baseValue = a.Value
		} else if f.field != nil && (uia.RolesMatch(a.Role, "listitem") || uia.RolesMatch(a.Role, "list")) {
			// A dropdown selection while a field owns the episode marks
			// autocomplete.
			f.sawAutoComplete = true
		}
	}
	return out
}

func (f *textInputFSM) onKey(e RawKeyboard) []Event {
	if f.field == nil || !e.Down {
		return nil
	}
	if e.VK == vkEnter || e.VK == vkTab {
		if f.keystrokes > 0 {
			return f.complete(e.Time)
		}
		return nil
	}
	if e.Modifiers.Ctrl && (e.VK == 'V' || e.Char == 'v') {
		f.sawPaste = true
		f.touch(e.Time)
		f.keystrokes++
		return nil
	}
	if isPrintableKeystroke(e.VK, e.Char, e.Modifiers) || e.VK == vkBackspace || e.VK == vkDelete {
		f.touch(e.Time)
		f.keystrokes++
		if isPrintableKeystroke(e.VK, e.Char, e.Modifiers) {
			f.typedLen++
		}
	}
	return nil
}

func (f *textInputFSM) onPropertyChange(e RawPropertyChange) {
	if f.field == nil || e.Element == nil || !sameNode(f.field, e.Element) {
		return
	}
	if e.Property != "value" {
		return
	}
	delta := len(e.Value) - len(f.baseValue)
	if delta < 0 {
		delta = -delta
	}
	if f.clipboard != "" && e.Value == f.baseValue+f.clipboard {
		// The whole clipboard landed in one tick.
		f.sawPaste = true
		return
	}
	if delta > 1 && delta > f.typedLen {
		f.sawSuggestion = true
	}
}

func (f *textInputFSM) touch(ts uint64) {
	if f.firstTS == 0 {
		f.firstTS = ts
	}
	f.lastTS = ts
}

func (f *textInputFSM) complete(ts uint64) []Event {
	field := f.field
	text := field.Attributes().Value
	method := InputTyped
	switch {
	case f.sawPaste:
		method = InputPaste
	case f.sawSuggestion:
		method = InputSuggestion
	case f.sawAutoComplete:
		method = InputAutoComplete
	}
	ev := TextInputCompleted{
		Field:          field,
		FieldInfo:      snapshotElement(field),
		Text:           text,
		Method:         method,
		KeystrokeCount: f.keystrokes,
		DurationMS:     f.lastTS - f.firstTS,
		Time:           ts,
	}
	f.clearEpisode()
	return []Event{ev}
}

// clearEpisode keeps the field bound but forgets the buffer, so a new
// episode on the same field needs fresh keystrokes.
func (f *textInputFSM) clearEpisode() {
	f.firstTS = 0
	f.lastTS = 0
	f.keystrokes = 0
	f.typedLen = 0
	f.sawPaste = false
	f.sawSuggestion = false
	f.sawAutoComplete = false
	if f.field != nil {
		f.baseValue = f.field.Attributes().Value
	}
}

func (f *textInputFSM) reset() {
	f.field = nil
	f.clearEpisode()
}

func sameNode(a, b *uia.Element) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Node().Equals(b.Node())
}
