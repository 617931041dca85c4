package recorder

import (
	"strings"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// knownBrowserProcesses scopes tab-navigation synthesis.
var knownBrowserProcesses = map[string]string{
	"chrome.exe":   "chrome",
	"msedge.exe":   "edge",
	"firefox.exe":  "firefox",
	"brave.exe":    "brave",
	"opera.exe":    "opera",
	"vivaldi.exe":  "vivaldi",
	"arc.exe":      "arc",
	"iexplore.exe": "internet_explorer",
	"safari":       "safari",
}

// browserFSM observes window-title and address-bar changes inside known
// browsers and attributes them to the tab action hinted by the preceding
// hotkey within the detection window.
type browserFSM struct {
	cfg Config
	eng uia.Engine

	lastURL   string
	lastTitle string

	pendingAction TabAction
	pendingTS     uint64
}

func newBrowserFSM(cfg Config, eng uia.Engine) *browserFSM {
	return &browserFSM{cfg: cfg, eng: eng}
}

func (f *browserFSM) tick(uint64) []Event { return nil }

func (f *browserFSM) feed(ev RawEvent) []Event {
	switch e := ev.(type) {
	case RawKeyboard:
		f.onKey(e)
	case RawPropertyChange:
		return f.onPropertyChange(e)
	}
	return nil
}

func (f *browserFSM) onKey(e RawKeyboard) {
	if !e.Down || !e.Modifiers.Ctrl {
		return
	}
	switch e.VK {
	case 'T':
		f.pendingAction, f.pendingTS = TabNew, e.Time
	case 'W':
		f.pendingAction, f.pendingTS = TabClose, e.Time
	case vkTab:
		f.pendingAction, f.pendingTS = TabSwitch, e.Time
	}
}

func (f *browserFSM) onPropertyChange(e RawPropertyChange) []Event {
	if e.Element == nil {
		return nil
	}
	browser := browserName(f.eng, e.Element)
	if browser == "" {
		return nil
	}

	switch e.Property {
	case "value":
		// Address-bar edits carry the URL.
		if !looksLikeURL(e.Value) {
			return nil
		}
		from := f.lastURL
		f.lastURL = e.Value
		return []Event{BrowserTabNavigation{
			Browser: browser,
			FromURL: from,
			ToURL:   e.Value,
			Action:  f.consumeAction(e.Time),
			Time:    e.Time,
		}}
	case "name", "title":
		prev := f.lastTitle
		f.lastTitle = e.Value
		if prev == e.Value {
			return nil
		}
		// Title-only changes are ambiguous; emit only when a tab hotkey
		// primed an action inside the detection window.
		action := f.consumeAction(e.Time)
		if action == TabNavigate {
			return nil
		}
		return []Event{BrowserTabNavigation{
			Browser: browser,
			FromURL: f.lastURL,
			Action:  action,
			Time:    e.Time,
		}}
	}
	return nil
}

// consumeAction resolves and clears the pending tab action when it is still
// inside the detection window; otherwise the change is a plain navigation.
func (f *browserFSM) consumeAction(ts uint64) TabAction {
	if f.pendingAction != "" && age(ts, f.pendingTS) <= f.cfg.BrowserDetectionTimeoutMS {
		a := f.pendingAction
		f.pendingAction = ""
		return a
	}
	f.pendingAction = ""
	return TabNavigate
}

func browserName(eng uia.Engine, el *uia.Element) string {
	proc := strings.ToLower(elementProcessName(eng, el))
	if proc == "" {
		return ""
	}
	if name, ok := knownBrowserProcesses[proc]; ok {
		return name
	}
	for exe, name := range knownBrowserProcesses {
		if strings.Contains(proc, strings.TrimSuffix(exe, ".exe")) {
			return name
		}
	}
	return ""
}

func looksLikeURL(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return false
	}
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") ||
		strings.HasPrefix(s, "file://") || strings.HasPrefix(s, "about:") ||
		strings.Contains(s, "www.") || strings.Contains(s, ".com") || strings.Contains(s, ".org")
}
