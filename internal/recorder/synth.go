package recorder

import (
	"fmt"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// Virtual-key codes the synthesiser cares about (Windows numbering; other
// backends normalize to it).
const (
	vkBackspace = 0x08
	vkTab       = 0x09
	vkEnter     = 0x0D
	vkShift     = 0x10
	vkCtrl      = 0x11
	vkAlt       = 0x12
	vkEscape    = 0x1B
	vkSpace     = 0x20
	vkLeft      = 0x25
	vkUp        = 0x26
	vkRight     = 0x27
	vkDown      = 0x28
	vkDelete    = 0x2E
	vkLWin      = 0x5B
	vkRWin      = 0x5C
	vkF1        = 0x70
	vkF5        = 0x74
	vkF12       = 0x7B
)

func isModifierVK(vk int) bool {
	switch vk {
	case vkShift, vkCtrl, vkAlt, vkLWin, vkRWin:
		return true
	}
	return false
}

func isFunctionVK(vk int) bool { return vk >= vkF1 && vk <= vkF12 }

// keyName renders a virtual key for combination strings.
func keyName(vk int, char rune) string {
	switch vk {
	case vkTab:
		return "Tab"
	case vkEnter:
		return "Enter"
	case vkEscape:
		return "Esc"
	case vkSpace:
		return "Space"
	case vkLeft:
		return "Left"
	case vkRight:
		return "Right"
	case vkUp:
		return "Up"
	case vkDown:
		return "Down"
	case vkBackspace:
		return "Backspace"
	case vkDelete:
		return "Delete"
	}
	if isFunctionVK(vk) {
		return fmt.Sprintf("F%d", vk-vkF1+1)
	}
	if vk >= 'A' && vk <= 'Z' {
		return string(rune(vk))
	}
	if vk >= '0' && vk <= '9' {
		return string(rune(vk))
	}
	if char != 0 {
		return string(char)
	}
	return fmt.Sprintf("VK%d", vk)
}

// isPrintableKeystroke reports whether the key contributes to a text
// buffer.
func isPrintableKeystroke(vk int, char rune, mods Modifiers) bool {
	if mods.Ctrl || mods.Alt || mods.Win {
		return false
	}
	if char != 0 && char >= ' ' {
		return true
	}
	if (vk >= 'A' && vk <= 'Z') || (vk >= '0' && vk <= '9') || vk == vkSpace {
		return true
	}
	return false
}

// fsm is one state machine in the synthesiser. feed consumes a raw event
// and may emit semantic events; tick fires time-driven transitions.
type fsm interface {
	feed(ev RawEvent) []Event
	tick(now uint64) []Event
}

// synthesizer owns the FSM set and the output rate limiter.
type synthesizer struct {
	cfg     Config
	eng     uia.Engine
	fsms    []fsm
	limiter *rateLimiter
}

func newSynthesizer(cfg Config, eng uia.Engine) *synthesizer {
	s := &synthesizer{cfg: cfg, eng: eng}
	if cfg.RecordHotkeys {
		s.fsms = append(s.fsms, newHotkeyFSM())
	}
	if cfg.RecordTextInputCompletion {
		s.fsms = append(s.fsms, newTextInputFSM(cfg))
	}
	if cfg.RecordApplicationSwitches {
		s.fsms = append(s.fsms, newAppSwitchFSM(cfg, eng))
	}
	if cfg.RecordBrowserTabNavigation {
		s.fsms = append(s.fsms, newBrowserFSM(cfg, eng))
	}
	if cfg.RecordMouse {
		s.fsms = append(s.fsms, newClickDragFSM(cfg))
	}
	if cap := cfg.EffectiveMaxEventsPerSecond(); cap > 0 {
		s.limiter = newRateLimiter(cap)
	}
	return s
}

// feed runs every FSM over the raw event in registration order and applies
// the output rate cap.
func (s *synthesizer) feed(ev RawEvent) []Event {
	var out []Event
	for _, f := range s.fsms {
		out = append(out, f.feed(ev)...)
	}
	return s.limit(out)
}

func (s *synthesizer) tick(now uint64) []Event {
	var out []Event
	for _, f := range s.fsms {
		out = append(out, f.tick(now)...)
	}
	return s.limit(out)
}

func (s *synthesizer) limit(events []Event) []Event {
	if s.limiter == nil || len(events) == 0 {
		return events
	}
	kept := events[:0]
	for _, ev := range events {
		if s.limiter.allow(ev.Timestamp()) {
			kept = append(kept, ev)
		}
	}
	return kept
}

// rateLimiter enforces a hard per-second output cap with single-event
// granularity over a sliding one-second window.
type rateLimiter struct {
	perSecond int
	recent    []uint64
}

func newRateLimiter(perSecond int) *rateLimiter {
	return &rateLimiter{perSecond: perSecond}
}

func (r *rateLimiter) allow(ts uint64) bool {
	cutoff := uint64(0)
	if ts > 1000 {
		cutoff = ts - 1000
	}
	keep := r.recent[:0]
	for _, t := range r.recent {
		if t > cutoff {
			keep = append(keep, t)
		}
	}
	r.recent = keep
	if len(r.recent) >= r.perSecond {
		return false
	}
	r.recent = append(r.recent, ts)
	return true
}

// elementProcessName resolves the event element's owning process through
// the cached pid lookup.
func elementProcessName(eng uia.Engine, el *uia.Element) string {
	if el == nil {
		return ""
	}
	pid := el.ProcessID()
	if pid == 0 {
		return ""
	}
	name, err := uia.ProcessName(eng, pid)
	if err != nil {
		return ""
	}
	return name
}
