package recorder

import (
	"runtime"
	"sync"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// RawSource is one low-level hook (mouse, keyboard, clipboard, or
// accessibility notifications). Sources push into an unbounded queue drained
// by the dispatcher; Start must not block.
type RawSource interface {
	Name() string
	Start(emit func(RawEvent)) error
	Stop() error
}

// rawQueue is the unbounded staging buffer, shared by all of a recorder's
// sources, between hook callbacks (which arrive on OS threads) and the
// dispatcher task.
type rawQueue struct {
	mu     sync.Mutex
	items  []RawEvent
	signal chan struct{}
	closed bool
}

func newRawQueue() *rawQueue {
	return &rawQueue{signal: make(chan struct{}, 1)}
}

func (q *rawQueue) push(ev RawEvent) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, ev)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// pop removes the oldest pending event without blocking.
func (q *rawQueue) pop() (RawEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	ev := q.items[0]
	q.items = q.items[1:]
	return ev, true
}

func (q *rawQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// platformSources returns the native hook set for this OS. The raw hook
// bindings live outside this module; without them recording degrades to
// whatever simulated sources the caller attaches.
func platformSources() ([]RawSource, error) {
	switch runtime.GOOS {
	case "windows", "darwin", "linux":
		return nil, uia.ErrPlatform("native input hooks unavailable: no backend registered for %s", runtime.GOOS)
	default:
		return nil, uia.ErrPlatform("unsupported platform: %s", runtime.GOOS)
	}
}

// SimSource is an injectable event source used by tests and the simulated
// CLI mode. Emit* helpers push fully-formed raw events as the hooks would.
type SimSource struct {
	mu   sync.Mutex
	emit func(RawEvent)
}

func NewSimSource() *SimSource { return &SimSource{} }

func (s *SimSource) Name() string { return "sim" }

func (s *SimSource) Start(emit func(RawEvent)) error {
	s.mu.Lock()
	s.emit = emit
	s.mu.Unlock()
	return nil
}

func (s *SimSource) Stop() error {
	s.mu.Lock()
	s.emit = nil
	s.mu.Unlock()
	return nil
}

// Emit injects one raw event. Events emitted before Start or after Stop are
// dropped, matching hook behaviour.
func (s *SimSource) Emit(ev RawEvent) {
	s.mu.Lock()
	emit := s.emit
	s.mu.Unlock()
	if emit != nil {
		emit(ev)
	}
}

func (s *SimSource) EmitMouseDown(btn MouseButton, pos Position, el *uia.Element, ts uint64) {
	s.Emit(RawMouse{Type: MouseDown, Button: btn, Pos: pos, Element: el, Time: ts})
}

func (s *SimSource) EmitMouseUp(btn MouseButton, pos Position, el *uia.Element, ts uint64) {
	s.Emit(RawMouse{Type: MouseUp, Button: btn, Pos: pos, Element: el, Time: ts})
}

func (s *SimSource) EmitMouseMove(pos Position, ts uint64) {
	s.Emit(RawMouse{Type: MouseMove, Pos: pos, Time: ts})
}

func (s *SimSource) EmitKey(vk int, char rune, down bool, mods Modifiers, ts uint64) {
	s.Emit(RawKeyboard{VK: vk, Char: char, Down: down, Modifiers: mods, Time: ts})
}

func (s *SimSource) EmitKeystroke(vk int, char rune, mods Modifiers, ts uint64) {
	s.EmitKey(vk, char, true, mods, ts)
	s.EmitKey(vk, char, false, mods, ts+1)
}

func (s *SimSource) EmitFocus(el *uia.Element, ts uint64) {
	s.Emit(RawFocus{Element: el, Time: ts})
}

func (s *SimSource) EmitPropertyChange(el *uia.Element, property, value string, ts uint64) {
	s.Emit(RawPropertyChange{Element: el, Property: property, Value: value, Time: ts})
}

func (s *SimSource) EmitClipboard(op, content string, ts uint64) {
	s.Emit(RawClipboard{Op: op, Content: content, Time: ts})
}
