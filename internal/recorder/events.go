package recorder

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// Position is an OS logical-pixel coordinate pair.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// MouseButton identifies the pressed button.
type MouseButton string

const (
	ButtonLeft   MouseButton = "left"
	ButtonRight  MouseButton = "right"
	ButtonMiddle MouseButton = "middle"
)

// MouseEventType tags raw mouse transitions.
type MouseEventType string

const (
	MouseDown  MouseEventType = "down"
	MouseUp    MouseEventType = "up"
	MouseMove  MouseEventType = "move"
	MouseWheel MouseEventType = "wheel"
)

// Modifiers is the modifier-key snapshot at event time.
type Modifiers struct {
	Ctrl  bool `json:"ctrl,omitempty"`
	Alt   bool `json:"alt,omitempty"`
	Shift bool `json:"shift,omitempty"`
	Win   bool `json:"win,omitempty"`
}

// RawEvent is a normalized low-level hook notification. The dispatcher
// stamps events lacking a timestamp with monotonic milliseconds since epoch.
type RawEvent interface {
	raw()
	TS() uint64
}

// RawMouse is a button transition, move, or wheel tick.
type RawMouse struct {
	Type    MouseEventType `json:"type"`
	Button  MouseButton    `json:"button,omitempty"`
	Pos     Position       `json:"position"`
	Wheel   int            `json:"wheel_delta,omitempty"`
	Time    uint64         `json:"ts"`
	Element *uia.Element   `json:"-"`
}

// RawKeyboard is a key transition with the modifier snapshot.
type RawKeyboard struct {
	VK        int       `json:"vk"`
	Scancode  int       `json:"scancode,omitempty"`
	Char      rune      `json:"-"`
	Down      bool      `json:"down"`
	Modifiers Modifiers `json:"modifiers"`
	Time      uint64    `json:"ts"`
}

// RawFocus is an accessibility focus change.
type RawFocus struct {
	Element *uia.Element `json:"-"`
	Time    uint64       `json:"ts"`
}

// RawPropertyChange is an accessibility property change notification.
type RawPropertyChange struct {
	Element  *uia.Element `json:"-"`
	Property string       `json:"property"`
	Value    string       `json:"value"`
	Time     uint64       `json:"ts"`
}

// RawClipboard is a post-change clipboard notification. Content is read
// lazily by the source and truncated to the configured maximum.
type RawClipboard struct {
	Op        string `json:"op"`
	Content   string `json:"content,omitempty"`
	Truncated bool   `json:"truncated,omitempty"`
	Time      uint64 `json:"ts"`
}

func (RawMouse) raw()          {}
func (RawKeyboard) raw()       {}
func (RawFocus) raw()          {}
func (RawPropertyChange) raw() {}
func (RawClipboard) raw()      {}

func (e RawMouse) TS() uint64          { return e.Time }
func (e RawKeyboard) TS() uint64       { return e.Time }
func (e RawFocus) TS() uint64          { return e.Time }
func (e RawPropertyChange) TS() uint64 { return e.Time }
func (e RawClipboard) TS() uint64      { return e.Time }

// ElementInfo is the serializable snapshot of an event's element reference.
type ElementInfo struct {
	Role        string `json:"role"`
	Name        string `json:"name,omitempty"`
	NativeID    string `json:"native_id,omitempty"`
	ProcessID   int    `json:"process_id,omitempty"`
	ProcessName string `json:"process_name,omitempty"`
}

func snapshotElement(el *uia.Element) *ElementInfo {
	if el == nil {
		return nil
	}
	a := el.Attributes()
	info := &ElementInfo{Role: a.Role, Name: a.Name, NativeID: a.NativeID, ProcessID: a.ProcessID}
	if name, err := el.ProcessName(); err == nil {
		info.ProcessName = name
	}
	return info
}

// InputMethod classifies how a text field reached its final value.
type InputMethod string

const (
	InputTyped        InputMethod = "typed"
	InputPaste        InputMethod = "paste"
	InputSuggestion   InputMethod = "suggestion"
	InputAutoComplete InputMethod = "autocomplete"
)

// InteractionType distinguishes click flavours.
type InteractionType string

const (
	ClickSingle InteractionType = "single"
	ClickDouble InteractionType = "double"
	ClickRight  InteractionType = "right"
	ClickMiddle InteractionType = "middle"
)

// SwitchMethod attributes an application switch to its trigger.
type SwitchMethod string

const (
	SwitchAltTab       SwitchMethod = "alt_tab"
	SwitchWindowClick  SwitchMethod = "window_click"
	SwitchTaskbarClick SwitchMethod = "taskbar_click"
	SwitchProgrammatic SwitchMethod = "programmatic"
)

// TabAction tags browser tab navigation events.
type TabAction string

const (
	TabNew      TabAction = "new_tab"
	TabClose    TabAction = "close_tab"
	TabSwitch   TabAction = "switch_tab"
	TabNavigate TabAction = "navigate"
)

// Event is a semantic workflow event synthesised from raw hooks.
type Event interface {
	event()
	Kind() string
	Timestamp() uint64
	// UIElement returns the live element the event refers to, if any. The
	// highlight sidecar draws over its bounds.
	UIElement() *uia.Element
}

// Click is a completed press/release on one element.
type Click struct {
	Element     *uia.Element    `json:"-"`
	ElementInfo *ElementInfo    `json:"element,omitempty"`
	Pos         *Position       `json:"position,omitempty"`
	Interaction InteractionType `json:"interaction_type"`
	ChildText   []string        `json:"child_text,omitempty"`
	Time        uint64          `json:"ts"`
}

// TextInputCompleted marks the end of one text-entry episode on a field.
type TextInputCompleted struct {
	Field          *uia.Element `json:"-"`
	FieldInfo      *ElementInfo `json:"field,omitempty"`
	Text           string       `json:"text"`
	Method         InputMethod  `json:"input_method"`
	KeystrokeCount int          `json:"keystroke_count"`
	DurationMS     uint64       `json:"duration_ms"`
	Time           uint64       `json:"ts"`
}

// Hotkey is a modifier combination press.
type Hotkey struct {
	Combination string `json:"combination"`
	Action      string `json:"action,omitempty"`
	Time        uint64 `json:"ts"`
}

// ApplicationSwitch marks focus moving between processes.
type ApplicationSwitch struct {
	FromApp     string       `json:"from_application,omitempty"`
	ToApp       string       `json:"to_application"`
	Method      SwitchMethod `json:"method"`
	DwellMS     uint64       `json:"dwell_time_ms"`
	Element     *uia.Element `json:"-"`
	ElementInfo *ElementInfo `json:"element,omitempty"`
	Time        uint64       `json:"ts"`
}

// BrowserTabNavigation marks tab lifecycle and navigation inside a known
// browser.
type BrowserTabNavigation struct {
	Browser string    `json:"browser"`
	FromURL string    `json:"from_url,omitempty"`
	ToURL   string    `json:"to_url,omitempty"`
	Action  TabAction `json:"action"`
	Time    uint64    `json:"ts"`
}

// DragDrop is a press-move-release across the drag threshold.
type DragDrop struct {
	From     *uia.Element `json:"-"`
	To       *uia.Element `json:"-"`
	FromInfo *ElementInfo `json:"from,omitempty"`
	ToInfo   *ElementInfo `json:"to,omitempty"`
	FromPos  Position     `json:"from_position"`
	ToPos    Position     `json:"to_position"`
	Distance float64      `json:"distance"`
	Time     uint64       `json:"ts"`
}

// Mouse passes a raw mouse event through to subscribers.
type Mouse struct {
	Raw RawMouse `json:"raw"`
}

// Keyboard passes a raw keyboard event through to subscribers.
type Keyboard struct {
	Raw RawKeyboard `json:"raw"`
}

// Clipboard passes a raw clipboard event through to subscribers.
type Clipboard struct {
	Raw RawClipboard `json:"raw"`
}

// TextSelection marks a completed selection gesture.
type TextSelection struct {
	Text        string       `json:"text,omitempty"`
	Element     *uia.Element `json:"-"`
	ElementInfo *ElementInfo `json:"element,omitempty"`
	Time        uint64       `json:"ts"`
}

// FileOpened marks a file opened through a recorded interaction.
type FileOpened struct {
	Path string `json:"path"`
	Time uint64 `json:"ts"`
}

func (Click) event()                {}
func (TextInputCompleted) event()   {}
func (Hotkey) event()               {}
func (ApplicationSwitch) event()    {}
func (BrowserTabNavigation) event() {}
func (DragDrop) event()             {}
func (Mouse) event()                {}
func (Keyboard) event()             {}
func (Clipboard) event()            {}
func (TextSelection) event()        {}
func (FileOpened) event()           {}

func (Click) Kind() string                { return "click" }
func (TextInputCompleted) Kind() string   { return "text_input_completed" }
func (Hotkey) Kind() string               { return "hotkey" }
func (ApplicationSwitch) Kind() string    { return "application_switch" }
func (BrowserTabNavigation) Kind() string { return "browser_tab_navigation" }
func (DragDrop) Kind() string             { return "drag_drop" }
func (Mouse) Kind() string                { return "mouse" }
func (Keyboard) Kind() string             { return "keyboard" }
func (Clipboard) Kind() string            { return "clipboard" }
func (TextSelection) Kind() string        { return "text_selection" }
func (FileOpened) Kind() string           { return "file_opened" }

func (e Click) Timestamp() uint64                { return e.Time }
func (e TextInputCompleted) Timestamp() uint64   { return e.Time }
func (e Hotkey) Timestamp() uint64               { return e.Time }
func (e ApplicationSwitch) Timestamp() uint64    { return e.Time }
func (e BrowserTabNavigation) Timestamp() uint64 { return e.Time }
func (e DragDrop) Timestamp() uint64             { return e.Time }
func (e Mouse) Timestamp() uint64                { return e.Raw.Time }
func (e Keyboard) Timestamp() uint64             { return e.Raw.Time }
func (e Clipboard) Timestamp() uint64            { return e.Raw.Time }
func (e TextSelection) Timestamp() uint64        { return e.Time }
func (e FileOpened) Timestamp() uint64           { return e.Time }

func (e Click) UIElement() *uia.Element              { return e.Element }
func (e TextInputCompleted) UIElement() *uia.Element { return e.Field }
func (Hotkey) UIElement() *uia.Element               { return nil }
func (e ApplicationSwitch) UIElement() *uia.Element  { return e.Element }
func (BrowserTabNavigation) UIElement() *uia.Element { return nil }
func (e DragDrop) UIElement() *uia.Element           { return e.To }
func (e Mouse) UIElement() *uia.Element              { return e.Raw.Element }
func (Keyboard) UIElement() *uia.Element             { return nil }
func (Clipboard) UIElement() *uia.Element            { return nil }
func (e TextSelection) UIElement() *uia.Element      { return e.Element }
func (FileOpened) UIElement() *uia.Element           { return nil }

// eventLabel returns the short on-screen label the highlight sidecar shows.
func eventLabel(ev Event) string {
	switch e := ev.(type) {
	case Click:
		return "CLICK"
	case TextInputCompleted:
		return "TYPE"
	case Hotkey:
		return "HOTKEY"
	case ApplicationSwitch:
		return "SWITCH"
	case BrowserTabNavigation:
		return "TAB"
	case DragDrop:
		return "DRAG"
	case Keyboard:
		return "KEY"
	case Clipboard:
		return "CLIPBOARD"
	case TextSelection:
		return "SELECT"
	case Mouse:
		switch e.Raw.Button {
		case ButtonRight:
			return "RCLICK"
		case ButtonMiddle:
			return "MCLICK"
		}
		return "MOUSE"
	}
	return "EVENT"
}

// RecordedEvent is one entry of a recorded workflow.
type RecordedEvent struct {
	Timestamp uint64         `json:"timestamp"`
	Event     Event          `json:"-"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

func (r RecordedEvent) MarshalJSON() ([]byte, error) {
	type alias RecordedEvent
	return json.Marshal(struct {
		alias
		Kind  string `json:"event_type"`
		Event Event  `json:"event"`
	}{alias: alias(r), Kind: r.Event.Kind(), Event: r.Event})
}

// RecordedWorkflow is the append-only buffer of recorded events. Readers
// copy snapshots; finalisation is idempotent.
type RecordedWorkflow struct {
	mu       sync.Mutex
	name     string
	startTS  uint64
	endTS    uint64
	events   []RecordedEvent
	finished bool
}

// NewRecordedWorkflow starts an empty recording buffer.
func NewRecordedWorkflow(name string) *RecordedWorkflow {
	return &RecordedWorkflow{name: name}
}

// Add appends one event.
func (w *RecordedWorkflow) Add(ev RecordedEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return
	}
	if w.startTS == 0 {
		w.startTS = ev.Timestamp
	}
	w.events = append(w.events, ev)
}

// Finish marks the recording complete. Safe to call more than once.
func (w *RecordedWorkflow) Finish(ts uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return
	}
	w.finished = true
	w.endTS = ts
}

// Len returns the number of recorded events.
func (w *RecordedWorkflow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.events)
}

// Snapshot copies the current event list.
func (w *RecordedWorkflow) Snapshot() []RecordedEvent {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]RecordedEvent{}, w.events...)
}

// Save writes the recording as indented JSON.
func (w *RecordedWorkflow) Save(path string) error {
	w.mu.Lock()
	doc := struct {
		Name     string          `json:"name"`
		StartTS  uint64          `json:"start_ts,omitempty"`
		EndTS    uint64          `json:"end_ts,omitempty"`
		Finished bool            `json:"finished"`
		Events   []RecordedEvent `json:"events"`
	}{w.name, w.startTS, w.endTS, w.finished, append([]RecordedEvent{}, w.events...)}
	w.mu.Unlock()

	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode workflow: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}
