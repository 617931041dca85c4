package recorder

import (
	"math"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// doubleClickWindowMS pairs two clicks on the same element into a double
// click.
const doubleClickWindowMS = 400

// clickDragFSM arms on mouse-down and, on mouse-up, emits either a Click
// (release within the drag threshold) or a DragDrop (release at or beyond
// it). Exactly one of the two fires per press.
type clickDragFSM struct {
	cfg Config

	armed    bool
	downPos  Position
	downEl   *uia.Element
	downBtn  MouseButton
	downTS   uint64

	lastClickTS uint64
	lastClickEl *uia.Element
}

func newClickDragFSM(cfg Config) *clickDragFSM { return &clickDragFSM{cfg: cfg} }

func (f *clickDragFSM) tick(uint64) []Event { return nil }

func (f *clickDragFSM) feed(ev RawEvent) []Event {
	m, ok := ev.(RawMouse)
	if !ok {
		return nil
	}
	switch m.Type {
	case MouseDown:
		f.armed = true
		f.downPos = m.Pos
		f.downEl = m.Element
		f.downBtn = m.Button
		f.downTS = m.Time
		return nil
	case MouseUp:
		if !f.armed {
			return nil
		}
		f.armed = false
		dist := distance(f.downPos, m.Pos)
		if dist >= f.cfg.MinDragDistance {
			return []Event{f.dragDrop(m, dist)}
		}
		return []Event{f.click(m)}
	}
	return nil
}

func (f *clickDragFSM) dragDrop(up RawMouse, dist float64) Event {
	return DragDrop{
		From:     f.downEl,
		To:       up.Element,
		FromInfo: snapshotElement(f.downEl),
		ToInfo:   snapshotElement(up.Element),
		FromPos:  f.downPos,
		ToPos:    up.Pos,
		Distance: dist,
		Time:     up.Time,
	}
}

func (f *clickDragFSM) click(up RawMouse) Event {
	el := up.Element
	if el == nil {
		el = f.downEl
	}
	interaction := ClickSingle
	switch f.downBtn {
	case ButtonRight:
		interaction = ClickRight
	case ButtonMiddle:
		interaction = ClickMiddle
	default:
		if f.lastClickEl != nil && sameNode(f.lastClickEl, el) && age(up.Time, f.lastClickTS) <= doubleClickWindowMS {
			interaction = ClickDouble
		}
	}
	f.lastClickTS = up.Time
	f.lastClickEl = el

	pos := up.Pos
	return Click{
		Element:     el,
		ElementInfo: snapshotElement(el),
		Pos:         &pos,
		Interaction: interaction,
		ChildText:   childTexts(el),
		Time:        up.Time,
	}
}

// childTexts captures the target's own and direct children's visible text.
func childTexts(el *uia.Element) []string {
	if el == nil {
		return nil
	}
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	add(el.Name())
	kids, err := el.Children()
	if err != nil {
		return out
	}
	for _, k := range kids {
		a := k.Attributes()
		add(a.Name)
		add(a.Value)
	}
	return out
}

func distance(a, b Position) float64 {
	dx := float64(a.X - b.X)
	dy := float64(a.Y - b.Y)
	return math.Hypot(dx, dy)
}
