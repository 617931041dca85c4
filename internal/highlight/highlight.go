// Package highlight draws transient coloured rectangles with optional text
// labels over live UI element bounds. Rendering goes through a pluggable
// Renderer; the default renderer is inert on platforms without an overlay
// backend, but handle lifetimes behave identically everywhere.
package highlight

import (
	"sync"
	"sync/atomic"
	"time"
)

// BorderWidth is the fixed border thickness in pixels.
const BorderWidth = 6

// DefaultColor is red in BGR form (0xBBGGRR).
const DefaultColor = uint32(0x0000FF)

// DefaultDuration bounds a highlight's lifetime when the caller gives none.
const DefaultDuration = 500 * time.Millisecond

// Rect is the highlighted region in physical pixels.
type Rect struct {
	X, Y, W, H float64
}

// LabelPosition places the text label relative to the element bounds.
type LabelPosition string

const (
	TopLeft     LabelPosition = "top_left"
	Top         LabelPosition = "top"
	TopRight    LabelPosition = "top_right"
	Left        LabelPosition = "left"
	Center      LabelPosition = "center"
	Right       LabelPosition = "right"
	BottomLeft  LabelPosition = "bottom_left"
	Bottom      LabelPosition = "bottom"
	BottomRight LabelPosition = "bottom_right"
)

// FontStyle controls label rendering.
type FontStyle struct {
	Size  int
	Bold  bool
	Color uint32 // BGR
}

// Options configures one highlight.
type Options struct {
	Color         uint32 // BGR; 0 means DefaultColor
	Duration      time.Duration
	Label         string
	LabelPosition LabelPosition
	Font          FontStyle
}

// Renderer draws the overlay. Render returns a closer that removes it; the
// closer must tolerate being called more than once.
type Renderer interface {
	Render(r Rect, opts Options) (func(), error)
}

type nopRenderer struct{}

func (nopRenderer) Render(Rect, Options) (func(), error) { return func() {}, nil }

var (
	rendererMu sync.Mutex
	renderer   Renderer = nopRenderer{}

	liveCount atomic.Int64
)

// SetRenderer installs the platform overlay backend. Passing nil restores
// the inert default.
func SetRenderer(r Renderer) {
	rendererMu.Lock()
	defer rendererMu.Unlock()
	if r == nil {
		renderer = nopRenderer{}
		return
	}
	renderer = r
}

// RecordingActive reports whether any highlight is currently live;
// recording mode is asserted exactly while at least one is.
func RecordingActive() bool { return liveCount.Load() > 0 }

// Handle is one live highlight. Close removes it; it also closes itself
// when its duration elapses.
type Handle struct {
	once  sync.Once
	close func()
	timer *time.Timer
}

// Close removes the highlight. Idempotent.
func (h *Handle) Close() {
	h.once.Do(func() {
		if h.timer != nil {
			h.timer.Stop()
		}
		h.close()
		liveCount.Add(-1)
	})
}

// Show draws a highlight over r and returns its handle.
func Show(r Rect, opts Options) (*Handle, error) {
	if opts.Color == 0 {
		opts.Color = DefaultColor
	}
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.LabelPosition == "" {
		opts.LabelPosition = Top
	}

	rendererMu.Lock()
	rd := renderer
	rendererMu.Unlock()

	closer, err := rd.Render(r, opts)
	if err != nil {
		return nil, err
	}
	liveCount.Add(1)
	h := &Handle{close: closer}
	h.timer = time.AfterFunc(opts.Duration, h.Close)
	return h, nil
}
