package recorder

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/highlight"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
)

// tickInterval drives time-based FSM transitions (text-input completion
// timeouts) while the raw queue is idle.
const tickInterval = 50 * time.Millisecond

// stopDrainDelay lets in-flight hook callbacks land before teardown.
const stopDrainDelay = 50 * time.Millisecond

// Recorder ingests raw input/accessibility events, synthesises semantic
// events, and fans them out over a bounded broadcast. One Recorder records
// one named workflow; restarting a stopped recorder is not supported.
type Recorder struct {
	name      string
	cfg       Config
	eng       uia.Engine
	sessionID string

	workflow *RecordedWorkflow
	bcast    *broadcast
	queue    *rawQueue
	synth    *synthesizer

	mu      sync.Mutex
	sources []RawSource
	started bool

	stopping atomic.Bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	lastTS        uint64
	lastMouseMove uint64
	lastWheel     uint64

	hlMu      sync.Mutex
	hlHandles []*highlight.Handle
}

// New builds a recorder for one named workflow.
func New(name string, cfg Config, eng uia.Engine) *Recorder {
	return &Recorder{
		name:      name,
		cfg:       cfg,
		eng:       eng,
		sessionID: ulid.Make().String(),
		workflow:  NewRecordedWorkflow(name),
		bcast:     newBroadcast(),
		queue:     newRawQueue(),
		synth:     newSynthesizer(cfg, eng),
	}
}

// SessionID identifies this recording session.
func (r *Recorder) SessionID() string { return r.sessionID }

// Workflow exposes the append-only recording buffer.
func (r *Recorder) Workflow() *RecordedWorkflow { return r.workflow }

// AttachSource adds an event source before Start. Tests and the simulated
// mode attach SimSource; production attaches the platform hooks.
func (r *Recorder) AttachSource(src RawSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, src)
}

// EventStream subscribes to the semantic event broadcast. Each subscription
// is independent and lazy; a lagging subscriber skips events (logged) but
// the stream only ends when the recorder stops.
func (r *Recorder) EventStream() *Subscription { return r.bcast.subscribe() }

// Start installs hooks and spawns the dispatcher and sidecar tasks.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return fmt.Errorf("recorder already started")
	}
	if len(r.sources) == 0 {
		srcs, err := platformSources()
		if err != nil {
			return err
		}
		r.sources = srcs
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	for _, src := range r.sources {
		if err := src.Start(r.queue.push); err != nil {
			cancel()
			return fmt.Errorf("start source %s: %w", src.Name(), err)
		}
	}

	// The workflow consumer subscribes before dispatch begins so no event
	// is lost to startup ordering. It exits on stream close, after
	// draining, so Stop never loses buffered events.
	wfSub := r.bcast.subscribe()
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.consumeIntoWorkflow(wfSub)
	}()

	if r.cfg.EnableHighlighting {
		hlSub := r.bcast.subscribe()
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.runHighlighter(runCtx, hlSub)
		}()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.dispatch(runCtx)
	}()

	r.started = true
	return nil
}

// Stop uninstalls hooks, drains briefly, finalises the recorded workflow,
// and closes the broadcast. Active highlights are closed immediately.
func (r *Recorder) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return fmt.Errorf("recorder not started")
	}
	sources := r.sources
	r.mu.Unlock()

	r.stopping.Store(true)
	time.Sleep(stopDrainDelay)

	for _, src := range sources {
		if err := src.Stop(); err != nil {
			log.Printf("recorder: stop source %s: %v", src.Name(), err)
		}
	}
	r.queue.close()
	if r.cancel != nil {
		r.cancel()
	}
	// Closing the broadcast lets the workflow consumer drain its buffer and
	// exit; the highlight task is aborted by the context instead.
	r.bcast.close()
	r.wg.Wait()

	r.closeAllHighlights()
	r.workflow.Finish(r.nowMS())
	return nil
}

// Save writes the recorded workflow to path.
func (r *Recorder) Save(path string) error { return r.workflow.Save(path) }

func (r *Recorder) nowMS() uint64 { return uint64(time.Now().UnixMilli()) }

// dispatch drains the raw queue, stamps and filters events, feeds the FSM
// set, and publishes semantic events.
func (r *Recorder) dispatch(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		ev, ok := r.queue.pop()
		if !ok {
			if r.stopping.Load() {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-r.queue.signal:
				continue
			case <-ticker.C:
				r.publishAll(r.synth.tick(r.lastTS))
				continue
			}
		}
		r.process(ev)

		if delay := r.cfg.EffectiveProcessingDelayMS(); delay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Duration(delay) * time.Millisecond):
			}
		}
	}
}

func (r *Recorder) process(ev RawEvent) {
	ev = r.stamp(ev)
	if r.ignored(ev) {
		return
	}
	if !r.throttleAllows(ev) {
		return
	}
	if r.noiseFiltered(ev) {
		return
	}

	out := r.synth.feed(ev)
	out = append(out, r.rawPassthrough(ev)...)
	r.publishAll(out)
}

func (r *Recorder) publishAll(events []Event) {
	for _, ev := range events {
		r.bcast.publish(ev)
	}
}

// stamp assigns a monotonic millisecond timestamp to events arriving
// without one and keeps the timeline non-decreasing.
func (r *Recorder) stamp(ev RawEvent) RawEvent {
	ts := ev.TS()
	if ts == 0 {
		ts = r.nowMS()
	}
	if ts < r.lastTS {
		ts = r.lastTS
	}
	r.lastTS = ts
	switch e := ev.(type) {
	case RawMouse:
		e.Time = ts
		return e
	case RawKeyboard:
		e.Time = ts
		return e
	case RawFocus:
		e.Time = ts
		return e
	case RawPropertyChange:
		e.Time = ts
		return e
	case RawClipboard:
		e.Time = ts
		return e
	}
	return ev
}

// ignored applies the ignore lists: an event whose window title, focus/
// property text, or owning process matches any list is suppressed before
// synthesis.
func (r *Recorder) ignored(ev RawEvent) bool {
	var el *uia.Element
	switch e := ev.(type) {
	case RawFocus:
		el = e.Element
		if el != nil && matchesIgnoreList(el.Name(), r.cfg.IgnoreFocusPatterns) {
			return true
		}
	case RawPropertyChange:
		el = e.Element
		if matchesIgnoreList(e.Value, r.cfg.IgnorePropertyPatterns) {
			return true
		}
		if el != nil && matchesIgnoreList(el.Name(), r.cfg.IgnorePropertyPatterns) {
			return true
		}
	case RawMouse:
		el = e.Element
	default:
		return false
	}
	if el == nil {
		return false
	}
	if matchesIgnoreList(el.Name(), r.cfg.IgnoreWindowTitles) {
		return true
	}
	if proc := elementProcessName(r.eng, el); proc != "" && matchesIgnoreList(proc, r.cfg.IgnoreApplications) {
		return true
	}
	return false
}

// throttleAllows coalesces mouse moves and wheel ticks to one per throttle
// window. Text-input and focus events are never throttled.
func (r *Recorder) throttleAllows(ev RawEvent) bool {
	m, ok := ev.(RawMouse)
	if !ok {
		return true
	}
	switch m.Type {
	case MouseMove:
		if m.Time-r.lastMouseMove < r.cfg.MouseMoveThrottleMS {
			return false
		}
		r.lastMouseMove = m.Time
	case MouseWheel:
		if m.Time-r.lastWheel < r.cfg.MouseMoveThrottleMS {
			return false
		}
		r.lastWheel = m.Time
	}
	return true
}

// noiseFiltered applies the performance-mode noise filters.
func (r *Recorder) noiseFiltered(ev RawEvent) bool {
	switch e := ev.(type) {
	case RawMouse:
		if (e.Type == MouseMove || e.Type == MouseWheel) && r.cfg.ShouldFilterMouseNoise() {
			return true
		}
	case RawKeyboard:
		if r.cfg.ShouldFilterKeyboardNoise() && e.Down &&
			!e.Modifiers.Ctrl && !e.Modifiers.Alt && !e.Modifiers.Win {
			return true
		}
	}
	return false
}

// rawPassthrough wraps raw events for subscribers that consume the
// low-level stream alongside semantic events.
func (r *Recorder) rawPassthrough(ev RawEvent) []Event {
	switch e := ev.(type) {
	case RawMouse:
		if !r.cfg.RecordMouse {
			return nil
		}
		return r.synth.limit([]Event{Mouse{Raw: e}})
	case RawKeyboard:
		if !r.cfg.RecordKeyboard {
			return nil
		}
		return r.synth.limit([]Event{Keyboard{Raw: e}})
	case RawClipboard:
		if !r.cfg.RecordClipboard {
			return nil
		}
		if r.cfg.MaxClipboardContentLength > 0 && len(e.Content) > r.cfg.MaxClipboardContentLength {
			e.Content = e.Content[:r.cfg.MaxClipboardContentLength]
			e.Truncated = true
		}
		return r.synth.limit([]Event{Clipboard{Raw: e}})
	}
	return nil
}

func (r *Recorder) consumeIntoWorkflow(sub *Subscription) {
	for {
		ev, err := sub.Next(context.Background())
		if err != nil {
			return
		}
		r.workflow.Add(RecordedEvent{Timestamp: ev.Timestamp(), Event: ev})
	}
}

// highlightAllowlist selects which semantic events the sidecar draws.
func highlightAllowed(ev Event) bool {
	switch ev.(type) {
	case Click, TextInputCompleted, ApplicationSwitch, BrowserTabNavigation, DragDrop, Hotkey:
		return true
	}
	return false
}

// runHighlighter renders highlights for allowlisted events, evicting the
// oldest live handle when the concurrent cap is reached.
func (r *Recorder) runHighlighter(ctx context.Context, sub *Subscription) {
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			return
		}
		if !highlightAllowed(ev) {
			continue
		}
		el := ev.UIElement()
		if el == nil {
			continue
		}
		label := ""
		if r.cfg.ShowHighlightLabels {
			label = eventLabel(ev)
		}
		h, err := el.Highlight(
			r.cfg.HighlightColor,
			time.Duration(r.cfg.HighlightDurationMS)*time.Millisecond,
			label,
			highlight.Top,
			nil,
		)
		if err != nil {
			continue
		}
		r.hlMu.Lock()
		max := r.cfg.HighlightMaxConcurrent
		if max <= 0 {
			max = 10
		}
		if len(r.hlHandles) >= max {
			oldest := r.hlHandles[0]
			r.hlHandles = r.hlHandles[1:]
			oldest.Close()
		}
		r.hlHandles = append(r.hlHandles, h)
		r.hlMu.Unlock()
	}
}

func (r *Recorder) closeAllHighlights() {
	r.hlMu.Lock()
	handles := r.hlHandles
	r.hlHandles = nil
	r.hlMu.Unlock()
	for _, h := range handles {
		h.Close()
	}
}
