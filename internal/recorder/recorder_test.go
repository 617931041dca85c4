package recorder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia"
	"github.com/tribhuwan-kumar/terminator-sub004/internal/uia/uiatest"
)

type fixture struct {
	eng *uiatest.Engine
	rec *Recorder
	sim *SimSource
	sub *Subscription
}

func newFixture(t *testing.T, cfg Config, windows ...*uiatest.Node) *fixture {
	t.Helper()
	eng := uiatest.NewEngine(windows...)
	rec := New("test-workflow", cfg, eng)
	sim := NewSimSource()
	rec.AttachSource(sim)
	sub := rec.EventStream()
	if err := rec.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = rec.Stop() })
	return &fixture{eng: eng, rec: rec, sim: sim, sub: sub}
}

// waitFor drains the subscription until match returns true or the deadline
// passes.
func waitFor(t *testing.T, sub *Subscription, timeout time.Duration, match func(Event) bool) Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			t.Fatalf("waiting for event: %v", err)
		}
		if match(ev) {
			return ev
		}
	}
}

func drainUntilQuiet(sub *Subscription, quiet time.Duration) []Event {
	var out []Event
	for {
		ctx, cancel := context.WithTimeout(context.Background(), quiet)
		ev, err := sub.Next(ctx)
		cancel()
		if err != nil {
			return out
		}
		out = append(out, ev)
	}
}

func element(t *testing.T, eng *uiatest.Engine, expr string) *uia.Element {
	t.Helper()
	el, err := uia.ParseLocator(eng, expr).WithTimeout(time.Second).First(context.Background())
	if err != nil {
		t.Fatalf("locate %q: %v", expr, err)
	}
	return el
}

// S3: five keystrokes then blur yield exactly one typed completion.
func TestTextInput_TypedCompletionOnBlur(t *testing.T) {
	f := newFixture(t, DefaultConfig(),
		uiatest.N("Window", "Form",
			uiatest.N("Edit", "FirstName").WithFocusable(),
			uiatest.N("Button", "Submit"),
		).WithPID(100),
	)
	field := element(t, f.eng, "role:Edit && name:FirstName")
	button := element(t, f.eng, "role:Button && name:Submit")

	f.sim.EmitFocus(field, 1000)
	for i, ch := range "hello" {
		ts := uint64(1040 + i*40)
		f.sim.EmitKeystroke(int('A')+int(ch-'a'), ch, Modifiers{}, ts)
	}
	field.Node().(*uiatest.Node).SetValueDirect("hello")
	f.sim.EmitFocus(button, 1300)

	ev := waitFor(t, f.sub, 2*time.Second, func(ev Event) bool {
		_, ok := ev.(TextInputCompleted)
		return ok
	})
	tic := ev.(TextInputCompleted)
	if tic.Text != "hello" {
		t.Fatalf("text: %q", tic.Text)
	}
	if tic.KeystrokeCount != 5 {
		t.Fatalf("keystrokes: %d", tic.KeystrokeCount)
	}
	if tic.Method != InputTyped {
		t.Fatalf("method: %s", tic.Method)
	}
	if tic.DurationMS > 300 {
		t.Fatalf("duration: %d", tic.DurationMS)
	}

	// No second completion without new keystrokes.
	f.sim.EmitFocus(field, 1400)
	f.sim.EmitFocus(button, 1500)
	for _, extra := range drainUntilQuiet(f.sub, 300*time.Millisecond) {
		if _, dup := extra.(TextInputCompleted); dup {
			t.Fatalf("duplicate completion emitted")
		}
	}
}

func TestTextInput_EnterCompletesAndPasteClassified(t *testing.T) {
	f := newFixture(t, DefaultConfig(),
		uiatest.N("Window", "Form",
			uiatest.N("Edit", "Search").WithFocusable(),
		).WithPID(100),
	)
	field := element(t, f.eng, "role:Edit")

	f.sim.EmitFocus(field, 1000)
	f.sim.EmitClipboard("copy", "pasted text", 1010)
	f.sim.EmitKeystroke('V', 'v', Modifiers{Ctrl: true}, 1050)
	field.Node().(*uiatest.Node).SetValueDirect("pasted text")
	f.sim.EmitKey(vkEnter, 0, true, Modifiers{}, 1100)

	ev := waitFor(t, f.sub, 2*time.Second, func(ev Event) bool {
		_, ok := ev.(TextInputCompleted)
		return ok
	})
	tic := ev.(TextInputCompleted)
	if tic.Method != InputPaste {
		t.Fatalf("method: %s, want paste", tic.Method)
	}
	if tic.Text != "pasted text" {
		t.Fatalf("text: %q", tic.Text)
	}
}

// The inactivity timeout flushes a non-empty buffer once the timeline
// advances past it.
func TestTextInput_TimeoutCompletion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TextInputCompletionTimeoutMS = 200
	f := newFixture(t, cfg,
		uiatest.N("Window", "Form",
			uiatest.N("Edit", "Notes").WithFocusable(),
		).WithPID(100),
	)
	field := element(t, f.eng, "role:Edit")

	f.sim.EmitFocus(field, 1000)
	f.sim.EmitKeystroke('A', 'a', Modifiers{}, 1020)
	field.Node().(*uiatest.Node).SetValueDirect("a")
	// Advance the event timeline beyond the completion timeout.
	f.sim.EmitMouseMove(Position{X: 5, Y: 5}, 1500)

	ev := waitFor(t, f.sub, 2*time.Second, func(ev Event) bool {
		_, ok := ev.(TextInputCompleted)
		return ok
	})
	if tic := ev.(TextInputCompleted); tic.KeystrokeCount != 1 || tic.Text != "a" {
		t.Fatalf("timeout completion: %+v", tic)
	}
}

// S4: Alt+Tab hotkey precedes the switch, which is attributed AltTab.
func TestAppSwitch_AltTabAttribution(t *testing.T) {
	f := newFixture(t, DefaultConfig(),
		uiatest.N("Window", "Alpha").WithPID(100),
		uiatest.N("Window", "Beta").WithPID(200),
	)
	f.eng.SetProcessName(100, "alpha.exe")
	f.eng.SetProcessName(200, "beta.exe")
	uia.ResetProcessNameCache()

	winA := element(t, f.eng, "role:Window && name:Alpha")
	winB := element(t, f.eng, "role:Window && name:Beta")

	f.sim.EmitFocus(winA, 1000)
	f.sim.EmitKey(vkAlt, 0, true, Modifiers{}, 5000)
	f.sim.EmitKey(vkTab, 0, true, Modifiers{Alt: true}, 5010)
	f.sim.EmitKey(vkTab, 0, false, Modifiers{Alt: true}, 5020)
	f.sim.EmitKey(vkAlt, 0, false, Modifiers{}, 5030)
	f.sim.EmitFocus(winB, 5100)

	hk := waitFor(t, f.sub, 2*time.Second, func(ev Event) bool {
		h, ok := ev.(Hotkey)
		return ok && h.Combination == "Alt+Tab"
	}).(Hotkey)
	if hk.Action != "Switch Window" {
		t.Fatalf("hotkey action: %q", hk.Action)
	}

	sw := waitFor(t, f.sub, 2*time.Second, func(ev Event) bool {
		_, ok := ev.(ApplicationSwitch)
		return ok
	}).(ApplicationSwitch)
	if sw.Method != SwitchAltTab {
		t.Fatalf("method: %s, want alt_tab", sw.Method)
	}
	if sw.FromApp != "alpha.exe" || sw.ToApp != "beta.exe" {
		t.Fatalf("attribution: %s -> %s", sw.FromApp, sw.ToApp)
	}
	if sw.Time-hk.Time > 1500 {
		t.Fatalf("switch outside the attribution window: %d", sw.Time-hk.Time)
	}
}

// A switch with no qualifying trigger within the window is programmatic.
func TestAppSwitch_ProgrammaticWithoutTrigger(t *testing.T) {
	f := newFixture(t, DefaultConfig(),
		uiatest.N("Window", "Alpha").WithPID(100),
		uiatest.N("Window", "Beta").WithPID(200),
	)
	winA := element(t, f.eng, "role:Window && name:Alpha")
	winB := element(t, f.eng, "role:Window && name:Beta")

	f.sim.EmitFocus(winA, 1000)
	f.sim.EmitFocus(winB, 9000)

	sw := waitFor(t, f.sub, 2*time.Second, func(ev Event) bool {
		_, ok := ev.(ApplicationSwitch)
		return ok
	}).(ApplicationSwitch)
	if sw.Method != SwitchProgrammatic {
		t.Fatalf("method: %s, want programmatic", sw.Method)
	}
	if sw.DwellMS != 8000 {
		t.Fatalf("dwell: %d", sw.DwellMS)
	}
}

// A dwell below the threshold suppresses the switch event.
func TestAppSwitch_DwellThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AppSwitchDwellTimeThresholdMS = 500
	f := newFixture(t, cfg,
		uiatest.N("Window", "Alpha").WithPID(100),
		uiatest.N("Window", "Beta").WithPID(200),
	)
	winA := element(t, f.eng, "role:Window && name:Alpha")
	winB := element(t, f.eng, "role:Window && name:Beta")

	f.sim.EmitFocus(winA, 1000)
	f.sim.EmitFocus(winB, 1100) // 100ms dwell < 500ms threshold

	for _, ev := range drainUntilQuiet(f.sub, 300*time.Millisecond) {
		if _, ok := ev.(ApplicationSwitch); ok {
			t.Fatalf("switch emitted below dwell threshold")
		}
	}
}

func TestClickAndDragDrop(t *testing.T) {
	f := newFixture(t, DefaultConfig(),
		uiatest.N("Window", "Canvas",
			uiatest.N("Button", "Source").WithBounds(0, 0, 50, 20),
			uiatest.N("Button", "Target").WithBounds(200, 200, 50, 20),
		).WithPID(100),
	)
	src := element(t, f.eng, "name:Source")
	dst := element(t, f.eng, "name:Target")

	// Click: press/release inside the drag threshold.
	f.sim.EmitMouseDown(ButtonLeft, Position{X: 10, Y: 10}, src, 1000)
	f.sim.EmitMouseUp(ButtonLeft, Position{X: 12, Y: 10}, src, 1050)
	click := waitFor(t, f.sub, 2*time.Second, func(ev Event) bool {
		_, ok := ev.(Click)
		return ok
	}).(Click)
	if click.Interaction != ClickSingle {
		t.Fatalf("interaction: %s", click.Interaction)
	}
	if len(click.ChildText) == 0 || click.ChildText[0] != "Source" {
		t.Fatalf("child text: %v", click.ChildText)
	}

	// Drag: press on Source, release on Target well past the threshold.
	f.sim.EmitMouseDown(ButtonLeft, Position{X: 10, Y: 10}, src, 2000)
	f.sim.EmitMouseUp(ButtonLeft, Position{X: 210, Y: 210}, dst, 2200)
	drag := waitFor(t, f.sub, 2*time.Second, func(ev Event) bool {
		_, ok := ev.(DragDrop)
		return ok
	}).(DragDrop)
	if drag.Distance < 280 {
		t.Fatalf("distance: %f", drag.Distance)
	}
	if drag.FromInfo.Name != "Source" || drag.ToInfo.Name != "Target" {
		t.Fatalf("drag endpoints: %+v -> %+v", drag.FromInfo, drag.ToInfo)
	}
}

func TestBrowserTabNavigation_NewTabAndNavigate(t *testing.T) {
	f := newFixture(t, DefaultConfig(),
		uiatest.N("Window", "New Tab - Chrome",
			uiatest.N("Edit", "Address and search bar"),
		).WithPID(300),
	)
	f.eng.SetProcessName(300, "chrome.exe")
	uia.ResetProcessNameCache()
	addr := element(t, f.eng, "role:Edit")

	f.sim.EmitKey('T', 't', true, Modifiers{Ctrl: true}, 1000)
	f.sim.EmitPropertyChange(addr, "value", "https://news.ycombinator.com", 1400)

	nav := waitFor(t, f.sub, 2*time.Second, func(ev Event) bool {
		_, ok := ev.(BrowserTabNavigation)
		return ok
	}).(BrowserTabNavigation)
	if nav.Action != TabNew {
		t.Fatalf("action: %s, want new_tab", nav.Action)
	}
	if nav.Browser != "chrome" || nav.ToURL != "https://news.ycombinator.com" {
		t.Fatalf("navigation: %+v", nav)
	}

	// A later URL change with no tab hotkey is a plain navigation.
	f.sim.EmitPropertyChange(addr, "value", "https://example.org", 5000)
	nav2 := waitFor(t, f.sub, 2*time.Second, func(ev Event) bool {
		n, ok := ev.(BrowserTabNavigation)
		return ok && n.ToURL == "https://example.org"
	}).(BrowserTabNavigation)
	if nav2.Action != TabNavigate {
		t.Fatalf("action: %s, want navigate", nav2.Action)
	}
	if nav2.FromURL != "https://news.ycombinator.com" {
		t.Fatalf("from_url: %q", nav2.FromURL)
	}
}

func TestIgnoreLists_SuppressFocusAndGlobEntries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IgnoreWindowTitles = append(cfg.IgnoreWindowTitles, "*.tmp")
	f := newFixture(t, cfg,
		uiatest.N("Window", "1Password - Vault").WithPID(100),
		uiatest.N("Window", "scratch.tmp").WithPID(200),
		uiatest.N("Window", "Notepad").WithPID(300),
	)
	vault := element(t, f.eng, "name:1Password - Vault")
	tmp := element(t, f.eng, "name:scratch.tmp")
	note := element(t, f.eng, "name:Notepad")

	f.sim.EmitFocus(vault, 1000)
	f.sim.EmitFocus(tmp, 2000)
	f.sim.EmitFocus(note, 3000)

	// Only the Notepad focus survives; with no prior process it produces no
	// switch, so look for any event referencing the ignored windows.
	for _, ev := range drainUntilQuiet(f.sub, 300*time.Millisecond) {
		if sw, ok := ev.(ApplicationSwitch); ok {
			if sw.ToApp == "1password.exe" || sw.FromApp == "1password.exe" {
				t.Fatalf("ignored application leaked: %+v", sw)
			}
		}
	}
}

func TestClipboard_Truncation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxClipboardContentLength = 8
	f := newFixture(t, cfg, uiatest.N("Window", "W").WithPID(100))

	f.sim.EmitClipboard("copy", "0123456789abcdef", 1000)
	ev := waitFor(t, f.sub, 2*time.Second, func(ev Event) bool {
		_, ok := ev.(Clipboard)
		return ok
	}).(Clipboard)
	if ev.Raw.Content != "01234567" || !ev.Raw.Truncated {
		t.Fatalf("truncation: %+v", ev.Raw)
	}
}

// Property 10: LowEnergy caps emitted events at 10 over any one-second
// window.
func TestLowEnergy_RateCap(t *testing.T) {
	cfg := LowEnergyConfig()
	cfg.EventProcessingDelayMS = 0 // keep the test fast; the cap is what matters
	f := newFixture(t, cfg,
		uiatest.N("Window", "W",
			uiatest.N("Button", "B"),
		).WithPID(100),
	)
	btn := element(t, f.eng, "role:Button")

	for i := 0; i < 40; i++ {
		ts := uint64(1000 + i*20)
		f.sim.EmitMouseDown(ButtonLeft, Position{X: 1, Y: 1}, btn, ts)
		f.sim.EmitMouseUp(ButtonLeft, Position{X: 1, Y: 1}, btn, ts+5)
	}

	events := drainUntilQuiet(f.sub, 500*time.Millisecond)
	counts := map[uint64]int{}
	for _, ev := range events {
		counts[ev.Timestamp()/1000]++
	}
	for window, n := range counts {
		if n > 10 {
			t.Fatalf("window %d emitted %d events, cap is 10", window, n)
		}
	}
}

func TestRecorder_StopFinalisesAndClosesStream(t *testing.T) {
	f := newFixture(t, DefaultConfig(), uiatest.N("Window", "W").WithPID(100))
	f.sim.EmitClipboard("copy", "x", 1000)
	waitFor(t, f.sub, 2*time.Second, func(ev Event) bool {
		_, ok := ev.(Clipboard)
		return ok
	})

	if err := f.rec.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	// Idempotent finalisation on the buffer.
	f.rec.Workflow().Finish(2000)

	if f.rec.Workflow().Len() == 0 {
		t.Fatalf("workflow buffer is empty")
	}
	for {
		_, err := f.sub.Next(context.Background())
		if err != nil {
			if !errors.Is(err, ErrStreamClosed) {
				t.Fatalf("expected ErrStreamClosed, got %v", err)
			}
			break
		}
	}
}

func TestRecorder_SaveWritesJSON(t *testing.T) {
	f := newFixture(t, DefaultConfig(), uiatest.N("Window", "W").WithPID(100))
	f.sim.EmitClipboard("copy", "x", 1000)
	waitFor(t, f.sub, 2*time.Second, func(ev Event) bool {
		_, ok := ev.(Clipboard)
		return ok
	})
	_ = f.rec.Stop()

	path := t.TempDir() + "/recording.json"
	if err := f.rec.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
}
