package highlight

import (
	"sync"
	"testing"
	"time"
)

// recordingRenderer tracks render/close pairs.
type recordingRenderer struct {
	mu     sync.Mutex
	shown  []Options
	closed int
}

func (r *recordingRenderer) Render(rect Rect, opts Options) (func(), error) {
	r.mu.Lock()
	r.shown = append(r.shown, opts)
	r.mu.Unlock()
	return func() {
		r.mu.Lock()
		r.closed++
		r.mu.Unlock()
	}, nil
}

func (r *recordingRenderer) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.shown), r.closed
}

func TestShow_AppliesDefaultsAndCloses(t *testing.T) {
	r := &recordingRenderer{}
	SetRenderer(r)
	t.Cleanup(func() { SetRenderer(nil) })

	h, err := Show(Rect{X: 10, Y: 10, W: 100, H: 40}, Options{Label: "CLICK"})
	if err != nil {
		t.Fatalf("Show: %v", err)
	}
	shown, _ := r.counts()
	if shown != 1 {
		t.Fatalf("rendered %d", shown)
	}
	if got := r.shown[0]; got.Color != DefaultColor || got.Duration != DefaultDuration || got.LabelPosition != Top {
		t.Fatalf("defaults not applied: %+v", got)
	}
	if !RecordingActive() {
		t.Fatalf("recording mode not asserted while highlight live")
	}

	h.Close()
	h.Close() // idempotent
	if _, closed := r.counts(); closed != 1 {
		t.Fatalf("close called %d times", closed)
	}
	if RecordingActive() {
		t.Fatalf("recording mode stuck after close")
	}
}

func TestShow_ExpiresAfterDuration(t *testing.T) {
	r := &recordingRenderer{}
	SetRenderer(r)
	t.Cleanup(func() { SetRenderer(nil) })

	if _, err := Show(Rect{W: 10, H: 10}, Options{Duration: 30 * time.Millisecond}); err != nil {
		t.Fatalf("Show: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for {
		if _, closed := r.counts(); closed == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("highlight did not expire")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
