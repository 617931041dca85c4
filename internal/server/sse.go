package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/tribhuwan-kumar/terminator-sub004/internal/recorder"
)

// runFeed accumulates a workflow run's step-boundary events and serves any
// number of SSE followers. Unlike the recorder's broadcast (bounded buffers,
// drop-oldest for laggards), a run feed is small — two events per step — so
// the full history is retained and every follower reads it at its own pace
// through a cursor. One runFeed per workflow run.
type runFeed struct {
	mu       sync.Mutex
	cond     *sync.Cond
	events   []map[string]any
	finished bool
}

func newRunFeed() *runFeed {
	f := &runFeed{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Append is the executor's Progress callback. The feed owns the map after
// the call. Events arriving after Finish are dropped.
func (f *runFeed) Append(ev map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.finished {
		return
	}
	f.events = append(f.events, ev)
	f.cond.Broadcast()
}

// Finish marks the run complete and wakes every waiting follower. Safe to
// call more than once.
func (f *runFeed) Finish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = true
	f.cond.Broadcast()
}

// History snapshots the events appended so far.
func (f *runFeed) History() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any{}, f.events...)
}

// next blocks until the event at cursor exists, the feed finishes, or stop
// reports true. The second result is false when no more events will come.
func (f *runFeed) next(cursor int, stopped func() bool) (map[string]any, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for cursor >= len(f.events) && !f.finished && !stopped() {
		f.cond.Wait()
	}
	if cursor < len(f.events) {
		return f.events[cursor], true
	}
	return nil, false
}

// WriteSSE streams a run feed to an HTTP response as Server-Sent Events:
// a replay of everything appended so far, then live events, then a "done"
// frame once the run finishes.
func WriteSSE(w http.ResponseWriter, r *http.Request, f *runFeed) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx proxy compatibility
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	// The feed blocks on a condition variable, which cannot select on the
	// request context; wake waiters when the client goes away.
	unwatch := context.AfterFunc(ctx, func() {
		f.mu.Lock()
		f.cond.Broadcast()
		f.mu.Unlock()
	})
	defer unwatch()

	for cursor := 0; ; cursor++ {
		ev, ok := f.next(cursor, func() bool { return ctx.Err() != nil })
		if !ok {
			if ctx.Err() == nil {
				// The run finished and the follower is fully caught up.
				fmt.Fprintf(w, "event: done\ndata: {}\n\n")
				flusher.Flush()
			}
			return
		}
		data, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}

// WriteRecorderSSE streams a recorder subscription to an HTTP response as
// Server-Sent Events. Lag is handled inside the subscription (logged, the
// stream continues); the handler returns when the recorder stops or the
// client goes away.
func WriteRecorderSSE(w http.ResponseWriter, r *http.Request, sub *recorder.Subscription) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ctx := r.Context()
	for {
		ev, err := sub.Next(ctx)
		if err != nil {
			if err == recorder.ErrStreamClosed {
				fmt.Fprintf(w, "event: done\ndata: {}\n\n")
				flusher.Flush()
			}
			return
		}
		data, err := json.Marshal(map[string]any{
			"event_type": ev.Kind(),
			"timestamp":  ev.Timestamp(),
			"event":      ev,
		})
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}
}
