package uia

import (
	"sync"
	"time"
)

// Process-name lookups hit the OS on every call on real backends, and the
// identity hash performs one per element. Cache pid->name process-wide with
// a short TTL; stale entries are refreshed atomically under the lock.
const processNameTTL = 2 * time.Second

type procEntry struct {
	name    string
	fetched time.Time
}

var (
	procMu    sync.Mutex
	procCache = map[int]procEntry{}

	// procNow is swapped by tests to exercise expiry.
	procNow = time.Now
)

// ProcessName resolves pid through eng, serving repeat lookups from the
// process-wide cache for up to 2 seconds.
func ProcessName(eng Engine, pid int) (string, error) {
	now := procNow()
	procMu.Lock()
	if e, ok := procCache[pid]; ok && now.Sub(e.fetched) < processNameTTL {
		procMu.Unlock()
		return e.name, nil
	}
	procMu.Unlock()

	name, err := eng.ProcessNameByPID(pid)
	if err != nil {
		return "", err
	}

	procMu.Lock()
	procCache[pid] = procEntry{name: name, fetched: now}
	procMu.Unlock()
	return name, nil
}

// ResetProcessNameCache drops all cached entries. Used by tests and by
// engine shutdown.
func ResetProcessNameCache() {
	procMu.Lock()
	procCache = map[int]procEntry{}
	procMu.Unlock()
}
