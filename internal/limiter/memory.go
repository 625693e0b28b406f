package limiter

import (
	"sync"
	"time"
)

// Memory is an in-process fixed-window limiter keyed by (client address, bracket).
// Counters live only as long as the process; a restart clears all windows.
type Memory struct {
	mu      sync.Mutex
	limits  map[Bracket]Limits
	windows map[windowKey]*window

	now func() time.Time // test hook
}

type windowKey struct {
	addr    string
	bracket Bracket
}

type window struct {
	start time.Time
	count int
}

// NewMemory constructs a limiter with the given per-bracket limits. Brackets
// without an entry are unlimited.
func NewMemory(limits map[Bracket]Limits) *Memory {
	return &Memory{
		limits:  limits,
		windows: make(map[windowKey]*window),
		now:     time.Now,
	}
}

// Allow counts the request against the bracket's current window.
func (m *Memory) Allow(addr string, b Bracket) (bool, time.Duration) {
	lim, ok := m.limits[b]
	if !ok || lim.Max <= 0 {
		return true, 0
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	key := windowKey{addr: addr, bracket: b}
	w := m.windows[key]
	if w == nil || now.Sub(w.start) >= lim.Window {
		m.windows[key] = &window{start: now, count: 1}
		return true, 0
	}
	if w.count >= lim.Max {
		return false, lim.Window - now.Sub(w.start)
	}
	w.count++
	return true, 0
}

// Purge drops windows that ended before now. Called opportunistically so the
// map does not grow with one entry per client forever.
func (m *Memory) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, w := range m.windows {
		lim, ok := m.limits[key.bracket]
		if !ok || now.Sub(w.start) >= lim.Window {
			delete(m.windows, key)
		}
	}
}
