package route

import "sync"

// History is an in-memory [Navigator] with browser-like history.
type History struct {
	mu      sync.Mutex
	entries []string
	hard    int
	onHard  func(string)
}

// NewHistory starts at start.
func NewHistory(start string) *History {
	return &History{entries: []string{Clean(start)}}
}

// OnHardRedirect registers fn to observe hard redirects.
func (h *History) OnHardRedirect(fn func(path string)) {
	h.mu.Lock()
	h.onHard = fn
	h.mu.Unlock()
}

// Current returns the current path.
func (h *History) Current() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[len(h.entries)-1]
}

// Entries returns a copy of the history stack, oldest first.
func (h *History) Entries() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.entries...)
}

// Push adds p as a new entry.
func (h *History) Push(p string) {
	h.mu.Lock()
	h.entries = append(h.entries, Clean(p))
	h.mu.Unlock()
}

// Replace swaps the current entry for p.
func (h *History) Replace(p string) {
	h.mu.Lock()
	h.entries[len(h.entries)-1] = Clean(p)
	h.mu.Unlock()
}

// Back pops one entry. It reports false at the first entry.
func (h *History) Back() (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 1 {
		return h.entries[0], false
	}
	h.entries = h.entries[:len(h.entries)-1]
	return h.entries[len(h.entries)-1], true
}

// HardRedirect discards the whole stack, as a full page load would.
func (h *History) HardRedirect(p string) {
	h.mu.Lock()
	h.entries = []string{Clean(p)}
	h.hard++
	fn := h.onHard
	h.mu.Unlock()
	if fn != nil {
		fn(Clean(p))
	}
}

// HardRedirects counts hard redirects so far.
func (h *History) HardRedirects() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hard
}
