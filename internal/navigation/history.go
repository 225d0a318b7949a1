// Package navigation keeps the in-process history of viewed sets.
package navigation

import (
	"sync"

	"github.com/pscheid92/tracklive/internal/domain"
)

// Entry is one history record.
type Entry struct {
	Path string
	User domain.UserID
	Set  domain.SetID
}

// PopListener is called when Back or Forward restores an entry.
type PopListener func(set domain.SetID)

// History is a browser-style navigation stack. Push drops any forward
// entries; Back and Forward move the cursor and report the restored set.
type History struct {
	mu      sync.Mutex
	entries []Entry
	cursor  int
	onPop   PopListener
}

func NewHistory() *History {
	return &History{cursor: -1}
}

// OnPop registers the listener for restored entries, replacing any previous one.
func (h *History) OnPop(fn PopListener) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPop = fn
}

func (h *History) Push(user domain.UserID, set domain.SetID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = append(h.entries[:h.cursor+1], Entry{Path: Path(user, set), User: user, Set: set})
	h.cursor = len(h.entries) - 1
}

// Back moves one entry back. It reports false at the start of history.
func (h *History) Back() bool {
	return h.move(-1)
}

// Forward moves one entry forward. It reports false at the end of history.
func (h *History) Forward() bool {
	return h.move(1)
}

func (h *History) move(delta int) bool {
	h.mu.Lock()
	next := h.cursor + delta
	if next < 0 || next >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.cursor = next
	set := h.entries[next].Set
	onPop := h.onPop
	h.mu.Unlock()

	if onPop != nil {
		onPop(set)
	}
	return true
}

// Current returns the entry under the cursor.
func (h *History) Current() (Entry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor < 0 {
		return Entry{}, false
	}
	return h.entries[h.cursor], true
}

// Entries returns a copy of the whole stack.
func (h *History) Entries() []Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Entry(nil), h.entries...)
}
