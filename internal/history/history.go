// internal/history/history.go
package history

import (
	"sync"

	"github.com/tamzrod/mra4-gateway/internal/device"
)

// Buffer keeps the last N readings in memory. Oldest entries are dropped.
// Nothing is persisted.
type Buffer struct {
	mu    sync.RWMutex
	items []device.Reading
	next  int
	full  bool
}

// New returns a buffer holding up to capacity readings (minimum 1).
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{items: make([]device.Reading, capacity)}
}

// Add appends r, evicting the oldest reading when full.
func (b *Buffer) Add(r device.Reading) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.next] = r
	b.next = (b.next + 1) % len(b.items)
	if b.next == 0 {
		b.full = true
	}
}

// Len is the number of stored readings.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lenLocked()
}

// Cap is the buffer capacity.
func (b *Buffer) Cap() int { return len(b.items) }

// Latest returns the newest reading.
func (b *Buffer) Latest() (device.Reading, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.lenLocked() == 0 {
		return device.Reading{}, false
	}
	i := (b.next - 1 + len(b.items)) % len(b.items)
	return b.items[i], true
}

// Snapshot copies the readings, oldest first.
func (b *Buffer) Snapshot() []device.Reading {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := b.lenLocked()
	out := make([]device.Reading, 0, n)
	start := 0
	if b.full {
		start = b.next
	}
	for i := 0; i < n; i++ {
		out = append(out, b.items[(start+i)%len(b.items)])
	}
	return out
}

func (b *Buffer) lenLocked() int {
	if b.full {
		return len(b.items)
	}
	return b.next
}
