// internal/logbuf/buffer.go
package logbuf

import (
	"sync"
	"time"
)

// Entry is one recorded log line.
type Entry struct {
	At       time.Time         `json:"at"`
	Severity string            `json:"severity"`
	Level    int               `json:"level"`
	Logger   string            `json:"logger,omitempty"`
	Message  string            `json:"message"`
	Error    string            `json:"error,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
}

// Buffer keeps the last N entries. Oldest entries are dropped.
type Buffer struct {
	mu    sync.RWMutex
	items []Entry
	next  int
	full  bool
}

// NewBuffer returns a buffer holding up to capacity entries (minimum 1).
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{items: make([]Entry, capacity)}
}

func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.next] = e
	b.next = (b.next + 1) % len(b.items)
	if b.next == 0 {
		b.full = true
	}
}

func (b *Buffer) Cap() int { return len(b.items) }

// Tail copies the newest n entries, oldest first. n <= 0 means all.
func (b *Buffer) Tail(n int) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	size := b.next
	start := 0
	if b.full {
		size = len(b.items)
		start = b.next
	}
	if n > 0 && n < size {
		start += size - n
		size = n
	}

	out := make([]Entry, 0, size)
	for i := 0; i < size; i++ {
		out = append(out, b.items[(start+i)%len(b.items)])
	}
	return out
}
