package logbuf

import (
	"time"

	"github.com/cuemby/bandstand/pkg/types"
)

// DefaultCapacity is the number of entries kept when no capacity is configured
const DefaultCapacity = 1000

// Buffer is a fixed-capacity FIFO of recent log entries. Appending to a full
// buffer evicts the oldest entry. Buffer does no locking; the broadcast hub
// owns it.
type Buffer struct {
	entries []types.LogEntry
	head    int // index of the oldest entry
	size    int
	seq     uint64
	lastTS  int64
	now     func() time.Time
}

// New creates a buffer holding at most capacity entries
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		entries: make([]types.LogEntry, capacity),
		now:     time.Now,
	}
}

// SetClock replaces the receipt-time source
func (b *Buffer) SetClock(now func() time.Time) {
	b.now = now
}

// Append stores an entry and returns it as stored. A missing timestamp is set
// to the receipt time; timestamps never go backwards relative to the previous
// entry. Every entry gets the next sequence number.
func (b *Buffer) Append(entry types.LogEntry) types.LogEntry {
	if entry.Level == "" {
		entry.Level = types.LogLevelInfo
	}
	if entry.Timestamp == 0 {
		entry.Timestamp = b.now().UnixMilli()
	}
	if entry.Timestamp < b.lastTS {
		entry.Timestamp = b.lastTS
	}
	b.lastTS = entry.Timestamp

	b.seq++
	entry.Seq = b.seq

	capacity := len(b.entries)
	if b.size < capacity {
		b.entries[(b.head+b.size)%capacity] = entry
		b.size++
	} else {
		b.entries[b.head] = entry
		b.head = (b.head + 1) % capacity
	}
	return entry
}

// Recent returns up to n of the newest entries, oldest first
func (b *Buffer) Recent(n int) []types.LogEntry {
	if n > b.size {
		n = b.size
	}
	if n <= 0 {
		return []types.LogEntry{}
	}

	out := make([]types.LogEntry, n)
	capacity := len(b.entries)
	start := b.head + b.size - n
	for i := 0; i < n; i++ {
		out[i] = b.entries[(start+i)%capacity]
	}
	return out
}

// Len returns the number of stored entries
func (b *Buffer) Len() int {
	return b.size
}

// Cap returns the configured capacity
func (b *Buffer) Cap() int {
	return len(b.entries)
}

// LastSeq returns the sequence number of the newest entry, or 0
func (b *Buffer) LastSeq() uint64 {
	return b.seq
}
