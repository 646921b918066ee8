// Package recall implements the bounded channel recall buffer.
//
// Capacity is allocated in blocks of BlockSize bytes. Each stored line costs
// its text length plus a fixed header; when a new line does not fit, the
// oldest lines are dropped until it does.
package recall

import (
	"iter"
	"time"

	"github.com/crystal-mush/mushchat/pkg/gamedb"
)

// BlockSize is the allocation unit of a buffer, in bytes.
const BlockSize = 8192

// entryOverhead is the accounted header size of one stored line.
const entryOverhead = 16

// Entry kinds.
const (
	KindNormal = 0
	KindSeeAll = 1 // only shown to see-all viewers and the speaker
)

// Entry is one recalled line.
type Entry struct {
	Kind    int
	Speaker gamedb.DBRef
	Text    string
	Time    time.Time
}

func (e Entry) cost() int { return len(e.Text) + entryOverhead }

// Buffer is a FIFO of channel lines bounded by byte size.
type Buffer struct {
	blocks  int
	used    int
	entries []Entry

	// Now stamps appended entries. Defaults to time.Now.
	Now func() time.Time
}

// New returns a buffer of the given number of blocks, or nil if blocks < 1.
func New(blocks int) *Buffer {
	if blocks < 1 {
		return nil
	}
	return &Buffer{blocks: blocks, Now: time.Now}
}

// Blocks returns the allocated block count.
func (b *Buffer) Blocks() int { return b.blocks }

// Size returns the capacity in bytes.
func (b *Buffer) Size() int { return b.blocks * BlockSize }

// Used returns the accounted bytes currently stored.
func (b *Buffer) Used() int { return b.used }

// Len returns the number of stored lines.
func (b *Buffer) Len() int { return len(b.entries) }

// Append stores a line stamped with the current time. Lines larger than the
// whole buffer are discarded.
func (b *Buffer) Append(kind int, speaker gamedb.DBRef, text string) {
	b.add(Entry{Kind: kind, Speaker: speaker, Text: text, Time: b.now()})
}

func (b *Buffer) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b *Buffer) add(e Entry) {
	if e.cost() > b.Size() {
		return
	}
	b.entries = append(b.entries, e)
	b.used += e.cost()
	b.trim()
}

func (b *Buffer) trim() {
	drop := 0
	for b.used > b.Size() && drop < len(b.entries) {
		b.used -= b.entries[drop].cost()
		drop++
	}
	if drop > 0 {
		b.entries = append(b.entries[:0:0], b.entries[drop:]...)
	}
}

// Resize changes the capacity, dropping the oldest lines that no longer fit.
func (b *Buffer) Resize(blocks int) {
	if blocks < 1 {
		blocks = 1
	}
	b.blocks = blocks
	b.trim()
}

// All yields stored lines, oldest first.
func (b *Buffer) All() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range b.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// CountSince returns the number of lines stamped at or after t.
func (b *Buffer) CountSince(t time.Time) int {
	n := 0
	for _, e := range b.entries {
		if !e.Time.Before(t) {
			n++
		}
	}
	return n
}

// CountWithin returns the number of lines stamped no longer than d ago.
func (b *Buffer) CountWithin(d time.Duration) int {
	return b.CountSince(b.now().Add(-d))
}
