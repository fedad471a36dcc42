// Package tctable holds the timecode event table: an ordered map from the
// audio sample at which an LTC frame ends to the frame number it carried.
package tctable

import (
	"github.com/google/btree"
)

const degree = 32

// Event records that an LTC frame carrying FrameNumber finished at
// EndSample. EndSample is exclusive: it is the first sample after the frame.
type Event struct {
	EndSample   int64  `json:"end_sample"`
	FrameNumber uint64 `json:"frame_number"`
}

// Table is an ordered map keyed by Event.EndSample. It is filled while
// scanning and only read afterwards; it is not safe for concurrent mutation.
type Table struct {
	tree *btree.BTreeG[Event]
}

// New creates an empty table.
func New() *Table {
	return &Table{
		tree: btree.NewG(degree, func(a, b Event) bool {
			return a.EndSample < b.EndSample
		}),
	}
}

// Append inserts ev. An existing entry with the same EndSample is replaced.
func (t *Table) Append(ev Event) {
	t.tree.ReplaceOrInsert(ev)
}

// LowerBound returns the first event whose EndSample is >= sample.
func (t *Table) LowerBound(sample int64) (Event, bool) {
	var (
		found Event
		ok    bool
	)
	t.tree.AscendGreaterOrEqual(Event{EndSample: sample}, func(ev Event) bool {
		found, ok = ev, true
		return false
	})
	return found, ok
}

// UpperBound returns the first event whose EndSample is > sample.
func (t *Table) UpperBound(sample int64) (Event, bool) {
	var (
		found Event
		ok    bool
	)
	t.tree.AscendGreaterOrEqual(Event{EndSample: sample}, func(ev Event) bool {
		if ev.EndSample == sample {
			return true
		}
		found, ok = ev, true
		return false
	})
	return found, ok
}

// Len returns the number of events.
func (t *Table) Len() int {
	return t.tree.Len()
}

// Min returns the earliest event.
func (t *Table) Min() (Event, bool) {
	return t.tree.Min()
}

// Max returns the latest event.
func (t *Table) Max() (Event, bool) {
	return t.tree.Max()
}

// Ascend calls fn for every event in EndSample order until fn returns false.
func (t *Table) Ascend(fn func(Event) bool) {
	t.tree.Ascend(btree.ItemIteratorG[Event](fn))
}

// Events returns a copy of the table contents in order.
func (t *Table) Events() []Event {
	events := make([]Event, 0, t.tree.Len())
	t.Ascend(func(ev Event) bool {
		events = append(events, ev)
		return true
	})
	return events
}
