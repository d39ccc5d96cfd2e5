// Package segment tracks tombstoned byte ranges in the log payload and
// drives the garbage-collection thresholds described in spec.md §4.3.
package segment

import "sort"

// BaseGCKeysThreshold triggers GC once this many tombstoned ranges have
// accumulated, regardless of their total byte size.
const BaseGCKeysThreshold = 80

// Segment is a half-open tombstoned byte range [Start, End).
type Segment struct {
	Start int
	End   int
}

func (s Segment) Len() int { return s.End - s.Start }

// Tracker maintains the ordered set of tombstoned ranges plus the running
// total of tombstoned bytes.
type Tracker struct {
	segments     []Segment
	invalidBytes int
}

// New returns an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// Segments returns the tracked ranges in insertion order (not necessarily
// sorted until Merge is called).
func (t *Tracker) Segments() []Segment { return t.segments }

// Len returns the number of tracked ranges.
func (t *Tracker) Len() int { return len(t.segments) }

// InvalidBytes returns the running total of tombstoned bytes.
func (t *Tracker) InvalidBytes() int { return t.invalidBytes }

// CountInvalid appends a new tombstoned range [start, end) and adds its
// length to the running total.
func (t *Tracker) CountInvalid(start, end int) {
	if end <= start {
		return
	}

	t.segments = append(t.segments, Segment{Start: start, End: end})
	t.invalidBytes += end - start
}

// Reset clears all tracked ranges and the running byte total.
func (t *Tracker) Reset() {
	t.segments = nil
	t.invalidBytes = 0
}

// Merge sorts the tracked ranges by start offset and coalesces adjacent
// ranges (end of one equals start of the next). Idempotent: re-merging an
// already-merged tracker produces the same sorted, non-adjacent list
// covering the same byte set.
func (t *Tracker) Merge() {
	if len(t.segments) < 2 {
		return
	}

	sort.Slice(t.segments, func(i, j int) bool {
		return t.segments[i].Start < t.segments[j].Start
	})

	merged := t.segments[:1]

	for _, s := range t.segments[1:] {
		last := &merged[len(merged)-1]
		if s.Start <= last.End {
			if s.End > last.End {
				last.End = s.End
			}

			continue
		}

		merged = append(merged, s)
	}

	t.segments = merged
}

// ShouldGC reports whether GC should trigger given the current dataEnd,
// per the thresholds in spec.md §4.3: BASE_GC_KEYS_THRESHOLD ranges, or a
// byte threshold that scales with the current payload size.
func (t *Tracker) ShouldGC(dataEnd int) bool {
	if len(t.segments) >= BaseGCKeysThreshold {
		return true
	}

	return t.invalidBytes >= bytesThreshold(dataEnd)
}

func bytesThreshold(dataEnd int) int {
	const (
		kib4  = 4 * 1024
		kib8  = 8 * 1024
		kib16 = 16 * 1024
		kib64 = 64 * 1024
	)

	switch {
	case dataEnd <= kib16:
		return kib4
	case dataEnd <= kib64:
		return kib8
	default:
		return kib16
	}
}
