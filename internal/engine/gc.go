package engine

import (
	"sort"

	"github.com/WizzXu/FastKV/internal/buf"
	"github.com/WizzXu/FastKV/internal/segment"
)

// relocation records that the live byte run [oldStart, oldEnd) was shifted
// left by shift bytes during compaction.
type relocation struct {
	oldStart, oldEnd, shift int
}

// runGC compacts tombstoned byte ranges out of the payload (spec.md §4.8):
// merge adjacent tombstones, slide every live run left over the gaps it
// creates, rewrite every index entry's Start/Offset against the resulting
// relocation table, rebuild the checksum, and truncate the backing file if
// the reclaimed tail is large enough to be worth giving back.
func (e *Engine) runGC() error {
	e.invalids.Merge()
	segments := e.invalids.Segments()

	if len(segments) == 0 {
		return nil
	}

	relocations := make([]relocation, 0, len(segments)+1)

	write := HeaderSize
	read := HeaderSize

	slide := func(runEnd int) {
		n := runEnd - read
		if n <= 0 {
			return
		}

		if write != read {
			copy(e.data[write:write+n], e.data[read:read+n])
		}

		if shift := read - write; shift != 0 {
			relocations = append(relocations, relocation{oldStart: read, oldEnd: runEnd, shift: shift})
		}

		write += n
	}

	for _, seg := range segments {
		slide(seg.Start)
		read = seg.End
	}

	slide(e.dataEnd)

	newDataEnd := write

	for key, en := range e.index {
		shift := shiftFor(relocations, en.Start)
		if shift == 0 {
			continue
		}

		en.Start -= shift
		en.Offset -= shift
		e.index[key] = en
	}

	e.checksum = buf.Checksum(e.data[HeaderSize:newDataEnd])
	e.dataEnd = newDataEnd
	e.invalids = segment.New()

	if err := e.writeHeaderAndFlush(0, e.dataEnd); err != nil {
		return err
	}

	e.log.Debugf("gc finish: dataEnd=%d reclaimed=%d", e.dataEnd, len(e.data)-e.dataEnd)

	return e.maybeTruncate()
}

// shiftFor returns the byte shift that applied to the live run containing
// oldStart, via binary search over relocations (sorted by oldStart since
// runs are produced in ascending file order).
func shiftFor(relocations []relocation, oldStart int) int {
	i := sort.Search(len(relocations), func(i int) bool {
		return relocations[i].oldEnd > oldStart
	})

	if i < len(relocations) && relocations[i].oldStart <= oldStart {
		return relocations[i].shift
	}

	return 0
}

// maybeTruncate shrinks the backing file when the reclaimed tail exceeds
// truncateThreshold (spec.md §4.3).
func (e *Engine) maybeTruncate() error {
	spare := len(e.data) - e.dataEnd
	if spare < truncateThreshold() {
		return nil
	}

	if err := e.backend.truncateTo(e.dataEnd); err != nil {
		return err
	}

	e.data = e.backend.bytes()

	e.log.Debugf("truncate finish: size=%d", e.dataEnd)

	return nil
}

// CompactNow forces an immediate GC pass regardless of the usual thresholds,
// a supplemented operation for callers that want deterministic control over
// compaction timing (e.g. before a backup).
func (e *Engine) CompactNow() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrClosed
	}

	e.invalids.Merge()
	if e.invalids.Len() == 0 {
		return nil
	}

	return e.runGC()
}
