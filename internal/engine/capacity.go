package engine

import "fmt"

// pageSize is the page granularity used by the capacity policy. Real page
// size (via os.Getpagesize) varies by platform; a fixed 4KiB matches the
// overwhelming common case and keeps capacity math reproducible across
// platforms and in tests, same tradeoff the source's fixed-page assumption
// makes.
const pageSize = 4096

// doubleLimit is the capacity above which growth switches from doubling to
// fixed increments (spec.md §4.4).
const doubleLimit = 2 * pageSize * 2 // max(2*pageSize, 16KiB) = 16KiB when pageSize=4096
const minDoubleLimit = 16 * 1024

func effectiveDoubleLimit() int {
	if doubleLimit > minDoubleLimit {
		return doubleLimit
	}

	return minDoubleLimit
}

// truncateThreshold is the minimum spare capacity (capacity - dataEnd) that
// triggers a file truncation (spec.md §4.3): 4x page size, minimum 32KiB.
func truncateThreshold() int {
	t := 4 * pageSize
	if t < 32*1024 {
		return 32 * 1024
	}

	return t
}

// newCapacity computes the next backing-storage capacity for a required
// size, given the current capacity, per spec.md §4.4: round up to at least
// one page, double until above DOUBLE_LIMIT, then grow by DOUBLE_LIMIT
// increments. Fails for required sizes at or beyond 256MiB.
func newCapacity(current, required int) (int, error) {
	if required >= MaxFileSize {
		return 0, fmt.Errorf("%w: required size %d exceeds max file size %d", ErrDataTooLarge, required, MaxFileSize)
	}

	cap := current
	if cap < pageSize {
		cap = pageSize
	}

	limit := effectiveDoubleLimit()

	for cap < required {
		if cap > limit {
			cap += limit
		} else {
			cap *= 2
		}
	}

	if cap >= MaxFileSize {
		return 0, fmt.Errorf("%w: computed capacity %d exceeds max file size %d", ErrDataTooLarge, cap, MaxFileSize)
	}

	return cap, nil
}
