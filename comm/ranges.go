package comm

import (
	"math"
)

// Range is a contiguous block of globally numbered degrees of freedom owned
// by one participant.
type Range struct {
	Start int // First global index of the block
	Count int // Number of indices in the block
}

// End returns one past the last global index of the block.
func (r Range) End() int { return r.Start + r.Count }

// BlockRanges splits total degrees of freedom into parts consecutive blocks,
// one per participant rank. Blocks are ceil(total/parts) wide with the tail
// clamped into the last nonempty block, so trailing ranks may own empty
// ranges when total is small.
func BlockRanges(total, parts int) []Range {
	if parts < 1 {
		panic("comm: BlockRanges needs at least one part")
	}
	if total < 0 {
		panic("comm: BlockRanges needs a non-negative total")
	}

	ranges := make([]Range, parts)
	if total == 0 {
		return ranges
	}

	per := int(math.Ceil(float64(total) / float64(parts)))
	for rank := 0; rank < parts; rank++ {
		start := rank * per
		if start > total {
			start = total
		}
		end := start + per
		if end > total {
			end = total
		}
		ranges[rank] = Range{Start: start, Count: end - start}
	}
	return ranges
}

// RangeStats summarizes the load balance of a block partitioning.
type RangeStats struct {
	NumRanges int
	MinCount  int
	MaxCount  int
	AvgCount  float64
	Imbalance float64 // MaxCount / AvgCount
}

// Statistics computes load balance metrics for a set of ranges.
func Statistics(ranges []Range) RangeStats {
	stats := RangeStats{
		NumRanges: len(ranges),
		MinCount:  math.MaxInt32,
	}

	total := 0
	for _, r := range ranges {
		total += r.Count
		if r.Count < stats.MinCount {
			stats.MinCount = r.Count
		}
		if r.Count > stats.MaxCount {
			stats.MaxCount = r.Count
		}
	}

	if len(ranges) > 0 {
		stats.AvgCount = float64(total) / float64(len(ranges))
	}
	if stats.AvgCount > 0 {
		stats.Imbalance = float64(stats.MaxCount) / stats.AvgCount
	}
	return stats
}
