package memutils

import "math"

// Statistics summarizes the block layout of one or more pools
type Statistics struct {
	// BlockCount is the number of blocks, free or allocated
	BlockCount int
	// AllocationCount is the number of allocated blocks
	AllocationCount int
	// PoolBytes is the total capacity of the pool buffers, control words included
	PoolBytes int
	// AllocationBytes is the number of payload bytes held by allocated blocks
	AllocationBytes int
	// OverheadBytes is the number of bytes consumed by block headers and footers
	OverheadBytes int
}

func (s *Statistics) Clear() {
	s.BlockCount = 0
	s.AllocationCount = 0
	s.PoolBytes = 0
	s.AllocationBytes = 0
	s.OverheadBytes = 0
}

// FreeBytes is the number of payload bytes held by free blocks
func (s *Statistics) FreeBytes() int {
	return s.PoolBytes - s.AllocationBytes - s.OverheadBytes
}

func (s *Statistics) AddStatistics(other *Statistics) {
	s.BlockCount += other.BlockCount
	s.AllocationCount += other.AllocationCount
	s.PoolBytes += other.PoolBytes
	s.AllocationBytes += other.AllocationBytes
	s.OverheadBytes += other.OverheadBytes
}

// DetailedStatistics extends Statistics with the size extremes of free and allocated blocks.
// Call Clear before accumulating so that the minimums start at math.MaxInt.
type DetailedStatistics struct {
	Statistics
	FreeRangeCount    int
	AllocationSizeMin int
	AllocationSizeMax int
	FreeRangeSizeMin  int
	FreeRangeSizeMax  int
}

func (s *DetailedStatistics) Clear() {
	s.Statistics.Clear()
	s.FreeRangeCount = 0
	s.AllocationSizeMin = math.MaxInt
	s.AllocationSizeMax = 0
	s.FreeRangeSizeMin = math.MaxInt
	s.FreeRangeSizeMax = 0
}

func (s *DetailedStatistics) AddFreeRange(size int) {
	s.BlockCount++
	s.FreeRangeCount++

	s.FreeRangeSizeMin = min(s.FreeRangeSizeMin, size)
	s.FreeRangeSizeMax = max(s.FreeRangeSizeMax, size)
}

func (s *DetailedStatistics) AddAllocation(size int) {
	s.BlockCount++
	s.AllocationCount++
	s.AllocationBytes += size

	s.AllocationSizeMin = min(s.AllocationSizeMin, size)
	s.AllocationSizeMax = max(s.AllocationSizeMax, size)
}

func (s *DetailedStatistics) AddDetailedStatistics(other *DetailedStatistics) {
	s.Statistics.AddStatistics(&other.Statistics)
	s.FreeRangeCount += other.FreeRangeCount

	s.FreeRangeSizeMin = min(s.FreeRangeSizeMin, other.FreeRangeSizeMin)
	s.FreeRangeSizeMax = max(s.FreeRangeSizeMax, other.FreeRangeSizeMax)
	s.AllocationSizeMin = min(s.AllocationSizeMin, other.AllocationSizeMin)
	s.AllocationSizeMax = max(s.AllocationSizeMax, other.AllocationSizeMax)
}
