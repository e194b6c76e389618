package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/blockpool/memutils"
)

// BlockMetadata manages the block layout of a single fixed-size buffer. It carves allocations out of
// the buffer, returns them to the free space, and can enumerate and validate the layout.
type BlockMetadata interface {
	// Init must be called before the BlockMetadata is used. The implementation takes ownership of data
	// and formats it as a single free region. An error is returned if the buffer cannot host a single
	// allocation.
	Init(data []byte) error
	// Size retrieves the size in bytes of the buffer the metadata was initialized with
	Size() int

	// Validate performs internal consistency checks on the metadata. These checks are linear in the number
	// of blocks. When the implementation is functioning correctly, it should not be possible for this
	// method to return an error, but it may assist in diagnosing corrupted buffers.
	Validate() error
	// AllocationCount returns the number of allocations currently live in the buffer
	AllocationCount() int
	// FreeRegionsCount returns the number of free regions in the buffer. Adjacent free regions are
	// always merged, so this is also the number of free blocks.
	FreeRegionsCount() int
	// SumFreeSize returns the number of free payload bytes in the buffer
	SumFreeSize() int
	// IsEmpty will return true if this buffer has no live allocations
	IsEmpty() bool

	// VisitAllRegions will call the provided callback once for each allocated and free region in the
	// buffer, in offset order. offset is the offset of the region's payload and size is the payload
	// size in bytes. Iteration stops at the first error returned by the callback.
	VisitAllRegions(handleBlock func(offset int, size int, free bool) error) error

	// AddDetailedStatistics sums this buffer's allocation statistics into the statistics currently present
	// in the provided memutils.DetailedStatistics object.
	AddDetailedStatistics(stats *memutils.DetailedStatistics)
	// AddStatistics sums this buffer's allocation statistics into the statistics currently present in the
	// provided memutils.Statistics object.
	AddStatistics(stats *memutils.Statistics)

	// Clear instantly frees all allocations
	Clear()
	// BlockJsonData populates a json object with information about this buffer
	BlockJsonData(json jwriter.ObjectState)

	// CreateAllocationRequest retrieves an AllocationRequest object indicating where the implementation
	// would place an allocation of allocSize bytes. The buffer is not modified. The boolean return value
	// is false when no free region can hold the allocation. That object can be passed to Alloc to commit
	// the allocation.
	CreateAllocationRequest(allocSize int) (bool, AllocationRequest, error)
	// Alloc commits an AllocationRequest object. The implementation must return an error if the
	// request no longer matches a free region of the buffer.
	Alloc(request AllocationRequest) error

	// Free returns the allocation whose payload begins at offset to the free space. size must be the
	// allocation size originally passed to CreateAllocationRequest.
	Free(offset int, size int) error
}

// BlockMetadataBase holds the buffer size and json helpers shared by BlockMetadata implementations
type BlockMetadataBase struct {
	size int
}

// Init records the buffer size in bytes
func (m *BlockMetadataBase) Init(size int) {
	m.size = size
}

// Size returns the size of the buffer in bytes
func (m *BlockMetadataBase) Size() int { return m.size }

// BlockJsonData writes the buffer size and the provided free space and allocation counters
func (m *BlockMetadataBase) BlockJsonData(json jwriter.ObjectState, unusedBytes, allocationCount, unusedRangeCount int) {
	json.Name("TotalBytes").Int(m.Size())
	json.Name("UnusedBytes").Int(unusedBytes)
	json.Name("Allocations").Int(allocationCount)
	json.Name("UnusedRanges").Int(unusedRangeCount)
}
