package metadata

// AllocationRequest is a type returned from BlockMetadata.CreateAllocationRequest which indicates where and how
// the metadata intends to place a new allocation. It can be committed to the metadata with BlockMetadata.Alloc.
type AllocationRequest struct {
	// BlockOffset is the offset of the header of the free block the allocation will be carved from
	BlockOffset int
	// BlockSize is the payload size of that free block at the time the request was created
	BlockSize int
	// Size is the payload size of the allocated block. It may be larger than what was originally
	// requested: it is rounded up to the control word width, and is the entire free block when
	// splitting would leave a remainder too small to hold an element.
	Size int
	// Remainder is the payload size of the free block split off behind the allocation, or 0 when the
	// whole free block is granted
	Remainder int
}

// PayloadOffset is the offset of the first byte the allocation will own
func (r AllocationRequest) PayloadOffset() int {
	return r.BlockOffset + WordSize
}

// Split returns true if committing the request leaves a free block behind the allocation
func (r AllocationRequest) Split() bool {
	return r.Remainder > 0
}
