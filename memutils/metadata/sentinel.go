package metadata

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/blockpool/memutils"
)

// SentinelBlockMetadata is a BlockMetadata implementation that keeps all of its bookkeeping inside the
// buffer it manages. Every block is framed by a header and a footer control word holding the block's
// payload size, negated while the block is allocated. Allocation is first-fit, and freeing a block
// merges it with free neighbours on either side, so two free blocks are never adjacent.
//
// Apart from a handful of counters, SentinelBlockMetadata holds no state outside the buffer and never
// allocates after Init.
type SentinelBlockMetadata struct {
	BlockMetadataBase

	data []byte
	// minAllocation is the smallest payload a free block may have: the element size rounded up to
	// WordSize. Splitting never produces a free block smaller than this.
	minAllocation int

	allocCount int
	freeCount  int
	freeSize   int
}

var _ BlockMetadata = &SentinelBlockMetadata{}

// NewSentinelBlockMetadata creates metadata for a buffer holding elements of elementSize bytes.
// Init must be called before the metadata is used.
func NewSentinelBlockMetadata(elementSize int) *SentinelBlockMetadata {
	return &SentinelBlockMetadata{
		minAllocation: memutils.AlignUp(elementSize, WordSize),
	}
}

func (m *SentinelBlockMetadata) Init(data []byte) error {
	size := len(data)

	if m.minAllocation < WordSize {
		return errors.Wrap(memutils.ErrInvalidConfiguration, "element size must be at least one byte")
	}

	if !memutils.IsAligned(size, WordSize) {
		return errors.Wrapf(memutils.ErrInvalidConfiguration, "capacity %d is not a multiple of the %d-byte control word", size, WordSize)
	}

	if size-BlockOverhead < m.minAllocation {
		return errors.Wrapf(memutils.ErrInvalidConfiguration, "capacity %d cannot hold a %d-byte element and its two control words", size, m.minAllocation)
	}

	if size-BlockOverhead > MaxPayloadSize {
		return errors.Wrapf(memutils.ErrInvalidConfiguration, "capacity %d exceeds the range of a control word", size)
	}

	m.BlockMetadataBase.Init(size)
	m.data = data
	m.Clear()

	return nil
}

// MinAllocation is the smallest payload size in bytes of any block in the layout
func (m *SentinelBlockMetadata) MinAllocation() int {
	return m.minAllocation
}

func (m *SentinelBlockMetadata) Clear() {
	clear(m.data)

	payload := m.size - BlockOverhead
	writeWord(m.data, 0, payload)
	writeWord(m.data, m.size-WordSize, payload)

	m.allocCount = 0
	m.freeCount = 1
	m.freeSize = payload
}

// Begin returns a cursor at the first block of the buffer
func (m *SentinelBlockMetadata) Begin() MutableCursor {
	return MutableCursor{Cursor: Cursor{data: m.data, offset: 0}}
}

// End returns a cursor one past the last block of the buffer. It must not be dereferenced.
func (m *SentinelBlockMetadata) End() MutableCursor {
	return MutableCursor{Cursor: Cursor{data: m.data, offset: m.size}}
}

// Word reads the raw control word at offset, which must be a multiple of WordSize inside the buffer.
// offset does not have to be a block boundary.
func (m *SentinelBlockMetadata) Word(offset int) (int, error) {
	err := m.checkWordOffset(offset)
	if err != nil {
		return 0, err
	}

	return readWord(m.data, offset), nil
}

// SetWord overwrites the raw control word at offset. Nothing is done to keep the layout consistent:
// this exists for diagnostics and tests.
func (m *SentinelBlockMetadata) SetWord(offset int, value int) error {
	err := m.checkWordOffset(offset)
	if err != nil {
		return err
	}

	writeWord(m.data, offset, value)
	return nil
}

func (m *SentinelBlockMetadata) checkWordOffset(offset int) error {
	if offset < 0 || offset > m.size-WordSize || !memutils.IsAligned(offset, WordSize) {
		return errors.Wrapf(memutils.ErrInvalidArgument, "offset %d is not a control word position in a %d-byte buffer", offset, m.size)
	}
	return nil
}

func (m *SentinelBlockMetadata) Validate() error {
	if len(m.data) != m.size {
		return errors.Errorf("metadata was sized for %d bytes but manages a %d-byte buffer", m.size, len(m.data))
	}

	var allocCount, freeCount, freeSize int
	prevFree := false
	offset := 0

	for offset != m.size {
		if offset+BlockOverhead > m.size {
			return errors.Errorf("block at offset %d overruns the end of the buffer at %d", offset, m.size)
		}

		header := readWord(m.data, offset)
		size := payloadSize(header)
		if size == 0 {
			return errors.Errorf("block at offset %d has an empty payload", offset)
		}

		if !memutils.IsAligned(size, WordSize) {
			return errors.Errorf("block at offset %d has a payload of %d bytes, which is not a multiple of %d", offset, size, WordSize)
		}

		footer := offset + WordSize + size
		if footer+WordSize > m.size {
			return errors.Errorf("block at offset %d with a %d-byte payload overruns the end of the buffer at %d", offset, size, m.size)
		}

		if readWord(m.data, footer) != header {
			return errors.Errorf("block at offset %d has header %d but footer %d", offset, header, readWord(m.data, footer))
		}

		free := header > 0
		if free {
			if prevFree {
				return errors.Errorf("free block at offset %d follows another free block", offset)
			}

			if size < m.minAllocation {
				return errors.Errorf("free block at offset %d has %d bytes, which cannot hold a %d-byte element", offset, size, m.minAllocation)
			}

			freeCount++
			freeSize += size
		} else {
			allocCount++
		}

		prevFree = free
		offset = footer + WordSize
	}

	if allocCount != m.allocCount {
		return errors.Errorf("the allocation count of the metadata is %d, but the allocated blocks only added up to %d", m.allocCount, allocCount)
	}

	if freeCount != m.freeCount {
		return errors.Errorf("the free block count of the metadata is %d, but there were %d free blocks", m.freeCount, freeCount)
	}

	if freeSize != m.freeSize {
		return errors.Errorf("the free size of the metadata is %d, but the free blocks added up to %d", m.freeSize, freeSize)
	}

	return nil
}

func (m *SentinelBlockMetadata) AllocationCount() int {
	return m.allocCount
}

func (m *SentinelBlockMetadata) FreeRegionsCount() int {
	return m.freeCount
}

func (m *SentinelBlockMetadata) SumFreeSize() int {
	return m.freeSize
}

func (m *SentinelBlockMetadata) IsEmpty() bool {
	return m.allocCount == 0
}

func (m *SentinelBlockMetadata) VisitAllRegions(handleBlock func(offset int, size int, free bool) error) error {
	end := m.End()
	for c := m.Begin(); !c.Equal(end); c = c.Next() {
		err := handleBlock(c.PayloadOffset(), c.PayloadSize(), c.IsFree())
		if err != nil {
			return err
		}
	}

	return nil
}

func (m *SentinelBlockMetadata) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.PoolBytes += m.size

	end := m.End()
	for c := m.Begin(); !c.Equal(end); c = c.Next() {
		stats.OverheadBytes += BlockOverhead

		if c.IsFree() {
			stats.AddFreeRange(c.PayloadSize())
		} else {
			stats.AddAllocation(c.PayloadSize())
		}
	}
}

func (m *SentinelBlockMetadata) AddStatistics(stats *memutils.Statistics) {
	blockCount := m.allocCount + m.freeCount

	stats.BlockCount += blockCount
	stats.AllocationCount += m.allocCount
	stats.PoolBytes += m.size
	stats.OverheadBytes += blockCount * BlockOverhead
	stats.AllocationBytes += m.size - m.freeSize - blockCount*BlockOverhead
}

func (m *SentinelBlockMetadata) BlockJsonData(json jwriter.ObjectState) {
	m.BlockMetadataBase.BlockJsonData(json, m.SumFreeSize(), m.AllocationCount(), m.FreeRegionsCount())
}

func (m *SentinelBlockMetadata) CreateAllocationRequest(allocSize int) (bool, AllocationRequest, error) {
	var allocRequest AllocationRequest

	if allocSize < 1 {
		return false, allocRequest, errors.Wrapf(memutils.ErrInvalidArgument, "invalid allocation size: %d", allocSize)
	}

	memutils.DebugValidate(m)

	// Is the buffer big enough?
	if allocSize > m.freeSize {
		return false, allocRequest, nil
	}

	need := m.payloadFor(allocSize)

	end := m.End()
	for c := m.Begin(); !c.Equal(end); c = c.Next() {
		blockSize := c.Value()

		// Allocated blocks are negative and always skipped
		if blockSize < need {
			continue
		}

		allocRequest.BlockOffset = c.Offset()
		allocRequest.BlockSize = blockSize

		remainder := blockSize - need - BlockOverhead
		if remainder < m.minAllocation {
			allocRequest.Size = blockSize
		} else {
			allocRequest.Size = need
			allocRequest.Remainder = remainder
		}

		return true, allocRequest, nil
	}

	return false, allocRequest, nil
}

func (m *SentinelBlockMetadata) Alloc(request AllocationRequest) error {
	offset := request.BlockOffset
	if offset < 0 || offset > m.size-BlockOverhead || !memutils.IsAligned(offset, WordSize) {
		return errors.Errorf("allocation request has an invalid block offset %d", offset)
	}

	if request.BlockSize <= 0 || readWord(m.data, offset) != request.BlockSize {
		return errors.Errorf("allocation request expected a free %d-byte block at offset %d, but the block is no longer there", request.BlockSize, offset)
	}

	if request.Size < m.minAllocation {
		return errors.Errorf("allocation request grants %d bytes, below the %d-byte minimum", request.Size, m.minAllocation)
	}

	if request.Split() {
		if request.Remainder < m.minAllocation || request.Size+BlockOverhead+request.Remainder != request.BlockSize {
			return errors.Errorf("allocation request splits a %d-byte block into %d and %d bytes", request.BlockSize, request.Size, request.Remainder)
		}
	} else if request.Size != request.BlockSize {
		return errors.Errorf("allocation request grants %d bytes of a %d-byte block without splitting it", request.Size, request.BlockSize)
	}

	writeWord(m.data, offset, -request.Size)
	writeWord(m.data, offset+WordSize+request.Size, -request.Size)

	if request.Split() {
		remainder := offset + BlockOverhead + request.Size
		writeWord(m.data, remainder, request.Remainder)
		writeWord(m.data, remainder+WordSize+request.Remainder, request.Remainder)

		m.freeSize -= request.Size + BlockOverhead
	} else {
		m.freeCount--
		m.freeSize -= request.Size
	}

	m.allocCount++

	memutils.DebugValidate(m)
	return nil
}

// Free returns the allocation whose payload begins at offset to the free space, merging it with
// the free blocks immediately before and after it. size must match the size originally requested;
// a block that was granted whole because splitting would have left too little behind accepts the
// size that produced it.
func (m *SentinelBlockMetadata) Free(offset int, size int) error {
	header := offset - WordSize
	if header < 0 || header > m.size-BlockOverhead || !memutils.IsAligned(header, WordSize) || !m.isBlockHeader(header) {
		return errors.Wrapf(memutils.ErrInvalidArgument, "offset %d is not the payload of a block", offset)
	}

	value := readWord(m.data, header)
	if value >= 0 {
		return errors.Wrapf(memutils.ErrInvalidArgument, "block at offset %d is not allocated", offset)
	}

	blockSize := -value
	if !m.matchesRequest(blockSize, size) {
		return errors.Wrapf(memutils.ErrInvalidArgument, "block at offset %d holds %d bytes, which does not match a %d-byte allocation", offset, blockSize, size)
	}

	start := header
	end := header + BlockOverhead + blockSize
	merged := blockSize

	m.freeCount++
	m.freeSize += blockSize

	if start > 0 {
		left := readWord(m.data, start-WordSize)
		if left > 0 {
			start -= left + BlockOverhead
			merged += left + BlockOverhead

			m.freeCount--
			m.freeSize += BlockOverhead
		}
	}

	if end < m.size {
		right := readWord(m.data, end)
		if right > 0 {
			end += right + BlockOverhead
			merged += right + BlockOverhead

			m.freeCount--
			m.freeSize += BlockOverhead
		}
	}

	clear(m.data[start+WordSize : end-WordSize])
	writeWord(m.data, start, merged)
	writeWord(m.data, end-WordSize, merged)

	m.allocCount--

	memutils.DebugValidate(m)
	return nil
}

// FindAllocation returns a cursor at the allocated block whose payload fully contains the length bytes
// starting at offset.
func (m *SentinelBlockMetadata) FindAllocation(offset int, length int) (Cursor, error) {
	end := m.End()
	for c := m.Begin(); !c.Equal(end) && c.Offset() < offset; c = c.Next() {
		payloadEnd := c.PayloadOffset() + c.PayloadSize()
		if offset < c.PayloadOffset() || offset >= payloadEnd {
			continue
		}

		if c.IsFree() {
			return Cursor{}, errors.Wrapf(memutils.ErrInvalidArgument, "offset %d lies in a free block", offset)
		}

		if length < 1 || offset+length > payloadEnd {
			return Cursor{}, errors.Wrapf(memutils.ErrInvalidArgument, "%d bytes at offset %d overrun the allocation ending at %d", length, offset, payloadEnd)
		}

		return c.ReadOnly(), nil
	}

	return Cursor{}, errors.Wrapf(memutils.ErrInvalidArgument, "offset %d is not inside a block payload", offset)
}

// isBlockHeader walks the layout to confirm that offset is a block boundary rather than some word
// inside a payload
func (m *SentinelBlockMetadata) isBlockHeader(offset int) bool {
	c := m.Begin()
	for c.Offset() < offset {
		c = c.Next()
	}

	return c.Offset() == offset
}

func (m *SentinelBlockMetadata) matchesRequest(blockSize, size int) bool {
	if size < 1 || size > blockSize {
		return false
	}

	need := m.payloadFor(size)
	if blockSize == need {
		return true
	}

	return blockSize-need-BlockOverhead < m.minAllocation
}

// payloadFor is the payload an allocation of size bytes occupies before any whole-block grant
func (m *SentinelBlockMetadata) payloadFor(size int) int {
	return max(memutils.AlignUp(size, WordSize), m.minAllocation)
}
