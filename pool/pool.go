package pool

import (
	"bytes"
	"context"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/blockpool/memutils"
	"github.com/vkngwrapper/blockpool/memutils/metadata"
	"github.com/vkngwrapper/blockpool/memutils/storage"
	"golang.org/x/exp/slog"
)

var elementOrder = binary.LittleEndian

// Pool hands out runs of contiguous T elements from a single fixed-size buffer. All bookkeeping is
// stored in the buffer itself as control words framing each block, so after creation the pool does
// not allocate on the Allocate and Deallocate paths.
//
// Allocations are identified by the byte offset of their payload within the buffer. Elements are
// placed into and read out of a payload with ConstructAt and LoadAt, encoded with encoding/binary in
// little-endian order.
//
// Pool is not safe for concurrent use. Callers sharing a pool between goroutines must synchronize
// access themselves.
type Pool[T any] struct {
	logger  *slog.Logger
	flags   CreateFlags
	storage storage.Storage

	metadata    *metadata.SentinelBlockMetadata
	elementSize int
}

var _ memutils.Validatable = &Pool[float64]{}

// ElementSize is the encoded size of T in bytes
func (p *Pool[T]) ElementSize() int {
	return p.elementSize
}

// Capacity is the size of the pool's buffer in bytes, control words included
func (p *Pool[T]) Capacity() int {
	return p.metadata.Size()
}

// AllocationCount is the number of live allocations in the pool
func (p *Pool[T]) AllocationCount() int {
	return p.metadata.AllocationCount()
}

// Allocate reserves room for count contiguous elements and returns the offset of the first one. The
// first free block large enough is used. When the block is large enough to leave a usable free block
// behind, it is split; otherwise the whole block is granted.
//
// An ErrOutOfMemory error is returned, and the pool left unchanged, when no free block can hold the
// request.
func (p *Pool[T]) Allocate(count int) (int, error) {
	if count < 1 {
		return 0, errors.Wrapf(memutils.ErrInvalidArgument, "element count must be positive, but was %d", count)
	}

	if count > p.metadata.Size()/p.elementSize {
		return 0, errors.Wrapf(memutils.ErrOutOfMemory, "%d elements of %d bytes cannot fit in a %d-byte pool", count, p.elementSize, p.metadata.Size())
	}

	size := count * p.elementSize
	success, request, err := p.metadata.CreateAllocationRequest(size)
	if err != nil {
		return 0, err
	}

	if !success {
		p.logger.Warn("Pool::Allocate out of memory",
			slog.Int("Count", count),
			slog.Int("Size", size),
			slog.Int("FreeBytes", p.metadata.SumFreeSize()),
			slog.Int("FreeRanges", p.metadata.FreeRegionsCount()))
		return 0, errors.Wrapf(memutils.ErrOutOfMemory, "no free block can hold %d elements of %d bytes", count, p.elementSize)
	}

	err = p.metadata.Alloc(request)
	if err != nil {
		return 0, err
	}

	err = p.validateMutation("allocation")
	if err != nil {
		return 0, err
	}

	p.logger.Debug("Pool::Allocate",
		slog.Int("Count", count),
		slog.Int("Offset", request.PayloadOffset()),
		slog.Int("Size", request.Size),
		slog.Bool("Split", request.Split()))

	return request.PayloadOffset(), nil
}

// Deallocate returns the allocation at ptr to the pool, merging it with any free block on either side.
// count must be the count originally passed to Allocate. An ErrInvalidArgument error is returned, and
// the pool left unchanged, when ptr is not a live allocation or count does not match it.
func (p *Pool[T]) Deallocate(ptr int, count int) error {
	if count < 1 || count > p.metadata.Size()/p.elementSize {
		return errors.Wrapf(memutils.ErrInvalidArgument, "element count %d is out of range for this pool", count)
	}

	err := p.metadata.Free(ptr, count*p.elementSize)
	if err != nil {
		return err
	}

	err = p.validateMutation("deallocation")
	if err != nil {
		return err
	}

	p.logger.Debug("Pool::Deallocate",
		slog.Int("Count", count),
		slog.Int("Offset", ptr))

	return nil
}

// ElementOffset returns the offset of the index-th element of the allocation whose payload begins at
// payload
func (p *Pool[T]) ElementOffset(payload int, index int) int {
	return payload + index*p.elementSize
}

func (p *Pool[T]) elementBytes(ptr int) ([]byte, error) {
	c, err := p.metadata.FindAllocation(ptr, p.elementSize)
	if err != nil {
		return nil, err
	}

	if (ptr-c.PayloadOffset())%p.elementSize != 0 {
		return nil, errors.Wrapf(memutils.ErrInvalidArgument, "offset %d is not on an element boundary of the allocation at %d", ptr, c.PayloadOffset())
	}

	return p.storage.Bytes()[ptr : ptr+p.elementSize], nil
}

// ConstructAt writes value into the element slot at ptr, which must lie on an element boundary inside
// a live allocation. Block boundaries are never altered.
func (p *Pool[T]) ConstructAt(ptr int, value T) error {
	slot, err := p.elementBytes(ptr)
	if err != nil {
		return err
	}

	writer := sliceWriter{buf: slot}
	err = binary.Write(&writer, elementOrder, value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode element at offset %d", ptr)
	}

	return nil
}

// DestroyAt retires the element at ptr, zeroing its slot. The allocation itself stays live.
func (p *Pool[T]) DestroyAt(ptr int) error {
	slot, err := p.elementBytes(ptr)
	if err != nil {
		return err
	}

	clear(slot)
	return nil
}

// LoadAt decodes the element at ptr
func (p *Pool[T]) LoadAt(ptr int) (T, error) {
	var value T

	slot, err := p.elementBytes(ptr)
	if err != nil {
		return value, err
	}

	err = binary.Read(bytes.NewReader(slot), elementOrder, &value)
	if err != nil {
		return value, errors.Wrapf(err, "failed to decode element at offset %d", ptr)
	}

	return value, nil
}

// Begin returns a cursor at the first block of the pool
func (p *Pool[T]) Begin() metadata.MutableCursor {
	return p.metadata.Begin()
}

// End returns a cursor one past the last block of the pool
func (p *Pool[T]) End() metadata.MutableCursor {
	return p.metadata.End()
}

// Word reads the raw control word at offset
func (p *Pool[T]) Word(offset int) (int, error) {
	return p.metadata.Word(offset)
}

// SetWord overwrites the raw control word at offset without any consistency checks
func (p *Pool[T]) SetWord(offset int, value int) error {
	return p.metadata.SetWord(offset, value)
}

// Headers returns the header value of every block in offset order: negative sizes for allocated
// blocks, positive for free ones
func (p *Pool[T]) Headers() []int {
	var headers []int

	end := p.metadata.End()
	for c := p.metadata.Begin(); !c.Equal(end); c = c.Next() {
		headers = append(headers, c.Value())
	}

	return headers
}

// Validate sweeps the whole block layout and returns an error describing the first inconsistency found
func (p *Pool[T]) Validate() error {
	return p.metadata.Validate()
}

// IsValid reports whether Validate succeeds
func (p *Pool[T]) IsValid() bool {
	return memutils.IsValid(p)
}

func (p *Pool[T]) validateMutation(operation string) error {
	if p.flags&CreateValidateMutations == 0 {
		return nil
	}

	err := p.metadata.Validate()
	if err != nil {
		return errors.Wrapf(err, "pool layout failed validation after %s", operation)
	}

	return nil
}

// Statistics returns summary statistics for the pool, computed from cached counters
func (p *Pool[T]) Statistics() memutils.Statistics {
	var stats memutils.Statistics
	p.metadata.AddStatistics(&stats)
	return stats
}

// DetailedStatistics walks the block layout and returns statistics including the range of
// allocation and free block sizes
func (p *Pool[T]) DetailedStatistics() memutils.DetailedStatistics {
	var stats memutils.DetailedStatistics
	stats.Clear()
	p.metadata.AddDetailedStatistics(&stats)
	return stats
}

// PrintDetailedMap writes a json object describing the pool and every block in it
func (p *Pool[T]) PrintDetailedMap(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	objState.Name("ElementSize").Int(p.elementSize)
	p.metadata.BlockJsonData(objState)

	arrayState := objState.Name("Blocks").Array()
	defer arrayState.End()

	_ = p.metadata.VisitAllRegions(func(offset int, size int, free bool) error {
		obj := arrayState.Object()
		defer obj.End()

		obj.Name("Offset").Int(offset)
		obj.Name("Size").Int(size)
		obj.Name("Free").Bool(free)
		return nil
	})
}

// Clear frees every allocation at once, leaving a single free block
func (p *Pool[T]) Clear() {
	p.metadata.Clear()
	p.logger.Debug("Pool::Clear", slog.Int("Capacity", p.metadata.Size()))
}

// Destroy releases the pool's storage. If any allocations are still live, each is logged at error level
// and an error is returned without releasing anything. Unless the pool was created with
// CreateKeepStorage, the storage is closed.
func (p *Pool[T]) Destroy() error {
	if p.metadata == nil {
		return errors.New("the pool has already been destroyed")
	}

	if !p.metadata.IsEmpty() {
		_ = p.metadata.VisitAllRegions(func(offset int, size int, free bool) error {
			if !free {
				p.logUnreleasedMemory(offset, size)
			}
			return nil
		})

		return errors.Newf("%d allocations were not freed before the destruction of this pool", p.metadata.AllocationCount())
	}

	if p.flags&CreateKeepStorage == 0 {
		err := p.storage.Close()
		if err != nil {
			return errors.Wrap(err, "failed to close pool storage")
		}
	}

	p.metadata = nil
	p.storage = nil
	return nil
}

// Close releases the pool's storage without checking for live allocations. A file-backed pool keeps
// its final block layout on disk.
func (p *Pool[T]) Close() error {
	if p.metadata == nil {
		return errors.New("the pool has already been destroyed")
	}

	p.logger.Debug("Pool::Close", slog.Int("LiveAllocations", p.metadata.AllocationCount()))

	var err error
	if p.flags&CreateKeepStorage == 0 {
		err = p.storage.Close()
	}

	p.metadata = nil
	p.storage = nil
	return errors.Wrap(err, "failed to close pool storage")
}

func (p *Pool[T]) logUnreleasedMemory(offset, size int) {
	p.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
		slog.Int("offset", offset),
		slog.Int("size", size),
		slog.Int("elements", size/p.elementSize),
	)
}

type sliceWriter struct {
	buf []byte
	n   int
}

func (w *sliceWriter) Write(data []byte) (int, error) {
	if len(data) > len(w.buf)-w.n {
		return 0, errors.Newf("element encoding overran its %d-byte slot", len(w.buf))
	}

	w.n += copy(w.buf[w.n:], data)
	return len(data), nil
}
