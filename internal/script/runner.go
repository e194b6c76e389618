package script

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/vkngwrapper/blockpool/memutils"
	"github.com/vkngwrapper/blockpool/memutils/metadata"
	"golang.org/x/exp/slog"
)

//go:generate mockgen -source runner.go -destination ./mocks/mock_heap.go -package mock_script

// Heap is the allocator a script is run against. *pool.Pool satisfies it for every element type.
type Heap interface {
	ElementSize() int
	Allocate(count int) (int, error)
	Deallocate(ptr int, count int) error
	Headers() []int
}

// Runner executes script cases, remembering the element count requested for each live allocation so
// that deallocation steps can hand the same count back
type Runner struct {
	logger *slog.Logger
	counts *swiss.Map[int, int]
}

// NewRunner creates a Runner. When logger is nil, step diagnostics are discarded.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard))
	}

	return &Runner{logger: logger}
}

// Run executes every step of scriptCase against heap, which should be empty. The first step that
// fails ends the case; heap keeps the layout produced by the steps before it.
func (r *Runner) Run(heap Heap, scriptCase Case) error {
	r.counts = swiss.NewMap[int, int](uint32(max(len(scriptCase.Steps), 8)))

	for index, step := range scriptCase.Steps {
		var err error
		if step > 0 {
			err = r.allocate(heap, step)
		} else {
			err = r.deallocate(heap, -step)
		}

		if err != nil {
			return errors.Wrapf(err, "case at line %d failed at step %d (%d)", scriptCase.Line, index+1, step)
		}
	}

	return nil
}

func (r *Runner) allocate(heap Heap, count int) error {
	ptr, err := heap.Allocate(count)
	if err != nil {
		return err
	}

	r.counts.Put(ptr, count)
	r.logger.Debug("Runner::Allocate", slog.Int("Count", count), slog.Int("Offset", ptr))
	return nil
}

func (r *Runner) deallocate(heap Heap, ordinal int) error {
	ptr, size, err := findAllocated(heap.Headers(), ordinal)
	if err != nil {
		return err
	}

	count, ok := r.counts.Get(ptr)
	if !ok {
		count = size / heap.ElementSize()
	}

	err = heap.Deallocate(ptr, count)
	if err != nil {
		return err
	}

	r.counts.Delete(ptr)
	r.logger.Debug("Runner::Deallocate", slog.Int("Ordinal", ordinal), slog.Int("Count", count), slog.Int("Offset", ptr))
	return nil
}

// findAllocated returns the payload offset and size of the ordinal-th allocated block, counting from 1
func findAllocated(headers []int, ordinal int) (int, int, error) {
	offset := 0
	seen := 0

	for _, header := range headers {
		size := header
		if size < 0 {
			size = -size
			seen++

			if seen == ordinal {
				return offset + metadata.WordSize, size, nil
			}
		}

		offset += size + metadata.BlockOverhead
	}

	return 0, 0, errors.Wrapf(memutils.ErrInvalidArgument, "cannot deallocate block %d: only %d blocks are allocated", ordinal, seen)
}
