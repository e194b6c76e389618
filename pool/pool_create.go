package pool

import (
	"encoding/binary"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/blockpool/memutils"
	"github.com/vkngwrapper/blockpool/memutils/metadata"
	"github.com/vkngwrapper/blockpool/memutils/storage"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific pool behaviors to activate or deactivate
type CreateFlags int32

const (
	// CreateValidateMutations runs the full layout validation after every allocation and deallocation
	// and reports a failure as an error from the mutating call. Validation is linear in the number of
	// blocks, so this is meant for tests and diagnostics. Builds with the debug_mem_utils tag validate
	// every mutation regardless, and panic on failure.
	CreateValidateMutations CreateFlags = 1 << iota
	// CreateKeepStorage prevents Destroy from closing the pool's storage
	CreateKeepStorage
)

var createFlagsMapping = map[CreateFlags]string{
	CreateValidateMutations: "CreateValidateMutations",
	CreateKeepStorage:       "CreateKeepStorage",
}

func (f CreateFlags) String() string {
	if f == 0 {
		return "None"
	}

	var str string
	for flag, name := range createFlagsMapping {
		if f&flag == 0 {
			continue
		}
		if str != "" {
			str += "|"
		}
		str += name
	}
	return str
}

// CreateOptions contains optional settings when creating a pool
type CreateOptions struct {
	// Flags indicates specific pool behaviors to activate or deactivate
	Flags CreateFlags
	// Logger receives allocation diagnostics. When nil, diagnostics are discarded.
	Logger *slog.Logger
}

// New creates a pool over the provided storage. The pool takes ownership of the storage and formats
// its entire buffer as one free block.
//
// T must have a fixed binary size, as reported by encoding/binary: fixed-width numbers, bools, and
// arrays and structs made only of those. An ErrInvalidConfiguration error is returned if T does not,
// or if the storage is too small to hold one element of T and its two control words.
func New[T any](store storage.Storage, options CreateOptions) (*Pool[T], error) {
	if store == nil {
		return nil, errors.Wrap(memutils.ErrInvalidConfiguration, "pool storage must not be nil")
	}

	var zero T
	elementSize := binary.Size(&zero)
	if elementSize < 1 {
		return nil, errors.Wrapf(memutils.ErrInvalidConfiguration, "element type %T does not have a fixed, non-zero binary size", zero)
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard))
	}

	blocks := metadata.NewSentinelBlockMetadata(elementSize)
	err := blocks.Init(store.Bytes())
	if err != nil {
		return nil, err
	}

	logger.Debug("Pool::New",
		slog.Int("Capacity", blocks.Size()),
		slog.Int("ElementSize", elementSize),
		slog.String("Flags", options.Flags.String()))

	return &Pool[T]{
		logger:      logger,
		flags:       options.Flags,
		storage:     store,
		metadata:    blocks,
		elementSize: elementSize,
	}, nil
}

// NewWithCapacity creates a pool over a freshly-allocated heap buffer of capacity bytes
func NewWithCapacity[T any](capacity int, options CreateOptions) (*Pool[T], error) {
	store, err := storage.NewHeap(capacity)
	if err != nil {
		return nil, err
	}

	return New[T](store, options)
}
