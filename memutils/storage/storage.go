// Package storage provides the fixed-size byte buffers that pools are built on. A Storage is sized once
// when it is created and is never grown or shrunk.
package storage

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/blockpool/memutils"
)

// Storage is a fixed-size byte buffer owned by exactly one pool
type Storage interface {
	// Bytes returns the buffer. The length of the returned slice never changes.
	Bytes() []byte
	// Close releases the buffer. Bytes must not be used after Close returns.
	Close() error
}

// Heap is a Storage backed by a single Go byte slice
type Heap struct {
	data []byte
}

var _ Storage = &Heap{}

// NewHeap allocates a zeroed buffer of capacity bytes
func NewHeap(capacity int) (*Heap, error) {
	if capacity < 1 {
		return nil, errors.Wrapf(memutils.ErrInvalidConfiguration, "storage capacity must be positive, but was %d", capacity)
	}

	return &Heap{data: make([]byte, capacity)}, nil
}

func (h *Heap) Bytes() []byte {
	return h.data
}

func (h *Heap) Close() error {
	h.data = nil
	return nil
}
