package storage

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/edsrzf/mmap-go"
	"github.com/vkngwrapper/blockpool/memutils"
)

// Mapped is a Storage backed by a memory-mapped file. Writes to the buffer land in the file, so the
// final block layout of a pool can be inspected after the process exits.
type Mapped struct {
	file *os.File
	data mmap.MMap
}

var _ Storage = &Mapped{}

// OpenMapped maps the file at path into memory, creating it if necessary and truncating or extending
// it to exactly capacity bytes. Existing file contents are kept, so callers that need a fresh layout
// must format the buffer themselves.
func OpenMapped(path string, capacity int) (*Mapped, error) {
	if capacity < 1 {
		return nil, errors.Wrapf(memutils.ErrInvalidConfiguration, "storage capacity must be positive, but was %d", capacity)
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open backing file %s", path)
	}

	err = file.Truncate(int64(capacity))
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "failed to size backing file %s to %d bytes", path, capacity)
	}

	data, err := mmap.MapRegion(file, capacity, mmap.RDWR, 0, 0)
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "failed to map backing file %s", path)
	}

	return &Mapped{file: file, data: data}, nil
}

func (m *Mapped) Bytes() []byte {
	return m.data
}

// Flush writes the current buffer contents back to the file
func (m *Mapped) Flush() error {
	return errors.Wrap(m.data.Flush(), "failed to flush backing file")
}

func (m *Mapped) Close() error {
	if m.data == nil {
		return nil
	}

	flushErr := m.data.Flush()
	unmapErr := m.data.Unmap()
	closeErr := m.file.Close()
	m.data = nil

	return errors.CombineErrors(flushErr, errors.CombineErrors(unmapErr, closeErr))
}
