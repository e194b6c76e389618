package metadata

// Cursor is a read-only position at a block header. Cursors are values: Next and Prev return
// a new Cursor and leave the receiver where it was. Two cursors are equal when they sit at the same
// offset.
//
// A cursor at the end of the buffer (see SentinelBlockMetadata.End) may be compared and stepped
// backward, but must not be dereferenced.
type Cursor struct {
	data   []byte
	offset int
}

// Offset is the byte offset of the block header the cursor points at
func (c Cursor) Offset() int {
	return c.offset
}

// Value returns the header control word of the current block
func (c Cursor) Value() int {
	return readWord(c.data, c.offset)
}

// IsFree returns true if the current block is free
func (c Cursor) IsFree() bool {
	return c.Value() > 0
}

// PayloadOffset is the offset of the first payload byte of the current block
func (c Cursor) PayloadOffset() int {
	return c.offset + WordSize
}

// PayloadSize is the number of payload bytes in the current block
func (c Cursor) PayloadSize() int {
	return payloadSize(c.Value())
}

func (c Cursor) Next() Cursor {
	return Cursor{data: c.data, offset: nextHeader(c.data, c.offset)}
}

func (c Cursor) Prev() Cursor {
	return Cursor{data: c.data, offset: prevHeader(c.data, c.offset)}
}

func (c Cursor) Equal(other Cursor) bool {
	return c.offset == other.offset
}

// MutableCursor is a Cursor that can also rewrite the header of the block it points at.
// It steps exactly the way Cursor does.
type MutableCursor struct {
	Cursor
}

func (c MutableCursor) Next() MutableCursor {
	return MutableCursor{Cursor: c.Cursor.Next()}
}

func (c MutableCursor) Prev() MutableCursor {
	return MutableCursor{Cursor: c.Cursor.Prev()}
}

func (c MutableCursor) Equal(other MutableCursor) bool {
	return c.Cursor.Equal(other.Cursor)
}

// SetValue overwrites the header control word of the current block. The footer is not touched, so
// this can leave the layout invalid; it exists for diagnostics and tests.
func (c MutableCursor) SetValue(value int) {
	writeWord(c.data, c.offset, value)
}

// ReadOnly returns a Cursor at the same position
func (c MutableCursor) ReadOnly() Cursor {
	return c.Cursor
}
