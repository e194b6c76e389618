package metadata

import (
	"encoding/binary"
	"math"
)

const (
	// WordSize is the width in bytes of a control word. Every block begins with a header control word and
	// ends with a footer control word, and every payload size is a multiple of WordSize.
	WordSize = 4
	// BlockOverhead is the number of bytes a block spends on its header and footer
	BlockOverhead = 2 * WordSize
	// MaxPayloadSize is the largest payload a control word can describe
	MaxPayloadSize = math.MaxInt32
)

var byteOrder = binary.LittleEndian

// readWord decodes the signed control word at offset. Positive values are free payload sizes,
// negative values are allocated payload sizes.
func readWord(data []byte, offset int) int {
	return int(int32(byteOrder.Uint32(data[offset : offset+WordSize])))
}

func writeWord(data []byte, offset int, value int) {
	byteOrder.PutUint32(data[offset:offset+WordSize], uint32(int32(value)))
}

func payloadSize(word int) int {
	if word < 0 {
		return -word
	}
	return word
}

// nextHeader steps from a block header over its payload and footer to the header of the following block
func nextHeader(data []byte, header int) int {
	return header + WordSize + payloadSize(readWord(data, header)) + WordSize
}

// prevHeader reads the footer in front of header to find the header of the preceding block
func prevHeader(data []byte, header int) int {
	return header - WordSize - payloadSize(readWord(data, header-WordSize)) - WordSize
}

func footerOffset(data []byte, header int) int {
	return header + WordSize + payloadSize(readWord(data, header))
}
