package consensus

import (
	"encoding/binary"
	"fmt"
)

// MAX_SIZE bounds any CompactSize-prefixed count or length read from the wire.
const MAX_SIZE = 0x02000000

// CompactSize is the Bitcoin-style variable length integer used for vector
// counts and byte-string lengths in the canonical encoding.
type CompactSize uint64

func (c CompactSize) Encode() []byte {
	return AppendCompactSize(nil, uint64(c))
}

// AppendCompactSize appends the minimal encoding of n to b.
func AppendCompactSize(b []byte, n uint64) []byte {
	switch {
	case n < 253:
		return append(b, byte(n))
	case n <= 0xffff:
		var b2 [2]byte
		binary.LittleEndian.PutUint16(b2[:], uint16(n))
		return append(append(b, 0xfd), b2[:]...)
	case n <= 0xffffffff:
		var b4 [4]byte
		binary.LittleEndian.PutUint32(b4[:], uint32(n))
		return append(append(b, 0xfe), b4[:]...)
	default:
		var b8 [8]byte
		binary.LittleEndian.PutUint64(b8[:], n)
		return append(append(b, 0xff), b8[:]...)
	}
}

// CompactSizeLen is the encoded length of n.
func CompactSizeLen(n uint64) int {
	switch {
	case n < 253:
		return 1
	case n <= 0xffff:
		return 3
	case n <= 0xffffffff:
		return 5
	default:
		return 9
	}
}

// DecodeCompactSize decodes one value from the front of b and returns it with
// the number of bytes consumed. Non-minimal encodings are rejected.
func DecodeCompactSize(b []byte) (uint64, int, error) {
	if len(b) < 1 {
		return 0, 0, fmt.Errorf("compactsize: empty")
	}
	tag := b[0]
	switch {
	case tag < 0xfd:
		return uint64(tag), 1, nil
	case tag == 0xfd:
		if len(b) < 3 {
			return 0, 0, fmt.Errorf("compactsize: truncated u16")
		}
		n := uint64(binary.LittleEndian.Uint16(b[1:3]))
		if n < 253 {
			return 0, 0, fmt.Errorf("compactsize: non-minimal u16")
		}
		return n, 3, nil
	case tag == 0xfe:
		if len(b) < 5 {
			return 0, 0, fmt.Errorf("compactsize: truncated u32")
		}
		n := uint64(binary.LittleEndian.Uint32(b[1:5]))
		if n < 0x1_0000 {
			return 0, 0, fmt.Errorf("compactsize: non-minimal u32")
		}
		return n, 5, nil
	default:
		if len(b) < 9 {
			return 0, 0, fmt.Errorf("compactsize: truncated u64")
		}
		n := binary.LittleEndian.Uint64(b[1:9])
		if n < 0x1_0000_0000 {
			return 0, 0, fmt.Errorf("compactsize: non-minimal u64")
		}
		return n, 9, nil
	}
}
