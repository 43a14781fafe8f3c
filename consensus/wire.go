package consensus

import (
	"encoding/binary"
	"fmt"
)

func AppendU32LE(b []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(b, tmp[:]...)
}

func AppendI32LE(b []byte, v int32) []byte {
	return AppendU32LE(b, uint32(v)) // #nosec G115 -- two's complement reinterpretation is the wire format.
}

func AppendU64LE(b []byte, v uint64) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], v)
	return append(b, tmp[:]...)
}

func AppendI64LE(b []byte, v int64) []byte {
	return AppendU64LE(b, uint64(v)) // #nosec G115 -- two's complement reinterpretation is the wire format.
}

// AppendVarBytes appends a CompactSize length prefix followed by p.
func AppendVarBytes(b []byte, p []byte) []byte {
	b = AppendCompactSize(b, uint64(len(p)))
	return append(b, p...)
}

// Reader is a bounds-checked cursor over canonical encodings.
type Reader struct {
	b   []byte
	pos int
}

func NewReader(b []byte) *Reader {
	return &Reader{b: b}
}

func (r *Reader) Remaining() int {
	if r.pos >= len(r.b) {
		return 0
	}
	return len(r.b) - r.pos
}

func (r *Reader) Pos() int { return r.pos }

func (r *Reader) ReadExact(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, fmt.Errorf("parse: truncated")
	}
	start := r.pos
	r.pos += n
	return r.b[start:r.pos], nil
}

func (r *Reader) ReadU8() (byte, error) {
	b, err := r.ReadExact(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadU32LE() (uint32, error) {
	b, err := r.ReadExact(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) ReadI32LE() (int32, error) {
	v, err := r.ReadU32LE()
	return int32(v), err // #nosec G115 -- two's complement reinterpretation is the wire format.
}

func (r *Reader) ReadU64LE() (uint64, error) {
	b, err := r.ReadExact(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) ReadI64LE() (int64, error) {
	v, err := r.ReadU64LE()
	return int64(v), err // #nosec G115 -- two's complement reinterpretation is the wire format.
}

func (r *Reader) ReadHash() (Hash, error) {
	b, err := r.ReadExact(32)
	if err != nil {
		return Hash{}, err
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// ReadCompactSize reads a count or length and enforces MAX_SIZE.
func (r *Reader) ReadCompactSize(name string) (int, error) {
	if r.Remaining() == 0 {
		return 0, fmt.Errorf("parse: %s truncated", name)
	}
	v, used, err := DecodeCompactSize(r.b[r.pos:])
	if err != nil {
		return 0, fmt.Errorf("parse: %s: %w", name, err)
	}
	if v > MAX_SIZE {
		return 0, fmt.Errorf("parse: %s exceeds MAX_SIZE", name)
	}
	r.pos += used
	return int(v), nil
}

// ReadVarBytes reads a length-prefixed byte string and returns a copy.
func (r *Reader) ReadVarBytes(name string) ([]byte, error) {
	n, err := r.ReadCompactSize(name)
	if err != nil {
		return nil, err
	}
	b, err := r.ReadExact(n)
	if err != nil {
		return nil, fmt.Errorf("parse: %s: %w", name, err)
	}
	return append([]byte(nil), b...), nil
}

// Done fails if unread bytes remain.
func (r *Reader) Done() error {
	if r.pos != len(r.b) {
		return fmt.Errorf("parse: trailing bytes")
	}
	return nil
}
