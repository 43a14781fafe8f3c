package consensus

import (
	"bytes"
	"testing"
)

func TestCompactSize_MinimalEncodings(t *testing.T) {
	cases := []struct {
		n    uint64
		want []byte
	}{
		{0, []byte{0x00}},
		{252, []byte{0xfc}},
		{253, []byte{0xfd, 0xfd, 0x00}},
		{0xffff, []byte{0xfd, 0xff, 0xff}},
		{0x10000, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}},
		{0x100000000, []byte{0xff, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00}},
	}
	for _, c := range cases {
		got := CompactSize(c.n).Encode()
		if !bytes.Equal(got, c.want) {
			t.Fatalf("encode(%d)=%x, want %x", c.n, got, c.want)
		}
		if CompactSizeLen(c.n) != len(c.want) {
			t.Fatalf("len(%d)=%d, want %d", c.n, CompactSizeLen(c.n), len(c.want))
		}
		v, used, err := DecodeCompactSize(got)
		if err != nil {
			t.Fatalf("decode(%x): %v", got, err)
		}
		if v != c.n || used != len(got) {
			t.Fatalf("decode(%x)=(%d,%d)", got, v, used)
		}
	}
}

func TestCompactSize_RejectsNonMinimal(t *testing.T) {
	for _, b := range [][]byte{
		{0xfd, 0x10, 0x00},
		{0xfe, 0xff, 0xff, 0x00, 0x00},
		{0xff, 0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00},
	} {
		if _, _, err := DecodeCompactSize(b); err == nil {
			t.Fatalf("expected non-minimal error for %x", b)
		}
	}
}

func TestCompactSize_Truncated(t *testing.T) {
	for _, b := range [][]byte{{}, {0xfd, 0x00}, {0xfe, 0, 0, 0}, {0xff, 0}} {
		if _, _, err := DecodeCompactSize(b); err == nil {
			t.Fatalf("expected truncation error for %x", b)
		}
	}
}

func TestReader_EnforcesMaxSize(t *testing.T) {
	b := AppendCompactSize(nil, MAX_SIZE+1)
	if _, err := NewReader(b).ReadCompactSize("count"); err == nil {
		t.Fatalf("expected MAX_SIZE error")
	}
	b = AppendCompactSize(nil, MAX_SIZE)
	n, err := NewReader(b).ReadCompactSize("count")
	if err != nil || n != MAX_SIZE {
		t.Fatalf("n=%d err=%v", n, err)
	}
}

func TestReader_VarBytesCopies(t *testing.T) {
	src := AppendVarBytes(nil, []byte{1, 2, 3})
	r := NewReader(src)
	got, err := r.ReadVarBytes("data")
	if err != nil {
		t.Fatalf("ReadVarBytes: %v", err)
	}
	src[1] = 9
	if got[0] != 1 {
		t.Fatalf("ReadVarBytes aliases input")
	}
	if err := r.Done(); err != nil {
		t.Fatalf("Done: %v", err)
	}
}
