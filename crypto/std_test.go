package crypto

import (
	"encoding/hex"
	"testing"
)

func TestDoubleSHA256KnownVector(t *testing.T) {
	// sha256(sha256("")) as used for empty-payload identities.
	got := DoubleSHA256(nil)
	want := "5df6e0e2761359d30a8275058e299fcc0381534545f55cf43e41983f5d4c9456"
	if hex.EncodeToString(got[:]) != want {
		t.Fatalf("got %x want %s", got, want)
	}
}

func TestSHA3_256KnownVector(t *testing.T) {
	got := SHA3_256([]byte("abc"))
	want := "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532"
	if hex.EncodeToString(got[:]) != want {
		t.Fatalf("got %x want %s", got, want)
	}
}

func TestDoubleSHA256Deterministic(t *testing.T) {
	a := DoubleSHA256([]byte{0x01, 0x02})
	b := DoubleSHA256([]byte{0x01, 0x02})
	if a != b {
		t.Fatalf("hash not deterministic")
	}
	if a == DoubleSHA256([]byte{0x02, 0x01}) {
		t.Fatalf("distinct inputs collided")
	}
}
