package consensus

import (
	"encoding/hex"
	"fmt"

	"sccert.dev/node/crypto"
)

// Hash is a 256-bit identifier stored in internal (wire) byte order.
type Hash [32]byte

// String renders the hash byte-reversed, the conventional display order.
func (h Hash) String() string {
	var r [32]byte
	for i := 0; i < 32; i++ {
		r[i] = h[31-i]
	}
	return hex.EncodeToString(r[:])
}

func (h Hash) IsNull() bool {
	return h == Hash{}
}

// HashFromString parses the display (byte-reversed) hex form.
func HashFromString(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash{}, fmt.Errorf("hash: %w", err)
	}
	if len(b) != 32 {
		return Hash{}, fmt.Errorf("hash: expected 32 bytes, got %d", len(b))
	}
	var h Hash
	for i := 0; i < 32; i++ {
		h[i] = b[31-i]
	}
	return h, nil
}

func serializeHash(b []byte) Hash {
	return Hash(crypto.DoubleSHA256(b))
}
