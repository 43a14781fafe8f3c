package crypto

import (
	sha256 "github.com/minio/sha256-simd"
	"golang.org/x/crypto/sha3"
)

// StdProvider hashes with sha256-simd and x/crypto sha3.
type StdProvider struct{}

func (StdProvider) DoubleSHA256(input []byte) [32]byte {
	first := sha256.Sum256(input)
	return sha256.Sum256(first[:])
}

func (StdProvider) SHA3_256(input []byte) [32]byte {
	h := sha3.New256()
	_, _ = h.Write(input)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
