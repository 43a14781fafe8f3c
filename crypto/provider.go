package crypto

// Provider is the narrow hashing interface used by consensus and storage code.
// Identity hashes (certificates, transactions, blocks) use DoubleSHA256; the
// coin-set digest uses SHA3_256.
type Provider interface {
	DoubleSHA256(input []byte) [32]byte
	SHA3_256(input []byte) [32]byte
}

// Default is the provider used by the package-level helpers.
var Default Provider = StdProvider{}

func DoubleSHA256(input []byte) [32]byte {
	return Default.DoubleSHA256(input)
}

func SHA3_256(input []byte) [32]byte {
	return Default.SHA3_256(input)
}
