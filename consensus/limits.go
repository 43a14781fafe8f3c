package consensus

const (
	MAX_BLOCK_SIZE = 2_000_000
	MAX_CERT_SIZE  = 150_000
	MAX_TX_SIZE    = 100_000

	CERT_VERSION int32 = -5
	TX_VERSION   int32 = 1

	// MAX_PRIORITY keeps certificates out of priority-based eviction.
	MAX_PRIORITY = 1e16
)

// Fails to compile unless MAX_CERT_SIZE < MAX_BLOCK_SIZE.
var _ = [MAX_BLOCK_SIZE - MAX_CERT_SIZE - 1]struct{}{}
