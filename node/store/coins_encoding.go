package store

import (
	"math"

	"github.com/pkg/errors"

	"sccert.dev/node/consensus"
)

const (
	coinsFlagCoinBase byte = 1 << 0
	coinsFlagFromCert byte = 1 << 1
)

func appendHeight(b []byte, height int) ([]byte, error) {
	if height < 0 || height > math.MaxUint32 {
		return nil, errors.Errorf("height %d out of range", height)
	}
	return consensus.AppendU32LE(b, uint32(height)), nil // #nosec G115 -- range checked above.
}

func readHeight(r *consensus.Reader) (int, error) {
	v, err := r.ReadU32LE()
	return int(v), err
}

// Layout:
// version i32le | height u32le | flags u8 | CompactSize(n) | (value i64le | script varbytes) * n
func appendCoins(b []byte, c *consensus.Coins) ([]byte, error) {
	b = consensus.AppendI32LE(b, c.Version)
	b, err := appendHeight(b, c.Height)
	if err != nil {
		return nil, errors.Wrap(err, "coins")
	}
	var flags byte
	if c.IsCoinBase {
		flags |= coinsFlagCoinBase
	}
	if c.IsFromCert {
		flags |= coinsFlagFromCert
	}
	b = append(b, flags)
	b = consensus.AppendCompactSize(b, uint64(len(c.Outputs)))
	for _, o := range c.Outputs {
		b = consensus.AppendTxOut(b, o)
	}
	return b, nil
}

func encodeCoins(c *consensus.Coins) ([]byte, error) {
	return appendCoins(make([]byte, 0, 16+len(c.Outputs)*40), c)
}

func readCoins(r *consensus.Reader) (*consensus.Coins, error) {
	var c consensus.Coins
	var err error
	if c.Version, err = r.ReadI32LE(); err != nil {
		return nil, errors.Wrap(err, "coins version")
	}
	if c.Height, err = readHeight(r); err != nil {
		return nil, errors.Wrap(err, "coins height")
	}
	flags, err := r.ReadU8()
	if err != nil {
		return nil, errors.Wrap(err, "coins flags")
	}
	if flags&^(coinsFlagCoinBase|coinsFlagFromCert) != 0 {
		return nil, errors.Errorf("coins: unknown flags 0x%02x", flags)
	}
	c.IsCoinBase = flags&coinsFlagCoinBase != 0
	c.IsFromCert = flags&coinsFlagFromCert != 0
	n, err := r.ReadCompactSize("coins outputs")
	if err != nil {
		return nil, err
	}
	if n > 0 {
		c.Outputs = make([]consensus.TxOut, 0, min(n, r.Remaining()/9))
	}
	for i := 0; i < n; i++ {
		o, err := consensus.ReadTxOut(r)
		if err != nil {
			return nil, errors.Wrap(err, "coins output")
		}
		c.Outputs = append(c.Outputs, o)
	}
	return &c, nil
}

func decodeCoins(b []byte) (*consensus.Coins, error) {
	r := consensus.NewReader(b)
	c, err := readCoins(r)
	if err != nil {
		return nil, err
	}
	if err := r.Done(); err != nil {
		return nil, errors.Wrap(err, "coins")
	}
	return c, nil
}
