package consensus

import (
	"encoding/hex"
	"fmt"
)

// BackwardTransferOut pays Value to a main-chain public-key hash out of a
// sidechain. It is a plain value; copies are independent.
type BackwardTransferOut struct {
	Value      Amount
	PubKeyHash [20]byte
}

const bwtSize = 8 + 20

func AppendBackwardTransferOut(b []byte, o BackwardTransferOut) []byte {
	b = AppendI64LE(b, int64(o.Value))
	return append(b, o.PubKeyHash[:]...)
}

func ReadBackwardTransferOut(r *Reader) (BackwardTransferOut, error) {
	v, err := r.ReadI64LE()
	if err != nil {
		return BackwardTransferOut{}, err
	}
	pkh, err := r.ReadExact(20)
	if err != nil {
		return BackwardTransferOut{}, err
	}
	out := BackwardTransferOut{Value: Amount(v)}
	copy(out.PubKeyHash[:], pkh)
	return out, nil
}

// Hash is the double SHA-256 of the canonical encoding.
func (o BackwardTransferOut) Hash() Hash {
	return serializeHash(AppendBackwardTransferOut(make([]byte, 0, bwtSize), o))
}

func (o BackwardTransferOut) String() string {
	whole, frac := o.Value.WholeFrac()
	return fmt.Sprintf("BackwardTransferOut(nValue=%d.%08d, pubKeyHash=%s)", whole, frac, hex.EncodeToString(o.PubKeyHash[:]))
}
