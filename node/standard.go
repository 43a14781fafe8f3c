package node

import (
	"math"

	"sccert.dev/node/consensus"
)

const (
	REASON_SCRIPTPUBKEY    = "scriptpubkey"
	REASON_DUST            = "dust"
	REASON_MULTI_OP_RETURN = "multi-op-return"

	DefaultMaxDataCarrierBytes = 80
	// spendInputSize approximates the bytes needed later to spend an output.
	spendInputSize = 148
)

type ScriptClass int

const (
	NonStandard ScriptClass = iota
	PubKeyHashReplay
	ScriptHashReplay
	NullDataReplay
)

func (c ScriptClass) String() string {
	switch c {
	case PubKeyHashReplay:
		return "pubkeyhash_replay"
	case ScriptHashReplay:
		return "scripthash_replay"
	case NullDataReplay:
		return "nulldata_replay"
	default:
		return "nonstandard"
	}
}

func isPushOf(o consensus.Op, n int) bool {
	return o.Code <= consensus.OP_PUSHDATA4 && len(o.Data) == n
}

// ClassifyScript matches s against the replay-protected output templates and
// returns the class with the referenced block height.
func ClassifyScript(s consensus.Script, maxDataCarrier int) (ScriptClass, int64) {
	_, height, ok := s.CheckBlockAtHeightParams()
	if !ok {
		return NonStandard, 0
	}
	ops, err := consensus.ParseOps(s)
	if err != nil {
		return NonStandard, 0
	}
	body := ops[:len(ops)-3]
	switch {
	case len(body) == 5 &&
		body[0].Code == consensus.OP_DUP &&
		body[1].Code == consensus.OP_HASH160 &&
		isPushOf(body[2], 20) &&
		body[3].Code == consensus.OP_EQUALVERIFY &&
		body[4].Code == consensus.OP_CHECKSIG:
		return PubKeyHashReplay, height
	case len(body) == 3 &&
		body[0].Code == consensus.OP_HASH160 &&
		isPushOf(body[1], 20) &&
		body[2].Code == consensus.OP_EQUAL:
		return ScriptHashReplay, height
	case len(body) >= 1 && len(body) <= 2 && body[0].Code == consensus.OP_RETURN:
		if len(body) == 2 {
			if body[1].Code > consensus.OP_PUSHDATA4 || len(body[1].Data) > maxDataCarrier {
				return NonStandard, 0
			}
		}
		return NullDataReplay, height
	}
	return NonStandard, 0
}

// StandardPolicy is the relay policy applied to certificate outputs.
type StandardPolicy struct {
	MinRelayFeePerKB    consensus.Amount
	MaxDataCarrierBytes int
}

func NewStandardPolicy(minRelayFeePerKB consensus.Amount) StandardPolicy {
	return StandardPolicy{MinRelayFeePerKB: minRelayFeePerKB, MaxDataCarrierBytes: DefaultMaxDataCarrierBytes}
}

// DustThreshold is the smallest value of out worth relaying: three times the
// fee needed to create and later spend it.
func (p StandardPolicy) DustThreshold(out consensus.TxOut) consensus.Amount {
	if p.MinRelayFeePerKB <= 0 {
		return 0
	}
	size := int64(len(consensus.AppendTxOut(nil, out)) + spendInputSize)
	fee := int64(p.MinRelayFeePerKB)
	if fee > math.MaxInt64/3/size {
		// No output value can reach a threshold this large.
		return consensus.MAX_MONEY + 1
	}
	return consensus.Amount(3 * fee * size / 1000)
}

// AreOutputsStandard accepts only replay-protected templates whose referenced
// height is not ahead of height, at most one null-data output, and no dust.
func (p StandardPolicy) AreOutputsStandard(outputs []consensus.TxOut, height int) (bool, string) {
	nullData := 0
	for _, out := range outputs {
		class, refHeight := ClassifyScript(out.ScriptPubKey, p.MaxDataCarrierBytes)
		if class == NonStandard || refHeight > int64(height) {
			return false, REASON_SCRIPTPUBKEY
		}
		if class == NullDataReplay {
			nullData++
			continue
		}
		if out.Value < p.DustThreshold(out) {
			return false, REASON_DUST
		}
	}
	if nullData > 1 {
		return false, REASON_MULTI_OP_RETURN
	}
	return true, ""
}
