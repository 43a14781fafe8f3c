package consensus

import "fmt"

// TxOut is an ordinary value output: an amount locked by a script.
type TxOut struct {
	Value        Amount
	ScriptPubKey Script
}

// IsNull reports a spent (cleared) output slot.
func (o TxOut) IsNull() bool {
	return o.Value == -1
}

func (o *TxOut) SetNull() {
	o.Value = -1
	o.ScriptPubKey = nil
}

func (o TxOut) Clone() TxOut {
	return TxOut{Value: o.Value, ScriptPubKey: append(Script(nil), o.ScriptPubKey...)}
}

func (o TxOut) String() string {
	whole, frac := o.Value.WholeFrac()
	s := o.ScriptPubKey.String()
	if len(s) > 30 {
		s = s[:30]
	}
	return fmt.Sprintf("TxOut(nValue=%d.%08d, scriptPubKey=%s)", whole, frac, s)
}

func AppendTxOut(b []byte, o TxOut) []byte {
	b = AppendI64LE(b, int64(o.Value))
	return AppendVarBytes(b, o.ScriptPubKey)
}

func txOutSize(o TxOut) int {
	return 8 + CompactSizeLen(uint64(len(o.ScriptPubKey))) + len(o.ScriptPubKey)
}

func ReadTxOut(r *Reader) (TxOut, error) {
	v, err := r.ReadI64LE()
	if err != nil {
		return TxOut{}, err
	}
	script, err := r.ReadVarBytes("scriptPubKey")
	if err != nil {
		return TxOut{}, err
	}
	return TxOut{Value: Amount(v), ScriptPubKey: script}, nil
}

func cloneTxOuts(in []TxOut) []TxOut {
	if in == nil {
		return nil
	}
	out := make([]TxOut, len(in))
	for i, o := range in {
		out[i] = o.Clone()
	}
	return out
}
