package consensus

import "fmt"

// CheckCertificate runs the context-free certificate checks in order and
// stops at the first failure, which is recorded in state.
func CheckCertificate(cert *Certificate, state *ValidationState, semantic SemanticValidator) bool {
	if len(cert.vout) == 0 {
		return state.DoS(10, REJECT_INVALID, REASON_CERT_VOUT_EMPTY, "vout empty")
	}
	if size := cert.SerializedSize(); size > MAX_CERT_SIZE {
		return state.DoS(100, REJECT_INVALID, REASON_CERT_OVERSIZE, fmt.Sprintf("size %d exceeds %d", size, MAX_CERT_SIZE))
	}
	if !checkVout(cert.vout, state) {
		return false
	}
	if !checkOutputsCheckBlockAtHeight(cert.vout, state) {
		return false
	}
	if semantic == nil {
		return state.Error("no sidechain semantic validator")
	}
	return semantic.CheckCertificateSemanticValidity(cert, state)
}

func checkVout(vout []TxOut, state *ValidationState) bool {
	var total Amount
	for i, o := range vout {
		if o.Value < 0 {
			return state.DoS(100, REJECT_INVALID, REASON_VOUT_NEGATIVE, fmt.Sprintf("vout[%d] negative", i))
		}
		if o.Value > MAX_MONEY {
			return state.DoS(100, REJECT_INVALID, REASON_VOUT_TOOLARGE, fmt.Sprintf("vout[%d] too large", i))
		}
		total += o.Value
		if !MoneyRange(total) {
			return state.DoS(100, REJECT_INVALID, REASON_TXOUTTOTAL_TOOLARGE, "total out of range")
		}
	}
	return true
}

func checkOutputsCheckBlockAtHeight(vout []TxOut, state *ValidationState) bool {
	for i, o := range vout {
		if !o.ScriptPubKey.HasCheckBlockAtHeight() {
			return state.DoS(0, REJECT_CHECKBLOCKATHEIGHT_NOT_FOUND, REASON_CHECKBLOCKATHEIGHT,
				fmt.Sprintf("vout[%d] lacks OP_CHECKBLOCKATHEIGHT", i))
		}
	}
	return true
}

// CheckTransaction runs the context-free transaction checks.
func CheckTransaction(tx *Transaction, state *ValidationState) bool {
	if len(tx.vin) == 0 {
		return state.DoS(10, REJECT_INVALID, "bad-txns-vin-empty", "")
	}
	if len(tx.vout) == 0 {
		return state.DoS(10, REJECT_INVALID, "bad-txns-vout-empty", "")
	}
	if tx.SerializedSize() > MAX_TX_SIZE {
		return state.DoS(100, REJECT_INVALID, "bad-txns-oversize", "")
	}
	if !checkVout(tx.vout, state) {
		return false
	}
	seen := make(map[OutPoint]struct{}, len(tx.vin))
	for _, in := range tx.vin {
		if _, dup := seen[in.Prevout]; dup {
			return state.DoS(100, REJECT_INVALID, "bad-txns-inputs-duplicate", "")
		}
		seen[in.Prevout] = struct{}{}
	}
	if tx.IsCoinBase() {
		if n := len(tx.vin[0].ScriptSig); n < 2 || n > 100 {
			return state.DoS(100, REJECT_INVALID, "bad-cb-length", "")
		}
		return true
	}
	for _, in := range tx.vin {
		if in.Prevout.IsNull() {
			return state.DoS(10, REJECT_INVALID, "bad-txns-prevout-null", "")
		}
	}
	return true
}
