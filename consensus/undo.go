package consensus

import "fmt"

// SpentCoin is the state of an output before a transaction spent it, with
// the metadata needed to recreate its entry if the spend pruned it.
type SpentCoin struct {
	Prevout    OutPoint
	Out        TxOut
	Height     int
	Version    int32
	IsCoinBase bool
	IsFromCert bool
}

type TxUndo struct {
	Spent []SpentCoin
	// Prev is the entry found under the transaction hash before it was
	// overwritten. Nil when the entry was created fresh.
	Prev *Coins
}

type CertUndo struct {
	CertHash Hash
	Height   int
	// Prev is the entry found under the certificate hash before it was
	// overwritten. Nil when the entry was created fresh.
	Prev *Coins
}

// BlockUndo collects the undo records of one connected block, in block order.
type BlockUndo struct {
	TxUndo   []TxUndo
	CertUndo []CertUndo
	// ScMatured holds the sidechain amounts that matured when the block was
	// connected, keyed by sidechain id.
	ScMatured map[Hash]Amount
}

// RevertCertificate undoes one certificate apply: the entry under the
// certificate hash is restored to what it was before, or cleared.
func RevertCertificate(view CoinsModifier, undo CertUndo) error {
	entry, err := view.GetOrCreateEntry(undo.CertHash)
	if err != nil {
		return err
	}
	if !entry.IsFromCert && !entry.IsPruned() {
		return certerr(ERR_UNDO, fmt.Sprintf("entry %s was not created by a certificate", undo.CertHash))
	}
	if undo.Prev != nil {
		*entry = *undo.Prev.Clone()
		return nil
	}
	entry.Clear()
	return nil
}

// RevertTransaction removes the outputs tx created and restores the outputs
// it spent.
func RevertTransaction(view CoinsModifier, tx *Transaction, undo TxUndo) error {
	entry, err := view.GetOrCreateEntry(tx.Hash())
	if err != nil {
		return err
	}
	if undo.Prev != nil {
		*entry = *undo.Prev.Clone()
	} else {
		entry.Clear()
	}
	for i := len(undo.Spent) - 1; i >= 0; i-- {
		sp := undo.Spent[i]
		prev, err := view.GetOrCreateEntry(sp.Prevout.Hash)
		if err != nil {
			return err
		}
		if prev.IsPruned() {
			prev.Version = sp.Version
			prev.Height = sp.Height
			prev.IsCoinBase = sp.IsCoinBase
			prev.IsFromCert = sp.IsFromCert
		}
		if prev.IsAvailable(sp.Prevout.N) {
			return certerr(ERR_UNDO, fmt.Sprintf("output %s already unspent", sp.Prevout))
		}
		for uint32(len(prev.Outputs)) <= sp.Prevout.N {
			prev.Outputs = append(prev.Outputs, TxOut{Value: -1})
		}
		prev.Outputs[sp.Prevout.N] = sp.Out.Clone()
	}
	return nil
}
