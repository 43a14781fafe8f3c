package consensus

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ApplyToState writes the certificate's outputs into view under its hash at
// height and appends a CertUndo to undo. A non-nil error means the view
// failed; it is also recorded in state.
func (c *Certificate) ApplyToState(state *ValidationState, view CoinsModifier, undo *BlockUndo, height int) error {
	if undo == nil {
		return certerr(ERR_UNDO, "nil block undo")
	}
	entry, err := view.GetOrCreateEntry(c.hash)
	if err != nil {
		state.Error("coins view failure")
		return errors.Wrapf(err, "apply certificate %s", c.hash)
	}
	rec := CertUndo{CertHash: c.hash, Height: height}
	if !entry.IsPruned() {
		rec.Prev = entry.Clone()
	}
	undo.CertUndo = append(undo.CertUndo, rec)
	entry.PopulateFromCertificate(c, height)
	logger().Debug("applied certificate",
		zap.Stringer("cert", c.hash),
		zap.Int("height", height),
		zap.Bool("overwrote", rec.Prev != nil))
	return nil
}

// ApplyToStateNoUndo has the same effect on view as ApplyToState and
// discards the undo record.
func (c *Certificate) ApplyToStateNoUndo(state *ValidationState, view CoinsModifier, height int) error {
	var scratch BlockUndo
	return c.ApplyToState(state, view, &scratch, height)
}

// ApplyToState spends the transaction's inputs and creates its outputs.
// Missing or already spent inputs mark state invalid and leave view
// untouched.
func (tx *Transaction) ApplyToState(state *ValidationState, view CoinsModifier, undo *BlockUndo, height int) error {
	if undo == nil {
		return certerr(ERR_UNDO, "nil block undo")
	}
	var rec TxUndo
	if !tx.IsCoinBase() {
		prevs := make([]*Coins, len(tx.vin))
		seen := make(map[OutPoint]struct{}, len(tx.vin))
		for i, in := range tx.vin {
			coins, err := view.GetOrCreateEntry(in.Prevout.Hash)
			if err != nil {
				state.Error("coins view failure")
				return errors.Wrapf(err, "apply transaction %s", tx.hash)
			}
			if _, dup := seen[in.Prevout]; dup || !coins.IsAvailable(in.Prevout.N) {
				state.DoS(100, REJECT_INVALID, REASON_INPUTS_MISSINGORSPENT, in.Prevout.String())
				return state.Err()
			}
			seen[in.Prevout] = struct{}{}
			prevs[i] = coins
		}
		rec.Spent = make([]SpentCoin, 0, len(tx.vin))
		for i, in := range tx.vin {
			coins := prevs[i]
			rec.Spent = append(rec.Spent, SpentCoin{
				Prevout:    in.Prevout,
				Out:        coins.Outputs[in.Prevout.N].Clone(),
				Height:     coins.Height,
				Version:    coins.Version,
				IsCoinBase: coins.IsCoinBase,
				IsFromCert: coins.IsFromCert,
			})
			coins.Spend(in.Prevout.N)
		}
	}
	entry, err := view.GetOrCreateEntry(tx.hash)
	if err != nil {
		state.Error("coins view failure")
		return errors.Wrapf(err, "apply transaction %s", tx.hash)
	}
	if !entry.IsPruned() {
		rec.Prev = entry.Clone()
	}
	entry.PopulateFromTransaction(tx, height)
	undo.TxUndo = append(undo.TxUndo, rec)
	return nil
}
