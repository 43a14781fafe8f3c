package consensus

// entryBase holds the fields shared by every ledger entry kind.
type entryBase struct {
	version int32
	vout    []TxOut
	hash    Hash
}

func (e *entryBase) Hash() Hash { return e.hash }
func (e *entryBase) Version() int32 { return e.version }
func (e *entryBase) NumOutputs() int { return len(e.vout) }

// Output returns a copy of output i.
func (e *entryBase) Output(i int) TxOut {
	return e.vout[i].Clone()
}

// Outputs returns a deep copy of the ordinary outputs.
func (e *entryBase) Outputs() []TxOut {
	return cloneTxOuts(e.vout)
}

// ValueOut sums the ordinary outputs. Any single value or partial sum outside
// money range yields ErrValueOutOfRange.
func (e *entryBase) ValueOut() (Amount, error) {
	var total Amount
	for _, o := range e.vout {
		sum, err := AddAmounts(total, o.Value)
		if err != nil {
			return 0, err
		}
		total = sum
	}
	return total, nil
}

// LedgerEntry is implemented by *Transaction and *Certificate, the two kinds
// of entry a block carries.
type LedgerEntry interface {
	Hash() Hash
	Version() int32
	Outputs() []TxOut
	ValueOut() (Amount, error)
	SerializedSize() int
	IsCertificate() bool
	AppendToBlock(block *Block)
	AppendToBlockTemplate(tmpl *BlockTemplate, fee Amount, sigOps int)
	ApplyToState(state *ValidationState, view CoinsModifier, undo *BlockUndo, height int) error
}

var (
	_ LedgerEntry = (*Certificate)(nil)
	_ LedgerEntry = (*Transaction)(nil)
)
