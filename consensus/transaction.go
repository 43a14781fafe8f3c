package consensus

import "fmt"

type OutPoint struct {
	Hash Hash
	N    uint32
}

func (o OutPoint) IsNull() bool {
	return o.Hash.IsNull() && o.N == ^uint32(0)
}

func (o OutPoint) String() string {
	return fmt.Sprintf("%s:%d", o.Hash.String()[:10], o.N)
}

type TxIn struct {
	Prevout   OutPoint
	ScriptSig Script
	Sequence  uint32
}

// Transaction is a sealed ordinary transaction. It shares entryBase with
// Certificate and differs by spending inputs.
type Transaction struct {
	entryBase
	vin      []TxIn
	lockTime uint32
}

func (tx *Transaction) IsCertificate() bool { return false }
func (tx *Transaction) LockTime() uint32 { return tx.lockTime }
func (tx *Transaction) NumInputs() int { return len(tx.vin) }

func (tx *Transaction) Inputs() []TxIn {
	out := make([]TxIn, len(tx.vin))
	for i, in := range tx.vin {
		out[i] = TxIn{Prevout: in.Prevout, ScriptSig: append(Script(nil), in.ScriptSig...), Sequence: in.Sequence}
	}
	return out
}

// IsCoinBase reports a transaction whose single input has a null prevout.
func (tx *Transaction) IsCoinBase() bool {
	return len(tx.vin) == 1 && tx.vin[0].Prevout.IsNull()
}

func (tx *Transaction) Bytes() []byte {
	return appendTransaction(make([]byte, 0, tx.SerializedSize()), tx.version, tx.vin, tx.vout, tx.lockTime)
}

func (tx *Transaction) SerializedSize() int {
	n := 4 + CompactSizeLen(uint64(len(tx.vin)))
	for _, in := range tx.vin {
		n += 32 + 4 + CompactSizeLen(uint64(len(in.ScriptSig))) + len(in.ScriptSig) + 4
	}
	n += CompactSizeLen(uint64(len(tx.vout)))
	for _, o := range tx.vout {
		n += txOutSize(o)
	}
	return n + 4
}

func appendTransaction(b []byte, version int32, vin []TxIn, vout []TxOut, lockTime uint32) []byte {
	b = AppendI32LE(b, version)
	b = AppendCompactSize(b, uint64(len(vin)))
	for _, in := range vin {
		b = append(b, in.Prevout.Hash[:]...)
		b = AppendU32LE(b, in.Prevout.N)
		b = AppendVarBytes(b, in.ScriptSig)
		b = AppendU32LE(b, in.Sequence)
	}
	b = AppendCompactSize(b, uint64(len(vout)))
	for _, o := range vout {
		b = AppendTxOut(b, o)
	}
	return AppendU32LE(b, lockTime)
}

// ParseTransaction decodes the canonical transaction encoding.
func ParseTransaction(b []byte) (*Transaction, error) {
	r := NewReader(b)
	version, err := r.ReadI32LE()
	if err != nil {
		return nil, certerr(TX_ERR_PARSE, "version: "+err.Error())
	}
	nIn, err := r.ReadCompactSize("vin count")
	if err != nil {
		return nil, certerr(TX_ERR_PARSE, err.Error())
	}
	// an input takes at least 41 bytes
	vin := make([]TxIn, 0, min(nIn, r.Remaining()/41))
	for i := 0; i < nIn; i++ {
		var in TxIn
		if in.Prevout.Hash, err = r.ReadHash(); err != nil {
			return nil, certerr(TX_ERR_PARSE, "prevout: "+err.Error())
		}
		if in.Prevout.N, err = r.ReadU32LE(); err != nil {
			return nil, certerr(TX_ERR_PARSE, "prevout: "+err.Error())
		}
		if in.ScriptSig, err = r.ReadVarBytes("scriptSig"); err != nil {
			return nil, certerr(TX_ERR_PARSE, err.Error())
		}
		if in.Sequence, err = r.ReadU32LE(); err != nil {
			return nil, certerr(TX_ERR_PARSE, "sequence: "+err.Error())
		}
		vin = append(vin, in)
	}
	nOut, err := r.ReadCompactSize("vout count")
	if err != nil {
		return nil, certerr(TX_ERR_PARSE, err.Error())
	}
	vout := make([]TxOut, 0, min(nOut, r.Remaining()/9))
	for i := 0; i < nOut; i++ {
		o, err := ReadTxOut(r)
		if err != nil {
			return nil, certerr(TX_ERR_PARSE, "vout: "+err.Error())
		}
		vout = append(vout, o)
	}
	lockTime, err := r.ReadU32LE()
	if err != nil {
		return nil, certerr(TX_ERR_PARSE, "locktime: "+err.Error())
	}
	if err := r.Done(); err != nil {
		return nil, certerr(TX_ERR_PARSE, err.Error())
	}
	tx := &Transaction{entryBase: entryBase{version: version, vout: vout}, vin: vin, lockTime: lockTime}
	tx.hash = serializeHash(b)
	return tx, nil
}

// TransactionBuilder stages transaction fields before sealing.
type TransactionBuilder struct {
	Version  int32
	Inputs   []TxIn
	Outputs  []TxOut
	LockTime uint32
}

func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{Version: TX_VERSION}
}

func (b *TransactionBuilder) AddInput(prev OutPoint, scriptSig Script) *TransactionBuilder {
	b.Inputs = append(b.Inputs, TxIn{Prevout: prev, ScriptSig: append(Script(nil), scriptSig...), Sequence: ^uint32(0)})
	return b
}

func (b *TransactionBuilder) AddOutput(value Amount, script Script) *TransactionBuilder {
	b.Outputs = append(b.Outputs, TxOut{Value: value, ScriptPubKey: append(Script(nil), script...)})
	return b
}

func (b *TransactionBuilder) Seal() *Transaction {
	vin := make([]TxIn, len(b.Inputs))
	for i, in := range b.Inputs {
		vin[i] = TxIn{Prevout: in.Prevout, ScriptSig: append(Script(nil), in.ScriptSig...), Sequence: in.Sequence}
	}
	tx := &Transaction{
		entryBase: entryBase{version: b.Version, vout: cloneTxOuts(b.Outputs)},
		vin:       vin,
		lockTime:  b.LockTime,
	}
	tx.hash = serializeHash(tx.Bytes())
	return tx
}

// NewCoinbase builds a coinbase paying value to script. The height pushed in
// the scriptSig keeps coinbases at different heights distinct.
func NewCoinbase(height int, value Amount, script Script) *Transaction {
	sig := NewScriptBuilder().AddHeight(int64(height)).AddOp(OP_0).Script()
	b := NewTransactionBuilder()
	b.Inputs = []TxIn{{Prevout: OutPoint{N: ^uint32(0)}, ScriptSig: sig, Sequence: ^uint32(0)}}
	return b.AddOutput(value, script).Seal()
}
