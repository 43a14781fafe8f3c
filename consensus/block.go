package consensus

import "go.uber.org/zap"

const BLOCK_HEADER_BYTES = 80

type BlockHeader struct {
	Version    int32
	PrevBlock  Hash
	MerkleRoot Hash
	Time       uint32
	Bits       uint32
	Nonce      uint32
}

func (h BlockHeader) Bytes() []byte {
	b := make([]byte, 0, BLOCK_HEADER_BYTES)
	b = AppendI32LE(b, h.Version)
	b = append(b, h.PrevBlock[:]...)
	b = append(b, h.MerkleRoot[:]...)
	b = AppendU32LE(b, h.Time)
	b = AppendU32LE(b, h.Bits)
	return AppendU32LE(b, h.Nonce)
}

func (h BlockHeader) Hash() Hash {
	return serializeHash(h.Bytes())
}

// Block carries transactions and certificates as sibling lists.
type Block struct {
	Header BlockHeader
	Txs    []*Transaction
	Certs  []*Certificate
}

func (b *Block) Hash() Hash {
	return b.Header.Hash()
}

// Entries lists transactions first, then certificates, the order in which
// they are applied.
func (b *Block) Entries() []LedgerEntry {
	out := make([]LedgerEntry, 0, len(b.Txs)+len(b.Certs))
	for _, tx := range b.Txs {
		out = append(out, tx)
	}
	for _, c := range b.Certs {
		out = append(out, c)
	}
	return out
}

// ComputeMerkleRoot hashes transaction ids followed by certificate ids into
// a merkle root. An odd level duplicates its last element.
func (b *Block) ComputeMerkleRoot() Hash {
	level := make([]Hash, 0, len(b.Txs)+len(b.Certs))
	for _, e := range b.Entries() {
		level = append(level, e.Hash())
	}
	return merkleRoot(level)
}

func merkleRoot(level []Hash) Hash {
	if len(level) == 0 {
		return Hash{}
	}
	var buf [64]byte
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := level[:0]
		for i := 0; i < len(level); i += 2 {
			copy(buf[:32], level[i][:])
			copy(buf[32:], level[i+1][:])
			next = append(next, serializeHash(buf[:]))
		}
		level = next
	}
	return level[0]
}

// BlockTemplate is a block under assembly with per-entry fee bookkeeping.
// TxFees and TxSigOps run parallel to Block.Txs, CertFees to Block.Certs.
type BlockTemplate struct {
	Block    *Block
	TxFees   []Amount
	TxSigOps []int
	CertFees []Amount
}

func NewBlockTemplate(header BlockHeader) *BlockTemplate {
	return &BlockTemplate{Block: &Block{Header: header}}
}

func (c *Certificate) AppendToBlock(block *Block) {
	block.Certs = append(block.Certs, c)
}

// AppendToBlockTemplate adds c and its fee. sigOps is accepted for symmetry
// with transactions and ignored.
func (c *Certificate) AppendToBlockTemplate(tmpl *BlockTemplate, fee Amount, sigOps int) {
	c.AppendToBlock(tmpl.Block)
	tmpl.CertFees = append(tmpl.CertFees, fee)
	logger().Debug("added certificate to block template",
		zap.Stringer("cert", c.hash),
		zap.String("fee", FormatMoney(fee)))
}

func (tx *Transaction) AppendToBlock(block *Block) {
	block.Txs = append(block.Txs, tx)
}

func (tx *Transaction) AppendToBlockTemplate(tmpl *BlockTemplate, fee Amount, sigOps int) {
	tx.AppendToBlock(tmpl.Block)
	tmpl.TxFees = append(tmpl.TxFees, fee)
	tmpl.TxSigOps = append(tmpl.TxSigOps, sigOps)
}

// WalletNotifier receives certificates as they are connected. block is nil
// for certificates seen outside a block.
type WalletNotifier interface {
	SyncCertificate(cert *Certificate, block *Block)
}

// NopWalletNotifier drops every notification.
type NopWalletNotifier struct{}

func (NopWalletNotifier) SyncCertificate(*Certificate, *Block) {}

func (c *Certificate) NotifyWallets(n WalletNotifier, block *Block) {
	if n == nil {
		return
	}
	logger().Debug("sync with wallet", zap.Stringer("cert", c.hash))
	n.SyncCertificate(c, block)
}

// Bytes encodes the block as header | CompactSize(n) tx* | CompactSize(m)
// cert*, each entry length-prefixed.
func (b *Block) Bytes() []byte {
	out := b.Header.Bytes()
	out = AppendCompactSize(out, uint64(len(b.Txs)))
	for _, tx := range b.Txs {
		out = AppendVarBytes(out, tx.Bytes())
	}
	out = AppendCompactSize(out, uint64(len(b.Certs)))
	for _, c := range b.Certs {
		out = AppendVarBytes(out, c.Bytes())
	}
	return out
}

func ParseBlockHeader(b []byte) (BlockHeader, error) {
	if len(b) != BLOCK_HEADER_BYTES {
		return BlockHeader{}, certerr(CERT_ERR_PARSE, "block header: bad length")
	}
	r := NewReader(b)
	var h BlockHeader
	h.Version, _ = r.ReadI32LE()
	h.PrevBlock, _ = r.ReadHash()
	h.MerkleRoot, _ = r.ReadHash()
	h.Time, _ = r.ReadU32LE()
	h.Bits, _ = r.ReadU32LE()
	h.Nonce, _ = r.ReadU32LE()
	return h, nil
}

func ParseBlock(b []byte) (*Block, error) {
	if len(b) < BLOCK_HEADER_BYTES {
		return nil, certerr(CERT_ERR_PARSE, "block: truncated header")
	}
	header, err := ParseBlockHeader(b[:BLOCK_HEADER_BYTES])
	if err != nil {
		return nil, err
	}
	blk := &Block{Header: header}
	r := NewReader(b[BLOCK_HEADER_BYTES:])
	nTx, err := r.ReadCompactSize("tx count")
	if err != nil {
		return nil, certerr(CERT_ERR_PARSE, err.Error())
	}
	for i := 0; i < nTx; i++ {
		raw, err := r.ReadVarBytes("tx")
		if err != nil {
			return nil, certerr(CERT_ERR_PARSE, err.Error())
		}
		tx, err := ParseTransaction(raw)
		if err != nil {
			return nil, err
		}
		blk.Txs = append(blk.Txs, tx)
	}
	nCert, err := r.ReadCompactSize("cert count")
	if err != nil {
		return nil, certerr(CERT_ERR_PARSE, err.Error())
	}
	for i := 0; i < nCert; i++ {
		raw, err := r.ReadVarBytes("cert")
		if err != nil {
			return nil, certerr(CERT_ERR_PARSE, err.Error())
		}
		c, err := ParseCertificate(raw)
		if err != nil {
			return nil, err
		}
		blk.Certs = append(blk.Certs, c)
	}
	if err := r.Done(); err != nil {
		return nil, certerr(CERT_ERR_PARSE, err.Error())
	}
	return blk, nil
}
