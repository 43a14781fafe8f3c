package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	certs  []Hash
	blocks []*Block
}

func (r *recordingNotifier) SyncCertificate(cert *Certificate, block *Block) {
	r.certs = append(r.certs, cert.Hash())
	r.blocks = append(r.blocks, block)
}

func TestBlockTemplate_CertFeesRunParallel(t *testing.T) {
	tmpl := NewBlockTemplate(BlockHeader{Version: 4})
	cb := NewCoinbase(10, 12*COIN, P2PKHScript(testPKH(1)))
	cb.AppendToBlockTemplate(tmpl, -1, 1)

	c1 := scenarioA().Seal()
	b2 := scenarioA()
	b2.Nonce = testHash(0x02)
	c2 := b2.Seal()
	c1.AppendToBlockTemplate(tmpl, 10, 999)
	c2.AppendToBlockTemplate(tmpl, 20, 999)

	require.Len(t, tmpl.Block.Txs, 1)
	require.Len(t, tmpl.Block.Certs, 2)
	assert.Equal(t, []Amount{10, 20}, tmpl.CertFees)
	assert.Equal(t, []Amount{-1}, tmpl.TxFees)
	assert.Equal(t, []int{1}, tmpl.TxSigOps)
	assert.Equal(t, c2.Hash(), tmpl.Block.Certs[1].Hash())
}

func TestBlock_MerkleRootCoversCertificates(t *testing.T) {
	blk := &Block{}
	NewCoinbase(1, COIN, P2PKHScript(testPKH(1))).AppendToBlock(blk)
	r0 := blk.ComputeMerkleRoot()
	assert.Equal(t, blk.Txs[0].Hash(), r0)

	scenarioA().Seal().AppendToBlock(blk)
	r1 := blk.ComputeMerkleRoot()
	assert.NotEqual(t, r0, r1)

	var buf [64]byte
	left, right := blk.Txs[0].Hash(), blk.Certs[0].Hash()
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	assert.Equal(t, serializeHash(buf[:]), r1)

	entries := blk.Entries()
	require.Len(t, entries, 2)
	assert.False(t, entries[0].IsCertificate())
	assert.True(t, entries[1].IsCertificate())
}

func TestBlock_HeaderHash(t *testing.T) {
	h := BlockHeader{Version: 4, Time: 1, Bits: 0x1d00ffff}
	require.Len(t, h.Bytes(), BLOCK_HEADER_BYTES)
	blk := &Block{Header: h}
	assert.Equal(t, serializeHash(h.Bytes()), blk.Hash())
}

func TestCertificate_NotifyWallets(t *testing.T) {
	cert := scenarioA().Seal()
	blk := &Block{}
	n := &recordingNotifier{}
	cert.NotifyWallets(n, blk)
	cert.NotifyWallets(NopWalletNotifier{}, blk)
	cert.NotifyWallets(nil, blk)
	require.Len(t, n.certs, 1)
	assert.Equal(t, cert.Hash(), n.certs[0])
	assert.Same(t, blk, n.blocks[0])
}

func TestTransaction_ParseRoundTrip(t *testing.T) {
	tx := NewTransactionBuilder().
		AddInput(OutPoint{Hash: testHash(3), N: 7}, Script{0x01, 0x02}).
		AddOutput(5, P2PKHScript(testPKH(9))).
		Seal()
	parsed, err := ParseTransaction(tx.Bytes())
	require.NoError(t, err)
	assert.Equal(t, tx.Hash(), parsed.Hash())
	assert.Equal(t, tx.Inputs(), parsed.Inputs())
	assert.Len(t, tx.Bytes(), tx.SerializedSize())

	var state ValidationState
	assert.True(t, CheckTransaction(tx, &state))
	assert.True(t, CheckTransaction(NewCoinbase(1, COIN, nil), &state))
}

func TestBlock_ParseRoundTrip(t *testing.T) {
	blk := &Block{Header: BlockHeader{Version: 4, PrevBlock: testHash(7), Time: 99}}
	NewCoinbase(3, COIN, P2PKHScript(testPKH(1))).AppendToBlock(blk)
	scenarioA().Seal().AppendToBlock(blk)
	blk.Header.MerkleRoot = blk.ComputeMerkleRoot()

	parsed, err := ParseBlock(blk.Bytes())
	require.NoError(t, err)
	assert.Equal(t, blk.Hash(), parsed.Hash())
	require.Len(t, parsed.Certs, 1)
	assert.Equal(t, blk.Certs[0].Hash(), parsed.Certs[0].Hash())
	assert.Equal(t, blk.Header.MerkleRoot, parsed.ComputeMerkleRoot())

	_, err = ParseBlock(blk.Bytes()[:BLOCK_HEADER_BYTES-1])
	require.Error(t, err)
}
