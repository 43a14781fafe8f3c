package store

import (
	"testing"

	"sccert.dev/node/consensus"
	"sccert.dev/node/sidechain"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir(), "regtest")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testCert(t *testing.T) *consensus.Certificate {
	t.Helper()
	b := consensus.NewCertificateBuilder(consensus.Hash{0x5c})
	b.TotalAmount = 100
	b.AddOutput(90, consensus.P2PKHReplayScript([20]byte{1}, consensus.Hash{2}, 3))
	b.AddBackwardTransfer(5, [20]byte{7})
	return b.Seal()
}

func TestDB_CoinsBatchWriteAndDelete(t *testing.T) {
	db := openTestDB(t)
	cert := testCert(t)

	var coins consensus.Coins
	coins.PopulateFromCertificate(cert, 12)
	best := consensus.Hash{0xbe}
	if err := db.BatchWrite(map[consensus.Hash]*consensus.Coins{cert.Hash(): &coins}, best); err != nil {
		t.Fatalf("BatchWrite: %v", err)
	}
	got, ok, err := db.GetCoins(cert.Hash())
	if err != nil || !ok {
		t.Fatalf("GetCoins: ok=%v err=%v", ok, err)
	}
	if !got.IsFromCert || got.Height != 12 || got.Version != consensus.CERT_VERSION {
		t.Fatalf("coins mismatch: %+v", got)
	}
	if len(got.Outputs) != 1 || got.Outputs[0].Value != 90 {
		t.Fatalf("outputs mismatch: %+v", got.Outputs)
	}
	if _, _, ok, err := db.Tip(); err != nil || ok {
		t.Fatalf("coin batch alone must not set a tip: ok=%v err=%v", ok, err)
	}

	if err := db.BatchWrite(map[consensus.Hash]*consensus.Coins{cert.Hash(): {}}, best); err != nil {
		t.Fatalf("BatchWrite prune: %v", err)
	}
	if _, ok, err := db.GetCoins(cert.Hash()); err != nil || ok {
		t.Fatalf("expected pruned entry deleted: ok=%v err=%v", ok, err)
	}
	if n, err := db.CoinsCount(); err != nil || n != 0 {
		t.Fatalf("CoinsCount=%d err=%v", n, err)
	}
}

func TestDB_CacheFlushThroughStore(t *testing.T) {
	db := openTestDB(t)
	cert := testCert(t)

	view := consensus.NewCoinsViewCache(db)
	var undo consensus.BlockUndo
	if err := cert.ApplyToState(&consensus.ValidationState{}, view, &undo, 4); err != nil {
		t.Fatalf("ApplyToState: %v", err)
	}
	view.SetBestBlock(consensus.Hash{4})
	if err := view.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	d1, err := db.CoinsDigest()
	if err != nil {
		t.Fatalf("CoinsDigest: %v", err)
	}

	rv := consensus.NewCoinsViewCache(db)
	if err := consensus.RevertCertificate(rv, undo.CertUndo[0]); err != nil {
		t.Fatalf("RevertCertificate: %v", err)
	}
	if err := rv.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	d2, err := db.CoinsDigest()
	if err != nil {
		t.Fatalf("CoinsDigest: %v", err)
	}
	if d1 == d2 {
		t.Fatalf("digest unchanged after revert")
	}
	empty := openTestDB(t)
	d3, _ := empty.CoinsDigest()
	if d2 != d3 {
		t.Fatalf("reverted store digest %x != empty store digest %x", d2, d3)
	}
}

func TestDB_UndoRoundTrip(t *testing.T) {
	db := openTestDB(t)
	prev := &consensus.Coins{Version: 1, Height: 3, IsCoinBase: true, Outputs: []consensus.TxOut{{Value: 1, ScriptPubKey: consensus.Script{0x51}}}}
	u := &consensus.BlockUndo{
		TxUndo: []consensus.TxUndo{{
			Spent: []consensus.SpentCoin{{
				Prevout:    consensus.OutPoint{Hash: consensus.Hash{1}, N: 2},
				Out:        consensus.TxOut{Value: 50, ScriptPubKey: consensus.Script{0x76, 0xa9}},
				Height:     9,
				Version:    1,
				IsFromCert: true,
			}},
		}},
		CertUndo: []consensus.CertUndo{
			{CertHash: consensus.Hash{3}, Height: 10},
			{CertHash: consensus.Hash{4}, Height: 10, Prev: prev},
		},
		ScMatured: map[consensus.Hash]consensus.Amount{{0xaa}: 1000, {0x01}: 7},
	}
	blk := &consensus.Block{Header: consensus.BlockHeader{Version: 4, Time: 9}}
	bh := blk.Hash()
	if err := db.CommitBlock(&BlockCommit{Block: blk, Undo: u, Tip: bh, TipHeight: 0}); err != nil {
		t.Fatalf("CommitBlock: %v", err)
	}
	got, ok, err := db.GetUndo(bh)
	if err != nil || !ok {
		t.Fatalf("GetUndo: ok=%v err=%v", ok, err)
	}
	if len(got.TxUndo) != 1 || len(got.CertUndo) != 2 {
		t.Fatalf("undo shape mismatch: %+v", got)
	}
	sp := got.TxUndo[0].Spent[0]
	if sp.Prevout.N != 2 || sp.Out.Value != 50 || !sp.IsFromCert || sp.IsCoinBase || sp.Height != 9 {
		t.Fatalf("spent mismatch: %+v", sp)
	}
	if got.TxUndo[0].Prev != nil || got.CertUndo[0].Prev != nil {
		t.Fatalf("expected nil prev")
	}
	p := got.CertUndo[1].Prev
	if p == nil || !p.IsCoinBase || p.Height != 3 || len(p.Outputs) != 1 {
		t.Fatalf("prev mismatch: %+v", p)
	}
	if len(got.ScMatured) != 2 || got.ScMatured[consensus.Hash{0xaa}] != 1000 {
		t.Fatalf("sidechain undo mismatch: %+v", got.ScMatured)
	}

	if err := db.CommitBlock(&BlockCommit{DropUndo: &bh, TipHeight: -1}); err != nil {
		t.Fatalf("CommitBlock disconnect: %v", err)
	}
	if _, ok, _ := db.GetUndo(bh); ok {
		t.Fatalf("undo still present")
	}
}

func TestDB_DecodeRejectsGarbage(t *testing.T) {
	if _, err := decodeCoins([]byte{0x01}); err == nil {
		t.Fatalf("expected truncated coins error")
	}
	b, err := encodeCoins(&consensus.Coins{Outputs: []consensus.TxOut{{Value: 1}}})
	if err != nil {
		t.Fatalf("encodeCoins: %v", err)
	}
	b[8] = 0x80
	if _, err := decodeCoins(b); err == nil {
		t.Fatalf("expected unknown flags error")
	}
	if _, err := decodeBlockUndo([]byte{0x00, 0x00}); err == nil {
		t.Fatalf("expected truncated undo error")
	}
	if _, err := encodeCoins(&consensus.Coins{Height: -1}); err == nil {
		t.Fatalf("expected negative height error")
	}
}

func TestDB_BlocksAndManifest(t *testing.T) {
	datadir := t.TempDir()
	db, err := Open(datadir, "regtest")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	blk := &consensus.Block{Header: consensus.BlockHeader{Version: 4, Time: 7}}
	testCert(t).AppendToBlock(blk)
	if err := db.CommitBlock(&BlockCommit{Block: blk, Undo: &consensus.BlockUndo{}, Tip: blk.Hash(), TipHeight: 1}); err != nil {
		t.Fatalf("CommitBlock: %v", err)
	}
	got, ok, err := db.GetBlock(blk.Hash())
	if err != nil || !ok || len(got.Certs) != 1 {
		t.Fatalf("GetBlock: ok=%v err=%v", ok, err)
	}
	if db.Manifest() != nil {
		t.Fatalf("CommitBlock must not write the manifest itself")
	}
	_ = db.Close()

	// A crash before the manifest rename leaves no manifest at all; the
	// tip in bbolt wins on reopen.
	db, err = Open(datadir, "regtest")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()
	tip, err := db.Manifest().TipHash()
	if err != nil || tip != blk.Hash() || db.Manifest().TipHeight != 1 {
		t.Fatalf("tip=%s height=%d err=%v", tip, db.Manifest().TipHeight, err)
	}
	other, err := Open(datadir, "mainnet")
	if err != nil {
		t.Fatalf("other network should open its own dir: %v", err)
	}
	_ = other.Close()
}

func TestDB_OpenRewritesStaleManifest(t *testing.T) {
	datadir := t.TempDir()
	db, err := Open(datadir, "regtest")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	first := consensus.Hash{0x01}
	second := consensus.Hash{0x02}
	if err := db.CommitBlock(&BlockCommit{Tip: first, TipHeight: 0}); err != nil {
		t.Fatalf("CommitBlock: %v", err)
	}
	if err := db.SetManifest(&Manifest{SchemaVersion: SchemaVersionV1, Network: "regtest", TipHashHex: first.String(), TipHeight: 0}); err != nil {
		t.Fatalf("SetManifest: %v", err)
	}
	if err := db.CommitBlock(&BlockCommit{Tip: second, TipHeight: 1}); err != nil {
		t.Fatalf("CommitBlock: %v", err)
	}
	_ = db.Close()

	db, err = Open(datadir, "regtest")
	if err != nil {
		t.Fatalf("reopen with stale manifest: %v", err)
	}
	defer db.Close()
	tip, height, ok, err := db.Tip()
	if err != nil || !ok || tip != second || height != 1 {
		t.Fatalf("Tip=%s/%d ok=%v err=%v", tip, height, ok, err)
	}
	if db.Manifest().TipHashHex != second.String() || db.Manifest().TipHeight != 1 {
		t.Fatalf("manifest not reconciled: %+v", db.Manifest())
	}
}

func TestDB_CommitBlockIsAtomic(t *testing.T) {
	db := openTestDB(t)
	cert := testCert(t)
	var coins consensus.Coins
	coins.PopulateFromCertificate(cert, 1)

	bad := &BlockCommit{
		Coins:      map[consensus.Hash]*consensus.Coins{cert.Hash(): &coins},
		Sidechains: map[consensus.Hash]*sidechain.Info{{0xaa}: {CreationHeight: -1}},
		Tip:        consensus.Hash{0x01},
		TipHeight:  0,
	}
	if err := db.CommitBlock(bad); err == nil {
		t.Fatalf("expected commit failure for unencodable sidechain")
	}
	if _, ok, err := db.GetCoins(cert.Hash()); err != nil || ok {
		t.Fatalf("coins written by failed commit: ok=%v err=%v", ok, err)
	}
	if _, _, ok, err := db.Tip(); err != nil || ok {
		t.Fatalf("tip moved by failed commit: ok=%v err=%v", ok, err)
	}
}

func TestDB_SidechainBackend(t *testing.T) {
	db := openTestDB(t)
	m, err := sidechain.NewManager(db, 2, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	id := consensus.Hash{0xaa}
	if err := m.CreateSidechain(id, consensus.Hash{1}, consensus.Hash{2}, 5, 1000); err != nil {
		t.Fatalf("CreateSidechain: %v", err)
	}
	if err := m.ForwardTransfer(id, 6, 10); err != nil {
		t.Fatalf("ForwardTransfer: %v", err)
	}
	if err := m.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	reloaded, err := sidechain.NewManager(db, 2, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	info, ok := reloaded.Info(id)
	if !ok {
		t.Fatalf("sidechain not persisted")
	}
	if info.CreationHeight != 5 || info.ImmatureAmounts[7] != 1000 || info.ImmatureAmounts[8] != 10 {
		t.Fatalf("info mismatch: %+v", info)
	}

	if err := reloaded.RevertCreation(id, 5); err != nil {
		t.Fatalf("RevertCreation: %v", err)
	}
	if err := reloaded.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	all, err := db.LoadSidechains()
	if err != nil || len(all) != 0 {
		t.Fatalf("expected erased sidechain: n=%d err=%v", len(all), err)
	}
}
