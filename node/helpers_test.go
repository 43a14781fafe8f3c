package node

import (
	"testing"

	"sccert.dev/node/consensus"
	"sccert.dev/node/node/store"
	"sccert.dev/node/sidechain"
)

func testHash(b byte) consensus.Hash {
	var h consensus.Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func testPKH(b byte) [20]byte {
	var p [20]byte
	for i := range p {
		p[i] = b
	}
	return p
}

func replayScript(pkh byte, height int64) consensus.Script {
	return consensus.P2PKHReplayScript(testPKH(pkh), testHash(0xbb), height)
}

// newTestCert pays out to a single replay-protected output; the fee is
// total-out.
func newTestCert(scID byte, total, out consensus.Amount) *consensus.Certificate {
	b := consensus.NewCertificateBuilder(testHash(scID))
	b.TotalAmount = total
	b.Nonce = testHash(0x01)
	b.AddOutput(out, replayScript(0x11, 0))
	return b.Seal()
}

// fundedRegistry returns an in-memory registry with each sidechain holding
// balance, already matured.
func fundedRegistry(t *testing.T, balance consensus.Amount, scIDs ...byte) *sidechain.Manager {
	t.Helper()
	m, err := sidechain.NewManager(sidechain.NewMemBackend(), 0, nil)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	for _, id := range scIDs {
		if err := m.CreateSidechain(testHash(id), testHash(0xc0), testHash(0xb0), 0, balance); err != nil {
			t.Fatalf("CreateSidechain: %v", err)
		}
	}
	if _, err := m.ApplyMatureBalances(0); err != nil {
		t.Fatalf("ApplyMatureBalances: %v", err)
	}
	return m
}

type recordingWallet struct {
	certs []consensus.Hash
}

func (w *recordingWallet) SyncCertificate(cert *consensus.Certificate, _ *consensus.Block) {
	w.certs = append(w.certs, cert.Hash())
}

type testNode struct {
	db        *store.DB
	registry  *sidechain.Manager
	chain     *ChainState
	pool      *CertPool
	hub       *WalletHub
	assembler *BlockAssembler
}

func openTestNode(t *testing.T, datadir, mode string) *testNode {
	t.Helper()
	db, err := store.Open(datadir, "regtest")
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	n := &testNode{db: db, hub: NewWalletHub()}
	if mode == ModeFull {
		n.registry, err = sidechain.NewManager(db, 0, nil)
		if err != nil {
			t.Fatalf("NewManager: %v", err)
		}
	}
	rules := NewRules(mode, n.registry, NewStandardPolicy(100))
	n.chain, err = NewChainState(db, "regtest", n.registry, rules, NewWalletNotifier(mode, n.hub), nil)
	if err != nil {
		t.Fatalf("NewChainState: %v", err)
	}
	n.pool = NewCertPool(rules, true, nil)
	cfg := DefaultMinerConfig()
	cfg.TimestampSource = func() uint32 { return 1_700_000_000 }
	n.assembler, err = NewBlockAssembler(n.chain, n.pool, cfg, nil)
	if err != nil {
		t.Fatalf("NewBlockAssembler: %v", err)
	}
	return n
}

func newTestNode(t *testing.T, mode string) *testNode {
	t.Helper()
	return openTestNode(t, t.TempDir(), mode)
}
