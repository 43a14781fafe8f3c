package node

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sccert.dev/node/consensus"
	"sccert.dev/node/node/store"
	"sccert.dev/node/sidechain"
)

const (
	REASON_BAD_PREVBLK  = "bad-prevblk"
	REASON_BAD_MERKLE   = "bad-txnmrklroot"
	REASON_BLK_LENGTH   = "bad-blk-length"
	REASON_CB_MISSING   = "bad-cb-missing"
	REASON_CB_MULTIPLE  = "bad-cb-multiple"
	REASON_SC_BALANCE   = "bad-cert-sc-balance"
	REASON_SC_MATURITY  = "bad-sc-maturity"
	REASON_BLK_CERT_DUP = "bad-blk-cert-duplicate"
)

var ErrNoTip = errors.New("chainstate: no tip")

// ChainState owns the connected chain: the coins cache over the store, the
// sidechain registry and the tip. Blocks are connected and disconnected one
// at a time.
type ChainState struct {
	mu       sync.Mutex
	db       *store.DB
	coins    *consensus.CoinsViewCache
	registry *sidechain.Manager
	rules    consensus.CertificateRules
	wallets  consensus.WalletNotifier
	network  string
	log      *zap.Logger

	hasTip bool
	height int
	tip    consensus.Hash
}

type ChainStateConnectSummary struct {
	BlockHeight int
	BlockHash   consensus.Hash
	Txs         int
	Certs       int
	CertFees    consensus.Amount
	Matured     int
}

// NewChainState resumes from the tip recorded in db. registry may be nil for
// nodes that do not track sidechain balances.
func NewChainState(db *store.DB, network string, registry *sidechain.Manager, rules consensus.CertificateRules, wallets consensus.WalletNotifier, log *zap.Logger) (*ChainState, error) {
	if db == nil {
		return nil, errors.New("chainstate: nil db")
	}
	if rules == nil {
		return nil, errors.New("chainstate: nil rules")
	}
	if wallets == nil {
		wallets = consensus.NopWalletNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	cs := &ChainState{
		db:       db,
		coins:    consensus.NewCoinsViewCache(db),
		registry: registry,
		rules:    rules,
		wallets:  wallets,
		network:  network,
		log:      log,
		height:   -1,
	}
	tip, height, ok, err := db.Tip()
	if err != nil {
		return nil, errors.Wrap(err, "chainstate tip")
	}
	if ok {
		cs.hasTip, cs.tip, cs.height = true, tip, height
	}
	cs.coins.SetBestBlock(cs.tip)
	return cs, nil
}

// Tip returns the hash and height of the connected tip; height is -1 before
// the first block.
func (cs *ChainState) Tip() (consensus.Hash, int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.tip, cs.height
}

// Coins is the chain's coin view. Callers must not write to it.
func (cs *ChainState) Coins() consensus.CoinsView { return cs.coins }

func (cs *ChainState) Rules() consensus.CertificateRules { return cs.rules }

func (cs *ChainState) tracksSidechains() bool {
	return cs.registry != nil && !isLite(cs.rules)
}

func blockReject(level int, reason, debug string) error {
	var st consensus.ValidationState
	st.DoS(level, consensus.REJECT_INVALID, reason, debug)
	return st.Err()
}

// ConnectBlock validates blk against the tip and applies it: transactions
// first, then certificates, each certificate debiting its sidechain. Nothing
// is written unless every entry applies. Rejections are *consensus.RejectError
// values, possibly wrapped.
func (cs *ChainState) ConnectBlock(blk *consensus.Block) (*ChainStateConnectSummary, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	height := cs.height + 1
	hash := blk.Hash()
	if blk.Header.PrevBlock != cs.tip {
		return nil, blockReject(0, REASON_BAD_PREVBLK, fmt.Sprintf("prev %s, tip %s", blk.Header.PrevBlock, cs.tip))
	}
	if err := cs.checkBlock(blk); err != nil {
		return nil, err
	}

	view := consensus.NewCoinsViewCache(cs.coins)
	undo := &consensus.BlockUndo{}
	var state consensus.ValidationState
	for _, tx := range blk.Txs {
		if err := tx.ApplyToState(&state, view, undo, height); err != nil {
			return nil, errors.Wrapf(err, "connect tx %s", tx.Hash())
		}
	}

	var applied []*consensus.Certificate
	rollback := func() {
		for i := len(applied) - 1; i >= 0; i-- {
			if err := cs.registry.RevertCertificate(applied[i]); err != nil {
				cs.log.Error("rollback certificate debit", zap.Error(err))
			}
		}
		if undo.ScMatured != nil {
			if err := cs.registry.RestoreImmatureBalances(height, undo.ScMatured); err != nil {
				cs.log.Error("rollback matured balances", zap.Error(err))
			}
		}
	}
	if cs.tracksSidechains() {
		matured, err := cs.registry.ApplyMatureBalances(height)
		if err != nil {
			return nil, errors.Wrapf(blockReject(100, REASON_SC_MATURITY, err.Error()), "connect block %s", hash)
		}
		undo.ScMatured = matured
	}

	var fees consensus.Amount
	for _, c := range blk.Certs {
		if cs.tracksSidechains() {
			if !cs.rules.IsApplicableToState(c) {
				rollback()
				return nil, blockReject(100, consensus.REASON_CERT_NOT_APPLICABLE, c.Hash().String())
			}
			if err := cs.registry.ApplyCertificate(c); err != nil {
				rollback()
				return nil, errors.Wrap(blockReject(100, REASON_SC_BALANCE, err.Error()), "connect certificate")
			}
			applied = append(applied, c)
		}
		if err := c.ApplyToState(&state, view, undo, height); err != nil {
			rollback()
			return nil, errors.Wrapf(err, "connect certificate %s", c.Hash())
		}
		fee, err := c.FeeAmount()
		if err != nil || fee <= 0 {
			continue
		}
		if sum, err := consensus.AddAmounts(fees, fee); err == nil {
			fees = sum
		} else {
			cs.log.Warn("certificate fee left out of block total",
				zap.Stringer("cert", c.Hash()),
				zap.Error(err),
			)
		}
	}

	view.SetBestBlock(hash)
	if err := cs.commit(view, &store.BlockCommit{
		Block:     blk,
		Undo:      undo,
		Tip:       hash,
		TipHeight: height,
	}); err != nil {
		return nil, err
	}

	for _, c := range blk.Certs {
		c.NotifyWallets(cs.wallets, blk)
	}
	cs.log.Info("connected block",
		zap.String("hash", hash.String()),
		zap.Int("height", height),
		zap.Int("txs", len(blk.Txs)),
		zap.Int("certs", len(blk.Certs)),
		zap.String("cert_fees", consensus.FormatMoney(fees)),
	)
	return &ChainStateConnectSummary{
		BlockHeight: height,
		BlockHash:   hash,
		Txs:         len(blk.Txs),
		Certs:       len(blk.Certs),
		CertFees:    fees,
		Matured:     len(undo.ScMatured),
	}, nil
}

// checkBlock runs the context-free checks of every entry concurrently.
func (cs *ChainState) checkBlock(blk *consensus.Block) error {
	if size := len(blk.Bytes()); size > consensus.MAX_BLOCK_SIZE {
		return blockReject(100, REASON_BLK_LENGTH, fmt.Sprintf("size %d", size))
	}
	if blk.Header.MerkleRoot != blk.ComputeMerkleRoot() {
		return blockReject(100, REASON_BAD_MERKLE, "")
	}
	if len(blk.Txs) == 0 || !blk.Txs[0].IsCoinBase() {
		return blockReject(100, REASON_CB_MISSING, "")
	}
	for _, tx := range blk.Txs[1:] {
		if tx.IsCoinBase() {
			return blockReject(100, REASON_CB_MULTIPLE, tx.Hash().String())
		}
	}
	seen := make(map[consensus.Hash]struct{}, len(blk.Certs))
	for _, c := range blk.Certs {
		if _, dup := seen[c.Hash()]; dup {
			return blockReject(100, REASON_BLK_CERT_DUP, c.Hash().String())
		}
		seen[c.Hash()] = struct{}{}
	}

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, tx := range blk.Txs {
		tx := tx
		g.Go(func() error {
			var st consensus.ValidationState
			if !consensus.CheckTransaction(tx, &st) {
				return errors.Wrapf(st.Err(), "tx %s", tx.Hash())
			}
			return nil
		})
	}
	for _, c := range blk.Certs {
		c := c
		g.Go(func() error {
			var st consensus.ValidationState
			if !cs.rules.Check(c, &st) {
				return errors.Wrapf(st.Err(), "certificate %s", c.Hash())
			}
			return nil
		})
	}
	return g.Wait()
}

// commit flushes view into the chain cache and persists the cache, the
// registry and the tip in one store transaction. If the store rejects the
// commit, in-memory state is reset to what the store holds.
func (cs *ChainState) commit(view *consensus.CoinsViewCache, c *store.BlockCommit) error {
	if err := view.Flush(); err != nil {
		cs.resetToStore()
		return errors.Wrap(err, "flush block view")
	}
	persist := consensus.CoinsBatchWriterFunc(func(entries map[consensus.Hash]*consensus.Coins, _ consensus.Hash) error {
		c.Coins = entries
		if cs.registry == nil {
			return cs.db.CommitBlock(c)
		}
		return cs.registry.FlushWith(func(upserts map[consensus.Hash]*sidechain.Info, erased []consensus.Hash) error {
			c.Sidechains, c.ErasedSidechains = upserts, erased
			return cs.db.CommitBlock(c)
		})
	})
	if err := cs.coins.FlushTo(persist); err != nil {
		cs.resetToStore()
		return err
	}
	cs.tip, cs.height, cs.hasTip = c.Tip, c.TipHeight, c.TipHeight >= 0

	m := &store.Manifest{
		SchemaVersion: store.SchemaVersionV1,
		Network:       cs.network,
		TipHeight:     c.TipHeight,
	}
	if c.TipHeight >= 0 {
		m.TipHashHex = c.Tip.String()
	}
	if err := cs.db.SetManifest(m); err != nil {
		// The database already holds the tip; the next Open rewrites the manifest.
		cs.log.Warn("write manifest", zap.Error(err))
	}
	return nil
}

func (cs *ChainState) resetToStore() {
	cs.coins.Discard(cs.tip)
	if cs.registry == nil {
		return
	}
	if err := cs.registry.Reload(); err != nil {
		cs.log.Error("reload sidechains", zap.Error(err))
	}
}

// DisconnectTip reverts the tip block using its stored undo record and
// returns the block.
func (cs *ChainState) DisconnectTip() (*consensus.Block, error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if !cs.hasTip {
		return nil, ErrNoTip
	}
	hash, height := cs.tip, cs.height
	blk, ok, err := cs.db.GetBlock(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("disconnect: block %s not stored", hash)
	}
	undo, ok, err := cs.db.GetUndo(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Errorf("disconnect: no undo for %s", hash)
	}
	if len(undo.TxUndo) != len(blk.Txs) || len(undo.CertUndo) != len(blk.Certs) {
		return nil, errors.Errorf("disconnect: undo for %s does not match block", hash)
	}

	view := consensus.NewCoinsViewCache(cs.coins)
	for i := len(blk.Certs) - 1; i >= 0; i-- {
		if err := consensus.RevertCertificate(view, undo.CertUndo[i]); err != nil {
			return nil, errors.Wrapf(err, "disconnect certificate %s", blk.Certs[i].Hash())
		}
	}
	for i := len(blk.Txs) - 1; i >= 0; i-- {
		if err := consensus.RevertTransaction(view, blk.Txs[i], undo.TxUndo[i]); err != nil {
			return nil, errors.Wrapf(err, "disconnect tx %s", blk.Txs[i].Hash())
		}
	}
	if cs.tracksSidechains() {
		for i := len(blk.Certs) - 1; i >= 0; i-- {
			if err := cs.registry.RevertCertificate(blk.Certs[i]); err != nil {
				cs.resetToStore()
				return nil, err
			}
		}
		if err := cs.registry.RestoreImmatureBalances(height, undo.ScMatured); err != nil {
			cs.resetToStore()
			return nil, err
		}
	}

	prev := blk.Header.PrevBlock
	view.SetBestBlock(prev)
	if err := cs.commit(view, &store.BlockCommit{
		DropUndo:  &hash,
		Tip:       prev,
		TipHeight: height - 1,
	}); err != nil {
		return nil, err
	}
	cs.log.Info("disconnected block", zap.String("hash", hash.String()), zap.Int("height", height))
	return blk, nil
}
