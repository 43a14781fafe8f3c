package node

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sccert.dev/node/consensus"
)

var unixNow = func() int64 { return time.Now().Unix() }

type MinerConfig struct {
	TimestampSource  func() uint32
	MaxCertsPerBlock int
	MaxBlockSize     int
	Bits             uint32
	// CoinbaseScript receives the certificate fees.
	CoinbaseScript consensus.Script
}

func DefaultMinerConfig() MinerConfig {
	return MinerConfig{
		TimestampSource:  func() uint32 { return uint32(unixNow()) }, // #nosec G115 -- header time is 32-bit by format.
		MaxCertsPerBlock: 64,
		MaxBlockSize:     consensus.MAX_BLOCK_SIZE,
		Bits:             0x207fffff,
		CoinbaseScript:   consensus.P2PKHScript([20]byte{}),
	}
}

// BlockAssembler builds block templates on top of the chain tip from the
// certificate pool.
type BlockAssembler struct {
	chainState *ChainState
	pool       *CertPool
	cfg        MinerConfig
	log        *zap.Logger
}

func NewBlockAssembler(chainState *ChainState, pool *CertPool, cfg MinerConfig, log *zap.Logger) (*BlockAssembler, error) {
	if chainState == nil {
		return nil, errors.New("nil chainstate")
	}
	if pool == nil {
		return nil, errors.New("nil cert pool")
	}
	if cfg.TimestampSource == nil {
		cfg.TimestampSource = DefaultMinerConfig().TimestampSource
	}
	if cfg.MaxCertsPerBlock <= 0 {
		cfg.MaxCertsPerBlock = 64
	}
	if cfg.MaxBlockSize <= 0 || cfg.MaxBlockSize > consensus.MAX_BLOCK_SIZE {
		cfg.MaxBlockSize = consensus.MAX_BLOCK_SIZE
	}
	if cfg.CoinbaseScript == nil {
		cfg.CoinbaseScript = DefaultMinerConfig().CoinbaseScript
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &BlockAssembler{chainState: chainState, pool: pool, cfg: cfg, log: log}, nil
}

// NewTemplate selects pool certificates by fee until the count or size limit
// is reached and pays their fees to the coinbase. The coinbase fee slot holds
// the negated total.
func (a *BlockAssembler) NewTemplate() (*consensus.BlockTemplate, error) {
	tip, tipHeight := a.chainState.Tip()
	height := tipHeight + 1
	rules := a.chainState.Rules()

	// Header, two list counts at their widest, and a coinbase with a
	// full-width value.
	cbProbe := consensus.NewCoinbase(height, consensus.MAX_MONEY, a.cfg.CoinbaseScript)
	size := consensus.BLOCK_HEADER_BYTES + 2*9 + cbProbe.SerializedSize() + 9

	var (
		selected []*PoolEntry
		total    consensus.Amount
	)
	for _, e := range a.pool.Entries() {
		if len(selected) >= a.cfg.MaxCertsPerBlock {
			break
		}
		certSize := e.Cert.SerializedSize()
		entrySize := consensus.CompactSizeLen(uint64(certSize)) + certSize
		if size+entrySize > a.cfg.MaxBlockSize {
			continue
		}
		if !rules.IsApplicableToState(e.Cert) {
			a.log.Debug("skipping inapplicable certificate", zap.String("cert", e.Cert.Hash().String()))
			continue
		}
		sum, err := consensus.AddAmounts(total, e.Fee)
		if err != nil {
			continue
		}
		total = sum
		size += entrySize
		selected = append(selected, e)
	}

	tmpl := consensus.NewBlockTemplate(consensus.BlockHeader{
		Version:   4,
		PrevBlock: tip,
		Time:      a.cfg.TimestampSource(),
		Bits:      a.cfg.Bits,
	})
	consensus.NewCoinbase(height, total, a.cfg.CoinbaseScript).AppendToBlockTemplate(tmpl, -total, 0)
	for _, e := range selected {
		e.Cert.AppendToBlockTemplate(tmpl, e.Fee, 0)
	}
	tmpl.Block.Header.MerkleRoot = tmpl.Block.ComputeMerkleRoot()
	a.log.Debug("assembled block template",
		zap.Int("height", height),
		zap.Int("certs", len(selected)),
		zap.String("fees", consensus.FormatMoney(total)),
	)
	return tmpl, nil
}

// GenerateBlock assembles a template, connects it and evicts its
// certificates from the pool.
func (a *BlockAssembler) GenerateBlock(ctx context.Context) (*ChainStateConnectSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tmpl, err := a.NewTemplate()
	if err != nil {
		return nil, err
	}
	summary, err := a.chainState.ConnectBlock(tmpl.Block)
	if err != nil {
		return nil, err
	}
	a.pool.RemoveForBlock(tmpl.Block)
	return summary, nil
}
