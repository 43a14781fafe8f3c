package node

import (
	"bytes"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"sccert.dev/node/consensus"
)

// PoolEntry is a certificate waiting to be mined.
type PoolEntry struct {
	Cert   *consensus.Certificate
	Fee    consensus.Amount
	Height int
	Added  time.Time
}

// CertPool holds validated certificates, at most one per sidechain.
type CertPool struct {
	mu              sync.RWMutex
	rules           consensus.CertificateRules
	requireStandard bool
	log             *zap.Logger
	now             func() time.Time

	entries map[consensus.Hash]*PoolEntry
	bySc    map[consensus.Hash]consensus.Hash
}

func NewCertPool(rules consensus.CertificateRules, requireStandard bool, log *zap.Logger) *CertPool {
	if log == nil {
		log = zap.NewNop()
	}
	return &CertPool{
		rules:           rules,
		requireStandard: requireStandard,
		log:             log,
		now:             time.Now,
		entries:         make(map[consensus.Hash]*PoolEntry),
		bySc:            make(map[consensus.Hash]consensus.Hash),
	}
}

// poolView reads the entries without locking; callers hold mu.
type poolView struct{ p *CertPool }

func (v poolView) Exists(hash consensus.Hash) bool {
	_, ok := v.p.entries[hash]
	return ok
}

// Accept validates cert for relay at height and adds it to the pool. The
// returned state describes any rejection; the error is non-nil whenever the
// certificate was not added.
func (p *CertPool) Accept(cert *consensus.Certificate, height int) (*consensus.ValidationState, error) {
	state := &consensus.ValidationState{}
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := cert.Hash()
	if _, ok := p.entries[hash]; ok {
		state.Invalid(consensus.REJECT_DUPLICATE, consensus.REASON_CERT_DUPLICATE, hash.String())
		return state, state.Err()
	}
	if !p.rules.Check(cert, state) {
		return p.reject(cert, state)
	}
	if !cert.ContextualCheck(state, height, 100) {
		if state.IsValid() {
			state.DoS(100, consensus.REJECT_INVALID, consensus.REASON_CERT_CONTEXTUAL, "")
		}
		return p.reject(cert, state)
	}
	if !cert.CheckFinal(0) {
		state.DoS(0, consensus.REJECT_NONSTANDARD, consensus.REASON_CERT_NON_FINAL, "")
		return p.reject(cert, state)
	}
	if p.requireStandard {
		if ok, reason := p.rules.IsStandard(cert, height); !ok {
			state.DoS(0, consensus.REJECT_NONSTANDARD, reason, "")
			return p.reject(cert, state)
		}
	}
	if !p.rules.IsApplicableToState(cert) {
		state.DoS(0, consensus.REJECT_INVALID, consensus.REASON_CERT_NOT_APPLICABLE, cert.ScID().String())
		return p.reject(cert, state)
	}
	if !cert.IsAllowedInMempool(state, poolView{p}) {
		return p.reject(cert, state)
	}
	if other, ok := p.bySc[cert.ScID()]; ok {
		state.Invalid(consensus.REJECT_DUPLICATE, consensus.REASON_CERT_MEMPOOL_CONFLICT, other.String())
		return p.reject(cert, state)
	}
	fee, err := cert.FeeAmount()
	if err != nil {
		state.DoS(100, consensus.REJECT_INVALID, consensus.REASON_CERT_VALUE_OUT_INVALID, err.Error())
		return p.reject(cert, state)
	}
	if fee < 0 {
		state.Invalid(consensus.REJECT_INSUFFICIENTFEE, consensus.REASON_CERT_FEE_NEGATIVE, consensus.FormatMoney(fee))
		return p.reject(cert, state)
	}

	p.entries[hash] = &PoolEntry{Cert: cert, Fee: fee, Height: height, Added: p.now()}
	p.bySc[cert.ScID()] = hash
	p.log.Debug("certificate accepted",
		zap.String("cert", hash.String()),
		zap.String("scid", cert.ScID().String()),
		zap.String("fee", consensus.FormatMoney(fee)),
		zap.Int("pool", len(p.entries)),
	)
	return state, nil
}

func (p *CertPool) reject(cert *consensus.Certificate, state *consensus.ValidationState) (*consensus.ValidationState, error) {
	if state.IsValid() {
		state.Error("rejected without reason")
	}
	p.log.Debug("certificate rejected",
		zap.String("cert", cert.Hash().String()),
		zap.String("state", state.String()),
	)
	return state, state.Err()
}

func (p *CertPool) Remove(hash consensus.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(hash)
}

func (p *CertPool) removeLocked(hash consensus.Hash) bool {
	e, ok := p.entries[hash]
	if !ok {
		return false
	}
	delete(p.entries, hash)
	if p.bySc[e.Cert.ScID()] == hash {
		delete(p.bySc, e.Cert.ScID())
	}
	return true
}

// RemoveForBlock drops the certificates block confirmed along with any pool
// entry for the same sidechains.
func (p *CertPool) RemoveForBlock(block *consensus.Block) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	removed := 0
	for _, c := range block.Certs {
		if p.removeLocked(c.Hash()) {
			removed++
			continue
		}
		if other, ok := p.bySc[c.ScID()]; ok && p.removeLocked(other) {
			removed++
		}
	}
	return removed
}

func (p *CertPool) Get(hash consensus.Hash) (*PoolEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[hash]
	return e, ok
}

func (p *CertPool) Exists(hash consensus.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.entries[hash]
	return ok
}

func (p *CertPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Entries returns the pool ordered by fee, highest first, ties broken by
// hash.
func (p *CertPool) Entries() []*PoolEntry {
	p.mu.RLock()
	out := make([]*PoolEntry, 0, len(p.entries))
	for _, e := range p.entries {
		out = append(out, e)
	}
	p.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Fee != out[j].Fee {
			return out[i].Fee > out[j].Fee
		}
		hi, hj := out[i].Cert.Hash(), out[j].Cert.Hash()
		return bytes.Compare(hi[:], hj[:]) < 0
	})
	return out
}
