package sidechain

import (
	"fmt"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sccert.dev/node/consensus"
)

const (
	REASON_SCID_NULL         = "bad-cert-scid-null"
	REASON_AMOUNT_OUTOFRANGE = "bad-cert-amount-outofrange"
	REASON_BWT_OUTOFRANGE    = "bad-cert-bwt-outofrange"
	REASON_BWT_EXCEEDS_TOTAL = "bad-cert-bwt-exceeds-total"
)

var (
	ErrUnknownSidechain   = errors.New("unknown sidechain")
	ErrDuplicateSidechain = errors.New("sidechain already exists")
	ErrInsufficientFunds  = errors.New("insufficient sidechain balance")
	ErrMissedMaturity     = errors.New("immature amount past its maturity height")
)

// Backend persists registry records.
type Backend interface {
	LoadSidechains() (map[consensus.Hash]*Info, error)
	WriteSidechains(upserts map[consensus.Hash]*Info, erased []consensus.Hash) error
}

// Manager is the in-process sidechain registry. Reads may run concurrently;
// mutations are serialized and buffered until Flush.
type Manager struct {
	mu            sync.RWMutex
	backend       Backend
	coinsMaturity int
	log           *zap.Logger

	infos  map[consensus.Hash]*Info
	dirty  map[consensus.Hash]struct{}
	erased map[consensus.Hash]struct{}
}

// NewManager loads every record from backend. coinsMaturity is the number of
// blocks after which a forward transfer counts toward the balance.
func NewManager(backend Backend, coinsMaturity int, log *zap.Logger) (*Manager, error) {
	if coinsMaturity < 0 {
		return nil, errors.Errorf("coins maturity must be >= 0, got %d", coinsMaturity)
	}
	if log == nil {
		log = zap.NewNop()
	}
	infos, err := backend.LoadSidechains()
	if err != nil {
		return nil, errors.Wrap(err, "load sidechains")
	}
	if infos == nil {
		infos = make(map[consensus.Hash]*Info)
	}
	return &Manager{
		backend:       backend,
		coinsMaturity: coinsMaturity,
		log:           log,
		infos:         infos,
		dirty:         make(map[consensus.Hash]struct{}),
		erased:        make(map[consensus.Hash]struct{}),
	}, nil
}

func (m *Manager) CoinsMaturity() int { return m.coinsMaturity }

func (m *Manager) touch(id consensus.Hash) {
	m.dirty[id] = struct{}{}
	delete(m.erased, id)
}

// CreateSidechain registers scID at height with an initial forward transfer
// of amount, which matures at height+CoinsMaturity.
func (m *Manager) CreateSidechain(scID, creationTx, block consensus.Hash, height int, amount consensus.Amount) error {
	if amount <= 0 || !consensus.MoneyRange(amount) {
		return errors.Wrapf(consensus.ErrValueOutOfRange, "create sidechain %s", scID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.infos[scID]; ok {
		return errors.Wrapf(ErrDuplicateSidechain, "create sidechain %s", scID)
	}
	m.infos[scID] = &Info{
		CreationBlockHash: block,
		CreationHeight:    height,
		CreationTxHash:    creationTx,
		ImmatureAmounts:   map[int]consensus.Amount{height + m.coinsMaturity: amount},
	}
	m.touch(scID)
	m.log.Debug("sidechain created",
		zap.Stringer("scId", scID),
		zap.Int("height", height),
		zap.String("amount", consensus.FormatMoney(amount)))
	return nil
}

// ForwardTransfer adds an immature amount to an existing sidechain.
func (m *Manager) ForwardTransfer(scID consensus.Hash, height int, amount consensus.Amount) error {
	if amount <= 0 || !consensus.MoneyRange(amount) {
		return errors.Wrapf(consensus.ErrValueOutOfRange, "forward transfer to %s", scID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.infos[scID]
	if !ok {
		return errors.Wrapf(ErrUnknownSidechain, "forward transfer to %s", scID)
	}
	maturity := height + m.coinsMaturity
	sum, err := consensus.AddAmounts(info.ImmatureAmounts[maturity], amount)
	if err != nil {
		return errors.Wrapf(err, "forward transfer to %s", scID)
	}
	info.ImmatureAmounts[maturity] = sum
	m.touch(scID)
	return nil
}

// RevertCreation removes a sidechain created at height.
func (m *Manager) RevertCreation(scID consensus.Hash, height int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.infos[scID]
	if !ok {
		return errors.Wrapf(ErrUnknownSidechain, "revert creation of %s", scID)
	}
	if info.CreationHeight != height {
		return errors.Errorf("revert creation of %s: created at %d, not %d", scID, info.CreationHeight, height)
	}
	delete(m.infos, scID)
	delete(m.dirty, scID)
	m.erased[scID] = struct{}{}
	return nil
}

// RevertForwardTransfer removes amount from the immature bucket that a
// transfer made at height was placed in.
func (m *Manager) RevertForwardTransfer(scID consensus.Hash, height int, amount consensus.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.infos[scID]
	if !ok {
		return errors.Wrapf(ErrUnknownSidechain, "revert forward transfer to %s", scID)
	}
	maturity := height + m.coinsMaturity
	have, ok := info.ImmatureAmounts[maturity]
	if !ok || have < amount {
		return errors.Errorf("revert forward transfer to %s: no immature amount %s at %d",
			scID, consensus.FormatMoney(amount), maturity)
	}
	if have == amount {
		delete(info.ImmatureAmounts, maturity)
	} else {
		info.ImmatureAmounts[maturity] = have - amount
	}
	m.touch(scID)
	return nil
}

// ApplyMatureBalances moves every amount maturing at height into the
// sidechain balance and returns what was moved, for undo. An immature
// amount whose maturity height is already behind height means a block was
// skipped; nothing is changed in that case.
func (m *Manager) ApplyMatureBalances(height int) (map[consensus.Hash]consensus.Amount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, info := range m.infos {
		for h := range info.ImmatureAmounts {
			if h < height {
				return nil, errors.Wrapf(ErrMissedMaturity, "sidechain %s at %d (now %d)", id, h, height)
			}
		}
	}
	matured := make(map[consensus.Hash]consensus.Amount)
	for id, info := range m.infos {
		amount, ok := info.ImmatureAmounts[height]
		if !ok {
			continue
		}
		bal, err := consensus.AddAmounts(info.Balance, amount)
		if err != nil {
			return nil, errors.Wrapf(err, "mature balance of %s", id)
		}
		info.Balance = bal
		delete(info.ImmatureAmounts, height)
		matured[id] = amount
		m.touch(id)
	}
	if len(matured) > 0 {
		m.log.Debug("matured sidechain balances", zap.Int("height", height), zap.Int("count", len(matured)))
	}
	return matured, nil
}

// RestoreImmatureBalances reverses ApplyMatureBalances at height. It is
// all-or-nothing: if any sidechain lacks the funds nothing changes.
func (m *Manager) RestoreImmatureBalances(height int, matured map[consensus.Hash]consensus.Amount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, amount := range matured {
		info, ok := m.infos[id]
		if !ok {
			return errors.Wrapf(ErrUnknownSidechain, "restore immature balance of %s", id)
		}
		if info.Balance < amount {
			return errors.Wrapf(ErrInsufficientFunds, "restore immature balance of %s", id)
		}
	}
	for id, amount := range matured {
		info := m.infos[id]
		info.Balance -= amount
		info.ImmatureAmounts[height] += amount
		m.touch(id)
	}
	return nil
}

// ApplyCertificate debits the certificate's total amount from its sidechain.
func (m *Manager) ApplyCertificate(cert *consensus.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.infos[cert.ScID()]
	if !ok {
		return errors.Wrapf(ErrUnknownSidechain, "apply certificate %s", cert.Hash())
	}
	if info.Balance < cert.TotalAmount() {
		return errors.Wrapf(ErrInsufficientFunds, "apply certificate %s", cert.Hash())
	}
	info.Balance -= cert.TotalAmount()
	m.touch(cert.ScID())
	return nil
}

// RevertCertificate credits back what ApplyCertificate debited.
func (m *Manager) RevertCertificate(cert *consensus.Certificate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	info, ok := m.infos[cert.ScID()]
	if !ok {
		return errors.Wrapf(ErrUnknownSidechain, "revert certificate %s", cert.Hash())
	}
	bal, err := consensus.AddAmounts(info.Balance, cert.TotalAmount())
	if err != nil {
		return errors.Wrapf(err, "revert certificate %s", cert.Hash())
	}
	info.Balance = bal
	m.touch(cert.ScID())
	return nil
}

func (m *Manager) Exists(scID consensus.Hash) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.infos[scID]
	return ok
}

// Info returns a copy of the record for scID.
func (m *Manager) Info(scID consensus.Hash) (*Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.infos[scID]
	return info.Clone(), ok
}

// ScIDs lists registered sidechains in byte order.
func (m *Manager) ScIDs() []consensus.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]consensus.Hash, 0, len(m.infos))
	for id := range m.infos {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return string(ids[i][:]) < string(ids[j][:])
	})
	return ids
}

// Flush writes buffered changes to the backend.
func (m *Manager) Flush() error {
	m.mu.RLock()
	clean := len(m.dirty) == 0 && len(m.erased) == 0
	m.mu.RUnlock()
	if clean {
		return nil
	}
	return m.FlushWith(m.backend.WriteSidechains)
}

// FlushWith hands buffered changes to write in place of the backend, so a
// caller can persist them in its own transaction. They stay buffered if
// write fails. write is called even when nothing is buffered.
func (m *Manager) FlushWith(write func(upserts map[consensus.Hash]*Info, erased []consensus.Hash) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	upserts := make(map[consensus.Hash]*Info, len(m.dirty))
	for id := range m.dirty {
		upserts[id] = m.infos[id].Clone()
	}
	erased := make([]consensus.Hash, 0, len(m.erased))
	for id := range m.erased {
		erased = append(erased, id)
	}
	if err := write(upserts, erased); err != nil {
		return errors.Wrap(err, "flush sidechains")
	}
	m.dirty = make(map[consensus.Hash]struct{})
	m.erased = make(map[consensus.Hash]struct{})
	return nil
}

// Reload drops every buffered change and reloads the records from the
// backend.
func (m *Manager) Reload() error {
	infos, err := m.backend.LoadSidechains()
	if err != nil {
		return errors.Wrap(err, "reload sidechains")
	}
	if infos == nil {
		infos = make(map[consensus.Hash]*Info)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = infos
	m.dirty = make(map[consensus.Hash]struct{})
	m.erased = make(map[consensus.Hash]struct{})
	return nil
}

// CheckCertificateSemanticValidity checks the certificate fields the
// sidechain is responsible for. Proof verification is out of scope.
func (m *Manager) CheckCertificateSemanticValidity(cert *consensus.Certificate, state *consensus.ValidationState) bool {
	if cert.ScID().IsNull() {
		return state.DoS(10, consensus.REJECT_INVALID, REASON_SCID_NULL, "null scId")
	}
	total := cert.TotalAmount()
	if !consensus.MoneyRange(total) {
		return state.DoS(100, consensus.REJECT_INVALID, REASON_AMOUNT_OUTOFRANGE, "totalAmount out of range")
	}
	var bwtSum consensus.Amount
	for i, bt := range cert.BackwardTransfers() {
		sum, err := consensus.AddAmounts(bwtSum, bt.Value)
		if err != nil {
			return state.DoS(100, consensus.REJECT_INVALID, REASON_BWT_OUTOFRANGE, fmt.Sprintf("vbt_ccout[%d]", i))
		}
		bwtSum = sum
	}
	if bwtSum > total {
		return state.DoS(100, consensus.REJECT_INVALID, REASON_BWT_EXCEEDS_TOTAL,
			fmt.Sprintf("backward transfers %s exceed total %s", consensus.FormatMoney(bwtSum), consensus.FormatMoney(total)))
	}
	return true
}

// IsCertificateApplicableToState reports whether the certificate's sidechain
// is registered and holds at least its total amount.
func (m *Manager) IsCertificateApplicableToState(cert *consensus.Certificate) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.infos[cert.ScID()]
	if !ok {
		m.log.Debug("certificate for unknown sidechain", zap.Stringer("scId", cert.ScID()))
		return false
	}
	return info.Balance >= cert.TotalAmount()
}

var _ consensus.SidechainRegistry = (*Manager)(nil)

// MemBackend keeps records in memory.
type MemBackend struct {
	mu    sync.Mutex
	infos map[consensus.Hash]*Info
}

func NewMemBackend() *MemBackend {
	return &MemBackend{infos: make(map[consensus.Hash]*Info)}
}

func (b *MemBackend) LoadSidechains() (map[consensus.Hash]*Info, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[consensus.Hash]*Info, len(b.infos))
	for id, info := range b.infos {
		out[id] = info.Clone()
	}
	return out, nil
}

func (b *MemBackend) WriteSidechains(upserts map[consensus.Hash]*Info, erased []consensus.Hash) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range erased {
		delete(b.infos, id)
	}
	for id, info := range upserts {
		b.infos[id] = info.Clone()
	}
	return nil
}
