package consensus

// Coins is the set of outputs created by one ledger entry that are still
// unspent. Spent slots are nulled and trailing null slots are trimmed.
type Coins struct {
	Version    int32
	Height     int
	IsCoinBase bool
	IsFromCert bool
	Outputs    []TxOut
}

// IsPruned reports that no unspent output remains.
func (c *Coins) IsPruned() bool {
	for _, o := range c.Outputs {
		if !o.IsNull() {
			return false
		}
	}
	return true
}

func (c *Coins) IsAvailable(n uint32) bool {
	return int64(n) < int64(len(c.Outputs)) && !c.Outputs[n].IsNull()
}

func (c *Coins) Clone() *Coins {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Outputs = cloneTxOuts(c.Outputs)
	return &cp
}

func (c *Coins) Clear() {
	*c = Coins{}
}

// Spend nulls output n and trims the trailing null slots.
func (c *Coins) Spend(n uint32) bool {
	if !c.IsAvailable(n) {
		return false
	}
	c.Outputs[n].SetNull()
	c.cleanup()
	return true
}

func (c *Coins) cleanup() {
	for len(c.Outputs) > 0 && c.Outputs[len(c.Outputs)-1].IsNull() {
		c.Outputs = c.Outputs[:len(c.Outputs)-1]
	}
	if len(c.Outputs) == 0 {
		c.Outputs = nil
	}
}

// clearUnspendable nulls outputs no script can ever spend so they never
// enter the coin set.
func (c *Coins) clearUnspendable() {
	for i := range c.Outputs {
		if c.Outputs[i].ScriptPubKey.IsUnspendable() {
			c.Outputs[i].SetNull()
		}
	}
	c.cleanup()
}

// PopulateFromCertificate overwrites c with the ordinary outputs of cert
// created at height. Unspendable outputs are stored as spent.
func (c *Coins) PopulateFromCertificate(cert *Certificate, height int) {
	c.Version = cert.version
	c.Height = height
	c.IsCoinBase = false
	c.IsFromCert = true
	c.Outputs = cloneTxOuts(cert.vout)
	c.clearUnspendable()
}

func (c *Coins) PopulateFromTransaction(tx *Transaction, height int) {
	c.Version = tx.version
	c.Height = height
	c.IsCoinBase = tx.IsCoinBase()
	c.IsFromCert = false
	c.Outputs = cloneTxOuts(tx.vout)
	c.clearUnspendable()
}

// CoinsView reads coin entries by the hash of the entry that created them.
type CoinsView interface {
	GetCoins(hash Hash) (*Coins, bool, error)
}

// CoinsBatchWriter persists a set of modified entries. A pruned entry in the
// batch means the key is to be removed.
type CoinsBatchWriter interface {
	BatchWrite(entries map[Hash]*Coins, bestBlock Hash) error
}

type CoinsBatchWriterFunc func(entries map[Hash]*Coins, bestBlock Hash) error

func (f CoinsBatchWriterFunc) BatchWrite(entries map[Hash]*Coins, bestBlock Hash) error {
	return f(entries, bestBlock)
}

// CoinsModifier hands out a mutable entry for hash, creating an empty one
// if none exists. The returned pointer stays valid until the next flush.
type CoinsModifier interface {
	GetOrCreateEntry(hash Hash) (*Coins, error)
}

type CoinsBackend interface {
	CoinsView
	CoinsBatchWriter
}

type cacheEntry struct {
	coins *Coins
	dirty bool
	// fresh entries are known to be absent from the backend
	fresh bool
}

// CoinsViewCache is a write-back cache over a CoinsBackend. It is not safe
// for concurrent use.
type CoinsViewCache struct {
	base      CoinsBackend
	entries   map[Hash]*cacheEntry
	bestBlock Hash
}

func NewCoinsViewCache(base CoinsBackend) *CoinsViewCache {
	return &CoinsViewCache{base: base, entries: make(map[Hash]*cacheEntry)}
}

func (v *CoinsViewCache) fetch(hash Hash) (*cacheEntry, error) {
	if e, ok := v.entries[hash]; ok {
		return e, nil
	}
	coins, ok, err := v.base.GetCoins(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	e := &cacheEntry{coins: coins.Clone()}
	v.entries[hash] = e
	return e, nil
}

// GetCoins returns a copy of the entry for hash. Pruned entries are reported
// as absent.
func (v *CoinsViewCache) GetCoins(hash Hash) (*Coins, bool, error) {
	e, err := v.fetch(hash)
	if err != nil {
		return nil, false, err
	}
	if e == nil || e.coins.IsPruned() {
		return nil, false, nil
	}
	return e.coins.Clone(), true, nil
}

func (v *CoinsViewCache) HaveCoins(hash Hash) (bool, error) {
	_, ok, err := v.GetCoins(hash)
	return ok, err
}

func (v *CoinsViewCache) GetOrCreateEntry(hash Hash) (*Coins, error) {
	e, err := v.fetch(hash)
	if err != nil {
		return nil, certerr(ERR_COINS_VIEW, err.Error())
	}
	if e == nil {
		e = &cacheEntry{coins: &Coins{}, fresh: true}
		v.entries[hash] = e
	}
	e.dirty = true
	return e.coins, nil
}

// AccessOutput returns a copy of the unspent output at op.
func (v *CoinsViewCache) AccessOutput(op OutPoint) (TxOut, bool, error) {
	e, err := v.fetch(op.Hash)
	if err != nil || e == nil || !e.coins.IsAvailable(op.N) {
		return TxOut{}, false, err
	}
	return e.coins.Outputs[op.N].Clone(), true, nil
}

func (v *CoinsViewCache) BestBlock() Hash { return v.bestBlock }
func (v *CoinsViewCache) SetBestBlock(h Hash) { v.bestBlock = h }
func (v *CoinsViewCache) CacheSize() int { return len(v.entries) }

// BatchWrite merges a child cache's changes into v.
func (v *CoinsViewCache) BatchWrite(entries map[Hash]*Coins, bestBlock Hash) error {
	for hash, coins := range entries {
		existing, ok := v.entries[hash]
		if ok && existing.fresh && coins.IsPruned() {
			delete(v.entries, hash)
			continue
		}
		if !ok {
			existing = &cacheEntry{}
			v.entries[hash] = existing
		}
		existing.coins = coins.Clone()
		existing.dirty = true
	}
	v.bestBlock = bestBlock
	return nil
}

// Flush writes dirty entries to the backend and empties the cache.
func (v *CoinsViewCache) Flush() error {
	return v.FlushTo(v.base)
}

// FlushTo hands the dirty entries to w in place of the backend. The cache is
// emptied only when w succeeds.
func (v *CoinsViewCache) FlushTo(w CoinsBatchWriter) error {
	batch := make(map[Hash]*Coins, len(v.entries))
	for hash, e := range v.entries {
		if !e.dirty {
			continue
		}
		if e.fresh && e.coins.IsPruned() {
			continue
		}
		batch[hash] = e.coins.Clone()
	}
	if err := w.BatchWrite(batch, v.bestBlock); err != nil {
		return err
	}
	v.entries = make(map[Hash]*cacheEntry)
	return nil
}

// Discard drops every cached entry, flushed or not, and resets the best
// block to best.
func (v *CoinsViewCache) Discard(best Hash) {
	v.entries = make(map[Hash]*cacheEntry)
	v.bestBlock = best
}

// MemCoinsView is an in-memory CoinsBackend.
type MemCoinsView struct {
	coins     map[Hash]*Coins
	bestBlock Hash
}

func NewMemCoinsView() *MemCoinsView {
	return &MemCoinsView{coins: make(map[Hash]*Coins)}
}

func (m *MemCoinsView) GetCoins(hash Hash) (*Coins, bool, error) {
	c, ok := m.coins[hash]
	if !ok {
		return nil, false, nil
	}
	return c.Clone(), true, nil
}

func (m *MemCoinsView) BatchWrite(entries map[Hash]*Coins, bestBlock Hash) error {
	for hash, c := range entries {
		if c.IsPruned() {
			delete(m.coins, hash)
			continue
		}
		m.coins[hash] = c.Clone()
	}
	m.bestBlock = bestBlock
	return nil
}

func (m *MemCoinsView) BestBlock() Hash { return m.bestBlock }
func (m *MemCoinsView) Len() int { return len(m.coins) }
