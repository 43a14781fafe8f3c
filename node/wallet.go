package node

import (
	"slices"
	"sync"

	"sccert.dev/node/consensus"
)

// WalletHub fans connected certificates out to every registered wallet.
type WalletHub struct {
	mu      sync.RWMutex
	nextID  int
	wallets map[int]consensus.WalletNotifier
}

func NewWalletHub() *WalletHub {
	return &WalletHub{wallets: make(map[int]consensus.WalletNotifier)}
}

// Register adds w and returns a func that removes it again.
func (h *WalletHub) Register(w consensus.WalletNotifier) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	h.wallets[id] = w
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.wallets, id)
	}
}

func (h *WalletHub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.wallets)
}

// SyncCertificate delivers cert to wallets in registration order.
func (h *WalletHub) SyncCertificate(cert *consensus.Certificate, block *consensus.Block) {
	h.mu.RLock()
	ids := make([]int, 0, len(h.wallets))
	for id := range h.wallets {
		ids = append(ids, id)
	}
	ws := make([]consensus.WalletNotifier, 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		ws = append(ws, h.wallets[id])
	}
	h.mu.RUnlock()
	for _, w := range ws {
		w.SyncCertificate(cert, block)
	}
}
