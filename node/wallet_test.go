package node

import (
	"testing"

	"github.com/stretchr/testify/require"

	"sccert.dev/node/consensus"
)

type orderWallet struct {
	id  int
	log *[]int
}

func (w orderWallet) SyncCertificate(*consensus.Certificate, *consensus.Block) {
	*w.log = append(*w.log, w.id)
}

func TestWalletHubFanOut(t *testing.T) {
	hub := NewWalletHub()
	var got []int
	hub.Register(orderWallet{id: 1, log: &got})
	unregister := hub.Register(orderWallet{id: 2, log: &got})
	hub.Register(orderWallet{id: 3, log: &got})
	require.Equal(t, 3, hub.Len())

	cert := newTestCert(0x5c, 100, 90)
	cert.NotifyWallets(hub, nil)
	require.Equal(t, []int{1, 2, 3}, got)

	unregister()
	got = got[:0]
	cert.NotifyWallets(hub, nil)
	require.Equal(t, []int{1, 3}, got)
}

func TestModeSelection(t *testing.T) {
	hub := NewWalletHub()
	require.IsType(t, consensus.NopWalletNotifier{}, NewWalletNotifier(ModeLite, hub))
	require.Same(t, hub, NewWalletNotifier(ModeFull, hub))

	lite := NewRules(ModeLite, nil, NewStandardPolicy(100))
	require.True(t, isLite(lite))

	full := NewRules(ModeFull, nil, NewStandardPolicy(100))
	require.False(t, isLite(full))
	// Without a registry the full rules cannot vouch for a certificate.
	var st consensus.ValidationState
	require.False(t, full.Check(newTestCert(0x5c, 100, 90), &st))
	require.True(t, st.IsError())
	require.False(t, full.IsApplicableToState(newTestCert(0x5c, 100, 90)))
}
