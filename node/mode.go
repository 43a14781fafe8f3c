package node

import (
	"sccert.dev/node/consensus"
	"sccert.dev/node/sidechain"
)

// NewRules picks the certificate rule set for mode. Lite nodes trust the
// network and skip semantic and state checks.
func NewRules(mode string, registry *sidechain.Manager, policy StandardPolicy) consensus.CertificateRules {
	if mode == ModeLite {
		return consensus.LiteRules{}
	}
	rules := consensus.FullRules{Standard: policy}
	if registry != nil {
		rules.Registry = registry
	}
	return rules
}

// NewWalletNotifier returns hub for full nodes and a no-op notifier for lite
// nodes, which carry no wallet.
func NewWalletNotifier(mode string, hub *WalletHub) consensus.WalletNotifier {
	if mode == ModeLite || hub == nil {
		return consensus.NopWalletNotifier{}
	}
	return hub
}

func isLite(rules consensus.CertificateRules) bool {
	_, ok := rules.(consensus.LiteRules)
	return ok
}
