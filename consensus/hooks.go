package consensus

// MempoolView is the read side of a certificate pool.
type MempoolView interface {
	Exists(hash Hash) bool
}

// ContextualCheck is reserved for height-dependent rules. None exist yet.
func (c *Certificate) ContextualCheck(state *ValidationState, height int, dosLevel int) bool {
	return true
}

// CheckFinal always succeeds; certificates carry no lock time.
func (c *Certificate) CheckFinal(flags int) bool {
	return true
}

// IsAllowedInMempool always succeeds. Conflict detection belongs to the pool.
func (c *Certificate) IsAllowedInMempool(state *ValidationState, pool MempoolView) bool {
	return true
}

// IsStandard applies std to the ordinary outputs. A nil checker accepts.
func (c *Certificate) IsStandard(std StandardnessChecker, height int) (bool, string) {
	if std == nil {
		return true, ""
	}
	return std.AreOutputsStandard(c.vout, height)
}

// IsApplicableToState asks the registry whether the certificate can be
// connected on top of the current chain state.
func (c *Certificate) IsApplicableToState(reg SidechainRegistry) bool {
	if reg == nil {
		return false
	}
	return reg.IsCertificateApplicableToState(c)
}

// Priority is always MAX_PRIORITY.
func (c *Certificate) Priority(view CoinsView, height int) float64 {
	return MAX_PRIORITY
}
