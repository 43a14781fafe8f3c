package consensus

// SemanticValidator decides sidechain-specific validity of a certificate,
// reporting any rejection into state.
type SemanticValidator interface {
	CheckCertificateSemanticValidity(cert *Certificate, state *ValidationState) bool
}

// SidechainRegistry is the view of the sidechain registry the core relies on.
type SidechainRegistry interface {
	SemanticValidator
	IsCertificateApplicableToState(cert *Certificate) bool
}

// StandardnessChecker is the relay policy applied to ordinary outputs.
type StandardnessChecker interface {
	AreOutputsStandard(outputs []TxOut, height int) (bool, string)
}

// CertificateRules bundles the checks whose strength depends on how the
// binary is configured.
type CertificateRules interface {
	Check(cert *Certificate, state *ValidationState) bool
	IsApplicableToState(cert *Certificate) bool
	IsStandard(cert *Certificate, height int) (bool, string)
}

// FullRules runs every check against the injected collaborators.
type FullRules struct {
	Registry SidechainRegistry
	Standard StandardnessChecker
}

func (r FullRules) Check(cert *Certificate, state *ValidationState) bool {
	var sem SemanticValidator
	if r.Registry != nil {
		sem = r.Registry
	}
	return CheckCertificate(cert, state, sem)
}

func (r FullRules) IsApplicableToState(cert *Certificate) bool {
	return cert.IsApplicableToState(r.Registry)
}

func (r FullRules) IsStandard(cert *Certificate, height int) (bool, string) {
	return cert.IsStandard(r.Standard, height)
}

// LiteRules accepts everything. It serves tools that decode and relay
// certificates without ever connecting them.
type LiteRules struct{}

func (LiteRules) Check(*Certificate, *ValidationState) bool { return true }
func (LiteRules) IsApplicableToState(*Certificate) bool { return true }
func (LiteRules) IsStandard(*Certificate, int) (bool, string) { return true, "" }

// NopSemanticValidator accepts every certificate.
type NopSemanticValidator struct{}

func (NopSemanticValidator) CheckCertificateSemanticValidity(*Certificate, *ValidationState) bool {
	return true
}

var (
	_ CertificateRules = FullRules{}
	_ CertificateRules = LiteRules{}
)
