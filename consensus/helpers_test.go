package consensus

import "testing"

func testHash(b byte) Hash {
	var h Hash
	for i := range h {
		h[i] = b
	}
	return h
}

func testPKH(b byte) [20]byte {
	var p [20]byte
	for i := range p {
		p[i] = b
	}
	return p
}

func markerScript(b byte) Script {
	return P2PKHReplayScript(testPKH(b), testHash(0xbb), 100)
}

// scenarioA builds totalAmount 100 with a single 90 output carrying the
// height marker and no backward transfers.
func scenarioA() *CertificateBuilder {
	b := NewCertificateBuilder(testHash(0x5c))
	b.TotalAmount = 100
	b.Nonce = testHash(0x01)
	b.AddOutput(90, markerScript(0x11))
	return b
}

func mustCheckFail(t *testing.T, cert *Certificate, wantReason string, wantDoS int) *ValidationState {
	t.Helper()
	var state ValidationState
	if CheckCertificate(cert, &state, NopSemanticValidator{}) {
		t.Fatalf("expected check failure %q", wantReason)
	}
	if state.RejectReason() != wantReason {
		t.Fatalf("reason=%q, want %q", state.RejectReason(), wantReason)
	}
	if state.DoSScore() != wantDoS {
		t.Fatalf("dos=%d, want %d", state.DoSScore(), wantDoS)
	}
	return &state
}
