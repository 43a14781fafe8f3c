package node

import (
	"testing"
	"time"

	"sccert.dev/node/consensus"
)

func TestBanScoreDecay(t *testing.T) {
	var b BanScore
	t0 := time.Unix(1_700_000_000, 0)
	b.Add(t0, 60)
	if s := b.Score(t0); s != 60 {
		t.Fatalf("expected 60, got %d", s)
	}
	if !b.ShouldThrottle(t0) || b.ShouldBan(t0) {
		t.Fatalf("expected throttle without ban at 60")
	}
	// 10 minutes => -10.
	t1 := t0.Add(10 * time.Minute)
	if s := b.Score(t1); s != 50 {
		t.Fatalf("expected 50, got %d", s)
	}
	// Another 100 minutes should floor at 0.
	t2 := t1.Add(100 * time.Minute)
	if s := b.Score(t2); s != 0 {
		t.Fatalf("expected 0, got %d", s)
	}
}

func TestPeerScoresMisbehaving(t *testing.T) {
	p := NewPeerScores(0, nil)
	now := time.Unix(1_700_000_000, 0)

	var oversize consensus.ValidationState
	oversize.DoS(100, consensus.REJECT_INVALID, consensus.REASON_CERT_OVERSIZE, "")
	if !p.Misbehaving("a", &oversize, now) {
		t.Fatalf("expected ban at dos 100")
	}

	var marker consensus.ValidationState
	marker.DoS(0, consensus.REJECT_CHECKBLOCKATHEIGHT_NOT_FOUND, consensus.REASON_CHECKBLOCKATHEIGHT, "")
	if p.Misbehaving("b", &marker, now) {
		t.Fatalf("dos 0 must not ban")
	}
	if s := p.Score("b", now); s != 0 {
		t.Fatalf("dos 0 charged %d", s)
	}

	var internal consensus.ValidationState
	internal.Error("disk")
	if p.Misbehaving("c", &internal, now) {
		t.Fatalf("internal error must not ban")
	}

	var empty consensus.ValidationState
	empty.DoS(10, consensus.REJECT_INVALID, consensus.REASON_CERT_VOUT_EMPTY, "")
	for i := 0; i < 9; i++ {
		if p.Misbehaving("d", &empty, now) {
			t.Fatalf("banned early at round %d", i)
		}
	}
	if !p.Misbehaving("d", &empty, now) {
		t.Fatalf("expected ban after 10 rounds of dos 10")
	}
	p.Forget("d")
	if s := p.Score("d", now); s != 0 {
		t.Fatalf("forgotten peer has score %d", s)
	}
}
