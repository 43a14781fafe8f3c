package node

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"sccert.dev/node/consensus"
)

const (
	BanThreshold      = 100
	ThrottleThreshold = 50

	// BanScoreDecaysPerMinute is how many points a score loses per idle minute.
	BanScoreDecaysPerMinute = 1
)

// BanScore is a small deterministic policy primitive. It is not consensus.
type BanScore struct {
	score       int
	lastUpdated time.Time
}

func (b *BanScore) Score(now time.Time) int {
	b.decayTo(now)
	return b.score
}

func (b *BanScore) Add(now time.Time, delta int) int {
	b.decayTo(now)
	b.score += delta
	if b.score < 0 {
		b.score = 0
	}
	return b.score
}

func (b *BanScore) ShouldBan(now time.Time) bool {
	return b.Score(now) >= BanThreshold
}

func (b *BanScore) ShouldThrottle(now time.Time) bool {
	return b.Score(now) >= ThrottleThreshold
}

func (b *BanScore) decayTo(now time.Time) {
	if b.lastUpdated.IsZero() {
		b.lastUpdated = now
		return
	}
	if now.Before(b.lastUpdated) {
		// Clock went backwards; don't increase score.
		b.lastUpdated = now
		return
	}
	minutes := int(now.Sub(b.lastUpdated) / time.Minute)
	if minutes <= 0 {
		return
	}
	b.score -= minutes * BanScoreDecaysPerMinute
	if b.score < 0 {
		b.score = 0
	}
	b.lastUpdated = now
}

// PeerScores turns the DoS level of rejected certificates and blocks into
// per-peer misbehavior scores.
type PeerScores struct {
	mu        sync.Mutex
	threshold int
	scores    map[string]*BanScore
	log       *zap.Logger
}

func NewPeerScores(threshold int, log *zap.Logger) *PeerScores {
	if threshold <= 0 {
		threshold = BanThreshold
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &PeerScores{threshold: threshold, scores: make(map[string]*BanScore), log: log}
}

// Misbehaving charges peer with the DoS level recorded in state and reports
// whether the peer crossed the ban threshold. Internal errors and zero-level
// rejections are never charged.
func (p *PeerScores) Misbehaving(peer string, state *consensus.ValidationState, now time.Time) bool {
	if state == nil || !state.IsInvalid() || state.DoSScore() <= 0 {
		return false
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.scores[peer]
	if !ok {
		b = &BanScore{}
		p.scores[peer] = b
	}
	score := b.Add(now, state.DoSScore())
	banned := score >= p.threshold
	p.log.Info("peer misbehaving",
		zap.String("peer", peer),
		zap.Int("delta", state.DoSScore()),
		zap.Int("score", score),
		zap.String("reason", state.RejectReason()),
		zap.Bool("banned", banned),
	)
	return banned
}

func (p *PeerScores) Score(peer string, now time.Time) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.scores[peer]
	if !ok {
		return 0
	}
	return b.Score(now)
}

func (p *PeerScores) Forget(peer string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.scores, peer)
}
