package npc

import (
	"math/rand"

	"xidach-lite/xidach"
)

const (
	hostStandScore   = 17
	hostSoftHitRate  = 0.3
	aggressiveHitCap = 19
	aggressiveRehit  = 0.15
	defaultBetShare  = 0.2
	betStep          = 100
)

// RuleBrain plays by fixed score thresholds taken from the persona style,
// with a little randomness below the threshold.
type RuleBrain struct {
	Persona *NPCPersona
	rng     *rand.Rand
}

// NewRuleBrain creates a RuleBrain from a persona definition.
func NewRuleBrain(persona *NPCPersona, seed int64) *RuleBrain {
	return &RuleBrain{
		Persona: persona,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (b *RuleBrain) Name() string { return b.Persona.Name }

// Decide implements BrainDecider.
func (b *RuleBrain) Decide(view GameView) Decision {
	if view.IsHost {
		return b.decideHost(view)
	}
	if view.CanDraw && b.wantsHit(view) {
		return Decision{Action: xidach.ActionHit}
	}
	if view.CanStay {
		return Decision{Action: xidach.ActionStay}
	}
	return Decision{Action: xidach.ActionHit}
}

// wantsHit: always below 16, probabilistic below the style threshold, and a
// small rehit chance for aggressive bots up to 19.
func (b *RuleBrain) wantsHit(view GameView) bool {
	score := view.Hand.Score
	if score < xidach.MinValidScore {
		return true
	}
	style := b.Persona.Brain.Style
	threshold := style.StayThreshold()
	if score < threshold {
		diff := float64(threshold - score)
		return b.rng.Float64() < min(0.9, 0.3+diff*0.2)
	}
	if style == StyleAggressive && score <= aggressiveHitCap {
		return b.rng.Float64() < aggressiveRehit
	}
	return false
}

// decideHost hits below 17, sometimes on 17, then checks every seat at once.
func (b *RuleBrain) decideHost(view GameView) Decision {
	hit := false
	switch score := view.Hand.Score; {
	case !view.CanDraw:
	case score < hostStandScore:
		hit = true
	case score == hostStandScore:
		hit = b.rng.Float64() < hostSoftHitRate
	}
	if view.CanDraw && (hit || !view.CanCheck) {
		return Decision{Action: xidach.ActionHit}
	}
	if view.CanCheck {
		return Decision{Action: xidach.ActionCheckAll}
	}
	return Decision{Action: xidach.ActionStay}
}

// ChooseBet stakes between MinBet and a share of the balance, rounded down
// to 100.
func (b *RuleBrain) ChooseBet(view GameView) int64 {
	share := b.Persona.Brain.BetShare
	if share <= 0 {
		share = defaultBetShare
	}
	maxAffordable := min(view.MaxBet, int64(float64(view.Balance)*share))
	bet := view.MinBet
	if maxAffordable > 0 {
		steps := int64(b.rng.Float64()*float64(maxAffordable)) / betStep
		bet = max(view.MinBet, steps*betStep)
	}
	return min(bet, view.Balance)
}
