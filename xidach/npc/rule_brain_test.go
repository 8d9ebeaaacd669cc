package npc

import (
	"testing"

	"xidach-lite/card"
	"xidach-lite/xidach"
)

func viewFor(cards string, host bool) GameView {
	cs := card.MustParseCards(cards)
	return GameView{
		Phase:    xidach.PhasePlayerTurns,
		Cards:    cs,
		Hand:     xidach.Classify(cs),
		IsHost:   host,
		Balance:  10000,
		MinBet:   100,
		MaxBet:   5000,
		CanDraw:  xidach.CanDrawMore(cs),
		CanStay:  host || xidach.CanStay(cs),
		CanCheck: host && xidach.HostCanCheck(cs),
	}
}

func TestRuleBrainAlwaysHitsBelowSixteen(t *testing.T) {
	for _, style := range []Style{StyleConservative, StyleBalanced, StyleAggressive} {
		brain := NewRuleBrain(&NPCPersona{Name: style.String(), Brain: PersonalityProfile{Style: style}}, 1)
		for i := 0; i < 200; i++ {
			if d := brain.Decide(viewFor("10s 5h", false)); d.Action != xidach.ActionHit {
				t.Fatalf("%s stood on 15: %v", style, d.Action)
			}
		}
	}
}

func TestRuleBrainHitRateBelowThreshold(t *testing.T) {
	brain := NewRuleBrain(&NPCPersona{Name: "balanced", Brain: PersonalityProfile{Style: StyleBalanced}}, 42)
	// 16 vs threshold 18: min(0.9, 0.3+2*0.2) = 0.7
	const rounds = 4000
	hits := 0
	for i := 0; i < rounds; i++ {
		if brain.Decide(viewFor("10s 6h", false)).Action == xidach.ActionHit {
			hits++
		}
	}
	rate := float64(hits) / float64(rounds)
	if rate < 0.65 || rate > 0.75 {
		t.Fatalf("balanced hit rate at 16: got %.3f, want ~0.70", rate)
	}
}

func TestRuleBrainAggressiveRehitsRarely(t *testing.T) {
	brain := NewRuleBrain(&NPCPersona{Name: "aggressive", Brain: PersonalityProfile{Style: StyleAggressive}}, 7)
	const rounds = 4000
	hits := 0
	for i := 0; i < rounds; i++ {
		if brain.Decide(viewFor("10s 9h", false)).Action == xidach.ActionHit {
			hits++
		}
	}
	rate := float64(hits) / float64(rounds)
	if rate < 0.10 || rate > 0.20 {
		t.Fatalf("aggressive rehit rate at 19: got %.3f, want ~0.15", rate)
	}
	if d := brain.Decide(viewFor("10s Jh", false)); d.Action != xidach.ActionStay {
		t.Fatalf("aggressive should stand on 20, got %v", d.Action)
	}
}

func TestRuleBrainHost(t *testing.T) {
	brain := NewRuleBrain(&NPCPersona{Name: "host", Brain: PersonalityProfile{Style: StyleBalanced}}, 3)
	if d := brain.Decide(viewFor("10s 6h", true)); d.Action != xidach.ActionHit {
		t.Fatalf("host should hit on 16, got %v", d.Action)
	}
	if d := brain.Decide(viewFor("10s 8h", true)); d.Action != xidach.ActionCheckAll {
		t.Fatalf("host should check on 18, got %v", d.Action)
	}
	if d := brain.Decide(viewFor("2s 2h 3c 3d 4s", true)); d.Action != xidach.ActionCheckAll {
		t.Fatalf("host with five cards should check, got %v", d.Action)
	}
}

func TestRuleBrainChooseBetInRange(t *testing.T) {
	brain := NewRuleBrain(&NPCPersona{Name: "bettor", Brain: PersonalityProfile{Style: StyleBalanced}}, 11)
	view := viewFor("", false)
	for i := 0; i < 1000; i++ {
		bet := brain.ChooseBet(view)
		if bet < view.MinBet || bet > 2000 || bet%100 != 0 {
			t.Fatalf("bet %d outside [100, 2000] or not a multiple of 100", bet)
		}
	}
	view.Balance = 60
	if bet := brain.ChooseBet(view); bet != 60 {
		t.Fatalf("short stack should stake everything, got %d", bet)
	}
}

func TestManagerSpawnAndDecide(t *testing.T) {
	cfg := xidach.DefaultConfig()
	cfg.Seed = 5
	g, err := xidach.NewGame(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := g.Sit("human", "human", 0, 0, false); err != nil {
		t.Fatal(err)
	}
	m := NewManagerWithSeed(NewDefaultRegistry(), 9)
	inst, err := m.SpawnNPC(g, 3, nil, 0)
	if err != nil {
		t.Fatalf("SpawnNPC err: %v", err)
	}
	if !m.IsNPC(inst.PlayerID) || m.IsNPC("human") {
		t.Fatalf("IsNPC mismatch")
	}
	if d := m.GetThinkDelay(inst.PlayerID); d < 800e6 || d > 2700e6 {
		t.Fatalf("think delay out of range: %v", d)
	}
	if _, err := m.SpawnNPC(g, 3, nil, 0); err == nil {
		t.Fatalf("expected occupied seat error")
	}

	if bet, ok := m.ChooseBet(inst.PlayerID, g.Snapshot(), cfg); !ok || bet < cfg.MinBet {
		t.Fatalf("unexpected bet %d ok=%v", bet, ok)
	}
	if _, err := g.Deal("human"); err != nil {
		t.Fatal(err)
	}
	d := m.OnTurn(inst.PlayerID, g.Snapshot(), cfg)
	if d.Action != xidach.ActionHit && d.Action != xidach.ActionStay {
		t.Fatalf("unexpected decision %v", d.Action)
	}

	m.DespawnNPC(inst.PlayerID)
	if m.GetInstance(inst.PlayerID) != nil {
		t.Fatalf("instance should be gone")
	}
}

func TestRegistryLoadFromJSON(t *testing.T) {
	r := NewRegistry()
	err := r.LoadFromJSON([]byte(`[
		{"id": "a", "name": "A", "brain": {"style": "aggressive"}},
		{"id": "b", "name": "B"},
		{"name": "no id"}
	]`))
	if err != nil {
		t.Fatalf("LoadFromJSON err: %v", err)
	}
	if r.Count() != 2 {
		t.Fatalf("expected 2 personas, got %d", r.Count())
	}
	if r.Get("a").Brain.Style != StyleAggressive || r.Get("b").Brain.Style != StyleBalanced {
		t.Fatalf("unexpected styles")
	}
	if len(r.ByStyle(StyleAggressive)) != 1 {
		t.Fatalf("ByStyle mismatch")
	}
}
