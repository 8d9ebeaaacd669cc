package npc

import (
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"xidach-lite/xidach"
)

// NPCInstance represents an active NPC seated at a table.
type NPCInstance struct {
	PlayerID   string
	Seat       int
	Persona    *NPCPersona
	Brain      BrainDecider
	ThinkDelay time.Duration
}

// Manager manages NPC lifecycle and decision-making at tables.
type Manager struct {
	registry  *PersonaRegistry
	instances map[string]*NPCInstance // keyed by PlayerID
	mu        sync.RWMutex
	rng       *rand.Rand
	nextID    uint64 // auto-incrementing fake player IDs for NPCs
}

// NewManager creates an NPC manager with the given persona registry.
func NewManager(registry *PersonaRegistry) *Manager {
	return NewManagerWithSeed(registry, time.Now().UnixNano())
}

// NewManagerWithSeed is NewManager with a fixed seed for brains and delays.
func NewManagerWithSeed(registry *PersonaRegistry, seed int64) *Manager {
	return &Manager{
		registry:  registry,
		instances: make(map[string]*NPCInstance),
		rng:       rand.New(rand.NewSource(seed)),
		nextID:    9_000_000, // NPC IDs start from 9M to avoid collision with real users
	}
}

// Registry returns the underlying PersonaRegistry.
func (m *Manager) Registry() *PersonaRegistry {
	return m.registry
}

// SpawnNPC creates and seats an NPC at a table. A nil persona picks one at
// random from the registry.
func (m *Manager) SpawnNPC(game *xidach.Game, seat int, persona *NPCPersona, balance int64) (*NPCInstance, error) {
	m.mu.Lock()
	if persona == nil {
		persona = m.registry.Pick(m.rng)
	}
	m.nextID++
	playerID := fmt.Sprintf("npc-%d", m.nextID)
	seed := m.rng.Int63()
	jitterMs := m.rng.Intn(700)
	m.mu.Unlock()

	if persona == nil {
		return nil, fmt.Errorf("spawn NPC at seat %d: no personas registered", seat)
	}

	// Think delay: 0.8–2s base, plus random jitter.
	baseMs := 800 + int(persona.Brain.Randomness*1200)
	thinkDelay := time.Duration(baseMs+jitterMs) * time.Millisecond

	if _, err := game.Sit(playerID, persona.Name, seat, balance, true); err != nil {
		return nil, fmt.Errorf("spawn NPC %s at seat %d: %w", persona.Name, seat, err)
	}

	inst := &NPCInstance{
		PlayerID:   playerID,
		Seat:       seat,
		Persona:    persona,
		Brain:      NewRuleBrain(persona, seed),
		ThinkDelay: thinkDelay,
	}

	m.mu.Lock()
	m.instances[playerID] = inst
	m.mu.Unlock()

	log.Printf("[NPC] Spawned %s (ID=%s) at seat %d", persona.Name, playerID, seat)
	return inst, nil
}

// OnTurn is called when it's an NPC's turn to act.
// It builds a GameView from the snapshot and asks the brain for a decision.
func (m *Manager) OnTurn(playerID string, snap xidach.Snapshot, cfg xidach.Config) Decision {
	m.mu.RLock()
	inst := m.instances[playerID]
	m.mu.RUnlock()

	if inst == nil {
		log.Printf("[NPC] OnTurn called for unknown player %s", playerID)
		return Decision{Action: xidach.ActionStay}
	}

	view := buildGameView(inst, snap, cfg)
	decision := inst.Brain.Decide(view)
	log.Printf("[NPC] %s decides: %v at %d", inst.Persona.Name, decision.Action, view.Hand.Score)
	return decision
}

// ChooseBet asks the NPC's brain for its next stake.
func (m *Manager) ChooseBet(playerID string, snap xidach.Snapshot, cfg xidach.Config) (int64, bool) {
	m.mu.RLock()
	inst := m.instances[playerID]
	m.mu.RUnlock()
	if inst == nil {
		return 0, false
	}
	return inst.Brain.ChooseBet(buildGameView(inst, snap, cfg)), true
}

// GetInstance returns the NPC instance for a given playerID, or nil.
func (m *Manager) GetInstance(playerID string) *NPCInstance {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instances[playerID]
}

// IsNPC checks if a playerID belongs to an NPC.
func (m *Manager) IsNPC(playerID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.instances[playerID] != nil
}

// DespawnNPC removes an NPC from tracking.
func (m *Manager) DespawnNPC(playerID string) {
	m.mu.Lock()
	inst := m.instances[playerID]
	delete(m.instances, playerID)
	m.mu.Unlock()

	if inst != nil {
		log.Printf("[NPC] Despawned %s (ID=%s)", inst.Persona.Name, playerID)
	}
}

// GetThinkDelay returns the simulated thinking delay for an NPC.
func (m *Manager) GetThinkDelay(playerID string) time.Duration {
	m.mu.RLock()
	inst := m.instances[playerID]
	m.mu.RUnlock()
	if inst == nil {
		return time.Second
	}
	return inst.ThinkDelay
}

// buildGameView constructs a GameView from a snapshot for a specific NPC.
func buildGameView(inst *NPCInstance, snap xidach.Snapshot, cfg xidach.Config) GameView {
	view := GameView{
		Phase:  snap.Phase,
		MinBet: cfg.MinBet,
		MaxBet: cfg.MaxBet,
	}
	for _, ps := range snap.Players {
		if ps.ID == inst.PlayerID {
			view.Cards = ps.Cards
			view.Hand = ps.Hand
			view.IsHost = ps.IsHost
			view.Balance = ps.Balance
			view.Bet = ps.Bet
			continue
		}
		if !ps.IsHost && !ps.IsChecked {
			view.Unchecked++
		}
	}
	view.CanDraw = xidach.CanDrawMore(view.Cards)
	view.CanStay = view.IsHost || xidach.CanStay(view.Cards)
	view.CanCheck = view.IsHost && xidach.HostCanCheck(view.Cards)
	return view
}
