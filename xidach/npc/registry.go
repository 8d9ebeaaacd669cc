package npc

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
)

// PersonaRegistry holds all NPC persona definitions.
type PersonaRegistry struct {
	mu       sync.RWMutex
	personas map[string]*NPCPersona
}

// NewRegistry creates an empty registry.
func NewRegistry() *PersonaRegistry {
	return &PersonaRegistry{
		personas: make(map[string]*NPCPersona),
	}
}

// NewDefaultRegistry is a registry preloaded with the built-in table bots.
func NewDefaultRegistry() *PersonaRegistry {
	r := NewRegistry()
	for _, p := range builtinPersonas {
		r.personas[p.ID] = &p
	}
	return r
}

var builtinPersonas = []NPCPersona{
	{ID: "co_ba", Name: "Cô Ba", Tagline: "Chắc ăn là trên hết", Brain: PersonalityProfile{Style: StyleConservative, BetShare: 0.1, Randomness: 0.2}},
	{ID: "anh_tu", Name: "Anh Tư", Tagline: "Đánh đều tay", Brain: PersonalityProfile{Style: StyleBalanced, Randomness: 0.5}},
	{ID: "chu_sau", Name: "Chú Sáu", Tagline: "Không rút là không vui", Brain: PersonalityProfile{Style: StyleAggressive, BetShare: 0.3, Randomness: 0.8}},
}

// LoadFromFile loads NPC personas from a JSON file.
func (r *PersonaRegistry) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read personas file: %w", err)
	}
	return r.LoadFromJSON(data)
}

// LoadFromJSON loads NPC personas from raw JSON bytes.
func (r *PersonaRegistry) LoadFromJSON(data []byte) error {
	var list []*NPCPersona
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("parse personas JSON: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range list {
		if p.ID == "" {
			continue
		}
		if p.Brain.Style == 0 {
			p.Brain.Style = StyleBalanced
		}
		r.personas[p.ID] = p
	}
	return nil
}

// Get returns a persona by ID.
func (r *PersonaRegistry) Get(id string) *NPCPersona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.personas[id]
}

// All returns a snapshot of all personas, ordered by ID.
func (r *PersonaRegistry) All() []*NPCPersona {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*NPCPersona, 0, len(r.personas))
	for _, p := range r.personas {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByStyle returns all personas playing the given style.
func (r *PersonaRegistry) ByStyle(style Style) []*NPCPersona {
	var out []*NPCPersona
	for _, p := range r.All() {
		if p.Brain.Style == style {
			out = append(out, p)
		}
	}
	return out
}

// Pick returns a random persona, or nil when the registry is empty.
func (r *PersonaRegistry) Pick(rng *rand.Rand) *NPCPersona {
	all := r.All()
	if len(all) == 0 {
		return nil
	}
	return all[rng.Intn(len(all))]
}

// Count returns the total number of registered personas.
func (r *PersonaRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.personas)
}
