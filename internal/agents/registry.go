package agents

import (
	"fmt"
	"sort"

	"github.com/codecrew-ai/codecrew/internal/config"
)

// ID identifies one persona on the wire. The set is closed: every value a
// client may send is listed below, and anything else is a client error.
type ID string

const (
	Frontend  ID = "frontend"
	Design    ID = "design"
	Backend   ID = "backend"
	Fullstack ID = "fullstack"
)

// Persona is the fixed instruction text and sampling parameters bound to one
// agent identifier. Immutable after registry construction.
type Persona struct {
	Name        string
	Instruction string
	Temperature float64
	MaxTokens   int
}

// Registry is the closed id→persona table. It is built once at startup and
// read-only afterwards, so concurrent lookups need no locking.
type Registry struct {
	personas map[ID]Persona
}

// defaultPersonas returns the shipped persona table. The token cap falls back
// to fallbackMaxTokens for personas without their own.
func defaultPersonas(fallbackMaxTokens int) map[ID]Persona {
	return map[ID]Persona{
		Frontend: {
			Name:        "Frontend Architect",
			Instruction: frontendInstruction,
			Temperature: 0.3,
			MaxTokens:   fallbackMaxTokens,
		},
		Design: {
			Name:        "UI/UX Designer",
			Instruction: designInstruction,
			Temperature: 0.7,
			MaxTokens:   fallbackMaxTokens,
		},
		Backend: {
			Name:        "Backend Engineer",
			Instruction: backendInstruction,
			Temperature: 0.4,
			MaxTokens:   fallbackMaxTokens,
		},
		Fullstack: {
			Name:        "Full-Stack Integrator",
			Instruction: fullstackInstruction,
			Temperature: 0.5,
			MaxTokens:   fallbackMaxTokens,
		},
	}
}

// NewRegistry builds the persona table, applying per-agent config overrides.
// An override naming an id outside the closed set is a startup error.
func NewRegistry(fallbackMaxTokens int, overrides map[string]config.AgentOverride) (*Registry, error) {
	personas := defaultPersonas(fallbackMaxTokens)

	for id, o := range overrides {
		p, ok := personas[ID(id)]
		if !ok {
			return nil, fmt.Errorf("agents.%s: unknown agent id", id)
		}
		if o.Temperature != nil {
			p.Temperature = *o.Temperature
		}
		if o.MaxTokens > 0 {
			p.MaxTokens = o.MaxTokens
		}
		personas[ID(id)] = p
	}

	return &Registry{personas: personas}, nil
}

// Resolve returns the persona for an id, or ok=false when the id is outside
// the closed set.
func (r *Registry) Resolve(id ID) (Persona, bool) {
	p, ok := r.personas[id]
	return p, ok
}

// IDs returns the closed identifier set in stable order.
func (r *Registry) IDs() []ID {
	out := make([]ID, 0, len(r.personas))
	for id := range r.personas {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
