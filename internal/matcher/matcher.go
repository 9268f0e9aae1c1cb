// Package matcher detects which registered type a pack was authored for
// from the slot numbers found on disk.
package matcher

import (
	"log/slog"
	"sort"

	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/registry"
)

// MinConfidence is the exclusive lower bound a candidate must beat.
const MinConfidence = 0.85

// Candidate is a scored type for a discovered slot set.
type Candidate struct {
	Type       *domain.TypeDef
	Confidence float64
	Overlap    int

	RequiredConfidence float64
	AllConfidence      float64
}

// Matcher is the TypeMatcher.
type Matcher struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a matcher over the given registry.
func New(reg *registry.Registry, logger *slog.Logger) *Matcher {
	if reg == nil {
		panic("matcher: nil registry")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Matcher{registry: reg, logger: logger.With("component", "matcher")}
}

// Score computes the confidence of t for the discovered slots. ok is false
// when the pack has more slots than t can represent.
func Score(discovered domain.SlotSet, t *domain.TypeDef) (Candidate, bool) {
	c := Candidate{Type: t}
	if len(t.ValidSlots) == 0 || len(discovered) > len(t.ValidSlots) {
		return c, false
	}

	if len(t.RequiredSlots) > 0 {
		c.RequiredConfidence = float64(t.RequiredSlots.Overlap(discovered)) / float64(len(t.RequiredSlots))
	}
	c.Overlap = t.ValidSlots.Overlap(discovered)
	c.AllConfidence = float64(c.Overlap) / float64(len(t.ValidSlots))

	c.Confidence = c.RequiredConfidence
	if c.AllConfidence > c.Confidence {
		c.Confidence = c.AllConfidence
	}
	return c, true
}

// Candidates returns every type that clears MinConfidence, best first.
// A nil filter considers all types; otherwise only types compatible with
// filter are scored.
func (m *Matcher) Candidates(discovered domain.SlotSet, filter *domain.TypeDef) []Candidate {
	var candidates []Candidate
	for _, t := range m.registry.Types() {
		if filter != nil && !m.registry.IsCompatible(filter, t) {
			continue
		}
		c, ok := Score(discovered, t)
		if !ok || c.Confidence <= MinConfidence {
			continue
		}
		candidates = append(candidates, c)
	}

	// Stable: remaining ties keep registration order.
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Type.Priority != b.Type.Priority {
			return a.Type.Priority > b.Type.Priority
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.Overlap > b.Overlap
	})
	return candidates
}

// Match returns the best-fitting type for the discovered slots.
func (m *Matcher) Match(discovered domain.SlotSet, filter *domain.TypeDef) (Candidate, bool) {
	candidates := m.Candidates(discovered, filter)
	if len(candidates) == 0 {
		m.logger.Debug("No type matched", "slots", len(discovered))
		return Candidate{}, false
	}

	winner := candidates[0]
	if filter != nil && !m.registry.IsCompatible(filter, winner.Type) {
		m.logger.Debug("Best match incompatible with filter", "type", winner.Type.Name, "filter", filter.Name)
		return Candidate{}, false
	}

	m.logger.Debug("Matched type",
		"type", winner.Type.Name,
		"confidence", winner.Confidence,
		"overlap", winner.Overlap,
		"candidates", len(candidates))
	return winner, true
}
