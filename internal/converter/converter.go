// Package converter maps a pack's tracks from the slot numbering of the type
// it was authored for into the numbering of another type.
package converter

import (
	"log/slog"

	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/registry"
)

// Converter is the TrackConverter.
type Converter struct {
	registry *registry.Registry
	logger   *slog.Logger
}

// New creates a converter over the given registry.
func New(reg *registry.Registry, logger *slog.Logger) *Converter {
	if reg == nil {
		panic("converter: nil registry")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{registry: reg, logger: logger.With("component", "converter")}
}

// Rule returns the rule mapping the pack's type onto target, or the identity
// rule when none is registered.
func (c *Converter) Rule(pack *domain.Pack, target *domain.TypeDef) domain.ConversionRule {
	if rule, ok := c.registry.Conversion(pack.Type, target.Name); ok {
		return rule
	}
	return domain.Identity(pack.Type, target.Name)
}

// Convert returns the pack re-tagged for target. The input pack is never
// modified; when no change is needed the same pointer is returned.
func (c *Converter) Convert(pack *domain.Pack, target *domain.TypeDef) *domain.Pack {
	if pack == nil || target == nil {
		return pack
	}
	allowAlts := pack.Settings.AltTracks
	if pack.Type == target.Name && (allowAlts || !pack.HasAltTracks()) {
		return pack
	}

	rule := c.Rule(pack, target)
	tracks := make([]domain.Track, 0, len(pack.Tracks))
	for _, t := range pack.Tracks {
		if t.IsAlt && !allowAlts {
			continue
		}
		slot := rule.Apply(t.SlotNumber)
		if !target.ValidSlots.Contains(slot) {
			continue
		}
		t.SlotNumber = slot
		tracks = append(tracks, t)
	}

	if dropped := len(pack.Tracks) - len(tracks); dropped > 0 {
		c.logger.Debug("Dropped tracks during conversion",
			"pack", pack.Name,
			"from", pack.Type,
			"to", target.Name,
			"dropped", dropped)
	}
	return pack.WithTracks(target.Name, tracks)
}

// ConvertAll converts every non-nil pack to target.
func (c *Converter) ConvertAll(packs []*domain.Pack, target *domain.TypeDef) []*domain.Pack {
	out := make([]*domain.Pack, 0, len(packs))
	for _, p := range packs {
		if p == nil {
			continue
		}
		out = append(out, c.Convert(p, target))
	}
	return out
}

// ResolveSlot follows the fallback chain of wanted until a slot with a track
// is found. Substitution only continues through extended slots. ok is false
// when the chain ends without a track.
func ResolveSlot(t *domain.TypeDef, available domain.SlotSet, wanted int) (int, bool) {
	visited := make(map[int]struct{})
	current := wanted
	for {
		if available.Contains(current) {
			return current, true
		}
		if _, seen := visited[current]; seen {
			return 0, false
		}
		visited[current] = struct{}{}

		def, ok := t.Slot(current)
		if !ok || !def.IsExtended || !def.HasFallback() {
			return 0, false
		}
		current = def.Fallback
	}
}

// TracksFor returns the tracks that supply wanted in pack, following the
// fallback chain when the slot itself has none. The returned tracks keep the
// slot number they were found under.
func TracksFor(pack *domain.Pack, t *domain.TypeDef, wanted int) []domain.Track {
	slot, ok := ResolveSlot(t, pack.Slots(), wanted)
	if !ok {
		return nil
	}
	return pack.TracksForSlot(slot)
}
