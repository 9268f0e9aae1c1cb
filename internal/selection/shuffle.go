package selection

import (
	"context"
	"fmt"

	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/progress"
)

// CreateShuffled fills every slot of the target type with a track drawn from
// the input packs and materializes the result.
func (e *Engine) CreateShuffled(ctx context.Context, req ShuffleRequest) Result {
	if len(nonNil(req.Packs)) == 0 {
		return failure(ErrNoCandidates, "No packs to shuffle")
	}
	if err := e.checkTarget(req.Target); err != nil {
		return failure(err, "Invalid output type")
	}
	e.remember(req.Packs...)

	sel := e.Select(req)
	var warnings []string
	for _, slot := range sel.Unresolved {
		warnings = append(warnings, fmt.Sprintf("%v: %d", ErrSlotUnresolved, slot))
	}
	if len(sel.Unresolved) > 0 {
		e.logger.Warn("Slots left empty", "slots", sel.Unresolved, "type", req.Target.Name)
	}

	output := e.newOutputPack(req.Output, req.Target, sel.Tracks)
	e.logger.Info("Shuffled pack",
		"type", req.Target.Name,
		"style", req.Style.String(),
		"packs", len(nonNil(req.Packs)),
		"tracks", len(sel.Tracks))

	result := e.Save(ctx, output, req.Output)
	result.Warnings = append(warnings, result.Warnings...)
	return result
}

// Select performs the slot selection step of CreateShuffled without
// touching storage. Unresolved lists the slots no candidate could fill.
func (e *Engine) Select(req ShuffleRequest) Selection {
	target := req.Target
	if target == nil {
		return Selection{}
	}

	e.report(progress.StageConverting, 0, fmt.Sprintf("Converting %d packs", len(nonNil(req.Packs))))
	converted := e.converter.ConvertAll(req.Packs, target)

	p := &pool{}
	for _, pack := range converted {
		weight := 1.0
		if req.WeightBySource {
			weight = pack.Settings.Frequency.Weight()
		}
		for _, t := range pack.Tracks {
			def, _ := target.Slot(t.SlotNumber)
			p.add(candidate{
				track:   t,
				source:  pack.ID,
				weight:  weight,
				special: def.IsSpecial,
			})
		}
	}

	filled := make(map[int]domain.Track, len(target.Slots))
	var order []int
	var unresolved []int

	assign := func(slot int, idx int) {
		t := p.candidates[idx].track
		t.SlotNumber = slot
		filled[slot] = t
		order = append(order, slot)
		if req.AvoidDuplicates {
			p.removeFile(t.Path)
		}
	}

	e.report(progress.StageSelecting, 0, "Selecting tracks")
	for i, def := range target.Slots {
		if _, done := filled[def.Number]; done {
			continue
		}

		paired := req.Style == ShuffleWithPairedTracks && def.HasPair()
		candidates := p.filter(eligible(req.Style, def))
		if paired {
			candidates = preferPlaying(p, candidates, def, req.CurrentlyPlaying)
		}
		idx, ok := p.draw(e.rng, candidates)
		if !ok {
			unresolved = append(unresolved, def.Number)
			continue
		}
		source := p.candidates[idx].source
		assign(def.Number, idx)

		if paired {
			e.fillPair(p, target, def, source, filled, assign)
		}

		if e.progress != nil {
			e.progress.UpdateSlot(def.Number, len(target.Slots), i+1, string(source))
		}
	}

	tracks := make([]domain.Track, 0, len(order))
	for _, slot := range order {
		tracks = append(tracks, filled[slot])
	}
	return Selection{Tracks: tracks, Unresolved: unresolved}
}

// preferPlaying narrows the candidates of a paired slot to the pack of the
// currently playing track when that track is on the slot or its pair and
// the pack can supply the slot.
func preferPlaying(p *pool, candidates []int, def domain.SlotDef, playing *domain.Track) []int {
	if playing == nil || playing.SourcePackID == "" {
		return candidates
	}
	if playing.SlotNumber != def.Number && playing.SlotNumber != def.PairedSlot {
		return candidates
	}
	var narrowed []int
	for _, i := range candidates {
		if p.candidates[i].source == playing.SourcePackID {
			narrowed = append(narrowed, i)
		}
	}
	if len(narrowed) == 0 {
		return candidates
	}
	return narrowed
}

// fillPair draws the paired slot of def from the pack that supplied def,
// falling back to an independent draw when that pack has no candidate.
func (e *Engine) fillPair(
	p *pool,
	target *domain.TypeDef,
	def domain.SlotDef,
	source domain.PackID,
	filled map[int]domain.Track,
	assign func(slot, idx int),
) {
	pairDef, ok := target.Slot(def.PairedSlot)
	if !ok {
		return
	}
	if _, done := filled[pairDef.Number]; done {
		return
	}

	base := eligible(ShuffleWithPairedTracks, pairDef)
	if idx, ok := p.draw(e.rng, p.filter(func(c *candidate) bool {
		return c.source == source && base(c)
	})); ok {
		assign(pairDef.Number, idx)
		return
	}

	// A miss here is reported when the loop reaches the paired slot.
	if idx, ok := p.draw(e.rng, p.filter(base)); ok {
		assign(pairDef.Number, idx)
	}
}

// eligible returns the candidate filter for a slot under the given style.
func eligible(style Style, def domain.SlotDef) func(c *candidate) bool {
	sameSlot := func(c *candidate) bool { return c.track.SlotNumber == def.Number }
	switch style {
	case ChaosNonSpecialTracks:
		if def.IsSpecial {
			return sameSlot
		}
		return func(c *candidate) bool { return !c.special }
	case ChaosAllTracks:
		return func(*candidate) bool { return true }
	default:
		return sameSlot
	}
}
