// Package selection assembles output packs: it assigns a single pack,
// picks a random pack, or shuffles tracks from many packs into one, and
// writes the result to disk.
package selection

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/jaki95/pack-shuffler/internal/converter"
	"github.com/jaki95/pack-shuffler/internal/details"
	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/progress"
	"github.com/jaki95/pack-shuffler/internal/registry"
	"github.com/jaki95/pack-shuffler/internal/storage"
)

// DefaultCreator is recorded as the creator of generated packs.
const DefaultCreator = "pack-shuffler"

// Engine is the SelectionEngine. It owns one pseudo-random source and is not
// safe for concurrent use.
type Engine struct {
	registry  *registry.Registry
	converter *converter.Converter
	store     storage.Storage
	details   details.Provider
	arena     *domain.Arena
	progress  *progress.Tracker
	logger    *slog.Logger
	rng       *rand.Rand
	creator   string
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed makes the engine's random draws reproducible.
func WithSeed(seed uint64) Option {
	return func(e *Engine) {
		e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithProgress reports operation progress to tracker.
func WithProgress(tracker *progress.Tracker) Option {
	return func(e *Engine) { e.progress = tracker }
}

// WithArena shares a pack arena used to describe track sources.
func WithArena(arena *domain.Arena) Option {
	return func(e *Engine) {
		if arena != nil {
			e.arena = arena
		}
	}
}

// WithCreator sets the creator recorded on generated packs.
func WithCreator(creator string) Option {
	return func(e *Engine) { e.creator = creator }
}

// New creates an engine. reg, conv and store are required; det may be nil,
// in which case no details document is written.
func New(reg *registry.Registry, conv *converter.Converter, store storage.Storage, det details.Provider, opts ...Option) *Engine {
	if reg == nil || conv == nil || store == nil {
		panic("selection: registry, converter and storage are required")
	}

	e := &Engine{
		registry:  reg,
		converter: conv,
		store:     store,
		details:   det,
		arena:     domain.NewArena(),
		logger:    slog.Default(),
		creator:   DefaultCreator,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.rng == nil {
		e.rng = rand.New(rand.NewPCG(cryptoSeed(), cryptoSeed()))
	}
	e.logger = e.logger.With("component", "selection")
	return e
}

func cryptoSeed() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("selection: read random seed: %v", err))
	}
	return binary.LittleEndian.Uint64(b[:])
}

func (e *Engine) checkTarget(target *domain.TypeDef) error {
	if target == nil || len(target.Slots) == 0 {
		return ErrInvalidType
	}
	if registered, ok := e.registry.Get(target.Name); !ok || registered != target {
		return fmt.Errorf("%w: %s", ErrInvalidType, target.Name)
	}
	return nil
}

func (e *Engine) remember(packs ...*domain.Pack) {
	for _, p := range packs {
		if p == nil || p.ID == "" {
			continue
		}
		if _, ok := e.arena.Get(p.ID); !ok {
			e.arena.Put(p)
		}
	}
}

func (e *Engine) report(stage progress.Stage, pct float64, message string) {
	if e.progress != nil {
		e.progress.Update(stage, pct, message)
	}
}

// Assign converts pack to target and materializes it at out.
func (e *Engine) Assign(ctx context.Context, pack *domain.Pack, target *domain.TypeDef, out Output) Result {
	if pack == nil {
		return failure(ErrNoInput, "No pack selected")
	}
	if err := e.checkTarget(target); err != nil {
		return failure(err, "Invalid output type")
	}
	e.remember(pack)

	e.report(progress.StageConverting, 0, fmt.Sprintf("Converting %s", pack.Name))
	converted := e.converter.Convert(pack, target)

	output := e.newOutputPack(out, target, e.collapseAlts(converted.Tracks))
	output.Creator = pack.Creator
	e.logger.Info("Assigning pack", "pack", pack.Name, "type", target.Name, "tracks", len(output.Tracks))
	return e.Save(ctx, output, out)
}

// PickRandom converts every pack to target, chooses one uniformly at random
// and materializes it at out.
func (e *Engine) PickRandom(ctx context.Context, packs []*domain.Pack, target *domain.TypeDef, out Output) Result {
	packs = nonNil(packs)
	if len(packs) == 0 {
		return failure(ErrNoCandidates, "No packs to pick from")
	}
	if err := e.checkTarget(target); err != nil {
		return failure(err, "Invalid output type")
	}
	e.remember(packs...)

	e.report(progress.StageConverting, 0, fmt.Sprintf("Converting %d packs", len(packs)))
	converted := e.converter.ConvertAll(packs, target)

	e.report(progress.StageSelecting, 0, "Picking a pack")
	chosen := converted[e.rng.IntN(len(converted))]

	output := e.newOutputPack(out, target, e.collapseAlts(chosen.Tracks))
	output.Creator = chosen.Creator
	e.logger.Info("Picked random pack", "pack", chosen.Name, "type", target.Name, "candidates", len(converted))
	result := e.Save(ctx, output, out)
	if result.Success {
		result.Message = fmt.Sprintf("Picked %s", chosen.Name)
	}
	return result
}

// ConvertAll converts packs to target without writing anything.
func (e *Engine) ConvertAll(packs []*domain.Pack, target *domain.TypeDef) []*domain.Pack {
	if target == nil {
		return nil
	}
	return e.converter.ConvertAll(packs, target)
}

// collapseAlts keeps one track per slot, choosing uniformly among the
// variants sharing a slot number. Slot order is preserved.
func (e *Engine) collapseAlts(tracks []domain.Track) []domain.Track {
	bySlot := make(map[int][]domain.Track)
	var order []int
	for _, t := range tracks {
		if _, seen := bySlot[t.SlotNumber]; !seen {
			order = append(order, t.SlotNumber)
		}
		bySlot[t.SlotNumber] = append(bySlot[t.SlotNumber], t)
	}

	out := make([]domain.Track, 0, len(order))
	for _, slot := range order {
		variants := bySlot[slot]
		if len(variants) == 1 {
			out = append(out, variants[0])
			continue
		}
		out = append(out, variants[e.rng.IntN(len(variants))])
	}
	return out
}

func (e *Engine) newOutputPack(out Output, target *domain.TypeDef, tracks []domain.Track) *domain.Pack {
	return &domain.Pack{
		ID:      domain.NewPackID(),
		Name:    outputName(out.Path),
		Creator: e.creator,
		Path:    out.Path,
		Type:    target.Name,
		Tracks:  tracks,
	}
}

func nonNil(packs []*domain.Pack) []*domain.Pack {
	out := make([]*domain.Pack, 0, len(packs))
	for _, p := range packs {
		if p != nil {
			out = append(out, p)
		}
	}
	return out
}
