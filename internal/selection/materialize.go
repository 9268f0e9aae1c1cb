package selection

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jaki95/pack-shuffler/internal/details"
	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/progress"
	"github.com/jaki95/pack-shuffler/internal/storage"
)

// ManifestSuffix is appended to the output name to form the manifest file
// name, e.g. shuffled-tracks.txt.
const ManifestSuffix = "-tracks.txt"

func outputName(containerPath string) string {
	base := filepath.Base(containerPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// ManifestPath returns the manifest path for a container path.
func ManifestPath(containerPath string) string {
	return filepath.Join(filepath.Dir(containerPath), outputName(containerPath)+ManifestSuffix)
}

// Save writes pack next to out.Path: one file per filled slot, the manifest,
// the container and the details document. A slot whose file cannot be
// written reuses the file of out.PreviousPack when there is one and is
// otherwise left out with a warning.
func (e *Engine) Save(ctx context.Context, pack *domain.Pack, out Output) Result {
	if pack == nil {
		return failure(ErrNoInput, "Nothing to save")
	}
	if out.Path == "" {
		return failure(ErrIO, "No output path")
	}

	dir := filepath.Dir(out.Path)
	name := outputName(out.Path)

	e.report(progress.StageMaterializing, 0, fmt.Sprintf("Writing %s", name))
	if err := e.store.CreateDir(dir); err != nil {
		e.fail(err)
		return failure(fmt.Errorf("%w: %v", ErrIO, err), "Could not create %s", dir)
	}

	existing, err := e.store.ListSlotFiles(dir, name)
	if err != nil {
		e.logger.Warn("Failed to list existing slot files", "dir", dir, "error", err)
	}

	tracks := firstPerSlot(pack.Tracks)
	previous := previousBySlot(out.PreviousPack)

	var warnings []string
	written := make([]domain.Track, 0, len(tracks))
	kept := make(map[string]struct{}, len(tracks))

	for i, t := range tracks {
		if err := ctx.Err(); err != nil {
			e.fail(err)
			return failure(err, "Cancelled while writing %s", name)
		}

		dst := filepath.Join(dir, slotFileName(name, t))
		placed, err := e.place(t, dst, previous)
		if err != nil {
			e.logger.Warn("Failed to write slot", "slot", t.SlotNumber, "source", t.Path, "error", err)
			warnings = append(warnings, fmt.Sprintf("%v: slot %d: %v", ErrIO, t.SlotNumber, err))
			continue
		}

		kept[placed.Path] = struct{}{}
		written = append(written, placed)
		if e.progress != nil {
			e.progress.UpdateSlot(t.SlotNumber, len(tracks), i+1, e.sourceName(placed))
		}
	}

	for _, f := range existing {
		if _, ok := kept[f.Path]; ok {
			continue
		}
		if err := e.store.Remove(f.Path); err != nil {
			e.logger.Warn("Failed to remove stale slot file", "path", f.Path, "error", err)
		}
	}

	result := &domain.Pack{
		ID:       pack.ID,
		Name:     pack.Name,
		Creator:  pack.Creator,
		Path:     out.Path,
		Type:     pack.Type,
		Tracks:   written,
		Settings: pack.Settings,
	}

	if err := e.store.WriteFile(ManifestPath(out.Path), e.manifest(written)); err != nil {
		e.fail(err)
		return failure(fmt.Errorf("%w: %v", ErrIO, err), "Could not write track list")
	}

	if !e.store.FileExists(out.Path) {
		if err := e.store.WriteFile(out.Path, nil); err != nil {
			e.fail(err)
			return failure(fmt.Errorf("%w: %v", ErrIO, err), "Could not create %s", filepath.Base(out.Path))
		}
	}

	if e.details != nil {
		t, _ := e.registry.Get(pack.Type)
		if err := e.details.Save(ctx, out.Path, details.FromPack(result, t, e.arena)); err != nil {
			e.logger.Warn("Failed to save pack details", "path", out.Path, "error", err)
			warnings = append(warnings, fmt.Sprintf("%v: %v", ErrDetailsSave, err))
		}
	}

	e.arena.Put(result)
	e.report(progress.StageComplete, 100, fmt.Sprintf("Wrote %d tracks", len(written)))
	e.logger.Info("Saved pack", "path", out.Path, "tracks", len(written), "warnings", len(warnings))

	return Result{
		Success:  true,
		Message:  fmt.Sprintf("Created %s with %d tracks", name, len(written)),
		Pack:     result,
		Warnings: warnings,
	}
}

// place copies t to dst, falling back to the previous generation's file for
// the same slot. The returned track points at the file now in place.
func (e *Engine) place(t domain.Track, dst string, previous map[int]domain.Track) (domain.Track, error) {
	err := e.store.LinkOrCopy(t.Path, dst)
	if err == nil {
		t.Path = dst
		return t, nil
	}

	prev, ok := previous[t.SlotNumber]
	if !ok || !e.store.FileExists(prev.Path) {
		return domain.Track{}, err
	}
	e.logger.Info("Reusing previous slot file", "slot", t.SlotNumber, "path", prev.Path, "error", err)
	return prev, nil
}

func (e *Engine) fail(err error) {
	if e.progress != nil {
		e.progress.SetError(err)
	}
}

func (e *Engine) sourceName(t domain.Track) string {
	if p, ok := e.arena.Get(t.SourcePackID); ok {
		return p.Name
	}
	return ""
}

// manifest renders "slot: description (pack)" lines sorted by slot.
func (e *Engine) manifest(tracks []domain.Track) []byte {
	sorted := append([]domain.Track(nil), tracks...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].SlotNumber < sorted[j].SlotNumber })

	var b strings.Builder
	for _, t := range sorted {
		desc := t.Description()
		if src := e.sourceName(t); src != "" {
			desc = fmt.Sprintf("%s (%s)", desc, src)
		}
		fmt.Fprintf(&b, "%d: %s\n", t.SlotNumber, desc)
	}
	return []byte(b.String())
}

func slotFileName(name string, t domain.Track) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(t.Path)), ".")
	if ext == "" {
		ext = "pcm"
	}
	return storage.SlotFileName(name, t.SlotNumber, ext)
}

// firstPerSlot keeps the first track of each slot, sorted by slot number.
func firstPerSlot(tracks []domain.Track) []domain.Track {
	seen := make(map[int]struct{}, len(tracks))
	out := make([]domain.Track, 0, len(tracks))
	for _, t := range tracks {
		if _, ok := seen[t.SlotNumber]; ok {
			continue
		}
		seen[t.SlotNumber] = struct{}{}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].SlotNumber < out[j].SlotNumber })
	return out
}

func previousBySlot(prev *domain.Pack) map[int]domain.Track {
	out := make(map[int]domain.Track)
	if prev == nil {
		return out
	}
	for _, t := range prev.Tracks {
		if _, ok := out[t.SlotNumber]; !ok {
			out[t.SlotNumber] = t
		}
	}
	return out
}
