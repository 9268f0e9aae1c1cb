// Package lookup discovers packs on disk: it finds container files, collects
// their numbered track files, detects the pack type and loads pack details.
package lookup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jaki95/pack-shuffler/internal/converter"
	"github.com/jaki95/pack-shuffler/internal/details"
	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/matcher"
	"github.com/jaki95/pack-shuffler/internal/registry"
	"github.com/jaki95/pack-shuffler/internal/storage"
)

// SupportedExtensions are the audio formats recognized as track files.
var SupportedExtensions = []string{"pcm", "wav", "mp3", "ogg", "flac", "m4a"}

var ErrNotContainer = errors.New("not a pack container")

// PackCache stores scanned packs keyed by container path and fingerprint.
type PackCache interface {
	Get(ctx context.Context, path, fingerprint string) (*domain.Pack, bool, error)
	Put(ctx context.Context, path, fingerprint string, pack *domain.Pack) error
}

// SettingsFunc returns the user settings for a pack container path.
type SettingsFunc func(path string) domain.PackSettings

// Scanner is the pack lookup layer.
type Scanner struct {
	registry     *registry.Registry
	matcher      *matcher.Matcher
	store        storage.Storage
	details      details.Provider
	cache        PackCache
	arena        *domain.Arena
	settings     SettingsFunc
	containerExt string
	logger       *slog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithCache reuses packs whose files have not changed since the last scan.
func WithCache(c PackCache) Option {
	return func(s *Scanner) { s.cache = c }
}

// WithDetails loads pack details documents.
func WithDetails(p details.Provider) Option {
	return func(s *Scanner) { s.details = p }
}

// WithSettings attaches user settings to each pack.
func WithSettings(fn SettingsFunc) Option {
	return func(s *Scanner) { s.settings = fn }
}

// WithArena stores scanned packs in arena.
func WithArena(a *domain.Arena) Option {
	return func(s *Scanner) {
		if a != nil {
			s.arena = a
		}
	}
}

// WithContainerExtension sets the container file extension, without the dot.
func WithContainerExtension(ext string) Option {
	return func(s *Scanner) {
		if ext != "" {
			s.containerExt = strings.ToLower(strings.TrimPrefix(ext, "."))
		}
	}
}

// WithLogger sets the scanner logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scanner) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a scanner. store is used to list track files.
func New(reg *registry.Registry, store storage.Storage, opts ...Option) *Scanner {
	if reg == nil || store == nil {
		panic("lookup: registry and storage are required")
	}
	s := &Scanner{
		registry:     reg,
		store:        store,
		arena:        domain.NewArena(),
		containerExt: "msu",
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "lookup")
	s.matcher = matcher.New(reg, s.logger)
	return s
}

// Arena returns the arena scanned packs are stored in.
func (s *Scanner) Arena() *domain.Arena { return s.arena }

// Matcher returns the type matcher used by the scanner.
func (s *Scanner) Matcher() *matcher.Matcher { return s.matcher }

// Scan walks root and loads every pack container found. Packs that fail to
// load are logged and skipped. filter, when set, restricts type detection to
// types compatible with it.
func (s *Scanner) Scan(ctx context.Context, root string, filter *domain.TypeDef) ([]*domain.Pack, error) {
	var containers []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !d.IsDir() && s.isContainer(path) {
			containers = append(containers, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}
	sort.Strings(containers)

	packs := make([]*domain.Pack, 0, len(containers))
	for _, path := range containers {
		pack, err := s.Load(ctx, path, filter)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			s.logger.Warn("Skipping pack", "path", path, "error", err)
			continue
		}
		packs = append(packs, pack)
	}

	s.logger.Info("Scan complete", "root", root, "containers", len(containers), "packs", len(packs))
	return packs, nil
}

func (s *Scanner) isContainer(path string) bool {
	return strings.EqualFold(strings.TrimPrefix(filepath.Ext(path), "."), s.containerExt)
}

// Load reads a single pack from its container path. The pack is given a
// fresh ID and stored in the scanner's arena.
func (s *Scanner) Load(ctx context.Context, containerPath string, filter *domain.TypeDef) (*domain.Pack, error) {
	if !s.isContainer(containerPath) {
		return nil, fmt.Errorf("%w: %s", ErrNotContainer, containerPath)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := filepath.Dir(containerPath)
	base := strings.TrimSuffix(filepath.Base(containerPath), filepath.Ext(containerPath))

	files, err := s.trackFiles(dir, base)
	if err != nil {
		return nil, err
	}
	fingerprint := Fingerprint(containerPath, files)

	pack, cached := s.fromCache(ctx, containerPath, fingerprint, filter)
	if !cached {
		pack, err = s.build(ctx, containerPath, base, files, filter)
		if err != nil {
			return nil, err
		}
		if s.cache != nil && filter == nil {
			if err := s.cache.Put(ctx, containerPath, fingerprint, pack); err != nil {
				s.logger.Warn("Failed to cache pack", "path", containerPath, "error", err)
			}
		}
	}

	pack.ID = domain.NewPackID()
	for i := range pack.Tracks {
		pack.Tracks[i].SourcePackID = pack.ID
	}
	if s.settings != nil {
		pack.Settings = s.settings(containerPath)
	}
	s.arena.Put(pack)
	return pack, nil
}

func (s *Scanner) fromCache(ctx context.Context, path, fingerprint string, filter *domain.TypeDef) (*domain.Pack, bool) {
	// Cached types were detected without a filter.
	if s.cache == nil || filter != nil {
		return nil, false
	}
	pack, ok, err := s.cache.Get(ctx, path, fingerprint)
	if err != nil {
		s.logger.Warn("Failed to read pack cache", "path", path, "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	if pack.Type != "" {
		if _, known := s.registry.Get(pack.Type); !known {
			return nil, false
		}
	}
	s.logger.Debug("Pack loaded from cache", "path", path)
	return pack, true
}

func (s *Scanner) build(ctx context.Context, containerPath, base string, files []storage.SlotFile, filter *domain.TypeDef) (*domain.Pack, error) {
	pack := &domain.Pack{Name: base, Path: containerPath}

	discovered := make(domain.SlotSet, len(files))
	for _, f := range files {
		discovered.Add(f.Slot)
		pack.Tracks = append(pack.Tracks, domain.Track{
			SlotNumber:         f.Slot,
			Path:               f.Path,
			IsAlt:              f.IsAlt(),
			OriginalSlotNumber: f.Slot,
		})
	}

	var t *domain.TypeDef
	if match, ok := s.matcher.Match(discovered, filter); ok {
		t = match.Type
		pack.Type = t.Name
	} else {
		s.logger.Debug("Pack type unknown", "path", containerPath, "slots", len(discovered))
	}

	if s.details != nil {
		d, err := s.details.Load(ctx, containerPath)
		if err != nil {
			s.logger.Warn("Failed to load pack details", "path", containerPath, "error", err)
		} else {
			details.Apply(pack, t, d)
		}
	}
	if t != nil {
		resolveFallbacks(pack, t)
	}
	return pack, nil
}

// resolveFallbacks gives each extended slot without a file of its own the
// tracks its fallback chain resolves to. Resolution only looks at the files
// found on disk.
func resolveFallbacks(pack *domain.Pack, t *domain.TypeDef) {
	present := pack.Slots()
	found := &domain.Pack{Tracks: pack.Tracks[:len(pack.Tracks):len(pack.Tracks)]}
	for _, def := range t.Slots {
		if !def.IsExtended || !def.HasFallback() || present.Contains(def.Number) {
			continue
		}
		for _, tr := range converter.TracksFor(found, t, def.Number) {
			tr.SlotNumber = def.Number
			pack.Tracks = append(pack.Tracks, tr)
		}
	}
}

// trackFiles lists the supported track files of a pack, primary files
// before alts within a slot.
func (s *Scanner) trackFiles(dir, base string) ([]storage.SlotFile, error) {
	all, err := s.store.ListSlotFiles(dir, base)
	if err != nil {
		return nil, fmt.Errorf("failed to list tracks of %s: %w", base, err)
	}

	files := make([]storage.SlotFile, 0, len(all))
	for _, f := range all {
		if supported(f.Ext) {
			files = append(files, f)
		}
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Slot != files[j].Slot {
			return files[i].Slot < files[j].Slot
		}
		if files[i].IsAlt() != files[j].IsAlt() {
			return !files[i].IsAlt()
		}
		return files[i].Label < files[j].Label
	})
	return files, nil
}

func supported(ext string) bool {
	for _, e := range SupportedExtensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Fingerprint summarizes the container, its details document and its track
// files by name, size and modification time. Any change to the set yields a
// different fingerprint.
func Fingerprint(containerPath string, files []storage.SlotFile) string {
	paths := make([]string, 0, len(files)+2)
	paths = append(paths, containerPath, details.DocumentPath(containerPath))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		fmt.Fprintf(h, "%s|", filepath.Base(p))
		if info, err := os.Stat(p); err == nil {
			fmt.Fprintf(h, "%d|%d", info.Size(), info.ModTime().UnixNano())
		}
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
