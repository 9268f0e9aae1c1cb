package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jaki95/pack-shuffler/config"
	"github.com/jaki95/pack-shuffler/internal/cache"
	"github.com/jaki95/pack-shuffler/internal/converter"
	"github.com/jaki95/pack-shuffler/internal/details"
	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/lookup"
	"github.com/jaki95/pack-shuffler/internal/progress"
	"github.com/jaki95/pack-shuffler/internal/registry"
	"github.com/jaki95/pack-shuffler/internal/selection"
	"github.com/jaki95/pack-shuffler/internal/storage"
	"github.com/jaki95/pack-shuffler/internal/typeconfig"
)

// appContext loads configuration and builds services lazily for commands.
type appContext struct {
	configFlag *string

	loadOnce sync.Once
	loadErr  error

	cfg      *config.Config
	logger   *slog.Logger
	registry *registry.Registry
	arena    *domain.Arena
	cache    *cache.Cache
	output   storage.Storage
}

func newAppContext(configFlag *string) *appContext {
	return &appContext{configFlag: configFlag}
}

func (a *appContext) ensureLoaded() error {
	a.loadOnce.Do(func() {
		a.loadErr = a.load()
	})
	return a.loadErr
}

func (a *appContext) load() error {
	cfg := config.Default()
	if path := strings.TrimSpace(*a.configFlag); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	a.cfg = cfg
	a.logger = newLogger(cfg, os.Stderr)
	slog.SetDefault(a.logger)

	a.registry = registry.New()
	if err := typeconfig.LoadFile(cfg.TypesFile, a.registry, a.logger); err != nil {
		return fmt.Errorf("load types: %w", err)
	}
	a.arena = domain.NewArena()

	if cfg.CachePath != "" {
		c, err := cache.Open(cfg.CachePath)
		if err != nil {
			a.logger.Warn("Pack cache disabled", "path", cfg.CachePath, "error", err)
		} else {
			a.cache = c
		}
	}
	return nil
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.Level(cfg.LogLevel)}
	if cfg.LogFormat == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func (a *appContext) close() error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
		a.cache = nil
	}
	if closer, ok := a.output.(io.Closer); ok {
		errs = append(errs, closer.Close())
		a.output = nil
	}
	return errors.Join(errs...)
}

// packSettings maps the configured pack preferences onto domain settings.
func (a *appContext) packSettings(path string) domain.PackSettings {
	s := a.cfg.PackSettingsFor(path)
	if s == (config.PackSettings{}) {
		if abs, err := filepath.Abs(path); err == nil {
			s = a.cfg.PackSettingsFor(abs)
		}
	}
	freq, err := domain.ParseShuffleFrequency(s.Frequency)
	if err != nil {
		a.logger.Warn("Ignoring pack frequency", "path", path, "error", err)
	}
	return domain.PackSettings{AltTracks: s.AltTracks, Frequency: freq, Favorite: s.Favorite}
}

func (a *appContext) scanner() *lookup.Scanner {
	local := storage.NewLocalFileStorage(a.logger)
	opts := []lookup.Option{
		lookup.WithLogger(a.logger),
		lookup.WithArena(a.arena),
		lookup.WithDetails(details.NewYAMLProvider(local)),
		lookup.WithSettings(a.packSettings),
		lookup.WithContainerExtension(a.cfg.ContainerExtension),
	}
	if a.cache != nil {
		opts = append(opts, lookup.WithCache(a.cache))
	}
	return lookup.New(a.registry, local, opts...)
}

func (a *appContext) outputStorage(ctx context.Context) (storage.Storage, error) {
	if a.output != nil {
		return a.output, nil
	}
	store, err := storage.New(ctx, a.cfg.Storage, a.logger)
	if err != nil {
		return nil, fmt.Errorf("create output storage: %w", err)
	}
	a.output = store
	return store, nil
}

func (a *appContext) engine(ctx context.Context, tracker *progress.Tracker) (*selection.Engine, error) {
	store, err := a.outputStorage(ctx)
	if err != nil {
		return nil, err
	}
	opts := []selection.Option{
		selection.WithLogger(a.logger),
		selection.WithArena(a.arena),
	}
	if tracker != nil {
		opts = append(opts, selection.WithProgress(tracker))
	}
	return selection.New(a.registry, converter.New(a.registry, a.logger), store, details.NewYAMLProvider(store), opts...), nil
}

func (a *appContext) targetType(name string) (*domain.TypeDef, error) {
	if name == "" {
		return nil, fmt.Errorf("--type is required (known types: %s)", strings.Join(a.registry.Names(), ", "))
	}
	t, ok := a.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s (known types: %s)", registry.ErrUnknownType, name, strings.Join(a.registry.Names(), ", "))
	}
	return t, nil
}

// outputType resolves a type the output pack can be written as. Types marked
// as not selectable only take part in detection and conversion.
func (a *appContext) outputType(name string) (*domain.TypeDef, error) {
	var selectable []string
	for _, t := range a.registry.Selectable() {
		selectable = append(selectable, t.Name)
	}
	if name == "" {
		return nil, fmt.Errorf("--type is required (known types: %s)", strings.Join(selectable, ", "))
	}
	t, err := a.targetType(name)
	if err != nil {
		return nil, err
	}
	if !t.Selectable {
		return nil, fmt.Errorf("type %s cannot be used for output (selectable types: %s)", name, strings.Join(selectable, ", "))
	}
	return t, nil
}

// outputPath resolves the container path written by assign, random, shuffle
// and watch.
func (a *appContext) outputPath(flag string) string {
	if flag != "" {
		if filepath.Ext(flag) == "" {
			flag += "." + a.cfg.ContainerExtension
		}
		return flag
	}
	return filepath.Join(a.cfg.Storage.OutputDir, "shuffled."+a.cfg.ContainerExtension)
}

// loadPacks scans every root. A root naming a container file loads just that
// pack.
func (a *appContext) loadPacks(ctx context.Context, roots []string, filter *domain.TypeDef) ([]*domain.Pack, error) {
	s := a.scanner()
	var packs []*domain.Pack
	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", root, err)
		}
		if !info.IsDir() {
			p, err := s.Load(ctx, root, filter)
			if err != nil {
				return nil, err
			}
			packs = append(packs, p)
			continue
		}
		found, err := s.Scan(ctx, root, filter)
		if err != nil {
			return nil, err
		}
		packs = append(packs, found...)
	}
	return packs, nil
}
