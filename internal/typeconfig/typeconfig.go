// Package typeconfig loads type definitions and conversion rules from a YAML
// document into a registry.
package typeconfig

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/registry"
)

var ErrUnknownCopySource = errors.New("copy source type is not defined")

// Document is the on-disk layout of a types file.
type Document struct {
	Types       []TypeEntry       `yaml:"types"`
	Conversions []ConversionEntry `yaml:"conversions"`
}

// TypeEntry describes one type. Slots copied from other types come first,
// in directive order, followed by the type's own slots.
type TypeEntry struct {
	Name         string      `yaml:"name"`
	DisplayName  string      `yaml:"display_name"`
	Selectable   *bool       `yaml:"selectable"`
	Priority     int         `yaml:"priority"`
	Required     []int       `yaml:"required"`
	Slots        []SlotEntry `yaml:"slots"`
	Copy         []CopyEntry `yaml:"copy"`
	ExactMatches []string    `yaml:"exact_matches"`
}

// SlotEntry describes one slot.
type SlotEntry struct {
	Number     int    `yaml:"number"`
	Name       string `yaml:"name"`
	Fallback   int    `yaml:"fallback"`
	Paired     int    `yaml:"paired"`
	Extended   bool   `yaml:"extended"`
	Special    bool   `yaml:"special"`
	Ignored    bool   `yaml:"ignored"`
	NonLooping bool   `yaml:"non_looping"`
}

// CopyEntry copies the slots of an earlier type, shifting their numbers by
// Offset. Conversions in both directions are registered for the pair.
type CopyEntry struct {
	From   string `yaml:"from"`
	Offset int    `yaml:"offset"`
}

// ConversionEntry is an explicit conversion rule.
type ConversionEntry struct {
	Source string      `yaml:"source"`
	Target string      `yaml:"target"`
	Offset int         `yaml:"offset"`
	Table  map[int]int `yaml:"table"`
}

// LoadFile reads a types file and registers its contents in reg.
func LoadFile(path string, reg *registry.Registry, logger *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open types file: %w", err)
	}
	defer f.Close()
	return Load(f, reg, logger)
}

// Load decodes a types document from r and registers it in reg.
func Load(r io.Reader, reg *registry.Registry, logger *slog.Logger) error {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("failed to parse types file: %w", err)
	}
	return Apply(doc, reg, logger)
}

// Apply registers the types of doc in document order, then the exact-match
// declarations and explicit conversions.
func Apply(doc Document, reg *registry.Registry, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "typeconfig")

	for _, entry := range doc.Types {
		t, err := build(entry, reg)
		if err != nil {
			return err
		}
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("failed to register type %s: %w", entry.Name, err)
		}
		for _, c := range entry.Copy {
			rules := []domain.ConversionRule{
				{Source: c.From, Target: entry.Name, Offset: c.Offset},
				{Source: entry.Name, Target: c.From, Offset: -c.Offset},
			}
			for _, rule := range rules {
				if err := reg.AddConversion(rule); err != nil {
					return fmt.Errorf("failed to add conversion %s -> %s: %w", rule.Source, rule.Target, err)
				}
			}
		}
		logger.Debug("Registered type", "name", t.Name, "slots", len(t.Slots), "copies", len(entry.Copy))
	}

	for _, entry := range doc.Types {
		for _, other := range entry.ExactMatches {
			if err := reg.AddExactMatch(entry.Name, other); err != nil {
				return fmt.Errorf("failed to add exact match %s = %s: %w", entry.Name, other, err)
			}
		}
	}

	for _, c := range doc.Conversions {
		rule := domain.ConversionRule{Source: c.Source, Target: c.Target, Offset: c.Offset, Table: c.Table}
		if err := reg.AddConversion(rule); err != nil {
			return fmt.Errorf("failed to add conversion %s -> %s: %w", c.Source, c.Target, err)
		}
	}

	logger.Info("Loaded types", "types", len(doc.Types), "conversions", len(reg.Rules()))
	return nil
}

func build(entry TypeEntry, reg *registry.Registry) (*domain.TypeDef, error) {
	var slots []domain.SlotDef
	for _, c := range entry.Copy {
		src, ok := reg.Get(c.From)
		if !ok {
			return nil, fmt.Errorf("%w: %s copies %s", ErrUnknownCopySource, entry.Name, c.From)
		}
		for _, s := range src.Slots {
			slots = append(slots, shift(s, c.Offset))
		}
	}
	for _, s := range entry.Slots {
		slots = append(slots, domain.SlotDef{
			Number:     s.Number,
			Name:       s.Name,
			Fallback:   s.Fallback,
			PairedSlot: s.Paired,
			IsExtended: s.Extended,
			IsSpecial:  s.Special,
			IsIgnored:  s.Ignored,
			NonLooping: s.NonLooping,
		})
	}

	t := domain.NewTypeDef(entry.Name, entry.DisplayName, slots, entry.Required)
	t.Priority = entry.Priority
	if entry.Selectable != nil {
		t.Selectable = *entry.Selectable
	}
	return t, nil
}

func shift(s domain.SlotDef, offset int) domain.SlotDef {
	s.Number += offset
	if s.HasFallback() {
		s.Fallback += offset
	}
	if s.HasPair() {
		s.PairedSlot += offset
	}
	return s
}
