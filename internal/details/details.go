// Package details loads and saves the per-pack metadata document: pack name,
// author and per-slot song information keyed by slot name.
package details

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/storage"
)

// Extension is the file extension of the details document.
const Extension = "yml"

var ErrInvalidDocument = errors.New("invalid details document")

// PackDetails is the metadata document for one pack.
type PackDetails struct {
	PackName   string                  `yaml:"pack_name,omitempty"`
	PackAuthor string                  `yaml:"pack_author,omitempty"`
	Tracks     map[string]TrackDetails `yaml:"tracks,omitempty"`
}

// TrackDetails describes the song used for one slot.
type TrackDetails struct {
	Song   string `yaml:"song,omitempty"`
	Artist string `yaml:"artist,omitempty"`
	Album  string `yaml:"album,omitempty"`
	URL    string `yaml:"url,omitempty"`
	Pack   string `yaml:"pack,omitempty"`
}

// Provider persists PackDetails for a pack identified by its container path.
type Provider interface {
	Load(ctx context.Context, containerPath string) (*PackDetails, error)
	Save(ctx context.Context, containerPath string, d *PackDetails) error
}

// YAMLProvider stores details as <dir>/<name>.yml next to the container.
type YAMLProvider struct {
	store storage.Storage
}

// NewYAMLProvider creates a provider writing through store.
func NewYAMLProvider(store storage.Storage) *YAMLProvider {
	return &YAMLProvider{store: store}
}

// DocumentPath returns the details path for a container path.
func DocumentPath(containerPath string) string {
	return strings.TrimSuffix(containerPath, filepath.Ext(containerPath)) + "." + Extension
}

// Load reads the details document. A missing document yields (nil, nil).
func (p *YAMLProvider) Load(ctx context.Context, containerPath string) (*PackDetails, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := p.store.ReadFile(DocumentPath(containerPath))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read details: %w", err)
	}

	var d PackDetails
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return &d, nil
}

// Save writes the details document.
func (p *YAMLProvider) Save(ctx context.Context, containerPath string, d *PackDetails) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}

	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode details: %w", err)
	}
	if err := p.store.WriteFile(DocumentPath(containerPath), data); err != nil {
		return fmt.Errorf("failed to write details: %w", err)
	}
	return nil
}

// Apply copies pack and track metadata from d onto pack. Slot names are
// resolved through t; entries for unknown slot names are ignored. The pack
// is modified in place and must not yet be shared.
func Apply(pack *domain.Pack, t *domain.TypeDef, d *PackDetails) {
	if pack == nil || d == nil {
		return
	}
	if d.PackName != "" {
		pack.Name = d.PackName
	}
	if d.PackAuthor != "" {
		pack.Creator = d.PackAuthor
	}
	if t == nil {
		return
	}

	for i := range pack.Tracks {
		tr := &pack.Tracks[i]
		if tr.IsAlt {
			continue
		}
		slot, ok := t.Slot(tr.SlotNumber)
		if !ok {
			continue
		}
		info, ok := lookup(d.Tracks, slot.Name)
		if !ok {
			continue
		}
		tr.Song = info.Song
		tr.Artist = info.Artist
		tr.Album = info.Album
		tr.URL = info.URL
	}
}

func lookup(tracks map[string]TrackDetails, name string) (TrackDetails, bool) {
	if info, ok := tracks[name]; ok {
		return info, true
	}
	key := normalizeKey(name)
	for k, info := range tracks {
		if normalizeKey(k) == key {
			return info, true
		}
	}
	return TrackDetails{}, false
}

func normalizeKey(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(s)
}

// SourceResolver looks up the pack a track was drawn from.
type SourceResolver interface {
	Get(id domain.PackID) (*domain.Pack, bool)
}

// FromPack builds the details document for an output pack. sources may be
// nil; when set, each entry records the name of the pack it came from.
func FromPack(pack *domain.Pack, t *domain.TypeDef, sources SourceResolver) *PackDetails {
	d := &PackDetails{
		PackName:   pack.Name,
		PackAuthor: pack.Creator,
		Tracks:     make(map[string]TrackDetails, len(pack.Tracks)),
	}
	for _, tr := range pack.Tracks {
		name := fmt.Sprintf("track_%d", tr.SlotNumber)
		if t != nil {
			if slot, ok := t.Slot(tr.SlotNumber); ok && slot.Name != "" {
				name = slot.Name
			}
		}
		info := TrackDetails{Song: tr.Song, Artist: tr.Artist, Album: tr.Album, URL: tr.URL}
		if sources != nil {
			if src, ok := sources.Get(tr.SourcePackID); ok {
				info.Pack = src.Name
			}
		}
		d.Tracks[name] = info
	}
	return d
}
