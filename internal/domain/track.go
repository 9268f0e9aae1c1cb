package domain

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PackID identifies a pack inside an Arena.
type PackID string

// NewPackID returns a fresh random pack identifier.
func NewPackID() PackID {
	return PackID(uuid.NewString())
}

// ShuffleFrequency is a per-pack weight applied during random selection.
type ShuffleFrequency string

const (
	LessFrequent ShuffleFrequency = "less"
	Default      ShuffleFrequency = "default"
	MoreFrequent ShuffleFrequency = "more"
)

// Weight returns the sampling weight for the frequency.
func (f ShuffleFrequency) Weight() float64 {
	switch f {
	case MoreFrequent:
		return 2
	case LessFrequent:
		return 0.5
	default:
		return 1
	}
}

// ParseShuffleFrequency accepts "less", "default", "more" and the long
// forms "LessFrequent", "MoreFrequent". Empty input yields Default.
func ParseShuffleFrequency(s string) (ShuffleFrequency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return Default, nil
	case "less", "lessfrequent", "less_frequent":
		return LessFrequent, nil
	case "more", "morefrequent", "more_frequent":
		return MoreFrequent, nil
	}
	return Default, fmt.Errorf("unknown shuffle frequency %q", s)
}

// PackSettings are the user preferences attached to a pack.
type PackSettings struct {
	AltTracks bool             `json:"alt_tracks"`
	Frequency ShuffleFrequency `json:"frequency"`
	Favorite  bool             `json:"favorite"`
}

// Track is one audio file candidate for a slot.
type Track struct {
	SlotNumber int    `json:"slot_number"`
	Path       string `json:"path"`
	Song       string `json:"song,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Album      string `json:"album,omitempty"`
	URL        string `json:"url,omitempty"`
	IsAlt      bool   `json:"is_alt,omitempty"`

	// Provenance, set when the track is created.
	SourcePackID       PackID `json:"source_pack_id"`
	OriginalSlotNumber int    `json:"original_slot_number"`
}

// Description is a one-line human summary of the track.
func (t Track) Description() string {
	switch {
	case t.Song != "" && t.Artist != "":
		return fmt.Sprintf("%s - %s", t.Song, t.Artist)
	case t.Song != "":
		return t.Song
	default:
		return t.Path
	}
}

// Pack is a loaded track collection.
type Pack struct {
	ID       PackID       `json:"id"`
	Name     string       `json:"name"`
	Creator  string       `json:"creator,omitempty"`
	Path     string       `json:"path"`
	Type     string       `json:"type,omitempty"` // empty when the type is unknown
	Tracks   []Track      `json:"tracks"`
	Settings PackSettings `json:"settings"`
}

// Slots returns the set of slot numbers that have at least one track.
func (p *Pack) Slots() SlotSet {
	s := make(SlotSet, len(p.Tracks))
	for _, t := range p.Tracks {
		s.Add(t.SlotNumber)
	}
	return s
}

// TracksForSlot returns every track tagged with the given slot number.
func (p *Pack) TracksForSlot(slot int) []Track {
	var out []Track
	for _, t := range p.Tracks {
		if t.SlotNumber == slot {
			out = append(out, t)
		}
	}
	return out
}

// HasAltTracks reports whether any track is an alt variant.
func (p *Pack) HasAltTracks() bool {
	for _, t := range p.Tracks {
		if t.IsAlt {
			return true
		}
	}
	return false
}

// WithTracks returns a shallow copy of the pack carrying the given tracks.
func (p *Pack) WithTracks(typeName string, tracks []Track) *Pack {
	cp := *p
	cp.Type = typeName
	cp.Tracks = tracks
	return &cp
}

// Arena owns packs by identifier. Tracks refer to packs only through
// PackID.
type Arena struct {
	mu    sync.RWMutex
	packs map[PackID]*Pack
	order []PackID
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{packs: make(map[PackID]*Pack)}
}

// Put stores a pack, assigning an ID when it has none, and returns the ID.
// Storing a pack whose ID is already present replaces it.
func (a *Arena) Put(p *Pack) PackID {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p.ID == "" {
		p.ID = NewPackID()
	}
	if _, exists := a.packs[p.ID]; !exists {
		a.order = append(a.order, p.ID)
	}
	a.packs[p.ID] = p
	return p.ID
}

// Get returns the pack with the given ID.
func (a *Arena) Get(id PackID) (*Pack, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	p, ok := a.packs[id]
	return p, ok
}

// Packs returns all packs in insertion order.
func (a *Arena) Packs() []*Pack {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Pack, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.packs[id])
	}
	return out
}

// Len returns the number of packs.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.packs)
}
