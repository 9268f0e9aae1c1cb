package selection

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jaki95/pack-shuffler/internal/domain"
)

var (
	ErrNoInput        = errors.New("no input pack")
	ErrNoCandidates   = errors.New("no input packs")
	ErrInvalidType    = errors.New("invalid output type")
	ErrSlotUnresolved = errors.New("slot has no eligible tracks")
	ErrIO             = errors.New("track file could not be written")
	ErrDetailsSave    = errors.New("pack details could not be saved")
)

// Style selects how candidates are pooled for each slot.
type Style int

const (
	StandardShuffle Style = iota
	ShuffleWithPairedTracks
	ChaosNonSpecialTracks
	ChaosAllTracks
)

var styleNames = map[Style]string{
	StandardShuffle:         "standard",
	ShuffleWithPairedTracks: "paired",
	ChaosNonSpecialTracks:   "chaos",
	ChaosAllTracks:          "chaos_all",
}

func (s Style) String() string {
	if name, ok := styleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Style(%d)", int(s))
}

// ParseStyle accepts the names produced by Style.String.
func ParseStyle(s string) (Style, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for style, name := range styleNames {
		if name == s {
			return style, nil
		}
	}
	return StandardShuffle, fmt.Errorf("unknown shuffle style %q", s)
}

// Output describes where a pack is materialized.
type Output struct {
	// Path of the container file, e.g. /games/zelda/shuffled.msu. Track
	// files are written next to it as <name>-<slot>.<ext>.
	Path string
	// PreviousPack is the pack produced by the previous generation at the
	// same path. Its files are reused for slots that fail to write.
	PreviousPack *domain.Pack
}

// ShuffleRequest holds the inputs of CreateShuffled.
type ShuffleRequest struct {
	Packs           []*domain.Pack
	Target          *domain.TypeDef
	Style           Style
	AvoidDuplicates bool
	// WeightBySource applies each pack's shuffle frequency; when false every
	// candidate has the same weight.
	WeightBySource bool
	// CurrentlyPlaying, when set, makes paired slots prefer the pack of the
	// track that is playing.
	CurrentlyPlaying *domain.Track
	Output           Output
}

// Result is returned by every engine operation. Operational failures are
// reported here rather than as errors.
type Result struct {
	Success  bool
	Message  string
	Err      error
	Pack     *domain.Pack
	Warnings []string
}

func failure(err error, format string, args ...any) Result {
	return Result{Success: false, Err: err, Message: fmt.Sprintf(format, args...)}
}

// Selection is the outcome of the slot selection step of a shuffle.
type Selection struct {
	Tracks     []domain.Track
	Unresolved []int
}
