package typeconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jaki95/pack-shuffler/internal/converter"
	"github.com/jaki95/pack-shuffler/internal/domain"
	"github.com/jaki95/pack-shuffler/internal/registry"
)

const sample = `
types:
  - name: alttp
    display_name: A Link to the Past
    slots:
      - {number: 1, name: title}
      - {number: 2, name: light_world}
      - {number: 3, name: rain, paired: 4}
      - {number: 4, name: rain_loop}
      - {number: 35, name: eastern_palace, extended: true, fallback: 2}
  - name: sm
    display_name: Super Metroid
    selectable: false
    slots:
      - {number: 1, name: title}
      - {number: 2, name: crateria, special: true}
  - name: smz3
    display_name: SMZ3
    priority: 2
    copy:
      - {from: sm, offset: 0}
      - {from: alttp, offset: 100}
    slots:
      - {number: 99, name: credits, ignored: true}
    exact_matches: [alttp]
conversions:
  - source: sm
    target: alttp
    table: {2: 4}
`

func load(t *testing.T, doc string) *registry.Registry {
	t.Helper()
	reg := registry.New()
	require.NoError(t, Load(strings.NewReader(doc), reg, nil))
	return reg
}

func TestLoadTypes(t *testing.T) {
	reg := load(t, sample)

	assert.Equal(t, []string{"alttp", "sm", "smz3"}, namesOf(reg.Types()))
	assert.Equal(t, []string{"alttp", "smz3"}, namesOf(reg.Selectable()))

	alttp, ok := reg.Get("alttp")
	require.True(t, ok)
	assert.Equal(t, "A Link to the Past", alttp.DisplayName)
	assert.Equal(t, domain.NewSlotSet(1, 2, 3, 4), alttp.RequiredSlots)
	assert.Equal(t, domain.NewSlotSet(1, 2, 3, 4, 35), alttp.ValidSlots)

	slot, ok := alttp.Slot(35)
	require.True(t, ok)
	assert.True(t, slot.IsExtended)
	assert.Equal(t, 2, slot.Fallback)
}

func TestCopyShiftsSlotsAndRegistersConversions(t *testing.T) {
	reg := load(t, sample)

	smz3, ok := reg.Get("smz3")
	require.True(t, ok)
	assert.Equal(t, 2, smz3.Priority)
	assert.Equal(t, []int{1, 2, 101, 102, 103, 104, 135, 99}, slotNumbers(smz3))
	assert.Equal(t, domain.NewSlotSet(1, 2, 101, 102, 103, 104), smz3.RequiredSlots)

	rain, ok := smz3.Slot(103)
	require.True(t, ok)
	assert.Equal(t, 104, rain.PairedSlot)
	palace, ok := smz3.Slot(135)
	require.True(t, ok)
	assert.Equal(t, 102, palace.Fallback)
	crateria, ok := smz3.Slot(2)
	require.True(t, ok)
	assert.True(t, crateria.IsSpecial)

	forward, ok := reg.Conversion("alttp", "smz3")
	require.True(t, ok)
	backward, ok := reg.Conversion("smz3", "alttp")
	require.True(t, ok)
	for _, n := range []int{1, 2, 3, 4, 35} {
		assert.Equal(t, n, backward.Apply(forward.Apply(n)))
	}

	alttp, _ := reg.Get("alttp")
	assert.True(t, reg.IsExactMatch(smz3, alttp))
	assert.True(t, reg.IsCompatible(alttp, smz3))
}

func TestExplicitConversion(t *testing.T) {
	reg := load(t, sample)

	rule, ok := reg.Conversion("sm", "alttp")
	require.True(t, ok)
	assert.Equal(t, 4, rule.Apply(2))
	assert.Equal(t, 1, rule.Apply(1))

	sm, _ := reg.Get("sm")
	alttp, _ := reg.Get("alttp")
	pack := &domain.Pack{ID: "p", Type: sm.Name, Tracks: []domain.Track{
		{SlotNumber: 1, Path: "a"}, {SlotNumber: 2, Path: "b"},
	}}
	converted := converter.New(reg, nil).Convert(pack, alttp)
	assert.Equal(t, []int{1, 4}, []int{converted.Tracks[0].SlotNumber, converted.Tracks[1].SlotNumber})
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		is   error
	}{
		{
			name: "copy before definition",
			doc:  "types:\n  - name: b\n    copy: [{from: a, offset: 10}]\n  - name: a\n    slots: [{number: 1}]\n",
			is:   ErrUnknownCopySource,
		},
		{
			name: "duplicate type",
			doc:  "types:\n  - name: a\n    slots: [{number: 1}]\n  - name: a\n    slots: [{number: 1}]\n",
			is:   registry.ErrDuplicateType,
		},
		{
			name: "fallback cycle",
			doc:  "types:\n  - name: a\n    slots:\n      - {number: 1, fallback: 2}\n      - {number: 2, fallback: 1}\n",
			is:   registry.ErrInvalidType,
		},
		{
			name: "conversion to unknown type",
			doc:  "types:\n  - name: a\n    slots: [{number: 1}]\nconversions:\n  - {source: a, target: z, offset: 1}\n",
			is:   registry.ErrUnknownType,
		},
		{
			name: "exact match with unknown type",
			doc:  "types:\n  - name: a\n    slots: [{number: 1}]\n    exact_matches: [z]\n",
			is:   registry.ErrUnknownType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Load(strings.NewReader(tt.doc), registry.New(), nil)
			assert.ErrorIs(t, err, tt.is)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.yml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	reg := registry.New()
	require.NoError(t, LoadFile(path, reg, nil))
	assert.Len(t, reg.Types(), 3)

	assert.Error(t, LoadFile(filepath.Join(t.TempDir(), "missing.yml"), registry.New(), nil))
}

func TestLoadEmptyDocument(t *testing.T) {
	reg := registry.New()
	require.NoError(t, Load(strings.NewReader(""), reg, nil))
	assert.Empty(t, reg.Types())
}

func namesOf(types []*domain.TypeDef) []string {
	var out []string
	for _, t := range types {
		out = append(out, t.Name)
	}
	return out
}

func slotNumbers(t *domain.TypeDef) []int {
	var out []int
	for _, s := range t.Slots {
		out = append(out, s.Number)
	}
	return out
}
