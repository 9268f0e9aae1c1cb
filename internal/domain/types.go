package domain

import (
	"sort"
)

// SlotSet is a set of slot numbers.
type SlotSet map[int]struct{}

// NewSlotSet builds a set from the given slot numbers.
func NewSlotSet(slots ...int) SlotSet {
	s := make(SlotSet, len(slots))
	for _, n := range slots {
		s[n] = struct{}{}
	}
	return s
}

// Contains reports whether n is in the set.
func (s SlotSet) Contains(n int) bool {
	_, ok := s[n]
	return ok
}

// Add inserts n into the set.
func (s SlotSet) Add(n int) {
	s[n] = struct{}{}
}

// Overlap returns the number of slots present in both sets.
func (s SlotSet) Overlap(other SlotSet) int {
	small, large := s, other
	if len(small) > len(large) {
		small, large = large, small
	}
	count := 0
	for n := range small {
		if large.Contains(n) {
			count++
		}
	}
	return count
}

// IsSubsetOf reports whether every slot of s is in other.
func (s SlotSet) IsSubsetOf(other SlotSet) bool {
	for n := range s {
		if !other.Contains(n) {
			return false
		}
	}
	return true
}

// Sorted returns the slot numbers in ascending order.
func (s SlotSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// SlotDef is one numbered position in a type. Slot numbers are positive;
// zero in Fallback or PairedSlot means "none".
type SlotDef struct {
	Number     int    `json:"number"`
	Name       string `json:"name"`
	Fallback   int    `json:"fallback,omitempty"`
	PairedSlot int    `json:"paired_slot,omitempty"`
	IsExtended bool   `json:"is_extended,omitempty"`
	IsSpecial  bool   `json:"is_special,omitempty"`
	IsIgnored  bool   `json:"is_ignored,omitempty"`
	NonLooping bool   `json:"non_looping,omitempty"`
}

// HasFallback reports whether the slot declares a fallback slot.
func (s SlotDef) HasFallback() bool { return s.Fallback > 0 }

// HasPair reports whether the slot declares a paired slot.
func (s SlotDef) HasPair() bool { return s.PairedSlot > 0 }

// TypeDef is a game's track catalog. A TypeDef must not be modified once it
// has been registered.
type TypeDef struct {
	Name          string
	DisplayName   string
	Selectable    bool
	Priority      int // higher ranks win matcher ties; 0 means no priority
	RequiredSlots SlotSet
	ValidSlots    SlotSet
	Slots         []SlotDef

	index map[int]int
}

// NewTypeDef builds a TypeDef from its ordered slot definitions. Valid slots
// are every defined slot number. When required is nil, every slot that is
// neither extended nor ignored is required.
func NewTypeDef(name, displayName string, slots []SlotDef, required []int) *TypeDef {
	t := &TypeDef{
		Name:        name,
		DisplayName: displayName,
		Selectable:  true,
		ValidSlots:  make(SlotSet, len(slots)),
		Slots:       append([]SlotDef(nil), slots...),
	}
	for _, s := range slots {
		t.ValidSlots.Add(s.Number)
	}
	if required == nil {
		t.RequiredSlots = make(SlotSet)
		for _, s := range slots {
			if !s.IsExtended && !s.IsIgnored {
				t.RequiredSlots.Add(s.Number)
			}
		}
	} else {
		t.RequiredSlots = NewSlotSet(required...)
	}
	t.reindex()
	return t
}

// Reindex rebuilds the slot lookup index. The registry calls it once on
// registration for TypeDefs built as literals.
func (t *TypeDef) Reindex() {
	t.reindex()
}

func (t *TypeDef) reindex() {
	t.index = make(map[int]int, len(t.Slots))
	for i, s := range t.Slots {
		if _, exists := t.index[s.Number]; !exists {
			t.index[s.Number] = i
		}
	}
}

// Slot returns the definition of slot n.
func (t *TypeDef) Slot(n int) (SlotDef, bool) {
	if t.index == nil {
		for _, s := range t.Slots {
			if s.Number == n {
				return s, true
			}
		}
		return SlotDef{}, false
	}
	i, ok := t.index[n]
	if !ok {
		return SlotDef{}, false
	}
	return t.Slots[i], true
}

// Label returns the display name, or the name when no display name is set.
func (t *TypeDef) Label() string {
	if t.DisplayName != "" {
		return t.DisplayName
	}
	return t.Name
}

// ConversionRule maps slot numbers of the Source type onto the Target type.
// A Table entry wins; any other slot is shifted by Offset.
type ConversionRule struct {
	Source string      `json:"source"`
	Target string      `json:"target"`
	Offset int         `json:"offset,omitempty"`
	Table  map[int]int `json:"table,omitempty"`
}

// Apply maps one slot number.
func (r ConversionRule) Apply(slot int) int {
	if mapped, ok := r.Table[slot]; ok {
		return mapped
	}
	return slot + r.Offset
}

// Identity returns a rule that leaves slot numbers unchanged.
func Identity(source, target string) ConversionRule {
	return ConversionRule{Source: source, Target: target}
}
