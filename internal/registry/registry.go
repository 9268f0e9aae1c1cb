// Package registry holds the catalog of known pack types and the
// compatibility graph between them.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jaki95/pack-shuffler/internal/domain"
)

var (
	ErrDuplicateType = errors.New("type already registered")
	ErrUnknownType   = errors.New("unknown type")
	ErrInvalidType   = errors.New("invalid type definition")
)

type ruleKey struct {
	source string
	target string
}

// Registry is the TypeRegistry. It is safe for concurrent reads once
// startup registration is done.
type Registry struct {
	mu           sync.RWMutex
	types        map[string]*domain.TypeDef
	order        []string
	conversions  map[ruleKey]domain.ConversionRule
	ruleOrder    []ruleKey
	exactMatches map[string]map[string]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		types:        make(map[string]*domain.TypeDef),
		conversions:  make(map[ruleKey]domain.ConversionRule),
		exactMatches: make(map[string]map[string]struct{}),
	}
}

// Register adds a type definition.
func (r *Registry) Register(t *domain.TypeDef) error {
	if t == nil || t.Name == "" {
		return fmt.Errorf("%w: type name is required", ErrInvalidType)
	}
	if err := validate(t); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[t.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateType, t.Name)
	}
	t.Reindex()
	r.types[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

func validate(t *domain.TypeDef) error {
	seen := make(map[int]struct{}, len(t.Slots))
	for _, s := range t.Slots {
		if s.Number <= 0 {
			return fmt.Errorf("%w: %s: slot number %d must be positive", ErrInvalidType, t.Name, s.Number)
		}
		if _, dup := seen[s.Number]; dup {
			return fmt.Errorf("%w: %s: duplicate slot number %d", ErrInvalidType, t.Name, s.Number)
		}
		seen[s.Number] = struct{}{}
	}
	if t.ValidSlots == nil {
		return fmt.Errorf("%w: %s: no valid slots", ErrInvalidType, t.Name)
	}
	if !t.RequiredSlots.IsSubsetOf(t.ValidSlots) {
		return fmt.Errorf("%w: %s: required slots must be valid slots", ErrInvalidType, t.Name)
	}

	for _, s := range t.Slots {
		visited := map[int]struct{}{s.Number: {}}
		next := s
		for next.HasFallback() {
			if _, loop := visited[next.Fallback]; loop {
				return fmt.Errorf("%w: %s: fallback cycle through slot %d", ErrInvalidType, t.Name, s.Number)
			}
			visited[next.Fallback] = struct{}{}
			var ok bool
			next, ok = findSlot(t, next.Fallback)
			if !ok {
				break
			}
		}
	}
	return nil
}

func findSlot(t *domain.TypeDef, n int) (domain.SlotDef, bool) {
	for _, s := range t.Slots {
		if s.Number == n {
			return s, true
		}
	}
	return domain.SlotDef{}, false
}

// AddConversion registers a conversion rule. Callers are expected to pair it
// with the inverse rule; the registry does not enforce this.
func (r *Registry) AddConversion(rule domain.ConversionRule) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range []string{rule.Source, rule.Target} {
		if _, ok := r.types[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownType, name)
		}
	}
	key := ruleKey{rule.Source, rule.Target}
	if _, exists := r.conversions[key]; !exists {
		r.ruleOrder = append(r.ruleOrder, key)
	}
	r.conversions[key] = rule
	return nil
}

// AddExactMatch declares that packs of type a play as-is on type b.
func (r *Registry) AddExactMatch(a, b string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, name := range []string{a, b} {
		if _, ok := r.types[name]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownType, name)
		}
	}
	set, ok := r.exactMatches[a]
	if !ok {
		set = make(map[string]struct{})
		r.exactMatches[a] = set
	}
	set[b] = struct{}{}
	return nil
}

// Get returns the type registered under name.
func (r *Registry) Get(name string) (*domain.TypeDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// Types returns all types in registration order.
func (r *Registry) Types() []*domain.TypeDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.TypeDef, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.types[name])
	}
	return out
}

// Selectable returns the types users may pick as an output type.
func (r *Registry) Selectable() []*domain.TypeDef {
	var out []*domain.TypeDef
	for _, t := range r.Types() {
		if t.Selectable {
			out = append(out, t)
		}
	}
	return out
}

// Conversion returns the rule converting source slots into target slots.
func (r *Registry) Conversion(source, target string) (domain.ConversionRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.conversions[ruleKey{source, target}]
	return rule, ok
}

// Rules returns every registered conversion rule in registration order.
func (r *Registry) Rules() []domain.ConversionRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.ConversionRule, 0, len(r.ruleOrder))
	for _, key := range r.ruleOrder {
		out = append(out, r.conversions[key])
	}
	return out
}

// IsCompatible reports whether packs can be converted between a and b.
func (r *Registry) IsCompatible(a, b *domain.TypeDef) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Name == b.Name || sameDisplayName(a, b) {
		return true
	}
	_, forward := r.Conversion(a.Name, b.Name)
	_, backward := r.Conversion(b.Name, a.Name)
	return forward || backward
}

// IsExactMatch reports whether a pack of type a plays unchanged on type b.
func (r *Registry) IsExactMatch(a, b *domain.TypeDef) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Name == b.Name || sameDisplayName(a, b) {
		return true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.exactMatches[a.Name][b.Name]; ok {
		return true
	}
	_, ok := r.exactMatches[b.Name][a.Name]
	return ok
}

// CompatibleWith returns the registered types compatible with t, in
// registration order.
func (r *Registry) CompatibleWith(t *domain.TypeDef) []*domain.TypeDef {
	var out []*domain.TypeDef
	for _, candidate := range r.Types() {
		if r.IsCompatible(t, candidate) {
			out = append(out, candidate)
		}
	}
	return out
}

// Names returns the sorted type names, for help text and errors.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}

func sameDisplayName(a, b *domain.TypeDef) bool {
	return a.DisplayName != "" && a.DisplayName == b.DisplayName
}
