package selection

import (
	"math/rand/v2"
	"sort"

	"github.com/jaki95/pack-shuffler/internal/domain"
)

// candidate is a pooled track tagged with the weight of its source pack.
type candidate struct {
	track   domain.Track
	source  domain.PackID
	weight  float64
	special bool // the track comes from a special slot of the target type
	removed bool
}

// cumulativeSampler draws one index with probability proportional to its
// weight.
type cumulativeSampler struct {
	cumulative []float64
	indices    []int
}

func newCumulativeSampler(weights []float64, indices []int) *cumulativeSampler {
	s := &cumulativeSampler{
		cumulative: make([]float64, 0, len(indices)),
		indices:    make([]int, 0, len(indices)),
	}
	total := 0.0
	for _, i := range indices {
		w := weights[i]
		if w <= 0 {
			continue
		}
		total += w
		s.cumulative = append(s.cumulative, total)
		s.indices = append(s.indices, i)
	}
	return s
}

func (s *cumulativeSampler) total() float64 {
	if len(s.cumulative) == 0 {
		return 0
	}
	return s.cumulative[len(s.cumulative)-1]
}

// draw returns an index passed to newCumulativeSampler, or false when the
// sampler is empty.
func (s *cumulativeSampler) draw(rng *rand.Rand) (int, bool) {
	total := s.total()
	if total <= 0 {
		return 0, false
	}
	r := rng.Float64() * total
	pos := sort.Search(len(s.cumulative), func(i int) bool { return s.cumulative[i] > r })
	if pos == len(s.cumulative) {
		pos = len(s.cumulative) - 1
	}
	return s.indices[pos], true
}

// pool is the candidate list for one generation pass.
type pool struct {
	candidates []candidate
	weights    []float64
}

func (p *pool) add(c candidate) {
	p.candidates = append(p.candidates, c)
	p.weights = append(p.weights, c.weight)
}

// filter returns the indices of live candidates accepted by keep.
func (p *pool) filter(keep func(c *candidate) bool) []int {
	var out []int
	for i := range p.candidates {
		c := &p.candidates[i]
		if c.removed || !keep(c) {
			continue
		}
		out = append(out, i)
	}
	return out
}

func (p *pool) draw(rng *rand.Rand, indices []int) (int, bool) {
	return newCumulativeSampler(p.weights, indices).draw(rng)
}

// removeFile drops every candidate pointing at path.
func (p *pool) removeFile(path string) {
	for i := range p.candidates {
		if p.candidates[i].track.Path == path {
			p.candidates[i].removed = true
		}
	}
}
