package distribution

import (
	"github.com/valyala/fastrand"
	"golang.org/x/exp/rand"
)

// FastSource adapts fastrand's lock-free generator to the rand.Source
// interface consumed by distuv and the noise samplers. It trades
// reproducibility guarantees across word sizes for speed in the bulk
// white-noise draws.
type FastSource struct {
	rng fastrand.RNG
}

// NewFastSource returns a source seeded with the given value; seed 0 leaves
// the generator in its auto-seeded state.
func NewFastSource(seed uint64) *FastSource {
	s := &FastSource{}
	if seed != 0 {
		s.Seed(seed)
	}
	return s
}

// Seed reseeds the generator.
func (s *FastSource) Seed(seed uint64) {
	s.rng.Seed(uint32(seed) ^ uint32(seed>>32))
}

// Uint64 returns the next 64 random bits.
func (s *FastSource) Uint64() uint64 {
	return uint64(s.rng.Uint32())<<32 | uint64(s.rng.Uint32())
}

var _ rand.Source = (*FastSource)(nil)
