package domain

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Scores are the four derived environmental scores of a site.
type Scores struct {
	Climate   int
	Renewable int
	Grid      int
	Risk      int
}

// Scorer derives scores for a site. LandCost is consulted only for existing
// sites; potential sites are priced by their property record.
type Scorer interface {
	Scores(loc Location) Scores
	LandCost(loc Location) int
}

// Score and land-cost sampling ranges, lower bound inclusive, upper exclusive.
const (
	climateMin, climateMax     = 60, 90
	renewableMin, renewableMax = 40, 80
	gridMin, gridMax           = 40, 80
	riskMin, riskMax           = 70, 90
	landCostMin, landCostMax   = 2_000_000, 5_000_000
)

// RandomScorer samples uniformly from the reference ranges. It is safe for
// concurrent use.
type RandomScorer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandomScorer creates a RandomScorer. A zero seed seeds from the clock.
func NewRandomScorer(seed uint64) *RandomScorer {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &RandomScorer{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *RandomScorer) Scores(Location) Scores {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Scores{
		Climate:   s.between(climateMin, climateMax),
		Renewable: s.between(renewableMin, renewableMax),
		Grid:      s.between(gridMin, gridMax),
		Risk:      s.between(riskMin, riskMax),
	}
}

func (s *RandomScorer) LandCost(Location) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.between(landCostMin, landCostMax)
}

// between must be called with mu held.
func (s *RandomScorer) between(lo, hi int) int {
	return lo + s.rng.IntN(hi-lo)
}

// FixedScorer returns the same values for every site.
type FixedScorer struct {
	Values Scores
	Land   int
}

func (f FixedScorer) Scores(Location) Scores { return f.Values }
func (f FixedScorer) LandCost(Location) int  { return f.Land }
