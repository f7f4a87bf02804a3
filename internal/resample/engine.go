// Package resample draws bootstrap and jackknife index sets over entity rows.
// Draws are reproducible: every bootstrap iteration is parameterized by an
// explicit seed derived deterministically from the engine's master seed.
package resample

import (
	"fmt"
	"math/rand"
	"sort"
)

// DefaultSeed matches the historical default used across study runs.
const DefaultSeed int64 = 10221983

// Engine produces resampled index sets for bootstrap and jackknife runs.
type Engine struct {
	seed int64
}

// NewEngine creates an engine with the given master seed.
func NewEngine(seed int64) *Engine {
	return &Engine{seed: seed}
}

// Seeds derives n per-iteration seeds from the master seed. The same master
// seed always yields the same seed sequence, and therefore the same draws.
func (e *Engine) Seeds(n int) []int64 {
	rng := rand.New(rand.NewSource(e.seed))
	seeds := make([]int64, n)
	for i := range seeds {
		seeds[i] = rng.Int63n(1_000_000)
	}
	return seeds
}

// Bootstrap draws n independent resampled index sets of size total, each
// with replacement. When stratify is non-nil, draws respect stratum
// proportions: every stratum contributes exactly as many rows as it holds.
// When clusters is non-nil, whole clusters are resampled instead of rows.
func (e *Engine) Bootstrap(n, total int, stratify, clusters []string) ([][]int, error) {
	if total == 0 {
		return nil, fmt.Errorf("bootstrap: no rows to resample")
	}
	if stratify != nil && len(stratify) != total {
		return nil, fmt.Errorf("bootstrap: stratify key has %d entries, want %d", len(stratify), total)
	}
	if clusters != nil && len(clusters) != total {
		return nil, fmt.Errorf("bootstrap: cluster key has %d entries, want %d", len(clusters), total)
	}

	seeds := e.Seeds(n)
	sets := make([][]int, n)
	for i, seed := range seeds {
		idx, err := BootSample(total, stratify, clusters, seed)
		if err != nil {
			return nil, err
		}
		sets[i] = idx
	}
	return sets, nil
}

// BootSample draws one with-replacement index set of size total, seeded
// explicitly so that callers control reproducibility per iteration.
func BootSample(total int, stratify, clusters []string, seed int64) ([]int, error) {
	if total == 0 {
		return nil, fmt.Errorf("boot sample: no rows to resample")
	}
	rng := rand.New(rand.NewSource(seed))

	switch {
	case clusters != nil:
		if len(clusters) != total {
			return nil, fmt.Errorf("boot sample: cluster key has %d entries, want %d", len(clusters), total)
		}
		return clusterSample(clusters, rng), nil
	case stratify != nil:
		if len(stratify) != total {
			return nil, fmt.Errorf("boot sample: stratify key has %d entries, want %d", len(stratify), total)
		}
		return stratifiedSample(stratify, rng), nil
	default:
		idx := make([]int, total)
		for i := range idx {
			idx[i] = rng.Intn(total)
		}
		return idx, nil
	}
}

// stratifiedSample draws, within each stratum, as many rows as the stratum
// holds, so stratum proportions survive the resample exactly.
func stratifiedSample(key []string, rng *rand.Rand) []int {
	groups := groupIndices(key)
	out := make([]int, 0, len(key))
	for _, stratum := range sortedKeys(groups) {
		members := groups[stratum]
		for range members {
			out = append(out, members[rng.Intn(len(members))])
		}
	}
	return out
}

// clusterSample resamples cluster labels with replacement and emits every
// member row of each drawn cluster. Output length varies with cluster sizes.
func clusterSample(key []string, rng *rand.Rand) []int {
	groups := groupIndices(key)
	labels := sortedKeys(groups)
	out := make([]int, 0, len(key))
	for range labels {
		drawn := labels[rng.Intn(len(labels))]
		out = append(out, groups[drawn]...)
	}
	return out
}

// Jackknife returns the n leave-one-out index sets, ordered by the deleted
// row so downstream pairing stays reproducible.
func Jackknife(total int) [][]int {
	sets := make([][]int, total)
	for drop := 0; drop < total; drop++ {
		idx := make([]int, 0, total-1)
		for i := 0; i < total; i++ {
			if i != drop {
				idx = append(idx, i)
			}
		}
		sets[drop] = idx
	}
	return sets
}

func groupIndices(key []string) map[string][]int {
	groups := make(map[string][]int)
	for i, k := range key {
		groups[k] = append(groups[k], i)
	}
	return groups
}

func sortedKeys(groups map[string][]int) []string {
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
