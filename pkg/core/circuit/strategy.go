package circuit

import (
	"cmp"
	"slices"

	"github.com/matzehuels/nacplan/pkg/core/device"
	"github.com/matzehuels/nacplan/pkg/core/network"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// item is a device waiting to be packed.
type item struct {
	dev  network.DeviceID
	load device.Load
	// order is the wiring position, used to break ties.
	order int
}

// bin is a branch under construction.
type bin struct {
	items  []item
	totals network.Totals
	// existing is the branch a shared-domain bin was seeded from, or -1.
	existing network.BranchID
}

func (b *bin) add(it item) {
	b.items = append(b.items, it)
	b.totals.Add(it.load)
}

// accepts reports whether it can join b under limits. An empty bin always
// accepts.
func (b *bin) accepts(it item, limits policy.Limits) bool {
	if b.totals.Devices == 0 {
		return true
	}
	t := b.totals
	t.Add(it.load)
	return t.Fits(limits)
}

// packing is the output of one packer.
type packing struct {
	strategy policy.Strategy
	bins     []*bin
}

// newBins counts the bins that would create new branches.
func (p packing) newBins() int {
	n := 0
	for _, b := range p.bins {
		if b.existing < 0 && len(b.items) > 0 {
			n++
		}
	}
	return n
}

// variance is the population variance of bin current.
func (p packing) variance() float64 {
	currents := make([]float64, 0, len(p.bins))
	for _, b := range p.bins {
		currents = append(currents, b.totals.CurrentA)
	}
	return Variance(currents)
}

// Variance returns the population variance of values.
func Variance(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

type packer func(items []item, seed []*bin, limits policy.Limits) []*bin

var packers = map[policy.Strategy]packer{
	policy.StrategySequential:  packSequential,
	policy.StrategyBestFit:     packBestFit,
	policy.StrategyFirstFit:    packFirstFit,
	policy.StrategyLoadBalance: packLoadBalance,
}

// autoCandidates are the packers compared by the auto strategy, in tie-break order.
var autoCandidates = []policy.Strategy{policy.StrategyBestFit, policy.StrategyFirstFit, policy.StrategyLoadBalance}

// pack runs the packer for strategy on copies of seed.
func pack(strategy policy.Strategy, items []item, seed []*bin, limits policy.Limits) packing {
	bins := make([]*bin, len(seed))
	for i, s := range seed {
		c := *s
		c.items = slices.Clone(s.items)
		bins[i] = &c
	}
	return packing{strategy: strategy, bins: packers[strategy](items, bins, limits)}
}

// choose resolves the auto strategy for a population of n devices.
func choose(items []item, seed []*bin, limits policy.Limits, threshold int) packing {
	if len(items) < threshold {
		return pack(policy.StrategySequential, items, seed, limits)
	}
	var best packing
	for i, s := range autoCandidates {
		p := pack(s, items, seed, limits)
		if i == 0 || better(p, best) {
			best = p
		}
	}
	return best
}

// better reports whether a beats b: fewer new branches, then lower variance.
func better(a, b packing) bool {
	if an, bn := a.newBins(), b.newBins(); an != bn {
		return an < bn
	}
	return a.variance() < b.variance()-1e-12
}

// packSequential appends devices in wiring order to the open bin.
func packSequential(items []item, bins []*bin, limits policy.Limits) []*bin {
	var open *bin
	if len(bins) > 0 {
		open = bins[len(bins)-1]
	}
	for _, it := range items {
		if open == nil || !open.accepts(it, limits) {
			open = &bin{existing: -1}
			bins = append(bins, open)
		}
		open.add(it)
	}
	return bins
}

func byScore(items []item, descending bool) []item {
	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b item) int {
		c := cmp.Compare(a.load.Score(), b.load.Score())
		if descending {
			c = -c
		}
		return cmp.Or(c, cmp.Compare(a.order, b.order))
	})
	return sorted
}

// packBestFit places devices by descending score into the most utilized bin
// that accepts them.
func packBestFit(items []item, bins []*bin, limits policy.Limits) []*bin {
	for _, it := range byScore(items, true) {
		best, bestUtil := -1, -1.0
		for i, b := range bins {
			if !b.accepts(it, limits) {
				continue
			}
			if u := b.totals.Utilization(limits); u > bestUtil+1e-12 {
				best, bestUtil = i, u
			}
		}
		bins = place(bins, best, it)
	}
	return bins
}

// packFirstFit places devices by descending score into the first bin that
// accepts them.
func packFirstFit(items []item, bins []*bin, limits policy.Limits) []*bin {
	for _, it := range byScore(items, true) {
		idx := slices.IndexFunc(bins, func(b *bin) bool { return b.accepts(it, limits) })
		bins = place(bins, idx, it)
	}
	return bins
}

// packLoadBalance places devices by ascending score into the least utilized
// bin that accepts them.
func packLoadBalance(items []item, bins []*bin, limits policy.Limits) []*bin {
	for _, it := range byScore(items, false) {
		best, bestUtil := -1, 0.0
		for i, b := range bins {
			if !b.accepts(it, limits) {
				continue
			}
			if u := b.totals.Utilization(limits); best < 0 || u < bestUtil-1e-12 {
				best, bestUtil = i, u
			}
		}
		bins = place(bins, best, it)
	}
	return bins
}

func place(bins []*bin, idx int, it item) []*bin {
	if idx < 0 {
		b := &bin{existing: -1}
		bins = append(bins, b)
		idx = len(bins) - 1
	}
	bins[idx].add(it)
	return bins
}
