package level

import (
	"cmp"
	"slices"
	"strings"

	"github.com/matzehuels/nacplan/pkg/policy"
)

// ConsolidateOptions tunes [Consolidate].
type ConsolidateOptions struct {
	// CandidateBelow is the utilization under which a floor may merge.
	CandidateBelow float64
	// MaxUtilization caps the utilization of a merged group.
	MaxUtilization float64
	// MaxDistance bounds the ordinal key distance between merged floors.
	MaxDistance int
}

// ConsolidateOptionsFromPolicy returns the consolidation options configured in p.
func ConsolidateOptionsFromPolicy(p policy.Policy) ConsolidateOptions {
	return ConsolidateOptions{
		CandidateBelow: p.ConsolidationCandidateBelow,
		MaxUtilization: p.ConsolidationMaxUtilization,
		MaxDistance:    p.MaxFloorDistance,
	}
}

// Merge records one consolidated level.
type Merge struct {
	Name   string   `json:"name"`
	Floors []string `json:"floors"`
}

// Consolidation is the result of [Consolidate].
type Consolidation struct {
	Levels           []*Data
	Before           int
	After            int
	ReductionPercent float64
	Merges           []Merge
}

// Consolidate merges underutilized floors of the same category.
//
// A level is a candidate when its utilization against hard is strictly below
// opts.CandidateBelow, it has no repeater and it is not the Unknown bucket.
// Candidates are visited by ascending key; each absorbs the closest
// unprocessed candidates of its category within opts.MaxDistance while the
// union fits hard and its utilization stays at or below opts.MaxUtilization.
// The input levels are not modified.
func Consolidate(levels []*Data, hard policy.Limits, opts ConsolidateOptions) Consolidation {
	sorted := slices.Clone(levels)
	Sort(sorted)

	res := Consolidation{Before: len(sorted)}
	unitLimits := policy.Limits{CurrentA: hard.CurrentA, UnitLoads: hard.UnitLoads}

	candidate := make([]bool, len(sorted))
	for i, l := range sorted {
		candidate[i] = !l.HasRepeater && l.Category != CategoryUnknown && l.Fraction(hard) < opts.CandidateBelow
	}
	processed := make([]bool, len(sorted))

	for i, l := range sorted {
		if processed[i] {
			continue
		}
		processed[i] = true
		if !candidate[i] {
			res.Levels = append(res.Levels, l)
			continue
		}

		group := []*Data{l}
		current, unitLoads := l.CurrentA, float64(l.UnitLoads)

		for _, j := range nearby(sorted, candidate, processed, i, opts.MaxDistance) {
			o := sorted[j]
			c, u := current+o.CurrentA, unitLoads+float64(o.UnitLoads)
			if !unitLimits.Fits(c, u, 0) {
				continue
			}
			if !policy.Within(hard.Utilization(c, u), opts.MaxUtilization) {
				continue
			}
			group = append(group, o)
			current, unitLoads = c, u
			processed[j] = true
		}

		if len(group) == 1 {
			res.Levels = append(res.Levels, l)
			continue
		}
		merged := merge(group, hard)
		res.Levels = append(res.Levels, merged)
		res.Merges = append(res.Merges, Merge{Name: merged.Name, Floors: merged.OriginalFloors})
	}

	Sort(res.Levels)
	res.After = len(res.Levels)
	if res.Before > 0 {
		res.ReductionPercent = float64(res.Before-res.After) / float64(res.Before) * 100
	}
	return res
}

// Identity returns a consolidation that keeps every level as is.
func Identity(levels []*Data) Consolidation {
	sorted := slices.Clone(levels)
	Sort(sorted)
	return Consolidation{Levels: sorted, Before: len(sorted), After: len(sorted)}
}

// nearby returns the unprocessed candidates of the same category as
// sorted[i] within maxDistance, closest first.
func nearby(sorted []*Data, candidate, processed []bool, i, maxDistance int) []int {
	base := sorted[i]
	var out []int
	for j, o := range sorted {
		if j == i || processed[j] || !candidate[j] || o.Category != base.Category {
			continue
		}
		if abs(o.SortKey-base.SortKey) > maxDistance {
			continue
		}
		out = append(out, j)
	}
	slices.SortStableFunc(out, func(a, b int) int {
		da, db := abs(sorted[a].SortKey-base.SortKey), abs(sorted[b].SortKey-base.SortKey)
		return cmp.Or(cmp.Compare(da, db), cmp.Compare(sorted[a].SortKey, sorted[b].SortKey))
	})
	return out
}

func merge(group []*Data, hard policy.Limits) *Data {
	Sort(group)
	names := make([]string, len(group))
	out := &Data{
		Category:          group[0].Category,
		SortKey:           group[0].SortKey,
		Families:          make(map[string]int),
		Combined:          true,
		RequiresIsolators: true,
	}
	for i, g := range group {
		names[i] = g.Name
		out.Devices = append(out.Devices, g.Devices...)
		out.DeviceCount += g.DeviceCount
		out.CurrentA += g.CurrentA
		out.StandbyA += g.StandbyA
		out.WattageW += g.WattageW
		out.UnitLoads += g.UnitLoads
		for f, n := range g.Families {
			out.Families[f] += n
		}
		out.OriginalFloors = append(out.OriginalFloors, g.Floors()...)
	}
	out.Name = strings.Join(names, Separator)
	out.finish(hard)
	return out
}
