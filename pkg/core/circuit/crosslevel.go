package circuit

import (
	"cmp"
	"slices"
	"strings"

	"github.com/matzehuels/nacplan/pkg/core/network"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// CrossLevelOptions tunes [MergeAcrossLevels].
type CrossLevelOptions struct {
	// CandidateBelow is the utilization under which a branch may merge.
	CandidateBelow float64
	// MaxDistance bounds the rank distance between the levels of merged
	// branches within their category's sorted level list.
	MaxDistance int
	// Excluded lists level categories that never merge.
	Excluded []string
	// Fit bounds the merged branch. The zero value falls back to the hard
	// limits.
	Fit policy.Limits
}

// CrossLevelOptionsFromPolicy returns the cross-level options configured in p.
func CrossLevelOptionsFromPolicy(p policy.Policy) CrossLevelOptions {
	return CrossLevelOptions{
		CandidateBelow: p.CrossLevelCandidateBelow,
		MaxDistance:    p.MaxLevelMergeDistance,
		Excluded:       slices.Clone(p.CrossLevelExcluded),
		Fit:            p.Usable(),
	}
}

// CrossLevelMerge records one merged branch.
type CrossLevelMerge struct {
	Levels   string `json:"levels"`
	Branches int    `json:"branches"`
}

// CrossLevelResult reports what [MergeAcrossLevels] did.
type CrossLevelResult struct {
	Candidates int
	Merges     []CrossLevelMerge
	// Skipped counts underutilized branches left out because their category
	// is excluded.
	Skipped int
	// Removed is the number of branches eliminated.
	Removed int
}

// MergeAcrossLevels unions underutilized branches of nearby levels in the
// same category while the union fits both opts.Fit and hard.
// Candidates are measured against hard. Oversize, island, placed and
// empty branches never take part. Candidates are visited by ascending
// current; each absorbs the closest remaining candidates first.
//
// Empty branches are compacted afterwards, so branch handles held by the
// caller are invalid once this returns.
func MergeAcrossLevels(net *network.Network, hard policy.Limits, opts CrossLevelOptions) (CrossLevelResult, error) {
	var res CrossLevelResult
	rank := levelRanks(net)
	fit := opts.Fit
	if fit == (policy.Limits{}) {
		fit = hard
	}

	type cand struct {
		id       network.BranchID
		category string
		rank     int
		totals   network.Totals
	}
	var cands []cand
	for i := range net.Branches {
		id := network.BranchID(i)
		br := net.Branch(id)
		if br.Oversize || br.Island || net.Frozen(id) || len(br.Devices) == 0 {
			continue
		}
		t := net.Totals(id)
		if t.Utilization(hard) >= opts.CandidateBelow {
			continue
		}
		category := net.Category(id)
		if excluded(opts.Excluded, category) {
			res.Skipped++
			continue
		}
		first := net.Devices[br.Devices[0]]
		cands = append(cands, cand{id: id, category: category, rank: rank[rankKey{category, first.Level}], totals: t})
	}
	slices.SortStableFunc(cands, func(a, b cand) int {
		return cmp.Or(cmp.Compare(a.totals.CurrentA, b.totals.CurrentA), cmp.Compare(a.id, b.id))
	})
	res.Candidates = len(cands)

	processed := make([]bool, len(cands))
	for i := range cands {
		if processed[i] {
			continue
		}
		processed[i] = true
		base := cands[i]

		var near []int
		for j := range cands {
			if processed[j] || cands[j].category != base.category {
				continue
			}
			// Branches of the same level were sized together by the allocator.
			if d := abs(cands[j].rank - base.rank); d == 0 || d > opts.MaxDistance {
				continue
			}
			near = append(near, j)
		}
		slices.SortStableFunc(near, func(a, b int) int {
			return cmp.Compare(abs(cands[a].rank-base.rank), abs(cands[b].rank-base.rank))
		})

		union := base.totals
		absorbed := 0
		for _, j := range near {
			u := union.Plus(cands[j].totals)
			if !u.Fits(fit) || !u.Fits(hard) {
				continue
			}
			if err := net.Absorb(base.id, cands[j].id); err != nil {
				return CrossLevelResult{}, err
			}
			union = u
			processed[j] = true
			absorbed++
		}
		if absorbed > 0 {
			res.Merges = append(res.Merges, CrossLevelMerge{Levels: net.LevelName(base.id), Branches: absorbed + 1})
			res.Removed += absorbed
		}
	}

	if err := net.Compact(); err != nil {
		return CrossLevelResult{}, err
	}
	return res, nil
}

type rankKey struct {
	category string
	level    string
}

// levelRanks returns the position of every level within its category's
// level list sorted by ordinal key.
func levelRanks(net *network.Network) map[rankKey]int {
	type entry struct {
		key  rankKey
		sort int
	}
	seen := make(map[rankKey]bool)
	var entries []entry
	for _, d := range net.Devices {
		k := rankKey{d.Category, d.Level}
		if seen[k] {
			continue
		}
		seen[k] = true
		entries = append(entries, entry{k, d.SortKey})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		return cmp.Or(
			strings.Compare(a.key.category, b.key.category),
			cmp.Compare(a.sort, b.sort),
			strings.Compare(a.key.level, b.key.level),
		)
	})
	ranks := make(map[rankKey]int, len(entries))
	prev, r := "", 0
	for i, e := range entries {
		if i == 0 || e.key.category != prev {
			r = 0
			prev = e.key.category
		}
		ranks[e.key] = r
		r++
	}
	return ranks
}

func excluded(list []string, category string) bool {
	for _, c := range list {
		if strings.EqualFold(strings.TrimSpace(c), category) {
			return true
		}
	}
	return false
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
