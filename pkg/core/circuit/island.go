package circuit

import (
	"github.com/matzehuels/nacplan/pkg/core/level"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// IsIsland reports whether lvl forms its own repeater power domain under p.
func IsIsland(lvl *level.Data, p policy.Policy) bool {
	return p.RepeaterFreshBudget && lvl != nil && lvl.HasRepeater
}

// MarkIslands returns levels with every island level replaced by a copy
// that requires isolators. Other levels are returned as is.
func MarkIslands(levels []*level.Data, p policy.Policy) []*level.Data {
	out := make([]*level.Data, len(levels))
	for i, l := range levels {
		if !IsIsland(l, p) || l.RequiresIsolators {
			out[i] = l
			continue
		}
		c := *l
		c.RequiresIsolators = true
		out[i] = &c
	}
	return out
}

// Islands counts the island levels in levels.
func Islands(levels []*level.Data, p policy.Policy) int {
	n := 0
	for _, l := range levels {
		if IsIsland(l, p) {
			n++
		}
	}
	return n
}
