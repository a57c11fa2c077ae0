// Package circuit packs devices into notification circuits (branches) and
// improves the packing.
//
// # Allocation
//
// [Allocator] packs the devices of one level into branches under two
// independent usable limits, current and unit loads, plus an optional device
// cap. Four packers are available:
//
//   - sequential: fill the open branch in wiring order, open a new one when
//     the next device does not fit
//   - best-fit: descending load score into the fullest branch that accepts
//   - first-fit-decreasing: descending load score into the first branch that accepts
//   - load-balance: ascending load score into the emptiest branch that accepts
//
// The auto strategy uses sequential below the population threshold and
// otherwise keeps the best result of the other three. A device that exceeds a
// hard limit on its own is isolated in an oversize branch.
//
// # Improvement
//
// [Balance] is a bounded local search that moves single devices between
// branches while the population variance of branch current strictly drops.
// The pass cap bounds the search; convergence is reported, not guaranteed.
//
// [MergeAcrossLevels] unions underutilized branches of neighbouring levels.
// The union must fit the usable limits, so a merge never spends the spare.
//
// # Capacity domains
//
// Levels with a repeater form islands when the policy grants repeaters a
// fresh budget ([IsIsland]): they never reuse branches from other levels and
// never take part in cross-level merging.
package circuit
