// Package level buckets devices by building level and consolidates
// underutilized floors before circuit allocation.
//
// # Ordinal keys
//
// Every level name is classified into a [Category] and an ordinal sort key:
//
//	basement n     -n          (main)
//	parking n      -500 + n    (parking)
//	ground          0          (main)
//	floor n         1000 + n   (main)
//	villa n         5000 + n   (villa)
//	roof, plant n   9000 + n   (mechanical)
//	anything else   9999       (main, or unknown for the "Unknown" bucket)
//
// Keys order levels for consolidation, cross-level merging and reports.
//
// # Consolidation
//
// [Consolidate] merges small floors of the same category that sit close to
// each other in key space. Merged levels are named by joining the source
// names with " + " and always require isolators. Levels with a repeater and
// the Unknown bucket never merge.
package level
