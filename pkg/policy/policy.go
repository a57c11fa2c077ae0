// Package policy defines the capacity policy that drives a sizing run.
//
// A [Policy] is an explicit, read-only value: every entry point of the planning
// core receives one and copies it before use. There is no process-wide policy.
//
// # Limits
//
// Each notification circuit is bounded by two independent hard limits, the
// alarm current in amperes and the standby budget in unit loads. The spare
// fraction derates either limit to its usable value:
//
//	usable = hard * (1 - SpareFraction)
//
// EnforceSpareOnCurrent and EnforceSpareOnUL choose which constraint the
// spare applies to. A limit of zero is a legal degenerate policy: nothing fits,
// so every device ends up isolated in its own branch and reported.
//
// # Comparison convention
//
// Every "fits" test in nacplan is value <= limit + [Epsilon]; every
// merge-candidate test is a strict utilization < threshold. [Within] is the
// single implementation of the former.
package policy

import (
	"fmt"
	"math"
	"strings"

	"github.com/matzehuels/nacplan/pkg/errors"
)

// Epsilon absorbs floating point noise in capacity comparisons so that
// 8 x 0.3 A still fits a 2.4 A usable limit.
const Epsilon = 1e-9

// Within reports whether v fits under limit.
func Within(v, limit float64) bool {
	return v <= limit+Epsilon
}

// Strategy selects the circuit packing heuristic.
type Strategy string

const (
	StrategyAuto        Strategy = "auto"
	StrategySequential  Strategy = "sequential"
	StrategyBestFit     Strategy = "best-fit"
	StrategyFirstFit    Strategy = "first-fit-decreasing"
	StrategyLoadBalance Strategy = "load-balance"
)

// Strategies lists the accepted strategy names in their tie-break order.
var Strategies = []Strategy{StrategyAuto, StrategySequential, StrategyBestFit, StrategyFirstFit, StrategyLoadBalance}

// ParseStrategy converts a user supplied name to a Strategy.
// The empty string selects [StrategyAuto].
func ParseStrategy(s string) (Strategy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StrategyAuto, nil
	}
	switch s {
	case "ffd", "first-fit":
		return StrategyFirstFit, nil
	case "bestfit":
		return StrategyBestFit, nil
	case "balance", "loadbalance":
		return StrategyLoadBalance, nil
	}
	for _, st := range Strategies {
		if string(st) == s {
			return st, nil
		}
	}
	return "", errors.New(errors.ErrCodeInvalidStrategy, "unknown strategy %q (valid: %s)", s, strategyNames())
}

func strategyNames() string {
	names := make([]string, len(Strategies))
	for i, s := range Strategies {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// CabinetTier is one cabinet size with its block budget.
type CabinetTier struct {
	Name   string `toml:"name" json:"name"`
	Blocks int    `toml:"blocks" json:"blocks"`
}

// Policy is the capacity policy snapshot for one run.
type Policy struct {
	// Circuit limits
	CurrentLimitA         float64 `toml:"current_limit_a" json:"current_limit_a"`
	ULLimit               float64 `toml:"ul_limit" json:"ul_limit"`
	SpareFraction         float64 `toml:"spare_fraction" json:"spare_fraction"`
	EnforceSpareOnCurrent bool    `toml:"enforce_spare_on_current" json:"enforce_spare_on_current"`
	EnforceSpareOnUL      bool    `toml:"enforce_spare_on_ul" json:"enforce_spare_on_ul"`
	MaxDevicesPerCircuit  int     `toml:"max_devices_per_circuit" json:"max_devices_per_circuit"`

	// Allocation
	Strategy          Strategy `toml:"strategy" json:"strategy"`
	StrategyThreshold int      `toml:"strategy_threshold" json:"strategy_threshold"`
	MaxBalancePasses  int      `toml:"max_balance_passes" json:"max_balance_passes"`

	// Floor consolidation
	ConsolidateFloors           bool    `toml:"consolidate_floors" json:"consolidate_floors"`
	ConsolidationCandidateBelow float64 `toml:"consolidation_candidate_below" json:"consolidation_candidate_below"`
	ConsolidationMaxUtilization float64 `toml:"consolidation_max_utilization" json:"consolidation_max_utilization"`
	MaxFloorDistance            int     `toml:"max_floor_distance" json:"max_floor_distance"`

	// Cross-level merging
	CrossLevelMerge          bool     `toml:"cross_level_merge" json:"cross_level_merge"`
	CrossLevelCandidateBelow float64  `toml:"cross_level_candidate_below" json:"cross_level_candidate_below"`
	MaxLevelMergeDistance    int      `toml:"max_level_merge_distance" json:"max_level_merge_distance"`
	CrossLevelExcluded       []string `toml:"cross_level_excluded" json:"cross_level_excluded"`

	// Capacity domains
	RepeaterFreshBudget bool `toml:"repeater_fresh_budget" json:"repeater_fresh_budget"`
	ShareAcrossLevels   bool `toml:"share_across_levels" json:"share_across_levels"`

	// Level exclusions
	ExcludeVilla      bool `toml:"exclude_villa" json:"exclude_villa"`
	ExcludeGarage     bool `toml:"exclude_garage" json:"exclude_garage"`
	ExcludeMechanical bool `toml:"exclude_mechanical" json:"exclude_mechanical"`

	// Power supplies
	MaxBranchesPerSupply        int     `toml:"max_branches_per_supply" json:"max_branches_per_supply"`
	SupplyCapacityA             float64 `toml:"supply_capacity_a" json:"supply_capacity_a"`
	SupervisoryCurrentPerLevelA float64 `toml:"supervisory_current_per_level_a" json:"supervisory_current_per_level_a"`

	// Cabinets
	LargeDetectionThreshold int           `toml:"large_detection_threshold" json:"large_detection_threshold"`
	CapacityPerSupplyA      float64       `toml:"capacity_per_supply_a" json:"capacity_per_supply_a"`
	CabinetTiers            []CabinetTier `toml:"cabinet_tiers" json:"cabinet_tiers"`
}

// Defaults returns the default policy.
func Defaults() Policy {
	return Policy{
		CurrentLimitA:         3.0,
		ULLimit:               139,
		SpareFraction:         0.20,
		EnforceSpareOnCurrent: true,
		EnforceSpareOnUL:      true,

		Strategy:          StrategyAuto,
		StrategyThreshold: 50,
		MaxBalancePasses:  100,

		ConsolidateFloors:           true,
		ConsolidationCandidateBelow: 0.60,
		ConsolidationMaxUtilization: 0.80,
		MaxFloorDistance:            100,

		CrossLevelMerge:          true,
		CrossLevelCandidateBelow: 0.60,
		MaxLevelMergeDistance:    1,

		RepeaterFreshBudget: true,

		MaxBranchesPerSupply: 3,
		SupplyCapacityA:      9.0,

		LargeDetectionThreshold: 250,
		CabinetTiers: []CabinetTier{
			{Name: "Single Bay", Blocks: 8},
			{Name: "Two Bay", Blocks: 16},
			{Name: "Three Bay", Blocks: 24},
		},
	}
}

// Clone returns a deep copy of p.
func (p Policy) Clone() Policy {
	c := p
	c.CrossLevelExcluded = append([]string(nil), p.CrossLevelExcluded...)
	c.CabinetTiers = append([]CabinetTier(nil), p.CabinetTiers...)
	return c
}

// Validate checks the policy for contract violations.
// Zero limits are accepted; negative, NaN or infinite values are not.
func (p *Policy) Validate() error {
	if p == nil {
		return errors.New(errors.ErrCodeInvalidPolicy, "policy is nil")
	}
	code := errors.ErrCodeInvalidPolicy
	for _, q := range []struct {
		field string
		v     float64
	}{
		{"current_limit_a", p.CurrentLimitA},
		{"ul_limit", p.ULLimit},
		{"supply_capacity_a", p.SupplyCapacityA},
		{"supervisory_current_per_level_a", p.SupervisoryCurrentPerLevelA},
		{"capacity_per_supply_a", p.CapacityPerSupplyA},
		{"consolidation_candidate_below", p.ConsolidationCandidateBelow},
		{"consolidation_max_utilization", p.ConsolidationMaxUtilization},
		{"cross_level_candidate_below", p.CrossLevelCandidateBelow},
	} {
		if err := errors.ValidateQuantity(code, q.field, q.v); err != nil {
			return err
		}
	}
	if err := errors.ValidateFraction(code, "spare_fraction", p.SpareFraction); err != nil {
		return err
	}
	for _, n := range []struct {
		field string
		v     int
	}{
		{"max_devices_per_circuit", p.MaxDevicesPerCircuit},
		{"strategy_threshold", p.StrategyThreshold},
		{"max_balance_passes", p.MaxBalancePasses},
		{"max_floor_distance", p.MaxFloorDistance},
		{"max_level_merge_distance", p.MaxLevelMergeDistance},
		{"max_branches_per_supply", p.MaxBranchesPerSupply},
		{"large_detection_threshold", p.LargeDetectionThreshold},
	} {
		if n.v < 0 {
			return errors.New(code, "%s must be >= 0, got %d", n.field, n.v)
		}
	}
	if _, err := ParseStrategy(string(p.Strategy)); err != nil {
		return err
	}
	if len(p.CabinetTiers) == 0 {
		return errors.New(code, "at least one cabinet tier is required")
	}
	for i, t := range p.CabinetTiers {
		if strings.TrimSpace(t.Name) == "" {
			return errors.New(code, "cabinet tier %d has no name", i)
		}
		if t.Blocks <= 0 {
			return errors.New(code, "cabinet tier %q must have a positive block count", t.Name)
		}
		if i > 0 && t.Blocks < p.CabinetTiers[i-1].Blocks {
			return errors.New(code, "cabinet tiers must be ordered by ascending block count")
		}
	}
	return nil
}

// =============================================================================
// Limits
// =============================================================================

// Limits is a set of per-circuit limits. Devices == 0 means unlimited.
type Limits struct {
	CurrentA  float64
	UnitLoads float64
	Devices   int
}

// Fits reports whether the given totals are within l.
func (l Limits) Fits(currentA, unitLoads float64, devices int) bool {
	if !Within(currentA, l.CurrentA) || !Within(unitLoads, l.UnitLoads) {
		return false
	}
	return l.Devices == 0 || devices <= l.Devices
}

// Utilization returns max(current/limit, UL/limit) as a fraction.
// A zero limit with a non-zero load counts as infinitely utilized.
func (l Limits) Utilization(currentA, unitLoads float64) float64 {
	return math.Max(ratio(currentA, l.CurrentA), ratio(unitLoads, l.UnitLoads))
}

// MaxPercent caps reported utilization percentages so that degenerate
// zero-capacity policies still serialize.
const MaxPercent = 9999.0

// Percent converts a utilization fraction to a percentage capped at [MaxPercent].
func Percent(fraction float64) float64 {
	return math.Min(fraction*100, MaxPercent)
}

func ratio(v, limit float64) float64 {
	if limit <= 0 {
		if v <= 0 {
			return 0
		}
		return math.Inf(1)
	}
	return v / limit
}

// String formats the limits for log output.
func (l Limits) String() string {
	if l.Devices > 0 {
		return fmt.Sprintf("%.2fA/%.0fUL/%d devices", l.CurrentA, l.UnitLoads, l.Devices)
	}
	return fmt.Sprintf("%.2fA/%.0fUL", l.CurrentA, l.UnitLoads)
}

// Hard returns the hard per-circuit limits.
func (p Policy) Hard() Limits {
	return Limits{CurrentA: p.CurrentLimitA, UnitLoads: p.ULLimit, Devices: p.MaxDevicesPerCircuit}
}

// Usable returns the per-circuit limits after applying the spare fraction
// to the constraints it is enforced on.
func (p Policy) Usable() Limits {
	l := p.Hard()
	if p.EnforceSpareOnCurrent {
		l.CurrentA *= 1 - p.SpareFraction
	}
	if p.EnforceSpareOnUL {
		l.UnitLoads *= 1 - p.SpareFraction
	}
	return l
}

// UsableSupplyA returns the usable power supply capacity.
func (p Policy) UsableSupplyA() float64 {
	return p.SupplyCapacityA * (1 - p.SpareFraction)
}

// CabinetCapacityA returns the per-supply capacity used for cabinet power
// margins, falling back to SupplyCapacityA.
func (p Policy) CabinetCapacityA() float64 {
	if p.CapacityPerSupplyA > 0 {
		return p.CapacityPerSupplyA
	}
	return p.SupplyCapacityA
}

// CrossLevelExcludes reports whether category is excluded from cross-level merging.
func (p Policy) CrossLevelExcludes(category string) bool {
	for _, c := range p.CrossLevelExcluded {
		if strings.EqualFold(strings.TrimSpace(c), category) {
			return true
		}
	}
	return false
}
