// Package supply packs notification circuits into power supplies.
//
// Branches are placed next-fit in descending current order. A supply accepts
// a branch while it has a free branch slot and its aggregate current, the
// branch plus the current reserved for levels it newly serves, stays within
// the usable supply capacity. Otherwise a new supply is opened. Repeater
// islands are packed apart from every other domain. An auxiliary load is
// reserved once, on the first supply serving each of its levels.
// Placement always completes: a branch that alone exceeds a supply still gets
// one, and validation reports it.
package supply

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/matzehuels/nacplan/pkg/core/network"
	"github.com/matzehuels/nacplan/pkg/errors"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// AuxLoad is an auxiliary load, typically an amplifier, powered from the
// supplies that serve its levels.
type AuxLoad struct {
	Name           string   `json:"name,omitempty" bson:"name,omitempty"`
	CurrentA       float64  `json:"current_a" bson:"current_a"`
	BlocksRequired int      `json:"blocks_required" bson:"blocks_required"`
	ServingLevels  []string `json:"serving_levels,omitempty" bson:"serving_levels,omitempty"`
}

// Validate checks a for contract violations.
func (a AuxLoad) Validate() error {
	if err := errors.ValidateQuantity(errors.ErrCodeInvalidInput, "aux current_a", a.CurrentA); err != nil {
		return err
	}
	if a.BlocksRequired < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "aux blocks_required must be >= 0, got %d", a.BlocksRequired)
	}
	return nil
}

// TotalBlocks sums the blocks required by aux.
func TotalBlocks(aux []AuxLoad) int {
	n := 0
	for _, a := range aux {
		n += a.BlocksRequired
	}
	return n
}

// Result reports what [Organize] did.
type Result struct {
	Supplies        []network.SupplyID
	UsableCapacityA float64
	ReservedA       float64
	// Unmatched names auxiliary loads whose serving levels were not found;
	// their current is reserved on the first supply.
	Unmatched []string
}

// Organize places every unplaced branch of net into power supplies.
func Organize(ctx context.Context, net *network.Network, p policy.Policy, aux []AuxLoad) (Result, error) {
	for _, a := range aux {
		if err := a.Validate(); err != nil {
			return Result{}, err
		}
	}

	res := Result{UsableCapacityA: p.UsableSupplyA()}
	perFloor, floating, unmatched := apportion(net, aux)
	res.Unmatched = unmatched

	order := make([]network.BranchID, 0, len(net.Branches))
	currents := make([]float64, len(net.Branches))
	for i := range net.Branches {
		id := network.BranchID(i)
		if net.Frozen(id) || len(net.Branch(id).Devices) == 0 {
			continue
		}
		currents[i] = net.Totals(id).CurrentA
		order = append(order, id)
	}
	slices.SortStableFunc(order, func(a, b network.BranchID) int {
		return cmp.Or(
			-cmp.Compare(currents[a], currents[b]),
			cmp.Compare(net.Branch(a).Number, net.Branch(b).Number),
			cmp.Compare(a, b),
		)
	})

	// Each capacity domain packs into its own supplies: repeater islands
	// never share a supply with another domain.
	open := make(map[string]*packState)
	// Auxiliary current is reserved once per floor, on the first supply
	// that serves it. Supervisory current is reserved per supply.
	powered := make(map[string]bool)

	for _, b := range order {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		key := supplyDomain(net.Branch(b))
		st, ok := open[key]
		if !ok {
			st = &packState{cur: network.Unassigned}
			open[key] = st
		}

		floors := floorsOf(net, b)
		need := currents[b]
		if st.cur != network.Unassigned {
			need += reserveFor(floors, st.served, powered, perFloor, p.SupervisoryCurrentPerLevelA)
		}
		if st.cur == network.Unassigned || !accepts(net.Supply(st.cur), st.load+need, p) {
			st.cur = net.NewSupply(p.MaxBranchesPerSupply, p.SupplyCapacityA, p.SpareFraction)
			st.load = 0
			st.served = make(map[string]bool)
			res.Supplies = append(res.Supplies, st.cur)
			if len(res.Supplies) == 1 && floating > 0 {
				net.Supply(st.cur).ReservedA += floating
				st.load += floating
			}
			need = currents[b] + reserveFor(floors, st.served, powered, perFloor, p.SupervisoryCurrentPerLevelA)
		}
		for _, f := range floors {
			st.served[f] = true
			powered[f] = true
		}
		net.Supply(st.cur).ReservedA += need - currents[b]
		st.load += need
		if err := net.Assign(b, st.cur); err != nil {
			return Result{}, err
		}
	}

	for _, s := range res.Supplies {
		res.ReservedA += net.Supply(s).ReservedA
	}
	return res, nil
}

func accepts(s *network.Supply, load float64, p policy.Policy) bool {
	if len(s.Branches) == 0 {
		return true
	}
	if s.MaxBranches > 0 && len(s.Branches) >= s.MaxBranches {
		return false
	}
	return policy.Within(load, p.UsableSupplyA())
}

// packState is the open supply of one capacity domain.
type packState struct {
	cur    network.SupplyID
	load   float64
	served map[string]bool
}

// supplyDomain returns the supply packing domain of b. Island branches pack
// per island; everything else shares one domain.
func supplyDomain(b *network.Branch) string {
	if b.Island {
		return b.Domain
	}
	return ""
}

// reserveFor returns the current to reserve when the open supply takes a
// branch on floors: the auxiliary share of floors no supply powers yet, and
// supervisory current for floors this supply does not serve yet.
func reserveFor(floors []string, served, powered map[string]bool, perFloor map[string]float64, supervisory float64) float64 {
	total := 0.0
	for _, f := range floors {
		if !powered[f] {
			total += perFloor[f]
		}
		if !served[f] {
			total += supervisory
		}
	}
	return total
}

// floorsOf returns the original floor names of branch b, splitting
// consolidated level names.
func floorsOf(net *network.Network, b network.BranchID) []string {
	var floors []string
	for _, lvl := range net.Levels(b) {
		for _, f := range strings.Split(lvl, " + ") {
			if !slices.Contains(floors, f) {
				floors = append(floors, f)
			}
		}
	}
	return floors
}

// apportion spreads each auxiliary load evenly over its serving levels.
// Loads without serving levels, or whose levels are not in the network,
// are returned as floating current.
func apportion(net *network.Network, aux []AuxLoad) (map[string]float64, float64, []string) {
	known := make(map[string]bool)
	for i := range net.Branches {
		for _, f := range floorsOf(net, network.BranchID(i)) {
			known[f] = true
		}
	}

	perFloor := make(map[string]float64)
	floating := 0.0
	var unmatched []string
	for i, a := range aux {
		var levels []string
		for _, l := range a.ServingLevels {
			if l = strings.TrimSpace(l); known[l] && !slices.Contains(levels, l) {
				levels = append(levels, l)
			}
		}
		if len(levels) == 0 {
			floating += a.CurrentA
			if len(a.ServingLevels) > 0 {
				unmatched = append(unmatched, auxName(a, i))
			}
			continue
		}
		share := a.CurrentA / float64(len(levels))
		for _, l := range levels {
			perFloor[l] += share
		}
	}
	return perFloor, floating, unmatched
}

func auxName(a AuxLoad, i int) string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("aux-%d", i+1)
}
