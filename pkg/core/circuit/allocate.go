package circuit

import (
	"context"
	"slices"
	"strings"

	"github.com/matzehuels/nacplan/pkg/core/device"
	"github.com/matzehuels/nacplan/pkg/core/level"
	"github.com/matzehuels/nacplan/pkg/core/network"
	"github.com/matzehuels/nacplan/pkg/errors"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// Allocation is the result of allocating one level.
type Allocation struct {
	Level string
	// Branches lists the branches that received devices from this level,
	// oversize branches included.
	Branches []network.BranchID
	// Strategy is the packer that produced the result (never auto).
	Strategy policy.Strategy
	// Oversize lists the branches holding a device above a hard limit.
	Oversize []network.BranchID
	Island   bool
	Domain   string
	// Reused counts branches of the shared domain that took devices from this level.
	Reused int
}

// Balanceable returns the non-oversize branches of the allocation.
func (a Allocation) Balanceable() []network.BranchID {
	out := make([]network.BranchID, 0, len(a.Branches))
	for _, b := range a.Branches {
		if !slices.Contains(a.Oversize, b) {
			out = append(out, b)
		}
	}
	return out
}

// Allocator packs levels into branches of a shared network.
type Allocator struct {
	net    *network.Network
	pol    policy.Policy
	hard   policy.Limits
	usable policy.Limits
	// shared tracks the branches of each building-wide domain.
	shared map[string][]network.BranchID
}

// NewAllocator returns an allocator writing into net. The policy is copied.
func NewAllocator(net *network.Network, p policy.Policy) *Allocator {
	return &Allocator{
		net:    net,
		pol:    p.Clone(),
		hard:   p.Hard(),
		usable: p.Usable(),
		shared: make(map[string][]network.BranchID),
	}
}

// Allocate packs the devices of lvl into branches. It returns ctx.Err() if
// ctx is done before any work starts.
func (a *Allocator) Allocate(ctx context.Context, lvl *level.Data) (Allocation, error) {
	if err := ctx.Err(); err != nil {
		return Allocation{}, err
	}
	if lvl == nil {
		return Allocation{}, errors.New(errors.ErrCodeInvalidLevel, "level is nil")
	}

	island := IsIsland(lvl, a.pol)
	res := Allocation{Level: lvl.Name, Island: island, Domain: a.domain(lvl, island)}

	loads := append([]device.Load(nil), lvl.Devices...)
	device.SortForWiring(loads)

	var regular, oversize []item
	for i, l := range loads {
		id := a.net.AddDevice(l, lvl.Name, string(lvl.Category), lvl.SortKey, lvl.Combined)
		it := item{dev: id, load: l, order: i}
		if a.exceedsHard(l) {
			oversize = append(oversize, it)
			continue
		}
		regular = append(regular, it)
	}

	seed := a.seed(res.Domain, island)
	var p packing
	switch a.pol.Strategy {
	case policy.StrategyAuto, "":
		p = choose(regular, seed, a.usable, a.pol.StrategyThreshold)
	default:
		p = pack(a.pol.Strategy, regular, seed, a.usable)
	}
	res.Strategy = p.strategy

	for _, b := range p.bins {
		id, skip := b.existing, 0
		if id >= 0 {
			// Seeded bins start with the devices already on the branch.
			skip = a.seedDevices(seed, id)
			if len(b.items) == skip {
				continue
			}
			res.Reused++
		} else {
			if len(b.items) == 0 {
				continue
			}
			id = a.net.NewBranch(res.Domain)
			a.net.Branch(id).Island = island
			if a.isShared(res.Domain) {
				a.shared[res.Domain] = append(a.shared[res.Domain], id)
			}
		}
		for _, it := range b.items[skip:] {
			if err := a.net.Append(id, it.dev); err != nil {
				return Allocation{}, err
			}
		}
		res.Branches = append(res.Branches, id)
	}

	for _, it := range oversize {
		id := a.net.NewBranch(res.Domain)
		br := a.net.Branch(id)
		br.Oversize = true
		br.Island = island
		if err := a.net.Append(id, it.dev); err != nil {
			return Allocation{}, err
		}
		res.Branches = append(res.Branches, id)
		res.Oversize = append(res.Oversize, id)
	}
	return res, nil
}

// exceedsHard reports whether a single device is above a hard limit.
func (a *Allocator) exceedsHard(l device.Load) bool {
	return !policy.Within(l.CurrentA, a.hard.CurrentA) || !policy.Within(float64(l.UnitLoads), a.hard.UnitLoads)
}

// domain names the capacity domain of lvl.
func (a *Allocator) domain(lvl *level.Data, island bool) string {
	switch {
	case island:
		return "island:" + lvl.Name
	case a.pol.ShareAcrossLevels:
		return "shared:" + string(lvl.Category)
	default:
		return "level:" + lvl.Name
	}
}

func (a *Allocator) isShared(domain string) bool {
	return strings.HasPrefix(domain, "shared:")
}

// seed returns bins for the existing branches of a shared domain, so that a
// level continues filling branches left partially used by earlier levels.
// Islands always start from an empty domain.
func (a *Allocator) seed(domain string, island bool) []*bin {
	if island || !a.isShared(domain) {
		return nil
	}
	var bins []*bin
	for _, id := range a.shared[domain] {
		br := a.net.Branch(id)
		if len(br.Devices) == 0 || a.net.Frozen(id) {
			continue
		}
		b := &bin{existing: id}
		for _, d := range br.Devices {
			b.add(item{dev: d, load: a.net.Device(d).Load, order: -1})
		}
		bins = append(bins, b)
	}
	return bins
}

func (a *Allocator) seedDevices(seed []*bin, id network.BranchID) int {
	for _, b := range seed {
		if b.existing == id {
			return len(b.items)
		}
	}
	return 0
}

