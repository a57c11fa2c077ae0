package plan

import (
	"github.com/matzehuels/nacplan/pkg/core/cabinet"
	"github.com/matzehuels/nacplan/pkg/core/level"
	"github.com/matzehuels/nacplan/pkg/core/network"
	"github.com/matzehuels/nacplan/pkg/core/validate"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// Source is everything [Export] reads.
type Source struct {
	Network       *network.Network
	Policy        policy.Policy
	Levels        []*level.Data
	Strategies    map[string]policy.Strategy
	Consolidation level.Consolidation
	Cabinet       cabinet.Configuration
	Report        validate.Report
	// Stats carries the counters the network cannot derive (skipped,
	// excluded, balancing); Export fills in the rest.
	Stats Stats
}

// Export converts a finished run into a [Plan]. ID, Name, CreatedAt and
// InputHash are left for the caller.
func Export(src Source) *Plan {
	net := src.Network
	hard := src.Policy.Hard()

	p := &Plan{
		Policy:   src.Policy.Clone(),
		Levels:   []Level{},
		Branches: []Branch{},
		Supplies: []Supply{},
		Consolidation: Consolidation{
			Before:           src.Consolidation.Before,
			After:            src.Consolidation.After,
			ReductionPercent: src.Consolidation.ReductionPercent,
			Merges:           src.Consolidation.Merges,
		},
		Cabinet:     src.Cabinet,
		Diagnostics: src.Report.Diagnostics,
		Summary:     src.Report.Summary,
		Stats:       src.Stats,
	}
	if p.Diagnostics == nil {
		p.Diagnostics = []validate.Diagnostic{}
	}

	branchesPerLevel := make(map[string]int)
	for i := range net.Branches {
		id := network.BranchID(i)
		b := net.Branch(id)
		t := net.Totals(id)
		levels := net.Levels(id)
		for _, l := range levels {
			branchesPerLevel[l]++
		}
		out := Branch{
			Label:             b.Label(),
			Number:            b.Number,
			Level:             net.LevelName(id),
			Category:          net.Category(id),
			CurrentA:          t.CurrentA,
			StandbyA:          t.StandbyA,
			WattageW:          t.WattageW,
			UnitLoads:         int(t.UnitLoads),
			Devices:           make([]string, 0, len(b.Devices)),
			Isolators:         t.Isolators,
			Utilization:       policy.Percent(t.Utilization(hard)),
			Oversize:          b.Oversize,
			Island:            b.Island,
			Merged:            b.Merged,
			Combined:          net.Combined(id),
			RequiresIsolators: net.RequiresIsolators(id),
			Domain:            b.Domain,
		}
		if b.Supply != network.Unassigned {
			out.Supply = net.Supply(b.Supply).Label()
		}
		for _, d := range b.Devices {
			out.Devices = append(out.Devices, net.Device(d).Load.ID)
		}
		if b.Oversize {
			p.Stats.Oversize++
		}
		p.Stats.TotalCurrentA += t.CurrentA
		p.Stats.TotalStandbyA += t.StandbyA
		p.Stats.TotalUnitLoads += int(t.UnitLoads)
		p.Branches = append(p.Branches, out)
	}

	for i := range net.Supplies {
		id := network.SupplyID(i)
		s := net.Supply(id)
		total := net.SupplyCurrentA(id)
		out := Supply{
			Label:       s.Label(),
			Number:      s.Number,
			Branches:    make([]string, 0, len(s.Branches)),
			Levels:      append([]string{}, s.Levels...),
			BranchA:     total - s.ReservedA,
			ReservedA:   s.ReservedA,
			TotalA:      total,
			StandbyA:    net.SupplyStandbyA(id),
			CapacityA:   s.CapacityA,
			UsableA:     s.UsableA(),
			MaxBranches: s.MaxBranches,
		}
		if s.CapacityA > 0 {
			out.Utilization = policy.Percent(total / s.CapacityA)
		}
		for _, b := range s.Branches {
			out.Branches = append(out.Branches, net.Branch(b).Label())
		}
		p.Stats.ReservedA += s.ReservedA
		p.Supplies = append(p.Supplies, out)
	}

	for _, l := range src.Levels {
		p.Levels = append(p.Levels, Level{
			Name:              l.Name,
			Category:          string(l.Category),
			SortKey:           l.SortKey,
			Devices:           l.DeviceCount,
			CurrentA:          l.CurrentA,
			StandbyA:          l.StandbyA,
			WattageW:          l.WattageW,
			UnitLoads:         l.UnitLoads,
			Families:          l.Families,
			Combined:          l.Combined,
			OriginalFloors:    l.OriginalFloors,
			RequiresIsolators: l.RequiresIsolators,
			HasRepeater:       l.HasRepeater,
			Utilization:       l.Utilization,
			Strategy:          string(src.Strategies[l.Name]),
			Branches:          branchesPerLevel[l.Name],
		})
	}

	p.Stats.Devices = len(net.Devices)
	p.Stats.Levels = len(p.Levels)
	p.Stats.Branches = len(p.Branches)
	p.Stats.Supplies = len(p.Supplies)
	return p
}
