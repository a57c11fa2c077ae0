package pipeline

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/nacplan/pkg/core/cabinet"
	"github.com/matzehuels/nacplan/pkg/core/circuit"
	"github.com/matzehuels/nacplan/pkg/core/device"
	"github.com/matzehuels/nacplan/pkg/core/level"
	"github.com/matzehuels/nacplan/pkg/core/network"
	"github.com/matzehuels/nacplan/pkg/core/supply"
	"github.com/matzehuels/nacplan/pkg/core/validate"
	"github.com/matzehuels/nacplan/pkg/observability"
	"github.com/matzehuels/nacplan/pkg/plan"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// Stage names reported to observability hooks.
const (
	StageGroup       = "group"
	StageConsolidate = "consolidate"
	StageAllocate    = "allocate"
	StageBalance     = "balance"
	StageCrossLevel  = "cross-level"
	StageSupply      = "supply"
	StageCabinet     = "cabinet"
	StageValidate    = "validate"
)

// Build runs every planning stage over devices and returns the plan.
//
// Invalid devices are skipped and reported, never fatal. Contract errors
// (missing or invalid policy, negative options) are returned before any work.
// A cancelled context aborts the run and its error is returned as is.
func Build(ctx context.Context, devices []device.Load, opts Options) (*plan.Plan, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	p, err := build(ctx, devices, opts)

	var stats observability.PlanStats
	if p != nil {
		stats = observability.PlanStats{
			Devices:  p.Stats.Devices,
			Levels:   p.Stats.Levels,
			Branches: p.Stats.Branches,
			Supplies: p.Stats.Supplies,
			Errors:   p.Summary.Errors,
			Warnings: p.Summary.Warnings,
		}
	}
	observability.Pipeline().OnPlanComplete(ctx, stats, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// runStage times fn and reports it to the pipeline hooks.
func runStage(ctx context.Context, logger *log.Logger, name string, fn func() error) error {
	hooks := observability.Pipeline()
	hooks.OnStageStart(ctx, name)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)
	hooks.OnStageComplete(ctx, name, elapsed, err)
	if err != nil {
		logger.Debug("stage failed", "stage", name, "error", err)
	}
	return err
}

func build(ctx context.Context, devices []device.Load, opts Options) (*plan.Plan, error) {
	pol := opts.Policy.Clone()
	hard, usable := pol.Hard(), pol.Usable()
	logger := opts.Logger

	// Stage 1: Group
	var (
		valid    []device.Load
		rejected []device.Rejected
		grouping level.Grouping
	)
	_ = runStage(ctx, logger, StageGroup, func() error {
		valid, rejected = device.Split(devices)
		grouping = level.Group(valid, level.ExclusionsFromPolicy(pol), hard)
		return nil
	})
	logger.Info("grouped devices",
		"devices", len(valid),
		"skipped", len(rejected),
		"levels", len(grouping.Levels),
		"excluded", grouping.ExcludedTotal())

	// Stage 2: Consolidate
	var cons level.Consolidation
	_ = runStage(ctx, logger, StageConsolidate, func() error {
		if pol.ConsolidateFloors {
			cons = level.Consolidate(grouping.Levels, hard, level.ConsolidateOptionsFromPolicy(pol))
		} else {
			cons = level.Identity(grouping.Levels)
		}
		return nil
	})
	logger.Info("consolidated floors",
		"before", cons.Before,
		"after", cons.After,
		"merges", len(cons.Merges))

	levels := circuit.MarkIslands(cons.Levels, pol)
	var islands []string
	for _, l := range levels {
		if circuit.IsIsland(l, pol) {
			islands = append(islands, l.Name)
		}
	}

	// Stage 3: Allocate
	net := network.New()
	allocator := circuit.NewAllocator(net, pol)
	allocations := make([]circuit.Allocation, 0, len(levels))
	strategies := make(map[string]policy.Strategy, len(levels))
	err := runStage(ctx, logger, StageAllocate, func() error {
		for _, lvl := range levels {
			a, err := allocator.Allocate(ctx, lvl)
			if err != nil {
				return err
			}
			allocations = append(allocations, a)
			strategies[lvl.Name] = a.Strategy
			logger.Debug("allocated level",
				"level", lvl.Name,
				"strategy", a.Strategy,
				"branches", len(a.Branches),
				"oversize", len(a.Oversize),
				"reused", a.Reused)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("allocated circuits", "branches", len(net.Branches), "islands", len(islands))

	// Stage 4: Balance
	var (
		passes, moves int
		unconverged   []string
	)
	err = runStage(ctx, logger, StageBalance, func() error {
		for _, a := range allocations {
			res, err := circuit.Balance(ctx, net, a.Balanceable(), usable, pol.MaxBalancePasses)
			if err != nil {
				return err
			}
			passes += res.Passes
			moves += res.Moves
			if !res.Converged {
				unconverged = append(unconverged, a.Level)
			}
			if res.Moves > 0 {
				logger.Debug("balanced level",
					"level", a.Level,
					"passes", res.Passes,
					"moves", res.Moves,
					"variance_before", res.InitialVariance,
					"variance_after", res.FinalVariance)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Info("balanced circuits", "passes", passes, "moves", moves, "unconverged", len(unconverged))

	// Stage 5: Cross-level merge
	var cross circuit.CrossLevelResult
	if pol.CrossLevelMerge {
		err = runStage(ctx, logger, StageCrossLevel, func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			cross, err = circuit.MergeAcrossLevels(net, hard, circuit.CrossLevelOptionsFromPolicy(pol))
			return err
		})
		if err != nil {
			return nil, err
		}
		logger.Info("merged across levels",
			"candidates", cross.Candidates,
			"merges", len(cross.Merges),
			"removed", cross.Removed)
	}
	net.Number()

	// Stage 6: Power supplies
	var organized supply.Result
	err = runStage(ctx, logger, StageSupply, func() error {
		var err error
		organized, err = supply.Organize(ctx, net, pol, opts.AuxLoads)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("organized power supplies",
		"supplies", len(organized.Supplies),
		"reserved_a", organized.ReservedA)

	// Stage 7: Cabinet
	var cab cabinet.Configuration
	err = runStage(ctx, logger, StageCabinet, func() error {
		var total float64
		for i := range net.Supplies {
			total += net.SupplyCurrentA(network.SupplyID(i))
		}
		var err error
		cab, err = cabinet.Size(cabinet.Input{
			CircuitCount:     len(net.Branches),
			SupplyCount:      len(net.Supplies),
			AmplifierBlocks:  supply.TotalBlocks(opts.AuxLoads),
			DetectionDevices: opts.DetectionDevices,
			TotalCurrentA:    total,
		}, pol)
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("sized cabinet", "tier", cab.Tier, "blocks", cab.UsedBlocks, "sufficient", cab.Sufficient)

	if err := net.Verify(); err != nil {
		return nil, err
	}

	// Stage 8: Validate
	var report validate.Report
	err = runStage(ctx, logger, StageValidate, func() error {
		var err error
		report, err = validate.Run(validate.Input{
			Network:        net,
			Policy:         pol,
			Cabinet:        &cab,
			VoltageDrops:   opts.VoltageDrops,
			Skipped:        rejected,
			Excluded:       grouping.Excluded,
			UnknownDevices: grouping.UnknownDevices,
			Merges:         cons.Merges,
			CrossLevel:     cross.Merges,
			Islands:        islands,
			Unconverged:    unconverged,
			UnmatchedAux:   organized.Unmatched,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	logger.Info("validated plan",
		"errors", report.Summary.Errors,
		"warnings", report.Summary.Warnings,
		"recommendations", report.Summary.Recommendations)

	p := plan.Export(plan.Source{
		Network:       net,
		Policy:        pol,
		Levels:        levels,
		Strategies:    strategies,
		Consolidation: cons,
		Cabinet:       cab,
		Report:        report,
		Stats: plan.Stats{
			Skipped:          len(rejected),
			Excluded:         grouping.ExcludedTotal(),
			UnknownDevices:   grouping.UnknownDevices,
			Islands:          len(islands),
			BalancePasses:    passes,
			BalanceMoves:     moves,
			CrossLevelMerges: len(cross.Merges),
		},
	})
	p.Name = opts.Name
	return p, nil
}
