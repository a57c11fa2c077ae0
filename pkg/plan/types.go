package plan

import (
	"time"

	"github.com/matzehuels/nacplan/pkg/core/cabinet"
	"github.com/matzehuels/nacplan/pkg/core/level"
	"github.com/matzehuels/nacplan/pkg/core/validate"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// Plan is a complete sizing result.
type Plan struct {
	ID        string    `json:"id,omitempty" bson:"_id"`
	Name      string    `json:"name,omitempty" bson:"name,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero" bson:"created_at"`
	// InputHash identifies the devices and options the plan was built from.
	InputHash string `json:"input_hash,omitempty" bson:"input_hash,omitempty"`

	Policy        policy.Policy         `json:"policy" bson:"policy"`
	Levels        []Level               `json:"levels" bson:"levels"`
	Consolidation Consolidation         `json:"consolidation" bson:"consolidation"`
	Branches      []Branch              `json:"branches" bson:"branches"`
	Supplies      []Supply              `json:"supplies" bson:"supplies"`
	Cabinet       cabinet.Configuration `json:"cabinet" bson:"cabinet"`
	Diagnostics   []validate.Diagnostic `json:"diagnostics" bson:"diagnostics"`
	Summary       validate.Summary      `json:"summary" bson:"summary"`
	Stats         Stats                 `json:"stats" bson:"stats"`
}

// Level is one allocated level group.
type Level struct {
	Name              string         `json:"name" bson:"name"`
	Category          string         `json:"category" bson:"category"`
	SortKey           int            `json:"sort_key" bson:"sort_key"`
	Devices           int            `json:"devices" bson:"devices"`
	CurrentA          float64        `json:"current_a" bson:"current_a"`
	StandbyA          float64        `json:"standby_a" bson:"standby_a"`
	WattageW          float64        `json:"wattage_w" bson:"wattage_w"`
	UnitLoads         int            `json:"unit_loads" bson:"unit_loads"`
	Families          map[string]int `json:"families,omitempty" bson:"families,omitempty"`
	Combined          bool           `json:"combined,omitempty" bson:"combined,omitempty"`
	OriginalFloors    []string       `json:"original_floors,omitempty" bson:"original_floors,omitempty"`
	RequiresIsolators bool           `json:"requires_isolators,omitempty" bson:"requires_isolators,omitempty"`
	HasRepeater       bool           `json:"has_repeater,omitempty" bson:"has_repeater,omitempty"`
	Utilization       float64        `json:"utilization" bson:"utilization"`
	Strategy          string         `json:"strategy,omitempty" bson:"strategy,omitempty"`
	Branches          int            `json:"branches" bson:"branches"`
}

// Consolidation summarizes floor consolidation.
type Consolidation struct {
	Before           int           `json:"before" bson:"before"`
	After            int           `json:"after" bson:"after"`
	ReductionPercent float64       `json:"reduction_percent" bson:"reduction_percent"`
	Merges           []level.Merge `json:"merges,omitempty" bson:"merges,omitempty"`
}

// Branch is one notification circuit.
type Branch struct {
	Label             string   `json:"label" bson:"label"`
	Number            int      `json:"number" bson:"number"`
	Level             string   `json:"level" bson:"level"`
	Category          string   `json:"category" bson:"category"`
	Supply            string   `json:"supply,omitempty" bson:"supply,omitempty"`
	CurrentA          float64  `json:"current_a" bson:"current_a"`
	StandbyA          float64  `json:"standby_a" bson:"standby_a"`
	WattageW          float64  `json:"wattage_w" bson:"wattage_w"`
	UnitLoads         int      `json:"unit_loads" bson:"unit_loads"`
	Devices           []string `json:"devices" bson:"devices"`
	Isolators         int      `json:"isolators,omitempty" bson:"isolators,omitempty"`
	Utilization       float64  `json:"utilization" bson:"utilization"`
	Oversize          bool     `json:"oversize,omitempty" bson:"oversize,omitempty"`
	Island            bool     `json:"island,omitempty" bson:"island,omitempty"`
	Merged            bool     `json:"merged,omitempty" bson:"merged,omitempty"`
	Combined          bool     `json:"combined,omitempty" bson:"combined,omitempty"`
	RequiresIsolators bool     `json:"requires_isolators,omitempty" bson:"requires_isolators,omitempty"`
	Domain            string   `json:"domain,omitempty" bson:"domain,omitempty"`
}

// Supply is one power supply.
type Supply struct {
	Label       string   `json:"label" bson:"label"`
	Number      int      `json:"number" bson:"number"`
	Branches    []string `json:"branches" bson:"branches"`
	Levels      []string `json:"levels" bson:"levels"`
	BranchA     float64  `json:"branch_a" bson:"branch_a"`
	ReservedA   float64  `json:"reserved_a" bson:"reserved_a"`
	TotalA      float64  `json:"total_a" bson:"total_a"`
	StandbyA    float64  `json:"standby_a" bson:"standby_a"`
	CapacityA   float64  `json:"capacity_a" bson:"capacity_a"`
	UsableA     float64  `json:"usable_a" bson:"usable_a"`
	MaxBranches int      `json:"max_branches" bson:"max_branches"`
	Utilization float64  `json:"utilization" bson:"utilization"`
}

// Stats holds plan-wide counters.
type Stats struct {
	Devices          int     `json:"devices" bson:"devices"`
	Skipped          int     `json:"skipped" bson:"skipped"`
	Excluded         int     `json:"excluded" bson:"excluded"`
	UnknownDevices   int     `json:"unknown_devices" bson:"unknown_devices"`
	Levels           int     `json:"levels" bson:"levels"`
	Branches         int     `json:"branches" bson:"branches"`
	Supplies         int     `json:"supplies" bson:"supplies"`
	Oversize         int     `json:"oversize" bson:"oversize"`
	Islands          int     `json:"islands" bson:"islands"`
	BalancePasses    int     `json:"balance_passes" bson:"balance_passes"`
	BalanceMoves     int     `json:"balance_moves" bson:"balance_moves"`
	CrossLevelMerges int     `json:"cross_level_merges" bson:"cross_level_merges"`
	TotalCurrentA    float64 `json:"total_current_a" bson:"total_current_a"`
	TotalStandbyA    float64 `json:"total_standby_a" bson:"total_standby_a"`
	TotalUnitLoads   int     `json:"total_unit_loads" bson:"total_unit_loads"`
	ReservedA        float64 `json:"reserved_a" bson:"reserved_a"`
}

// Summary is a short listing entry for stored plans.
type Summary struct {
	ID        string           `json:"id" bson:"_id"`
	Name      string           `json:"name,omitempty" bson:"name,omitempty"`
	CreatedAt time.Time        `json:"created_at" bson:"created_at"`
	Branches  int              `json:"branches" bson:"branches"`
	Supplies  int              `json:"supplies" bson:"supplies"`
	Cabinet   string           `json:"cabinet" bson:"cabinet"`
	Summary   validate.Summary `json:"summary" bson:"summary"`
}

// Summarize returns the listing entry for p.
func (p *Plan) Summarize() Summary {
	return Summary{
		ID:        p.ID,
		Name:      p.Name,
		CreatedAt: p.CreatedAt,
		Branches:  len(p.Branches),
		Supplies:  len(p.Supplies),
		Cabinet:   p.Cabinet.Tier,
		Summary:   p.Summary,
	}
}

// Branch returns the branch with the given label.
func (p *Plan) Branch(label string) (Branch, bool) {
	for _, b := range p.Branches {
		if b.Label == label {
			return b, true
		}
	}
	return Branch{}, false
}

// BranchesOf returns the branches placed in the supply with the given label.
func (p *Plan) BranchesOf(supply string) []Branch {
	var out []Branch
	for _, b := range p.Branches {
		if b.Supply == supply {
			out = append(out, b)
		}
	}
	return out
}
