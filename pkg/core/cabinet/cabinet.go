// Package cabinet sizes the equipment cabinet that houses the power supplies,
// circuit modules and amplifiers of a plan.
package cabinet

import (
	"github.com/matzehuels/nacplan/pkg/errors"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// CircuitsPerBlock is the number of notification circuits one module block
// drives.
const CircuitsPerBlock = 3

// BatteryChargerThreshold is the utilization below which the supplies have
// headroom for a battery charger.
const BatteryChargerThreshold = 0.80

// Input collects the totals the sizer needs.
type Input struct {
	CircuitCount     int
	SupplyCount      int
	AmplifierBlocks  int
	DetectionDevices int
	TotalCurrentA    float64
}

// Demand breaks down the block demand.
type Demand struct {
	AmplifierBlocks int `json:"amplifier_blocks" bson:"amplifier_blocks"`
	CircuitBlocks   int `json:"circuit_blocks" bson:"circuit_blocks"`
	ReservedBlocks  int `json:"reserved_blocks" bson:"reserved_blocks"`
	Total           int `json:"total" bson:"total"`
}

// Configuration is the selected cabinet.
type Configuration struct {
	Tier            string  `json:"tier" bson:"tier"`
	AvailableBlocks int     `json:"available_blocks" bson:"available_blocks"`
	UsedBlocks      int     `json:"used_blocks" bson:"used_blocks"`
	RemainingBlocks int     `json:"remaining_blocks" bson:"remaining_blocks"`
	Demand          Demand  `json:"demand" bson:"demand"`
	SupplyCount     int     `json:"supply_count" bson:"supply_count"`
	CapacityA       float64 `json:"capacity_a" bson:"capacity_a"`
	TotalCurrentA   float64 `json:"total_current_a" bson:"total_current_a"`
	PowerMarginA    float64 `json:"power_margin_a" bson:"power_margin_a"`
	// Utilization is total current over capacity, in percent.
	Utilization             float64 `json:"utilization" bson:"utilization"`
	BatteryChargerAvailable bool    `json:"battery_charger_available" bson:"battery_charger_available"`
	// Sufficient is false when even the largest tier cannot hold the demand.
	Sufficient bool `json:"sufficient" bson:"sufficient"`
}

// BlockDemand computes the block demand for in under p.
func BlockDemand(in Input, p policy.Policy) Demand {
	d := Demand{
		AmplifierBlocks: in.AmplifierBlocks,
		CircuitBlocks:   (in.CircuitCount + CircuitsPerBlock - 1) / CircuitsPerBlock,
	}
	if p.LargeDetectionThreshold > 0 && in.DetectionDevices > p.LargeDetectionThreshold {
		d.ReservedBlocks = 1
	}
	d.Total = d.AmplifierBlocks + d.CircuitBlocks + d.ReservedBlocks
	return d
}

// Size selects the smallest cabinet tier whose block budget covers the
// demand. When no tier does, the largest tier is returned with Sufficient
// set to false.
func Size(in Input, p policy.Policy) (Configuration, error) {
	if in.CircuitCount < 0 || in.SupplyCount < 0 || in.AmplifierBlocks < 0 || in.DetectionDevices < 0 {
		return Configuration{}, errors.New(errors.ErrCodeInvalidInput, "cabinet input counts must be >= 0")
	}
	if err := errors.ValidateQuantity(errors.ErrCodeInvalidInput, "total_current_a", in.TotalCurrentA); err != nil {
		return Configuration{}, err
	}
	if len(p.CabinetTiers) == 0 {
		return Configuration{}, errors.New(errors.ErrCodeInvalidPolicy, "no cabinet tiers configured")
	}

	demand := BlockDemand(in, p)
	tier := p.CabinetTiers[len(p.CabinetTiers)-1]
	sufficient := false
	for _, t := range p.CabinetTiers {
		if t.Blocks >= demand.Total {
			tier, sufficient = t, true
			break
		}
	}

	capacity := p.CabinetCapacityA() * float64(in.SupplyCount)
	cfg := Configuration{
		Tier:            tier.Name,
		AvailableBlocks: tier.Blocks,
		UsedBlocks:      demand.Total,
		RemainingBlocks: tier.Blocks - demand.Total,
		Demand:          demand,
		SupplyCount:     in.SupplyCount,
		CapacityA:       capacity,
		TotalCurrentA:   in.TotalCurrentA,
		PowerMarginA:    capacity - in.TotalCurrentA,
		Sufficient:      sufficient,
	}
	if capacity > 0 {
		cfg.Utilization = policy.Percent(in.TotalCurrentA / capacity)
		cfg.BatteryChargerAvailable = in.TotalCurrentA < BatteryChargerThreshold*capacity
	}
	return cfg, nil
}
