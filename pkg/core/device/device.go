// Package device defines the electrical load records nacplan sizes circuits for.
//
// A [Load] is an immutable input record produced by an upstream extractor
// (the host CAD model export). The planner never mutates loads; it refers to
// them by index once they enter a [github.com/matzehuels/nacplan/pkg/core/network.Network].
package device

import (
	"cmp"
	"slices"

	"github.com/matzehuels/nacplan/pkg/errors"
)

// Load is one notification appliance (speaker, strobe, horn) or a network
// element (isolator, repeater) with its electrical characteristics.
type Load struct {
	ID     string  `json:"id" bson:"id"`
	Level  string  `json:"level" bson:"level"`
	Zone   string  `json:"zone,omitempty" bson:"zone,omitempty"`
	Family string  `json:"family,omitempty" bson:"family,omitempty"`
	X      float64 `json:"x" bson:"x"`
	Y      float64 `json:"y" bson:"y"`
	Z      float64 `json:"z" bson:"z"`

	CurrentA  float64 `json:"current_a" bson:"current_a"`
	StandbyA  float64 `json:"standby_a" bson:"standby_a"`
	UnitLoads int     `json:"unit_loads" bson:"unit_loads"`
	WattageW  float64 `json:"wattage_w" bson:"wattage_w"`

	HasStrobe  bool `json:"has_strobe,omitempty" bson:"has_strobe,omitempty"`
	HasSpeaker bool `json:"has_speaker,omitempty" bson:"has_speaker,omitempty"`
	IsIsolator bool `json:"is_isolator,omitempty" bson:"is_isolator,omitempty"`
	IsRepeater bool `json:"is_repeater,omitempty" bson:"is_repeater,omitempty"`
}

// Score is the load score used to order devices for the decreasing and
// increasing packers: current*100 + unit loads. It only orders devices;
// acceptance always checks each constraint separately.
func (l Load) Score() float64 {
	return l.CurrentA*100 + float64(l.UnitLoads)
}

// Validate checks that l can be planned.
func (l Load) Validate() error {
	if err := errors.ValidateDeviceID(l.ID); err != nil {
		return err
	}
	if err := errors.ValidateLevelName(l.Level); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidDevice, err, "device %s", l.ID)
	}
	code := errors.ErrCodeInvalidDevice
	if err := errors.ValidateQuantity(code, "current_a", l.CurrentA); err != nil {
		return errors.Wrap(code, err, "device %s", l.ID)
	}
	if err := errors.ValidateQuantity(code, "standby_a", l.StandbyA); err != nil {
		return errors.Wrap(code, err, "device %s", l.ID)
	}
	if err := errors.ValidateQuantity(code, "wattage_w", l.WattageW); err != nil {
		return errors.Wrap(code, err, "device %s", l.ID)
	}
	if l.UnitLoads < 0 {
		return errors.New(code, "device %s: unit_loads must be >= 0, got %d", l.ID, l.UnitLoads)
	}
	return nil
}

// CompareWiring orders two loads along a wiring run: zone, then x, then y,
// then id so that the order is total.
func CompareWiring(a, b Load) int {
	return cmp.Or(
		cmp.Compare(a.Zone, b.Zone),
		cmp.Compare(a.X, b.X),
		cmp.Compare(a.Y, b.Y),
		cmp.Compare(a.ID, b.ID),
	)
}

// SortForWiring sorts loads in place by [CompareWiring].
func SortForWiring(loads []Load) {
	slices.SortStableFunc(loads, CompareWiring)
}

// Split separates valid loads from invalid ones. Invalid loads are returned
// with the validation error that rejected them, in input order.
func Split(loads []Load) (valid []Load, rejected []Rejected) {
	valid = make([]Load, 0, len(loads))
	seen := make(map[string]bool, len(loads))
	for _, l := range loads {
		if err := l.Validate(); err != nil {
			rejected = append(rejected, Rejected{Load: l, Err: err})
			continue
		}
		if seen[l.ID] {
			rejected = append(rejected, Rejected{Load: l, Err: errors.New(errors.ErrCodeInvalidDevice, "duplicate device id %q", l.ID)})
			continue
		}
		seen[l.ID] = true
		valid = append(valid, l)
	}
	return valid, rejected
}

// Rejected is an input load that failed validation.
type Rejected struct {
	Load Load
	Err  error
}
