package validate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/matzehuels/nacplan/pkg/core/cabinet"
	"github.com/matzehuels/nacplan/pkg/core/circuit"
	"github.com/matzehuels/nacplan/pkg/core/device"
	"github.com/matzehuels/nacplan/pkg/core/level"
	"github.com/matzehuels/nacplan/pkg/core/network"
	"github.com/matzehuels/nacplan/pkg/errors"
	"github.com/matzehuels/nacplan/pkg/policy"
)

// VoltageDrop is a voltage-drop result computed outside nacplan for one
// branch. BranchID is the branch label ("NAC-001") or its number.
type VoltageDrop struct {
	BranchID     string  `json:"branch_id" bson:"branch_id"`
	DropPercent  float64 `json:"drop_percent" bson:"drop_percent"`
	LimitPercent float64 `json:"limit_percent" bson:"limit_percent"`
}

// Input is everything the checks look at. Only Network is required.
type Input struct {
	Network *network.Network
	Policy  policy.Policy
	Cabinet *cabinet.Configuration

	VoltageDrops []VoltageDrop
	Skipped      []device.Rejected

	Excluded       map[level.Category]int
	UnknownDevices int
	Merges         []level.Merge
	CrossLevel     []circuit.CrossLevelMerge
	Islands        []string
	// Unconverged lists levels whose balancing hit the pass cap.
	Unconverged  []string
	UnmatchedAux []string
}

// Run performs every structural check and returns the report.
func Run(in Input) (Report, error) {
	if in.Network == nil {
		return Report{}, errors.New(errors.ErrCodeInvalidInput, "validate: network is nil")
	}
	v := &validator{in: in, hard: in.Policy.Hard(), usable: in.Policy.Usable()}
	v.inputs()
	v.branches()
	v.supplies()
	v.cabinet()
	v.voltageDrops()
	v.notes()

	sortDiagnostics(v.diags)
	return Report{Diagnostics: v.diags, Summary: Summarize(v.diags)}, nil
}

type validator struct {
	in     Input
	hard   policy.Limits
	usable policy.Limits
	diags  []Diagnostic
}

func (v *validator) add(s Severity, code, subject, remediation, format string, args ...any) {
	v.diags = append(v.diags, Diagnostic{
		Severity:    s,
		Code:        code,
		Subject:     subject,
		Message:     fmt.Sprintf(format, args...),
		Remediation: remediation,
	})
}

func (v *validator) inputs() {
	for _, r := range v.in.Skipped {
		subject := r.Load.ID
		if subject == "" {
			subject = "(no id)"
		}
		v.add(SeverityError, CodeDeviceSkipped, subject,
			"Fix the device record in the model export and re-run.",
			"device skipped: %s", errors.UserMessage(r.Err))
	}
	if len(v.in.Network.Devices) == 0 {
		v.add(SeverityWarning, CodeNoDevices, "plan",
			"Check the level exclusions and the device export.",
			"no devices to plan")
	}
	if v.in.UnknownDevices > 0 {
		v.add(SeverityWarning, CodeLevelUnknown, level.UnknownName,
			"Assign a level to these devices in the model.",
			"%d device(s) have no level and were grouped under %q", v.in.UnknownDevices, level.UnknownName)
	}
}

func (v *validator) branches() {
	net := v.in.Network
	p := v.in.Policy
	for i := range net.Branches {
		b := net.Branch(network.BranchID(i))
		if len(b.Devices) == 0 {
			continue
		}
		label := b.Label()
		t := net.Totals(b.ID)

		if b.Oversize {
			dev := net.Device(b.Devices[0]).Load
			v.add(SeverityError, CodeDeviceOversize, label,
				"Split the device load or feed it from a dedicated higher-rated circuit.",
				"device %s (%.3fA, %d UL) exceeds the circuit limit of %.2fA/%.0f UL on its own",
				dev.ID, dev.CurrentA, dev.UnitLoads, v.hard.CurrentA, v.hard.UnitLoads)
		} else {
			v.limit(label, "current", t.CurrentA, v.hard.CurrentA, v.usable.CurrentA, p.EnforceSpareOnCurrent,
				CodeBranchCurrentExceeded, CodeBranchCurrentSpare, "A")
			v.limit(label, "unit loads", t.UnitLoads, v.hard.UnitLoads, v.usable.UnitLoads, p.EnforceSpareOnUL,
				CodeBranchULExceeded, CodeBranchULSpare, " UL")
		}
		if v.hard.Devices > 0 && t.Devices > v.hard.Devices {
			v.add(SeverityError, CodeBranchDeviceLimit, label,
				"Move devices to another circuit.",
				"%d devices exceed the limit of %d per circuit", t.Devices, v.hard.Devices)
		}
		if net.RequiresIsolators(b.ID) && t.Isolators == 0 {
			v.add(SeverityWarning, CodeBranchIsolatorMissing, label,
				"Add an isolator module at each floor boundary of the circuit.",
				"circuit %s spans %s and has no isolator", label, describeSpan(net, b))
		}
		if b.Supply == network.Unassigned {
			v.add(SeverityError, CodeBranchUnassigned, label,
				"Re-run supply organization.",
				"circuit is not connected to a power supply")
		}
	}
}

func describeSpan(net *network.Network, b *network.Branch) string {
	if b.Island {
		return "a repeater island"
	}
	return strconv.Quote(net.LevelName(b.ID))
}

func (v *validator) limit(subject, what string, value, hard, usable float64, spare bool, errCode, warnCode, unit string) {
	switch {
	case !policy.Within(value, hard):
		v.add(SeverityError, errCode, subject,
			"Split the circuit or move devices to a circuit with spare capacity.",
			"%s %.3f%s exceeds the hard limit of %.2f%s", what, value, unit, hard, unit)
	case spare && !policy.Within(value, usable):
		v.add(SeverityWarning, warnCode, subject,
			"Move devices to restore the spare capacity margin.",
			"%s %.3f%s exceeds the usable limit of %.2f%s (spare %.0f%%)",
			what, value, unit, usable, unit, v.in.Policy.SpareFraction*100)
	}
}

func (v *validator) supplies() {
	net := v.in.Network
	for i := range net.Supplies {
		s := net.Supply(network.SupplyID(i))
		label := s.Label()
		current := net.SupplyCurrentA(s.ID)
		switch {
		case !policy.Within(current, s.CapacityA):
			v.add(SeverityError, CodeSupplyCapacityExceeded, label,
				"Add a power supply or move circuits to another supply.",
				"load %.2fA exceeds the supply capacity of %.2fA", current, s.CapacityA)
		case !policy.Within(current, s.UsableA()):
			v.add(SeverityWarning, CodeSupplySpare, label,
				"Move a circuit to another supply to restore the spare margin.",
				"load %.2fA exceeds the usable capacity of %.2fA", current, s.UsableA())
		}
		if s.MaxBranches > 0 && len(s.Branches) > s.MaxBranches {
			v.add(SeverityError, CodeSupplyBranchLimit, label,
				"Add a power supply.",
				"%d circuits exceed the limit of %d per supply", len(s.Branches), s.MaxBranches)
		}
	}
	for _, name := range v.in.UnmatchedAux {
		v.add(SeverityWarning, CodeAuxUnmatched, name,
			"Check the serving levels of the auxiliary load.",
			"none of the serving levels were found; current reserved on the first supply")
	}
}

func (v *validator) cabinet() {
	c := v.in.Cabinet
	if c == nil {
		return
	}
	if !c.Sufficient {
		v.add(SeverityError, CodeCabinetInsufficient, c.Tier,
			"Split the system across several cabinets or reduce amplifier blocks.",
			"block demand %d exceeds the %d blocks of the largest cabinet", c.UsedBlocks, c.AvailableBlocks)
	}
	if c.SupplyCount > 0 && !c.BatteryChargerAvailable {
		v.add(SeverityWarning, CodeBatteryChargerUnavailable, c.Tier,
			"Add a power supply to bring utilization under 80%.",
			"supply utilization %.0f%% leaves no headroom for a battery charger", c.Utilization)
	}
}

func (v *validator) voltageDrops() {
	if len(v.in.VoltageDrops) == 0 {
		return
	}
	net := v.in.Network
	known := make(map[string]bool, 2*len(net.Branches))
	for i := range net.Branches {
		b := net.Branch(network.BranchID(i))
		known[strings.ToUpper(b.Label())] = true
		known[strconv.Itoa(b.Number)] = true
	}
	for _, d := range v.in.VoltageDrops {
		id := strings.ToUpper(strings.TrimSpace(d.BranchID))
		if !known[id] {
			v.add(SeverityWarning, CodeVoltageDropUnknown, d.BranchID,
				"Re-run the voltage-drop calculation against the current plan.",
				"voltage-drop result refers to an unknown circuit")
			continue
		}
		if !policy.Within(d.DropPercent, d.LimitPercent) {
			v.add(SeverityError, CodeVoltageDropExceeded, d.BranchID,
				"Increase the cable gauge or shorten the circuit.",
				"voltage drop %.2f%% exceeds the limit of %.2f%%", d.DropPercent, d.LimitPercent)
		}
	}
}

func (v *validator) notes() {
	cats := make([]string, 0, len(v.in.Excluded))
	for c, n := range v.in.Excluded {
		if n > 0 {
			cats = append(cats, string(c))
		}
	}
	sort.Strings(cats)
	for _, c := range cats {
		v.add(SeverityInfo, CodeLevelsExcluded, c, "",
			"%d device(s) on %s levels excluded by policy", v.in.Excluded[level.Category(c)], c)
	}
	for _, m := range v.in.Merges {
		v.add(SeverityInfo, CodeLevelsConsolidated, m.Name,
			"Install isolators between the combined floors.",
			"%d underutilized floors consolidated", len(m.Floors))
	}
	for _, m := range v.in.CrossLevel {
		v.add(SeverityInfo, CodeBranchesMerged, m.Levels,
			"Install isolators between the merged levels.",
			"%d underutilized circuits merged across levels", m.Branches)
	}
	for _, name := range v.in.Islands {
		v.add(SeverityInfo, CodeIsland, name, "",
			"level contains a repeater and is sized as an independent power domain")
	}
	for _, name := range v.in.Unconverged {
		v.add(SeverityInfo, CodeBalanceCapReached, name, "",
			"load balancing stopped at the pass limit before converging")
	}
}
