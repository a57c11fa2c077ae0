// Package validate runs the structural checks over a sized network and
// reports severity-tagged diagnostics.
//
// Validation never fails on data problems: overloaded circuits, full
// supplies or an undersized cabinet become ERROR or WARNING diagnostics and
// the as-built structure is still returned. Only a nil network is a
// contract error.
package validate

import (
	"cmp"
	"slices"
)

// Severity ranks a diagnostic.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
	SeverityInfo    Severity = "INFO"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 0
	case SeverityWarning:
		return 1
	}
	return 2
}

// Diagnostic codes.
const (
	CodeBranchCurrentExceeded = "BRANCH_CURRENT_EXCEEDED"
	CodeBranchCurrentSpare    = "BRANCH_CURRENT_SPARE"
	CodeBranchULExceeded      = "BRANCH_UL_EXCEEDED"
	CodeBranchULSpare         = "BRANCH_UL_SPARE"
	CodeBranchDeviceLimit     = "BRANCH_DEVICE_LIMIT"
	CodeBranchIsolatorMissing = "BRANCH_ISOLATOR_MISSING"
	CodeBranchUnassigned      = "BRANCH_UNASSIGNED"
	CodeDeviceOversize        = "DEVICE_OVERSIZE"
	CodeDeviceSkipped         = "DEVICE_SKIPPED"

	CodeSupplyCapacityExceeded = "SUPPLY_CAPACITY_EXCEEDED"
	CodeSupplySpare            = "SUPPLY_SPARE"
	CodeSupplyBranchLimit      = "SUPPLY_BRANCH_LIMIT"
	CodeAuxUnmatched           = "AUX_LEVEL_UNMATCHED"

	CodeCabinetInsufficient       = "CABINET_INSUFFICIENT"
	CodeBatteryChargerUnavailable = "BATTERY_CHARGER_UNAVAILABLE"

	CodeVoltageDropExceeded = "VOLTAGE_DROP_EXCEEDED"
	CodeVoltageDropUnknown  = "VOLTAGE_DROP_UNKNOWN_BRANCH"

	CodeNoDevices          = "NO_DEVICES"
	CodeLevelUnknown       = "LEVEL_UNKNOWN"
	CodeLevelsExcluded     = "LEVELS_EXCLUDED"
	CodeLevelsConsolidated = "LEVELS_CONSOLIDATED"
	CodeBranchesMerged     = "BRANCHES_MERGED"
	CodeIsland             = "REPEATER_ISLAND"
	CodeBalanceCapReached  = "BALANCE_CAP_REACHED"
)

// Diagnostic is one finding.
type Diagnostic struct {
	Severity    Severity `json:"severity" bson:"severity"`
	Code        string   `json:"code" bson:"code"`
	Subject     string   `json:"subject" bson:"subject"`
	Message     string   `json:"message" bson:"message"`
	Remediation string   `json:"remediation,omitempty" bson:"remediation,omitempty"`
}

// Summary counts diagnostics by severity.
type Summary struct {
	Errors          int `json:"errors" bson:"errors"`
	Warnings        int `json:"warnings" bson:"warnings"`
	Recommendations int `json:"recommendations" bson:"recommendations"`
}

// Report is the outcome of [Run].
type Report struct {
	Diagnostics []Diagnostic
	Summary     Summary
}

// HasErrors reports whether any ERROR diagnostic was produced.
func (r Report) HasErrors() bool {
	return r.Summary.Errors > 0
}

// Filter returns the diagnostics with the given severity.
func (r Report) Filter(s Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range r.Diagnostics {
		if d.Severity == s {
			out = append(out, d)
		}
	}
	return out
}

// Codes returns the codes of all diagnostics in report order.
func (r Report) Codes() []string {
	out := make([]string, len(r.Diagnostics))
	for i, d := range r.Diagnostics {
		out[i] = d.Code
	}
	return out
}

// Summarize counts diagnostics by severity.
func Summarize(diags []Diagnostic) Summary {
	var s Summary
	for _, d := range diags {
		switch d.Severity {
		case SeverityError:
			s.Errors++
		case SeverityWarning:
			s.Warnings++
		default:
			s.Recommendations++
		}
	}
	return s
}

// sortDiagnostics orders by severity and keeps the emission order within
// a severity.
func sortDiagnostics(diags []Diagnostic) {
	slices.SortStableFunc(diags, func(a, b Diagnostic) int {
		return cmp.Compare(a.Severity.rank(), b.Severity.rank())
	})
}
