// Package plan provides the serialization types for sizing results.
//
// This package defines the canonical wire format for nacplan output, used for
// JSON files, API responses, the plan cache and the plan stores.
//
// # Architecture
//
// The package sits at the serialization boundary between the planning core
// and external formats:
//
//   - [Plan]: Serialization type (this package)
//   - pkg/core/network.Network: Internal arena of devices, branches and supplies
//   - pkg/core/level.Data: Internal level groups
//
// Use [Export] to convert a finished network into a [Plan].
//
// # Plan Format
//
//	{
//	  "levels":   [{"name": "P1 + P2", "combined": true, ...}],
//	  "branches": [{"label": "NAC-001", "level": "Level 1", "current_a": 2.4, ...}],
//	  "supplies": [{"label": "PS-01", "branches": ["NAC-001"], ...}],
//	  "cabinet":  {"tier": "Single Bay", ...},
//	  "diagnostics": [{"severity": "WARNING", "code": "BRANCH_CURRENT_SPARE", ...}],
//	  "summary":  {"errors": 0, "warnings": 1, "recommendations": 2}
//	}
//
// # Device Input
//
// [ReadDevices] accepts either a bare JSON array of device records or an
// object with a "devices" array:
//
//	[{"id": "SPK-1", "level": "Level 1", "current_a": 0.12, "unit_loads": 1}]
//
// # Serialization
//
//	data, _ := plan.Marshal(p)
//	plan.WriteFile(p, "tower.plan.json")
//	p, _ := plan.ReadFile("tower.plan.json")
package plan
