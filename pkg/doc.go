// Package pkg provides the core libraries for nacplan, the fire-alarm
// notification circuit sizer.
//
// # Overview
//
// nacplan takes the notification appliances of a building (speakers, strobes,
// horns) with their electrical loads and produces a buildable plan: which
// devices share a notification appliance circuit (NAC), which power supply
// feeds each circuit, and which control-panel cabinet holds it all. The pkg
// directory is organized into four main areas:
//
//  1. [core] - Domain logic (levels, circuits, supplies, cabinet, diagnostics)
//  2. [pipeline] - Orchestration (group → allocate → assign → size → validate)
//  3. [plan] - Serialization types for finished plans
//  4. Infrastructure ([cache], [store], [observability], [render])
//
// # Architecture
//
// The typical data flow through nacplan:
//
//	Device list (JSON) + policy (TOML)
//	         ↓
//	    [core/level] package (group, classify and consolidate floors)
//	         ↓
//	    [core/circuit] package (pack devices into circuits, balance, merge)
//	         ↓
//	    [core/supply] package (assign circuits to power supplies)
//	         ↓
//	    [core/cabinet] package (size the panel cabinet)
//	         ↓
//	    [core/validate] package (diagnostics)
//	         ↓
//	    [plan.Plan] → JSON / DOT / SVG / PNG / PDF
//
// # Quick Start
//
//	devices, _ := plan.ReadDevicesFile("tower.json")
//	pol := policy.Defaults()
//
//	p, err := pipeline.Build(ctx, devices, pipeline.Options{Policy: &pol})
//	if err != nil {
//	    return err
//	}
//	for _, b := range p.Branches {
//	    fmt.Printf("%s %s %.2f A\n", b.Label, b.Supply, b.CurrentA)
//	}
//
// # Main Packages
//
// ## Core Domain Logic
//
// [core/device] - Device load records and their validation.
//
// [core/level] - Level grouping, floor categories (basement, ground, villa,
// garage, mechanical) and low-load floor consolidation.
//
// [core/network] - The arena that owns devices, branches and supplies and
// hands out integer handles to them.
//
// [core/circuit] - Circuit allocation: first-fit decreasing/increasing and
// wiring-order packers, load balancing, island handling and cross-level
// merging.
//
// [core/supply] - Power supply assignment with auxiliary load reservations.
//
// [core/cabinet] - Cabinet tier selection from block and power demand.
//
// [core/validate] - Plan diagnostics with ERROR, WARNING and INFO severities.
//
// ## Configuration
//
// [policy] - Sizing limits and strategy switches, loaded from TOML.
//
// ## Infrastructure
//
// [pipeline] - Complete sizing pipeline used by the CLI and the HTTP API.
// Ensures consistent behavior across both entry points.
//
// [cache] - Plan and artifact caches: file (CLI), Redis (API) and null.
//
// [store] - Plan history: file (CLI), MongoDB (API) and memory (tests).
//
// [render] - Graphviz topology diagrams and SVG to PDF/PNG conversion.
//
// [observability] - Hooks for pipeline stages, cache access and HTTP requests.
//
// # Testing
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/core/circuit/...       # Specific package
//	go test -run Example                 # Examples only
//
// [core]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/core
// [core/device]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/core/device
// [core/level]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/core/level
// [core/network]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/core/network
// [core/circuit]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/core/circuit
// [core/supply]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/core/supply
// [core/cabinet]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/core/cabinet
// [core/validate]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/core/validate
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/pipeline
// [plan]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/plan
// [plan.Plan]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/plan#Plan
// [policy]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/policy
// [cache]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/cache
// [store]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/store
// [render]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/render
// [observability]: https://pkg.go.dev/github.com/matzehuels/nacplan/pkg/observability
package pkg
