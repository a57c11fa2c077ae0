// Package topology renders a plan's notification network using Graphviz.
//
// The diagram has three ranks:
//
//	cabinet → power supplies → notification circuits
//
// Each power supply is drawn as a cluster holding the circuits it feeds.
// Circuits are filled by utilization: white within the usable (spare-derated)
// limit, amber when they eat into the spare margin, red when they exceed the
// hard limit. Oversize circuits have a dashed outline and repeater islands a
// heavy one.
//
// # Usage
//
//	dot := topology.ToDOT(p, topology.Options{Detailed: true})
//	svg, err := topology.RenderSVG(ctx, dot)
//
// The DOT text is also a useful artifact on its own: it can be saved and
// processed with external Graphviz tools.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion goes through the parent render package.
package topology
