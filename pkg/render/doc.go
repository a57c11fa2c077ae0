// Package render turns finished plans into visual artifacts.
//
// # Overview
//
// The [topology] subpackage draws the notification network as a Graphviz
// diagram: cabinet at the top, one cluster per power supply, and a box per
// notification circuit colored by utilization.
//
//	dot := topology.ToDOT(p, topology.Options{})
//	svg, err := topology.RenderSVG(ctx, dot)
//
// # Format Conversion
//
// The [ToPDF] and [ToPNG] functions convert any SVG to other formats using
// the external rsvg-convert tool (from librsvg).
//
//	pdf, err := render.ToPDF(ctx, svg)
//	png, err := render.ToPNG(ctx, svg, 2.0) // 2x scale
//
// [topology]: github.com/matzehuels/nacplan/pkg/render/topology
package render
