package topology

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/matzehuels/nacplan/pkg/plan"
)

// Fill colors by utilization band.
const (
	FillOK      = "white"
	FillSpare   = "#fce5cd"
	FillOverrun = "#f4cccc"
)

// Options configures topology rendering.
type Options struct {
	// Detailed adds level, unit loads and device counts to circuit labels.
	// When false, only the label and current are shown.
	Detailed bool
}

// ToDOT converts a plan to Graphviz DOT format.
// The resulting DOT string can be rendered with [RenderSVG].
func ToDOT(p *plan.Plan, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph nac {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontname=\"Helvetica\", fontsize=12];\n")
	buf.WriteString("  ranksep=0.6;\n")
	buf.WriteString("  nodesep=0.25;\n")
	buf.WriteString("\n")

	usable := usablePercent(p)

	fmt.Fprintf(&buf, "  %q [label=%q, shape=box3d, fillcolor=%q];\n",
		"cabinet", cabinetLabel(p), cabinetFill(p))

	for _, s := range p.Supplies {
		buf.WriteString("\n")
		fmt.Fprintf(&buf, "  subgraph %q {\n", "cluster_"+s.Label)
		fmt.Fprintf(&buf, "    label=%q;\n", fmt.Sprintf("%s  %.2f / %.2f A", s.Label, s.TotalA, s.UsableA))
		buf.WriteString("    style=\"rounded\";\n")
		fmt.Fprintf(&buf, "    %q [label=%q, shape=component, fillcolor=%q];\n",
			s.Label, supplyLabel(s), fill(s.Utilization, usable))
		for _, b := range p.BranchesOf(s.Label) {
			fmt.Fprintf(&buf, "    %q [%s];\n", b.Label, strings.Join(branchAttrs(b, usable, opts.Detailed), ", "))
		}
		buf.WriteString("  }\n")
	}

	var unassigned []plan.Branch
	for _, b := range p.Branches {
		if b.Supply == "" {
			unassigned = append(unassigned, b)
		}
	}
	if len(unassigned) > 0 {
		buf.WriteString("\n")
		for _, b := range unassigned {
			fmt.Fprintf(&buf, "  %q [%s];\n", b.Label, strings.Join(branchAttrs(b, usable, opts.Detailed), ", "))
		}
	}

	buf.WriteString("\n")
	for _, s := range p.Supplies {
		fmt.Fprintf(&buf, "  %q -> %q;\n", "cabinet", s.Label)
		for _, b := range p.BranchesOf(s.Label) {
			fmt.Fprintf(&buf, "  %q -> %q;\n", s.Label, b.Label)
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func usablePercent(p *plan.Plan) float64 {
	return (1 - p.Policy.SpareFraction) * 100
}

func fill(utilization, usable float64) string {
	switch {
	case utilization > 100+1e-9:
		return FillOverrun
	case utilization > usable+1e-9:
		return FillSpare
	default:
		return FillOK
	}
}

func cabinetFill(p *plan.Plan) string {
	if p.Cabinet.Tier != "" && !p.Cabinet.Sufficient {
		return FillOverrun
	}
	return FillOK
}

func cabinetLabel(p *plan.Plan) string {
	c := p.Cabinet
	if c.Tier == "" {
		return "cabinet"
	}
	return fmt.Sprintf("%s\n%d/%d blocks", c.Tier, c.UsedBlocks, c.AvailableBlocks)
}

func supplyLabel(s plan.Supply) string {
	label := fmt.Sprintf("%s\n%d circuits", s.Label, len(s.Branches))
	if s.ReservedA > 0 {
		label += fmt.Sprintf("\nreserved %.2f A", s.ReservedA)
	}
	return label
}

func branchLabel(b plan.Branch, detailed bool) string {
	label := fmt.Sprintf("%s\n%.2f A", b.Label, b.CurrentA)
	if !detailed {
		return label
	}
	return label + fmt.Sprintf("\n%s\n%d UL, %d devices", b.Level, b.UnitLoads, len(b.Devices))
}

func branchAttrs(b plan.Branch, usable float64, detailed bool) []string {
	attrs := []string{
		fmt.Sprintf("label=%q", branchLabel(b, detailed)),
		fmt.Sprintf("fillcolor=%q", fill(b.Utilization, usable)),
	}
	if b.Oversize {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"")
	}
	if b.Island {
		attrs = append(attrs, "penwidth=2.5")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the root element so the SVG scales from its viewBox
// instead of Graphviz's point-based width and height.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	root := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(root))
}
