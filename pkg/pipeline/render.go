package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/matzehuels/nacplan/pkg/observability"
	"github.com/matzehuels/nacplan/pkg/plan"
	"github.com/matzehuels/nacplan/pkg/render"
	"github.com/matzehuels/nacplan/pkg/render/topology"
)

// pngScale is the resolution multiplier for PNG output.
const pngScale = 2.0

// Render generates output artifacts in the requested formats.
// SVG is rendered at most once even when PNG and PDF are also requested.
func Render(ctx context.Context, p *plan.Plan, opts Options) (map[string][]byte, error) {
	if err := opts.ValidateForRender(); err != nil {
		return nil, err
	}

	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, opts.Formats)
	start := time.Now()
	artifacts, err := renderFormats(ctx, p, opts)
	hooks.OnRenderComplete(ctx, opts.Formats, time.Since(start), err)
	return artifacts, err
}

func renderFormats(ctx context.Context, p *plan.Plan, opts Options) (map[string][]byte, error) {
	artifacts := make(map[string][]byte, len(opts.Formats))

	var dot string
	var svg []byte
	topo := func() ([]byte, error) {
		if svg != nil {
			return svg, nil
		}
		if dot == "" {
			dot = topology.ToDOT(p, topology.Options{Detailed: opts.Detailed})
		}
		var err error
		svg, err = topology.RenderSVG(ctx, dot)
		return svg, err
	}

	for _, format := range opts.Formats {
		var data []byte
		var err error

		switch format {
		case FormatJSON:
			data, err = plan.Marshal(p)
		case FormatDOT:
			if dot == "" {
				dot = topology.ToDOT(p, topology.Options{Detailed: opts.Detailed})
			}
			data = []byte(dot)
		case FormatSVG:
			data, err = topo()
		case FormatPNG:
			if data, err = topo(); err == nil {
				data, err = render.ToPNG(ctx, data, pngScale)
			}
		case FormatPDF:
			if data, err = topo(); err == nil {
				data, err = render.ToPDF(ctx, data)
			}
		default:
			return nil, fmt.Errorf("unsupported format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}

	return artifacts, nil
}
