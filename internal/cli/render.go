package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nacplan/pkg/pipeline"
)

// renderCommand creates the render command for drawing a finished plan.
func (c *CLI) renderCommand() *cobra.Command {
	var (
		formatsStr string
		output     string
		noCache    bool
		detailed   bool
	)

	cmd := &cobra.Command{
		Use:   "render [plan.json | plan-id]",
		Short: "Render the supply topology of a plan",
		Long: `Render the supply topology of a plan.

Draws the cabinet, its power supplies and the circuits each supply feeds.
Circuits are shaded by utilization: white within the usable share, amber in
the spare margin, red above the hard limit. DOT output needs nothing else;
SVG is produced with Graphviz, PNG and PDF additionally need rsvg-convert.

Results are cached locally for faster subsequent runs.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formats := parseFormats(formatsStr)
			if formatsStr == "" {
				formats = []string{pipeline.FormatSVG}
			}
			if err := pipeline.ValidateFormats(formats); err != nil {
				return err
			}
			return c.runRender(cmd.Context(), args[0], formats, output, detailed, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&formatsStr, "format", "f", "", "output format(s): svg (default), dot, png, pdf, json (comma-separated)")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "show loads and utilization on every node")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, ref string, formats []string, output string, detailed, noCache bool) error {
	p, err := loadPlan(ctx, ref)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	opts := pipeline.Options{Formats: formats, Detailed: detailed, Logger: c.Logger}

	spinner := newSpinnerWithContext(ctx, "Rendering topology...")
	spinner.Start()
	artifacts, cacheHit, err := runner.RenderWithCacheInfo(ctx, p, opts)
	if err != nil {
		spinner.StopWithError("Render failed")
		return fmt.Errorf("render: %w", err)
	}
	spinner.Stop()

	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Stored plans are rendered next to the working directory.
	input := ref
	if _, statErr := os.Stat(ref); statErr != nil {
		input = p.ID + ".json"
	}
	paths, err := writeArtifacts(artifacts, formats, input, output)
	if err != nil {
		return err
	}

	printSuccess("Render complete")
	for _, path := range paths {
		printFile(path)
	}
	printPlanStats(len(p.Branches), len(p.Supplies), p.Summary, cacheHit)
	return nil
}
