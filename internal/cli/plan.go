package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nacplan/pkg/pipeline"
	"github.com/matzehuels/nacplan/pkg/plan"
	"github.com/matzehuels/nacplan/pkg/store"
)

// planFlags holds the command-line flags for the plan command.
type planFlags struct {
	policyPath string // TOML policy file
	auxPath    string // JSON file of auxiliary loads
	dropsPath  string // JSON file of voltage-drop results
	detection  int    // detection device count for cabinet sizing
	name       string // plan name
	output     string // output file (single format) or base path (multiple)
	formats    string // comma-separated output formats
	detailed   bool   // detailed topology diagrams
	noCache    bool   // bypass the plan cache
	refresh    bool   // rebuild even when cached
	save       bool   // store the plan in the local history
	quiet      bool   // skip the tables
	strict     bool   // fail when the plan has ERROR diagnostics
}

// planCommand creates the plan command, the main entry point for sizing.
func (c *CLI) planCommand() *cobra.Command {
	var flags planFlags

	cmd := &cobra.Command{
		Use:   "plan [devices.json]",
		Short: "Size circuits, supplies and the cabinet for a device list",
		Long: `Size circuits, supplies and the cabinet for a device list.

The input is a JSON array of devices (or an object with a "devices" array).
The policy comes from --policy, else nacplan.toml in the working directory,
else the built-in defaults (see 'nacplan policy show').

Plans are cached locally; identical devices and options return the cached plan.
Use --save to keep the plan in the local history for 'report', 'render' and
'inspect'.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formats := parseFormats(flags.formats)
			if err := pipeline.ValidateFormats(formats); err != nil {
				return err
			}
			return c.runPlan(cmd.Context(), args[0], formats, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.policyPath, "policy", "p", "", "policy file (TOML)")
	cmd.Flags().StringVar(&flags.auxPath, "aux", "", "auxiliary loads file (JSON array of {name, current_a, blocks_required, serving_levels})")
	cmd.Flags().StringVar(&flags.dropsPath, "voltage-drops", "", "voltage-drop results file (JSON array of {branch_id, drop_percent, limit_percent})")
	cmd.Flags().IntVar(&flags.detection, "detection-devices", 0, "number of detection devices on the panel")
	cmd.Flags().StringVarP(&flags.name, "name", "n", "", "plan name (default: input file name)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&flags.formats, "format", "f", "", "output format(s): json (default), dot, svg, png, pdf (comma-separated)")
	cmd.Flags().BoolVar(&flags.detailed, "detailed", false, "show loads in topology diagrams")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable caching")
	cmd.Flags().BoolVar(&flags.refresh, "refresh", false, "rebuild even if a cached plan exists")
	cmd.Flags().BoolVar(&flags.save, "save", false, "save the plan to the local history")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "do not print the plan tables")
	cmd.Flags().BoolVar(&flags.strict, "strict", false, "exit with an error when the plan has ERROR diagnostics")

	return cmd
}

// runPlan reads the inputs, runs the pipeline and writes the artifacts.
func (c *CLI) runPlan(ctx context.Context, input string, formats []string, flags planFlags) error {
	devices, err := plan.ReadDevicesFile(input)
	if err != nil {
		return fmt.Errorf("load devices %s: %w", input, err)
	}

	pol, policySource, err := loadPolicy(flags.policyPath)
	if err != nil {
		return err
	}
	if policySource != "" {
		c.Logger.Debug("policy loaded", "file", policySource)
	}

	opts := pipeline.Options{
		Policy:           &pol,
		DetectionDevices: flags.detection,
		Name:             flags.name,
		Refresh:          flags.refresh,
		Formats:          formats,
		Detailed:         flags.detailed,
		Logger:           c.Logger,
	}
	if opts.Name == "" {
		opts.Name = strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	}
	if flags.auxPath != "" {
		if err := readJSONFile(flags.auxPath, &opts.AuxLoads); err != nil {
			return fmt.Errorf("load aux loads: %w", err)
		}
	}
	if flags.dropsPath != "" {
		if err := readJSONFile(flags.dropsPath, &opts.VoltageDrops); err != nil {
			return fmt.Errorf("load voltage drops: %w", err)
		}
	}
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return err
	}

	runner, err := c.newRunner(flags.noCache)
	if err != nil {
		return fmt.Errorf("initialize runner: %w", err)
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	spinner := newSpinnerWithContext(ctx, fmt.Sprintf("Planning %d devices...", len(devices)))
	restore := watchStages(spinner, c.Logger)
	spinner.Start()

	p, cached, err := runner.BuildWithCacheInfo(ctx, devices, opts)
	restore()
	if err != nil {
		spinner.StopWithError("Planning failed")
		return fmt.Errorf("plan: %w", err)
	}
	spinner.Stop()
	prog.done(fmt.Sprintf("Planned %d circuits", len(p.Branches)))

	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Saved plans get their ID before rendering so the JSON output carries it.
	if flags.save {
		st, err := newPlanStore()
		if err != nil {
			return err
		}
		store.Prepare(p, time.Now())
		if err := st.Save(ctx, p); err != nil {
			return fmt.Errorf("save plan: %w", err)
		}
	}

	artifacts, _, err := runner.RenderWithCacheInfo(ctx, p, opts)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}
	paths, err := writeArtifacts(artifacts, formats, input, flags.output)
	if err != nil {
		return err
	}

	if !flags.quiet {
		printNewline()
		printReport(p, allSections)
		printNewline()
	}

	printSuccess("Plan complete")
	for _, path := range paths {
		printFile(path)
	}
	printPlanStats(len(p.Branches), len(p.Supplies), p.Summary, cached)
	if p.Summary.Errors > 0 {
		printWarning("%s need attention before this plan can be built", plural(p.Summary.Errors, "error"))
	}
	if flags.save {
		printNewline()
		printNextStep("Inspect", appName+" inspect "+p.ID)
	}

	if flags.strict && p.Summary.Errors > 0 {
		return fmt.Errorf("plan has %s", plural(p.Summary.Errors, "error"))
	}
	return nil
}

// readJSONFile decodes the JSON file at path into v.
func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// writeArtifacts writes each rendered format next to the input or to output.
// With one format, output names the file; with several it is a base path and
// the format becomes the extension.
func writeArtifacts(artifacts map[string][]byte, formats []string, input, output string) ([]string, error) {
	paths := make([]string, 0, len(formats))
	for _, format := range formats {
		data, ok := artifacts[format]
		if !ok {
			return paths, fmt.Errorf("missing %s output", format)
		}
		path := output
		switch {
		case output == "":
			path = strings.TrimSuffix(input, filepath.Ext(input)) + ".plan." + format
		case len(formats) > 1:
			path = strings.TrimSuffix(output, filepath.Ext(output)) + "." + format
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
