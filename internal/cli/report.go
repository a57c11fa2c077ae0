package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/nacplan/pkg/plan"
)

// Report sections, selectable with --section.
const (
	sectionSummary     = "summary"
	sectionLevels      = "levels"
	sectionCircuits    = "circuits"
	sectionSupplies    = "supplies"
	sectionDiagnostics = "diagnostics"
)

var allSections = []string{sectionSummary, sectionLevels, sectionCircuits, sectionSupplies, sectionDiagnostics}

// reportCommand creates the report command for printing a plan.
func (c *CLI) reportCommand() *cobra.Command {
	var sections []string

	cmd := &cobra.Command{
		Use:   "report [plan.json | plan-id]",
		Short: "Print a plan as tables",
		Long: `Print a plan as tables.

The argument is either a plan file written by 'plan' or the ID of a plan in
the local history. Use --section to limit the output.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateSections(sections); err != nil {
				return err
			}
			p, err := loadPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printReport(p, sections)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&sections, "section", "s", allSections, "sections to print: "+strings.Join(allSections, ", "))

	return cmd
}

func validateSections(sections []string) error {
	for _, s := range sections {
		valid := false
		for _, known := range allSections {
			if s == known {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("invalid section: %q (must be one of: %s)", s, strings.Join(allSections, ", "))
		}
	}
	return nil
}

// printReport prints the selected sections of p.
func printReport(p *plan.Plan, sections []string) {
	want := make(map[string]bool, len(sections))
	for _, s := range sections {
		want[s] = true
	}

	if want[sectionSummary] {
		printSummary(p)
		printNewline()
	}
	if want[sectionLevels] && len(p.Levels) > 0 {
		fmt.Println(StyleTitle.Render("Levels"))
		fmt.Println(levelsTable(p))
		printNewline()
	}
	if want[sectionCircuits] && len(p.Branches) > 0 {
		fmt.Println(StyleTitle.Render("Circuits"))
		fmt.Println(branchesTable(p.Branches, usablePercent(p), -1))
		printNewline()
	}
	if want[sectionSupplies] && len(p.Supplies) > 0 {
		fmt.Println(StyleTitle.Render("Power supplies"))
		fmt.Println(suppliesTable(p, -1))
		printNewline()
	}
	if want[sectionDiagnostics] && len(p.Diagnostics) > 0 {
		fmt.Println(StyleTitle.Render("Diagnostics"))
		fmt.Println(diagnosticsTable(p))
	}
}

func printSummary(p *plan.Plan) {
	title := "Plan"
	if p.Name != "" {
		title += " " + p.Name
	}
	fmt.Println(StyleTitle.Render(title))
	if p.ID != "" {
		printKeyValue("ID", p.ID)
	}
	printKeyValue("Devices", fmt.Sprintf("%d (%d skipped, %d excluded)", p.Stats.Devices, p.Stats.Skipped, p.Stats.Excluded))
	printKeyValue("Levels", fmt.Sprintf("%d (%d before consolidation)", len(p.Levels), p.Consolidation.Before))
	printKeyValue("Circuits", strconv.Itoa(len(p.Branches)))
	printKeyValue("Supplies", strconv.Itoa(len(p.Supplies)))
	printKeyValue("Alarm load", fmt.Sprintf("%s, %d UL", amps(p.Stats.TotalCurrentA), p.Stats.TotalUnitLoads))
	printKeyValue("Standby load", amps(p.Stats.TotalStandbyA))

	cab := p.Cabinet
	tier := cab.Tier
	if !cab.Sufficient {
		tier = StyleError.Render(tier + " (insufficient)")
	}
	printKeyValue("Cabinet", fmt.Sprintf("%s, %d/%d blocks", tier, cab.UsedBlocks, cab.AvailableBlocks))
	printKeyValue("Power margin", fmt.Sprintf("%s of %s", amps(cab.PowerMarginA), amps(cab.CapacityA)))

	status := StyleSuccess.Render("ok")
	switch {
	case p.Summary.Errors > 0:
		status = StyleError.Render(plural(p.Summary.Errors, "error"))
	case p.Summary.Warnings > 0:
		status = StyleWarning.Render(plural(p.Summary.Warnings, "warning"))
	}
	printKeyValue("Status", status)
}

// =============================================================================
// Tables
// =============================================================================

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(styleBorder).
		Headers(headers...)
}

func levelsTable(p *plan.Plan) string {
	rows := make([][]string, 0, len(p.Levels))
	for _, l := range p.Levels {
		name := l.Name
		if l.Combined {
			name += " *"
		}
		rows = append(rows, []string{
			name,
			l.Category,
			strconv.Itoa(l.Devices),
			amps(l.CurrentA),
			strconv.Itoa(l.UnitLoads),
			strconv.Itoa(l.Branches),
			l.Strategy,
		})
	}
	return newTable("Level", "Category", "Devices", "Current", "UL", "Circuits", "Strategy").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		String()
}

// branchesTable renders branches; the row at cursor (if any) is highlighted.
func branchesTable(branches []plan.Branch, usable float64, cursor int) string {
	rows := make([][]string, 0, len(branches))
	for _, b := range branches {
		flags := branchFlags(b)
		supply := b.Supply
		if supply == "" {
			supply = "-"
		}
		rows = append(rows, []string{
			b.Label,
			b.Level,
			supply,
			strconv.Itoa(len(b.Devices)),
			amps(b.CurrentA),
			strconv.Itoa(b.UnitLoads),
			percent(b.Utilization),
			flags,
		})
	}
	return newTable("Circuit", "Level", "Supply", "Devices", "Current", "UL", "Util", "Flags").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if row < len(branches) && col == 6 {
				base = base.Inherit(utilizationStyle(branches[row].Utilization, usable))
			}
			if row == cursor {
				base = base.Bold(true).Foreground(colorCyan)
			}
			return base
		}).
		String()
}

func branchFlags(b plan.Branch) string {
	var flags []string
	if b.Oversize {
		flags = append(flags, "oversize")
	}
	if b.Island {
		flags = append(flags, "island")
	}
	if b.Merged {
		flags = append(flags, "merged")
	}
	if b.RequiresIsolators {
		flags = append(flags, fmt.Sprintf("isolators:%d", b.Isolators))
	}
	return strings.Join(flags, " ")
}

// suppliesTable renders supplies; the row at cursor (if any) is highlighted.
func suppliesTable(p *plan.Plan, cursor int) string {
	rows := make([][]string, 0, len(p.Supplies))
	for _, s := range p.Supplies {
		rows = append(rows, []string{
			s.Label,
			fmt.Sprintf("%d/%d", len(s.Branches), s.MaxBranches),
			amps(s.BranchA),
			amps(s.ReservedA),
			fmt.Sprintf("%s / %s", amps(s.TotalA), amps(s.UsableA)),
			percent(s.Utilization),
			strings.Join(s.Levels, ", "),
		})
	}
	usable := usablePercent(p)
	return newTable("Supply", "Circuits", "Branch load", "Reserved", "Total / usable", "Util", "Levels").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if row < len(p.Supplies) && col == 5 {
				base = base.Inherit(utilizationStyle(p.Supplies[row].Utilization, usable))
			}
			if row == cursor {
				base = base.Bold(true).Foreground(colorCyan)
			}
			return base
		}).
		String()
}

func diagnosticsTable(p *plan.Plan) string {
	rows := make([][]string, 0, len(p.Diagnostics))
	for _, d := range p.Diagnostics {
		rows = append(rows, []string{string(d.Severity), d.Code, d.Subject, d.Message})
	}
	return newTable("Severity", "Code", "Subject", "Message").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if col == 0 && row < len(p.Diagnostics) {
				return base.Inherit(severityStyle(p.Diagnostics[row].Severity))
			}
			return base
		}).
		String()
}

func usablePercent(p *plan.Plan) float64 {
	return (1 - p.Policy.SpareFraction) * 100
}
