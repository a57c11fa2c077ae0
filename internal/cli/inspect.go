package cli

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// inspectCommand creates the interactive plan browser.
func (c *CLI) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [plan.json | plan-id]",
		Short: "Browse a plan interactively",
		Long: `Browse a plan interactively.

Walk from the power supplies to the circuits they feed and the devices on
each circuit, or jump to the diagnostics.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPlan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			c.Logger.Debug("inspecting plan", "id", p.ID, "circuits", len(p.Branches))

			prog := tea.NewProgram(NewInspectModel(p), tea.WithAltScreen(), tea.WithContext(cmd.Context()))
			_, err = prog.Run()
			return err
		},
	}
}
