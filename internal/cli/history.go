package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/nacplan/pkg/errors"
	"github.com/matzehuels/nacplan/pkg/plan"
	"github.com/matzehuels/nacplan/pkg/store"
)

// historyCommand creates the history command for the local plan store.
func (c *CLI) historyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Manage plans saved with 'plan --save'",
	}

	cmd.AddCommand(c.historyListCommand())
	cmd.AddCommand(c.historyDeleteCommand())
	cmd.AddCommand(c.historyPathCommand())

	return cmd
}

func (c *CLI) historyListCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved plans, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newPlanStore()
			if err != nil {
				return err
			}
			defer st.Close()

			plans, err := st.List(cmd.Context(), store.ListOptions{Limit: limit})
			if err != nil {
				return err
			}
			if len(plans) == 0 {
				printInfo("No saved plans")
				printDetail("Directory: %s", st.Path())
				return nil
			}
			fmt.Println(historyTable(plans))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", store.DefaultListLimit, "maximum number of plans to list")

	return cmd
}

func (c *CLI) historyDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [plan-id...]",
		Short: "Delete saved plans",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newPlanStore()
			if err != nil {
				return err
			}
			defer st.Close()

			for _, id := range args {
				if err := st.Delete(cmd.Context(), id); err != nil {
					return err
				}
				printSuccess("Deleted %s", id)
			}
			return nil
		},
	}
}

func (c *CLI) historyPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the plan history directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := plansDir()
			if err != nil {
				return fmt.Errorf("get plans dir: %w", err)
			}
			fmt.Println(dir)
			return nil
		},
	}
}

func historyTable(plans []plan.Summary) string {
	rows := make([][]string, 0, len(plans))
	for _, s := range plans {
		rows = append(rows, []string{
			s.ID,
			s.Name,
			s.CreatedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(s.Branches),
			strconv.Itoa(s.Supplies),
			s.Cabinet,
			strconv.Itoa(s.Summary.Errors),
		})
	}
	return newTable("ID", "Name", "Created", "Circuits", "Supplies", "Cabinet", "Errors").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if col == 6 && row < len(plans) && plans[row].Summary.Errors > 0 {
				return base.Inherit(StyleError)
			}
			return base
		}).
		String()
}

// loadPlan resolves ref as a plan file, falling back to a saved plan ID.
func loadPlan(ctx context.Context, ref string) (*plan.Plan, error) {
	if _, err := os.Stat(ref); err == nil {
		p, err := plan.ReadFile(ref)
		if err != nil {
			return nil, fmt.Errorf("load plan %s: %w", ref, err)
		}
		return p, nil
	}

	if errors.ValidatePlanID(ref) != nil {
		return nil, errors.New(errors.ErrCodeFileNotFound, "no plan file or saved plan named %q", ref)
	}
	st, err := newPlanStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()
	p, err := st.Get(ctx, ref)
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.New(errors.ErrCodeFileNotFound, "no plan file or saved plan named %q", ref)
		}
		return nil, err
	}
	return p, nil
}
