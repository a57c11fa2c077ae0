package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/nacplan/pkg/policy"
)

// policyCommand creates the policy command for managing policy files.
func (c *CLI) policyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Create and inspect capacity policy files",
	}

	cmd.AddCommand(c.policyInitCommand())
	cmd.AddCommand(c.policyShowCommand())

	return cmd
}

func (c *CLI) policyInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default policy to a TOML file",
		Long: `Write the default policy to a TOML file.

The file defaults to nacplan.toml in the working directory, which 'plan'
picks up automatically. Existing files are kept unless --force is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := policyFileName
			if len(args) == 1 {
				path = args[0]
			}
			if err := writePolicyFile(path, policy.Defaults(), force); err != nil {
				return err
			}
			printSuccess("Policy written")
			printFile(path)
			printNewline()
			printNextStep("Plan", appName+" plan devices.json --policy "+path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")

	return cmd
}

func writePolicyFile(path string, p policy.Policy, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		return err
	}
	if err := p.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("encode policy: %w", err)
	}
	return f.Close()
}

func (c *CLI) policyShowCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective policy",
		Long: `Print the effective policy as TOML.

The policy is read from --policy, else nacplan.toml in the working directory,
else the built-in defaults. The file is validated before it is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, source, err := loadPolicy(path)
			if err != nil {
				return err
			}
			if source == "" {
				source = "built-in defaults"
			}
			c.Logger.Debug("effective policy", "source", source)
			fmt.Println(StyleDim.Render("# source: " + source))
			return p.Encode(os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&path, "policy", "p", "", "policy file (TOML)")

	return cmd
}
