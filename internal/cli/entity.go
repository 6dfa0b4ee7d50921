package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Manage the names recognized in feelings",
}

var entityAddCmd = &cobra.Command{
	Use:   "add <name>...",
	Short: "Register one or more names",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		for _, name := range args {
			if err := a.engine.AddEntity(cmd.Context(), name); err != nil {
				return fmt.Errorf("add %q: %w", name, err)
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registered %d entities\n", len(args))
		return nil
	},
}

var entityListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered names",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		names, err := a.engine.Entities(cmd.Context())
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
		return nil
	},
}

func init() {
	entityCmd.AddCommand(entityAddCmd)
	entityCmd.AddCommand(entityListCmd)
}
