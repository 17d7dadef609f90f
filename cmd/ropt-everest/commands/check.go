package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/TNO-ropt/ropt-everest/pkg/plan"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <script.star>",
		Short: "Check a plan script without running it",
		Long: `Check a plan script without running it.

This command parses the Starlark script and verifies that it defines a
callable ` + "`run_plan`" + ` entry point. Step and handler calls are not
executed; runtime errors only surface when the plan runs.`,
		Example: `  # Check a plan script
  ropt-everest check plan.star`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			log.Info().Str("path", path).Msg("Checking plan script")

			if err := plan.CheckScript(path); err != nil {
				return err
			}

			fmt.Printf("%s: ok\n", path)
			return nil
		},
	}

	return cmd
}
