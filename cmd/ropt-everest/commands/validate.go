package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/TNO-ropt/ropt-everest/pkg/config"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config.yml>",
		Short: "Validate an Everest configuration file",
		Long: `Validate an Everest configuration file.

This command checks:
  - YAML syntax validity
  - Schema conformance (CUE)
  - Struct-level constraints
  - Cross-references between sections`,
		Example: `  # Validate a configuration
  ropt-everest validate config.yml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			log.Info().Str("path", path).Msg("Validating configuration")

			cfg, err := config.NewLoader().LoadFile(cmd.Context(), path)
			if err != nil {
				return err
			}

			controls := len(config.ControlNames(cfg))
			fmt.Printf("%s: valid\n", path)
			fmt.Printf("  algorithm:    %s\n", cfg.Optimization.Algorithm)
			fmt.Printf("  controls:     %d\n", controls)
			fmt.Printf("  objectives:   %d\n", len(cfg.Objectives))
			fmt.Printf("  realizations: %d\n", len(cfg.Model.Realizations))

			return nil
		},
	}

	return cmd
}
