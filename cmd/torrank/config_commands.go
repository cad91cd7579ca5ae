package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"torrank/internal/config"
	"torrank/internal/engine"
	"torrank/internal/store"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	cmd.AddCommand(newConfigValidateCommand(ctx), newConfigInitCommand())
	return cmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := config.ExpandPath(targetPath)
			if err == nil && target == "" {
				target, err = config.DefaultConfigPath()
			}
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}

			resolved, exists, err := config.Locate(target)
			if err != nil {
				return err
			}
			if exists && !overwrite {
				return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", resolved)
			}
			if err := config.CreateSample(resolved); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", resolved)
			fmt.Fprintln(out, "Edit filter.rule (or export FILTER_RULE) to set your priority layers.")
			return nil
		},
	}
	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

// newConfigValidateCommand loads the file and compiles every rule, so custom
// tokens from the store are resolved too.
func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file and rules",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configExists {
				fmt.Fprintln(out, "Config file not found; defaults apply")
			}
			err := ctx.withEngine(cmd.Context(), func(eng *engine.Service, _ *store.Store) error {
				fmt.Fprintf(out, "Rules: %s\n", describeSnapshot(eng.Snapshot()))
				return nil
			})
			if err != nil {
				return fmt.Errorf("compile rules: %w", err)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
