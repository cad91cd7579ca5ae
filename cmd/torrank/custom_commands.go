package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"torrank/internal/customrule"
	"torrank/internal/store"
	"torrank/internal/torrent"
)

func newCustomCommand(ctx *commandContext) *cobra.Command {
	customCmd := &cobra.Command{
		Use:   "custom",
		Short: "Manage custom rule tokens",
		Long: `Manage custom rule tokens.

A custom rule defines a new token from title patterns, a size range in MB, a
minimum seeder count and a publish-age window in minutes. Once added, its ID
can be used in any priority rule.`,
	}
	customCmd.AddCommand(newCustomListCommand(ctx))
	customCmd.AddCommand(newCustomAddCommand(ctx))
	customCmd.AddCommand(newCustomRemoveCommand(ctx))
	return customCmd
}

func newCustomListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List custom rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				defs, err := st.CustomRules(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					if defs == nil {
						defs = []customrule.Rule{}
					}
					return writeJSON(cmd, defs)
				}
				out := cmd.OutOrStdout()
				if len(defs) == 0 {
					fmt.Fprintln(out, "No custom rules defined")
					return nil
				}
				rows := make([][]string, 0, len(defs))
				for _, d := range defs {
					rows = append(rows, []string{d.ID, dash(d.Name), dash(d.Include), dash(d.Exclude), dash(d.SizeRange), dash(d.Seeders), dash(d.PublishTime)})
				}
				fmt.Fprintln(out, renderTable(out, []string{"ID", "Name", "Include", "Exclude", "Size (MB)", "Seeders", "Published (min)"}, rows))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newCustomAddCommand(ctx *commandContext) *cobra.Command {
	var def customrule.Rule
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create or replace a custom rule",
		Example: `  torrank custom add --id ATMOS --include 'atmos|truehd' --size 2000-40000
  torrank custom add --name "well seeded" --seeders 20`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				saved, created, err := st.SaveCustomRule(cmd.Context(), def)
				if err != nil {
					return err
				}
				verb := "Updated"
				if created {
					verb = "Saved"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s custom rule %s\n", verb, saved.ID)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&def.ID, "id", "", "Token used in rules (generated when empty)")
	cmd.Flags().StringVar(&def.Name, "name", "", "Display name")
	cmd.Flags().StringVar(&def.Include, "include", "", "Regular expression the title or subtitle must match")
	cmd.Flags().StringVar(&def.Exclude, "exclude", "", "Regular expression the title or subtitle must not match")
	cmd.Flags().StringVar(&def.SizeRange, "size", "", "Size in MB: min-max, or min")
	cmd.Flags().StringVar(&def.Seeders, "seeders", "", "Minimum seeders")
	cmd.Flags().StringVar(&def.PublishTime, "publish-time", "", "Minutes since publishing: min-max, or min")
	return cmd
}

// newCustomRemoveCommand refuses to remove a token that the configured rule or
// a stored group still references.
func newCustomRemoveCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <id>",
		Aliases: []string{"rm"},
		Short:   "Remove a custom rule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := torrent.NormalizeToken(args[0])
			return cmdCtx.withStore(func(st *store.Store) error {
				err := st.RemoveCustomRule(cmd.Context(), id, func(ctx context.Context) error {
					_, err := cmdCtx.newEngine(ctx, st)
					return err
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed custom rule %s\n", id)
				return nil
			})
		},
	}
}
