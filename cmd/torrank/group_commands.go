package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"torrank/internal/engine"
	"torrank/internal/rulegroup"
	"torrank/internal/store"
)

func newGroupCommand(ctx *commandContext) *cobra.Command {
	groupCmd := &cobra.Command{
		Use:   "group",
		Short: "Manage rule groups",
		Long: `Manage rule groups.

A group carries its own priority rule and optionally applies only to a media
type (电影, 电视剧) and category. When several groups apply, the first ranks and
the others act as filters.`,
	}
	groupCmd.AddCommand(newGroupListCommand(ctx))
	groupCmd.AddCommand(newGroupSetCommand(ctx))
	groupCmd.AddCommand(newGroupRemoveCommand(ctx))
	return groupCmd
}

func newGroupListCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List rule groups in evaluation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				groups, err := st.Groups(cmd.Context())
				if err != nil {
					return err
				}
				if jsonOutput {
					if groups == nil {
						groups = []rulegroup.Group{}
					}
					return writeJSON(cmd, groups)
				}
				out := cmd.OutOrStdout()
				if len(groups) == 0 {
					fmt.Fprintln(out, "No rule groups defined")
					return nil
				}
				rows := make([][]string, 0, len(groups))
				for _, g := range groups {
					rows = append(rows, []string{g.Name, displayRule(g.RuleString), dash(g.MediaType), dash(g.Category)})
				}
				fmt.Fprintln(out, renderTable(out, []string{"Name", "Rule", "Media", "Category"}, rows))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newGroupSetCommand(ctx *commandContext) *cobra.Command {
	var mediaType, category string
	cmd := &cobra.Command{
		Use:   "set <name> <rule>",
		Short: "Create or replace a rule group",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			group := rulegroup.Group{Name: args[0], RuleString: args[1], MediaType: mediaType, Category: category}
			return ctx.withEngine(cmd.Context(), func(eng *engine.Service, st *store.Store) error {
				if _, err := eng.CompileRule(group.RuleString); err != nil {
					return fmt.Errorf("group %q: %w", group.Name, err)
				}
				if err := st.SaveGroup(cmd.Context(), group); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved rule group %s\n", group.Name)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&mediaType, "media", "", "Only apply to this media type (电影 or 电视剧)")
	cmd.Flags().StringVar(&category, "category", "", "Only apply to this category (requires --media)")
	return cmd
}

func newGroupRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a rule group",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(st *store.Store) error {
				if err := st.DeleteGroup(cmd.Context(), args[0]); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed rule group %s\n", args[0])
				return nil
			})
		},
	}
}

func dash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
