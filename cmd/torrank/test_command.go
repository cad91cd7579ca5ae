package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"torrank/internal/engine"
	"torrank/internal/store"
)

func newTestCommand(ctx *commandContext) *cobra.Command {
	var (
		group      string
		rule       string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "test <title> [subtitle]",
		Short: "Show which layer a release title lands in",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := engine.TestRequest{Title: args[0], Group: group, Rule: rule}
			if len(args) == 2 {
				req.Subtitle = args[1]
			}
			return ctx.withEngine(cmd.Context(), func(eng *engine.Service, _ *store.Store) error {
				result, err := eng.Test(cmd.Context(), req)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, result)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Rule:     %s\n", displayRule(result.Rule))
				if !result.Matched {
					fmt.Fprintln(out, "Result:   no layer matched")
				} else if result.Priority == 0 {
					fmt.Fprintln(out, "Result:   passes (no priority rule)")
				} else {
					fmt.Fprintf(out, "Result:   layer %d (%s)\n", result.Priority, result.Layer)
				}
				if len(result.Missing) > 0 {
					fmt.Fprintf(out, "Missing:  %s\n", strings.Join(result.Missing, ", "))
				}
				fmt.Fprintf(out, "Priority: %s\n", strconv.Itoa(result.Priority))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&group, "group", "g", "", "Test against the named rule group")
	cmd.Flags().StringVarP(&rule, "rule", "r", "", "Test against this rule instead of the configured one")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func displayRule(rule string) string {
	if rule == "" {
		return "(none)"
	}
	return rule
}
