package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"torrank/internal/engine"
	"torrank/internal/rules"
	"torrank/internal/store"
)

type ruleReport struct {
	Name   string     `json:"name"`
	Rule   string     `json:"rule"`
	Layers [][]string `json:"layers"`
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "check [rule]",
		Short: "Validate a priority rule and show its layers",
		Long: `Validate a priority rule and show its compiled layers.

Without an argument the configured filter.rule and every stored rule group are
checked. Custom rule tokens from the store are accepted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd.Context(), func(eng *engine.Service, _ *store.Store) error {
				reports, err := collectRuleReports(eng, args)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(cmd, reports)
				}
				out := cmd.OutOrStdout()
				for i, report := range reports {
					if i > 0 {
						fmt.Fprintln(out)
					}
					printRuleReport(out, report)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func collectRuleReports(eng *engine.Service, args []string) ([]ruleReport, error) {
	if len(args) == 1 {
		rs, err := eng.CompileRule(args[0])
		if err != nil {
			return nil, fmt.Errorf("check rule: %w", err)
		}
		return []ruleReport{newRuleReport("argument", rs)}, nil
	}
	snap := eng.Snapshot()
	reports := []ruleReport{newRuleReport("default", snap.Default)}
	for _, g := range snap.Groups {
		reports = append(reports, newRuleReport("group "+g.Name, g.Rules))
	}
	return reports, nil
}

func newRuleReport(name string, rs *rules.RuleSet) ruleReport {
	return ruleReport{Name: name, Rule: rs.String(), Layers: rs.Describe()}
}

func printRuleReport(out io.Writer, report ruleReport) {
	if len(report.Layers) == 0 {
		fmt.Fprintf(out, "%s: no priority rule; every resource passes through\n", report.Name)
		return
	}
	fmt.Fprintf(out, "%s: %d layer(s)\n", report.Name, len(report.Layers))
	rows := make([][]string, 0, len(report.Layers))
	for i, clauses := range report.Layers {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(rules.Result{Rank: i, Matched: true}.Priority()),
			strings.Join(clauses, " | "),
		})
	}
	fmt.Fprintln(out, renderTable(out, []string{"Layer", "Priority", "Expression"}, rows, 0, 1))
}
