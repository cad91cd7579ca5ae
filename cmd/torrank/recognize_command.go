package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"torrank/internal/recognize"
	"torrank/internal/torrent"
)

func newRecognizeCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:         "recognize <title> [subtitle]",
		Short:       "Show the attributes recognized from a release title",
		Args:        cobra.RangeArgs(1, 2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			resource := &torrent.Resource{Title: args[0]}
			if len(args) == 2 {
				resource.Description = args[1]
			}
			recognize.Fill(resource)
			if jsonOutput {
				return writeJSON(cmd, resource.Attributes)
			}

			rows := make([][]string, 0, len(torrent.Tokens()))
			for _, info := range torrent.Tokens() {
				_, get, _ := torrent.Lookup(info.Name)
				value, known := get(resource)
				cell := "?"
				if known {
					cell = yesNo(value)
				}
				rows = append(rows, []string{info.Name, cell, info.Description})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(out, []string{"Token", "Value", "Meaning"}, rows))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}
