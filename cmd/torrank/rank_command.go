package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"torrank/internal/engine"
	"torrank/internal/rulegroup"
	"torrank/internal/rules"
	"torrank/internal/store"
	"torrank/internal/torrent"
)

func newRankCommand(ctx *commandContext) *cobra.Command {
	var (
		titles     []string
		groups     []string
		mediaType  string
		category   string
		jsonOutput bool
		showAll    bool
	)

	cmd := &cobra.Command{
		Use:   "rank [file]",
		Short: "Rank candidate resources by priority",
		Long: `Rank candidate resources against the configured rules.

Resources are read as a JSON array from file, or from stdin when file is "-".
Use --title (repeatable) to rank ad-hoc release titles instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resources, err := loadResources(cmd.InOrStdin(), args, titles)
			if err != nil {
				return err
			}
			req := engine.Request{Resources: resources, Groups: groups}
			if strings.TrimSpace(mediaType) != "" {
				req.Media = &rulegroup.Media{Type: strings.TrimSpace(mediaType), Category: strings.TrimSpace(category)}
			}

			return ctx.withEngine(cmd.Context(), func(eng *engine.Service, _ *store.Store) error {
				resp, err := eng.Rank(cmd.Context(), req)
				if err != nil {
					return fmt.Errorf("rank: %w", err)
				}
				if jsonOutput {
					return writeJSON(cmd, resp)
				}
				printRanking(cmd.OutOrStdout(), resources, resp, showAll)
				return nil
			})
		},
	}

	cmd.Flags().StringArrayVarP(&titles, "title", "t", nil, "Release title to rank (repeatable)")
	cmd.Flags().StringArrayVarP(&groups, "group", "g", nil, "Restrict to the named rule group (repeatable)")
	cmd.Flags().StringVar(&mediaType, "media", "", "Media type used to select rule groups (电影 or 电视剧)")
	cmd.Flags().StringVar(&category, "category", "", "Media category used to select rule groups")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&showAll, "all", false, "Also list resources that matched no layer")
	return cmd
}

func loadResources(stdin io.Reader, args []string, titles []string) ([]*torrent.Resource, error) {
	if len(args) == 0 && len(titles) == 0 {
		return nil, errors.New("provide a resource file, - for stdin, or --title")
	}
	var resources []*torrent.Resource
	if len(args) == 1 {
		var reader io.Reader
		if args[0] == "-" {
			reader = stdin
		} else {
			file, err := os.Open(args[0])
			if err != nil {
				return nil, fmt.Errorf("open resources: %w", err)
			}
			defer file.Close()
			reader = file
		}
		if err := json.NewDecoder(reader).Decode(&resources); err != nil {
			return nil, fmt.Errorf("decode resources: %w", err)
		}
	}
	for _, title := range titles {
		if strings.TrimSpace(title) == "" {
			continue
		}
		resources = append(resources, &torrent.Resource{Title: title})
	}
	return resources, nil
}

func printRanking(out io.Writer, resources []*torrent.Resource, resp engine.Response, showAll bool) {
	scope := "default rule"
	if len(resp.Groups) > 0 {
		scope = "groups " + strings.Join(resp.Groups, ", ")
	}
	fmt.Fprintf(out, "Ranked %d of %d resource(s) using %s\n", len(resp.Ranked), len(resources), scope)

	if len(resp.Ranked) > 0 {
		rows := make([][]string, 0, len(resp.Ranked))
		for i, item := range resp.Ranked {
			rows = append(rows, rankRow(i+1, item))
		}
		fmt.Fprintln(out, renderTable(out,
			[]string{"#", "Layer", "Priority", "Title", "Size", "Promotion", "Missing"},
			rows,
			0, 1, 2, 4,
		))
	}
	for _, msg := range resp.Errors {
		fmt.Fprintf(out, "skipped: %s\n", msg)
	}
	if showAll {
		// Ranked entries may be recognized copies, so match by label.
		ranked := make(map[string]int, len(resp.Ranked))
		for _, item := range resp.Ranked {
			ranked[item.Resource.Label()]++
		}
		for _, r := range resources {
			if label := r.Label(); ranked[label] > 0 {
				ranked[label]--
				continue
			}
			fmt.Fprintf(out, "unmatched: %s\n", r.Label())
		}
	} else if resp.Unmatched > 0 {
		fmt.Fprintf(out, "%d resource(s) matched no layer (use --all to list them)\n", resp.Unmatched)
	}
}

func rankRow(position int, item rules.Ranked) []string {
	layer, priority := "-", "-"
	if item.Result.Ranked() {
		layer = strconv.Itoa(item.Result.Rank + 1)
		priority = strconv.Itoa(item.Result.Priority())
	}
	size := "-"
	if item.Resource.Size > 0 {
		size = humanize.IBytes(uint64(item.Resource.Size))
	}
	return []string{
		strconv.Itoa(position),
		layer,
		priority,
		item.Resource.Label(),
		size,
		item.Resource.PromotionLabel(),
		strings.Join(item.Result.Missing, ","),
	}
}
