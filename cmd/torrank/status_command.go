package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"torrank/internal/config"
	"torrank/internal/daemon"
	"torrank/internal/engine"
	"torrank/internal/store"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset        = "\x1b[0m"
	statusLabelWidth = 10
)

var statusStyles = map[statusKind]struct{ label, color string }{
	statusInfo:  {"INFO", "\x1b[34m"},
	statusOK:    {"OK", "\x1b[32m"},
	statusWarn:  {"WARN", "\x1b[33m"},
	statusError: {"ERROR", "\x1b[31m"},
}

func statusLine(label string, kind statusKind, message string, colorize bool) string {
	style := statusStyles[kind]
	line := fmt.Sprintf("  %-*s [%s] %s", statusLabelWidth, label+":", style.label, message)
	if colorize {
		return style.color + line + ansiReset
	}
	return line
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, rule, store and daemon health",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := isTerminal(out)
			fmt.Fprintln(out, "torrank status")

			if ctx.configExists {
				fmt.Fprintln(out, statusLine("Config", statusOK, ctx.configPath, colorize))
			} else {
				fmt.Fprintln(out, statusLine("Config", statusInfo, "no config file; using defaults", colorize))
			}

			storeErr := ctx.withStore(func(st *store.Store) error {
				health, err := st.Health(cmd.Context())
				if err != nil {
					fmt.Fprintln(out, statusLine("Database", statusError, err.Error(), colorize))
				} else {
					fmt.Fprintln(out, statusLine("Database", statusOK,
						fmt.Sprintf("%s (schema v%d)", health.Path, health.SchemaVersion), colorize))
				}
				eng, err := ctx.newEngine(cmd.Context(), st)
				if err != nil {
					fmt.Fprintln(out, statusLine("Rules", statusError, err.Error(), colorize))
					return nil
				}
				fmt.Fprintln(out, statusLine("Rules", statusOK, describeSnapshot(eng.Snapshot()), colorize))
				return nil
			})
			if storeErr != nil {
				fmt.Fprintln(out, statusLine("Database", statusError, storeErr.Error(), colorize))
			}

			printDaemonStatus(cmd.Context(), out, cfg, colorize)
			return nil
		},
	}
}

func describeSnapshot(snap *engine.Snapshot) string {
	rule := "no default rule"
	if snap.Default.Enabled() {
		rule = fmt.Sprintf("%d layer(s)", snap.Default.Len())
	}
	mode := "lenient"
	if snap.Filter.Strict {
		mode = "strict"
	}
	return fmt.Sprintf("%s, %d group(s), %d custom rule(s), %s", rule, len(snap.Groups), len(snap.Custom), mode)
}

func printDaemonStatus(ctx context.Context, out io.Writer, cfg *config.Config, colorize bool) {
	status, err := fetchDaemonStatus(ctx, cfg)
	if err != nil {
		fmt.Fprintln(out, statusLine("Daemon", statusWarn, "not reachable: "+err.Error(), colorize))
		return
	}
	fmt.Fprintln(out, statusLine("Daemon", statusOK,
		fmt.Sprintf("running at %s (pid %d, snapshot v%d)", status.Address, status.PID, status.Version), colorize))
}

func fetchDaemonStatus(ctx context.Context, cfg *config.Config) (*daemon.Status, error) {
	host, port, err := net.SplitHostPort(cfg.Paths.APIBind)
	if err != nil {
		return nil, err
	}
	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}
	reqCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	url := "http://" + net.JoinHostPort(host, port) + "/api/status"
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if cfg.Paths.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Paths.APIToken)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", url, resp.Status)
	}
	var status daemon.Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}
