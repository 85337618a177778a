package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"

	"github.com/vango-dev/falk/internal/config"
	"github.com/vango-dev/falk/pkg/client"
)

func runCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <url>",
		Short: "Load a page and run its startup sequence",
		Long: `Load the page at <url>, start the client runtime and print the
document once every initial callback has settled.

Initial callbacks and tokens come from falk.json.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := startRuntime(cmd.Context(), args[0], g)
			if err != nil {
				return err
			}
			defer rt.Close()

			rt.Wait()
			return finish(cmd.OutOrStdout(), rt, g)
		},
	}
	return cmd
}

// loadConfig reads the file named by --config, or the nearest falk.json.
func loadConfig(g *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if g.configPath != "" {
		cfg, err = config.LoadFile(g.configPath)
	} else {
		cfg, err = config.LoadFromWorkingDir()
	}
	if err != nil {
		return nil, err
	}

	if g.noWebSocket {
		cfg.SetWebSockets(false)
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	return cfg, cfg.Validate()
}

// startRuntime loads pageURL and runs the startup sequence.
func startRuntime(ctx context.Context, pageURL string, g *globalFlags) (*client.Runtime, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, err
	}
	if cfg.Path() != "" {
		info("Using %s", cfg.Path())
	}

	rt, err := client.Load(ctx, pageURL, client.Options{
		Config: cfg,
		Logger: cfg.Logger(os.Stderr),
	})
	if err != nil {
		return nil, err
	}
	if err := rt.Start(ctx); err != nil {
		rt.Close()
		return nil, err
	}

	if rt.WebSocketAvailable() {
		success("Connected to %s", pageURL)
	} else {
		warn("WebSocket unavailable, calls use HTTP")
	}
	return rt, nil
}

// finish prints the document to w and the tokens and metrics to stderr.
func finish(w io.Writer, rt *client.Runtime, g *globalFlags) error {
	if _, err := io.WriteString(w, rt.HTML()+"\n"); err != nil {
		return err
	}

	tokens := rt.Tokens()
	ids := make([]string, 0, len(tokens))
	for id := range tokens {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		info("token %s = %s", id, tokens[id])
	}

	if g.metrics {
		return writeMetrics(os.Stderr, rt.Gatherer())
	}
	return nil
}

func writeMetrics(w io.Writer, gatherer prometheus.Gatherer) error {
	if gatherer == nil {
		warn("Metrics registry cannot be gathered")
		return nil
	}
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
	}
	return nil
}
