package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/vango-dev/falk/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌─┐┬  ┬┌─
  ├┤ ├─┤│  ├┴┐
  └  ┴ ┴┴─┘┴ ┴
`

// globalFlags are shared by every command.
type globalFlags struct {
	configPath  string
	noWebSocket bool
	logLevel    string
	metrics     bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "falk",
		Short: "Drive a falk page from the command line",
		Long: `falk loads a server-driven page, runs its client runtime and
issues mutation calls against the server.

The runtime keeps the page in memory, talks to the server over a
WebSocket (falling back to HTTP) and patches every response into the
document. Use it for smoke tests, bots and protocol debugging.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&g.configPath, "config", "c", "", "Path to falk.json (default: nearest falk.json above the working directory)")
	flags.BoolVar(&g.noWebSocket, "no-websocket", false, "Send every call over HTTP")
	flags.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&g.metrics, "metrics", false, "Print runtime metrics after the command")

	rootCmd.AddCommand(
		runCmd(g),
		callCmd(g),
		versionCmd(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		errors.PrintError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// printBanner prints the falk ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// Status output goes to stderr so stdout carries only the document.

func success(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

func info(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "  %s\n", fmt.Sprintf(format, args...))
}

func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}

// errorMsg prints an error message.
func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[31m✗\033[0m %s\n", fmt.Sprintf(format, args...))
}
