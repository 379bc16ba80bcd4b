// Command transcriptpg keeps agent session transcripts small by replacing
// old screenshots with a placeholder. It is meant to run as a PostToolUse
// hook, and also offers inspection, reporting and a task-completion MCP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/youssefsiam38/transcriptpg/compaction"
)

// Version information (set at build time)
var version = "dev"

// exitError carries a specific process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "transcriptpg",
		Short: "Sliding-window image compaction for agent session transcripts",
		Long: `transcriptpg rewrites a JSON-lines session transcript so that only the
most recent image-bearing entries keep their screenshots. Older image data is
replaced with a 1x1 placeholder; every other byte of the file is preserved.

Configuration is read from --config (YAML), TRANSCRIPTPG_* environment
variables and flags, in increasing order of precedence.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.String("config", "", "path to a YAML config file")
	flags.Int("window", compaction.DefaultWindow, "number of recent image-bearing entries to keep")
	flags.String("tool-pattern", "", "regular expression for tool names that trigger compaction (empty matches all)")
	flags.String("database-url", "", "PostgreSQL URL for recording compaction events")
	flags.String("database-driver", DriverPgx, "database driver: pgx or sql")
	flags.String("log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		newHookCmd(),
		newCompactCmd(),
		newStatsCmd(),
		newReportCmd(),
		newHistoryCmd(),
		newMigrateCmd(),
		newServeTasksCmd(),
	)

	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		fmt.Fprintf(os.Stderr, "transcriptpg: %v\n", err)
		stop()
		os.Exit(code)
	}
}
