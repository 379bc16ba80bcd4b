package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/youssefsiam38/transcriptpg"
	"github.com/youssefsiam38/transcriptpg/compaction"
	"github.com/youssefsiam38/transcriptpg/hooks"
	"github.com/youssefsiam38/transcriptpg/report"
	"github.com/youssefsiam38/transcriptpg/taskserver"
	"github.com/youssefsiam38/transcriptpg/transcript"
)

// setup loads configuration and builds the logger for cmd.
func setup(cmd *cobra.Command) (*cliConfig, *slog.Logger, error) {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := loadConfig(configPath, cmd.Flags())
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newClient builds the root client, attaching the store when configured.
// A store that cannot be opened is logged and skipped when optional is set.
func newClient(ctx context.Context, cfg *cliConfig, logger *slog.Logger, optional bool) (*transcriptpg.Client, func(), error) {
	opts := []transcriptpg.Option{
		transcriptpg.WithLogger(logger),
		transcriptpg.WithAnthropicClient(cfg.anthropicClient()),
	}

	store, closeStore, err := cfg.openStore(ctx)
	switch {
	case err != nil && optional:
		logger.Warn("compaction events will not be recorded", "error", err)
		closeStore = func() {}
	case err != nil:
		return nil, nil, err
	case store != nil:
		opts = append(opts, transcriptpg.WithStore(store))
	}

	registry := hooks.NewRegistry()
	if logger.Enabled(ctx, slog.LevelDebug) {
		hooks.NewLoggingHooks(log.New(os.Stderr, "", log.LstdFlags)).Register(registry)
	}
	opts = append(opts, transcriptpg.WithHooks(registry))

	client, err := transcriptpg.New(cfg.clientConfig(), opts...)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return client, closeStore, nil
}

func newHookCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hook",
		Short: "Handle a PostToolUse hook event from stdin",
		Long: `Reads the PostToolUse JSON document from stdin and compacts the transcript
it names when the tool matches --tool-pattern.

The command exits 0 unless the transcript could not be read or written, or
the configuration is invalid, so it never blocks the agent on benign
conditions such as a missing transcript or an unmatched tool.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return &exitError{code: 1, err: err}
			}

			err = runHook(cmd.Context(), cfg, logger, cmd.InOrStdin())
			if code := hookExitCode(err); code != 0 {
				return &exitError{code: code, err: err}
			}
			if err != nil {
				logger.Warn("compaction skipped", "error", err)
			}
			return nil
		},
	}
}

// runHook handles one hook event.
func runHook(ctx context.Context, cfg *cliConfig, logger *slog.Logger, stdin io.Reader) error {
	input, err := hooks.DecodePostToolUseInput(stdin)
	if err != nil {
		logger.Warn("ignoring hook input", "error", err)
		return nil
	}

	client, closeStore, err := newClient(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer closeStore()

	result, err := client.HandlePostToolUse(ctx, input)
	if errors.Is(err, transcriptpg.ErrToolNotMatched) {
		return nil
	}
	if result == nil {
		return err
	}

	if result.Missing {
		logger.Info("transcript not found", "path", input.TranscriptPath)
		return err
	}

	logger.Info("transcript compaction",
		"path", input.TranscriptPath,
		"tool", input.ToolName,
		"found", result.ImageEntries,
		"compacted", result.Compacted,
		"rewritten", result.Rewritten,
	)
	return err
}

// hookExitCode maps a hook error to the process exit code. Only I/O
// failures and configuration errors are reported as failures.
func hookExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, compaction.ErrIO),
		errors.Is(err, compaction.ErrInvalidConfig),
		errors.Is(err, transcriptpg.ErrInvalidConfig):
		return 1
	default:
		return 0
	}
}

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact <transcript>...",
		Short: "Compact one or more transcripts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			client, closeStore, err := newClient(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer closeStore()

			out := cmd.OutOrStdout()
			for _, path := range args {
				result, err := client.Compact(cmd.Context(), path)
				if err != nil && result == nil {
					return err
				}
				if err != nil {
					logger.Warn("compaction event not recorded", "path", path, "error", err)
				}
				if result.Missing {
					fmt.Fprintf(out, "%s: not found\n", path)
					continue
				}
				fmt.Fprintf(out, "%s: found=%d compacted=%d rewritten=%t bytes=%d->%d\n",
					path, result.ImageEntries, result.Compacted, result.Rewritten,
					result.BytesBefore, result.BytesAfter)
			}
			return nil
		},
	}
}

func newStatsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats <transcript>",
		Short: "Show image and token statistics for a transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			client, closeStore, err := newClient(cmd.Context(), cfg, logger, true)
			if err != nil {
				return err
			}
			defer closeStore()

			stats, err := client.Stats(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(stats)
			}
			return printStats(out, stats, cfg.Window)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print statistics as JSON")
	return cmd
}

func printStats(out io.Writer, stats *compaction.Stats, window int) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "path\t%s\n", stats.Path)
	fmt.Fprintf(tw, "lines\t%d (%d malformed)\n", stats.TotalLines, stats.MalformedLines)
	fmt.Fprintf(tw, "image entries\t%d (window %d)\n", stats.ImageEntries, window)
	fmt.Fprintf(tw, "image payloads\t%d (%d evicted)\n", stats.ImagePayloads, stats.EvictedPayloads)
	fmt.Fprintf(tw, "image bytes\t%d of %d\n", stats.ImageBytes, stats.TotalBytes)
	fmt.Fprintf(tw, "estimated tokens\t%d (api=%t)\n", stats.EstimatedTokens, stats.UsedTokenAPI)
	fmt.Fprintf(tw, "needs compaction\t%t\n", stats.NeedsCompaction)

	if data, err := os.ReadFile(stats.Path); err == nil {
		c := taskserver.ScanCompletion(transcript.Split(data))
		if c.Finished {
			fmt.Fprintf(tw, "task finished\tsuccess=%t\n", c.Success)
		}
		for _, answer := range c.Answers {
			fmt.Fprintf(tw, "answer\t%s\n", answer)
		}
	}
	return tw.Flush()
}

func newReportCmd() *cobra.Command {
	var (
		output     string
		title      string
		omitImages bool
	)

	cmd := &cobra.Command{
		Use:   "report <transcript>",
		Short: "Render a transcript as an HTML page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup(cmd)
			if err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read transcript: %w", err)
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create report: %w", err)
				}
				defer f.Close()
				w = f
			}

			if title == "" {
				title = args[0]
			}
			return report.Render(w, transcript.Split(data), report.Options{
				Title:       title,
				Placeholder: cfg.Placeholder,
				OmitImages:  omitImages,
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to a file instead of stdout")
	cmd.Flags().StringVar(&title, "title", "", "page title (default: the transcript path)")
	cmd.Flags().BoolVar(&omitImages, "omit-images", false, "do not inline kept screenshots")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <session-id>...",
		Short: "List recorded compaction events for sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("%w: --database-url is required", transcriptpg.ErrInvalidConfig)
			}

			client, closeStore, err := newClient(cmd.Context(), cfg, logger, false)
			if err != nil {
				return err
			}
			defer closeStore()

			events, err := client.History(cmd.Context(), args...)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tSESSION\tTOOL\tFOUND\tCOMPACTED\tSAVED\tPATH")
			for _, e := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					e.CreatedAt.Format("2006-01-02 15:04:05"), e.SessionID, e.ToolName,
					e.ImageEntries, e.EntriesCompacted, e.BytesSaved(), e.TranscriptPath)
			}
			return tw.Flush()
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the compaction events table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("%w: --database-url is required", transcriptpg.ErrInvalidConfig)
			}

			store, closeStore, err := cfg.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			if err := store.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info("schema migrated", "driver", cfg.DatabaseDriver)
			return nil
		},
	}
}

func newServeTasksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve-tasks",
		Short: "Serve the task-completion MCP server over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup(cmd)
			if err != nil {
				return err
			}

			compactor, err := compaction.New(cfg.anthropicClient(), cfg.compactionConfig(), logger)
			if err != nil {
				return err
			}

			logger.Debug("serving task-completion MCP server", "name", taskserver.ServerName)
			return taskserver.ServeStdio(taskserver.New(compactor))
		},
	}
}
