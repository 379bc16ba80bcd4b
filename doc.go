// Package transcriptpg keeps agent session transcripts small by evicting old
// screenshots.
//
// Agent runtimes append every tool call to a JSON-lines transcript. Device
// automation agents attach a base64 screenshot to most tool results, so the
// transcript (and the context rebuilt from it) grows by hundreds of kilobytes
// per step. transcriptpg runs as a PostToolUse hook: after each matching tool
// call it keeps the images of the last N image-bearing entries and replaces
// older image data with a 1x1 placeholder. Every other byte of the file is
// left alone.
//
// # Quick Start
//
//	client, err := transcriptpg.New(transcriptpg.Config{
//	    Compaction:  &compaction.Config{Window: 10},
//	    ToolPattern: "mcp__gbox-android__.*",
//	}, transcriptpg.WithLogger(slog.Default()))
//
//	input, _ := hooks.DecodePostToolUseInput(os.Stdin)
//	result, err := client.HandlePostToolUse(ctx, input)
//
// # Recording History
//
// With a store configured, each compaction is recorded as a
// storage.CompactionEvent:
//
//	pool, _ := pgxpool.New(ctx, connString)
//	store := storage.NewPostgresStore(pool)
//	_ = store.Migrate(ctx)
//	client, _ := transcriptpg.New(transcriptpg.Config{}, transcriptpg.WithStore(store))
//	events, _ := client.History(ctx, sessionID)
//
// # Hooks
//
// Observability hooks run around each compaction:
//
//	hooks.DefaultLoggingHooks().Register(client.Hooks())
//
// The cmd/transcriptpg command wraps all of this for use from a runtime's
// hook configuration.
package transcriptpg
