// Package compaction keeps the image payloads of a session transcript within
// a sliding window.
//
// A transcript is a JSON-lines file appended to by an agent runtime. Tool
// results that carry screenshots are "image-bearing entries". Given a window
// W and N image-bearing entries, the oldest N-W of them have every image's
// source.data replaced with a placeholder; the newest W are left alone.
// Nothing is remembered between calls: each call recounts from the file, so
// running it twice is the same as running it once.
//
// # Guarantees
//
//   - Lines that are not changed are written back byte for byte, including
//     lines that are not valid JSON.
//   - Line count and order never change.
//   - The file is replaced atomically (temp file, fsync, rename) and only
//     when at least one line changed.
//   - A missing transcript is not an error and is never created.
//   - Calls on the same path are serialized in process and, on Unix,
//     across processes with flock on "<path>.lock". The lock file is
//     removed on release. Where it cannot be created, only the in-process
//     lock applies.
//   - Lines appended by the runtime while a rewrite is in flight are kept.
//
// # Usage
//
//	compactor, err := compaction.New(nil, &compaction.Config{Window: 10}, slog.Default())
//	result, err := compactor.Compact(ctx, "/path/to/session.jsonl")
//	fmt.Println(result.ImageEntries, result.Compacted, result.Rewritten)
//
// Stats reports the image and token footprint of a transcript without
// modifying it. With an Anthropic client and UseTokenCountingAPI set, token
// counts come from the Messages.CountTokens API; otherwise they are
// approximated.
package compaction
