// Package report renders a transcript as a standalone HTML page for review.
// Text blocks are rendered as markdown and sanitized; kept screenshots are
// inlined and evicted ones are marked.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tidwall/gjson"
	"github.com/youssefsiam38/transcriptpg/compaction"
	"github.com/youssefsiam38/transcriptpg/transcript"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Options controls rendering
type Options struct {
	// Title is shown in the page header. Default: "Transcript".
	Title string

	// Placeholder identifies evicted image data.
	// Default: compaction.DefaultPlaceholder.
	Placeholder string

	// OmitImages replaces kept images with a size note instead of inlining them.
	OmitImages bool
}

// Block kinds
const (
	KindText       = "text"
	KindThinking   = "thinking"
	KindToolUse    = "tool_use"
	KindToolResult = "tool_result"
	KindImage      = "image"
)

// Summary aggregates what the page shows
type Summary struct {
	Entries        int
	MalformedLines int
	ImagesKept     int
	ImagesEvicted  int
}

type pageView struct {
	Title   string
	Summary Summary
	Entries []entryView
}

type entryView struct {
	Index     int
	Type      string
	Role      string
	Malformed bool
	Blocks    []blockView
}

type blockView struct {
	Kind      string
	HTML      template.HTML
	Name      string
	Image     template.URL
	MediaType string
	Size      int
	Evicted   bool
	Omitted   bool
}

var (
	markdownOnce   sync.Once
	markdownEngine goldmark.Markdown
	sanitizer      *bluemonday.Policy
)

func engines() (goldmark.Markdown, *bluemonday.Policy) {
	markdownOnce.Do(func() {
		markdownEngine = goldmark.New(goldmark.WithExtensions(extension.GFM))
		sanitizer = bluemonday.UGCPolicy()
	})
	return markdownEngine, sanitizer
}

// markdown renders s to sanitized HTML.
func markdown(s string) template.HTML {
	if s == "" {
		return ""
	}
	md, policy := engines()
	var buf bytes.Buffer
	if err := md.Convert([]byte(s), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(s))
	}
	return template.HTML(policy.SanitizeBytes(buf.Bytes()))
}

// Render writes an HTML page for entries to w.
func Render(w io.Writer, entries []*transcript.Entry, opts Options) error {
	if opts.Title == "" {
		opts.Title = "Transcript"
	}
	if opts.Placeholder == "" {
		opts.Placeholder = compaction.DefaultPlaceholder
	}

	page := build(entries, opts)
	if err := pageTemplate.Execute(w, page); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

// build converts entries into the page model. Blank lines are skipped.
func build(entries []*transcript.Entry, opts Options) pageView {
	if opts.Placeholder == "" {
		opts.Placeholder = compaction.DefaultPlaceholder
	}

	page := pageView{Title: opts.Title}
	for _, e := range entries {
		if len(bytes.TrimSpace(e.Raw)) == 0 {
			continue
		}
		view := entryView{Index: e.Index}
		if !e.Valid {
			view.Malformed = true
			page.Summary.MalformedLines++
			page.Entries = append(page.Entries, view)
			continue
		}

		page.Summary.Entries++
		view.Type = e.Type()
		view.Role = e.Role()
		view.Blocks = entryBlocks(e.Result(), opts)
		for _, b := range view.Blocks {
			if b.Kind != KindImage {
				continue
			}
			if b.Evicted {
				page.Summary.ImagesEvicted++
			} else {
				page.Summary.ImagesKept++
			}
		}
		page.Entries = append(page.Entries, view)
	}
	return page
}

// Summarize returns only the summary for entries.
func Summarize(entries []*transcript.Entry, placeholder string) Summary {
	return build(entries, Options{Placeholder: placeholder, OmitImages: true}).Summary
}

func entryBlocks(root gjson.Result, opts Options) []blockView {
	var blocks []blockView

	content := root.Get("message.content")
	switch {
	case content.Type == gjson.String:
		blocks = append(blocks, blockView{Kind: KindText, HTML: markdown(content.String())})
	case content.IsArray():
		for _, item := range content.Array() {
			blocks = append(blocks, contentBlocks(item, opts)...)
		}
	}

	if tur := root.Get("toolUseResult"); tur.IsArray() {
		for _, item := range tur.Array() {
			if item.Get("type").String() == KindImage {
				blocks = append(blocks, imageBlock(item, opts))
			}
		}
	}

	return blocks
}

func contentBlocks(item gjson.Result, opts Options) []blockView {
	switch item.Get("type").String() {
	case KindText:
		return []blockView{{Kind: KindText, HTML: markdown(item.Get("text").String())}}
	case KindThinking:
		return []blockView{{Kind: KindThinking, HTML: markdown(item.Get("thinking").String())}}
	case KindToolUse:
		return []blockView{{Kind: KindToolUse, Name: item.Get("name").String(), HTML: codeBlock(item.Get("input").Raw)}}
	case KindImage:
		return []blockView{imageBlock(item, opts)}
	case KindToolResult:
		blocks := []blockView{{Kind: KindToolResult, Name: item.Get("tool_use_id").String()}}
		inner := item.Get("content")
		if inner.Type == gjson.String {
			blocks[0].HTML = markdown(inner.String())
			return blocks
		}
		if inner.IsArray() {
			for _, sub := range inner.Array() {
				blocks = append(blocks, contentBlocks(sub, opts)...)
			}
		}
		return blocks
	}
	return nil
}

func codeBlock(raw string) template.HTML {
	if raw == "" {
		return ""
	}
	return template.HTML("<pre><code>" + template.HTMLEscapeString(raw) + "</code></pre>")
}

var inlineMediaTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/webp": true,
}

func imageBlock(item gjson.Result, opts Options) blockView {
	data := item.Get("source.data").String()
	mediaType := item.Get("source.media_type").String()
	b := blockView{Kind: KindImage, MediaType: mediaType, Size: len(data)}

	switch {
	case data == opts.Placeholder:
		b.Evicted = true
	case opts.OmitImages || !inlineMediaTypes[mediaType] || data == "":
		b.Omitted = true
	default:
		b.Image = template.URL("data:" + mediaType + ";base64," + data)
	}
	return b
}

var pageTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 60rem; color: #1f2937; }
.entry { border: 1px solid #e5e7eb; border-radius: 6px; margin: 1rem 0; padding: 0.75rem 1rem; }
.entry header { font-size: 0.8rem; color: #6b7280; margin-bottom: 0.5rem; }
.malformed { background: #fef2f2; }
.thinking { color: #6b7280; font-style: italic; }
.tool { font-family: monospace; font-size: 0.85rem; color: #2563eb; }
.evicted { display: inline-block; padding: 0.25rem 0.5rem; background: #f3f4f6; color: #9ca3af; border-radius: 4px; }
img { max-width: 100%; max-height: 32rem; border: 1px solid #e5e7eb; }
pre { background: #f9fafb; padding: 0.5rem; overflow-x: auto; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
<p>{{.Summary.Entries}} entries, {{.Summary.ImagesKept}} images kept, {{.Summary.ImagesEvicted}} evicted{{if .Summary.MalformedLines}}, {{.Summary.MalformedLines}} malformed lines{{end}}</p>
{{range .Entries}}
<section class="entry{{if .Malformed}} malformed{{end}}" id="line-{{.Index}}">
<header>line {{.Index}}{{if .Type}} &middot; {{.Type}}{{end}}{{if .Role}} &middot; {{.Role}}{{end}}</header>
{{if .Malformed}}<p>malformed line</p>{{end}}
{{range .Blocks}}
{{if eq .Kind "text"}}<div class="text">{{.HTML}}</div>
{{else if eq .Kind "thinking"}}<div class="thinking">{{.HTML}}</div>
{{else if eq .Kind "tool_use"}}<div class="tool">tool_use {{.Name}}</div>{{.HTML}}
{{else if eq .Kind "tool_result"}}<div class="tool">tool_result {{.Name}}</div>{{.HTML}}
{{else if eq .Kind "image"}}{{if .Evicted}}<span class="evicted">image evicted</span>{{else if .Omitted}}<span class="evicted">{{.MediaType}} image, {{.Size}} bytes</span>{{else}}<img src="{{.Image}}" alt="screenshot">{{end}}
{{end}}
{{end}}
</section>
{{end}}
</body>
</html>
`))
