package transcript

import (
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Location identifies where in an entry an image payload was found.
type Location string

const (
	// LocationToolResult is message.content[0].content[*] when content[0]
	// is a tool_result block.
	LocationToolResult Location = "tool_result"

	// LocationToolUseResult is toolUseResult[*].
	LocationToolUseResult Location = "tool_use_result"
)

// ImageRef points at one embedded image inside an entry.
type ImageRef struct {
	Location Location

	// Item is the index of the image item within its list.
	Item int

	// DataPath is the gjson/sjson path of the source.data string.
	DataPath string

	// MediaType is source.media_type, if present.
	MediaType string

	// Data is the current base64 payload.
	Data string
}

// Images returns the image payloads of a raw entry at both known locations,
// tool result first. Lines that are not JSON objects, or that do not match
// either shape, have no payloads.
func Images(raw []byte) []ImageRef {
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil
	}
	refs := ToolResultImages(root)
	return append(refs, ToolUseResultImages(root)...)
}

// ToolResultImages looks inside message.content[0] when it is a tool_result
// and returns the image items of its content list.
func ToolResultImages(root gjson.Result) []ImageRef {
	content := root.Get("message.content")
	if !content.IsArray() {
		return nil
	}
	first := content.Get("0")
	if !first.IsObject() || first.Get("type").String() != "tool_result" {
		return nil
	}
	return collectImages(first.Get("content"), "message.content.0.content", LocationToolResult)
}

// ToolUseResultImages returns the image items of a top-level toolUseResult
// list. Object or string toolUseResult values carry no payloads.
func ToolUseResultImages(root gjson.Result) []ImageRef {
	return collectImages(root.Get("toolUseResult"), "toolUseResult", LocationToolUseResult)
}

func collectImages(list gjson.Result, prefix string, loc Location) []ImageRef {
	if !list.IsArray() {
		return nil
	}
	var refs []ImageRef
	i := 0
	list.ForEach(func(_, item gjson.Result) bool {
		if isImageItem(item) {
			refs = append(refs, ImageRef{
				Location:  loc,
				Item:      i,
				DataPath:  fmt.Sprintf("%s.%d.source.data", prefix, i),
				MediaType: item.Get("source.media_type").String(),
				Data:      item.Get("source.data").Str,
			})
		}
		i++
		return true
	})
	return refs
}

func isImageItem(item gjson.Result) bool {
	if !item.IsObject() {
		return false
	}
	typ := item.Get("type")
	if typ.Type != gjson.String || typ.Str != "image" {
		return false
	}
	return item.Get("source.data").Type == gjson.String
}

// ReplaceImages sets source.data of every ref to placeholder. Refs whose
// data already equals placeholder are left alone. It returns the edited
// line and whether any byte changed; raw itself is not modified.
func ReplaceImages(raw []byte, refs []ImageRef, placeholder string) ([]byte, bool, error) {
	out := raw
	changed := false
	for _, ref := range refs {
		if ref.Data == placeholder {
			continue
		}
		next, err := sjson.SetBytes(out, ref.DataPath, placeholder)
		if err != nil {
			return raw, false, fmt.Errorf("set %s: %w", ref.DataPath, err)
		}
		out = next
		changed = true
	}
	return out, changed, nil
}
