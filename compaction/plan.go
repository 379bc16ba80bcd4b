package compaction

import (
	"bytes"

	"github.com/youssefsiam38/transcriptpg/transcript"
)

// imageLine is an image-bearing entry and its payloads.
type imageLine struct {
	entry *transcript.Entry
	refs  []transcript.ImageRef
}

// evictionPlan is the outcome of scanning a transcript.
type evictionPlan struct {
	// images holds every image-bearing entry in line order.
	images []imageLine

	// evict is the prefix of images outside the window.
	evict []imageLine

	malformed      int
	malformedLines []int
}

// planEvictions counts all image-bearing entries first and only then picks
// the ones to evict: entry k (0-based among image-bearing entries) is
// evicted iff N >= window and k < N-window. Eligibility depends on N, so it
// cannot be decided while scanning.
func planEvictions(entries []*transcript.Entry, window int) *evictionPlan {
	p := &evictionPlan{}

	for _, e := range entries {
		if !e.Valid {
			if len(bytes.TrimSpace(e.Raw)) > 0 {
				p.malformed++
				p.malformedLines = append(p.malformedLines, e.Index)
			}
			continue
		}
		if refs := e.Images(); len(refs) > 0 {
			p.images = append(p.images, imageLine{entry: e, refs: refs})
		}
	}

	if n := len(p.images); n >= window {
		p.evict = p.images[:n-window]
	}

	return p
}
