package compaction

import (
	"strings"
	"testing"

	"github.com/youssefsiam38/transcriptpg/transcript"
)

func TestPlanEvictions(t *testing.T) {
	tests := []struct {
		name      string
		window    int
		wantN     int
		wantEvict []int // line indices
	}{
		{name: "window larger than count", window: 10, wantN: 6},
		{name: "window equals count", window: 6, wantN: 6},
		{name: "window three", window: 3, wantN: 6, wantEvict: []int{1, 3, 5}},
		{name: "window one", window: 1, wantN: 6, wantEvict: []int{1, 3, 5, 7, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries := transcript.Split([]byte(strings.Join(scenarioLog(), "\n")))
			p := planEvictions(entries, tt.window)

			if len(p.images) != tt.wantN {
				t.Errorf("image entries = %d, want %d", len(p.images), tt.wantN)
			}
			if len(p.evict) != len(tt.wantEvict) {
				t.Fatalf("evict = %d entries, want %d", len(p.evict), len(tt.wantEvict))
			}
			for i, line := range p.evict {
				if line.entry.Index != tt.wantEvict[i] {
					t.Errorf("evict[%d] = line %d, want %d", i, line.entry.Index, tt.wantEvict[i])
				}
			}
		})
	}
}

func TestPlanEvictions_CountsMalformedNotBlank(t *testing.T) {
	entries := transcript.Split([]byte(toolUseResultLine(0) + "\n\n   \n{oops\n" + toolUseResultLine(1) + "\n"))
	p := planEvictions(entries, 1)

	// Whitespace-only lines count as blank.
	if p.malformed != 1 {
		t.Errorf("malformed = %d, want 1", p.malformed)
	}
	if len(p.malformedLines) != 1 || p.malformedLines[0] != 3 {
		t.Errorf("malformedLines = %v, want [3]", p.malformedLines)
	}
	if len(p.evict) != 1 || p.evict[0].entry.Index != 0 {
		t.Errorf("unexpected evictions: %+v", p.evict)
	}
}

func TestPathLocks(t *testing.T) {
	l := newPathLocks()

	unlockA := l.lock("a/../b.jsonl")
	unlockB := l.lock("c.jsonl")
	if l.size() != 2 {
		t.Errorf("size = %d, want 2", l.size())
	}

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := l.lock("b.jsonl")
		close(acquired)
		unlock()
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same path acquired while held")
	default:
	}

	unlockA()
	<-acquired
	<-released
	unlockB()

	if l.size() != 0 {
		t.Errorf("size = %d after unlock, want 0", l.size())
	}
}
