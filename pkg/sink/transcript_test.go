package sink

import (
	"fmt"
	"testing"
)

func TestTranscriptLogFIFOEviction(t *testing.T) {
	l := NewTranscriptLog(200)
	for i := 0; i < 201; i++ {
		l.Add(fmt.Sprintf("line %d", i), "a")
	}
	if l.Len() != 200 {
		t.Fatalf("len %d, want 200", l.Len())
	}
	entries := l.Entries()
	if entries[0].Transcript != "line 1" {
		t.Fatalf("oldest entry %q, want line 1 after eviction", entries[0].Transcript)
	}
	if entries[199].Transcript != "line 200" {
		t.Fatalf("newest entry %q", entries[199].Transcript)
	}
}

func TestTranscriptLogReset(t *testing.T) {
	l := NewTranscriptLog(4)
	l.Add("x", "y")
	l.Reset()
	if l.Len() != 0 {
		t.Fatalf("expected empty log after reset")
	}
}
