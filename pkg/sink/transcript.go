package sink

import (
	"sync"
	"time"
)

const DefaultTranscriptCap = 200

type TranscriptEntry struct {
	Timestamp  time.Time
	Transcript string
	Analysis   string
}

// TranscriptLog is an append-only session log with FIFO eviction once the
// cap is reached.
type TranscriptLog struct {
	mu      sync.Mutex
	cap     int
	entries []TranscriptEntry
}

func NewTranscriptLog(capacity int) *TranscriptLog {
	if capacity <= 0 {
		capacity = DefaultTranscriptCap
	}
	return &TranscriptLog{cap: capacity}
}

func (l *TranscriptLog) Add(transcript, analysis string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, TranscriptEntry{
		Timestamp:  time.Now(),
		Transcript: transcript,
		Analysis:   analysis,
	})
	if len(l.entries) > l.cap {
		l.entries = l.entries[len(l.entries)-l.cap:]
	}
}

func (l *TranscriptLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Entries returns a copy in insertion order, oldest first.
func (l *TranscriptLog) Entries() []TranscriptEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]TranscriptEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *TranscriptLog) Reset() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}
