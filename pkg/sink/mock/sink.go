// Package mock provides a capturing sink for tests.
package mock

import (
	"sync"

	"github.com/auralis-ai/auralis/pkg/analysis"
)

type LogEntry struct {
	Transcript string
	Analysis   string
}

type Sink struct {
	mu        sync.Mutex
	Statuses  []string
	UIStates  []bool
	Displays  []*analysis.Result
	Log       []LogEntry
	Resets    int
	Listening int
	Analyzing int
	Errors    int
}

func New() *Sink { return &Sink{} }

func (s *Sink) UpdateStatus(text string) {
	s.mu.Lock()
	s.Statuses = append(s.Statuses, text)
	s.mu.Unlock()
}

func (s *Sink) UpdateUI(connected bool) {
	s.mu.Lock()
	s.UIStates = append(s.UIStates, connected)
	s.mu.Unlock()
}

func (s *Sink) UpdateDisplay(result *analysis.Result) {
	s.mu.Lock()
	s.Displays = append(s.Displays, result)
	s.mu.Unlock()
}

func (s *Sink) AddToTranscriptLog(transcript, analysisText string) {
	s.mu.Lock()
	s.Log = append(s.Log, LogEntry{Transcript: transcript, Analysis: analysisText})
	s.mu.Unlock()
}

func (s *Sink) ResetDisplay() {
	s.mu.Lock()
	s.Resets++
	s.mu.Unlock()
}

func (s *Sink) ShowListening() {
	s.mu.Lock()
	s.Listening++
	s.mu.Unlock()
}

func (s *Sink) ShowAnalyzing() {
	s.mu.Lock()
	s.Analyzing++
	s.mu.Unlock()
}

func (s *Sink) ShowError() {
	s.mu.Lock()
	s.Errors++
	s.mu.Unlock()
}

func (s *Sink) DisplayCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Displays)
}

func (s *Sink) LastStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Statuses) == 0 {
		return ""
	}
	return s.Statuses[len(s.Statuses)-1]
}

func (s *Sink) StatusHistory() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.Statuses))
	copy(out, s.Statuses)
	return out
}

func (s *Sink) UIHistory() []bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]bool, len(s.UIStates))
	copy(out, s.UIStates)
	return out
}

func (s *Sink) ErrorCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Errors
}

func (s *Sink) ResetCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Resets
}

func (s *Sink) LogEntries() []LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]LogEntry, len(s.Log))
	copy(out, s.Log)
	return out
}
