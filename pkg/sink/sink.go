// Package sink defines the presentation boundary. Implementations render
// status, transcript and mood however they like; every call is fire and
// forget and must not block the session loop for long.
package sink

import "github.com/auralis-ai/auralis/pkg/analysis"

type Sink interface {
	UpdateStatus(text string)
	UpdateUI(connected bool)
	UpdateDisplay(result *analysis.Result)
	AddToTranscriptLog(transcript, analysisText string)
	ResetDisplay()
	ShowListening()
	ShowAnalyzing()
	ShowError()
}

// Nop discards every event. Used wherever a sink is optional.
type Nop struct{}

func (Nop) UpdateStatus(string)                 {}
func (Nop) UpdateUI(bool)                       {}
func (Nop) UpdateDisplay(*analysis.Result)      {}
func (Nop) AddToTranscriptLog(string, string)   {}
func (Nop) ResetDisplay()                       {}
func (Nop) ShowListening()                      {}
func (Nop) ShowAnalyzing()                      {}
func (Nop) ShowError()                          {}

var _ Sink = Nop{}
