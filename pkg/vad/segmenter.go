// Package vad segments a continuous microphone stream into utterances using
// RMS energy with hysteresis: two thresholds with a dead zone between them
// so borderline frames never flap the speech state.
package vad

import (
	"log/slog"
	"sync"
	"time"

	"github.com/auralis-ai/auralis/pkg/audio"
	"github.com/auralis-ai/auralis/pkg/frames"
)

type Config struct {
	SpeechThreshold  float64       `mapstructure:"speech_threshold"`
	SilenceThreshold float64       `mapstructure:"silence_threshold"`
	SpeechStart      int           `mapstructure:"speech_start_frames"`
	SilenceStart     int           `mapstructure:"silence_start_frames"`
	MinSpeech        time.Duration `mapstructure:"min_speech"`
	SilenceFlush     time.Duration `mapstructure:"silence_flush"`
	MaxUtterance     time.Duration `mapstructure:"max_utterance"`
}

func (c Config) withDefaults() Config {
	if c.SpeechThreshold <= 0 {
		c.SpeechThreshold = 0.015
	}
	if c.SilenceThreshold <= 0 {
		c.SilenceThreshold = 0.008
	}
	if c.SpeechStart <= 0 {
		c.SpeechStart = 2
	}
	if c.SilenceStart <= 0 {
		c.SilenceStart = 3
	}
	if c.MinSpeech <= 0 {
		c.MinSpeech = 300 * time.Millisecond
	}
	if c.SilenceFlush <= 0 {
		c.SilenceFlush = 1700 * time.Millisecond
	}
	if c.MaxUtterance <= 0 {
		c.MaxUtterance = 15 * time.Second
	}
	return c
}

// FlushFunc receives the concatenated PCM payload of one utterance.
type FlushFunc func(pcm []byte)

// Segmenter buffers audio frames between detected speech start and end. One
// utterance may be in flight at a time: after a flush the segmenter ignores
// input until Resolve is called, so overlapping turns cannot happen.
type Segmenter struct {
	mu  sync.Mutex
	cfg Config

	flush FlushFunc
	log   *slog.Logger

	consecutiveSpeech  int
	consecutiveSilence int
	hasSpeech          bool
	speechStart        time.Time
	buf                []frames.AudioFrame

	silenceTimer *time.Timer
	maxTimer     *time.Timer
	awaiting     bool
}

func NewSegmenter(cfg Config, flush FlushFunc) *Segmenter {
	return &Segmenter{
		cfg:   cfg.withDefaults(),
		flush: flush,
		log:   slog.Default().With(slog.String("component", "vad")),
	}
}

// Awaiting reports whether a flushed utterance is still unresolved.
func (s *Segmenter) Awaiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.awaiting
}

// Resolve re-opens the segmenter after the in-flight turn completed, failed
// or timed out.
func (s *Segmenter) Resolve() {
	s.mu.Lock()
	s.awaiting = false
	s.mu.Unlock()
}

// Process classifies one frame and advances the utterance state.
func (s *Segmenter) Process(f frames.AudioFrame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.awaiting {
		return
	}

	now := time.Now()
	level := audio.RMSPCM16(f.RawPayload())

	switch {
	case level > s.cfg.SpeechThreshold:
		s.consecutiveSpeech++
		s.consecutiveSilence = 0
		// Renewed speech cancels a pending silence flush.
		s.stopSilenceTimerLocked()
	case level < s.cfg.SilenceThreshold:
		s.consecutiveSilence++
		s.consecutiveSpeech = 0
	default:
		// Dead zone: counts toward neither streak.
		s.consecutiveSpeech = 0
		s.consecutiveSilence = 0
	}

	if s.consecutiveSpeech >= s.cfg.SpeechStart && !s.hasSpeech {
		s.hasSpeech = true
		s.speechStart = now
		s.log.Debug("speech_start", slog.Float64("rms", level))
	}

	if s.hasSpeech {
		s.buf = append(s.buf, f)

		elapsed := now.Sub(s.speechStart)
		if s.consecutiveSilence >= s.cfg.SilenceStart && elapsed > s.cfg.MinSpeech && s.silenceTimer == nil {
			s.silenceTimer = time.AfterFunc(s.cfg.SilenceFlush, s.flushUtterance)
		}
		if elapsed > s.cfg.MinSpeech && s.maxTimer == nil {
			remaining := s.cfg.MaxUtterance - elapsed
			if remaining < 0 {
				remaining = 0
			}
			s.maxTimer = time.AfterFunc(remaining, s.flushUtterance)
		}
	}
}

// flushUtterance fires from either one-shot timer.
func (s *Segmenter) flushUtterance() {
	s.mu.Lock()
	if !s.hasSpeech || len(s.buf) == 0 {
		// Nothing worth sending; discard silently.
		s.resetSpeechLocked()
		s.mu.Unlock()
		return
	}
	var total int
	for _, f := range s.buf {
		total += len(f.RawPayload())
	}
	pcm := make([]byte, 0, total)
	for _, f := range s.buf {
		pcm = append(pcm, f.RawPayload()...)
		frames.ReleaseAudioFrame(f)
	}
	duration := time.Since(s.speechStart)
	s.resetSpeechLocked()
	s.awaiting = true
	flush := s.flush
	s.mu.Unlock()

	s.log.Info("utterance_flushed",
		slog.Int("pcm_bytes", len(pcm)),
		slog.Duration("speech_duration", duration))
	if flush != nil {
		flush(pcm)
	}
}

// Reset drops all speech state and any buffered audio, cancelling pending
// timers. Called at teardown.
func (s *Segmenter) Reset() {
	s.mu.Lock()
	for _, f := range s.buf {
		frames.ReleaseAudioFrame(f)
	}
	s.resetSpeechLocked()
	s.awaiting = false
	s.mu.Unlock()
}

func (s *Segmenter) resetSpeechLocked() {
	s.buf = nil
	s.hasSpeech = false
	s.consecutiveSpeech = 0
	s.consecutiveSilence = 0
	s.speechStart = time.Time{}
	s.stopSilenceTimerLocked()
	if s.maxTimer != nil {
		s.maxTimer.Stop()
		s.maxTimer = nil
	}
}

func (s *Segmenter) stopSilenceTimerLocked() {
	if s.silenceTimer != nil {
		s.silenceTimer.Stop()
		s.silenceTimer = nil
	}
}

// streaks exposes the counters for invariant tests.
func (s *Segmenter) streaks() (speech, silence int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveSpeech, s.consecutiveSilence
}
