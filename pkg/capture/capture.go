// Package capture abstracts the microphone. A source delivers fixed-size
// blocks of normalized float samples at 16 kHz through a periodic callback;
// everything downstream is sample-rate agnostic beyond that contract.
package capture

import (
	"context"
	"sync"
	"time"

	"github.com/auralis-ai/auralis/pkg/audio"
)

// BlockFunc receives one fixed-size block of samples in [-1, 1].
type BlockFunc func(samples []float32)

type Source interface {
	Name() string
	Start(ctx context.Context, fn BlockFunc) error
	Stop() error
}

type Config struct {
	SampleRate int `mapstructure:"sample_rate"`
	BlockSize  int `mapstructure:"block_size"`
}

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = audio.SampleRate
	}
	if c.BlockSize <= 0 {
		c.BlockSize = 4096
	}
	return c
}

// Scripted replays a prepared sample sequence in fixed blocks. Used by tests
// and the offline demo mode; silence follows the script until stopped.
type Scripted struct {
	cfg      Config
	samples  []float32
	realtime bool

	mu     sync.Mutex
	stopCh chan struct{}
	done   chan struct{}
}

func NewScripted(cfg Config, samples []float32, realtime bool) *Scripted {
	return &Scripted{cfg: cfg.withDefaults(), samples: samples, realtime: realtime}
}

func (s *Scripted) Name() string { return "scripted" }

func (s *Scripted) Start(ctx context.Context, fn BlockFunc) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.stopCh != nil {
		s.mu.Unlock()
		return nil
	}
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	interval := time.Duration(s.cfg.BlockSize) * time.Second / time.Duration(s.cfg.SampleRate)
	go func() {
		defer close(done)
		pos := 0
		silence := make([]float32, s.cfg.BlockSize)
		for {
			select {
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			default:
			}
			block := silence
			if pos < len(s.samples) {
				end := pos + s.cfg.BlockSize
				if end > len(s.samples) {
					end = len(s.samples)
				}
				block = make([]float32, s.cfg.BlockSize)
				copy(block, s.samples[pos:end])
				pos = end
			}
			fn(block)
			if s.realtime {
				select {
				case <-stopCh:
					return
				case <-time.After(interval):
				}
			} else {
				select {
				case <-stopCh:
					return
				case <-time.After(time.Millisecond):
				}
			}
		}
	}()
	return nil
}

func (s *Scripted) Stop() error {
	s.mu.Lock()
	stopCh, done := s.stopCh, s.done
	s.stopCh, s.done = nil, nil
	s.mu.Unlock()
	if stopCh == nil {
		return nil
	}
	close(stopCh)
	<-done
	return nil
}
