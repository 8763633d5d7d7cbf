// Package pipeline runs inbound frames through an ordered list of
// processors. This client has one fixed linear path, so the chain is a
// synchronous loop; a processor error is logged and the frame dropped, it
// never stops the session.
package pipeline

import (
	"log/slog"

	"github.com/auralis-ai/auralis/pkg/frames"
	"github.com/auralis-ai/auralis/pkg/metrics"
)

type FrameProcessor interface {
	Process(frames.Frame) ([]frames.Frame, error)
	Name() string
}

type Chain struct {
	procs []FrameProcessor
	obs   metrics.Observer
	log   *slog.Logger
}

func NewChain(procs ...FrameProcessor) *Chain {
	return &Chain{
		procs: procs,
		obs:   metrics.NoopObserver{},
		log:   slog.Default().With(slog.String("component", "pipeline")),
	}
}

func (c *Chain) SetObserver(obs metrics.Observer) {
	if obs != nil {
		c.obs = obs
	}
}

// Process pushes one frame through every stage and returns whatever the last
// stage emits.
func (c *Chain) Process(f frames.Frame) []frames.Frame {
	current := []frames.Frame{f}
	for _, p := range c.procs {
		var next []frames.Frame
		for _, in := range current {
			out, err := p.Process(in)
			if err != nil {
				c.log.Warn("processor_error",
					slog.String("processor", p.Name()),
					slog.String("error", err.Error()))
				continue
			}
			next = append(next, out...)
		}
		current = next
		if len(current) == 0 {
			return nil
		}
	}
	return current
}
