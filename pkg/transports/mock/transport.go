// Package mock is an in-memory transport for tests. It implements the
// transports.Transport interface without any network dependency.
package mock

import (
	"context"
	"sync/atomic"

	"github.com/auralis-ai/auralis/pkg/frames"
)

type Transport struct {
	recvCh   chan frames.Frame
	sentCh   chan frames.Frame
	closed   atomic.Bool
	FailDial bool
}

func New() *Transport {
	return &Transport{
		recvCh: make(chan frames.Frame, 256),
		sentCh: make(chan frames.Frame, 256),
	}
}

func (t *Transport) Name() string { return "mock" }

func (t *Transport) Start(ctx context.Context) error {
	if t.FailDial {
		return context.DeadlineExceeded
	}
	return nil
}

func (t *Transport) Stop() error {
	if t.closed.CompareAndSwap(false, true) {
		close(t.recvCh)
		close(t.sentCh)
	}
	return nil
}

func (t *Transport) Recv() <-chan frames.Frame { return t.recvCh }

func (t *Transport) Send(f frames.Frame) error {
	if t.closed.Load() {
		return nil
	}
	select {
	case t.sentCh <- f:
	default:
	}
	return nil
}

// Push injects an inbound frame, as if the service had sent it.
func (t *Transport) Push(f frames.Frame) {
	if t.closed.Load() {
		return
	}
	select {
	case t.recvCh <- f:
	default:
	}
}

// PushText injects a raw inbound message payload.
func (t *Transport) PushText(sessionID, raw string) {
	t.Push(frames.NewTextFrame(sessionID, 0, raw, map[string]string{frames.MetaSource: "transport"}))
}

// Sent exposes outbound frames for inspection.
func (t *Transport) Sent() <-chan frames.Frame { return t.sentCh }
