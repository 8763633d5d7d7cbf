// Package turn accumulates streamed response fragments into complete turns.
// The service interleaves partial text parts and ends a turn with an
// explicit completion flag; nothing is reordered or deduplicated, arrival
// order is the only order.
package turn

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/auralis-ai/auralis/pkg/frames"
	"github.com/auralis-ai/auralis/pkg/wire"
)

const (
	// MetaTurnText marks the single frame carrying a completed turn body.
	MetaTurnText = "turn_text"
)

// Reassembler owns the per-connection turn accumulator. It consumes raw
// inbound transport frames and emits system frames for lifecycle signals
// plus one text frame per completed turn.
type Reassembler struct {
	mu         sync.Mutex
	sessionID  string
	sb         strings.Builder
	turnActive bool
	log        *slog.Logger
}

func NewReassembler(sessionID string) *Reassembler {
	return &Reassembler{
		sessionID: sessionID,
		log: slog.Default().With(
			slog.String("component", "reassembler"),
			slog.String("session_id", sessionID)),
	}
}

func (r *Reassembler) Name() string { return "turn_reassembler" }

// Active reports whether a turn is currently being accumulated.
func (r *Reassembler) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turnActive
}

// Reset drops any partially accumulated turn.
func (r *Reassembler) Reset() {
	r.mu.Lock()
	r.resetLocked()
	r.mu.Unlock()
}

func (r *Reassembler) resetLocked() {
	r.sb.Reset()
	r.turnActive = false
}

// Process inspects one inbound message for the three signal types, in
// order: setup-complete marker, error payload, content payload. A payload
// that fails to decode resets the accumulator and is swallowed; later
// messages keep flowing.
func (r *Reassembler) Process(f frames.Frame) ([]frames.Frame, error) {
	tf, ok := f.(frames.TextFrame)
	if !ok {
		return []frames.Frame{f}, nil
	}

	msg, err := wire.ParseServerMessage([]byte(tf.Text()))
	if err != nil {
		r.mu.Lock()
		r.resetLocked()
		r.mu.Unlock()
		r.log.Warn("malformed_server_message", slog.String("error", err.Error()))
		return nil, nil
	}

	now := time.Now().UnixNano()

	if msg.IsSetupComplete() {
		return []frames.Frame{frames.NewSystemFrame(r.sessionID, now, frames.SystemSetupComplete, nil)}, nil
	}

	if msg.Error != nil {
		r.mu.Lock()
		r.resetLocked()
		r.mu.Unlock()
		meta := map[string]string{frames.MetaMessage: msg.Error.Message}
		return []frames.Frame{frames.NewSystemFrame(r.sessionID, now, frames.SystemTurnError, meta)}, nil
	}

	if msg.ServerContent == nil {
		return nil, nil
	}

	var out []frames.Frame
	r.mu.Lock()
	for _, fragment := range msg.ServerContent.Fragments() {
		if !r.turnActive {
			r.turnActive = true
			out = append(out, frames.NewSystemFrame(r.sessionID, now, frames.SystemTurnStarted, nil))
		}
		r.sb.WriteString(fragment)
	}
	if msg.ServerContent.Interrupted {
		// Remote noticed new user speech mid-response. Observed only; the
		// accumulator is cleared by completion or error, never by this.
		r.log.Info("turn_interrupted", slog.Int("accumulated_bytes", r.sb.Len()))
		out = append(out, frames.NewSystemFrame(r.sessionID, now, frames.SystemInterrupted, nil))
	}
	if msg.ServerContent.TurnComplete {
		text := r.sb.String()
		r.resetLocked()
		// The completion marker is always surfaced, even for a turn that
		// carried no text, so the driver can release its pending-turn state
		// without waiting out the watchdog.
		out = append(out, frames.NewSystemFrame(r.sessionID, now, frames.SystemTurnComplete, nil))
		if text != "" {
			meta := map[string]string{MetaTurnText: "true"}
			out = append(out, frames.NewTextFrame(r.sessionID, now, text, meta))
		}
	}
	r.mu.Unlock()
	return out, nil
}
