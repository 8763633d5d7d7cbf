// Package session owns the connection lifecycle: the setup handshake,
// outbound audio dispatch, inbound turn handling, and teardown. All mutable
// per-connection state lives on the Driver; there are no package-level
// singletons.
package session

import (
	"fmt"

	"github.com/auralis-ai/auralis/pkg/errorsx"
)

type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateAwaitingSetup State = "awaiting_setup"
	StateReady         State = "ready"
	StateStreaming     State = "streaming"
	StateTurnPending   State = "turn_pending"
	StateError         State = "error"
)

func (s State) String() string { return string(s) }

var validTransitions = map[State][]State{
	StateDisconnected:  {StateConnecting},
	StateConnecting:    {StateAwaitingSetup, StateError, StateDisconnected},
	StateAwaitingSetup: {StateReady, StateError, StateDisconnected},
	StateReady:         {StateTurnPending, StateStreaming, StateError, StateDisconnected},
	StateStreaming:     {StateReady, StateError, StateDisconnected},
	StateTurnPending:   {StateReady, StateError, StateDisconnected},
	StateError:         {StateDisconnected},
}

func canTransition(from, to State) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func transitionErr(from, to State) error {
	return errorsx.Wrap(fmt.Errorf("invalid transition %s -> %s", from, to), errorsx.ReasonBadState)
}
