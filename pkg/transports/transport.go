package transports

import (
	"context"

	"github.com/auralis-ai/auralis/pkg/frames"
)

// Transport is the bidirectional message channel to the analysis service.
// Implementations own their network lifecycle. Inbound payloads arrive as
// text frames on Recv; connection lifecycle events arrive as system frames
// (conn_open, conn_close, conn_error) on the same channel, and Recv closes
// after teardown.
type Transport interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Recv() <-chan frames.Frame
	Send(frames.Frame) error
}
