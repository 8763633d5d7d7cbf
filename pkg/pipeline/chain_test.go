package pipeline

import (
	"errors"
	"strings"
	"testing"

	"github.com/auralis-ai/auralis/pkg/frames"
)

type upperProc struct{}

func (upperProc) Name() string { return "upper" }

func (upperProc) Process(f frames.Frame) ([]frames.Frame, error) {
	tf, ok := f.(frames.TextFrame)
	if !ok {
		return []frames.Frame{f}, nil
	}
	return []frames.Frame{frames.NewTextFrame("s", tf.PTS(), strings.ToUpper(tf.Text()), nil)}, nil
}

type failingProc struct{}

func (failingProc) Name() string { return "failing" }

func (failingProc) Process(frames.Frame) ([]frames.Frame, error) {
	return nil, errors.New("boom")
}

func TestChainRunsStagesInOrder(t *testing.T) {
	c := NewChain(upperProc{})
	out := c.Process(frames.NewTextFrame("s", 1, "hello", nil))
	if len(out) != 1 {
		t.Fatalf("got %d frames, want 1", len(out))
	}
	if got := out[0].(frames.TextFrame).Text(); got != "HELLO" {
		t.Fatalf("text = %q, want HELLO", got)
	}
}

func TestChainDropsFrameOnProcessorError(t *testing.T) {
	c := NewChain(failingProc{}, upperProc{})
	out := c.Process(frames.NewTextFrame("s", 1, "hello", nil))
	if len(out) != 0 {
		t.Fatalf("got %d frames after failing stage, want 0", len(out))
	}
}
