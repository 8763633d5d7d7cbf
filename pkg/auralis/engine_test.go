package auralis

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/auralis-ai/auralis/pkg/session"
	sinkmock "github.com/auralis-ai/auralis/pkg/sink/mock"
	transportmock "github.com/auralis-ai/auralis/pkg/transports/mock"
)

func TestEngineRunLifecycle(t *testing.T) {
	tr := transportmock.New()
	snk := sinkmock.New()
	e, err := NewEngine(EngineOptions{
		Config: Config{
			Mode:           "segmented",
			Model:          "models/test",
			Credential:     "key",
			CredentialFile: filepath.Join(t.TempDir(), "cred.yaml"),
			Capture:        CaptureConfig{Provider: "none"},
			Transport:      TransportConfig{Provider: "live"},
		},
		Transport: tr,
		Sink:      snk,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.Run(context.Background()) }()

	waitCond(t, "ready state", func() bool {
		if e.Driver().State() == session.StateAwaitingSetup {
			tr.PushText(e.Driver().SessionID(), `{"setupComplete":{}}`)
		}
		return e.Driver().State() == session.StateReady
	})

	if err := e.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run did not return after stop")
	}
	if e.Driver().State() != session.StateDisconnected {
		t.Fatalf("driver state = %s, want disconnected", e.Driver().State())
	}
}

func TestEngineRejectsUnknownTransport(t *testing.T) {
	_, err := NewEngine(EngineOptions{
		Config: Config{
			Mode:      "segmented",
			Capture:   CaptureConfig{Provider: "none"},
			Transport: TransportConfig{Provider: "carrier-pigeon"},
		},
	})
	if err == nil {
		t.Fatal("expected error for unknown transport provider")
	}
}

func waitCond(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
