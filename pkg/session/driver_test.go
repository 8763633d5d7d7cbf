package session

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/auralis-ai/auralis/pkg/audio"
	"github.com/auralis-ai/auralis/pkg/frames"
	sinkmock "github.com/auralis-ai/auralis/pkg/sink/mock"
	transportmock "github.com/auralis-ai/auralis/pkg/transports/mock"
)

func newTestDriver(t *testing.T, mode Mode) (*Driver, *transportmock.Transport, *sinkmock.Sink) {
	t.Helper()
	tr := transportmock.New()
	snk := sinkmock.New()
	d := NewDriver(Options{
		Config: Config{
			Mode:        mode,
			Model:       "models/test",
			BasePrompt:  "analyze speech",
			Credential:  "key-123",
			PromptDelay: 5 * time.Millisecond,
			Watchdog:    500 * time.Millisecond,
		},
		Transport: tr,
		Sink:      snk,
	})
	t.Cleanup(func() { _ = d.Disconnect() })
	return d, tr, snk
}

func waitFor(t *testing.T, what string, cond func() bool) {
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

func nextSent(t *testing.T, tr *transportmock.Transport) string {
	t.Helper()
	select {
	case f := <-tr.Sent():
		tf, ok := f.(frames.TextFrame)
		if !ok {
			t.Fatalf("sent frame is %T, want TextFrame", f)
		}
		return tf.Text()
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for outbound frame")
		return ""
	}
}

func completeSession(t *testing.T, d *Driver, tr *transportmock.Transport) {
	t.Helper()
	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	setup := nextSent(t, tr)
	if !strings.Contains(setup, `"setup"`) || !strings.Contains(setup, "models/test") {
		t.Fatalf("first outbound message is not a setup envelope: %s", setup)
	}
	tr.PushText(d.SessionID(), `{"setupComplete":{}}`)
	waitFor(t, "ready state", func() bool { return d.State() == StateReady })
}

func TestConnectHandshake(t *testing.T) {
	d, tr, snk := newTestDriver(t, ModeSegmented)
	completeSession(t, d, tr)

	waitFor(t, "connected UI", func() bool {
		ui := snk.UIHistory()
		return len(ui) > 0 && ui[len(ui)-1]
	})
	waitFor(t, "listening status", func() bool { return snk.LastStatus() == "listening" })
}

func TestConnectWhileConnectedFails(t *testing.T) {
	d, tr, _ := newTestDriver(t, ModeSegmented)
	completeSession(t, d, tr)
	if err := d.Connect(context.Background()); err == nil {
		t.Fatal("second connect on a live session should fail")
	}
}

func TestSegmentedTurnFlow(t *testing.T) {
	d, tr, snk := newTestDriver(t, ModeSegmented)
	completeSession(t, d, tr)

	pcm := audio.PCM16FromFloat32(make([]float32, 512))
	d.onUtterance(pcm)

	first := nextSent(t, tr)
	if !strings.Contains(first, `"realtimeInput"`) || !strings.Contains(first, audio.MimeType) {
		t.Fatalf("utterance did not go out as realtime input: %s", first)
	}
	second := nextSent(t, tr)
	if !strings.Contains(second, `"clientContent"`) || !strings.Contains(second, `"turnComplete":true`) {
		t.Fatalf("turn prompt missing after utterance: %s", second)
	}
	if d.State() != StateTurnPending {
		t.Fatalf("state = %s, want %s", d.State(), StateTurnPending)
	}

	body := map[string]any{"transcript": "hello there", "analysis": "warm greeting", "emoji": "👋"}
	raw, _ := json.Marshal(body)
	tr.PushText(d.SessionID(), `{"serverContent":{"modelTurn":{"parts":[{"text":`+string(mustJSON(t, string(raw)))+`}]},"turnComplete":true}}`)

	waitFor(t, "display update", func() bool { return snk.DisplayCount() == 1 })
	waitFor(t, "ready state", func() bool { return d.State() == StateReady })

	entries := snk.LogEntries()
	if len(entries) != 1 || entries[0].Transcript != "hello there" {
		t.Fatalf("transcript log entries = %+v, want one entry for 'hello there'", entries)
	}
	if d.Transcript().Len() != 1 {
		t.Fatalf("driver transcript log has %d entries, want 1", d.Transcript().Len())
	}
	if d.seg.Awaiting() {
		t.Fatal("segmenter gate still held after turn completion")
	}
}

func mustJSON(t *testing.T, s string) []byte {
	t.Helper()
	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func TestEmptyCompletionReleasesPendingTurn(t *testing.T) {
	d, tr, snk := newTestDriver(t, ModeSegmented)
	completeSession(t, d, tr)

	d.onUtterance(audio.PCM16FromFloat32(make([]float32, 256)))
	if d.State() != StateTurnPending {
		t.Fatalf("state = %s, want %s", d.State(), StateTurnPending)
	}
	nextSent(t, tr) // realtime input
	nextSent(t, tr) // turn prompt

	// A completion marker with no text must release the pending turn on its
	// own; the watchdog is not the recovery path.
	tr.PushText(d.SessionID(), `{"serverContent":{"turnComplete":true}}`)
	waitFor(t, "ready state after empty completion", func() bool { return d.State() == StateReady })
	if d.seg.Awaiting() {
		t.Fatal("segmenter gate still held after empty completion")
	}
	if got := snk.DisplayCount(); got != 0 {
		t.Fatalf("empty completion updated the display %d times", got)
	}

	// New utterances flow immediately.
	d.onUtterance(audio.PCM16FromFloat32(make([]float32, 256)))
	if out := nextSent(t, tr); !strings.Contains(out, `"realtimeInput"`) {
		t.Fatalf("follow-up utterance did not go out: %s", out)
	}
}

func TestWatchdogForceResets(t *testing.T) {
	tr := transportmock.New()
	snk := sinkmock.New()
	d := NewDriver(Options{
		Config: Config{
			Mode:        ModeSegmented,
			Model:       "models/test",
			PromptDelay: 5 * time.Millisecond,
			Watchdog:    30 * time.Millisecond,
		},
		Transport: tr,
		Sink:      snk,
	})
	t.Cleanup(func() { _ = d.Disconnect() })
	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	tr.PushText(d.SessionID(), `{"setupComplete":{}}`)
	waitFor(t, "ready state", func() bool { return d.State() == StateReady })

	d.onUtterance(audio.PCM16FromFloat32(make([]float32, 256)))
	waitFor(t, "timeout status", func() bool { return snk.LastStatus() == "turn timed out" })
	if d.State() != StateReady {
		t.Fatalf("state after watchdog = %s, want %s", d.State(), StateReady)
	}
	if d.seg.Awaiting() {
		t.Fatal("segmenter gate still held after watchdog reset")
	}
}

func TestTurnErrorSurfacesAndRecovers(t *testing.T) {
	d, tr, snk := newTestDriver(t, ModeSegmented)
	completeSession(t, d, tr)

	d.onUtterance(audio.PCM16FromFloat32(make([]float32, 256)))
	tr.PushText(d.SessionID(), `{"error":{"message":"quota exceeded"}}`)

	waitFor(t, "error status", func() bool { return snk.LastStatus() == "error: quota exceeded" })
	waitFor(t, "ready state", func() bool { return d.State() == StateReady })
	if snk.ErrorCount() == 0 {
		t.Fatal("error animation never shown")
	}
}

func TestMalformedMessageKeepsSessionAlive(t *testing.T) {
	d, tr, snk := newTestDriver(t, ModeSegmented)
	completeSession(t, d, tr)

	tr.PushText(d.SessionID(), `{"serverContent": not json`)
	tr.PushText(d.SessionID(), `{"serverContent":{"modelTurn":{"parts":[{"text":"Transcript: still here"}]},"turnComplete":true}}`)

	waitFor(t, "display after malformed message", func() bool { return snk.DisplayCount() == 1 })
}

func TestFillerDiscardedInContinuousMode(t *testing.T) {
	d, tr, snk := newTestDriver(t, ModeContinuous)
	completeSession(t, d, tr)

	tr.PushText(d.SessionID(), `{"serverContent":{"modelTurn":{"parts":[{"text":"I'm ready when you are"}]},"turnComplete":true}}`)
	tr.PushText(d.SessionID(), `{"serverContent":{"modelTurn":{"parts":[{"text":"Transcript: real words"}]},"turnComplete":true}}`)

	waitFor(t, "real turn displayed", func() bool { return snk.DisplayCount() == 1 })
	if got := snk.LogEntries(); len(got) != 1 || got[0].Transcript != "real words" {
		t.Fatalf("log entries = %+v, want only the real turn", got)
	}
}

func TestContinuousModeStreamsBlocks(t *testing.T) {
	d, tr, _ := newTestDriver(t, ModeContinuous)
	completeSession(t, d, tr)

	samples := make([]float32, 256)
	for i := range samples {
		samples[i] = 0.25
	}
	d.onBlock(samples)
	if d.State() != StateStreaming {
		t.Fatalf("state = %s, want %s", d.State(), StateStreaming)
	}
	out := nextSent(t, tr)
	if !strings.Contains(out, `"realtimeInput"`) {
		t.Fatalf("captured block did not stream out: %s", out)
	}
}

func TestDisconnectIsIdempotent(t *testing.T) {
	d, tr, snk := newTestDriver(t, ModeSegmented)
	completeSession(t, d, tr)

	if err := d.Disconnect(); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if err := d.Disconnect(); err != nil {
		t.Fatalf("second disconnect: %v", err)
	}
	if d.State() != StateDisconnected {
		t.Fatalf("state = %s, want %s", d.State(), StateDisconnected)
	}
	ui := snk.UIHistory()
	if len(ui) == 0 || ui[len(ui)-1] {
		t.Fatal("sink never told the UI the session is down")
	}
	if snk.ResetCount() != 1 {
		t.Fatalf("display reset %d times, want exactly 1", snk.ResetCount())
	}
}

func TestRemoteCloseTearsDown(t *testing.T) {
	d, tr, snk := newTestDriver(t, ModeSegmented)
	completeSession(t, d, tr)

	_ = tr.Stop()
	waitFor(t, "disconnected state", func() bool { return d.State() == StateDisconnected })
	waitFor(t, "closed status", func() bool { return snk.LastStatus() == "connection closed" })
}

func TestCredentialPersistedOnSetup(t *testing.T) {
	tr := transportmock.New()
	store := NewCredentialStore(filepath.Join(t.TempDir(), "credential.yaml"))
	d := NewDriver(Options{
		Config: Config{
			Mode:       ModeSegmented,
			Model:      "models/test",
			Credential: "key-456",
		},
		Transport:   tr,
		Credentials: store,
	})
	t.Cleanup(func() { _ = d.Disconnect() })
	if err := d.Connect(context.Background()); err != nil {
		t.Fatalf("connect: %v", err)
	}
	tr.PushText(d.SessionID(), `{"setupComplete":{}}`)
	waitFor(t, "ready state", func() bool { return d.State() == StateReady })

	waitFor(t, "persisted credential", func() bool {
		got, err := store.Load()
		return err == nil && got == "key-456"
	})
}

func TestCredentialStoreRoundTrip(t *testing.T) {
	store := NewCredentialStore(filepath.Join(t.TempDir(), "credential.yaml"))
	got, err := store.Load()
	if err != nil {
		t.Fatalf("load before save: %v", err)
	}
	if got != "" {
		t.Fatalf("empty store returned %q", got)
	}
	if err := store.Save("abc"); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err = store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != "abc" {
		t.Fatalf("loaded %q, want abc", got)
	}
}
