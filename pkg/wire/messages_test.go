package wire

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/auralis-ai/auralis/pkg/audio"
)

func TestSetupEnvelopeShape(t *testing.T) {
	b, err := json.Marshal(NewSetup("models/live-mood-1", "analyze the speaker"))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"setup"`, `"generationConfig"`, `"responseModalities":["TEXT"]`, `"systemInstruction"`, `"analyze the speaker"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("setup envelope missing %s: %s", want, s)
		}
	}
}

func TestRealtimeInputEnvelopeShape(t *testing.T) {
	b, err := json.Marshal(NewRealtimeInput(audio.Chunk{MimeType: audio.MimeType, Data: "AAAA"}))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"realtimeInput"`) || !strings.Contains(s, `"mediaChunks"`) || !strings.Contains(s, `"mimeType":"audio/pcm;rate=16000"`) {
		t.Fatalf("unexpected realtime envelope: %s", s)
	}
}

func TestTurnPromptEnvelopeShape(t *testing.T) {
	b, err := json.Marshal(NewTurnPrompt("Respond now."))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	if !strings.Contains(s, `"clientContent"`) || !strings.Contains(s, `"turnComplete":true`) || !strings.Contains(s, `"role":"user"`) {
		t.Fatalf("unexpected turn prompt envelope: %s", s)
	}
}

func TestSetupCompleteVariants(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{`{"setupComplete":{}}`, true},
		{`{"setupComplete":true}`, true},
		{`{"setupComplete":false}`, false},
		{`{"setupComplete":null}`, false},
		{`{"serverContent":{"turnComplete":true}}`, false},
	}
	for _, tc := range cases {
		msg, err := ParseServerMessage([]byte(tc.in))
		if err != nil {
			t.Fatalf("parse %s: %v", tc.in, err)
		}
		if msg.IsSetupComplete() != tc.want {
			t.Fatalf("%s: setup complete = %v, want %v", tc.in, msg.IsSetupComplete(), tc.want)
		}
	}
}

func TestFragmentsArrivalOrder(t *testing.T) {
	msg, err := ParseServerMessage([]byte(`{"serverContent":{"modelTurn":{"parts":[{"text":"Tran"},{"text":""},{"text":"script: hi"}]}}}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	got := msg.ServerContent.Fragments()
	if len(got) != 2 || got[0] != "Tran" || got[1] != "script: hi" {
		t.Fatalf("fragments %v", got)
	}
}

func TestParseServerMessageMalformed(t *testing.T) {
	if _, err := ParseServerMessage([]byte("not json")); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}
